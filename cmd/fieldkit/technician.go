package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kamnsolar/field_capture/config"
	"github.com/kamnsolar/field_capture/draftstore"
	"github.com/kamnsolar/field_capture/geo"
	"github.com/kamnsolar/field_capture/models"
	"github.com/kamnsolar/field_capture/session"
	"github.com/kamnsolar/field_capture/surveyapi"
	"github.com/kamnsolar/field_capture/upload"
	"github.com/kamnsolar/field_capture/utils"
	"github.com/urfave/cli/v2"
)

type technicianEnv struct {
	store *draftstore.Store
	sess  *session.Session
}

func openTechnician(c *cli.Context) (*technicianEnv, error) {
	store, err := draftstore.OpenFromEnv(c.Context)
	if err != nil {
		return nil, err
	}
	client := surveyapi.NewClient(c.String("api"), config.APITimeout())
	sess := session.New(store, client, geo.NewCapturerFromEnv(), session.PhotoOptionsFromEnv())
	sess.Restore(c.Context)
	return &technicianEnv{store: store, sess: sess}, nil
}

// withSession opens the draft and runs fn, printing the view it returns.
func withSession(fn func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		env, err := openTechnician(c)
		if err != nil {
			return err
		}
		view, err := fn(c.Context, c, env.sess)
		if err != nil {
			return err
		}
		return printView(c, view)
	}
}

func printView(c *cli.Context, view session.View) error {
	if c.Bool("json") {
		return utils.PrintJSON(c.App.Writer, view)
	}
	w := c.App.Writer
	fmt.Fprintf(w, "state: %s\n", view.State)
	if view.CustomerId != "" {
		fmt.Fprintf(w, "customer: %s (%s, %s, %s)\n", view.Customer.Name, view.CustomerId, view.Customer.District, view.Customer.PlantType)
	}
	for _, s := range view.Sections {
		fmt.Fprintf(w, "  %-14s %-9s %d/%d filled, %d pending\n", s.Id, s.DisplayStatus(), s.Filled, len(s.Slots), s.Pending)
	}
	return nil
}

func sectionFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{Name: "section", Aliases: []string{"s"}, Usage: "section id, e.g. module", Required: required}
}

var slotFlag = &cli.StringFlag{Name: "slot", Usage: "slot name, e.g. \"Front View\"", Required: true}

func parseSection(c *cli.Context) (models.SectionId, error) {
	return models.ParseSectionId(c.String("section"))
}

var jsonFlag = &cli.BoolFlag{Name: "json", Usage: "print the session view as JSON"}

func technicianCommand() *cli.Command {
	return &cli.Command{
		Name:    "technician",
		Aliases: []string{"tech"},
		Usage:   "capture and upload photos for one customer",
		Flags:   []cli.Flag{jsonFlag},
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "show the active customer and section progress",
				Action: withSession(func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error) {
					return sess.View(ctx), nil
				}),
			},
			{
				Name:      "set",
				Usage:     "store customer form fields; with an active customer, run save afterwards",
				ArgsUsage: "field=value ...",
				Action: withSession(func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error) {
					view := sess.View(ctx)
					if sess.State() == session.StateCapturingPhotos {
						var err error
						if view, err = sess.EditDetails(ctx); err != nil {
							return view, err
						}
					}
					for _, arg := range c.Args().Slice() {
						field, value, ok := cutField(arg)
						if !ok {
							return view, fmt.Errorf("expected field=value, got %q", arg)
						}
						var err error
						if view, err = sess.SetFormField(ctx, field, value); err != nil {
							return view, err
						}
					}
					return view, nil
				}),
			},
			{
				Name:  "plant-types",
				Usage: "list plant types and their panel serial photo count",
				Action: func(c *cli.Context) error {
					for _, pt := range models.PlantTypes() {
						fmt.Fprintf(c.App.Writer, "%s\t%d panel serials\n", pt, models.PanelSerialCount(string(pt)))
					}
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "register the form as a new customer",
				Action: withSession(func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error) {
					return sess.CreateCustomer(ctx)
				}),
			},
			{
				Name:  "load",
				Usage: "continue with an existing customer",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "district"},
					&cli.StringFlag{Name: "mobile"},
				},
				Action: withSession(func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error) {
					return sess.LoadExisting(ctx, models.CustomerFilter{
						Name:     c.String("name"),
						District: c.String("district"),
						Mobile:   c.String("mobile"),
					})
				}),
			},
			{
				Name:  "edit",
				Usage: "reopen the customer form",
				Action: withSession(func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error) {
					return sess.EditDetails(ctx)
				}),
			},
			{
				Name:  "save",
				Usage: "save edited customer details",
				Action: withSession(func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error) {
					if _, err := sess.EditDetails(ctx); err != nil {
						return sess.View(ctx), err
					}
					return sess.SaveDetails(ctx)
				}),
			},
			{
				Name:  "refresh",
				Usage: "re-read section status from the backend",
				Action: withSession(func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error) {
					return sess.Refresh(ctx)
				}),
			},
			{
				Name:  "capture",
				Usage: "store a photo file for a slot",
				Flags: []cli.Flag{
					sectionFlag(true),
					slotFlag,
					&cli.PathFlag{Name: "file", Aliases: []string{"f"}, Required: true},
					&cli.Float64Flag{Name: "lat"},
					&cli.Float64Flag{Name: "lng"},
					&cli.Float64Flag{Name: "accuracy"},
					&cli.BoolFlag{Name: "no-geo", Usage: "do not tag the photo with a location"},
				},
				Action: withSession(func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error) {
					section, err := parseSection(c)
					if err != nil {
						return sess.View(ctx), err
					}
					data, err := os.ReadFile(c.Path("file"))
					if err != nil {
						return sess.View(ctx), err
					}
					if c.Bool("no-geo") {
						ctx = utils.SetSkipGeolocationInContext(ctx, true)
					}
					var extra []geo.Locator
					if c.IsSet("lat") && c.IsSet("lng") {
						extra = append(extra, geo.StaticLocator{Fix: geo.Fix{
							Latitude:  c.Float64("lat"),
							Longitude: c.Float64("lng"),
							Accuracy:  c.Float64("accuracy"),
						}})
					}
					return sess.CapturePhoto(ctx, section, c.String("slot"), data, extra...)
				}),
			},
			{
				Name:  "remove",
				Usage: "drop the pending photo of a slot",
				Flags: []cli.Flag{sectionFlag(true), slotFlag},
				Action: withSession(func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error) {
					section, err := parseSection(c)
					if err != nil {
						return sess.View(ctx), err
					}
					return sess.RemovePhoto(ctx, section, c.String("slot"))
				}),
			},
			{
				Name:  "clear-section",
				Usage: "drop every pending photo of a section",
				Flags: []cli.Flag{sectionFlag(true), yesFlag},
				Action: withSession(func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error) {
					section, err := parseSection(c)
					if err != nil {
						return sess.View(ctx), err
					}
					if !confirm(c, fmt.Sprintf("Clear all %s photos?", section)) {
						return sess.View(ctx), errAborted
					}
					return sess.ClearSection(ctx, section)
				}),
			},
			{
				Name:   "submit",
				Usage:  "upload one section, or every section with pending photos",
				Flags:  []cli.Flag{sectionFlag(false)},
				Action: submitAction,
			},
			{
				Name:  "change-customer",
				Usage: "start over with an empty form; local photos are discarded",
				Flags: []cli.Flag{yesFlag},
				Action: withSession(func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error) {
					if !confirm(c, "Discard local photos and change customer?") {
						return sess.View(ctx), errAborted
					}
					return sess.ChangeCustomer(ctx)
				}),
			},
			{
				Name:  "clear-all",
				Usage: "delete the saved draft",
				Flags: []cli.Flag{yesFlag},
				Action: withSession(func(ctx context.Context, c *cli.Context, sess *session.Session) (session.View, error) {
					if !confirm(c, "Delete all saved form data?") {
						return sess.View(ctx), errAborted
					}
					return sess.ClearAll(ctx)
				}),
			},
			{
				Name:  "geojson",
				Usage: "print locations of photos not yet uploaded",
				Action: func(c *cli.Context) error {
					env, err := openTechnician(c)
					if err != nil {
						return err
					}
					return utils.PrintJSON(c.App.Writer, geo.FeatureCollection(geo.DraftFeatures(env.store.Current())))
				},
			},
		},
	}
}

func submitAction(c *cli.Context) error {
	env, err := openTechnician(c)
	if err != nil {
		return err
	}
	w := c.App.Writer
	if c.IsSet("section") {
		section, err := parseSection(c)
		if err != nil {
			return err
		}
		result, err := env.sess.SubmitSection(c.Context, section)
		if err != nil {
			return err
		}
		if result.Skipped {
			fmt.Fprintf(w, "%s: already uploaded\n", section)
			return nil
		}
		fmt.Fprintf(w, "%s: uploaded %d photos\n", section, result.Uploaded)
		return nil
	}

	batch, err := env.sess.SubmitAll(c.Context)
	if err != nil {
		return err
	}
	for _, r := range batch.Results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "%s: failed: %v\n", r.Section, r.Err)
		case r.Skipped:
			fmt.Fprintf(w, "%s: already uploaded\n", r.Section)
		default:
			fmt.Fprintf(w, "%s: uploaded %d photos\n", r.Section, r.Uploaded)
		}
	}
	if batch.Status != upload.BatchStatusSuccess {
		return cli.Exit(fmt.Sprintf("upload %s: %d section(s) failed", batch.Status, len(batch.Failed)), 2)
	}
	return nil
}

func cutField(arg string) (string, string, bool) {
	field, value, ok := strings.Cut(arg, "=")
	return strings.TrimSpace(field), value, ok && strings.TrimSpace(field) != ""
}
