package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kamnsolar/field_capture/admin"
	"github.com/kamnsolar/field_capture/config"
	"github.com/kamnsolar/field_capture/models"
	"github.com/kamnsolar/field_capture/surveyapi"
	"github.com/kamnsolar/field_capture/utils"
	"github.com/urfave/cli/v2"
)

var filterFlags = []cli.Flag{
	&cli.StringFlag{Name: "name"},
	&cli.StringFlag{Name: "district"},
	&cli.StringFlag{Name: "mobile"},
}

func filterFromFlags(c *cli.Context) models.CustomerFilter {
	return models.CustomerFilter{Name: c.String("name"), District: c.String("district"), Mobile: c.String("mobile")}
}

// openConsole logs in first when admin credentials are configured.
func openConsole(c *cli.Context) (*admin.Console, error) {
	console := admin.NewConsole(surveyapi.NewClient(c.String("api"), config.APITimeout()))
	if user := c.String("user"); user != "" {
		if err := console.Login(c.Context, user, c.String("password")); err != nil {
			return nil, err
		}
	}
	return console, nil
}

func printCard(c *cli.Context, card admin.Card) error {
	if c.Bool("json") {
		return utils.PrintJSON(c.App.Writer, card)
	}
	w := c.App.Writer
	fmt.Fprintf(w, "%s  %s\n", card.Name, card.CustomerId)
	fmt.Fprintf(w, "  district: %s  plant: %s  mobile: %s  technician: %s\n", card.District, card.PlantType, card.Mobile, card.Technician)
	fmt.Fprintf(w, "  address: %s  created: %s\n", card.Address, card.CreatedAt.Format("2006-01-02 15:04"))
	for _, s := range card.Sections {
		fmt.Fprintf(w, "  %-22s %s\n", s.Title, s.Status)
		for _, p := range s.Photos {
			fmt.Fprintf(w, "    - %s [%s] %s\n", p.Title, p.DriveId, p.ImageUrl)
		}
	}
	return nil
}

func adminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "browse and clean up stored customers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", EnvVars: []string{"ADMIN_USERNAME"}},
			&cli.StringFlag{Name: "password", EnvVars: []string{"ADMIN_PASSWORD"}},
			jsonFlag,
		},
		Subcommands: []*cli.Command{
			{
				Name:  "login",
				Usage: "check admin credentials",
				Action: func(c *cli.Context) error {
					if c.String("user") == "" {
						return cli.Exit("--user is required", 1)
					}
					if _, err := openConsole(c); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "login successful")
					return nil
				},
			},
			{
				Name:  "search",
				Usage: "list every customer matching the filters",
				Flags: filterFlags,
				Action: func(c *cli.Context) error {
					console, err := openConsole(c)
					if err != nil {
						return err
					}
					customers, err := console.Search(c.Context, filterFromFlags(c))
					if err != nil {
						return err
					}
					for _, customer := range customers {
						if err := printCard(c, admin.BuildCard(&customer)); err != nil {
							return err
						}
					}
					if len(customers) == 0 {
						fmt.Fprintln(c.App.Writer, "no customers found")
					}
					return nil
				},
			},
			{
				Name:  "latest",
				Usage: "show the most recently registered customer",
				Action: func(c *cli.Context) error {
					console, err := openConsole(c)
					if err != nil {
						return err
					}
					customer, err := console.Latest(c.Context)
					if err != nil {
						return err
					}
					return printCard(c, admin.BuildCard(customer))
				},
			},
			{
				Name:  "card",
				Usage: "show one customer",
				Flags: []cli.Flag{&cli.StringFlag{Name: "id", Required: true}},
				Action: func(c *cli.Context) error {
					console, err := openConsole(c)
					if err != nil {
						return err
					}
					card, err := console.Card(c.Context, c.String("id"))
					if err != nil {
						return err
					}
					return printCard(c, card)
				},
			},
			{
				Name:  "delete-photo",
				Usage: "delete one stored photo",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "drive-id", Required: true},
					yesFlag,
				},
				Action: func(c *cli.Context) error {
					if !confirm(c, "Are you sure you want to delete this photo?") {
						return errAborted
					}
					console, err := openConsole(c)
					if err != nil {
						return err
					}
					card, err := console.DeletePhoto(c.Context, c.String("id"), c.String("drive-id"))
					if err != nil {
						return err
					}
					return printCard(c, card)
				},
			},
			{
				Name:  "delete-all",
				Usage: "delete every stored photo of a customer",
				Flags: []cli.Flag{&cli.StringFlag{Name: "id", Required: true}, yesFlag},
				Action: func(c *cli.Context) error {
					if !confirm(c, "Are you sure you want to delete all photos for this customer?") {
						return errAborted
					}
					console, err := openConsole(c)
					if err != nil {
						return err
					}
					card, err := console.DeleteAllPhotos(c.Context, c.String("id"))
					if err != nil {
						return err
					}
					return printCard(c, card)
				},
			},
			{
				Name:  "download",
				Usage: "save a section's photos into a directory",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					sectionFlag(true),
					&cli.PathFlag{Name: "dir", Value: "."},
				},
				Action: func(c *cli.Context) error {
					section, err := parseSection(c)
					if err != nil {
						return err
					}
					console, err := openConsole(c)
					if err != nil {
						return err
					}
					paths, err := console.Download(c.Context, c.String("id"), section, c.Path("dir"))
					for _, p := range paths {
						fmt.Fprintln(c.App.Writer, p)
					}
					return err
				},
			},
			{
				Name:  "export",
				Usage: "export matching customers as .xlsx or .geojson",
				Flags: append([]cli.Flag{
					&cli.PathFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "output file; the extension picks the format"},
				}, filterFlags...),
				Action: exportAction,
			},
		},
	}
}

func exportAction(c *cli.Context) error {
	out := c.Path("out")
	ext := strings.ToLower(filepath.Ext(out))
	var export func(io.Writer, []models.Customer) error
	switch ext {
	case ".xlsx":
		export = admin.ExportExcel
	case ".geojson", ".json":
		export = admin.ExportGeoJSON
	default:
		return cli.Exit(fmt.Sprintf("unsupported export format %q", ext), 1)
	}

	console, err := openConsole(c)
	if err != nil {
		return err
	}
	customers, err := console.Search(c.Context, filterFromFlags(c))
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := export(f, customers); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "exported %d customers to %s\n", len(customers), out)
	return nil
}
