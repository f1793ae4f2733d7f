// Package session tracks the active customer of a technician and drives
// photo capture and upload for it.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/kamnsolar/field_capture/config"
	"github.com/kamnsolar/field_capture/draftstore"
	"github.com/kamnsolar/field_capture/geo"
	"github.com/kamnsolar/field_capture/models"
	"github.com/kamnsolar/field_capture/reconcile"
	"github.com/kamnsolar/field_capture/surveyapi"
	"github.com/kamnsolar/field_capture/upload"
	"github.com/kamnsolar/field_capture/utils"
	"github.com/sirupsen/logrus"
)

type State string

const (
	StateNoActiveCustomer State = "no-active-customer"
	StateEditingDetails   State = "editing-details"
	StateCapturingPhotos  State = "capturing-photos"
)

// CustomerAPI is the part of the backend the session uses.
type CustomerAPI interface {
	CreateCustomer(ctx context.Context, input models.NewCustomer) (*models.Customer, error)
	SearchCustomers(ctx context.Context, filter models.CustomerFilter) ([]models.Customer, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, id string, input models.UpdateCustomer) (*models.Customer, error)
	UploadPhotos(ctx context.Context, req surveyapi.UploadRequest) (*models.SectionRecord, error)
}

// LocationCapturer tags a capture with the device position, or nil.
type LocationCapturer interface {
	Capture(ctx context.Context, extra ...geo.Locator) *models.LocationRecord
}

type PhotoOptions struct {
	MaxEdge     int
	JPEGQuality int
}

func PhotoOptionsFromEnv() PhotoOptions {
	return PhotoOptions{MaxEdge: config.PhotoMaxDimension(), JPEGQuality: config.PhotoJPEGQuality()}
}

// Session operations are serialized: each one finishes its draft save
// before the next starts.
type Session struct {
	mu       sync.Mutex
	store    *draftstore.Store
	api      CustomerAPI
	location LocationCapturer
	uploader *upload.Orchestrator
	validate *validator.Validate
	photos   PhotoOptions

	state    State
	restored bool
}

func New(store *draftstore.Store, api CustomerAPI, location LocationCapturer, photos PhotoOptions) *Session {
	return &Session{
		store:    store,
		api:      api,
		location: location,
		uploader: upload.NewOrchestrator(store, api),
		validate: newValidator(),
		photos:   photos,
		state:    StateNoActiveCustomer,
	}
}

// View is what a front end renders for the session.
type View struct {
	State State `json:"state"`
	reconcile.ViewModel
}

func logFields(draft models.DraftState) logrus.Fields {
	return logrus.Fields{
		"module":      "session",
		"customer_id": draft.CurrentCustomerId,
	}
}

// Restore reloads the persisted draft after a restart.
func (s *Session) Restore(ctx context.Context) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restore(ctx)
}

func (s *Session) restore(ctx context.Context) View {
	draft := s.store.Load(ctx)
	s.restored = true
	if draft.HasActiveCustomer() {
		s.state = StateCapturingPhotos
	} else {
		s.state = StateNoActiveCustomer
	}
	return s.view(draft)
}

func (s *Session) ensureRestored(ctx context.Context) {
	if !s.restored {
		s.restore(ctx)
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) View(ctx context.Context) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	return s.view(s.store.Current())
}

// view always merges local pending payloads; the draft holds the last
// authoritative sections.
func (s *Session) view(draft models.DraftState) View {
	return View{
		State:     s.state,
		ViewModel: reconcile.Reconcile(nil, draft, reconcile.Options{MergeLocal: true}),
	}
}

// SetFormField stores one customer form edit in the draft.
func (s *Session) SetFormField(ctx context.Context, field, value string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	if s.state == StateCapturingPhotos {
		return s.view(s.store.Current()), ErrNotEditing
	}
	draft, err := s.store.Update(ctx, func(d *models.DraftState) error {
		switch field {
		case "name":
			d.Customer.Name = value
		case "district":
			d.Customer.District = value
		case "plantType":
			d.Customer.PlantType = value
		case "mobile":
			d.Customer.Mobile = value
		case "address":
			d.Customer.Address = value
		case "technician":
			d.Customer.Technician = value
		default:
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		return nil
	})
	return s.view(draft), err
}

// CreateCustomer registers the form as a new customer and starts capturing
// photos for it. Any pending photos are discarded.
func (s *Session) CreateCustomer(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	draft := s.store.Current()
	if s.state != StateNoActiveCustomer {
		return s.view(draft), ErrCustomerActive
	}

	input := draft.Customer.NewCustomer()
	if err := s.validateStruct(input); err != nil {
		return s.view(draft), err
	}
	created, err := s.api.CreateCustomer(ctx, input)
	if err != nil {
		config.LogError(config.GetLogger(), "session", "CreateCustomer", "creating customer", input, err)
		return s.view(draft), err
	}
	customer := s.fetchOr(ctx, created)
	if technician := strings.TrimSpace(draft.Customer.Technician); technician != "" && customer.Technician == "" {
		customer.Technician = technician
	}
	return s.adopt(ctx, customer, false)
}

// LoadExisting activates the first customer matching filter. Local pending
// photos are merged when they belong to the same customer. While a customer
// is active only that same customer can be reloaded; any other match fails
// with ErrCustomerActive and leaves the draft untouched.
func (s *Session) LoadExisting(ctx context.Context, filter models.CustomerFilter) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	draft := s.store.Current()
	if filter.IsEmpty() {
		return s.view(draft), &ValidationError{Fields: map[string]string{"filter": "required_without_all"}}
	}
	matches, err := s.api.SearchCustomers(ctx, filter)
	if err != nil {
		config.LogError(config.GetLogger(), "session", "LoadExisting", "searching customers", filter, err)
		return s.view(draft), err
	}
	if len(matches) == 0 {
		return s.view(draft), ErrCustomerNotFound
	}
	if s.state != StateNoActiveCustomer && matches[0].ID != draft.CurrentCustomerId {
		return s.view(draft), ErrCustomerActive
	}
	customer := s.fetchOr(ctx, &matches[0])
	mergeLocal := draft.CurrentCustomerId == "" || draft.CurrentCustomerId == customer.ID
	return s.adopt(ctx, customer, mergeLocal)
}

// fetchOr re-reads the customer; the fallback is used when the read fails.
func (s *Session) fetchOr(ctx context.Context, fallback *models.Customer) *models.Customer {
	fresh, err := s.api.GetCustomer(ctx, fallback.ID)
	if err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"module":      "session",
			"customer_id": fallback.ID,
		}).Warn("authoritative fetch failed; using search result: " + err.Error())
		return fallback
	}
	return fresh
}

func (s *Session) adopt(ctx context.Context, customer *models.Customer, mergeLocal bool) (View, error) {
	draft, err := s.store.Update(ctx, func(d *models.DraftState) error {
		reconcile.Adopt(d, customer, mergeLocal)
		return nil
	})
	s.state = StateCapturingPhotos
	config.GetLogger().WithFields(logFields(draft)).WithField("merge_local", mergeLocal).Info("customer active")
	return s.view(draft), err
}

// EditDetails reopens the customer form. Captured photos are kept.
func (s *Session) EditDetails(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	draft := s.store.Current()
	if !draft.HasActiveCustomer() {
		return s.view(draft), ErrNoActiveCustomer
	}
	s.state = StateEditingDetails
	return s.view(draft), nil
}

// SaveDetails sends the edited form and re-fetches the customer.
func (s *Session) SaveDetails(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	draft := s.store.Current()
	if s.state != StateEditingDetails {
		return s.view(draft), ErrNotEditing
	}
	input := draft.Customer.UpdateCustomer()
	if err := s.validateStruct(input); err != nil {
		return s.view(draft), err
	}
	if err := utils.ValidatePhoneNumber(input.Mobile, utils.CountryCode); err != nil {
		config.GetLogger().WithFields(logFields(draft)).Warn("mobile number may be invalid: " + err.Error())
	}
	updated, err := s.api.UpdateCustomer(ctx, draft.CurrentCustomerId, input)
	if err != nil {
		config.LogError(config.GetLogger(), "session", "SaveDetails", "updating customer", input, err)
		return s.view(draft), err
	}
	return s.adopt(ctx, s.fetchOr(ctx, updated), true)
}

// Refresh re-reads the active customer's authoritative section state.
func (s *Session) Refresh(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	draft := s.store.Current()
	if !draft.HasActiveCustomer() {
		return s.view(draft), ErrNoActiveCustomer
	}
	customer, err := s.api.GetCustomer(ctx, draft.CurrentCustomerId)
	if err != nil {
		config.LogError(config.GetLogger(), "session", "Refresh", "fetching customer", nil, err)
		return s.view(draft), err
	}
	state := s.state
	view, err := s.adopt(ctx, customer, true)
	if state == StateEditingDetails {
		s.state = state
		view.State = state
	}
	return view, err
}

func (s *Session) activeSlot(draft models.DraftState, section models.SectionId, slot string) error {
	if !draft.HasActiveCustomer() {
		return ErrNoActiveCustomer
	}
	return models.ValidateSlot(section, draft.Customer.PlantType, slot)
}

// CapturePhoto downsizes the image, tags it with a location when one is
// available and stores it as the slot's pending payload. Location sources
// are tried in order: GPS tags embedded in data, then the extra locators,
// then the device. A photo carrying GPS tags is therefore located even when
// device geolocation is denied; otherwise a denial stores no location.
func (s *Session) CapturePhoto(ctx context.Context, section models.SectionId, slot string, data []byte, extra ...geo.Locator) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	draft := s.store.Current()
	if err := s.activeSlot(draft, section, slot); err != nil {
		return s.view(draft), err
	}
	if _, ok := draft.Sections[section].Photo(slot); ok {
		return s.view(draft), fmt.Errorf("%w: %s / %s", ErrSlotConfirmed, section, slot)
	}

	normalized, err := utils.NormalizePhoto(data, s.photos.MaxEdge, s.photos.JPEGQuality)
	if err != nil {
		return s.view(draft), err
	}

	var loc *models.LocationRecord
	if s.location != nil {
		locators := append([]geo.Locator{geo.ExifLocator{Data: data}}, extra...)
		loc = s.location.Capture(ctx, locators...)
	}

	dataURL := utils.EncodeDataURL("image/jpeg", normalized)
	next, err := s.store.Update(ctx, func(d *models.DraftState) error {
		d.SetPending(section, slot, dataURL, loc)
		return nil
	})
	config.GetLogger().WithFields(logFields(next)).WithFields(logrus.Fields{
		"section":     section,
		"slot":        slot,
		"geolocation": loc != nil,
	}).Info("photo captured")
	return s.view(next), err
}

func (s *Session) RemovePhoto(ctx context.Context, section models.SectionId, slot string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	draft := s.store.Current()
	if err := s.activeSlot(draft, section, slot); err != nil {
		return s.view(draft), err
	}
	next, err := s.store.Update(ctx, func(d *models.DraftState) error {
		d.RemovePending(section, slot)
		return nil
	})
	return s.view(next), err
}

// ClearSection drops every pending photo of one section.
func (s *Session) ClearSection(ctx context.Context, section models.SectionId) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	draft := s.store.Current()
	if !section.IsValid() {
		return s.view(draft), fmt.Errorf("%w: %q", models.ErrUnknownSection, section)
	}
	next, err := s.store.Update(ctx, func(d *models.DraftState) error {
		d.ClearSection(section)
		return nil
	})
	return s.view(next), err
}

func (s *Session) SubmitSection(ctx context.Context, section models.SectionId) (upload.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	draft := s.store.Current()
	if !draft.HasActiveCustomer() {
		return upload.Result{Section: section, Err: ErrNoActiveCustomer}, ErrNoActiveCustomer
	}
	return s.uploader.SubmitSection(ctx, draft.CurrentCustomerId, section)
}

func (s *Session) SubmitAll(ctx context.Context) (upload.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	return s.uploader.SubmitAll(ctx)
}

// ChangeCustomer returns to the empty form. Photos, locations and the
// customer id are wiped locally; nothing is deleted on the server.
func (s *Session) ChangeCustomer(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureRestored(ctx)
	next, err := s.store.Update(ctx, func(d *models.DraftState) error {
		d.ClearPhotos()
		d.CurrentCustomerId = ""
		d.Customer = models.CustomerForm{}
		return nil
	})
	s.state = StateNoActiveCustomer
	return s.view(next), err
}

// ClearAll deletes the persisted draft.
func (s *Session) ClearAll(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restored = true
	err := s.store.ClearAll(ctx)
	s.state = StateNoActiveCustomer
	return s.view(s.store.Current()), err
}
