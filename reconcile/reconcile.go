// Package reconcile merges authoritative section state from the backend
// with the technician's local draft.
package reconcile

import (
	"github.com/kamnsolar/field_capture/models"
)

type SlotState string

const (
	SlotEmpty     SlotState = "empty"
	SlotPending   SlotState = "pending"
	SlotConfirmed SlotState = "confirmed"
)

type SlotView struct {
	Name        string                 `json:"name"`
	State       SlotState              `json:"state"`
	DataURL     string                 `json:"dataUrl,omitempty"`
	ImageUrl    string                 `json:"imageUrl,omitempty"`
	DriveId     string                 `json:"driveId,omitempty"`
	Geolocation *models.LocationRecord `json:"geolocation,omitempty"`
}

type SectionView struct {
	Id     models.SectionId     `json:"id"`
	Title  string               `json:"title"`
	Status models.SectionStatus `json:"status"`
	// Ready is a display hint that every slot is filled. It never changes
	// Status.
	Ready           bool       `json:"ready"`
	HasServerRecord bool       `json:"hasServerRecord"`
	Slots           []SlotView `json:"slots"`
	Filled          int        `json:"filled"`
	Pending         int        `json:"pending"`
}

// DisplayStatus is "completed", "ready" or "pending".
func (s SectionView) DisplayStatus() string {
	if s.Status == models.SectionStatusCompleted {
		return string(models.SectionStatusCompleted)
	}
	if s.Ready {
		return "ready"
	}
	return string(models.SectionStatusPending)
}

type ViewModel struct {
	CustomerId string              `json:"customerId,omitempty"`
	Customer   models.CustomerForm `json:"customer"`
	Sections   []SectionView       `json:"sections"`
}

func (v ViewModel) Section(id models.SectionId) (SectionView, bool) {
	for _, s := range v.Sections {
		if s.Id == id {
			return s, true
		}
	}
	return SectionView{}, false
}

type Options struct {
	// MergeLocal keeps local pending payloads for slots the server has not
	// confirmed.
	MergeLocal bool
}

// Reconcile builds the view for every section. When customer is nil the
// sections cached in the draft stand in for the server state.
func Reconcile(customer *models.Customer, draft models.DraftState, opts Options) ViewModel {
	view := ViewModel{
		CustomerId: draft.CurrentCustomerId,
		Customer:   draft.Customer,
	}
	serverSections := draft.Sections
	if customer != nil {
		serverSections = customer.Sections()
		view.CustomerId = customer.ID
		view.Customer = customer.Form()
	}

	for _, id := range models.AllSections {
		view.Sections = append(view.Sections, reconcileSection(id, view.Customer.PlantType, serverSections[id], draft, opts))
	}
	return view
}

func reconcileSection(id models.SectionId, plantType string, record *models.SectionRecord, draft models.DraftState, opts Options) SectionView {
	slots := models.SlotsFor(id, plantType)
	sv := SectionView{
		Id:              id,
		Title:           id.Title(),
		Status:          models.SectionStatusPending,
		HasServerRecord: record != nil,
		Slots:           make([]SlotView, 0, len(slots)),
	}
	if record != nil && record.Status != "" {
		sv.Status = record.Status
	}
	// without a server record only local state exists
	keepLocal := opts.MergeLocal || record == nil

	for _, name := range slots {
		slot := SlotView{Name: name, State: SlotEmpty}
		if ref, ok := record.Photo(name); ok {
			slot.State = SlotConfirmed
			slot.ImageUrl = ref.ImageUrl
			slot.DriveId = ref.DriveId
			slot.Geolocation = ref.Geolocation
		} else if dataURL, ok := draft.Pending(id, name); ok && keepLocal {
			slot.State = SlotPending
			slot.DataURL = dataURL
			slot.Geolocation = draft.Geolocation(id, name)
			sv.Pending++
		}
		if slot.State != SlotEmpty {
			sv.Filled++
		}
		sv.Slots = append(sv.Slots, slot)
	}
	sv.Ready = sv.Status != models.SectionStatusCompleted && len(slots) > 0 && sv.Filled == len(slots)
	return sv
}

// Adopt folds an authoritative fetch into the draft. The customer snapshot
// and cached sections are replaced wholesale, and pending entries for slots
// the server has confirmed are dropped. Without mergeLocal every pending
// entry is dropped.
func Adopt(draft *models.DraftState, customer *models.Customer, mergeLocal bool) {
	draft.Normalize()
	if !mergeLocal {
		draft.ClearPhotos()
	}
	draft.Customer = customer.Form()
	draft.CurrentCustomerId = customer.ID
	draft.Sections = map[models.SectionId]*models.SectionRecord{}
	for id, record := range customer.Sections() {
		draft.Sections[id] = record.Clone()
		dropConfirmed(draft, id, record)
	}
}

// ApplyUpload folds a successful section upload into the draft: the
// section's pending entries are gone and the returned record is cached.
func ApplyUpload(draft *models.DraftState, section models.SectionId, record *models.SectionRecord) {
	draft.Normalize()
	draft.ClearSection(section)
	if record != nil {
		draft.Sections[section] = record.Clone()
	}
}

func dropConfirmed(draft *models.DraftState, id models.SectionId, record *models.SectionRecord) {
	for _, p := range record.Photos {
		if p.Confirmed() {
			draft.RemovePending(id, p.Title)
		}
	}
}
