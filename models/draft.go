package models

import "sort"

// DraftState is the whole persisted technician draft. Photos hold data URLs
// that the backend has not confirmed yet; Sections hold the last
// authoritative section records.
type DraftState struct {
	Customer          CustomerForm                             `json:"customer"`
	Photos            map[SectionId]map[string]string          `json:"photos"`
	Geolocations      map[SectionId]map[string]*LocationRecord `json:"geolocations"`
	Sections          map[SectionId]*SectionRecord             `json:"sections"`
	CurrentCustomerId string                                   `json:"currentCustomerId,omitempty"`
}

type PendingPhoto struct {
	Section     SectionId
	Slot        string
	DataURL     string
	Geolocation *LocationRecord
}

func NewDraftState() DraftState {
	return DraftState{
		Photos:       map[SectionId]map[string]string{},
		Geolocations: map[SectionId]map[string]*LocationRecord{},
		Sections:     map[SectionId]*SectionRecord{},
	}
}

// Normalize fills in nil maps left by older or hand-edited payloads.
func (d *DraftState) Normalize() {
	if d.Photos == nil {
		d.Photos = map[SectionId]map[string]string{}
	}
	if d.Geolocations == nil {
		d.Geolocations = map[SectionId]map[string]*LocationRecord{}
	}
	if d.Sections == nil {
		d.Sections = map[SectionId]*SectionRecord{}
	}
}

func (d DraftState) Clone() DraftState {
	c := NewDraftState()
	c.Customer = d.Customer
	c.CurrentCustomerId = d.CurrentCustomerId
	for section, slots := range d.Photos {
		m := make(map[string]string, len(slots))
		for slot, v := range slots {
			m[slot] = v
		}
		c.Photos[section] = m
	}
	for section, slots := range d.Geolocations {
		m := make(map[string]*LocationRecord, len(slots))
		for slot, v := range slots {
			m[slot] = v.Clone()
		}
		c.Geolocations[section] = m
	}
	for section, rec := range d.Sections {
		c.Sections[section] = rec.Clone()
	}
	return c
}

func (d DraftState) HasActiveCustomer() bool {
	return d.CurrentCustomerId != ""
}

func (d DraftState) Pending(section SectionId, slot string) (string, bool) {
	v, ok := d.Photos[section][slot]
	return v, ok && v != ""
}

func (d DraftState) Geolocation(section SectionId, slot string) *LocationRecord {
	return d.Geolocations[section][slot]
}

// SetPending stores a captured payload. A nil location clears any location
// left from an earlier capture of the same slot.
func (d *DraftState) SetPending(section SectionId, slot, dataURL string, loc *LocationRecord) {
	d.Normalize()
	if d.Photos[section] == nil {
		d.Photos[section] = map[string]string{}
	}
	d.Photos[section][slot] = dataURL
	if loc == nil {
		d.removeGeolocation(section, slot)
		return
	}
	if d.Geolocations[section] == nil {
		d.Geolocations[section] = map[string]*LocationRecord{}
	}
	d.Geolocations[section][slot] = loc
}

func (d *DraftState) RemovePending(section SectionId, slot string) {
	if slots, ok := d.Photos[section]; ok {
		delete(slots, slot)
		if len(slots) == 0 {
			delete(d.Photos, section)
		}
	}
	d.removeGeolocation(section, slot)
}

func (d *DraftState) removeGeolocation(section SectionId, slot string) {
	if slots, ok := d.Geolocations[section]; ok {
		delete(slots, slot)
		if len(slots) == 0 {
			delete(d.Geolocations, section)
		}
	}
}

func (d *DraftState) ClearSection(section SectionId) {
	delete(d.Photos, section)
	delete(d.Geolocations, section)
}

// ClearPhotos drops pending payloads, their locations and the cached
// server sections. The customer form and id are kept.
func (d *DraftState) ClearPhotos() {
	d.Photos = map[SectionId]map[string]string{}
	d.Geolocations = map[SectionId]map[string]*LocationRecord{}
	d.Sections = map[SectionId]*SectionRecord{}
}

// PendingSections lists sections with at least one pending payload, in
// AllSections order followed by any unknown keys sorted by name.
func (d DraftState) PendingSections() []SectionId {
	var out []SectionId
	seen := map[SectionId]bool{}
	for _, id := range AllSections {
		if len(d.Photos[id]) > 0 {
			out = append(out, id)
			seen[id] = true
		}
	}
	var extra []string
	for id, slots := range d.Photos {
		if !seen[id] && len(slots) > 0 {
			extra = append(extra, string(id))
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		out = append(out, SectionId(id))
	}
	return out
}

// PendingPhotos returns the section's pending payloads ordered by slots.
// Pending entries for names outside slots are appended in name order.
func (d DraftState) PendingPhotos(section SectionId, slots []string) []PendingPhoto {
	pending := d.Photos[section]
	var out []PendingPhoto
	used := map[string]bool{}
	for _, slot := range slots {
		if v, ok := pending[slot]; ok && v != "" {
			out = append(out, PendingPhoto{Section: section, Slot: slot, DataURL: v, Geolocation: d.Geolocation(section, slot)})
			used[slot] = true
		}
	}
	var extra []string
	for slot, v := range pending {
		if !used[slot] && v != "" {
			extra = append(extra, slot)
		}
	}
	sort.Strings(extra)
	for _, slot := range extra {
		out = append(out, PendingPhoto{Section: section, Slot: slot, DataURL: pending[slot], Geolocation: d.Geolocation(section, slot)})
	}
	return out
}
