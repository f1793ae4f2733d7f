package models

import (
	"net/url"
	"strings"
	"time"
)

type PhotoRef struct {
	Title       string          `json:"title"`
	DriveId     string          `json:"driveId,omitempty"`
	ImageUrl    string          `json:"imageUrl,omitempty"`
	Geolocation *LocationRecord `json:"geolocation,omitempty"`
}

// Confirmed reports whether the backend has stored the photo.
func (p PhotoRef) Confirmed() bool {
	return p.ImageUrl != "" || p.DriveId != ""
}

type SectionRecord struct {
	Status SectionStatus `json:"status"`
	Photos []PhotoRef    `json:"photos"`
}

func (r *SectionRecord) Clone() *SectionRecord {
	if r == nil {
		return nil
	}
	c := &SectionRecord{Status: r.Status}
	if r.Photos != nil {
		c.Photos = make([]PhotoRef, len(r.Photos))
		for i, p := range r.Photos {
			p.Geolocation = p.Geolocation.Clone()
			c.Photos[i] = p
		}
	}
	return c
}

// Photo returns the confirmed reference stored for a slot title.
func (r *SectionRecord) Photo(title string) (PhotoRef, bool) {
	if r == nil {
		return PhotoRef{}, false
	}
	for _, p := range r.Photos {
		if p.Title == title && p.Confirmed() {
			return p, true
		}
	}
	return PhotoRef{}, false
}

// Customer is the backend record; each section is embedded under its own key.
type Customer struct {
	ID           string         `json:"_id"`
	Name         string         `json:"name"`
	District     string         `json:"district"`
	PlantType    string         `json:"plantType"`
	Mobile       string         `json:"mobile"`
	Address      string         `json:"address"`
	Technician   string         `json:"technician,omitempty"`
	PanelSerials *SectionRecord `json:"panelSerials,omitempty"`
	Module       *SectionRecord `json:"module,omitempty"`
	Inverter     *SectionRecord `json:"inverter,omitempty"`
	LA           *SectionRecord `json:"la,omitempty"`
	Earthing     *SectionRecord `json:"earthing,omitempty"`
	ACDB         *SectionRecord `json:"acdb,omitempty"`
	DCDB         *SectionRecord `json:"dcdb,omitempty"`
	Wifi         *SectionRecord `json:"wifi,omitempty"`
	Tightness    *SectionRecord `json:"tightness,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (c *Customer) sectionField(id SectionId) **SectionRecord {
	switch id {
	case SectionPanelSerials:
		return &c.PanelSerials
	case SectionModule:
		return &c.Module
	case SectionInverter:
		return &c.Inverter
	case SectionLA:
		return &c.LA
	case SectionEarthing:
		return &c.Earthing
	case SectionACDB:
		return &c.ACDB
	case SectionDCDB:
		return &c.DCDB
	case SectionWifi:
		return &c.Wifi
	case SectionTightness:
		return &c.Tightness
	}
	return nil
}

// Section returns nil when the backend has no record for the section.
func (c *Customer) Section(id SectionId) *SectionRecord {
	if c == nil {
		return nil
	}
	if f := c.sectionField(id); f != nil {
		return *f
	}
	return nil
}

func (c *Customer) SetSection(id SectionId, record *SectionRecord) {
	if f := c.sectionField(id); f != nil {
		*f = record
	}
}

// Sections collects the records the backend provided, keyed by section.
func (c *Customer) Sections() map[SectionId]*SectionRecord {
	out := make(map[SectionId]*SectionRecord)
	for _, id := range AllSections {
		if rec := c.Section(id); rec != nil {
			out[id] = rec
		}
	}
	return out
}

func (c *Customer) Form() CustomerForm {
	return CustomerForm{
		Name:       c.Name,
		District:   c.District,
		PlantType:  c.PlantType,
		Mobile:     c.Mobile,
		Address:    c.Address,
		Technician: c.Technician,
	}
}

// CustomerForm is the technician's form as kept in the draft.
type CustomerForm struct {
	Name       string `json:"name"`
	District   string `json:"district"`
	PlantType  string `json:"plantType"`
	Mobile     string `json:"mobile"`
	Address    string `json:"address"`
	Technician string `json:"technician,omitempty"`
}

type NewCustomer struct {
	Name      string `json:"name" validate:"required"`
	District  string `json:"district" validate:"required"`
	PlantType string `json:"plantType" validate:"required,oneof=3kw 4kw 5kw 6kw 8kw"`
	Mobile    string `json:"mobile" validate:"required,mobile"`
	Address   string `json:"address" validate:"required"`
}

func (f CustomerForm) NewCustomer() NewCustomer {
	return NewCustomer{
		Name:      strings.TrimSpace(f.Name),
		District:  strings.TrimSpace(f.District),
		PlantType: strings.TrimSpace(f.PlantType),
		Mobile:    strings.TrimSpace(f.Mobile),
		Address:   strings.TrimSpace(f.Address),
	}
}

type UpdateCustomer struct {
	Name       string `json:"name" validate:"required"`
	District   string `json:"district" validate:"required"`
	PlantType  string `json:"plantType" validate:"required,oneof=3kw 4kw 5kw 6kw 8kw"`
	Mobile     string `json:"mobile" validate:"required,mobile"`
	Address    string `json:"address"`
	Technician string `json:"technician"`
}

func (f CustomerForm) UpdateCustomer() UpdateCustomer {
	return UpdateCustomer{
		Name:       strings.TrimSpace(f.Name),
		District:   strings.TrimSpace(f.District),
		PlantType:  strings.TrimSpace(f.PlantType),
		Mobile:     strings.TrimSpace(f.Mobile),
		Address:    strings.TrimSpace(f.Address),
		Technician: strings.TrimSpace(f.Technician),
	}
}

type CustomerFilter struct {
	Name     string `json:"name,omitempty"`
	District string `json:"district,omitempty"`
	Mobile   string `json:"mobile,omitempty"`
}

func (f CustomerFilter) IsEmpty() bool {
	return strings.TrimSpace(f.Name) == "" &&
		strings.TrimSpace(f.District) == "" &&
		strings.TrimSpace(f.Mobile) == ""
}

func (f CustomerFilter) Query() url.Values {
	q := url.Values{}
	if v := strings.TrimSpace(f.Name); v != "" {
		q.Set("name", v)
	}
	if v := strings.TrimSpace(f.District); v != "" {
		q.Set("district", v)
	}
	if v := strings.TrimSpace(f.Mobile); v != "" {
		q.Set("mobile", v)
	}
	return q
}
