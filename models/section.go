package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownSection = errors.New("unknown section")
	ErrUnknownSlot    = errors.New("unknown photo slot")
)

type SectionId string

const (
	SectionPanelSerials SectionId = "panelSerials"
	SectionModule       SectionId = "module"
	SectionInverter     SectionId = "inverter"
	SectionLA           SectionId = "la"
	SectionEarthing     SectionId = "earthing"
	SectionACDB         SectionId = "acdb"
	SectionDCDB         SectionId = "dcdb"
	SectionWifi         SectionId = "wifi"
	SectionTightness    SectionId = "tightness"
)

// AllSections is the fixed display and submission order.
var AllSections = []SectionId{
	SectionPanelSerials,
	SectionModule,
	SectionInverter,
	SectionLA,
	SectionEarthing,
	SectionACDB,
	SectionDCDB,
	SectionWifi,
	SectionTightness,
}

func (s SectionId) String() string {
	return string(s)
}

func (s SectionId) IsValid() bool {
	for _, id := range AllSections {
		if id == s {
			return true
		}
	}
	return false
}

// Title is the heading used on the admin card, e.g. "Module Photos".
func (s SectionId) Title() string {
	if s == "" {
		return ""
	}
	str := string(s)
	return strings.ToUpper(str[:1]) + str[1:] + " Photos"
}

func ParseSectionId(input string) (SectionId, error) {
	id := SectionId(strings.TrimSpace(input))
	if !id.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, input)
	}
	return id, nil
}

type SectionStatus string

const (
	SectionStatusPending   SectionStatus = "pending"
	SectionStatusCompleted SectionStatus = "completed"
)

type PlantType string

const (
	PlantType3kw PlantType = "3kw"
	PlantType4kw PlantType = "4kw"
	PlantType5kw PlantType = "5kw"
	PlantType6kw PlantType = "6kw"
	PlantType8kw PlantType = "8kw"
)

var panelSerialCounts = map[PlantType]int{
	PlantType3kw: 6,
	PlantType4kw: 8,
	PlantType5kw: 9,
	PlantType6kw: 11,
	PlantType8kw: 15,
}

// PanelSerialCount returns 0 for plant types outside the table.
func PanelSerialCount(plantType string) int {
	return panelSerialCounts[PlantType(plantType)]
}

func PlantTypes() []PlantType {
	return []PlantType{PlantType3kw, PlantType4kw, PlantType5kw, PlantType6kw, PlantType8kw}
}

var fixedSlots = map[SectionId][]string{
	SectionModule:    {"Front View", "Back View", "Mounting Structure"},
	SectionInverter:  {"Inverter Front", "Inverter Serial Label", "Inverter Display"},
	SectionLA:        {"Lightning Arrestor", "LA Earthing Connection"},
	SectionEarthing:  {"Earthing Pit", "Earthing Connection"},
	SectionACDB:      {"ACDB Outside", "ACDB Inside"},
	SectionDCDB:      {"DCDB Outside", "DCDB Inside"},
	SectionWifi:      {"WiFi Configuration"},
	SectionTightness: {"Module Clamp Tightness", "Structure Bolt Tightness"},
}

func PanelSerialSlot(n int) string {
	return fmt.Sprintf("Panel S.No. %d", n)
}

// SlotsFor lists the ordered slot names of a section. Only panelSerials
// depends on the plant type.
func SlotsFor(section SectionId, plantType string) []string {
	if section == SectionPanelSerials {
		count := PanelSerialCount(plantType)
		slots := make([]string, 0, count)
		for i := 1; i <= count; i++ {
			slots = append(slots, PanelSerialSlot(i))
		}
		return slots
	}
	fixed := fixedSlots[section]
	slots := make([]string, len(fixed))
	copy(slots, fixed)
	return slots
}

func ValidateSlot(section SectionId, plantType, slot string) error {
	if !section.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}
	for _, s := range SlotsFor(section, plantType) {
		if s == slot {
			return nil
		}
	}
	return fmt.Errorf("%w: %q in section %s (plant type %q)", ErrUnknownSlot, slot, section, plantType)
}
