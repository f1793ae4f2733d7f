package models

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func sampleDraft() DraftState {
	d := NewDraftState()
	d.Customer = CustomerForm{Name: "A", District: "D", PlantType: "4kw", Mobile: "9990001111", Address: "X"}
	d.CurrentCustomerId = "c1"
	d.SetPending(SectionModule, "Front View", "data:image/jpeg;base64,AQID", &LocationRecord{
		Latitude: 12.5, Longitude: 77.25, Accuracy: 8,
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Address:   "MG Road, Bengaluru",
	})
	d.SetPending(SectionModule, "Back View", "data:image/jpeg;base64,BAUG", nil)
	d.Sections[SectionInverter] = &SectionRecord{
		Status: SectionStatusCompleted,
		Photos: []PhotoRef{{Title: "Inverter Front", DriveId: "d1", ImageUrl: "https://img/1"}},
	}
	return d
}

func TestDraftState_JSONRoundTrip(t *testing.T) {
	d := sampleDraft()
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back DraftState
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	back.Normalize()
	if !reflect.DeepEqual(d, back) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", d, back)
	}
}

func TestDraftState_ReadsLegacyShape(t *testing.T) {
	legacy := `{"customer":{"name":"A","district":"D","plantType":"3kw","mobile":"1","address":"X"},
		"photos":{"module":{"Front View":"data:image/jpeg;base64,AQID"}},"currentCustomerId":null}`
	var d DraftState
	if err := json.Unmarshal([]byte(legacy), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	d.Normalize()
	if d.HasActiveCustomer() {
		t.Fatalf("null customer id must mean no active customer")
	}
	if _, ok := d.Pending(SectionModule, "Front View"); !ok {
		t.Fatalf("expected pending module photo")
	}
	if d.Geolocations == nil || d.Sections == nil {
		t.Fatalf("Normalize must create missing maps")
	}
}

func TestDraftState_RemovePendingDropsEmptySections(t *testing.T) {
	d := sampleDraft()
	d.RemovePending(SectionModule, "Front View")
	if d.Geolocation(SectionModule, "Front View") != nil {
		t.Fatalf("geolocation must be removed with the payload")
	}
	d.RemovePending(SectionModule, "Back View")
	if _, ok := d.Photos[SectionModule]; ok {
		t.Fatalf("empty section map must be dropped")
	}
	if len(d.PendingSections()) != 0 {
		t.Fatalf("expected no pending sections, got %v", d.PendingSections())
	}
}

func TestDraftState_SetPendingWithoutLocationClearsOldLocation(t *testing.T) {
	d := sampleDraft()
	d.SetPending(SectionModule, "Front View", "data:image/jpeg;base64,BwgJ", nil)
	if d.Geolocation(SectionModule, "Front View") != nil {
		t.Fatalf("stale geolocation kept for recaptured slot")
	}
}

func TestDraftState_CloneIsDeep(t *testing.T) {
	d := sampleDraft()
	c := d.Clone()
	c.Photos[SectionModule]["Front View"] = "changed"
	c.Geolocations[SectionModule]["Front View"].Address = "changed"
	c.Sections[SectionInverter].Photos[0].ImageUrl = "changed"
	if d.Photos[SectionModule]["Front View"] == "changed" ||
		d.Geolocations[SectionModule]["Front View"].Address == "changed" ||
		d.Sections[SectionInverter].Photos[0].ImageUrl == "changed" {
		t.Fatalf("Clone shares state with the original")
	}
}

func TestDraftState_PendingSectionsOrder(t *testing.T) {
	d := NewDraftState()
	d.SetPending(SectionWifi, "WiFi Configuration", "data:,x", nil)
	d.SetPending(SectionPanelSerials, "Panel S.No. 1", "data:,x", nil)
	d.SetPending(SectionModule, "Front View", "data:,x", nil)
	got := d.PendingSections()
	want := []SectionId{SectionPanelSerials, SectionModule, SectionWifi}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDraftState_PendingPhotosFollowSlotOrder(t *testing.T) {
	d := NewDraftState()
	d.SetPending(SectionModule, "Mounting Structure", "data:,3", nil)
	d.SetPending(SectionModule, "Front View", "data:,1", nil)
	got := d.PendingPhotos(SectionModule, SlotsFor(SectionModule, ""))
	if len(got) != 2 || got[0].Slot != "Front View" || got[1].Slot != "Mounting Structure" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestCustomer_SectionAccessors(t *testing.T) {
	var c Customer
	if c.Section(SectionModule) != nil {
		t.Fatalf("expected nil section")
	}
	c.SetSection(SectionTightness, &SectionRecord{Status: SectionStatusCompleted})
	if c.Tightness == nil || c.Section(SectionTightness).Status != SectionStatusCompleted {
		t.Fatalf("SetSection did not populate the embedded field")
	}
	if len(c.Sections()) != 1 {
		t.Fatalf("expected one section, got %d", len(c.Sections()))
	}
}

func TestCustomerFilter_Query(t *testing.T) {
	f := CustomerFilter{Name: " Ravi ", Mobile: "999"}
	if f.IsEmpty() {
		t.Fatalf("filter should not be empty")
	}
	if got := f.Query().Encode(); got != "mobile=999&name=Ravi" {
		t.Fatalf("unexpected query %q", got)
	}
	if !(CustomerFilter{District: "  "}).IsEmpty() {
		t.Fatalf("blank filter should be empty")
	}
}
