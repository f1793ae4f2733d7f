package draftstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/kamnsolar/field_capture/models"
)

func sampleDraft() models.DraftState {
	d := models.NewDraftState()
	d.Customer = models.CustomerForm{Name: "A", District: "D", PlantType: "4kw", Mobile: "9990001111", Address: "X"}
	d.CurrentCustomerId = "c1"
	d.SetPending(models.SectionModule, "Front View", "data:image/jpeg;base64,AQID", &models.LocationRecord{
		Latitude: 1.5, Longitude: 2.5, Accuracy: 10,
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Address:   "1.500000, 2.500000",
	})
	d.Sections[models.SectionWifi] = &models.SectionRecord{
		Status: models.SectionStatusCompleted,
		Photos: []models.PhotoRef{{Title: "WiFi Configuration", DriveId: "w1", ImageUrl: "https://img/w1"}},
	}
	return d
}

func TestStore_SaveThenLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	backends := map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   NewFileBackend(filepath.Join(t.TempDir(), "nested", "draft.json")),
	}
	for name, backend := range backends {
		want := sampleDraft()
		if err := New(backend).Save(ctx, want); err != nil {
			t.Fatalf("%s: Save: %v", name, err)
		}
		got := New(backend).Load(ctx)
		if !reflect.DeepEqual(want, got) {
			t.Fatalf("%s: round trip mismatch\nwant %+v\ngot  %+v", name, want, got)
		}
	}
}

func TestStore_LoadMissingOrCorruptYieldsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "draft.json")
	store := New(NewFileBackend(path))
	if got := store.Load(ctx); !reflect.DeepEqual(got, models.NewDraftState()) {
		t.Fatalf("missing file: expected empty draft, got %+v", got)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if got := store.Load(ctx); !reflect.DeepEqual(got, models.NewDraftState()) {
		t.Fatalf("corrupt file: expected empty draft, got %+v", got)
	}
}

func TestStore_UpdateFailureSavesNothing(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := New(backend)
	if err := store.Save(ctx, sampleDraft()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	writes := backend.Writes()
	boom := errors.New("boom")
	_, err := store.Update(ctx, func(d *models.DraftState) error {
		d.ClearPhotos()
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if backend.Writes() != writes {
		t.Fatalf("failed update must not write")
	}
	if _, ok := store.Current().Pending(models.SectionModule, "Front View"); !ok {
		t.Fatalf("failed update must not change the current draft")
	}
}

func TestStore_UpdatePersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := New(backend)
	store.Load(ctx)
	next, err := store.Update(ctx, func(d *models.DraftState) error {
		d.SetPending(models.SectionLA, "Lightning Arrestor", "data:,x", nil)
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	reloaded := New(backend).Load(ctx)
	if !reflect.DeepEqual(next, reloaded) || !reflect.DeepEqual(next, store.Current()) {
		t.Fatalf("persisted and in-memory copies diverged")
	}
}

func TestStore_ClearPhotosKeepsCustomer(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryBackend())
	if err := store.Save(ctx, sampleDraft()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.ClearPhotos(ctx); err != nil {
		t.Fatalf("ClearPhotos: %v", err)
	}
	got := store.Load(ctx)
	if len(got.Photos) != 0 || len(got.Geolocations) != 0 || len(got.Sections) != 0 {
		t.Fatalf("photo maps not cleared: %+v", got)
	}
	if got.CurrentCustomerId != "c1" || got.Customer.Name != "A" {
		t.Fatalf("ClearPhotos must keep the customer, got %+v", got)
	}
}

func TestStore_ClearAll(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "draft.json")
	store := New(NewFileBackend(path))
	if err := store.Save(ctx, sampleDraft()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("draft file should be removed, stat err=%v", err)
	}
	if !reflect.DeepEqual(store.Current(), models.NewDraftState()) {
		t.Fatalf("current draft should be empty")
	}
	if err := store.ClearAll(ctx); err != nil {
		t.Fatalf("second ClearAll: %v", err)
	}
}

func TestStore_CurrentIsACopy(t *testing.T) {
	ctx := context.Background()
	store := New(NewMemoryBackend())
	if err := store.Save(ctx, sampleDraft()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	c := store.Current()
	c.RemovePending(models.SectionModule, "Front View")
	if _, ok := store.Current().Pending(models.SectionModule, "Front View"); !ok {
		t.Fatalf("mutating Current() leaked into the store")
	}
}

var errFlakyRead = errors.New("connection reset")

// flakyBackend fails the next failReads reads, optionally acting as a Locker.
type flakyBackend struct {
	*MemoryBackend
	failReads int
}

func (f *flakyBackend) Read(ctx context.Context) ([]byte, bool, error) {
	if f.failReads > 0 {
		f.failReads--
		return nil, false, errFlakyRead
	}
	return f.MemoryBackend.Read(ctx)
}

type lockedFlakyBackend struct {
	*flakyBackend
}

func (l *lockedFlakyBackend) Lock(ctx context.Context) (func(), error) {
	return func() {}, nil
}

func TestStore_UpdateReadErrorUnderLockKeepsDraft(t *testing.T) {
	ctx := context.Background()
	backend := &lockedFlakyBackend{flakyBackend: &flakyBackend{MemoryBackend: NewMemoryBackend()}}
	store := New(backend)
	if err := store.Save(ctx, sampleDraft()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	writes := backend.Writes()

	backend.failReads = 1
	_, err := store.Update(ctx, func(d *models.DraftState) error {
		d.SetPending(models.SectionInverter, "Inverter Front", "data:image/jpeg;base64,AQID", nil)
		return nil
	})
	if !errors.Is(err, errFlakyRead) {
		t.Fatalf("expected read error, got %v", err)
	}
	if backend.Writes() != writes {
		t.Fatalf("failed read must not be followed by a write")
	}

	got := New(backend).Load(ctx)
	if !reflect.DeepEqual(got, sampleDraft()) {
		t.Fatalf("persisted draft changed after failed read\nwant %+v\ngot  %+v", sampleDraft(), got)
	}

	// the next update succeeds on the real draft
	next, err := store.Update(ctx, func(d *models.DraftState) error {
		d.SetPending(models.SectionInverter, "Inverter Front", "data:image/jpeg;base64,AQID", nil)
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if next.CurrentCustomerId != "c1" || len(next.PendingSections()) != 2 {
		t.Fatalf("update did not build on the persisted draft: %+v", next)
	}
}

func TestStore_LoadReadErrorDoesNotOverwriteOnUpdate(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{MemoryBackend: NewMemoryBackend()}
	if err := New(backend).Save(ctx, sampleDraft()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	backend.failReads = 2
	store := New(backend)
	if got := store.Load(ctx); got.HasActiveCustomer() {
		t.Fatalf("failed load should present an empty draft")
	}
	if _, err := store.Update(ctx, func(d *models.DraftState) error {
		d.Customer.Name = "B"
		return nil
	}); !errors.Is(err, errFlakyRead) {
		t.Fatalf("expected read error, got %v", err)
	}

	next, err := store.Update(ctx, func(d *models.DraftState) error {
		d.Customer.Name = "B"
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if next.CurrentCustomerId != "c1" || next.Customer.Name != "B" {
		t.Fatalf("update lost the persisted draft: %+v", next)
	}
	if _, ok := next.Pending(models.SectionModule, "Front View"); !ok {
		t.Fatalf("pending photo lost after a failed load")
	}
}
