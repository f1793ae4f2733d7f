package draftstore

import (
	"context"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/kamnsolar/field_capture/config"
	"github.com/kamnsolar/field_capture/models"
)

func TestRedisBackend_ConcurrentUpdates(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 and REDIS_ADDRESS to run redis tests")
	}
	ctx := context.Background()
	client, locker, err := config.ConnectRedis(ctx, config.RedisAddress(), 1)
	if err != nil {
		t.Fatalf("ConnectRedis: %v", err)
	}
	key := "test:draft:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	backend := NewRedisBackend(client, locker, key)
	want := sampleDraft()
	if err := New(backend).Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := New(backend).Load(ctx); !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch")
	}

	// two handles on the same key must not lose each other's writes
	a, b := New(backend), New(backend)
	slots := models.SlotsFor(models.SectionPanelSerials, "4kw")
	var wg sync.WaitGroup
	for i, slot := range slots {
		store := a
		if i%2 == 1 {
			store = b
		}
		wg.Add(1)
		go func(store *Store, slot string) {
			defer wg.Done()
			if _, err := store.Update(ctx, func(d *models.DraftState) error {
				d.SetPending(models.SectionPanelSerials, slot, "data:,x", nil)
				return nil
			}); err != nil {
				t.Errorf("Update %s: %v", slot, err)
			}
		}(store, slot)
	}
	wg.Wait()
	got := New(backend).Load(ctx)
	if len(got.Photos[models.SectionPanelSerials]) != len(slots) {
		t.Fatalf("expected %d pending serials, got %d", len(slots), len(got.Photos[models.SectionPanelSerials]))
	}
}
