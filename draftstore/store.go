package draftstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kamnsolar/field_capture/config"
	"github.com/kamnsolar/field_capture/models"
	"github.com/sirupsen/logrus"
)

// Backend persists the serialized draft under one well-known key.
type Backend interface {
	// Read reports found=false when nothing has been saved yet.
	Read(ctx context.Context) ([]byte, bool, error)
	Write(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
	Name() string
}

// Locker is implemented by backends that can serialize read-modify-write
// across processes.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Store is the process-wide handle on the draft. It keeps an in-memory copy
// identical to what was last persisted.
type Store struct {
	backend Backend

	mu      sync.Mutex
	current models.DraftState
	loaded  bool
}

func New(backend Backend) *Store {
	return &Store{backend: backend, current: models.NewDraftState()}
}

func (s *Store) Backend() Backend {
	return s.backend
}

// Load reads the persisted draft. Missing or corrupt data yields an empty
// draft; Load never fails. After a backend read error the store stays
// unloaded, so the next Update reads again instead of overwriting the
// persisted record.
func (s *Store) Load(ctx context.Context) models.DraftState {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, err := s.read(ctx)
	if err != nil {
		s.current = models.NewDraftState()
		s.loaded = false
		return s.current.Clone()
	}
	s.current = draft
	s.loaded = true
	return s.current.Clone()
}

// read only fails on backend errors; missing or corrupt data is an empty
// draft.
func (s *Store) read(ctx context.Context) (models.DraftState, error) {
	logger := config.GetLogger()
	data, found, err := s.backend.Read(ctx)
	if err != nil {
		config.LogError(logger, "draftstore", "read", "reading draft from "+s.backend.Name(), nil, err)
		return models.DraftState{}, fmt.Errorf("read draft: %w", err)
	}
	if !found || len(data) == 0 {
		return models.NewDraftState(), nil
	}
	var draft models.DraftState
	if err := json.Unmarshal(data, &draft); err != nil {
		logger.WithFields(logrus.Fields{
			"module":  "draftstore",
			"backend": s.backend.Name(),
		}).Warn("discarding corrupt draft: " + err.Error())
		return models.NewDraftState(), nil
	}
	draft.Normalize()
	return draft, nil
}

// Save persists draft synchronously and makes it the current copy. A write
// failure is logged and returned; the in-memory copy still advances.
func (s *Store) Save(ctx context.Context, draft models.DraftState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, draft)
}

func (s *Store) save(ctx context.Context, draft models.DraftState) error {
	draft.Normalize()
	s.current = draft.Clone()
	s.loaded = true
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.backend.Write(ctx, data); err != nil {
		config.LogError(config.GetLogger(), "draftstore", "Save", "writing draft to "+s.backend.Name(), nil, err)
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// ClearPhotos wipes pending photos, their locations and cached sections,
// keeping the customer form and the active customer id.
func (s *Store) ClearPhotos(ctx context.Context) error {
	_, err := s.Update(ctx, func(d *models.DraftState) error {
		d.ClearPhotos()
		return nil
	})
	return err
}

// ClearAll removes the persisted draft entirely.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = models.NewDraftState()
	s.loaded = true
	if err := s.backend.Delete(ctx); err != nil {
		config.LogError(config.GetLogger(), "draftstore", "ClearAll", "deleting draft from "+s.backend.Name(), nil, err)
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

// Update runs fn on a copy of the current draft and persists the result.
// When fn fails nothing is saved. Backends that implement Locker are locked
// for the duration and the draft is re-read under the lock. A failed read
// aborts the update without saving.
func (s *Store) Update(ctx context.Context, fn func(*models.DraftState) error) (models.DraftState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if locker, ok := s.backend.(Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			return s.current.Clone(), fmt.Errorf("lock draft: %w", err)
		}
		defer unlock()
		s.loaded = false
	}
	if !s.loaded {
		draft, err := s.read(ctx)
		if err != nil {
			return s.current.Clone(), err
		}
		s.current = draft
		s.loaded = true
	}

	next := s.current.Clone()
	if err := fn(&next); err != nil {
		return s.current.Clone(), err
	}
	if err := s.save(ctx, next); err != nil {
		return next.Clone(), err
	}
	return next.Clone(), nil
}

// Current returns the in-memory copy without touching the backend.
func (s *Store) Current() models.DraftState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}
