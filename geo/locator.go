package geo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kamnsolar/field_capture/config"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
)

// Fix is a raw device position before reverse geocoding.
type Fix struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
}

// Locator is a source of device positions.
type Locator interface {
	Locate(ctx context.Context) (Fix, error)
}

type LocatorFunc func(ctx context.Context) (Fix, error)

func (f LocatorFunc) Locate(ctx context.Context) (Fix, error) {
	return f(ctx)
}

// StaticLocator always reports the same position, stamped with the time of
// the request unless the fix carries its own timestamp.
type StaticLocator struct {
	Fix Fix
}

func (s StaticLocator) Locate(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	fix := s.Fix
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now().UTC()
	}
	return fix, nil
}

// DeniedLocator models a device where location access was refused.
type DeniedLocator struct{}

func (DeniedLocator) Locate(ctx context.Context) (Fix, error) {
	return Fix{}, ErrPermissionDenied
}

// Chain tries each locator in order and returns the first fix.
type Chain []Locator

func (c Chain) Locate(ctx context.Context) (Fix, error) {
	var errs []error
	for _, l := range c {
		if l == nil {
			continue
		}
		fix, err := l.Locate(ctx)
		if err == nil {
			return fix, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return Fix{}, ErrPositionUnavailable
	}
	return Fix{}, errors.Join(errs...)
}

// CachingLocator reuses the last fix while it is younger than MaxAge.
type CachingLocator struct {
	Inner  Locator
	MaxAge time.Duration
	Now    func() time.Time

	mu   sync.Mutex
	last *Fix
}

func NewCachingLocator(inner Locator, maxAge time.Duration) *CachingLocator {
	return &CachingLocator{Inner: inner, MaxAge: maxAge}
}

func (c *CachingLocator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *CachingLocator) Locate(ctx context.Context) (Fix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last != nil && c.now().Sub(c.last.Timestamp) <= c.MaxAge {
		return *c.last, nil
	}
	fix, err := c.Inner.Locate(ctx)
	if err != nil {
		return Fix{}, err
	}
	c.last = &fix
	return fix, nil
}

// DeviceLocatorFromEnv returns the configured device source: denied when
// GEO_DISABLED is set, a static fix from DEVICE_LAT/DEVICE_LNG, or a source
// that is always unavailable.
func DeviceLocatorFromEnv() Locator {
	if config.GeoDisabled() {
		return DeniedLocator{}
	}
	lat, lng, accuracy, ok := config.DeviceFix()
	if !ok {
		return LocatorFunc(func(ctx context.Context) (Fix, error) {
			return Fix{}, ErrPositionUnavailable
		})
	}
	return NewCachingLocator(StaticLocator{Fix: Fix{Latitude: lat, Longitude: lng, Accuracy: accuracy}}, config.GeoMaxAge())
}
