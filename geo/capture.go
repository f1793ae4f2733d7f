package geo

import (
	"context"
	"time"

	"github.com/kamnsolar/field_capture/config"
	"github.com/kamnsolar/field_capture/models"
	"github.com/kamnsolar/field_capture/utils"
	"github.com/sirupsen/logrus"
)

// Capturer turns a device fix into a LocationRecord. Capture never fails:
// a missing fix yields nil and a failed lookup yields a coordinate address.
type Capturer struct {
	Locator  Locator
	Geocoder Geocoder
	Timeout  time.Duration
}

func NewCapturer(locator Locator, geocoder Geocoder, timeout time.Duration) *Capturer {
	return &Capturer{Locator: locator, Geocoder: geocoder, Timeout: timeout}
}

func NewCapturerFromEnv() *Capturer {
	return NewCapturer(DeviceLocatorFromEnv(), NewNominatimGeocoderFromEnv(), config.GeoTimeout())
}

// Capture consults extra locators first, then the device locator.
func (c *Capturer) Capture(ctx context.Context, extra ...Locator) *models.LocationRecord {
	logger := config.GetLogger()
	if skip, ok := utils.GetSkipGeolocationFromContext(ctx); ok && skip {
		return nil
	}

	chain := make(Chain, 0, len(extra)+1)
	chain = append(chain, extra...)
	if c.Locator != nil {
		chain = append(chain, c.Locator)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	locateCtx, cancel := context.WithTimeout(ctx, timeout)
	fix, err := chain.Locate(locateCtx)
	cancel()
	if err != nil {
		logger.WithFields(logrus.Fields{
			"module": "geo",
			"reason": err.Error(),
		}).Info("location unavailable; continuing without geolocation")
		return nil
	}

	record := &models.LocationRecord{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Accuracy:  fix.Accuracy,
		Timestamp: fix.Timestamp,
		Address:   models.CoordinateLabel(fix.Latitude, fix.Longitude),
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	if c.Geocoder == nil {
		return record
	}
	lookupCtx, cancelLookup := context.WithTimeout(ctx, timeout)
	defer cancelLookup()
	address, err := c.Geocoder.Reverse(lookupCtx, fix.Latitude, fix.Longitude)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"module": "geo",
			"lat":    fix.Latitude,
			"lng":    fix.Longitude,
		}).Warn("reverse geocoding failed: " + err.Error())
		return record
	}
	if address != "" {
		record.Address = address
	}
	return record
}
