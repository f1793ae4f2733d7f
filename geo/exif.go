package geo

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// ExifLocator reads the GPS position embedded in a photo.
type ExifLocator struct {
	Data []byte
}

func (e ExifLocator) Locate(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	x, err := exif.Decode(bytes.NewReader(e.Data))
	if err != nil {
		return Fix{}, fmt.Errorf("%w: no exif: %v", ErrPositionUnavailable, err)
	}
	lat, lng, err := x.LatLong()
	if err != nil {
		return Fix{}, fmt.Errorf("%w: no gps tags: %v", ErrPositionUnavailable, err)
	}
	ts, err := x.DateTime()
	if err != nil {
		ts = time.Now()
	}
	return Fix{Latitude: lat, Longitude: lng, Timestamp: ts.UTC()}, nil
}
