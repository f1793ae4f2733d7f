package utils

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
)

const (
	ThumbnailWidth = 200

	// MaxPhotoSizeBytes bounds a single captured photo before processing.
	MaxPhotoSizeBytes int64 = 25 * 1024 * 1024
)

var ErrorNotAnImage = errors.New("file is not a supported image")

// NormalizePhoto decodes an image (honouring EXIF orientation), shrinks it so
// its longest edge is at most maxEdge and re-encodes it as JPEG.
func NormalizePhoto(data []byte, maxEdge, quality int) ([]byte, error) {
	if int64(len(data)) > MaxPhotoSizeBytes {
		return nil, fmt.Errorf("photo exceeds %d bytes", MaxPhotoSizeBytes)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrorNotAnImage, err)
	}
	b := img.Bounds()
	if maxEdge > 0 && (b.Dx() > maxEdge || b.Dy() > maxEdge) {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Thumbnail renders a JPEG preview ThumbnailWidth pixels wide.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrorNotAnImage, err)
	}
	thumbnail := imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
