package utils

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const defaultImageMimeType = "image/jpeg"

// EncodeDataURL produces the "data:<mime>;base64,<payload>" form the draft
// keeps for locally captured photos.
func EncodeDataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL returns the mime type and raw bytes of a base64 data URL.
// A missing mime type defaults to image/jpeg.
func DecodeDataURL(dataURL string) (string, []byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", nil, ErrorInvalidDataURL
	}
	comma := strings.IndexByte(dataURL, ',')
	if comma < 0 {
		return "", nil, ErrorInvalidDataURL
	}
	header := dataURL[len("data:"):comma]
	payload := dataURL[comma+1:]
	if !strings.HasSuffix(header, ";base64") {
		return "", nil, fmt.Errorf("%w: payload is not base64", ErrorInvalidDataURL)
	}
	mimeType := strings.TrimSuffix(header, ";base64")
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if mimeType == "" {
		mimeType = defaultImageMimeType
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrorInvalidDataURL, err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty payload", ErrorInvalidDataURL)
	}
	return mimeType, data, nil
}

func ExtensionFromMimeType(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
