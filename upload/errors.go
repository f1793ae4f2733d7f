package upload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kamnsolar/field_capture/models"
)

var (
	ErrNoActiveCustomer = errors.New("no active customer")
	// ErrUploadNotConfirmed means the backend accepted the request but its
	// response does not confirm every uploaded slot.
	ErrUploadNotConfirmed = errors.New("response could not be parsed: upload not confirmed")
)

// ValidationError is raised before any network call: Missing lists slots
// with neither a pending payload nor a confirmed photo, Unreadable lists
// pending payloads that could not be decoded.
type ValidationError struct {
	Section    models.SectionId
	Missing    []string
	Unreadable []string
	Reason     string
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing photos: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unreadable) > 0 {
		parts = append(parts, "unreadable photos: "+strings.Join(e.Unreadable, ", "))
	}
	return fmt.Sprintf("section %s: %s", e.Section, strings.Join(parts, "; "))
}

// UploadError wraps the transport or backend failure of one section.
type UploadError struct {
	Section models.SectionId
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload section %s: %v", e.Section, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
