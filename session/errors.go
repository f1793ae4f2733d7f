package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kamnsolar/field_capture/upload"
)

var (
	ErrNoActiveCustomer = upload.ErrNoActiveCustomer
	ErrCustomerNotFound = errors.New("no matching customer found")
	ErrCustomerActive   = errors.New("a customer is already active; change customer first")
	ErrNotEditing       = errors.New("customer details are not being edited")
	ErrSlotConfirmed    = errors.New("photo slot is already uploaded")
	ErrUnknownField     = errors.New("unknown customer field")
)

// ValidationError maps each rejected form field to the rule it failed.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid customer details: " + strings.Join(parts, ", ")
}
