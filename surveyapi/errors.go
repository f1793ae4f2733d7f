package surveyapi

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError means the request could not be sent or the response body
// could not be read or parsed.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is a non-2xx response. Message carries the backend's
// {error} text when present, otherwise the raw body.
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: api error %d: %s", e.Op, e.StatusCode, e.Message)
}

func IsNotFound(err error) bool {
	var se *ServerError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func IsUnauthorized(err error) bool {
	var se *ServerError
	return errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden)
}
