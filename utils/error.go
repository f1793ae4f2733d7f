package utils

import "errors"

var (
	ErrorInvalidDataURL = errors.New("invalid data url")
)
