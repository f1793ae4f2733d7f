package utils

import (
	"encoding/json"
	"fmt"
	"io"
)

// Marshal generic struct to JSON
func MarshalToJSON[T any](input T) (string, error) {
	jsonData, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

// PrintJSON writes input as indented JSON, used by the CLI for --json output.
func PrintJSON[T any](w io.Writer, input T) error {
	jsonData, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}
