package models

import (
	"fmt"
	"time"
)

type LocationRecord struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
	Address   string    `json:"address"`
}

// CoordinateLabel is the address used when reverse geocoding fails.
func CoordinateLabel(lat, lng float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lng)
}

func (l *LocationRecord) Clone() *LocationRecord {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
