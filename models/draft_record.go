package models

import (
	"time"

	"gorm.io/datatypes"
)

// DraftRecord persists a draft in the sql draft store, one row per key.
type DraftRecord struct {
	ID        uint           `gorm:"primary_key" json:"id"`
	Key       string         `gorm:"size:100;uniqueIndex;not null" json:"key"`
	Payload   datatypes.JSON `json:"payload"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DraftRecord) TableName() string {
	return "draft_records"
}
