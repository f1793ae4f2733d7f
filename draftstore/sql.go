package draftstore

import (
	"context"
	"errors"

	"github.com/kamnsolar/field_capture/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLBackend keeps the draft as one row of draft_records.
type SQLBackend struct {
	db  *gorm.DB
	key string
}

func NewSQLBackend(db *gorm.DB, key string) *SQLBackend {
	return &SQLBackend{db: db, key: key}
}

// Migrate creates the draft_records table.
func (s *SQLBackend) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.DraftRecord{})
}

func (s *SQLBackend) Name() string { return "sql:" + s.key }

func (s *SQLBackend) Read(ctx context.Context) ([]byte, bool, error) {
	var record models.DraftRecord
	err := s.db.WithContext(ctx).Where(&models.DraftRecord{Key: s.key}).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(record.Payload), true, nil
}

func (s *SQLBackend) Write(ctx context.Context, data []byte) error {
	record := models.DraftRecord{
		Key:     s.key,
		Payload: datatypes.JSON(data),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&record).Error
}

func (s *SQLBackend) Delete(ctx context.Context) error {
	return s.db.WithContext(ctx).Where(&models.DraftRecord{Key: s.key}).Delete(&models.DraftRecord{}).Error
}
