package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	model "github.com/druid0523/task-manager-mcp/internal/models"
)

// MetadataRepository stores per-project key/value pairs.
type MetadataRepository struct {
	db *gorm.DB
}

func NewMetadataRepository(db *gorm.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

// Set upserts a key.
func (r *MetadataRepository) Set(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&model.Metadata{Key: key, Value: value}).Error
}

// Get returns the value for a key, or ("", false) when the key is absent.
func (r *MetadataRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var meta model.Metadata
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return meta.Value, true, nil
}
