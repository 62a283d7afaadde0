package postgres

import (
	"bytes"
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/apikey"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/destination"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/source"
)

// ListActiveByProject returns the fan-out destination set for a project.
func (s *Store) ListActiveByProject(ctx context.Context, projectID int64) ([]*destination.Destination, error) {
	var models []DestinationModel
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Order("id asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	items := make([]*destination.Destination, 0, len(models))
	for _, model := range models {
		items = append(items, destinationToDomain(model))
	}
	return items, nil
}

var jsonNull = []byte("null")

// FindByEventKey resolves a mapped-mode event key for a project.
func (s *Store) FindByEventKey(ctx context.Context, projectID int64, eventKey string) (*source.Source, error) {
	var model SourceModel
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND event_key = ?", projectID, eventKey).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// A JSON null mapping counts as unmapped.
	if bytes.Equal(bytes.TrimSpace(model.Mapping), jsonNull) {
		model.Mapping = nil
	}
	return sourceToDomain(model)
}

// Resolve looks up an active API key and touches last_used_at. Unknown or
// inactive keys resolve to nil without error.
func (s *Store) Resolve(ctx context.Context, raw string) (*apikey.Key, error) {
	var model APIKeyModel
	err := s.db.WithContext(ctx).
		Where("key = ? AND is_active = ?", raw, true).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	now := nowUTC()
	// Best effort; a failed touch must not block ingestion.
	_ = s.db.WithContext(ctx).Model(&APIKeyModel{}).
		Where("id = ?", model.ID).
		Update("last_used_at", now).Error

	return &apikey.Key{
		ID:         model.ID,
		ProjectID:  model.ProjectID,
		Key:        model.Key,
		IsActive:   model.IsActive,
		LastUsedAt: &now,
		CreatedAt:  model.CreatedAt,
	}, nil
}
