package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/delivery"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/event"
)

// Store implements the pipeline's persistence interfaces on Postgres.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateWithDeliveries persists the event and its fan-out delivery logs in
// one transaction. A crash between the two writes can therefore never leave
// an event without delivery tracking.
func (s *Store) CreateWithDeliveries(ctx context.Context, ev *event.Event, logs []*delivery.Log) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := eventToModel(ev)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}

		if len(logs) == 0 {
			return nil
		}

		models := make([]DeliveryLogModel, 0, len(logs))
		for _, log := range logs {
			models = append(models, deliveryToModel(log))
		}
		return tx.Create(&models).Error
	})
}

// FindByProjectAndID retrieves one event scoped to a project.
func (s *Store) FindByProjectAndID(ctx context.Context, projectID, id int64) (*event.Event, error) {
	var model EventModel
	err := s.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return eventToDomain(model), nil
}

// ListByProject pages newest-first through a project's events. Snowflake IDs
// are time-ordered, so the cursor is simply the smallest ID of the previous
// page.
func (s *Store) ListByProject(ctx context.Context, q event.ListQuery) ([]*event.Event, int64, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := s.db.WithContext(ctx).
		Where("project_id = ?", q.ProjectID).
		Order("id desc").
		Limit(limit + 1)
	if q.EventName != "" {
		query = query.Where("event_name = ?", q.EventName)
	}
	if q.Cursor > 0 {
		query = query.Where("id < ?", q.Cursor)
	}

	var models []EventModel
	if err := query.Find(&models).Error; err != nil {
		return nil, 0, err
	}

	var nextCursor int64
	if len(models) > limit {
		models = models[:limit]
		nextCursor = models[limit-1].ID
	}

	items := make([]*event.Event, 0, len(models))
	for _, model := range models {
		items = append(items, eventToDomain(model))
	}
	return items, nextCursor, nil
}

// Stats aggregates the dashboard overview counts for one project.
func (s *Store) Stats(ctx context.Context, projectID int64) (*event.ProjectStats, error) {
	stats := &event.ProjectStats{}

	if err := s.db.WithContext(ctx).Model(&EventModel{}).
		Where("project_id = ?", projectID).
		Count(&stats.TotalEvents).Error; err != nil {
		return nil, err
	}

	counts := []struct {
		status delivery.Status
		out    *int64
	}{
		{delivery.StatusSuccess, &stats.SuccessDeliveries},
		{delivery.StatusFailed, &stats.FailedDeliveries},
		{delivery.StatusPending, &stats.PendingDeliveries},
	}
	for _, c := range counts {
		err := s.db.WithContext(ctx).Model(&DeliveryLogModel{}).
			Joins("JOIN events ON events.id = delivery_logs.event_id").
			Where("events.project_id = ? AND delivery_logs.status = ?", projectID, string(c.status)).
			Count(c.out).Error
		if err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
