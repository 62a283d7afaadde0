package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/delivery"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/destination"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/event"
)

// ClaimDue selects up to limit pending or retrying logs oldest-created-first
// and transitions them to delivering inside one transaction. The row lock
// plus the status transition make the claim atomic: overlapping worker
// invocations can never pick up the same row. Attempts are incremented here
// so each claim counts exactly one attempt.
func (s *Store) ClaimDue(ctx context.Context, limit int) ([]*delivery.Task, error) {
	if limit <= 0 {
		return nil, nil
	}

	var models []DeliveryLogModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(
			`SELECT * FROM delivery_logs
			 WHERE status IN (?, ?)
			 ORDER BY created_at ASC
			 LIMIT ?
			 FOR UPDATE SKIP LOCKED`,
			string(delivery.StatusPending),
			string(delivery.StatusRetrying),
			limit,
		).Scan(&models).Error; err != nil {
			return err
		}

		if len(models) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(models))
		for i := range models {
			ids = append(ids, models[i].ID)
			models[i].Status = string(delivery.StatusDelivering)
			models[i].Attempts++
		}

		return tx.Model(&DeliveryLogModel{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     string(delivery.StatusDelivering),
				"attempts":   gorm.Expr("attempts + 1"),
				"updated_at": nowUTC(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}

	return s.assembleTasks(ctx, models)
}

// assembleTasks joins claimed logs with their owning events and destinations.
func (s *Store) assembleTasks(ctx context.Context, models []DeliveryLogModel) ([]*delivery.Task, error) {
	eventIDs := make([]int64, 0, len(models))
	destIDs := make([]int64, 0, len(models))
	for _, m := range models {
		eventIDs = append(eventIDs, m.EventID)
		destIDs = append(destIDs, m.DestinationID)
	}

	var eventModels []EventModel
	if err := s.db.WithContext(ctx).Where("id IN ?", eventIDs).Find(&eventModels).Error; err != nil {
		return nil, err
	}
	events := make(map[int64]*event.Event, len(eventModels))
	for _, m := range eventModels {
		events[m.ID] = eventToDomain(m)
	}

	var destModels []DestinationModel
	if err := s.db.WithContext(ctx).Where("id IN ?", destIDs).Find(&destModels).Error; err != nil {
		return nil, err
	}
	dests := make(map[int64]*destination.Destination, len(destModels))
	for _, m := range destModels {
		dests[m.ID] = destinationToDomain(m)
	}

	tasks := make([]*delivery.Task, 0, len(models))
	for _, m := range models {
		ev, okEvent := events[m.EventID]
		dest, okDest := dests[m.DestinationID]
		if !okEvent || !okDest {
			// Referential gap; leave the row claimed and surface it in logs
			// rather than dispatching with partial data.
			continue
		}
		tasks = append(tasks, &delivery.Task{
			Log:         deliveryToDomain(m),
			Event:       ev,
			Destination: dest,
		})
	}
	return tasks, nil
}

// Finish records the attempt outcome. The delivering guard means only the
// invocation that claimed the row can complete it, and a terminal row can
// never transition again.
func (s *Store) Finish(ctx context.Context, logID int64, status delivery.Status, lastResponse, lastError string) error {
	return s.db.WithContext(ctx).Model(&DeliveryLogModel{}).
		Where("id = ? AND status = ?", logID, string(delivery.StatusDelivering)).
		Updates(map[string]any{
			"status":        string(status),
			"last_response": lastResponse,
			"last_error":    lastError,
			"updated_at":    nowUTC(),
		}).Error
}

// ListByEvent returns an event's delivery logs, oldest first, joined with
// their destinations for the read surface.
func (s *Store) ListByEvent(ctx context.Context, eventID int64) ([]*delivery.WithDestination, error) {
	var models []DeliveryLogModel
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}

	destIDs := make([]int64, 0, len(models))
	for _, m := range models {
		destIDs = append(destIDs, m.DestinationID)
	}
	var destModels []DestinationModel
	if err := s.db.WithContext(ctx).Where("id IN ?", destIDs).Find(&destModels).Error; err != nil {
		return nil, err
	}
	dests := make(map[int64]*destination.Destination, len(destModels))
	for _, m := range destModels {
		dests[m.ID] = destinationToDomain(m)
	}

	items := make([]*delivery.WithDestination, 0, len(models))
	for _, m := range models {
		items = append(items, &delivery.WithDestination{
			Log:         deliveryToDomain(m),
			Destination: dests[m.DestinationID],
		})
	}
	return items, nil
}
