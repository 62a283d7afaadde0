package event

import "context"

// Repository defines the read surface over persisted events. Creation goes
// through the ingestion store so the event and its delivery logs commit in
// one transaction.
type Repository interface {
	// FindByProjectAndID retrieves one event scoped to a project.
	FindByProjectAndID(ctx context.Context, projectID, id int64) (*Event, error)

	// ListByProject returns newest-first events plus a cursor for the next
	// page, or 0 when the listing is exhausted.
	ListByProject(ctx context.Context, q ListQuery) ([]*Event, int64, error)

	// Stats aggregates event and delivery counts for a project.
	Stats(ctx context.Context, projectID int64) (*ProjectStats, error)
}
