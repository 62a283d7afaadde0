package destination

import "context"

// Repository defines the read-only access the pipeline has to destinations.
type Repository interface {
	// ListActiveByProject returns the active destinations for a project,
	// the fan-out set at event-creation time.
	ListActiveByProject(ctx context.Context, projectID int64) ([]*Destination, error)
}
