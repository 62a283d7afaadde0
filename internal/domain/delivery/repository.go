package delivery

import "context"

// Repository defines persistence for delivery logs.
type Repository interface {
	// ClaimDue atomically claims up to limit pending or retrying logs,
	// oldest first, transitioning them to delivering and incrementing
	// attempts. Claimed rows are returned joined with event and destination.
	ClaimDue(ctx context.Context, limit int) ([]*Task, error)

	// Finish records the outcome of a claimed row. The update is guarded by
	// the delivering status so only the claiming invocation can apply it.
	Finish(ctx context.Context, logID int64, status Status, lastResponse, lastError string) error

	// ListByEvent returns an event's delivery logs, oldest first, with their
	// destinations.
	ListByEvent(ctx context.Context, eventID int64) ([]*WithDestination, error)
}
