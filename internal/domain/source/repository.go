package source

import "context"

// Repository resolves event keys to sources.
type Repository interface {
	// FindByEventKey returns the source for (projectID, eventKey), or nil
	// when none exists.
	FindByEventKey(ctx context.Context, projectID int64, eventKey string) (*Source, error)
}
