package apikey

import (
	"context"
	"time"
)

// Key is an ingestion credential resolving to a project.
type Key struct {
	ID         int64
	ProjectID  int64
	Key        string
	IsActive   bool
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Repository resolves raw API keys. Key management lives in the excluded
// administration layer; the pipeline only authorizes against it.
type Repository interface {
	// Resolve returns the active key record for the raw credential, or nil
	// when unknown or inactive. Implementations should touch last_used_at.
	Resolve(ctx context.Context, raw string) (*Key, error)
}
