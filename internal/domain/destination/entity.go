package destination

import (
	"strings"
	"time"
)

// Type enumerates supported outbound providers.
type Type string

const (
	TypeFacebook Type = "facebook"
)

// ProviderConfig carries per-destination credentials and identifiers
// (pixel id, access token, test event code).
type ProviderConfig map[string]any

// String returns a trimmed string value for key, or "" when absent or not a
// string.
func (c ProviderConfig) String(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Destination is a configured outbound delivery target for a project.
// Destinations are owned by the administration layer; the pipeline reads
// them and never writes, including HealthStatus.
type Destination struct {
	ID           int64          `json:"id,string"`
	ProjectID    int64          `json:"project_id,string"`
	Type         Type           `json:"type"`
	Config       ProviderConfig `json:"-"`
	IsActive     bool           `json:"is_active"`
	HealthStatus string         `json:"health_status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
