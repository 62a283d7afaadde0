package event

import (
	"encoding/json"
	"time"
)

// Event is an immutable record of a canonicalized conversion. It is created
// once by the ingestion service and never mutated or deleted afterwards.
type Event struct {
	ID        int64  `json:"id,string"`
	ProjectID int64  `json:"project_id,string"`
	SourceID  *int64 `json:"source_id,string,omitempty"`

	EventName     string `json:"event_name"`
	ClientEventID string `json:"client_event_id"`
	EventTime     int64  `json:"event_time"`
	SourceTag     string `json:"source_tag"`

	UserAttrs   map[string]any  `json:"user_attrs"`
	CustomAttrs map[string]any  `json:"custom_attrs"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty"`

	QualityScore int      `json:"quality_score"`
	QualityFlags []string `json:"quality_flags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ListQuery filters the project event listing.
type ListQuery struct {
	ProjectID int64
	EventName string
	Limit     int
	Cursor    int64 // list events with ID strictly below this; 0 means from the top
}

// ProjectStats is the dashboard overview for one project.
type ProjectStats struct {
	TotalEvents       int64 `json:"totalEvents"`
	SuccessDeliveries int64 `json:"totalSuccessDeliveries"`
	FailedDeliveries  int64 `json:"totalFailedDeliveries"`
	PendingDeliveries int64 `json:"totalPendingDeliveries"`
}
