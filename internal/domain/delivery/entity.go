package delivery

import (
	"time"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/destination"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/event"
)

// Status is the lifecycle state of one delivery log.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRetrying Status = "retrying"
	// StatusDelivering marks a row claimed by a worker invocation. The claim
	// transition is the guard that keeps two overlapping worker runs from
	// double-sending the same row.
	StatusDelivering Status = "delivering"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions may occur.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

const (
	// MaxErrorLen bounds stored error text.
	MaxErrorLen = 2000
	// MaxResponseLen bounds stored provider response bodies.
	MaxResponseLen = 4096
)

// Log tracks delivery attempts for one (event, destination) pair. Exactly one
// log is created per active destination when the event is ingested; only the
// delivery worker mutates it afterwards.
type Log struct {
	ID            int64     `json:"id,string"`
	EventID       int64     `json:"event_id,string"`
	DestinationID int64     `json:"destination_id,string"`
	Status        Status    `json:"status"`
	Attempts      int       `json:"attempts"`
	LastResponse  string    `json:"last_response,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewPending builds the fan-out row for a freshly ingested event.
func NewPending(id, eventID, destinationID int64) *Log {
	now := time.Now().UTC()
	return &Log{
		ID:            id,
		EventID:       eventID,
		DestinationID: destinationID,
		Status:        StatusPending,
		Attempts:      0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Truncate bounds s to at most n bytes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Task is a claimed delivery log joined with its owning event and target
// destination, ready for dispatch.
type Task struct {
	Log         *Log
	Event       *event.Event
	Destination *destination.Destination
}

// WithDestination pairs a log with its destination summary for the read
// surface.
type WithDestination struct {
	Log         *Log
	Destination *destination.Destination
}
