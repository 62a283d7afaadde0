package dispatch

import (
	"context"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/destination"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/event"
)

// Outcome is the tri-state classification of one delivery attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeRetry   Outcome = "retry"
	OutcomeFailed  Outcome = "failed"
)

// Result carries the outcome plus whatever the provider sent back.
type Result struct {
	Outcome      Outcome
	Response     string
	ErrorMessage string
}

// Adapter translates a canonical event into a provider-specific payload,
// performs the outbound call, and classifies the outcome. Adapters never
// retry internally; the retry/failed split is the worker's only signal.
type Adapter interface {
	Send(ctx context.Context, ev *event.Event, dest *destination.Destination) Result
}

// Registry maps destination types to their adapters.
type Registry map[destination.Type]Adapter
