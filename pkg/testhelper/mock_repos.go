package testhelper

import (
	"context"
	"time"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/delivery"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/destination"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/event"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/source"
)

// MockEventStore is a mock implementation of ingest.EventStore for testing
type MockEventStore struct {
	Events     []*event.Event
	Deliveries []*delivery.Log
	ShouldFail error
}

// CreateWithDeliveries records the event and logs, or fails when configured
func (m *MockEventStore) CreateWithDeliveries(ctx context.Context, ev *event.Event, logs []*delivery.Log) error {
	if m.ShouldFail != nil {
		return m.ShouldFail
	}
	m.Events = append(m.Events, ev)
	m.Deliveries = append(m.Deliveries, logs...)
	return nil
}

// MockSourceRepo is a mock implementation of source.Repository for testing
type MockSourceRepo struct {
	Sources map[string]*source.Source
}

// FindByEventKey resolves against the configured map
func (m *MockSourceRepo) FindByEventKey(ctx context.Context, projectID int64, eventKey string) (*source.Source, error) {
	src, ok := m.Sources[eventKey]
	if !ok || src.ProjectID != projectID {
		return nil, nil
	}
	return src, nil
}

// MockDestinationRepo is a mock implementation of destination.Repository
type MockDestinationRepo struct {
	Destinations []*destination.Destination
}

// ListActiveByProject filters the configured destinations
func (m *MockDestinationRepo) ListActiveByProject(ctx context.Context, projectID int64) ([]*destination.Destination, error) {
	var active []*destination.Destination
	for _, d := range m.Destinations {
		if d.ProjectID == projectID && d.IsActive {
			active = append(active, d)
		}
	}
	return active, nil
}

// MockDeliveryRepo is a mock implementation of delivery.Repository for
// worker tests. ClaimDue drains the configured tasks and applies the claim
// transition in memory.
type MockDeliveryRepo struct {
	Tasks     []*delivery.Task
	Finished  map[int64]delivery.Status
	Responses map[int64]string
	Errors    map[int64]string
	ClaimErr  error
	FinishErr error
}

// ClaimDue returns up to limit tasks, marking each delivering with attempts
// incremented, the same transition the Postgres repository applies
func (m *MockDeliveryRepo) ClaimDue(ctx context.Context, limit int) ([]*delivery.Task, error) {
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	n := len(m.Tasks)
	if limit < n {
		n = limit
	}
	claimed := m.Tasks[:n]
	m.Tasks = m.Tasks[n:]
	for _, t := range claimed {
		t.Log.Status = delivery.StatusDelivering
		t.Log.Attempts++
		t.Log.UpdatedAt = time.Now().UTC()
	}
	return claimed, nil
}

// Finish records the outcome
func (m *MockDeliveryRepo) Finish(ctx context.Context, logID int64, status delivery.Status, lastResponse, lastError string) error {
	if m.FinishErr != nil {
		return m.FinishErr
	}
	if m.Finished == nil {
		m.Finished = map[int64]delivery.Status{}
	}
	if m.Responses == nil {
		m.Responses = map[int64]string{}
	}
	if m.Errors == nil {
		m.Errors = map[int64]string{}
	}
	m.Finished[logID] = status
	m.Responses[logID] = lastResponse
	m.Errors[logID] = lastError
	return nil
}

// ListByEvent is unused by the worker tests
func (m *MockDeliveryRepo) ListByEvent(ctx context.Context, eventID int64) ([]*delivery.WithDestination, error) {
	return nil, nil
}
