package testhelper

import (
	"context"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/destination"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/dispatch"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/event"
)

// MockAdapter is a mock implementation of dispatch.Adapter for testing
type MockAdapter struct {
	SendCalls []int64
	Result    dispatch.Result
}

// Send records the event id and returns the configured result
func (m *MockAdapter) Send(ctx context.Context, ev *event.Event, dest *destination.Destination) dispatch.Result {
	m.SendCalls = append(m.SendCalls, ev.ID)
	return m.Result
}
