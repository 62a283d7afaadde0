package ingest_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pixelrelay/pixelrelay-cloud/internal/config"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/delivery"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/destination"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/source"
	"github.com/pixelrelay/pixelrelay-cloud/internal/ingest"
	"github.com/pixelrelay/pixelrelay-cloud/internal/quality"
	"github.com/pixelrelay/pixelrelay-cloud/pkg/snowflake"
	"github.com/pixelrelay/pixelrelay-cloud/pkg/testhelper"
)

const projectID = int64(42)

type fixture struct {
	svc          *ingest.Service
	store        *testhelper.MockEventStore
	sources      *testhelper.MockSourceRepo
	destinations *testhelper.MockDestinationRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	node, err := snowflake.NewNode(&config.Config{SnowflakeNodeID: 1})
	require.NoError(t, err)

	store := &testhelper.MockEventStore{}
	sources := &testhelper.MockSourceRepo{Sources: map[string]*source.Source{}}
	destinations := &testhelper.MockDestinationRepo{}

	return &fixture{
		svc:          ingest.NewService(store, sources, destinations, node, zap.NewNop()),
		store:        store,
		sources:      sources,
		destinations: destinations,
	}
}

func activeDestination(id int64) *destination.Destination {
	return &destination.Destination{
		ID:        id,
		ProjectID: projectID,
		Type:      destination.TypeFacebook,
		IsActive:  true,
	}
}

func TestIngest_InvalidMode(t *testing.T) {
	f := newFixture(t)

	for _, mode := range []string{"", "bulk", "DIRECT"} {
		_, err := f.svc.Ingest(context.Background(), projectID, &ingest.Request{Mode: mode})

		var verr *ingest.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "invalid_mode", verr.Code)
	}
	assert.Empty(t, f.store.Events, "nothing may be persisted on rejection")
}

func TestIngestDirect_MissingRequiredFields(t *testing.T) {
	f := newFixture(t)

	cases := []ingest.Request{
		{Mode: ingest.ModeDirect, Source: "web"},
		{Mode: ingest.ModeDirect, EventName: "Purchase"},
		{Mode: ingest.ModeDirect, EventName: "  ", Source: "web"},
	}
	for _, req := range cases {
		_, err := f.svc.Ingest(context.Background(), projectID, &req)

		var verr *ingest.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "invalid_payload", verr.Code)
	}
}

func TestIngestDirect_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.destinations.Destinations = []*destination.Destination{
		activeDestination(100),
		activeDestination(101),
	}

	result, err := f.svc.Ingest(context.Background(), projectID, &ingest.Request{
		Mode:      ingest.ModeDirect,
		EventName: "Purchase",
		EventID:   "order-555",
		EventTime: float64(1700000000),
		Source:    "web",
		User:      map[string]any{"email": "test@example.com", "phone": "+1555"},
		Data:      map[string]any{"value": 12.5, "currency": "USD"},
	})
	require.NoError(t, err)

	require.Len(t, f.store.Events, 1)
	ev := f.store.Events[0]
	assert.Equal(t, result.EventInternalID, ev.ID)
	assert.Equal(t, projectID, ev.ProjectID)
	assert.Equal(t, "Purchase", ev.EventName)
	assert.Equal(t, "order-555", ev.ClientEventID)
	assert.Equal(t, int64(1700000000), ev.EventTime)
	assert.Equal(t, "web", ev.SourceTag)
	assert.Equal(t, 100, ev.QualityScore)
	assert.Nil(t, ev.QualityFlags)

	// One pending log per active destination, all in the same store call.
	require.Len(t, f.store.Deliveries, 2)
	for _, log := range f.store.Deliveries {
		assert.Equal(t, ev.ID, log.EventID)
		assert.Equal(t, delivery.StatusPending, log.Status)
		assert.Zero(t, log.Attempts)
	}

	require.Len(t, result.Destinations, 2)
	assert.Equal(t, int64(100), result.Destinations[0].ID)
	assert.Equal(t, delivery.StatusPending, result.Destinations[0].Status)
}

func TestIngestDirect_Defaults(t *testing.T) {
	f := newFixture(t)

	before := time.Now().Unix()
	_, err := f.svc.Ingest(context.Background(), projectID, &ingest.Request{
		Mode:      ingest.ModeDirect,
		EventName: "PageView",
		Source:    "web",
		EventTime: "not-a-number",
	})
	require.NoError(t, err)

	ev := f.store.Events[0]
	assert.NotEmpty(t, ev.ClientEventID, "an event id is generated when absent")
	assert.GreaterOrEqual(t, ev.EventTime, before)
	assert.NotNil(t, ev.UserAttrs)
	assert.NotNil(t, ev.CustomAttrs)
	assert.Contains(t, ev.QualityFlags, quality.FlagMissingEmail)
}

func TestIngestDirect_NoActiveDestinations(t *testing.T) {
	f := newFixture(t)
	// One inactive destination, which must not receive fan-out.
	inactive := activeDestination(100)
	inactive.IsActive = false
	f.destinations.Destinations = []*destination.Destination{inactive}

	result, err := f.svc.Ingest(context.Background(), projectID, &ingest.Request{
		Mode:      ingest.ModeDirect,
		EventName: "Purchase",
		Source:    "web",
	})
	require.NoError(t, err)

	assert.Len(t, f.store.Events, 1, "the event is still recorded")
	assert.Empty(t, f.store.Deliveries)
	assert.Empty(t, result.Destinations)
}

func TestIngestMapped_Validation(t *testing.T) {
	f := newFixture(t)
	f.sources.Sources["known-unmapped"] = &source.Source{
		ID:        7,
		ProjectID: projectID,
		EventKey:  "known-unmapped",
	}

	cases := []struct {
		name string
		req  ingest.Request
		code string
	}{
		{"empty event key", ingest.Request{Mode: ingest.ModeMapped, Payload: map[string]any{}}, "invalid_event_key"},
		{"nil payload", ingest.Request{Mode: ingest.ModeMapped, EventKey: "k"}, "invalid_payload"},
		{"unknown event key", ingest.Request{Mode: ingest.ModeMapped, EventKey: "nope", Payload: map[string]any{}}, "unknown_event_key"},
		{"source without mapping", ingest.Request{Mode: ingest.ModeMapped, EventKey: "known-unmapped", Payload: map[string]any{}}, "source_not_mapped"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Ingest(context.Background(), projectID, &tc.req)

			var verr *ingest.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.code, verr.Code)
		})
	}
}

func TestIngestMapped_AppliesMapping(t *testing.T) {
	f := newFixture(t)
	f.sources.Sources["shopify-order"] = &source.Source{
		ID:        7,
		ProjectID: projectID,
		Name:      "Shopify",
		EventKey:  "shopify-order",
		Type:      "shopify",
		Mapping: &source.Mapping{
			EventName: "Purchase",
			SourceTag: "shopify_webhook",
			User:      map[string]string{"email": "customer_email", "phone": "customer_phone"},
			Data:      map[string]string{"value": "total_price", "currency": "order_currency"},
			Meta:      map[string]string{"url": "landing_url"},
		},
	}

	payload := map[string]any{
		"customer_email": "buyer@example.com",
		"total_price":    33.0,
		"order_currency": "EUR",
		"landing_url":    "https://shop.example/p/1",
		"ignored":        "x",
	}

	result, err := f.svc.Ingest(context.Background(), projectID, &ingest.Request{
		Mode:     ingest.ModeMapped,
		EventKey: "shopify-order",
		Payload:  payload,
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	ev := f.store.Events[0]
	assert.Equal(t, "Purchase", ev.EventName)
	assert.Equal(t, "shopify_webhook", ev.SourceTag)
	require.NotNil(t, ev.SourceID)
	assert.Equal(t, int64(7), *ev.SourceID)

	// Declared pairs resolve; absent source keys are omitted.
	assert.Equal(t, "buyer@example.com", ev.UserAttrs["email"])
	assert.NotContains(t, ev.UserAttrs, "phone")
	assert.Equal(t, 33.0, ev.CustomAttrs["value"])
	assert.Equal(t, "EUR", ev.CustomAttrs["currency"])

	meta, ok := ev.CustomAttrs["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://shop.example/p/1", meta["url"])

	// The full inbound payload is preserved for audit.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(ev.RawPayload, &raw))
	assert.Equal(t, "x", raw["ignored"])

	assert.NotEmpty(t, ev.ClientEventID)
	assert.Greater(t, ev.EventTime, int64(0))
}

func TestIngestMapped_SourceTagFallback(t *testing.T) {
	f := newFixture(t)
	f.sources.Sources["bare"] = &source.Source{
		ID:        8,
		ProjectID: projectID,
		Name:      "Bare Source",
		EventKey:  "bare",
		Type:      "webhook",
		Mapping:   &source.Mapping{},
	}

	_, err := f.svc.Ingest(context.Background(), projectID, &ingest.Request{
		Mode:     ingest.ModeMapped,
		EventKey: "bare",
		Payload:  map[string]any{},
	})
	require.NoError(t, err)

	ev := f.store.Events[0]
	assert.Equal(t, "CustomEvent", ev.EventName, "event name defaults when the mapping has none")
	assert.Equal(t, "webhook", ev.SourceTag, "source type is the tag fallback")
}
