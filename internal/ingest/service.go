package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/delivery"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/destination"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/event"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/source"
	"github.com/pixelrelay/pixelrelay-cloud/internal/quality"
	"github.com/pixelrelay/pixelrelay-cloud/pkg/snowflake"
)

const (
	ModeDirect = "direct"
	ModeMapped = "mapped"

	defaultMappedEventName = "CustomEvent"
	defaultMappedSourceTag = "mapped"
)

var eventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pixelrelay_events_ingested_total",
	Help: "Events accepted by the ingestion pipeline, by payload mode.",
}, []string{"mode"})

// Request is the inbound ingestion payload. Mode discriminates which field
// set applies; unknown or absent modes are rejected.
type Request struct {
	Mode string `json:"mode"`

	// direct mode
	EventName  string          `json:"event_name"`
	EventID    string          `json:"event_id"`
	EventTime  any             `json:"event_time"`
	Source     string          `json:"source"`
	SourceID   string          `json:"source_id"`
	User       map[string]any  `json:"user"`
	Data       map[string]any  `json:"data"`
	RawPayload json.RawMessage `json:"raw_payload"`

	// mapped mode
	EventKey string         `json:"event_key"`
	Payload  map[string]any `json:"payload"`
}

// DestinationStatus reports the fan-out row created for one destination.
type DestinationStatus struct {
	ID     int64           `json:"id,string"`
	Status delivery.Status `json:"status"`
}

// Result is the synchronous ingestion outcome.
type Result struct {
	EventInternalID int64
	Destinations    []DestinationStatus
}

// EventStore persists a new event together with its delivery logs in a
// single transaction, so a crash can never leave an event without delivery
// tracking.
type EventStore interface {
	CreateWithDeliveries(ctx context.Context, ev *event.Event, logs []*delivery.Log) error
}

// Service validates and canonicalizes inbound payloads into persisted events
// and fans out one pending delivery log per active destination.
type Service struct {
	store        EventStore
	sources      source.Repository
	destinations destination.Repository
	ids          *snowflake.Node
	logger       *zap.Logger
}

func NewService(
	store EventStore,
	sources source.Repository,
	destinations destination.Repository,
	ids *snowflake.Node,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:        store,
		sources:      sources,
		destinations: destinations,
		ids:          ids,
		logger:       logger,
	}
}

// Ingest processes one payload for a project. Validation failures return a
// *ValidationError and create nothing; on success the event and its pending
// delivery logs are committed before returning.
func (s *Service) Ingest(ctx context.Context, projectID int64, req *Request) (*Result, error) {
	if req == nil {
		return nil, ErrInvalidMode
	}

	switch req.Mode {
	case ModeDirect:
		return s.ingestDirect(ctx, projectID, req)
	case ModeMapped:
		return s.ingestMapped(ctx, projectID, req)
	default:
		return nil, ErrInvalidMode
	}
}

func (s *Service) ingestDirect(ctx context.Context, projectID int64, req *Request) (*Result, error) {
	if strings.TrimSpace(req.EventName) == "" || strings.TrimSpace(req.Source) == "" {
		return nil, ErrInvalidPayload
	}

	clientEventID := strings.TrimSpace(req.EventID)
	if clientEventID == "" {
		clientEventID = uuid.NewString()
	}

	eventTime, ok := numericEventTime(req.EventTime)
	if !ok {
		eventTime = time.Now().Unix()
	}

	userAttrs := req.User
	if userAttrs == nil {
		userAttrs = map[string]any{}
	}
	customAttrs := req.Data
	if customAttrs == nil {
		customAttrs = map[string]any{}
	}

	var sourceID *int64
	if trimmed := strings.TrimSpace(req.SourceID); trimmed != "" {
		if id, err := snowflake.ParseID(trimmed); err == nil {
			sourceID = &id
		}
	}

	ev := &event.Event{
		ID:            s.ids.GenerateID(),
		ProjectID:     projectID,
		SourceID:      sourceID,
		EventName:     req.EventName,
		ClientEventID: clientEventID,
		EventTime:     eventTime,
		SourceTag:     req.Source,
		UserAttrs:     userAttrs,
		CustomAttrs:   customAttrs,
		RawPayload:    req.RawPayload,
		CreatedAt:     time.Now().UTC(),
	}

	return s.finalize(ctx, ev, ModeDirect)
}

func (s *Service) ingestMapped(ctx context.Context, projectID int64, req *Request) (*Result, error) {
	if strings.TrimSpace(req.EventKey) == "" {
		return nil, ErrInvalidEventKey
	}
	if req.Payload == nil {
		return nil, ErrInvalidPayload
	}

	src, err := s.sources.FindByEventKey(ctx, projectID, req.EventKey)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, ErrUnknownEventKey
	}
	if src.Mapping == nil {
		return nil, ErrSourceNotMapped
	}

	mapped := applyMapping(req.Payload, src.Mapping)

	rawPayload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	sourceTag := mapped.sourceTag
	if sourceTag == "" {
		if src.Type != "" {
			sourceTag = src.Type
		} else if src.Name != "" {
			sourceTag = src.Name
		} else {
			sourceTag = defaultMappedSourceTag
		}
	}

	ev := &event.Event{
		ID:            s.ids.GenerateID(),
		ProjectID:     projectID,
		SourceID:      &src.ID,
		EventName:     mapped.eventName,
		ClientEventID: uuid.NewString(),
		EventTime:     time.Now().Unix(),
		SourceTag:     sourceTag,
		UserAttrs:     mapped.user,
		CustomAttrs:   mapped.data,
		RawPayload:    rawPayload,
		CreatedAt:     time.Now().UTC(),
	}

	return s.finalize(ctx, ev, ModeMapped)
}

// finalize scores, persists, and fans out a canonicalized event.
func (s *Service) finalize(ctx context.Context, ev *event.Event, mode string) (*Result, error) {
	ev.QualityScore, ev.QualityFlags = quality.Score(quality.Input{
		UserAttrs:     ev.UserAttrs,
		CustomAttrs:   ev.CustomAttrs,
		ClientEventID: ev.ClientEventID,
		EventTime:     ev.EventTime,
	})

	active, err := s.destinations.ListActiveByProject(ctx, ev.ProjectID)
	if err != nil {
		return nil, err
	}

	logs := make([]*delivery.Log, 0, len(active))
	statuses := make([]DestinationStatus, 0, len(active))
	for _, dest := range active {
		logs = append(logs, delivery.NewPending(s.ids.GenerateID(), ev.ID, dest.ID))
		statuses = append(statuses, DestinationStatus{ID: dest.ID, Status: delivery.StatusPending})
	}

	if err := s.store.CreateWithDeliveries(ctx, ev, logs); err != nil {
		return nil, err
	}

	eventsIngested.WithLabelValues(mode).Inc()
	s.logger.Info("event_ingested",
		zap.Int64("event_id", ev.ID),
		zap.Int64("project_id", ev.ProjectID),
		zap.String("event_name", ev.EventName),
		zap.String("mode", mode),
		zap.Int("quality_score", ev.QualityScore),
		zap.Int("destinations", len(statuses)),
	)

	return &Result{EventInternalID: ev.ID, Destinations: statuses}, nil
}

type mappedFields struct {
	eventName string
	sourceTag string
	user      map[string]any
	data      map[string]any
}

// applyMapping resolves each declared internalKey -> sourceKey pair against
// the inbound payload. Unresolved pairs are omitted; resolved meta fields are
// nested under a single "meta" key inside the custom attributes.
func applyMapping(payload map[string]any, m *source.Mapping) mappedFields {
	user := map[string]any{}
	data := map[string]any{}
	meta := map[string]any{}

	for internalKey, sourceKey := range m.User {
		if v, ok := payload[sourceKey]; ok {
			user[internalKey] = v
		}
	}
	for internalKey, sourceKey := range m.Data {
		if v, ok := payload[sourceKey]; ok {
			data[internalKey] = v
		}
	}
	for internalKey, sourceKey := range m.Meta {
		if v, ok := payload[sourceKey]; ok {
			meta[internalKey] = v
		}
	}
	if len(meta) > 0 {
		data["meta"] = meta
	}

	eventName := m.EventName
	if eventName == "" {
		eventName = defaultMappedEventName
	}

	return mappedFields{
		eventName: eventName,
		sourceTag: m.SourceTag,
		user:      user,
		data:      data,
	}
}

// numericEventTime coerces a decoded JSON value into unix seconds. Strings
// and other non-numeric values do not count; the caller substitutes now.
func numericEventTime(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		return 0, false
	default:
		return 0, false
	}
}
