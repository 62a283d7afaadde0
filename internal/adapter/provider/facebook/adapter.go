// Package facebook implements the Conversions API destination adapter.
package facebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/destination"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/dispatch"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/event"
	"github.com/pixelrelay/pixelrelay-cloud/internal/pii"
)

const (
	errMissingCredentials = "missing_pixel_id_or_access_token"
	errTemporary          = "temporary_error"
	errClient             = "client_error"

	maxResponseBytes = 64 << 10
)

// Config is injected at construction; the adapter never reads process
// environment on its own.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit rate.Limit // outbound requests per second across all pixels
	RateBurst int
}

func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://graph.facebook.com/v17.0",
		Timeout:   30 * time.Second,
		RateLimit: 50,
		RateBurst: 10,
	}
}

// Adapter sends single-event batches to the Conversions API endpoint and
// classifies the response. It performs exactly one attempt per Send call.
type Adapter struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewAdapter(cfg Config, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Inf
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	return &Adapter{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:  logger,
	}
}

type capiResponse struct {
	EventsReceived int `json:"events_received"`
}

// Send builds the provider payload from the event and destination config,
// posts it, and classifies the outcome as success, retry, or failed.
func (a *Adapter) Send(ctx context.Context, ev *event.Event, dest *destination.Destination) dispatch.Result {
	pixelID := dest.Config.String("pixel_id")
	accessToken := dest.Config.String("access_token")
	testEventCode := dest.Config.String("test_event_code")

	if pixelID == "" || accessToken == "" {
		return dispatch.Result{Outcome: dispatch.OutcomeFailed, ErrorMessage: errMissingCredentials}
	}

	body := buildBatch(ev, testEventCode)
	payload, err := json.Marshal(body)
	if err != nil {
		return dispatch.Result{Outcome: dispatch.OutcomeFailed, ErrorMessage: errClient}
	}

	endpoint := fmt.Sprintf("%s/%s/events?access_token=%s",
		a.cfg.BaseURL,
		url.PathEscape(pixelID),
		url.QueryEscape(accessToken),
	)

	if err := a.limiter.Wait(ctx); err != nil {
		return dispatch.Result{Outcome: dispatch.OutcomeRetry, ErrorMessage: errTemporary}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return dispatch.Result{Outcome: dispatch.OutcomeFailed, ErrorMessage: errClient}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		a.logger.Warn("facebook_capi_transport_error", zap.Error(err), zap.Int64("event_id", ev.ID))
		return dispatch.Result{Outcome: dispatch.OutcomeRetry, ErrorMessage: errTemporary}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	responseText := string(raw)

	if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
		return dispatch.Result{Outcome: dispatch.OutcomeRetry, Response: responseText, ErrorMessage: errTemporary}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var parsed capiResponse
		if err := json.Unmarshal(raw, &parsed); err == nil && parsed.EventsReceived > 0 {
			return dispatch.Result{Outcome: dispatch.OutcomeSuccess, Response: responseText}
		}
	}

	return dispatch.Result{Outcome: dispatch.OutcomeFailed, Response: responseText, ErrorMessage: errClient}
}

// buildBatch wraps the event in the single-event {data: [...]} envelope with
// an optional top-level test_event_code.
func buildBatch(ev *event.Event, testEventCode string) map[string]any {
	entry := map[string]any{
		"event_name":    ev.EventName,
		"event_time":    ev.EventTime,
		"event_id":      ev.ClientEventID,
		"action_source": "website",
		"user_data":     buildUserData(ev.UserAttrs),
		"custom_data":   buildCustomData(ev.CustomAttrs),
	}
	if sourceURL := deriveSourceURL(ev); sourceURL != "" {
		entry["event_source_url"] = sourceURL
	}

	batch := map[string]any{"data": []any{entry}}
	if testEventCode != "" {
		batch["test_event_code"] = testEventCode
	}
	return batch
}

// buildUserData replaces recognized identity keys with their provider names,
// hashing email and phone. Browser identifiers such as fbp/fbc and any
// unrecognized keys pass through verbatim.
func buildUserData(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for key, value := range attrs {
		switch key {
		case "email":
			if s, ok := value.(string); ok && s != "" {
				out["em"] = []string{pii.HashEmail(s)}
			}
		case "phone":
			if s, ok := value.(string); ok && s != "" {
				out["ph"] = []string{pii.HashPhone(s)}
			}
		case "ip":
			out["client_ip_address"] = value
		case "ua", "user_agent":
			out["client_user_agent"] = value
		default:
			out[key] = value
		}
	}
	return out
}

// buildCustomData forwards the commerce keys verbatim and namespaces the
// rest under meta_ so they cannot collide with provider-reserved fields. The
// nested meta object produced by mapped-mode ingestion is forwarded as-is.
func buildCustomData(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for key, value := range attrs {
		switch key {
		case "value", "currency", "order_id", "meta":
			out[key] = value
		default:
			out["meta_"+key] = value
		}
	}
	return out
}

// deriveSourceURL looks for a page URL in, order of preference: the raw
// payload's meta object, the custom attributes (flat or nested meta), then
// the raw payload top level.
func deriveSourceURL(ev *event.Event) string {
	var raw map[string]any
	if len(ev.RawPayload) > 0 {
		_ = json.Unmarshal(ev.RawPayload, &raw)
	}

	if meta, ok := raw["meta"].(map[string]any); ok {
		if s := stringValue(meta["url"]); s != "" {
			return s
		}
	}
	if meta, ok := ev.CustomAttrs["meta"].(map[string]any); ok {
		if s := stringValue(meta["url"]); s != "" {
			return s
		}
	}
	if s := stringValue(ev.CustomAttrs["url"]); s != "" {
		return s
	}
	return stringValue(raw["url"])
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
