package api_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pixelrelay/pixelrelay-cloud/internal/api"
	"github.com/pixelrelay/pixelrelay-cloud/internal/config"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/apikey"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/destination"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/dispatch"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/source"
	"github.com/pixelrelay/pixelrelay-cloud/internal/ingest"
	"github.com/pixelrelay/pixelrelay-cloud/internal/worker"
	"github.com/pixelrelay/pixelrelay-cloud/pkg/snowflake"
	"github.com/pixelrelay/pixelrelay-cloud/pkg/testhelper"
)

type stubKeys struct {
	projectID int64
}

func (s *stubKeys) Resolve(ctx context.Context, raw string) (*apikey.Key, error) {
	if raw != "pk_test_ok" {
		return nil, nil
	}
	return &apikey.Key{ID: 1, ProjectID: s.projectID, IsActive: true}, nil
}

func newTestRouter(t *testing.T) (*api.Router, *testhelper.MockEventStore, *testhelper.MockDeliveryRepo) {
	t.Helper()

	cfg := &config.Config{
		Port:             "8080",
		AdminAPIToken:    "admin-secret",
		WorkerBatchLimit: 20,
		SnowflakeNodeID:  1,
	}

	node, err := snowflake.NewNode(cfg)
	require.NoError(t, err)

	store := &testhelper.MockEventStore{}
	sources := &testhelper.MockSourceRepo{Sources: map[string]*source.Source{}}
	destinations := &testhelper.MockDestinationRepo{
		Destinations: []*destination.Destination{{
			ID: 100, ProjectID: 42, Type: destination.TypeFacebook, IsActive: true,
		}},
	}

	svc := ingest.NewService(store, sources, destinations, node, zap.NewNop())

	deliveries := &testhelper.MockDeliveryRepo{}
	adapter := &testhelper.MockAdapter{Result: dispatch.Result{Outcome: dispatch.OutcomeSuccess}}
	w := worker.NewWorker(deliveries, dispatch.Registry{destination.TypeFacebook: adapter}, zap.NewNop())

	router := api.NewRouter(cfg, svc, w, nil, deliveries, &stubKeys{projectID: 42}, zap.NewNop())
	return router, store, deliveries
}

func TestRouter_Health(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestIngestEndpoint(t *testing.T) {
	router, store, _ := newTestRouter(t)

	t.Run("accepts direct event", func(t *testing.T) {
		body := `{"mode":"direct","event_name":"Purchase","source":"web","user":{"email":"a@b.com"}}`
		req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewBufferString(body))
		req.Header.Set("x-api-key", "pk_test_ok")
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "event_internal_id")
		require.Len(t, store.Events, 1)
		assert.Equal(t, int64(42), store.Events[0].ProjectID)
	})

	t.Run("maps validation errors to 400 with code", func(t *testing.T) {
		body := `{"mode":"broadcast"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewBufferString(body))
		req.Header.Set("x-api-key", "pk_test_ok")
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_mode")
	})

	t.Run("rejects unknown api key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewBufferString(`{}`))
		req.Header.Set("x-api-key", "pk_test_bad")
		w := httptest.NewRecorder()
		router.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAdminProcessEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	t.Run("rejects without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/deliveries/process", nil)
		w := httptest.NewRecorder()
		router.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("runs a pass with token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/deliveries/process", nil)
		req.Header.Set("X-Admin-Token", "admin-secret")
		w := httptest.NewRecorder()
		router.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "processed")
	})

	t.Run("rejects invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/deliveries/process?limit=zero", nil)
		req.Header.Set("X-Admin-Token", "admin-secret")
		w := httptest.NewRecorder()
		router.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDashboardRoutes_RequireJWT(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/projects/42/events", nil)
	w := httptest.NewRecorder()
	router.Handler().ServeHTTP(w, req)

	// No AUTH_JWT_SECRET is configured in the fixture.
	assert.Equal(t, http.StatusForbidden, w.Code)
}
