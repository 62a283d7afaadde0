package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/pixelrelay/pixelrelay-cloud/internal/auth"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/apikey"
)

type stubKeyRepo struct {
	keys map[string]*apikey.Key
	err  error
}

func (s *stubKeyRepo) Resolve(ctx context.Context, raw string) (*apikey.Key, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.keys[raw], nil
}

func keyRouter(repo apikey.Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/probe", auth.APIKey(repo), func(c *gin.Context) {
		id, _ := auth.ProjectID(c)
		c.JSON(http.StatusOK, gin.H{"project_id": id})
	})
	return r
}

func TestAPIKey_ResolvesProject(t *testing.T) {
	repo := &stubKeyRepo{keys: map[string]*apikey.Key{
		"pk_live_abc": {ID: 1, ProjectID: 42, IsActive: true},
	}}
	r := keyRouter(repo)

	t.Run("x-api-key header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set("x-api-key", "pk_live_abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "42")
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set("Authorization", "Bearer pk_live_abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAPIKey_Rejections(t *testing.T) {
	repo := &stubKeyRepo{keys: map[string]*apikey.Key{}}
	r := keyRouter(repo)

	t.Run("missing credential", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown credential", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set("x-api-key", "pk_live_nope")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		failing := keyRouter(&stubKeyRepo{err: errors.New("db down")})
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set("x-api-key", "pk_live_abc")
		w := httptest.NewRecorder()
		failing.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
