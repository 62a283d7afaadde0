package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pixelrelay/pixelrelay-cloud/internal/api/middleware"
	"github.com/pixelrelay/pixelrelay-cloud/internal/auth"
	"github.com/pixelrelay/pixelrelay-cloud/internal/config"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/apikey"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/delivery"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/event"
	"github.com/pixelrelay/pixelrelay-cloud/internal/ingest"
	"github.com/pixelrelay/pixelrelay-cloud/internal/worker"
)

type Router struct {
	engine     *gin.Engine
	server     *http.Server
	cfg        *config.Config
	ingestSvc  *ingest.Service
	worker     *worker.Worker
	events     event.Repository
	deliveries delivery.Repository
	apiKeys    apikey.Repository
	logger     *zap.Logger
}

func NewRouter(
	cfg *config.Config,
	ingestSvc *ingest.Service,
	deliveryWorker *worker.Worker,
	events event.Repository,
	deliveries delivery.Repository,
	apiKeys apikey.Repository,
	logger *zap.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	r.Use(middleware.Logger(logger))

	api := &Router{
		engine:     r,
		cfg:        cfg,
		ingestSvc:  ingestSvc,
		worker:     deliveryWorker,
		events:     events,
		deliveries: deliveries,
		apiKeys:    apiKeys,
		logger:     logger,
	}

	api.RegisterRoutes()
	return api
}

func (r *Router) RegisterRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus metrics endpoint
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.engine.Group("/v1")
	{
		// Ingestion trigger: authorized by API key, key resolves the project.
		v1.POST("/events", auth.APIKey(r.apiKeys), r.IngestEvent)

		// Dashboard read surface (session tokens minted by the excluded
		// auth layer).
		projects := v1.Group("/projects")
		projects.Use(auth.JWT(r.cfg.AuthJWTSecret))
		{
			projects.GET("/:projectId/events", r.ListEvents)
			projects.GET("/:projectId/events/:eventId", r.GetEvent)
			projects.GET("/:projectId/events/:eventId/deliveries", r.ListDeliveries)
			projects.GET("/:projectId/stats/overview", r.StatsOverview)
		}
	}

	// Worker trigger (protected by ADMIN_API_TOKEN)
	admin := r.engine.Group("/admin")
	admin.Use(r.adminAuth())
	{
		admin.POST("/deliveries/process", r.ProcessDeliveries)
	}
}

// Handler exposes the underlying handler, mainly for tests.
func (r *Router) Handler() http.Handler {
	return r.engine
}

func (r *Router) Run() error {
	r.server = &http.Server{
		Addr:         ":" + r.cfg.Port,
		Handler:      r.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

func (r *Router) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(r.cfg.AdminAPIToken)
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_token_not_configured"})
			return
		}

		provided := strings.TrimSpace(c.GetHeader("X-Admin-Token"))
		if provided == "" {
			authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				provided = strings.TrimSpace(authHeader[7:])
			}
		}

		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
