package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pixelrelay/pixelrelay-cloud/internal/auth"
	"github.com/pixelrelay/pixelrelay-cloud/internal/ingest"
)

// IngestEvent accepts one conversion payload for the project resolved by
// the API key middleware.
func (r *Router) IngestEvent(c *gin.Context) {
	projectID, ok := auth.ProjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}

	var req ingest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_payload"})
		return
	}

	result, err := r.ingestSvc.Ingest(c.Request.Context(), projectID, &req)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Code})
			return
		}
		r.logger.Error("ingest_failed", zap.Error(err), zap.Int64("project_id", projectID))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"event_internal_id": strconv.FormatInt(result.EventInternalID, 10),
		"destinations":      result.Destinations,
	})
}
