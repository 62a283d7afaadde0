package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProcessDeliveries runs one delivery pass over pending and retrying rows.
// Cadence is entirely up to the caller; the service schedules nothing on its
// own.
func (r *Router) ProcessDeliveries(c *gin.Context) {
	limit := r.cfg.WorkerBatchLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_limit"})
			return
		}
		limit = parsed
	}

	processed, err := r.worker.ProcessPending(c.Request.Context(), limit)
	if err != nil {
		r.logger.Error("delivery_pass_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "processed": processed})
}
