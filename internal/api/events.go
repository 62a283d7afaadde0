package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/event"
	"github.com/pixelrelay/pixelrelay-cloud/pkg/snowflake"
)

type eventSummary struct {
	ID           int64     `json:"id,string"`
	EventName    string    `json:"event_name"`
	EventID      string    `json:"event_id"`
	EventTime    int64     `json:"event_time"`
	SourceTag    string    `json:"source_tag"`
	QualityScore int       `json:"quality_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListEvents pages newest-first through a project's events.
func (r *Router) ListEvents(c *gin.Context) {
	projectID, ok := r.pathID(c, "projectId")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	var cursor int64
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := snowflake.ParseID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_cursor"})
			return
		}
		cursor = parsed
	}

	events, nextCursor, err := r.events.ListByProject(c.Request.Context(), event.ListQuery{
		ProjectID: projectID,
		EventName: c.Query("event_name"),
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
		return
	}

	items := make([]eventSummary, 0, len(events))
	for _, ev := range events {
		items = append(items, eventSummary{
			ID:           ev.ID,
			EventName:    ev.EventName,
			EventID:      ev.ClientEventID,
			EventTime:    ev.EventTime,
			SourceTag:    ev.SourceTag,
			QualityScore: ev.QualityScore,
			CreatedAt:    ev.CreatedAt,
		})
	}

	resp := gin.H{"success": true, "events": items}
	if nextCursor > 0 {
		resp["nextCursor"] = strconv.FormatInt(nextCursor, 10)
	}
	c.JSON(http.StatusOK, resp)
}

// GetEvent returns one event with full attributes.
func (r *Router) GetEvent(c *gin.Context) {
	projectID, ok := r.pathID(c, "projectId")
	if !ok {
		return
	}
	eventID, ok := r.pathID(c, "eventId")
	if !ok {
		return
	}

	ev, err := r.events.FindByProjectAndID(c.Request.Context(), projectID, eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not_found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "event": ev})
}

type deliveryView struct {
	ID           int64     `json:"id,string"`
	Status       string    `json:"status"`
	Attempts     int       `json:"attempts"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Destination  gin.H     `json:"destination"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ListDeliveries returns an event's delivery logs with destination summaries.
func (r *Router) ListDeliveries(c *gin.Context) {
	projectID, ok := r.pathID(c, "projectId")
	if !ok {
		return
	}
	eventID, ok := r.pathID(c, "eventId")
	if !ok {
		return
	}

	// Scope check: the event must belong to the project before exposing logs.
	ev, err := r.events.FindByProjectAndID(c.Request.Context(), projectID, eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not_found"})
		return
	}

	logs, err := r.deliveries.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
		return
	}

	items := make([]deliveryView, 0, len(logs))
	for _, d := range logs {
		view := deliveryView{
			ID:           d.Log.ID,
			Status:       string(d.Log.Status),
			Attempts:     d.Log.Attempts,
			ErrorMessage: d.Log.LastError,
			CreatedAt:    d.Log.CreatedAt,
			UpdatedAt:    d.Log.UpdatedAt,
		}
		if d.Destination != nil {
			view.Destination = gin.H{
				"id":           strconv.FormatInt(d.Destination.ID, 10),
				"type":         d.Destination.Type,
				"healthStatus": d.Destination.HealthStatus,
				"isActive":     d.Destination.IsActive,
			}
		}
		items = append(items, view)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deliveries": items})
}

// StatsOverview aggregates event and delivery counts for the dashboard.
func (r *Router) StatsOverview(c *gin.Context) {
	projectID, ok := r.pathID(c, "projectId")
	if !ok {
		return
	}

	stats, err := r.events.Stats(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (r *Router) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := snowflake.ParseID(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_" + name})
		return 0, false
	}
	return id, true
}
