package handlers

import (
	"net/http"

	"github.com/licensegate/licensegate/internal/audit"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// EventHandler serves the audit event endpoints.
type EventHandler struct {
	recorder audit.Recorder
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(recorder audit.Recorder) *EventHandler {
	return &EventHandler{recorder: recorder}
}

// listEventsQuery defines query parameters for listing events.
type listEventsQuery struct {
	Limit int `form:"limit,default=100"`
}

// List returns the most recent validation and admin events.
func (h *EventHandler) List(c *gin.Context) {
	var q listEventsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	rows, errList := h.recorder.List(c.Request.Context(), q.Limit)
	if errList != nil {
		log.WithError(errList).Error("list events failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":          row.ID,
			"kind":        row.Kind,
			"license_key": row.LicenseKey,
			"decision":    row.Decision,
			"detail":      row.Detail,
			"occurred_at": row.OccurredAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}
