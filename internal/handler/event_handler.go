package handler

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/models"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/service"
	"github.com/chiangyiyang/sr-twrw-line-bot/pkg/response"
)

// EventHandler handles HTTP requests for reported events.
type EventHandler struct {
	service *service.EventService
}

// NewEventHandler creates a new event handler.
func NewEventHandler(service *service.EventService) *EventHandler {
	return &EventHandler{service: service}
}

// GetEvents handles GET /api/v1/events
func (h *EventHandler) GetEvents(c *gin.Context) {
	var filter models.EventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	events, total, err := h.service.List(filter)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get events", err)
		return
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	totalPages := int(total) / filter.PageSize
	if int(total)%filter.PageSize > 0 {
		totalPages++
	}

	response.Success(c, gin.H{
		"data":       events,
		"total":      total,
		"page":       filter.Page,
		"pageSize":   filter.PageSize,
		"totalPages": totalPages,
	})
}

// GetEventByID handles GET /api/v1/events/:id
func (h *EventHandler) GetEventByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid event ID", err)
		return
	}

	event, err := h.service.Get(id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get event", err)
		return
	}
	if event == nil {
		response.Error(c, http.StatusNotFound, "Event not found", nil)
		return
	}
	response.Success(c, event)
}

// CreateEvent handles POST /api/v1/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var event models.ReportEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.service.Create(&event)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Failed to create event", err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

// UpdateEvent handles PUT /api/v1/events/:id
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid event ID", err)
		return
	}

	var event models.ReportEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	event.ID = id

	if err := h.service.Update(&event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, http.StatusNotFound, "Event not found", nil)
			return
		}
		response.Error(c, http.StatusBadRequest, "Failed to update event", err)
		return
	}
	response.Success(c, nil)
}

// DeleteEvent handles DELETE /api/v1/events/:id
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid event ID", err)
		return
	}

	if err := h.service.Delete(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, http.StatusNotFound, "Event not found", nil)
			return
		}
		response.Error(c, http.StatusInternalServerError, "Failed to delete event", err)
		return
	}
	response.Success(c, nil)
}

func csvValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// ExportEventsCSV handles GET /api/v1/events/export
func (h *EventHandler) ExportEventsCSV(c *gin.Context) {
	var filter models.EventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	// Export ignores pagination.
	filter.Page = 1
	filter.PageSize = 200

	var all []models.ReportEvent
	for {
		events, _, err := h.service.List(filter)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "Failed to export events", err)
			return
		}
		all = append(all, events...)
		if len(events) < filter.PageSize {
			break
		}
		filter.Page++
	}

	filename := fmt.Sprintf("events_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	// UTF-8 BOM so Excel renders the Chinese columns.
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})
	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{
		"id", "event_type", "route_line", "track_side", "mileage_text", "mileage_meters",
		"photo_filename", "longitude", "latitude", "location_title", "location_address",
		"source_type", "source_id", "created_at",
	})
	for _, e := range all {
		writer.Write([]string{
			strconv.FormatInt(e.ID, 10),
			e.EventType,
			e.RouteLine,
			e.TrackSide,
			e.MileageText,
			csvFloat(e.MileageMeters),
			csvValue(e.PhotoFilename),
			csvFloat(e.Longitude),
			csvFloat(e.Latitude),
			csvValue(e.LocationTitle),
			csvValue(e.LocationAddr),
			csvValue(e.SourceType),
			csvValue(e.SourceID),
			e.CreatedAt,
		})
	}
}
