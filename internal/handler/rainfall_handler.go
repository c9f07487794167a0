package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/models"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/service"
	"github.com/chiangyiyang/sr-twrw-line-bot/pkg/response"
)

// RainfallHandler exposes the locally ingested rainfall data.
type RainfallHandler struct {
	service *service.RainfallService
}

// NewRainfallHandler creates a rainfall handler.
func NewRainfallHandler(service *service.RainfallService) *RainfallHandler {
	return &RainfallHandler{service: service}
}

func parseLimit(c *gin.Context, fallback, minimum, maximum int) int {
	parsed, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return fallback
	}
	if parsed < minimum {
		return minimum
	}
	if parsed > maximum {
		return maximum
	}
	return parsed
}

func (h *RainfallHandler) observationsPayload(c *gin.Context, items interface{}, count int, meta gin.H) {
	updatedAt, err := h.service.UpdatedAt()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to read rainfall data", err)
		return
	}
	payload := gin.H{
		"count":      count,
		"items":      items,
		"updated_at": updatedAt,
	}
	if meta != nil {
		payload["meta"] = meta
	}
	response.Success(c, payload)
}

// GetLatest handles GET /api/v1/rainfall/latest
func (h *RainfallHandler) GetLatest(c *gin.Context) {
	limit := parseLimit(c, 100, 1, 500)
	items, err := h.service.Latest(limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get rainfall data", err)
		return
	}
	h.observationsPayload(c, items, len(items), nil)
}

// Search handles GET /api/v1/rainfall/search
func (h *RainfallHandler) Search(c *gin.Context) {
	queryType := strings.ToLower(c.Query("type"))

	switch queryType {
	case "coordinate":
		lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
		lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		if lonErr != nil || latErr != nil {
			response.Error(c, http.StatusBadRequest, "lon and lat must be numeric", nil)
			return
		}
		limit := parseLimit(c, 3, 1, 20)
		items, err := h.service.NearestByCoordinate(lon, lat, limit)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "Failed to search rainfall data", err)
			return
		}
		h.observationsPayload(c, items, len(items), gin.H{
			"query": gin.H{"type": "coordinate", "lon": lon, "lat": lat},
		})

	case "station":
		keyword := strings.TrimSpace(c.Query("keyword"))
		if keyword == "" {
			response.Error(c, http.StatusBadRequest, "keyword is required", nil)
			return
		}
		limit := parseLimit(c, 3, 1, 20)
		items, err := h.service.SearchByStation(keyword, limit)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "Failed to search rainfall data", err)
			return
		}
		h.observationsPayload(c, items, len(items), gin.H{
			"query": gin.H{"type": "station", "keyword": keyword},
		})

	case "district":
		city := strings.TrimSpace(c.Query("city"))
		if city == "" {
			response.Error(c, http.StatusBadRequest, "city is required", nil)
			return
		}
		town := strings.TrimSpace(c.Query("town"))
		items, err := h.service.SearchByDistrict(city, town, 200)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "Failed to search rainfall data", err)
			return
		}
		h.observationsPayload(c, items, len(items), gin.H{
			"query": gin.H{"type": "district", "city": city, "town": town},
		})

	default:
		response.Error(c, http.StatusBadRequest, "Unknown search type", nil)
	}
}

// GetSummary handles GET /api/v1/rainfall/summary
func (h *RainfallHandler) GetSummary(c *gin.Context) {
	limit := parseLimit(c, 5, 1, 50)
	summary, err := h.service.Summarize(limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to summarize rainfall data", err)
		return
	}
	updatedAt, err := h.service.UpdatedAt()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to read rainfall data", err)
		return
	}
	response.Success(c, gin.H{
		"summary":    summary,
		"updated_at": updatedAt,
	})
}

// GetStation handles GET /api/v1/rainfall/stations/:id
func (h *RainfallHandler) GetStation(c *gin.Context) {
	item, err := h.service.Station(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get station", err)
		return
	}
	if item == nil {
		response.Error(c, http.StatusNotFound, "Station not found", nil)
		return
	}
	h.observationsPayload(c, []models.StationObservation{*item}, 1, nil)
}
