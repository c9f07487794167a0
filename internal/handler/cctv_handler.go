package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/cctv"
	"github.com/chiangyiyang/sr-twrw-line-bot/pkg/response"
)

// CCTVHandler exposes the camera inventory to the public map page.
type CCTVHandler struct {
	store *cctv.Store
}

// NewCCTVHandler creates a CCTV handler.
func NewCCTVHandler(store *cctv.Store) *CCTVHandler {
	return &CCTVHandler{store: store}
}

type cameraItem struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Longitude      float64  `json:"longitude"`
	Latitude       float64  `json:"latitude"`
	URL            string   `json:"url"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

func cameraItems(entries []cctv.Entry) []cameraItem {
	items := make([]cameraItem, len(entries))
	for i, e := range entries {
		items[i] = cameraItem{
			ID:        e.Identifier,
			Name:      e.DisplayName(),
			Longitude: e.Longitude,
			Latitude:  e.Latitude,
			URL:       e.URL,
		}
	}
	return items
}

// GetCameras handles GET /api/v1/cctv. With no query it lists every camera;
// keyword, district, or lon+lat narrow the result.
func (h *CCTVHandler) GetCameras(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("keyword"))
	district := strings.TrimSpace(c.Query("district"))
	lonText, latText := c.Query("lon"), c.Query("lat")
	limit := parseLimit(c, 50, 1, 500)

	switch {
	case lonText != "" || latText != "":
		lon, lonErr := strconv.ParseFloat(lonText, 64)
		lat, latErr := strconv.ParseFloat(latText, 64)
		if lonErr != nil || latErr != nil {
			response.Error(c, http.StatusBadRequest, "lon and lat must be numeric", nil)
			return
		}
		nearby := h.store.Nearest(lon, lat, limit)
		items := make([]cameraItem, len(nearby))
		for i, n := range nearby {
			d := n.DistanceMeters
			items[i] = cameraItem{
				ID:             n.Identifier,
				Name:           n.DisplayName(),
				Longitude:      n.Longitude,
				Latitude:       n.Latitude,
				URL:            n.URL,
				DistanceMeters: &d,
			}
		}
		response.Success(c, gin.H{"count": len(items), "items": items})

	case keyword != "":
		items := cameraItems(h.store.SearchByName(keyword, limit))
		response.Success(c, gin.H{"count": len(items), "items": items})

	case district != "":
		items := cameraItems(h.store.SearchByDistrict(district, limit))
		response.Success(c, gin.H{"count": len(items), "items": items})

	default:
		all := h.store.All()
		if len(all) > limit {
			all = all[:limit]
		}
		items := cameraItems(all)
		response.Success(c, gin.H{"count": len(items), "items": items})
	}
}
