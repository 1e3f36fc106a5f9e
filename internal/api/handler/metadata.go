package handler

import (
	"net/http"

	"github.com/meetmidway/midway/internal/api/models"
	"github.com/meetmidway/midway/internal/api/response"
	"github.com/meetmidway/midway/internal/places"
	"github.com/meetmidway/midway/internal/scoring"
)

// vibeDimensions lists the neighborhood classification dimensions in display order.
var vibeDimensions = []string{"artsy", "trendy", "upscale", "entertainment"}

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct {
	enums models.Enums
}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler() *MetadataHandler {
	activityTypes := make([]string, 0, len(places.AllActivityTypes))
	for _, t := range places.AllActivityTypes {
		activityTypes = append(activityTypes, string(t))
	}

	strategies := scoring.Strategies()
	infos := make([]models.StrategyInfo, 0, len(strategies))
	for _, s := range strategies {
		infos = append(infos, models.StrategyInfo{
			Name:           string(s.Name),
			SearchRadiusKm: s.SearchRadiusKm,
			MinRating:      s.Thresholds.MinRating,
			MinReviews:     s.Thresholds.MinReviews,
		})
	}

	return &MetadataHandler{
		enums: models.Enums{
			ActivityTypes:  activityTypes,
			Strategies:     infos,
			VibeDimensions: vibeDimensions,
		},
	}
}

// GetEnums handles GET /v1/metadata/enums - get enum values used by the API.
func (h *MetadataHandler) GetEnums(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, h.enums)
}
