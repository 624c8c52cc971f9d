package handler

import (
	"net/http"

	"github.com/heyysiri/EcoTrail/internal/api/models"
	"github.com/heyysiri/EcoTrail/internal/api/response"
	"github.com/heyysiri/EcoTrail/internal/eco"
)

// MetadataHandler serves static reference data.
type MetadataHandler struct {
	modes models.ModesMetadata
}

// NewMetadataHandler creates a MetadataHandler for the given policy.
func NewMetadataHandler(policy eco.Policy) *MetadataHandler {
	return &MetadataHandler{modes: models.NewModesMetadata(policy)}
}

// Modes handles GET /v1/metadata/modes - supported modes and their factors.
func (h *MetadataHandler) Modes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, h.modes)
}
