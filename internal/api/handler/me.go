package handler

import (
	"net/http"

	"github.com/heyysiri/EcoTrail/internal/api/models"
	"github.com/heyysiri/EcoTrail/internal/api/response"
)

// Points handles GET /v1/me/points - the caller's cumulative points.
func (h *RouteHandler) Points(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	total, err := h.service.Points(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err, "points lookup failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.Points{UserID: userID, Total: total})
}
