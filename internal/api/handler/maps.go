package handler

import (
	"net/http"

	"github.com/heyysiri/EcoTrail/internal/api/response"
	"github.com/heyysiri/EcoTrail/internal/ecoroute"
)

// StaticMap handles GET /v1/maps/static - PNG of one mode's route.
func (h *RouteHandler) StaticMap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	img, err := h.service.RenderMap(r.Context(), ecoroute.MapRequest{
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		Mode:        q.Get("mode"),
	})
	if err != nil {
		h.writeServiceError(w, r, err, "map rendering failed")
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=300")
	response.Binary(w, r, http.StatusOK, img.ContentType, img.Data)
}
