package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/lesson-platform/internal/platform/api"
	"github.com/example/lesson-platform/internal/platform/auth"
	"github.com/example/lesson-platform/internal/platform/httpserver"
	"github.com/example/lesson-platform/services/playback/internal/graph"
	"github.com/example/lesson-platform/services/playback/internal/session"
)

type seriesResponse struct {
	SeriesID string       `json:"series_id"`
	Items    []graph.Item `json:"items"`
}

// Series fetches the series tree from the catalog, rebuilds the user's
// lesson graph wholesale and returns the flattened sequence with unlock and
// progress annotations.
func Series(reg *session.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok || strings.TrimSpace(uid) == "" {
			api.Unauthorized(w, "AUTH_MISSING", "Missing auth", rid)
			return
		}

		seriesID := strings.TrimSpace(chi.URLParam(r, "series_id"))
		if seriesID == "" {
			api.BadRequest(w, "MISSING_ID", "series_id is required", rid, nil)
			return
		}

		g, err := reg.Get(uid).LoadSeries(r.Context(), seriesID)
		if err != nil {
			log.Warn("series fetch failed", zap.String("series_id", seriesID), zap.Error(err))
			api.WriteError(w, http.StatusBadGateway, "CATALOG_UNAVAILABLE", "Catalog is unavailable", rid, map[string]any{
				"retryable": true,
			})
			return
		}
		api.WriteJSON(w, http.StatusOK, seriesResponse{SeriesID: seriesID, Items: g.Items})
	}
}
