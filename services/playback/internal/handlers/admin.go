package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/lesson-platform/internal/platform/api"
	"github.com/example/lesson-platform/internal/platform/httpserver"
	"github.com/example/lesson-platform/services/playback/internal/progress"
	"github.com/example/lesson-platform/services/playback/internal/session"
)

// ForceEndSession lets an operator tear down another user's playback session,
// for example after revoking their account. Mounted behind the admin gate.
func ForceEndSession(reg *session.Registry, syncer *progress.Syncer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		targetID := strings.TrimSpace(chi.URLParam(r, "user_id"))
		if targetID == "" {
			api.BadRequest(w, "MISSING_ID", "user_id is required", rid, nil)
			return
		}

		syncer.Reset(targetID)
		reg.Remove(targetID)
		log.Info("session force-ended", zap.String("target_user_id", targetID))
		w.WriteHeader(http.StatusNoContent)
	}
}
