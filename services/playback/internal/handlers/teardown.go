package handlers

import (
	"net/http"
	"strings"

	"github.com/example/lesson-platform/internal/platform/api"
	"github.com/example/lesson-platform/internal/platform/auth"
	"github.com/example/lesson-platform/internal/platform/httpserver"
	"github.com/example/lesson-platform/services/playback/internal/progress"
	"github.com/example/lesson-platform/services/playback/internal/session"
)

// EndSession tears the user's playback session down: progress cache cleared,
// credential leases released, controller forgotten. The drm_token cookie is
// expired on the way out.
func EndSession(reg *session.Registry, syncer *progress.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok || strings.TrimSpace(uid) == "" {
			api.Unauthorized(w, "AUTH_MISSING", "Missing auth", rid)
			return
		}

		syncer.Reset(uid)
		reg.Remove(uid)

		http.SetCookie(w, &http.Cookie{Name: "drm_token", Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	}
}
