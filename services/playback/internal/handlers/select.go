// Package handlers exposes the playback engine to the player widget over
// HTTP. Every route requires a bearer-authenticated user.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/lesson-platform/internal/platform/api"
	"github.com/example/lesson-platform/internal/platform/auth"
	"github.com/example/lesson-platform/internal/platform/events"
	"github.com/example/lesson-platform/internal/platform/httpserver"
	"github.com/example/lesson-platform/services/playback/internal/credentials"
	"github.com/example/lesson-platform/services/playback/internal/graph"
	"github.com/example/lesson-platform/services/playback/internal/session"
)

// Publisher is the slice of the event publisher the handlers emit on.
type Publisher interface {
	Publish(subject, eventName, userID string, props map[string]any)
}

// Select switches the user's session to the requested item. On success for a
// lesson it also materializes the freshest credential as the drm_token
// cookie, which the player's network layer sends with playlist requests.
func Select(reg *session.Registry, creds *credentials.Manager, ev Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok || strings.TrimSpace(uid) == "" {
			api.Unauthorized(w, "AUTH_MISSING", "Missing auth", rid)
			return
		}

		itemID := strings.TrimSpace(chi.URLParam(r, "item_id"))
		if itemID == "" {
			api.BadRequest(w, "MISSING_ID", "item_id is required", rid, nil)
			return
		}

		ctrl := reg.Get(uid)
		snap, err := ctrl.Select(r.Context(), itemID)
		switch {
		case errors.Is(err, session.ErrStale):
			// The superseding selection already answered and published;
			// report current state without emitting a second event.
		case errors.Is(err, session.ErrNoGraph):
			api.BadRequest(w, "NO_SERIES", "Load a series before selecting items", rid, nil)
			return
		case errors.Is(err, session.ErrUnknownItem):
			api.NotFound(w, "UNKNOWN_ITEM", "Item is not part of the loaded series", rid)
			return
		case err != nil:
			var credErr *credentials.CredentialError
			code := "CATALOG_UNAVAILABLE"
			if errors.As(err, &credErr) {
				code = "CREDENTIAL_UNAVAILABLE"
			}
			api.WriteError(w, http.StatusBadGateway, code, "Playback is unavailable", rid, map[string]any{
				"retryable": snap.Retryable,
			})
			return
		}

		if snap.State == session.StateReady && snap.Item.Kind == graph.KindLesson {
			if cred, ok := creds.Latest(uid); ok {
				http.SetCookie(w, &http.Cookie{
					Name:     "drm_token",
					Value:    cred.Token,
					Path:     "/",
					MaxAge:   credentials.SinkTTLSeconds(cred),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
		}

		if err == nil {
			ev.Publish(events.SubjectPlaybackSelected, "item_selected", uid, map[string]any{
				"item_id":   snap.Item.ID,
				"item_type": string(snap.Item.Kind),
			})
		}
		api.WriteJSON(w, http.StatusOK, snap)
	}
}
