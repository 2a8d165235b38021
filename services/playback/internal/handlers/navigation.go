package handlers

import (
	"net/http"
	"strings"

	"github.com/example/lesson-platform/internal/platform/api"
	"github.com/example/lesson-platform/internal/platform/auth"
	"github.com/example/lesson-platform/internal/platform/httpserver"
	"github.com/example/lesson-platform/services/playback/internal/graph"
	"github.com/example/lesson-platform/services/playback/internal/session"
)

type navigationResponse struct {
	CanPrevious bool   `json:"can_previous"`
	CanNext     bool   `json:"can_next"`
	PreviousID  string `json:"previous_id,omitempty"`
	NextID      string `json:"next_id,omitempty"`
}

// Navigation answers the unlock gate's predicates for an item. The caller
// must not change selection when the corresponding predicate is false.
func Navigation(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok || strings.TrimSpace(uid) == "" {
			api.Unauthorized(w, "AUTH_MISSING", "Missing auth", rid)
			return
		}

		itemID := strings.TrimSpace(r.URL.Query().Get("item_id"))
		if itemID == "" {
			api.BadRequest(w, "MISSING_ID", "item_id is required", rid, nil)
			return
		}

		g := reg.Get(uid).Graph()
		resp := navigationResponse{
			CanPrevious: graph.CanGoPrevious(g, itemID),
			CanNext:     graph.CanGoNext(g, itemID),
		}
		if id, ok := graph.Previous(g, itemID); ok {
			resp.PreviousID = id
		}
		if id, ok := graph.Next(g, itemID); ok {
			resp.NextID = id
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}
