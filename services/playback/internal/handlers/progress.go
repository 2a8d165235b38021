package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/example/lesson-platform/internal/platform/api"
	"github.com/example/lesson-platform/internal/platform/auth"
	"github.com/example/lesson-platform/internal/platform/httpserver"
	"github.com/example/lesson-platform/services/playback/internal/graph"
	"github.com/example/lesson-platform/services/playback/internal/progress"
	"github.com/example/lesson-platform/services/playback/internal/resume"
	"github.com/example/lesson-platform/services/playback/internal/session"
)

type sampleRequest struct {
	ItemID      string  `json:"item_id"`
	ItemType    string  `json:"item_type"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
}

type sampleResponse struct {
	Accepted bool `json:"accepted"`
}

// Sample ingests one player time sample. Rejected samples (non-positive time
// or duration) answer 200 with accepted=false; accepted samples answer 202
// because the remote write is throttled and asynchronous.
func Sample(syncer *progress.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok || strings.TrimSpace(uid) == "" {
			api.Unauthorized(w, "AUTH_MISSING", "Missing auth", rid)
			return
		}

		var req sampleRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		itemID := strings.TrimSpace(req.ItemID)
		if itemID == "" {
			api.BadRequest(w, "MISSING_ID", "item_id is required", rid, nil)
			return
		}

		kind := graph.Kind(strings.TrimSpace(req.ItemType))
		switch kind {
		case graph.KindIntro, graph.KindLesson, graph.KindEnd:
		default:
			api.BadRequest(w, "INVALID_ITEM_TYPE", "item_type must be intro, lesson or end", rid, nil)
			return
		}

		accepted := syncer.OnSample(uid, itemID, kind, req.CurrentTime, req.Duration)
		status := http.StatusOK
		if accepted {
			status = http.StatusAccepted
		}
		api.WriteJSON(w, status, sampleResponse{Accepted: accepted})
	}
}

type continueResponse struct {
	Items []resume.Entry `json:"items"`
	Limit int            `json:"limit"`
}

// ContinueWatching returns the ranked, bounded list of partially-watched
// items for the user's loaded series.
func ContinueWatching(reg *session.Registry, store *progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok || strings.TrimSpace(uid) == "" {
			api.Unauthorized(w, "AUTH_MISSING", "Missing auth", rid)
			return
		}

		limit := resume.DefaultLimit
		if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		entries := resume.Select(reg.Get(uid).Graph(), store, uid, limit)
		api.WriteJSON(w, http.StatusOK, continueResponse{Items: entries, Limit: limit})
	}
}
