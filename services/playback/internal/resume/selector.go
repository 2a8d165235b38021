// Package resume ranks partially-watched items for the "continue watching"
// rail. Selection is a pure function of the lesson graph and the progress
// store, so identical inputs always produce identical output.
package resume

import (
	"fmt"
	"sort"

	"github.com/example/lesson-platform/services/playback/internal/graph"
	"github.com/example/lesson-platform/services/playback/internal/progress"
)

// DefaultLimit bounds the rail when the caller passes no limit.
const DefaultLimit = 8

// Entry is one resumable item with display-ready watched/total strings.
type Entry struct {
	Item                 graph.Item `json:"item"`
	CompletionPercentage int        `json:"completion_percentage"`
	Watched              string     `json:"watched"`
	Total                string     `json:"total"`
	UpdatedAtMs          int64      `json:"updated_at_ms"`
}

// Select scans the graph and progress store and returns up to limit items
// that are started but not finished (0 < completion < 100), most recently
// updated first, ties broken by graph order.
func Select(g graph.Graph, store *progress.Store, userID string, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultLimit
	}

	entries := make([]Entry, 0, limit)
	for _, item := range g.Items {
		rec, ok := store.Get(userID, item.ID)
		if !ok {
			continue
		}
		if rec.CompletionPercentage <= 0 || rec.CompletionPercentage >= 100 {
			continue
		}
		entries = append(entries, Entry{
			Item:                 item,
			CompletionPercentage: rec.CompletionPercentage,
			Watched:              formatClock(rec.LastPositionSeconds),
			Total:                formatClock(rec.DurationSeconds),
			UpdatedAtMs:          rec.UpdatedAtMs,
		})
	}

	// Stable sort preserves graph order for equal timestamps.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdatedAtMs > entries[j].UpdatedAtMs
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// formatClock renders seconds as zero-padded mm:ss.
func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
