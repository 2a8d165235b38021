package clients

import (
	"context"
	"math"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/lesson-platform/services/playback/internal/graph"
)

// ProgressClient writes playback progress to the remote progress service.
// The three endpoints (intro, end, lesson) share an identical request and
// response shape and differ only in path.
type ProgressClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Log        *zap.Logger
}

type progressWrite struct {
	ID                   string  `json:"id"`
	TimeSpent            int     `json:"time_spent"`
	LastPosition         float64 `json:"last_position"`
	CompletionPercentage int     `json:"completion_percentage"`
}

type progressStored struct {
	ID                   string  `json:"id"`
	LastPosition         float64 `json:"last_position"`
	CompletionPercentage int     `json:"completion_percentage"`
	Completed            bool    `json:"completed"`
}

func NewProgressClient(baseURL string, log *zap.Logger) *ProgressClient {
	return &ProgressClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: newHTTPClient(),
		Log:        log,
	}
}

// WriteProgress persists one coalesced progress value for the item and
// reports whether the service considers the item completed. The service's
// flag is authoritative; the caller folds it back into local state.
func (c *ProgressClient) WriteProgress(ctx context.Context, kind graph.Kind, itemID string, lastPosition, duration float64, completion int) (bool, error) {
	url := c.BaseURL + progressPath(kind, itemID)
	body := progressWrite{
		ID:                   itemID,
		TimeSpent:            int(math.Round(lastPosition)),
		LastPosition:         lastPosition,
		CompletionPercentage: completion,
	}
	resp, err := postJSON[progressStored](ctx, c.HTTPClient, url, body)
	if err != nil {
		return false, err
	}
	return resp.Completed, nil
}

func progressPath(kind graph.Kind, itemID string) string {
	switch kind {
	case graph.KindIntro:
		return "/intro-videos/" + itemID + "/progress"
	case graph.KindEnd:
		return "/end-videos/" + itemID + "/progress"
	default:
		return "/lessons/" + itemID + "/progress"
	}
}
