package clients

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/lesson-platform/services/playback/internal/graph"
)

// CatalogConfig holds configurable settings for the catalog client.
type CatalogConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// CatalogClient fetches the series tree and per-item metadata from the
// catalog service. Catalog fetches sit on the lesson-selection path, so the
// client retries with backoff and trips a circuit breaker when the catalog
// misbehaves.
type CatalogClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Config     CatalogConfig
	CB         *gobreaker.CircuitBreaker
	Log        *zap.Logger
}

// Lesson is the catalog's metadata for a single lesson video.
type Lesson struct {
	ID            string `json:"id"`
	CourseID      string `json:"course_id"`
	Title         string `json:"title"`
	DurationLabel string `json:"duration"`
}

// CatalogOption configures the CatalogClient.
type CatalogOption func(*CatalogClient)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) CatalogOption {
	return func(c *CatalogClient) { c.CB = cb }
}

func NewCatalogClient(baseURL string, cfg CatalogConfig, log *zap.Logger, opts ...CatalogOption) *CatalogClient {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	c := &CatalogClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: newHTTPClient(),
		Config:     cfg,
		Log:        log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetSeries returns the full series tree with embedded unlock/progress flags.
func (c *CatalogClient) GetSeries(ctx context.Context, seriesID string) (*graph.Series, error) {
	return catalogGet[graph.Series](ctx, c, c.BaseURL+"/series/"+seriesID)
}

// GetCourse returns one course with its bracketing video URLs.
func (c *CatalogClient) GetCourse(ctx context.Context, courseID string) (*graph.Course, error) {
	return catalogGet[graph.Course](ctx, c, c.BaseURL+"/courses/"+courseID)
}

// GetLesson returns metadata for one lesson video.
func (c *CatalogClient) GetLesson(ctx context.Context, lessonID string) (*Lesson, error) {
	return catalogGet[Lesson](ctx, c, c.BaseURL+"/lessons/"+lessonID)
}

func catalogGet[T any](ctx context.Context, c *CatalogClient, url string) (*T, error) {
	if c.CB == nil {
		return getWithRetry[T](ctx, c, url)
	}
	result, err := c.CB.Execute(func() (interface{}, error) {
		return getWithRetry[T](ctx, c, url)
	})
	if err != nil {
		return nil, err
	}
	return result.(*T), nil
}

func getWithRetry[T any](ctx context.Context, c *CatalogClient, url string) (*T, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.Config.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			c.Log.Debug("retrying catalog request", zap.String("url", url), zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		result, err := getJSON[T](ctx, c.HTTPClient, url)
		if err == nil {
			return result, nil
		}
		lastErr = err
		c.Log.Warn("catalog request failed", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, lastErr
}
