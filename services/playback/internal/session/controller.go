// Package session orchestrates lesson playback: it owns the currently
// selected item per user, drives credential acquisition and catalog fetches
// on selection change, and exposes the resulting playable URL and metadata.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/lesson-platform/services/playback/internal/clients"
	"github.com/example/lesson-platform/services/playback/internal/credentials"
	"github.com/example/lesson-platform/services/playback/internal/graph"
	"github.com/example/lesson-platform/services/playback/internal/progress"
)

// State is the controller's lifecycle phase.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// ErrStale marks a selection result that was superseded by a later Select
// before it resolved. Stale results never change controller state.
var ErrStale = errors.New("selection superseded")

// ErrUnknownItem is returned for ids absent from the loaded lesson graph.
var ErrUnknownItem = errors.New("unknown playable item")

// ErrNoGraph is returned when Select runs before a series was loaded.
var ErrNoGraph = errors.New("no series loaded")

// Catalog is the slice of the catalog client the controller consumes.
type Catalog interface {
	GetSeries(ctx context.Context, seriesID string) (*graph.Series, error)
	GetCourse(ctx context.Context, courseID string) (*graph.Course, error)
	GetLesson(ctx context.Context, lessonID string) (*clients.Lesson, error)
}

// Credentials is the slice of the credential manager the controller consumes.
type Credentials interface {
	Acquire(ctx context.Context, userID, lessonID string) (credentials.Credential, error)
	Release(userID, lessonID string)
	ReleaseUser(userID string)
}

// Snapshot is the controller state exposed to the player widget.
type Snapshot struct {
	State                 State      `json:"state"`
	Item                  graph.Item `json:"item"`
	PlaybackURL           string     `json:"playback_url,omitempty"`
	ResumePositionSeconds float64    `json:"resume_position_seconds"`
	CanPrevious           bool       `json:"can_previous"`
	CanNext               bool       `json:"can_next"`
	Retryable             bool       `json:"retryable,omitempty"`
	Error                 string     `json:"error,omitempty"`
}

// Controller is the per-user playback session state machine:
// Idle -> Loading -> Ready -> (Loading on re-selection) ... -> Error.
// Selection changes are totally ordered by a generation counter; a response
// belonging to a stale generation is dropped, so the session never regresses
// to an older lesson's data after a rapid double-selection.
type Controller struct {
	userID       string
	catalog      Catalog
	creds        Credentials
	syncer       *progress.Syncer
	playbackBase string
	log          *zap.Logger

	mu          sync.Mutex
	state       State
	gen         uint64
	currentID   string
	current     graph.Item
	playbackURL string
	retryable   bool
	lastErr     error
	graph       graph.Graph
}

func NewController(userID string, catalog Catalog, creds Credentials, syncer *progress.Syncer, playbackBase string, log *zap.Logger) *Controller {
	return &Controller{
		userID:       userID,
		catalog:      catalog,
		creds:        creds,
		syncer:       syncer,
		playbackBase: playbackBase,
		log:          log,
		state:        StateIdle,
	}
}

// LoadSeries fetches the series tree and replaces the lesson graph wholesale.
// The graph is never patched in place.
func (c *Controller) LoadSeries(ctx context.Context, seriesID string) (graph.Graph, error) {
	series, err := c.catalog.GetSeries(ctx, seriesID)
	if err != nil {
		return graph.Graph{}, err
	}
	built := graph.Build(*series)

	c.mu.Lock()
	c.graph = built
	c.mu.Unlock()
	return built, nil
}

// Graph returns the current lesson graph (zero value before LoadSeries).
func (c *Controller) Graph() graph.Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph
}

// Select switches the session to itemID. Selecting the already-Ready item is
// a no-op guarding against double-clicks. Fetch failures move the session to
// Error with a retryable flag; re-invoking Select with the same id retries.
func (c *Controller) Select(ctx context.Context, itemID string) (Snapshot, error) {
	c.mu.Lock()
	if c.state == StateReady && c.currentID == itemID {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}
	if c.graph.Len() == 0 {
		c.mu.Unlock()
		return Snapshot{State: c.state}, ErrNoGraph
	}
	item, ok := c.graph.ItemByID(itemID)
	if !ok {
		c.mu.Unlock()
		return Snapshot{State: c.state}, ErrUnknownItem
	}

	c.gen++
	gen := c.gen
	if c.current.Kind == graph.KindLesson && c.current.ID != "" && c.current.ID != itemID {
		c.creds.Release(c.userID, c.current.ID)
	}
	c.state = StateLoading
	c.currentID = itemID
	c.current = item
	c.playbackURL = ""
	c.lastErr = nil
	c.retryable = false
	c.mu.Unlock()

	playbackURL, meta, fetchErr := c.resolve(ctx, item)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// A later selection superseded this one; discard the late response.
		return c.snapshotLocked(), ErrStale
	}
	if fetchErr != nil {
		c.state = StateError
		c.lastErr = fetchErr
		c.retryable = true
		c.log.Warn("selection failed", zap.String("item_id", itemID), zap.Error(fetchErr))
		return c.snapshotLocked(), fetchErr
	}
	if meta != nil {
		item.Title = meta.Title
		item.DurationLabel = meta.DurationLabel
		c.current = item
	}
	c.playbackURL = playbackURL
	c.state = StateReady
	return c.snapshotLocked(), nil
}

// resolve performs the network work for a selection outside the lock. For
// lessons the credential and the metadata resolve in parallel; intro/end
// videos carry no per-lesson credential and use the catalog URL directly.
func (c *Controller) resolve(ctx context.Context, item graph.Item) (string, *clients.Lesson, error) {
	if item.Kind != graph.KindLesson {
		course, err := c.catalog.GetCourse(ctx, item.CourseID)
		if err != nil {
			return "", nil, err
		}
		url := course.EndVideoURL
		if item.Kind == graph.KindIntro {
			url = course.IntroVideoURL
		}
		if url == "" {
			url = item.PlaybackURL
		}
		return url, nil, nil
	}

	var meta *clients.Lesson
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		_, err := c.creds.Acquire(egCtx, c.userID, item.ID)
		return err
	})
	eg.Go(func() error {
		m, err := c.catalog.GetLesson(egCtx, item.ID)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	if err := eg.Wait(); err != nil {
		return "", nil, err
	}
	// The credential travels out-of-band (cookie / KV sink); the URL itself
	// is the credential-bearing playlist endpoint.
	return c.playbackBase + "/lessons/" + item.ID + "/drm/playlist", meta, nil
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close releases all credential leases for the user. In-flight requests are
// abandoned through the generation check rather than hard cancellation.
func (c *Controller) Close() {
	c.creds.ReleaseUser(c.userID)
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:       c.state,
		Item:        c.current,
		CanPrevious: graph.CanGoPrevious(c.graph, c.currentID),
		CanNext:     graph.CanGoNext(c.graph, c.currentID),
		Retryable:   c.retryable,
	}
	if c.state == StateReady {
		snap.PlaybackURL = c.playbackURL
	}
	if c.lastErr != nil {
		snap.Error = c.lastErr.Error()
	}
	if c.currentID != "" {
		if rec, ok := c.syncer.Load(c.userID, c.currentID); ok {
			snap.ResumePositionSeconds = rec.LastPositionSeconds
		} else {
			// No local samples yet (fresh process); fall back to the
			// position the catalog reported at graph build time.
			snap.ResumePositionSeconds = c.current.LastPositionSeconds
		}
	}
	return snap
}
