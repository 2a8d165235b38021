package progress

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/lesson-platform/internal/platform/events"
	"github.com/example/lesson-platform/services/playback/internal/graph"
)

// completedThreshold is the completion percentage at which an item is marked
// completed locally. A server-confirmed completion flag always wins over the
// computed percentage and is never downgraded (see Store.Upsert).
const completedThreshold = 95

const (
	defaultWindow       = 5 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// Writer forwards one progress value to the remote progress service and
// reports whether the service marked the item completed. The destination
// endpoint differs by item kind; shapes are identical.
type Writer interface {
	WriteProgress(ctx context.Context, kind graph.Kind, itemID string, lastPosition, duration float64, completion int) (confirmed bool, err error)
}

// Options tunes the synchronizer. Zero values fall back to defaults.
type Options struct {
	Window       time.Duration // throttle window, default 5s
	WriteTimeout time.Duration // per-write request bound, default 10s
}

// Syncer receives raw (currentTime, duration) samples from the player,
// updates the local Store immediately and forwards at most one remote write
// per throttle window per item, coalescing intermediate values
// (last-value-wins queue of depth 1).
type Syncer struct {
	store        *Store
	writer       Writer
	events       *events.Publisher
	log          *zap.Logger
	window       time.Duration
	writeTimeout time.Duration

	mu   sync.Mutex
	keys map[string]*keyState
}

type sample struct {
	userID     string
	itemID     string
	kind       graph.Kind
	position   float64
	duration   float64
	completion int
}

type keyState struct {
	lastFlush  time.Time
	pending    *sample
	timerArmed bool
	inflight   bool
	lastErr    error
}

func NewSyncer(store *Store, writer Writer, ev *events.Publisher, log *zap.Logger, opts Options) *Syncer {
	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Syncer{
		store:        store,
		writer:       writer,
		events:       ev,
		log:          log,
		window:       opts.Window,
		writeTimeout: opts.WriteTimeout,
		keys:         make(map[string]*keyState),
	}
}

// OnSample ingests one player time sample. Samples with a non-positive
// position or duration are dropped (returns false); this is a no-op, not an
// error. Accepted samples update the local store synchronously and schedule
// a throttled remote write.
func (s *Syncer) OnSample(userID, itemID string, kind graph.Kind, currentTime, duration float64) bool {
	if currentTime <= 0 || duration <= 0 {
		return false
	}

	pct := clampPercent(int(math.Round(currentTime / duration * 100)))
	completed := pct >= completedThreshold

	prev, had := s.store.Get(userID, itemID)
	s.store.Upsert(userID, Record{
		ItemID:               itemID,
		Kind:                 kind,
		LastPositionSeconds:  currentTime,
		DurationSeconds:      duration,
		CompletionPercentage: pct,
		Completed:            completed,
		UpdatedAtMs:          time.Now().UnixMilli(),
	})

	if completed && !(had && prev.Completed) {
		s.events.Publish(events.SubjectPlaybackCompleted, "item_completed", userID, map[string]any{
			"item_id":   itemID,
			"item_type": string(kind),
		})
	}

	s.enqueue(sample{
		userID:     userID,
		itemID:     itemID,
		kind:       kind,
		position:   currentTime,
		duration:   duration,
		completion: pct,
	})
	return true
}

// Load is a pure read of the local store; used to resume a video at its last
// position on (re)selection.
func (s *Syncer) Load(userID, itemID string) (Record, bool) {
	return s.store.Get(userID, itemID)
}

// LastError exposes the most recent remote-write failure for an item. Local
// state stays authoritative; remote persistence is eventually consistent.
func (s *Syncer) LastError(userID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.keys[throttleKey(userID, itemID)]; ok {
		return st.lastErr
	}
	return nil
}

// Reset drops a user's cached records and throttle state (logout).
func (s *Syncer) Reset(userID string) {
	s.store.Reset(userID)
	prefix := userID + "|"
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.keys {
		if strings.HasPrefix(k, prefix) {
			delete(s.keys, k)
		}
	}
}

func (s *Syncer) enqueue(sm sample) {
	key := throttleKey(sm.userID, sm.itemID)

	s.mu.Lock()
	st := s.keys[key]
	if st == nil {
		st = &keyState{}
		s.keys[key] = st
	}

	// While a write is in flight, only the most recent queued value survives.
	if st.inflight {
		st.pending = &sm
		s.mu.Unlock()
		return
	}

	now := time.Now()
	if now.Sub(st.lastFlush) >= s.window {
		st.inflight = true
		st.lastFlush = now
		s.mu.Unlock()
		go s.flush(key, sm)
		return
	}

	st.pending = &sm
	if !st.timerArmed {
		st.timerArmed = true
		delay := s.window - now.Sub(st.lastFlush)
		time.AfterFunc(delay, func() { s.fire(key) })
	}
	s.mu.Unlock()
}

// fire runs at a window boundary and flushes the latest pending value.
func (s *Syncer) fire(key string) {
	s.mu.Lock()
	st := s.keys[key]
	if st == nil {
		s.mu.Unlock()
		return
	}
	st.timerArmed = false
	if st.inflight || st.pending == nil {
		s.mu.Unlock()
		return
	}
	sm := *st.pending
	st.pending = nil
	st.inflight = true
	st.lastFlush = time.Now()
	s.mu.Unlock()

	s.flush(key, sm)
}

func (s *Syncer) flush(key string, sm sample) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	confirmed, err := s.writer.WriteProgress(ctx, sm.kind, sm.itemID, sm.position, sm.duration, sm.completion)
	cancel()

	s.mu.Lock()
	st := s.keys[key]
	if st != nil {
		st.lastErr = err
		st.inflight = false
		if st.pending != nil && !st.timerArmed {
			st.timerArmed = true
			delay := s.window - time.Since(st.lastFlush)
			if delay < 0 {
				delay = 0
			}
			time.AfterFunc(delay, func() { s.fire(key) })
		}
	}
	s.mu.Unlock()

	if err != nil {
		// Local state is not rolled back; the next window retries with the
		// latest value.
		s.log.Warn("progress write failed",
			zap.String("item_id", sm.itemID),
			zap.String("item_type", string(sm.kind)),
			zap.Error(err))
		return
	}

	// A server-confirmed completion is authoritative over the locally
	// computed percentage and is applied regardless of it.
	if confirmed {
		s.store.ConfirmCompleted(sm.userID, sm.itemID)
	}

	s.events.Publish(events.SubjectProgressFlushed, "progress_flushed", sm.userID, map[string]any{
		"item_id":               sm.itemID,
		"item_type":             string(sm.kind),
		"completion_percentage": sm.completion,
	})
}

func throttleKey(userID, itemID string) string { return userID + "|" + itemID }

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
