package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/lesson-platform/internal/platform/events"
	"github.com/example/lesson-platform/services/playback/internal/graph"
)

type writeCall struct {
	kind       graph.Kind
	itemID     string
	position   float64
	duration   float64
	completion int
}

type fakeWriter struct {
	mu        sync.Mutex
	calls     []writeCall
	err       error
	confirmed bool          // service answers completed=true
	block     chan struct{} // when non-nil, WriteProgress waits until closed
}

func (f *fakeWriter) WriteProgress(_ context.Context, kind graph.Kind, itemID string, lastPosition, duration float64, completion int) (bool, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, writeCall{kind: kind, itemID: itemID, position: lastPosition, duration: duration, completion: completion})
	return f.confirmed, f.err
}

func (f *fakeWriter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeWriter) lastCall() writeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestSyncer(w Writer, window time.Duration) (*Syncer, *Store) {
	store := NewStore()
	s := NewSyncer(store, w, events.New(nil, zap.NewNop()), zap.NewNop(), Options{Window: window})
	return s, store
}

// waitCalls polls until the writer saw n calls or the deadline passes.
func waitCalls(t *testing.T, f *fakeWriter, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.callCount() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d writes, got %d", n, f.callCount())
}

func TestOnSample_RejectsNonPositiveValues(t *testing.T) {
	fw := &fakeWriter{}
	s, store := newTestSyncer(fw, time.Hour)

	if s.OnSample("u1", "l1", graph.KindLesson, 0, 100) {
		t.Fatal("zero current time must be rejected")
	}
	if s.OnSample("u1", "l1", graph.KindLesson, 10, 0) {
		t.Fatal("zero duration must be rejected")
	}
	if s.OnSample("u1", "l1", graph.KindLesson, 10, -5) {
		t.Fatal("negative duration must be rejected")
	}
	if _, ok := store.Get("u1", "l1"); ok {
		t.Fatal("rejected samples must not touch the store")
	}
	if fw.callCount() != 0 {
		t.Fatal("rejected samples must not trigger writes")
	}
}

func TestOnSample_ClampsPercentage(t *testing.T) {
	fw := &fakeWriter{}
	s, store := newTestSyncer(fw, time.Hour)

	// currentTime beyond duration still clamps to 100.
	if !s.OnSample("u1", "l1", graph.KindLesson, 250, 100) {
		t.Fatal("expected sample accepted")
	}
	r, _ := store.Get("u1", "l1")
	if r.CompletionPercentage != 100 {
		t.Fatalf("expected 100%%, got %d%%", r.CompletionPercentage)
	}
	if !r.Completed {
		t.Fatal("100%% must mark the record completed")
	}
}

func TestLoad_RoundTripsLastPosition(t *testing.T) {
	fw := &fakeWriter{}
	s, _ := newTestSyncer(fw, time.Hour)

	s.OnSample("u1", "l1", graph.KindLesson, 73.5, 600)
	r, ok := s.Load("u1", "l1")
	if !ok {
		t.Fatal("expected record after sample")
	}
	if r.LastPositionSeconds != 73.5 {
		t.Fatalf("expected 73.5, got %g", r.LastPositionSeconds)
	}
	if r.CompletionPercentage != 12 { // round(73.5/600*100)
		t.Fatalf("expected 12%%, got %d%%", r.CompletionPercentage)
	}
}

func TestThrottle_CoalescesWithinWindow(t *testing.T) {
	fw := &fakeWriter{}
	s, _ := newTestSyncer(fw, 60*time.Millisecond)

	s.OnSample("u1", "l1", graph.KindLesson, 10, 600)
	waitCalls(t, fw, 1)

	// Samples inside the window coalesce; only the latest survives.
	s.OnSample("u1", "l1", graph.KindLesson, 11, 600)
	s.OnSample("u1", "l1", graph.KindLesson, 12, 600)
	s.OnSample("u1", "l1", graph.KindLesson, 13, 600)
	if fw.callCount() != 1 {
		t.Fatalf("expected no extra write inside the window, got %d", fw.callCount())
	}

	waitCalls(t, fw, 2)
	last := fw.lastCall()
	if last.position != 13 {
		t.Fatalf("boundary flush must carry the latest value, got position %g", last.position)
	}
	if fw.callCount() != 2 {
		t.Fatalf("expected exactly 2 writes, got %d", fw.callCount())
	}
}

func TestThrottle_SeparateItemsDoNotShareWindows(t *testing.T) {
	fw := &fakeWriter{}
	s, _ := newTestSyncer(fw, time.Hour)

	s.OnSample("u1", "l1", graph.KindLesson, 10, 600)
	s.OnSample("u1", "l2", graph.KindLesson, 20, 600)
	waitCalls(t, fw, 2)
}

func TestThrottle_InFlightWriteQueuesLatest(t *testing.T) {
	fw := &fakeWriter{block: make(chan struct{})}
	s, _ := newTestSyncer(fw, 30*time.Millisecond)

	s.OnSample("u1", "l1", graph.KindLesson, 10, 600)
	time.Sleep(10 * time.Millisecond) // let the flush goroutine enter the writer

	s.OnSample("u1", "l1", graph.KindLesson, 20, 600)
	s.OnSample("u1", "l1", graph.KindLesson, 30, 600)
	close(fw.block)

	waitCalls(t, fw, 2)
	last := fw.lastCall()
	if last.position != 30 {
		t.Fatalf("queued write must carry the latest value, got %g", last.position)
	}
}

func TestServerConfirmedCompletionAppliedToLocalRecord(t *testing.T) {
	fw := &fakeWriter{confirmed: true}
	s, store := newTestSyncer(fw, time.Hour)

	// Halfway through, but the service already considers the item completed.
	s.OnSample("u1", "l1", graph.KindLesson, 50, 100)
	waitCalls(t, fw, 1)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r, ok := store.Get("u1", "l1"); ok && r.Completed {
			if r.CompletionPercentage != 50 {
				t.Fatalf("confirmation must not rewrite the percentage, got %d%%", r.CompletionPercentage)
			}
			// A later partial sample must not downgrade the confirmed flag.
			s.OnSample("u1", "l1", graph.KindLesson, 60, 100)
			r, _ = store.Get("u1", "l1")
			if !r.Completed {
				t.Fatal("confirmed completion downgraded by a later sample")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server-confirmed completion flag never applied")
}

func TestWriteFailure_KeepsLocalStateAndRecordsError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("progress service down")}
	s, store := newTestSyncer(fw, time.Hour)

	s.OnSample("u1", "l1", graph.KindLesson, 50, 100)
	waitCalls(t, fw, 1)

	deadline := time.Now().Add(time.Second)
	for s.LastError("u1", "l1") == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.LastError("u1", "l1") == nil {
		t.Fatal("expected write failure to be recorded")
	}
	if r, ok := store.Get("u1", "l1"); !ok || r.LastPositionSeconds != 50 {
		t.Fatal("local record must not be rolled back by a failed remote write")
	}
}

func TestRoutesByItemKind(t *testing.T) {
	fw := &fakeWriter{}
	s, _ := newTestSyncer(fw, time.Hour)

	s.OnSample("u1", "intro-c1", graph.KindIntro, 5, 60)
	waitCalls(t, fw, 1)
	if fw.lastCall().kind != graph.KindIntro {
		t.Fatalf("expected intro routing, got %q", fw.lastCall().kind)
	}
}

func TestReset_DropsThrottleState(t *testing.T) {
	fw := &fakeWriter{}
	s, store := newTestSyncer(fw, time.Hour)

	s.OnSample("u1", "l1", graph.KindLesson, 10, 600)
	waitCalls(t, fw, 1)
	s.Reset("u1")

	if _, ok := store.Get("u1", "l1"); ok {
		t.Fatal("reset must clear the store")
	}
	// A fresh sample after reset flushes immediately (no inherited cooldown).
	s.OnSample("u1", "l1", graph.KindLesson, 20, 600)
	waitCalls(t, fw, 2)
}
