package credentials

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeIssuer struct {
	mu     sync.Mutex
	calls  int32
	grant  Grant
	err    error
	delay  time.Duration
	grants map[string]Grant // optional per-lesson override
}

func (f *fakeIssuer) IssueToken(ctx context.Context, lessonID string) (Grant, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return Grant{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Grant{}, f.err
	}
	if g, ok := f.grants[lessonID]; ok {
		return g, nil
	}
	return f.grant, nil
}

type fakeSink struct {
	mu   sync.Mutex
	puts []Credential
}

func (f *fakeSink) Put(_ context.Context, _ string, cred Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, cred)
	return nil
}

func (f *fakeSink) last() (Credential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.puts) == 0 {
		return Credential{}, false
	}
	return f.puts[len(f.puts)-1], true
}

func TestRefreshInterval(t *testing.T) {
	tests := []struct {
		expiresIn int
		want      time.Duration
	}{
		{60, 50 * time.Second},
		{5, 10 * time.Second}, // clamped to the floor
		{20, 10 * time.Second},
		{3600, 3590 * time.Second},
	}
	for _, tt := range tests {
		if got := refreshInterval(tt.expiresIn); got != tt.want {
			t.Fatalf("refreshInterval(%d): expected %s, got %s", tt.expiresIn, tt.want, got)
		}
	}
}

func TestSinkTTLSeconds(t *testing.T) {
	if got := SinkTTLSeconds(Credential{ExpiresInSeconds: 60}); got != 55 {
		t.Fatalf("expected 55, got %d", got)
	}
	if got := SinkTTLSeconds(Credential{ExpiresInSeconds: 3}); got != 1 {
		t.Fatalf("expected floor of 1, got %d", got)
	}
}

func TestAcquire_DeliversToSinksAndEdge(t *testing.T) {
	issuer := &fakeIssuer{grant: Grant{Token: "tok-1", ExpiresIn: 60}}
	sink := &fakeSink{}
	m := NewManager(issuer, []Sink{sink}, zap.NewNop())
	defer m.ReleaseUser("u1")

	cred, err := m.Acquire(context.Background(), "u1", "l1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if cred.Token != "tok-1" {
		t.Fatalf("expected token 'tok-1', got %q", cred.Token)
	}
	if got, ok := sink.last(); !ok || got.Token != "tok-1" {
		t.Fatal("expected credential written to durable sink")
	}
	if latest, ok := m.Latest("u1"); !ok || latest.Token != "tok-1" {
		t.Fatal("expected credential in edge sink")
	}
}

func TestAcquire_StartsRefreshLease(t *testing.T) {
	issuer := &fakeIssuer{grant: Grant{Token: "tok", ExpiresIn: 3600}}
	m := NewManager(issuer, nil, zap.NewNop())

	if _, err := m.Acquire(context.Background(), "u1", "l1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	m.mu.Lock()
	_, ok := m.leases["u1:l1"]
	m.mu.Unlock()
	if !ok {
		t.Fatal("expected an active lease after acquire")
	}

	m.Release("u1", "l1")
	m.mu.Lock()
	_, ok = m.leases["u1:l1"]
	m.mu.Unlock()
	if ok {
		t.Fatal("expected lease cancelled after release")
	}
}

func TestAcquire_NoToken(t *testing.T) {
	issuer := &fakeIssuer{grant: Grant{Token: "", ExpiresIn: 60}}
	m := NewManager(issuer, nil, zap.NewNop())

	_, err := m.Acquire(context.Background(), "u1", "l1")
	if err == nil {
		t.Fatal("expected error for empty token")
	}
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialError, got %T", err)
	}
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken cause, got %v", err)
	}
}

func TestAcquire_ServiceFailure(t *testing.T) {
	issuer := &fakeIssuer{err: errors.New("boom")}
	m := NewManager(issuer, nil, zap.NewNop())

	_, err := m.Acquire(context.Background(), "u1", "l1")
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialError, got %v", err)
	}
	if credErr.LessonID != "l1" {
		t.Fatalf("expected lesson id in error, got %q", credErr.LessonID)
	}
}

func TestAcquire_DeduplicatesConcurrentCalls(t *testing.T) {
	issuer := &fakeIssuer{grant: Grant{Token: "tok", ExpiresIn: 3600}, delay: 50 * time.Millisecond}
	m := NewManager(issuer, nil, zap.NewNop())
	defer m.ReleaseUser("u1")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Acquire(context.Background(), "u1", "l1")
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&issuer.calls); n != 1 {
		t.Fatalf("expected a single service call for concurrent acquires, got %d", n)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	m := NewManager(&fakeIssuer{grant: Grant{Token: "tok", ExpiresIn: 60}}, nil, zap.NewNop())
	m.Release("u1", "l1")
	m.Release("u1", "l1") // no lease, no panic
}

func TestReleaseUser_DropsEdgeSink(t *testing.T) {
	issuer := &fakeIssuer{grant: Grant{Token: "tok", ExpiresIn: 3600}}
	m := NewManager(issuer, nil, zap.NewNop())

	if _, err := m.Acquire(context.Background(), "u1", "l1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	m.ReleaseUser("u1")

	if _, ok := m.Latest("u1"); ok {
		t.Fatal("expected edge sink cleared")
	}
	m.mu.Lock()
	n := len(m.leases)
	m.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected all leases released, %d remain", n)
	}
}
