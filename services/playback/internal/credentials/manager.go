// Package credentials acquires short-lived viewing credentials for protected
// lessons, keeps them fresh with a per-lesson refresh timer and mirrors them
// into the sinks the player's network layer reads.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// safetyMarginSeconds absorbs network latency: credentials refresh this many
// seconds before the reported expiry.
const safetyMarginSeconds = 10

// minRefreshInterval floors the refresh timer for very short-lived grants.
const minRefreshInterval = 10 * time.Second

const acquireTimeout = 10 * time.Second

// ErrNoToken is returned when the credential service answers without a token.
var ErrNoToken = errors.New("credential service returned no token")

// CredentialError wraps a failed acquisition or refresh for one lesson.
type CredentialError struct {
	LessonID string
	Err      error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential for lesson %s: %v", e.LessonID, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// Grant is the raw answer of the credential service.
type Grant struct {
	Token     string
	ExpiresIn int // seconds, as reported at acquisition time
}

// Credential is a short-lived authorization token scoped to one lesson.
// Refreshes supersede the credential; it is never mutated.
type Credential struct {
	Token            string
	ExpiresInSeconds int
	IssuedAt         time.Time
}

// Issuer calls the remote credential service.
type Issuer interface {
	IssueToken(ctx context.Context, lessonID string) (Grant, error)
}

// Sink receives every acquired or refreshed credential for a user. The
// manager is the only writer of credential sinks.
type Sink interface {
	Put(ctx context.Context, userID string, cred Credential) error
}

type lease struct {
	userID   string
	lessonID string
	interval time.Duration
	timer    *time.Timer
}

// Manager owns one refresh timer per active (user, lesson) pair and
// de-duplicates concurrent acquisitions per key.
type Manager struct {
	issuer Issuer
	sinks  []Sink
	log    *zap.Logger

	sf     singleflight.Group
	mu     sync.Mutex
	leases map[string]*lease
	latest map[string]Credential // edge sink: newest credential per user
}

func NewManager(issuer Issuer, sinks []Sink, log *zap.Logger) *Manager {
	return &Manager{
		issuer: issuer,
		sinks:  sinks,
		log:    log,
		leases: make(map[string]*lease),
		latest: make(map[string]Credential),
	}
}

// Acquire obtains a credential for the lesson, writes it to the sinks and
// (re)starts the refresh timer. Concurrent calls for the same key share one
// service call. Failure yields a CredentialError; playback must surface
// "unavailable" rather than crash.
func (m *Manager) Acquire(ctx context.Context, userID, lessonID string) (Credential, error) {
	key := leaseKey(userID, lessonID)
	v, err, _ := m.sf.Do(key, func() (any, error) {
		grant, err := m.issuer.IssueToken(ctx, lessonID)
		if err != nil {
			return Credential{}, &CredentialError{LessonID: lessonID, Err: err}
		}
		if grant.Token == "" {
			return Credential{}, &CredentialError{LessonID: lessonID, Err: ErrNoToken}
		}

		cred := Credential{Token: grant.Token, ExpiresInSeconds: grant.ExpiresIn, IssuedAt: time.Now()}
		m.deliver(ctx, userID, cred)
		m.schedule(userID, lessonID, refreshInterval(grant.ExpiresIn))
		return cred, nil
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

// Release cancels the refresh timer for the lesson. It must run before a new
// lesson is selected and on session teardown so an orphaned timer cannot
// write a stale credential into the shared sinks. Idempotent.
func (m *Manager) Release(userID, lessonID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := leaseKey(userID, lessonID)
	if l, ok := m.leases[key]; ok {
		l.timer.Stop()
		delete(m.leases, key)
	}
}

// ReleaseUser cancels every lease held for the user and drops the edge sink
// entry. Used on logout.
func (m *Manager) ReleaseUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, l := range m.leases {
		if l.userID == userID {
			l.timer.Stop()
			delete(m.leases, key)
		}
	}
	delete(m.latest, userID)
}

// Latest returns the newest credential delivered for the user. Handlers
// materialize it as the drm_token cookie on the next response.
func (m *Manager) Latest(userID string) (Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.latest[userID]
	return c, ok
}

func (m *Manager) deliver(ctx context.Context, userID string, cred Credential) {
	m.mu.Lock()
	m.latest[userID] = cred
	m.mu.Unlock()

	for _, sink := range m.sinks {
		if err := sink.Put(ctx, userID, cred); err != nil {
			m.log.Warn("credential sink write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

// schedule arms (or re-arms) the single refresh timer for the key.
func (m *Manager) schedule(userID, lessonID string, interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := leaseKey(userID, lessonID)
	if prev, ok := m.leases[key]; ok {
		prev.timer.Stop()
	}
	l := &lease{userID: userID, lessonID: lessonID, interval: interval}
	l.timer = time.AfterFunc(interval, func() { m.refresh(userID, lessonID) })
	m.leases[key] = l
}

// refresh silently re-acquires on timer fire. A failed refresh is swallowed;
// the current credential stays valid until its own expiry boundary and the
// re-armed timer retries.
func (m *Manager) refresh(userID, lessonID string) {
	key := leaseKey(userID, lessonID)

	m.mu.Lock()
	l, active := m.leases[key]
	var interval time.Duration
	if active {
		interval = l.interval
	}
	m.mu.Unlock()
	if !active {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), acquireTimeout)
	defer cancel()

	grant, err := m.issuer.IssueToken(ctx, lessonID)
	if err != nil || grant.Token == "" {
		if err == nil {
			err = ErrNoToken
		}
		m.log.Warn("credential refresh failed", zap.String("lesson_id", lessonID), zap.Error(err))
		m.schedule(userID, lessonID, interval)
		return
	}

	// The lease may have been released while the refresh was in flight;
	// writing sinks then would leak a stale credential.
	m.mu.Lock()
	_, active = m.leases[key]
	m.mu.Unlock()
	if !active {
		return
	}

	cred := Credential{Token: grant.Token, ExpiresInSeconds: grant.ExpiresIn, IssuedAt: time.Now()}
	m.deliver(ctx, userID, cred)
	m.schedule(userID, lessonID, refreshInterval(grant.ExpiresIn))
}

// refreshInterval is max(10s, expiresIn - safety margin).
func refreshInterval(expiresInSeconds int) time.Duration {
	d := time.Duration(expiresInSeconds-safetyMarginSeconds) * time.Second
	if d < minRefreshInterval {
		return minRefreshInterval
	}
	return d
}

func leaseKey(userID, lessonID string) string { return userID + ":" + lessonID }
