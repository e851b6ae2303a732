package services

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/mprint/editor/internal/compositor"
	"github.com/mprint/editor/internal/editor"
)

const (
	// DefaultSessionTTL is how long an untouched session survives.
	DefaultSessionTTL = 30 * time.Minute
	// DefaultSweepInterval is how often expired sessions are collected.
	DefaultSweepInterval = time.Minute
)

// sideRaster caches the decoded pixels for the image layer of one side. The
// src tag invalidates the cache when the layer's source changes.
type sideRaster struct {
	src string
	img image.Image
}

// Session is one live editing session. All mutable fields are guarded by mu;
// the service snapshots state under the lock and renders outside it.
type Session struct {
	ID           string
	DesignID     string
	CornerRadius float64
	CreatedAt    time.Time

	mu          sync.Mutex
	state       *editor.EditorState
	interaction *editor.Interaction
	rasters     map[editor.Side]sideRaster
	previews    map[editor.Side]compositor.Result
	debounce    *compositor.Debouncer
	lastTouched time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastTouched = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastTouched) > ttl
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
}

// rasterFor returns the cached raster only if it still matches the layer's
// current source. Callers must hold s.mu.
func (s *Session) rasterFor(side editor.Side, src string) image.Image {
	cached, ok := s.rasters[side]
	if !ok || cached.src != src {
		return nil
	}
	return cached.img
}

// SessionStore is the in-memory registry of live sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	clock    func() time.Time
}

// SessionStoreDeps bundles constructor inputs for the session registry.
type SessionStoreDeps struct {
	TTL   time.Duration
	Clock func() time.Time
}

// NewSessionStore creates an empty session registry.
func NewSessionStore(deps SessionStoreDeps) *SessionStore {
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		clock:    clock,
	}
}

// Put registers a session under its ID.
func (r *SessionStore) Put(sess *Session) {
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
}

// Get returns the session and refreshes its idle deadline.
func (r *SessionStore) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(r.clock())
	return sess, nil
}

// Delete removes a session and releases its pending recompositions.
func (r *SessionStore) Delete(sessionID string) error {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.close()
	return nil
}

// Len reports the number of live sessions.
func (r *SessionStore) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops every session whose idle deadline has passed and reports how
// many were removed.
func (r *SessionStore) Sweep() int {
	now := r.clock()

	r.mu.Lock()
	var expired []*Session
	for id, sess := range r.sessions {
		if sess.expired(now, r.ttl) {
			expired = append(expired, sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	return len(expired)
}

// RunSweeper sweeps on the given interval until ctx is cancelled.
func (r *SessionStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
