package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interiorDesignAi/internal/vision"
)

const sweepInterval = time.Minute

// Options configures the sessions a Manager creates.
type Options struct {
	Gateway   vision.Gateway
	Archive   Archive
	Publisher Publisher
	Logger    *zap.Logger
	// SurfaceEstimateErrors shows a failed estimate instead of silently
	// returning to idle.
	SurfaceEstimateErrors bool
	// TTL closes sessions idle for longer; zero keeps them forever.
	TTL time.Duration
	now func() time.Time
}

// Manager owns the live sessions.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager constructs a manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Create starts an empty session.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.opts)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.opts.Logger.Debug("session created", zap.String("session_id", s.id))
	return s
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.opts.now())
	return s, nil
}

// Delete closes and forgets a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle longer than the TTL and returns how many.
func (m *Manager) Sweep() int {
	if m.opts.TTL <= 0 {
		return 0
	}
	cutoff := m.opts.now().Add(-m.opts.TTL)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.opts.Logger.Info("session expired", zap.String("session_id", s.id))
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.opts.TTL <= 0 {
		return
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close closes every session and waits for their stages to return.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	for _, s := range sessions {
		s.Wait()
	}
}
