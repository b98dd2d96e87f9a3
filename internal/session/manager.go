// Package session keeps one bridge per client session so several sandboxes
// can run side by side in one process.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/bridge"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/worker"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrLimit    = errors.New("session limit reached")
)

// WorkerFactory builds the worker for a new session
type WorkerFactory func(sessionID id.SessionID) *worker.Worker

// Session is one live sandbox
type Session struct {
	ID        id.SessionID
	CreatedAt time.Time
	Bridge    *bridge.Bridge
}

// Info describes a session for listing
type Info struct {
	ID        id.SessionID `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
}

// Manager handles session lifecycle
type Manager struct {
	newWorker WorkerFactory
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	limit     int

	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics reports the active session gauge
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithLimit caps concurrent sessions; 0 means unlimited
func WithLimit(n int) Option {
	return func(m *Manager) { m.limit = n }
}

// NewManager creates a new session manager
func NewManager(newWorker WorkerFactory, opts ...Option) *Manager {
	m := &Manager{
		newWorker: newWorker,
		sessions:  make(map[id.SessionID]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrNop(m.logger).Named("session")
	return m
}

// Create starts a new session with an uninitialized worker
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limit > 0 && len(m.sessions) >= m.limit {
		return nil, ErrLimit
	}

	sid := id.NewSessionID()
	s := &Session{
		ID:        sid,
		CreatedAt: time.Now(),
		Bridge:    bridge.New(m.newWorker(sid), m.logger.With(zap.String("session", sid.String()))),
	}
	m.sessions[sid] = s
	m.metrics.SetSessionsActive(len(m.sessions))

	m.logger.Info("Session created", zap.String("session", sid.String()))
	return s, nil
}

// Get returns a session by ID
func (m *Manager) Get(sid id.SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sid]
	return s, ok
}

// Close stops a session's bridge after its in-flight request
func (m *Manager) Close(sid id.SessionID) error {
	m.mu.Lock()
	s, ok := m.sessions[sid]
	if ok {
		delete(m.sessions, sid)
		m.metrics.SetSessionsActive(len(m.sessions))
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sid)
	}
	m.logger.Info("Session closed", zap.String("session", sid.String()))
	return s.Bridge.Close()
}

// List returns sessions oldest first
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Info{ID: s.ID, CreatedAt: s.CreatedAt})
	}
	// ULIDs sort by creation time
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every session
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[id.SessionID]*Session)
	m.metrics.SetSessionsActive(0)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Bridge.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}
