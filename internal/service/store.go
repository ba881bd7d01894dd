package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-eco/internal/roi"
)

// DefaultSessionTTL is how long an unused session is kept.
const DefaultSessionTTL = 2 * time.Hour

// Session is one dashboard user: its bus, orchestrator and ROI controller.
type Session struct {
	ID           string
	Bus          *EventBus
	Orchestrator *Orchestrator
	ROI          *roi.Controller

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// ViewFactory builds the view of a new session on top of its bus.
type ViewFactory func(bus *EventBus) View

// StoreConfig configures a Store.
type StoreConfig struct {
	Backend Backend
	NewView ViewFactory
	Runs    RunRecorder
	Params  Params
	Pace    time.Duration
	TTL     time.Duration
	Logger  *zap.Logger
}

// Store keeps sessions keyed by uuid.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      StoreConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewStore creates an empty session store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the session with id and marks it as used.
func (s *Store) Get(id string) (*Session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sess.touch(s.now())
	}
	return sess, ok
}

// GetOrCreate returns the session with id, or a new one when id is unknown.
// The bool reports whether a session was created.
func (s *Store) GetOrCreate(id string) (*Session, bool) {
	if sess, ok := s.Get(id); ok {
		return sess, false
	}
	return s.Create(), true
}

// Create starts a new session.
func (s *Store) Create() *Session {
	id := uuid.NewString()
	bus := NewEventBus()
	view := s.cfg.NewView(bus)
	orch := NewOrchestrator(s.cfg.Backend, view, Options{
		Session: id,
		Params:  s.cfg.Params,
		Pace:    s.cfg.Pace,
		Runs:    s.cfg.Runs,
		Logger:  s.logger,
	})
	sess := &Session{
		ID:           id,
		Bus:          bus,
		Orchestrator: orch,
		ROI:          roi.NewController(orch, view),
		lastSeen:     s.now(),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Debug("Session created", zap.String("session", id))
	return sess
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the TTL that have no connected
// stream. It returns the number removed.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Bus.Subscribers() > 0 || sess.idleSince(now) < s.cfg.TTL {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	if removed > 0 {
		s.logger.Info("Expired idle sessions", zap.Int("removed", removed), zap.Int("remaining", len(s.sessions)))
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
