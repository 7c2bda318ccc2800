package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hollaugo/apphost/internal/logging"
	"github.com/hollaugo/apphost/pkg/domain"
	"github.com/hollaugo/apphost/pkg/observability"
)

// sweepInterval bounds how often the janitor scans for idle sessions.
const sweepInterval = 30 * time.Second

// Factory mints the dispatcher for a new session. Each session gets its own
// instance so per-session protocol state never leaks across conversations.
type Factory func(sessionID string) Handler

// Registry owns the live session table.
type Registry struct {
	factory Factory
	logger  *slog.Logger
	metrics *observability.Metrics
	ttl     time.Duration

	mu       sync.Mutex
	sessions map[string]*Session

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics enables session gauges and counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithTTL evicts sessions idle longer than ttl. Zero disables eviction.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.ttl = ttl
	}
}

// NewRegistry creates a session registry. When a TTL is set, a janitor
// goroutine runs until Shutdown.
func NewRegistry(factory Factory, opts ...Option) *Registry {
	r := &Registry{
		factory:  factory,
		logger:   logging.NewNop(),
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ttl > 0 {
		go r.sweepLoop()
	}
	return r
}

// Mint creates a new session with a fresh dispatcher and registers it.
func (r *Registry) Mint() *Session {
	id := uuid.NewString()
	s := newSession(id, r.factory(id), time.Now())

	r.mu.Lock()
	r.sessions[id] = s
	count := len(r.sessions)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SessionsActive.Inc()
		r.metrics.SessionsTotal.Inc()
	}
	r.logger.Info("session minted", "session_id", id, "active", count)
	return s
}

// Get looks a session up by id. Unknown ids are an error, never an implicit
// mint; stale clients must re-initialize.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Close terminates a session and removes it from the table. Closing an
// unknown id returns ErrSessionNotFound; closing twice is the same as
// closing an unknown id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	s.close()
	if r.metrics != nil {
		r.metrics.SessionsActive.Dec()
	}
	r.logger.Info("session closed", "session_id", id)
	return nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown stops the janitor and closes every live session.
func (r *Registry) Shutdown() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
		if r.metrics != nil {
			r.metrics.SessionsActive.Dec()
		}
	}
}

func (r *Registry) sweepLoop() {
	interval := sweepInterval
	if r.ttl < interval {
		interval = r.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

// sweep evicts sessions idle longer than the TTL.
func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idleSince(now) > r.ttl {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.close()
		if r.metrics != nil {
			r.metrics.SessionsActive.Dec()
		}
		r.logger.Info("session expired", "session_id", s.ID(), "idle", s.idleSince(now).Round(time.Second))
	}
}
