// Package bridge implements the widget side of the host state contract: a
// reactive view over host-pushed snapshots plus a write-back channel for
// ephemeral widget state. The same contract is implemented in JavaScript by
// the bootstrap the renderer embeds in every widget document; this package
// is the reference implementation the engine tests against.
package bridge

import (
	"sync"
	"time"
)

// Globals is the full state snapshot the host pushes to a widget instance.
type Globals struct {
	ToolInput   map[string]any `json:"toolInput"`
	ToolOutput  any            `json:"toolOutput"`
	WidgetState any            `json:"widgetState"`
	Theme       string         `json:"theme"`
	DisplayMode string         `json:"displayMode"`
}

// Host is the embedding surface a store binds to: the live snapshot feed
// and the persistence channel for widget state.
type Host interface {
	// Globals returns the live snapshot, false before the first broadcast.
	Globals() (Globals, bool)
	// Subscribe registers a broadcast listener; the returned function
	// unsubscribes it.
	Subscribe(fn func(Globals)) func()
	// PersistWidgetState forwards an ephemeral state write to the host.
	PersistWidgetState(state any) error
}

// Phase is the render lifecycle of a store. The polling fallback only runs
// in Idle; the first delivered snapshot moves the store to Rendered and the
// fallback is disposed for good.
type Phase int

const (
	Idle Phase = iota
	Rendered
)

// Updater derives the next widget state from the previous one.
type Updater func(prev any) any

// Store presents host-pushed state reactively. Snapshot always reads the
// live host value, never a cached copy, so a widget can never observe a
// stale snapshot. Ephemeral writes are applied optimistically and the host
// wins once it delivers a newer snapshot.
type Store struct {
	host Host

	mu          sync.Mutex
	phase       Phase
	pending     any // optimistic widget-state overlay
	hasPending  bool
	listeners   map[int]func()
	nextID      int
	unsubscribe func()
	poll        *pollToken
}

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// WithPolling configures the fallback that covers a broadcast missed before
// mount: the store polls the host every interval until timeout, then gives
// up silently. A zero timeout disables the fallback.
func WithPolling(interval, timeout time.Duration) Option {
	return func(c *storeConfig) {
		c.pollInterval = interval
		c.pollTimeout = timeout
	}
}

// NewStore binds a store to a host. The store subscribes exactly once; call
// Close to release the subscription and any pending fallback.
func NewStore(host Host, opts ...Option) *Store {
	cfg := storeConfig{
		pollInterval: 100 * time.Millisecond,
		pollTimeout:  0,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Store{
		host:      host,
		listeners: make(map[int]func()),
	}
	s.unsubscribe = host.Subscribe(s.onBroadcast)

	// The fallback also covers a snapshot that landed before this store
	// mounted: the first tick finds the live value and delivers it.
	if cfg.pollTimeout > 0 {
		s.poll = newPollToken()
		go s.pollLoop(cfg.pollInterval, cfg.pollTimeout)
	}

	return s
}

// onBroadcast handles one host snapshot delivery. The host is authoritative:
// any optimistic write still in flight is dropped in favor of the delivered
// value.
func (s *Store) onBroadcast(Globals) {
	s.mu.Lock()
	s.pending = nil
	s.hasPending = false
	s.markRenderedLocked()
	fns := s.listenersLocked()
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Subscribe registers a change listener and returns its unsubscribe
// function. Listeners receive no payload: they re-read via Snapshot, which
// is what keeps them stale-proof.
func (s *Store) Subscribe(onChange func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = onChange
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Snapshot reads the live host value. If an optimistic widget-state write is
// in flight, it overlays WidgetState until the host confirms or overrides it.
func (s *Store) Snapshot() Globals {
	g, _ := s.host.Globals()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasPending {
		g.WidgetState = s.pending
	}
	return g
}

// Phase reports the render lifecycle state.
func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// MarkRendered records that one successful render occurred and disposes the
// polling fallback. Idempotent.
func (s *Store) MarkRendered() {
	s.mu.Lock()
	s.markRenderedLocked()
	s.mu.Unlock()
}

// SetWidgetState writes ephemeral widget state: pass a value, or an Updater
// deriving it from the previous state. The local view updates immediately
// and the write is forwarded to the host. If the host later pushes a
// snapshot while the write is in flight, the host-pushed value wins.
func (s *Store) SetWidgetState(next any) error {
	if up, ok := next.(Updater); ok {
		next = up(s.Snapshot().WidgetState)
	} else if fn, ok := next.(func(prev any) any); ok {
		next = fn(s.Snapshot().WidgetState)
	}

	s.mu.Lock()
	s.pending = next
	s.hasPending = true
	fns := s.listenersLocked()
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}

	return s.host.PersistWidgetState(next)
}

// Close releases the host subscription and cancels any pending fallback.
func (s *Store) Close() {
	s.mu.Lock()
	if s.poll != nil {
		s.poll.Cancel()
		s.poll = nil
	}
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (s *Store) markRenderedLocked() {
	s.phase = Rendered
	if s.poll != nil {
		s.poll.Cancel()
		s.poll = nil
	}
}

func (s *Store) listenersLocked() []func() {
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return fns
}

// pollLoop checks the host until a snapshot appears, the token is cancelled,
// or the bounded wait elapses. Giving up is silent: Idle widgets keep their
// skeleton render rather than raising a user-visible error.
func (s *Store) pollLoop(interval, timeout time.Duration) {
	s.mu.Lock()
	token := s.poll
	s.mu.Unlock()
	if token == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-token.stop:
			return
		case <-deadline.C:
			return
		case <-ticker.C:
			if g, ok := s.host.Globals(); ok {
				s.onBroadcast(g)
				return
			}
		}
	}
}

// pollToken is a cancellable handle on the fallback timer, explicitly
// disposed once the primary subscription fires.
type pollToken struct {
	stop chan struct{}
	once sync.Once
}

func newPollToken() *pollToken {
	return &pollToken{stop: make(chan struct{})}
}

func (t *pollToken) Cancel() {
	t.once.Do(func() { close(t.stop) })
}
