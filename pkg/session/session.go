// Package session multiplexes independent conversations over one server
// process. Each session owns a dedicated dispatcher with its own negotiated
// protocol state; envelopes within a session are processed in arrival order
// while distinct sessions run concurrently.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hollaugo/apphost/pkg/domain"
)

// Handler processes one raw envelope for a session. It is satisfied by
// *dispatch.Dispatcher.
type Handler interface {
	Handle(ctx context.Context, raw []byte) []byte
}

// Session is one live conversation. The zero value is not usable; sessions
// are minted by a Registry.
type Session struct {
	id        string
	createdAt time.Time

	dispatcher Handler

	// mu serializes envelopes so within-session ordering matches arrival.
	mu       sync.Mutex
	closed   atomic.Bool
	lastSeen atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(id string, dispatcher Handler, now time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		createdAt:  now,
		dispatcher: dispatcher,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.lastSeen.Store(now.UnixNano())
	return s
}

// ID returns the stable session identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was minted.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Handle runs one envelope through the session's dispatcher. Requests on a
// closed session fail with ErrSessionClosed; an envelope already in flight
// when the session closes runs to completion, but its response is dropped by
// the transport rather than written into a removed session.
func (s *Session) Handle(ctx context.Context, raw []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, domain.ErrSessionClosed
	}

	// Closing the session cancels in-flight work through the request
	// context as well.
	reqCtx, cancelReq := context.WithCancel(ctx)
	defer cancelReq()
	stop := context.AfterFunc(s.ctx, cancelReq)
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, domain.ErrSessionClosed
	}
	s.lastSeen.Store(time.Now().UnixNano())

	return s.dispatcher.Handle(reqCtx, raw), nil
}

// close marks the session dead and cancels its context. Safe to call more
// than once.
func (s *Session) close() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}
