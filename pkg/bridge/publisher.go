package bridge

import "sync"

// Publisher broadcasts full state snapshots to subscribers. It decouples the
// store from any specific event-bus mechanism: the host pushes complete
// snapshots (never diffs) and keeps the latest one readable at all times.
type Publisher[T any] struct {
	mu    sync.Mutex
	subs  map[int]func(T)
	next  int
	live  T
	ready bool
}

// NewPublisher returns an empty publisher with no live value.
func NewPublisher[T any]() *Publisher[T] {
	return &Publisher[T]{subs: make(map[int]func(T))}
}

// Publish replaces the live value and notifies every subscriber with the
// full snapshot. Subscribers are invoked synchronously in the caller's
// goroutine.
func (p *Publisher[T]) Publish(v T) {
	p.mu.Lock()
	p.live = v
	p.ready = true
	fns := make([]func(T), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing twice is a no-op.
func (p *Publisher[T]) Subscribe(fn func(T)) func() {
	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// Live returns the latest published value and whether one exists yet.
func (p *Publisher[T]) Live() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live, p.ready
}
