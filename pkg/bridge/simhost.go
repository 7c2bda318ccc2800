package bridge

import "sync"

// SimulatedHost is an in-process Host backed by a Publisher. It stands in
// for the real embedding surface in tests and previews, and records every
// widget-state write so delivery order can be replayed and reordered.
type SimulatedHost struct {
	pub *Publisher[Globals]

	mu        sync.Mutex
	writes    []any
	persistFn func(state any) error
}

// NewSimulatedHost returns a host with no live snapshot yet.
func NewSimulatedHost() *SimulatedHost {
	return &SimulatedHost{pub: NewPublisher[Globals]()}
}

// Push broadcasts a full snapshot, as the real host does after a tool call
// completes or widget state is persisted.
func (h *SimulatedHost) Push(g Globals) {
	h.pub.Publish(g)
}

// Globals returns the live snapshot.
func (h *SimulatedHost) Globals() (Globals, bool) {
	return h.pub.Live()
}

// Subscribe registers a broadcast listener.
func (h *SimulatedHost) Subscribe(fn func(Globals)) func() {
	return h.pub.Subscribe(fn)
}

// PersistWidgetState records the write and invokes the configured hook,
// if any.
func (h *SimulatedHost) PersistWidgetState(state any) error {
	h.mu.Lock()
	h.writes = append(h.writes, state)
	fn := h.persistFn
	h.mu.Unlock()

	if fn != nil {
		return fn(state)
	}
	return nil
}

// OnPersist installs a hook invoked for every widget-state write.
func (h *SimulatedHost) OnPersist(fn func(state any) error) {
	h.mu.Lock()
	h.persistFn = fn
	h.mu.Unlock()
}

// Writes returns the widget-state writes received so far, oldest first.
func (h *SimulatedHost) Writes() []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]any, len(h.writes))
	copy(out, h.writes)
	return out
}
