package domain

import "context"

// SideEffect classifies what a tool does to the outside world. The class maps
// directly onto the wire annotations (readOnlyHint, destructiveHint,
// openWorldHint) advertised in tools/list.
type SideEffect int

const (
	// ReadOnly tools never change state anywhere.
	ReadOnly SideEffect = iota
	// Mutating tools write to the entity store.
	Mutating
	// Destructive tools delete data irrecoverably.
	Destructive
	// External tools talk to third-party systems outside our control.
	External
)

// Annotations is the side-effect hint block advertised per tool.
type Annotations struct {
	ReadOnlyHint    bool `json:"readOnlyHint"`
	DestructiveHint bool `json:"destructiveHint"`
	OpenWorldHint   bool `json:"openWorldHint"`
}

// Annotations expands the class into the wire hint block.
func (s SideEffect) Annotations() Annotations {
	switch s {
	case ReadOnly:
		return Annotations{ReadOnlyHint: true}
	case Destructive:
		return Annotations{DestructiveHint: true}
	case External:
		return Annotations{OpenWorldHint: true}
	default:
		return Annotations{}
	}
}

// Invocation carries the per-call context threaded into every tool handler.
// Owner scopes business data and idempotency keys to one end user; it is
// resolved by the transport from host metadata and is opaque to the engine.
type Invocation struct {
	Tool           string
	Owner          string
	SessionID      string
	Args           map[string]any
	IdempotencyKey string
}

// Result is the outcome of one successful tool invocation: a human-readable
// trace line plus an optional machine-readable payload that hydrates the
// linked widget. It is ephemeral; the engine never persists it.
type Result struct {
	Text       string
	Structured any
}

// Handler executes one tool call. Arguments have already been validated
// against the tool's input schema when the handler runs. A returned error
// becomes a structured isError result on the wire; it never tears down the
// session.
type Handler func(ctx context.Context, inv Invocation) (*Result, error)
