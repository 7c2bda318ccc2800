package domain

import "errors"

// ErrSessionNotFound is returned when a session ID is unknown to the registry
// (stale or forged). It is surfaced to the caller, never retried internally.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionClosed is returned when a request arrives for a session whose
// transport has already been closed.
var ErrSessionClosed = errors.New("session closed")

// ErrUnknownTool is returned when a call names a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// ErrUnknownWidget is returned when a read names a widget that is not registered.
var ErrUnknownWidget = errors.New("unknown widget")

// ErrEntityNotFound is returned by entity stores for missing or
// foreign-owned records.
var ErrEntityNotFound = errors.New("entity not found")
