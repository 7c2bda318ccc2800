// Package domain holds the core vocabulary of the apphost engine: tool and
// widget descriptors, invocations and their results, business entities, and
// the sentinel errors shared by every adapter. It has no dependencies on
// transports or stores; those live behind the ports.
package domain
