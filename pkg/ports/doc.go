// Package ports defines the driven-side interfaces of the engine (the
// durable entity store) plus reusable contract tests that every adapter
// must pass.
package ports
