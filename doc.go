/*
Package apphost is a protocol engine for conversational app servers. It
multiplexes independent sessions over one process, validates and dispatches
operation calls against a frozen registry, and serves interactive widget
documents that stay in sync with the host through a reactive state bridge.

# Concept

An application declares its tools (operations with JSON-schema validated
inputs and side-effect annotations) and widgets (HTML documents rendered
into the host's sandboxed iframe) in a registry. The engine owns everything
around that declaration: session lifecycle, JSON-RPC routing, input
validation, panic containment, idempotent mutation storage, and the widget
metadata that links a tool's structured result to its template.

# Usage

Build a registry, compose the engine, and serve:

	package main

	import (
		"context"
		"log"

		"github.com/hollaugo/apphost"
		"github.com/hollaugo/apphost/pkg/registry"
	)

	func main() {
		builder := registry.NewBuilder()
		// builder.AddWidget(...), builder.AddTool(...)
		reg, err := builder.Build()
		if err != nil {
			log.Fatal(err)
		}

		engine := apphost.New(reg, apphost.WithServiceName("taskboard"))
		if err := engine.Serve(context.Background(), ":8000"); err != nil {
			log.Fatal(err)
		}
	}

Tool handlers receive a domain.Invocation carrying the caller's anonymized
owner subject and optional idempotency key; mutations stored through a
ports.EntityStore are exactly-once per owner and key.

See the examples directory for a complete application.
*/
package apphost
