package apphost

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	apphosthttp "github.com/hollaugo/apphost/internal/adapters/http"
	"github.com/hollaugo/apphost/internal/logging"
	"github.com/hollaugo/apphost/pkg/dispatch"
	"github.com/hollaugo/apphost/pkg/observability"
	"github.com/hollaugo/apphost/pkg/registry"
	"github.com/hollaugo/apphost/pkg/session"
	"github.com/hollaugo/apphost/pkg/widget"
)

// Version is stamped at build time.
var Version = "dev"

// Engine is the high-level entry point for the library. It wires a frozen
// tool and widget registry into the session multiplexer and exposes the
// result as an HTTP handler.
type Engine struct {
	registry *registry.Registry
	renderer *widget.Renderer
	sessions *session.Registry
	handler  http.Handler

	logger  *slog.Logger
	metrics *observability.Metrics

	serviceName     string
	widgetDomain    string
	connectOrigins  []string
	resourceOrigins []string
	sessionTTL      time.Duration
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics enables Prometheus collectors and the /metrics endpoint.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithServiceName sets the name advertised on initialize and /healthz.
func WithServiceName(name string) Option {
	return func(e *Engine) {
		e.serviceName = name
	}
}

// WithWidgetDomain sets the domain widgets are served from.
func WithWidgetDomain(domain string) Option {
	return func(e *Engine) {
		e.widgetDomain = domain
	}
}

// WithAllowedOrigins sets the CSP allowlists embedded in widget metadata.
func WithAllowedOrigins(connect, resource []string) Option {
	return func(e *Engine) {
		e.connectOrigins = connect
		e.resourceOrigins = resource
	}
}

// WithSessionTTL evicts sessions idle longer than ttl. Zero disables
// eviction.
func WithSessionTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.sessionTTL = ttl
	}
}

// New composes an engine over the given registry.
func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:    reg,
		logger:      logging.NewNop(),
		serviceName: "apphost",
	}
	for _, opt := range opts {
		opt(e)
	}

	var renderOpts []widget.Option
	if e.widgetDomain != "" {
		renderOpts = append(renderOpts, widget.WithWidgetDomain(e.widgetDomain))
	}
	if len(e.connectOrigins) > 0 || len(e.resourceOrigins) > 0 {
		renderOpts = append(renderOpts, widget.WithAllowedOrigins(e.connectOrigins, e.resourceOrigins))
	}
	e.renderer = widget.NewRenderer(reg, renderOpts...)

	factory := func(sessionID string) session.Handler {
		dispatchOpts := []dispatch.Option{
			dispatch.WithSessionID(sessionID),
			dispatch.WithLogger(e.logger),
			dispatch.WithServerInfo(e.serviceName, Version),
		}
		if e.metrics != nil {
			dispatchOpts = append(dispatchOpts, dispatch.WithMetrics(e.metrics))
		}
		return dispatch.New(reg, e.renderer, dispatchOpts...)
	}

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.metrics != nil {
		sessionOpts = append(sessionOpts, session.WithMetrics(e.metrics))
	}
	if e.sessionTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithTTL(e.sessionTTL))
	}
	e.sessions = session.NewRegistry(factory, sessionOpts...)

	serverOpts := []apphosthttp.Option{
		apphosthttp.WithLogger(e.logger),
		apphosthttp.WithServiceName(e.serviceName),
	}
	if e.metrics != nil {
		serverOpts = append(serverOpts, apphosthttp.WithMetrics(e.metrics))
	}
	e.handler = apphosthttp.NewHandler(e.sessions, reg, e.renderer, serverOpts...)

	return e
}

// Handler returns the HTTP handler serving the protocol endpoint, health,
// previews, and metrics.
func (e *Engine) Handler() http.Handler {
	return e.handler
}

// Sessions exposes the live session registry.
func (e *Engine) Sessions() *session.Registry {
	return e.sessions
}

// Registry returns the frozen tool and widget registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Serve runs an HTTP server on addr until ctx is cancelled, then drains
// in-flight requests and closes every session.
func (e *Engine) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      e.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	e.logger.Info("server listening", "addr", addr, "service", e.serviceName)

	select {
	case err := <-errs:
		e.sessions.Shutdown()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	e.sessions.Shutdown()
	return err
}

// Close tears down every live session without serving.
func (e *Engine) Close() {
	e.sessions.Shutdown()
}
