// Package http exposes the engine over streamable HTTP: a single /mcp
// endpoint carrying JSON-RPC envelopes with session correlation in the
// Mcp-Session-Id header, plus health, metrics, and a widget preview surface
// for local development.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hollaugo/apphost/internal/logging"
	"github.com/hollaugo/apphost/pkg/domain"
	"github.com/hollaugo/apphost/pkg/observability"
	"github.com/hollaugo/apphost/pkg/registry"
	"github.com/hollaugo/apphost/pkg/session"
	"github.com/hollaugo/apphost/pkg/widget"
)

// sessionHeader carries the session id out-of-band, never in the envelope.
const sessionHeader = "Mcp-Session-Id"

// maxBodyBytes bounds a single envelope.
const maxBodyBytes = 4 << 20

// Server routes transport requests onto the session registry.
type Server struct {
	sessions    *session.Registry
	registry    *registry.Registry
	renderer    *widget.Renderer
	logger      *slog.Logger
	metrics     *observability.Metrics
	serviceName string
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts /metrics for the given collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithServiceName sets the name reported by /healthz.
func WithServiceName(name string) Option {
	return func(s *Server) {
		s.serviceName = name
	}
}

// NewHandler builds the HTTP handler for the engine.
func NewHandler(sessions *session.Registry, reg *registry.Registry, renderer *widget.Renderer, opts ...Option) http.Handler {
	s := &Server{
		sessions:    sessions,
		registry:    reg,
		renderer:    renderer,
		logger:      logging.NewNop(),
		serviceName: "apphost",
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/mcp", s.handlePost)
	r.Delete("/mcp", s.handleDelete)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/preview", s.handlePreviewIndex)
	r.Get("/preview/{widget}", s.handlePreviewWidget)
	r.Post("/preview/{widget}", s.handlePreviewWidget)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	return r
}

// handlePost accepts one JSON-RPC envelope. A request without a session
// header must be an initialize; it mints a new session whose id is returned
// in the response header. Any other request must name a live session.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, -32700, "failed to read body")
		return
	}

	sess, status, err := s.resolveSession(r.Header.Get(sessionHeader), body)
	if err != nil {
		writeRPCError(w, status, -32600, err.Error())
		return
	}

	resp, err := sess.Handle(r.Context(), body)
	if err != nil {
		if errors.Is(err, domain.ErrSessionClosed) {
			writeRPCError(w, http.StatusNotFound, -32600, "session closed")
			return
		}
		writeRPCError(w, http.StatusInternalServerError, -32603, "internal error")
		return
	}

	w.Header().Set(sessionHeader, sess.ID())
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		s.logger.Warn("failed to write response", "session_id", sess.ID(), "err", err)
	}
}

// resolveSession maps the header to a live session, minting one only for an
// initialize request without a header. Unknown ids are rejected so stale
// clients re-initialize instead of silently landing in a fresh session.
func (s *Server) resolveSession(id string, body []byte) (*session.Session, int, error) {
	isInit := peekMethod(body) == "initialize"

	if id == "" {
		if !isInit {
			return nil, http.StatusBadRequest, errors.New("missing Mcp-Session-Id header")
		}
		return s.sessions.Mint(), 0, nil
	}

	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, http.StatusNotFound, errors.New("unknown session")
	}
	return sess, 0, nil
}

// handleDelete terminates a session.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		writeRPCError(w, http.StatusBadRequest, -32600, "missing Mcp-Session-Id header")
		return
	}
	if err := s.sessions.Close(id); err != nil {
		writeRPCError(w, http.StatusNotFound, -32600, "unknown session")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	widgets := make([]string, 0)
	for _, wd := range s.registry.Widgets() {
		widgets = append(widgets, wd.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": s.serviceName,
		"widgets": widgets,
	})
}

// handlePreviewIndex lists widget preview links for local development.
func (s *Server) handlePreviewIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<!DOCTYPE html>\n<html><head><title>Widget previews</title></head><body>\n<h1>Widget previews</h1>\n<ul>\n")
	for _, wd := range s.registry.Widgets() {
		fmt.Fprintf(w, `<li><a href="/preview/%s">%s</a></li>`+"\n", wd.ID, wd.Title)
	}
	fmt.Fprint(w, "</ul>\n</body></html>\n")
}

// handlePreviewWidget serves a widget document as a standalone page hydrated
// from its sample data. A POST body replaces the sample data, so alternate
// states (empty, error) can be previewed without code changes.
func (s *Server) handlePreviewWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "widget")
	wd, ok := s.registry.Widget(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	sample := wd.SampleData
	if r.Method == http.MethodPost {
		var override map[string]any
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&override); err != nil {
			http.Error(w, "invalid sample data", http.StatusBadRequest)
			return
		}
		sample = override
	}

	doc, err := s.renderer.Render(wd.ID, sample)
	if err != nil {
		s.logger.Error("preview render failed", "widget", id, "err", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n%s\n</body></html>\n", wd.Title, doc.HTML)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRPCError reports a transport-level fault as a JSON-RPC error body.
func writeRPCError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{
		"jsonrpc": "2.0",
		"id":      nil,
		"error":   map[string]any{"code": code, "message": message},
	})
}

func peekMethod(body []byte) string {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.Method
}
