package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollaugo/apphost/pkg/dispatch"
	"github.com/hollaugo/apphost/pkg/domain"
	"github.com/hollaugo/apphost/pkg/observability"
	"github.com/hollaugo/apphost/pkg/registry"
	"github.com/hollaugo/apphost/pkg/session"
	"github.com/hollaugo/apphost/pkg/widget"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	builder := registry.NewBuilder()
	builder.AddWidget(domain.Widget{
		ID:         "task-board",
		Title:      "Task Board",
		Markup:     `<div id="task-board-root"></div>`,
		SampleData: map[string]any{"tasks": []any{}},
	})
	builder.AddTool(registry.Tool{
		Name:        "list-tasks",
		Description: "List tasks",
		Effect:      domain.ReadOnly,
		Widget:      "task-board",
		Handler: func(ctx context.Context, inv domain.Invocation) (*domain.Result, error) {
			return &domain.Result{Text: "ok", Structured: map[string]any{"tasks": []any{}}}, nil
		},
	})
	reg, err := builder.Build()
	require.NoError(t, err)

	renderer := widget.NewRenderer(reg)
	metrics := observability.New()
	sessions := session.NewRegistry(func(id string) session.Handler {
		return dispatch.New(reg, renderer, dispatch.WithSessionID(id), dispatch.WithMetrics(metrics))
	}, session.WithMetrics(metrics))
	t.Cleanup(sessions.Shutdown)

	srv := httptest.NewServer(NewHandler(sessions, reg, renderer,
		WithMetrics(metrics),
		WithServiceName("taskboard"),
	))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, sessionID string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/mcp", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

const initializeBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}`

func initialize(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := post(t, srv, "", initializeBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get("Mcp-Session-Id")
	require.NotEmpty(t, id)
	decode(t, resp)
	return id
}

func TestServer_InitializeMintsSession(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv, "", initializeBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Mcp-Session-Id"))

	body := decode(t, resp)
	result := body["result"].(map[string]any)
	assert.Equal(t, "2025-06-18", result["protocolVersion"])
}

func TestServer_TwoInitializesMintDistinctSessions(t *testing.T) {
	srv := newTestServer(t)

	a := initialize(t, srv)
	b := initialize(t, srv)
	assert.NotEqual(t, a, b)
}

func TestServer_RequestWithoutHeaderMustBeInitialize(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv, "", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_UnknownSessionIsRejected(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv, "no-such-session", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_SessionRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	id := initialize(t, srv)

	resp := post(t, srv, id, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, resp.Header.Get("Mcp-Session-Id"))

	body := decode(t, resp)
	result := body["result"].(map[string]any)
	tools := result["tools"].([]any)
	require.Len(t, tools, 1)

	resp = post(t, srv, id, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"list-tasks","arguments":{}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode(t, resp)
	result = body["result"].(map[string]any)
	assert.Nil(t, result["isError"])
}

func TestServer_NotificationReturnsAccepted(t *testing.T) {
	srv := newTestServer(t)
	id := initialize(t, srv)

	resp := post(t, srv, id, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestServer_DeleteClosesSession(t *testing.T) {
	srv := newTestServer(t)
	id := initialize(t, srv)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set("Mcp-Session-Id", id)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The closed session is gone for both POST and a second DELETE.
	resp = post(t, srv, id, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp2, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "taskboard", body["service"])
	assert.Equal(t, []any{"task-board"}, body["widgets"])
}

func TestServer_PreviewRendersWidget(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/preview/task-board")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `id="task-board-root"`)
	assert.Contains(t, buf.String(), "apphost-sample-data")
}

func TestServer_PreviewUnknownWidget(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/preview/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	initialize(t, srv)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "apphost_sessions_total")
}
