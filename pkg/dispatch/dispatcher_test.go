package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollaugo/apphost/pkg/domain"
	"github.com/hollaugo/apphost/pkg/registry"
	"github.com/hollaugo/apphost/pkg/widget"
)

type capturedCall struct {
	inv domain.Invocation
}

func testRegistry(t *testing.T, captured *capturedCall) *registry.Registry {
	t.Helper()

	createSchema := openapi3.NewObjectSchema().
		WithProperty("title", openapi3.NewStringSchema()).
		WithProperty("idempotency_key", openapi3.NewStringSchema())
	createSchema.Required = []string{"title"}

	builder := registry.NewBuilder()
	builder.AddWidget(domain.Widget{
		ID:          "task-board",
		Title:       "Task Board",
		Description: "Kanban board of open tasks",
		Invoking:    "Loading tasks",
		Invoked:     "Loaded tasks",
		Markup:      `<div id="task-board-root"></div>`,
	})
	builder.AddTool(registry.Tool{
		Name:        "create-task",
		Description: "Create a task",
		InputSchema: createSchema,
		Effect:      domain.Mutating,
		Widget:      "task-board",
		Handler: func(ctx context.Context, inv domain.Invocation) (*domain.Result, error) {
			if captured != nil {
				captured.inv = inv
			}
			return &domain.Result{
				Text:       "Created",
				Structured: map[string]any{"title": inv.Args["title"]},
			}, nil
		},
	})
	builder.AddTool(registry.Tool{
		Name:        "whoami",
		Description: "Echo the caller subject",
		Effect:      domain.ReadOnly,
		Handler: func(ctx context.Context, inv domain.Invocation) (*domain.Result, error) {
			return &domain.Result{Text: inv.Owner}, nil
		},
	})
	builder.AddTool(registry.Tool{
		Name:        "flaky",
		Description: "Always fails",
		Effect:      domain.External,
		Handler: func(ctx context.Context, inv domain.Invocation) (*domain.Result, error) {
			return nil, errors.New("upstream timeout")
		},
	})
	builder.AddTool(registry.Tool{
		Name:        "volatile",
		Description: "Always panics",
		Effect:      domain.ReadOnly,
		Handler: func(ctx context.Context, inv domain.Invocation) (*domain.Result, error) {
			panic("boom")
		},
	})

	reg, err := builder.Build()
	require.NoError(t, err)
	return reg
}

func testDispatcher(t *testing.T, captured *capturedCall, opts ...Option) *Dispatcher {
	t.Helper()
	reg := testRegistry(t, captured)
	renderer := widget.NewRenderer(reg, widget.WithWidgetDomain("https://apphost.example.com"))
	return New(reg, renderer, opts...)
}

func dispatch(t *testing.T, d *Dispatcher, method string, params any) map[string]any {
	t.Helper()

	var rawParams json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		rawParams = data
	}
	req, err := json.Marshal(Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: method, Params: rawParams})
	require.NoError(t, err)

	raw := d.Handle(context.Background(), req)
	require.NotNil(t, raw)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func result(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	res, ok := resp["result"].(map[string]any)
	require.True(t, ok, "expected a result, got: %v", resp)
	return res
}

func TestDispatcher_Initialize(t *testing.T) {
	d := testDispatcher(t, nil, WithServerInfo("taskboard", "1.2.3"))

	res := result(t, dispatch(t, d, "initialize", map[string]any{"protocolVersion": "2025-06-18"}))

	assert.Equal(t, "2025-06-18", res["protocolVersion"])
	info := res["serverInfo"].(map[string]any)
	assert.Equal(t, "taskboard", info["name"])
	assert.Equal(t, "1.2.3", info["version"])
}

func TestDispatcher_Ping(t *testing.T) {
	d := testDispatcher(t, nil)

	resp := dispatch(t, d, "ping", nil)

	assert.Contains(t, resp, "result")
	assert.NotContains(t, resp, "error")
}

func TestDispatcher_NotificationsProduceNoResponse(t *testing.T) {
	d := testDispatcher(t, nil)

	raw := d.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))

	assert.Nil(t, raw)
}

func TestDispatcher_ParseError(t *testing.T) {
	d := testDispatcher(t, nil)

	raw := d.Handle(context.Background(), []byte(`{not json`))
	require.NotNil(t, raw)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(raw, &resp))
	rpcErr := resp["error"].(map[string]any)
	assert.Equal(t, float64(-32700), rpcErr["code"])
}

func TestDispatcher_UnknownMethod(t *testing.T) {
	d := testDispatcher(t, nil)

	resp := dispatch(t, d, "prompts/list", nil)

	rpcErr := resp["error"].(map[string]any)
	assert.Equal(t, float64(-32601), rpcErr["code"])
}

func TestDispatcher_ListTools_WidgetMetaOnlyOnLinkedTools(t *testing.T) {
	d := testDispatcher(t, nil)

	res := result(t, dispatch(t, d, "tools/list", nil))
	tools := res["tools"].([]any)
	require.Len(t, tools, 4)

	byName := map[string]map[string]any{}
	for _, raw := range tools {
		tool := raw.(map[string]any)
		byName[tool["name"].(string)] = tool
	}

	linked := byName["create-task"]
	meta := linked["_meta"].(map[string]any)
	assert.Equal(t, "ui://widget/task-board.html", meta["openai/outputTemplate"])
	assert.Equal(t, true, meta["openai/resultCanProduceWidget"])
	assert.Equal(t, "Loading tasks", meta["openai/toolInvocation/invoking"])
	assert.Equal(t, "Loaded tasks", meta["openai/toolInvocation/invoked"])

	plain := byName["whoami"]
	meta = plain["_meta"].(map[string]any)
	assert.NotContains(t, meta, "openai/outputTemplate")
	assert.NotContains(t, meta, "openai/resultCanProduceWidget")
	assert.Equal(t, true, meta["openai/widgetAccessible"])

	annotations := linked["annotations"].(map[string]any)
	assert.Equal(t, false, annotations["readOnlyHint"])
	annotations = plain["annotations"].(map[string]any)
	assert.Equal(t, true, annotations["readOnlyHint"])
}

func TestDispatcher_CallTool_Success(t *testing.T) {
	captured := &capturedCall{}
	d := testDispatcher(t, captured, WithSessionID("sess-1"))

	res := result(t, dispatch(t, d, "tools/call", map[string]any{
		"name": "create-task",
		"arguments": map[string]any{
			"title":           "ship it",
			"idempotency_key": "key-1",
		},
		"_meta": map[string]any{"openai/subject": "user-42"},
	}))

	assert.Nil(t, res["isError"])
	structured := res["structuredContent"].(map[string]any)
	assert.Equal(t, "ship it", structured["title"])

	assert.Equal(t, "create-task", captured.inv.Tool)
	assert.Equal(t, "user-42", captured.inv.Owner)
	assert.Equal(t, "sess-1", captured.inv.SessionID)
	assert.Equal(t, "key-1", captured.inv.IdempotencyKey)
	assert.Equal(t, "ship it", captured.inv.Args["title"])
}

func TestDispatcher_CallTool_MissingSubjectFallsBackToUnknown(t *testing.T) {
	d := testDispatcher(t, nil)

	res := result(t, dispatch(t, d, "tools/call", map[string]any{
		"name":      "whoami",
		"arguments": map[string]any{},
	}))

	content := res["content"].([]any)
	first := content[0].(map[string]any)
	assert.Equal(t, "unknown", first["text"])
}

func TestDispatcher_CallTool_InvalidArgumentsNeverReachHandler(t *testing.T) {
	captured := &capturedCall{}
	d := testDispatcher(t, captured)

	res := result(t, dispatch(t, d, "tools/call", map[string]any{
		"name":      "create-task",
		"arguments": map[string]any{"title": 7},
	}))

	assert.Equal(t, true, res["isError"])
	assert.Empty(t, captured.inv.Tool, "handler must not run on invalid input")
}

func TestDispatcher_CallTool_UnknownTool(t *testing.T) {
	d := testDispatcher(t, nil)

	res := result(t, dispatch(t, d, "tools/call", map[string]any{
		"name":      "delete-everything",
		"arguments": map[string]any{},
	}))

	assert.Equal(t, true, res["isError"])
}

func TestDispatcher_CallTool_HandlerFailureDoesNotKillSession(t *testing.T) {
	d := testDispatcher(t, nil)

	res := result(t, dispatch(t, d, "tools/call", map[string]any{
		"name":      "flaky",
		"arguments": map[string]any{},
	}))
	assert.Equal(t, true, res["isError"])

	// The same dispatcher keeps serving after the failure.
	res = result(t, dispatch(t, d, "tools/call", map[string]any{
		"name":      "whoami",
		"arguments": map[string]any{},
	}))
	assert.Nil(t, res["isError"])
}

func TestDispatcher_CallTool_PanicIsRecovered(t *testing.T) {
	d := testDispatcher(t, nil)

	res := result(t, dispatch(t, d, "tools/call", map[string]any{
		"name":      "volatile",
		"arguments": map[string]any{},
	}))

	assert.Equal(t, true, res["isError"])
	content := res["content"].([]any)
	first := content[0].(map[string]any)
	assert.Contains(t, first["text"], "boom")
}

func TestDispatcher_ListResources(t *testing.T) {
	d := testDispatcher(t, nil)

	res := result(t, dispatch(t, d, "resources/list", nil))
	resources := res["resources"].([]any)
	require.Len(t, resources, 1)

	doc := resources[0].(map[string]any)
	assert.Equal(t, "ui://widget/task-board.html", doc["uri"])
	assert.Equal(t, widget.MIMEType, doc["mimeType"])
	meta := doc["_meta"].(map[string]any)
	assert.Equal(t, "Kanban board of open tasks", meta["openai/widgetDescription"])

	res = result(t, dispatch(t, d, "resources/templates/list", nil))
	templates := res["resourceTemplates"].([]any)
	require.Len(t, templates, 1)
	tmpl := templates[0].(map[string]any)
	assert.Equal(t, "ui://widget/task-board.html", tmpl["uriTemplate"])
}

func TestDispatcher_ReadResource(t *testing.T) {
	d := testDispatcher(t, nil)

	res := result(t, dispatch(t, d, "resources/read", map[string]any{
		"uri": "ui://widget/task-board.html",
	}))

	contents := res["contents"].([]any)
	require.Len(t, contents, 1)
	doc := contents[0].(map[string]any)
	assert.Equal(t, "ui://widget/task-board.html", doc["uri"])
	assert.Equal(t, widget.MIMEType, doc["mimeType"])
	assert.Contains(t, doc["text"], `id="task-board-root"`)
}

func TestDispatcher_ReadResource_Unknown(t *testing.T) {
	d := testDispatcher(t, nil)

	resp := dispatch(t, d, "resources/read", map[string]any{
		"uri": "ui://widget/nope.html",
	})

	rpcErr := resp["error"].(map[string]any)
	assert.Equal(t, float64(-32002), rpcErr["code"])
}

func TestDispatcher_ToolSchemaOnWire(t *testing.T) {
	d := testDispatcher(t, nil)

	res := result(t, dispatch(t, d, "tools/list", nil))
	for _, raw := range res["tools"].([]any) {
		tool := raw.(map[string]any)
		schema, ok := tool["inputSchema"].(map[string]any)
		require.True(t, ok, "tool %v should carry an object schema", tool["name"])
		assert.Equal(t, "object", schema["type"], fmt.Sprintf("tool %v", tool["name"]))
	}
}
