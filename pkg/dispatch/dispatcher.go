// Package dispatch routes protocol envelopes to the tool and widget
// registries: enumerations, schema-validated tool calls, and widget document
// reads. One Dispatcher is minted per session; it shares the immutable
// registries but keeps per-session protocol state to itself.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hollaugo/apphost/internal/logging"
	"github.com/hollaugo/apphost/pkg/domain"
	"github.com/hollaugo/apphost/pkg/observability"
	"github.com/hollaugo/apphost/pkg/registry"
	"github.com/hollaugo/apphost/pkg/schema"
	"github.com/hollaugo/apphost/pkg/widget"
)

// protocolVersion is the default protocol revision advertised on initialize.
const protocolVersion = "2025-06-18"

// emptyObjectSchema is advertised for tools that declare no input schema.
var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// Dispatcher handles the protocol methods for one session.
type Dispatcher struct {
	registry *registry.Registry
	renderer *widget.Renderer
	logger   *slog.Logger
	metrics  *observability.Metrics

	serverName    string
	serverVersion string
	sessionID     string

	// negotiated on initialize; per-session state.
	negotiated string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics enables invocation metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithSessionID stamps invocations with the owning session.
func WithSessionID(id string) Option {
	return func(d *Dispatcher) {
		d.sessionID = id
	}
}

// WithServerInfo sets the name and version advertised on initialize.
func WithServerInfo(name, version string) Option {
	return func(d *Dispatcher) {
		d.serverName = name
		d.serverVersion = version
	}
}

// New creates a dispatcher over the given registries.
func New(reg *registry.Registry, renderer *widget.Renderer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:      reg,
		renderer:      renderer,
		logger:        logging.NewNop(),
		serverName:    "apphost",
		serverVersion: "dev",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle processes one raw envelope and returns the marshaled response, or
// nil for notifications. Protocol faults come back as JSON-RPC errors; tool
// failures come back as structured isError results inside a success
// envelope, so a bad invocation never tears the session down.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return marshalResponse(Response{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: codeParseError, Message: "parse error"},
		})
	}

	var (
		result any
		rpcErr *RPCError
	)

	switch req.Method {
	case "initialize":
		result = d.handleInitialize(req.Params)
	case "notifications/initialized", "notifications/cancelled":
		return nil
	case "ping":
		result = struct{}{}
	case "tools/list":
		result = d.handleListTools()
	case "tools/call":
		result, rpcErr = d.handleCallTool(ctx, req.Params)
	case "resources/list":
		result = d.handleListResources(false)
	case "resources/templates/list":
		result = d.handleListResources(true)
	case "resources/read":
		result, rpcErr = d.handleReadResource(req.Params)
	default:
		rpcErr = &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}

	if req.IsNotification() {
		return nil
	}

	resp := Response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return marshalResponse(resp)
}

func (d *Dispatcher) handleInitialize(params json.RawMessage) any {
	var p initializeParams
	_ = json.Unmarshal(params, &p)

	d.negotiated = protocolVersion
	if p.ProtocolVersion != "" && p.ProtocolVersion < protocolVersion {
		d.negotiated = p.ProtocolVersion
	}

	return map[string]any{
		"protocolVersion": d.negotiated,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    d.serverName,
			"version": d.serverVersion,
		},
	}
}

func (d *Dispatcher) handleListTools() any {
	tools := make([]toolDescriptor, 0)
	for _, t := range d.registry.Tools() {
		desc := toolDescriptor{
			Name:        t.Name,
			Title:       t.Title,
			Description: t.Description,
			InputSchema: marshalSchema(t),
			Annotations: t.Effect.Annotations(),
			Meta:        d.toolMeta(t),
		}
		tools = append(tools, desc)
	}
	return map[string]any{"tools": tools}
}

// toolMeta builds the _meta block for one tool. Only widget-linked tools
// carry template metadata; plain API tools are merely marked callable from
// widgets.
func (d *Dispatcher) toolMeta(t registry.Tool) map[string]any {
	meta := map[string]any{
		"openai/widgetAccessible": true,
	}
	if t.Widget == "" {
		return meta
	}
	w, ok := d.registry.Widget(t.Widget)
	if !ok {
		return meta
	}
	meta["openai/outputTemplate"] = w.TemplateURI()
	meta["openai/resultCanProduceWidget"] = true
	if w.Invoking != "" {
		meta["openai/toolInvocation/invoking"] = w.Invoking
	}
	if w.Invoked != "" {
		meta["openai/toolInvocation/invoked"] = w.Invoked
	}
	return meta
}

func (d *Dispatcher) handleCallTool(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p callParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid tools/call params"}
	}

	tool, ok := d.registry.Tool(p.Name)
	if !ok {
		d.observe(p.Name, observability.OutcomeUnknown, 0)
		return errorResult(fmt.Sprintf("Unknown tool: %s", p.Name)), nil
	}

	args := p.Arguments
	if args == nil {
		args = map[string]any{}
	}

	// Validation happens before any side effect; the handler is never
	// invoked with arguments that violate the schema.
	if err := schema.Validate(tool.InputSchema, args); err != nil {
		d.observe(tool.Name, observability.OutcomeInvalid, 0)
		return errorResult(fmt.Sprintf("Invalid input: %v", err)), nil
	}

	inv := domain.Invocation{
		Tool:           tool.Name,
		Owner:          ownerSubject(p.Meta),
		SessionID:      d.sessionID,
		Args:           args,
		IdempotencyKey: idempotencyKey(args),
	}

	start := time.Now()
	res, err, recovered := d.safeInvoke(ctx, tool, inv)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		// Upstream failure: caught, structured, non-fatal to the session.
		outcome := observability.OutcomeUpstream
		if recovered {
			outcome = observability.OutcomeRecovered
		}
		d.logger.Warn("tool handler failed", "tool", tool.Name, "err", err)
		d.observe(tool.Name, outcome, elapsed)
		return errorResult(fmt.Sprintf("Error: %v", err)), nil
	}

	d.observe(tool.Name, observability.OutcomeOK, elapsed)

	out := mcp.NewToolResultText(res.Text)
	out.StructuredContent = res.Structured
	return out, nil
}

// safeInvoke runs the handler with panic recovery: a panicking handler is an
// upstream failure, not a session teardown.
func (d *Dispatcher) safeInvoke(ctx context.Context, tool registry.Tool, inv domain.Invocation) (res *domain.Result, err error, recovered bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panicked", "tool", tool.Name, "panic", r)
			res = nil
			err = fmt.Errorf("handler panicked: %v", r)
			recovered = true
		}
	}()

	res, err = tool.Handler(ctx, inv)
	if err == nil && res == nil {
		res = &domain.Result{}
	}
	return res, err, false
}

func (d *Dispatcher) handleListResources(templates bool) any {
	descriptors := make([]resourceDescriptor, 0)
	for _, w := range d.registry.Widgets() {
		desc := resourceDescriptor{
			Name:        w.Title,
			Title:       w.Title,
			Description: w.Description,
			MIMEType:    widget.MIMEType,
			Meta:        d.renderer.Meta(w),
		}
		if templates {
			desc.URITemplate = w.TemplateURI()
		} else {
			desc.URI = w.TemplateURI()
		}
		descriptors = append(descriptors, desc)
	}
	if templates {
		return map[string]any{"resourceTemplates": descriptors}
	}
	return map[string]any{"resources": descriptors}
}

func (d *Dispatcher) handleReadResource(params json.RawMessage) (any, *RPCError) {
	var p readParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid resources/read params"}
	}

	w, ok := d.registry.WidgetByURI(p.URI)
	if !ok {
		return nil, &RPCError{Code: codeResourceNotFound, Message: fmt.Sprintf("unknown resource: %s", p.URI)}
	}

	doc, err := d.renderer.Render(w.ID, w.SampleData)
	if err != nil {
		d.logger.Error("widget render failed", "widget", w.ID, "err", err)
		return nil, &RPCError{Code: codeInternalError, Message: "render failed"}
	}

	if d.metrics != nil {
		d.metrics.WidgetReads.WithLabelValues(w.ID).Inc()
	}

	return map[string]any{
		"contents": []resourceContents{{
			URI:      doc.URI,
			MIMEType: doc.MIMEType,
			Text:     doc.HTML,
			Meta:     doc.Meta,
		}},
	}, nil
}

func (d *Dispatcher) observe(tool, outcome string, seconds float64) {
	if d.metrics == nil {
		return
	}
	d.metrics.Invocations.WithLabelValues(tool, outcome).Inc()
	if outcome == observability.OutcomeOK {
		d.metrics.InvocationDuration.WithLabelValues(tool).Observe(seconds)
	}
}

// ownerSubject extracts the host-provided anonymized user id from request
// metadata, falling back to "unknown" for hosts that do not send one.
func ownerSubject(meta map[string]any) string {
	if meta == nil {
		return "unknown"
	}
	if v, ok := meta["openai/subject"].(string); ok {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return "unknown"
}

// idempotencyKey lifts the caller-supplied key out of the arguments. The key
// is passed through to the store unmodified; it stays in Args as well so
// handlers see exactly what was sent.
func idempotencyKey(args map[string]any) string {
	if v, ok := args["idempotency_key"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func errorResult(text string) *mcp.CallToolResult {
	return mcp.NewToolResultError(text)
}

func marshalSchema(t registry.Tool) json.RawMessage {
	if t.InputSchema == nil {
		return emptyObjectSchema
	}
	data, err := json.Marshal(t.InputSchema)
	if err != nil {
		return emptyObjectSchema
	}
	return data
}

func marshalResponse(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// The response is built from marshal-safe values; this is
		// unreachable short of a programming error.
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal error"}}`)
	}
	return data
}
