package dispatch

import (
	"encoding/json"

	"github.com/hollaugo/apphost/pkg/domain"
)

// Request is one JSON-RPC envelope from the host. The session id travels
// out-of-band in a transport header, never in the envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the envelope expects no response.
func (r Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// Response is one JSON-RPC envelope back to the host.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a protocol-level failure: malformed envelope, unknown method,
// unknown resource. Tool-level failures never use this path; they come back
// as structured isError results so the session survives them.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC error codes, plus the MCP resource-not-found extension.
const (
	codeParseError       = -32700
	codeInvalidRequest   = -32600
	codeMethodNotFound   = -32601
	codeInvalidParams    = -32602
	codeInternalError    = -32603
	codeResourceNotFound = -32002
)

// callParams are the parameters of a tools/call request. The host threads
// the anonymized owner subject through request metadata.
type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Meta      map[string]any `json:"_meta"`
}

// readParams are the parameters of a resources/read request.
type readParams struct {
	URI string `json:"uri"`
}

// initializeParams are the parameters of an initialize request.
type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

// toolDescriptor is one tools/list entry. A custom wire struct keeps full
// control over the _meta block that links widget-enabled tools to their
// template.
type toolDescriptor struct {
	Name        string             `json:"name"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description"`
	InputSchema json.RawMessage    `json:"inputSchema"`
	Annotations domain.Annotations `json:"annotations"`
	Meta        map[string]any     `json:"_meta,omitempty"`
}

// resourceDescriptor is one resources/list entry.
type resourceDescriptor struct {
	URI         string         `json:"uri,omitempty"`
	URITemplate string         `json:"uriTemplate,omitempty"`
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	MIMEType    string         `json:"mimeType"`
	Meta        map[string]any `json:"_meta,omitempty"`
}

// resourceContents is one rendered widget document on the wire.
type resourceContents struct {
	URI      string         `json:"uri"`
	MIMEType string         `json:"mimeType"`
	Text     string         `json:"text"`
	Meta     map[string]any `json:"_meta,omitempty"`
}
