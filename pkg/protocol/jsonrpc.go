package protocol

import (
	"encoding/json"
	"time"

	"github.com/cgast/affordkit/pkg/affordance"
	"github.com/cgast/affordkit/pkg/guard"
)

// JSON-RPC 2.0 message types for `affordkit serve`.

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"` // string or int; nil for notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r Request) IsNotification() bool {
	return r.ID == nil
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Application-specific error codes.
const (
	CodeGeneratorUnavailable = -32000
	CodeWidgetNotFound       = -32001
	CodeStoreFailed          = -32002
)

// Method constants for all supported JSON-RPC methods.
const (
	MethodGuardRun  = "guard.run"
	MethodGuardLast = "guard.last"

	MethodWidgetsList     = "widgets.list"
	MethodWidgetsDescribe = "widgets.describe"
	MethodWidgetsMatch    = "widgets.match"
)

// NewResponse creates a successful response.
func NewResponse(id any, result any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id any, code int, message string, data any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// WidgetsDescribeParams holds parameters for "widgets.describe".
type WidgetsDescribeParams struct {
	Kind string `json:"kind"`
}

// WidgetsMatchParams holds parameters for "widgets.match". Empty fields
// match anything.
type WidgetsMatchParams struct {
	Capability string `json:"capability,omitempty"`
	Context    string `json:"context,omitempty"`
	Goal       string `json:"goal,omitempty"`
}

// WidgetInfo describes a registered widget.
type WidgetInfo struct {
	Kind         string   `json:"kind"`
	Capabilities []string `json:"capabilities"`
	Contexts     []string `json:"contexts"`
	Goals        []string `json:"goals"`
	Priority     int      `json:"priority"`
}

func widgetInfo(w affordance.Widget) WidgetInfo {
	return WidgetInfo{
		Kind:         w.Kind,
		Capabilities: w.Capabilities,
		Contexts:     w.Contexts,
		Goals:        w.Goals,
		Priority:     w.Priority,
	}
}

// GuardRunResult holds the outcome of "guard.run".
type GuardRunResult struct {
	Pass       bool         `json:"pass"`
	Lines      []string     `json:"lines"`
	Report     guard.Report `json:"report"`
	// StoreError is set when the run completed but its record could not
	// be saved.
	StoreError string       `json:"store_error,omitempty"`
}

// GuardLastResult holds the persisted record returned by "guard.last".
type GuardLastResult struct {
	Recorded bool      `json:"recorded"`
	At       time.Time `json:"at,omitempty"`
	Pass     bool      `json:"pass"`
}
