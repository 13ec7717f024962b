package protocol

import (
	"context"
	"encoding/json"
	"testing"
)

func TestHandlerMethodNotFound(t *testing.T) {
	h := NewHandler()
	req := Request{JSONRPC: "2.0", ID: 1, Method: "nonexistent"}

	resp := h.Handle(context.Background(), req)
	if resp.Error == nil {
		t.Fatal("expected error")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("Code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
}

func TestHandlerInvalidVersion(t *testing.T) {
	h := NewHandler()
	req := Request{JSONRPC: "1.0", ID: 1, Method: "test"}

	resp := h.Handle(context.Background(), req)
	if resp.Error == nil {
		t.Fatal("expected error for invalid version")
	}
	if resp.Error.Code != CodeInvalidRequest {
		t.Errorf("Code = %d, want %d", resp.Error.Code, CodeInvalidRequest)
	}
}

func TestHandlerSuccess(t *testing.T) {
	h := NewHandler()
	h.Register("echo", func(_ context.Context, params json.RawMessage) (any, *Error) {
		return map[string]string{"echo": string(params)}, nil
	})

	req := Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "echo",
		Params:  json.RawMessage(`"hello"`),
	}

	resp := h.Handle(context.Background(), req)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	result, ok := resp.Result.(map[string]string)
	if !ok {
		t.Fatalf("unexpected result type: %T", resp.Result)
	}
	if result["echo"] != `"hello"` {
		t.Errorf("echo = %q", result["echo"])
	}
}

func TestHandlerPassesContext(t *testing.T) {
	type key struct{}
	h := NewHandler()
	h.Register("ctx", func(ctx context.Context, _ json.RawMessage) (any, *Error) {
		return ctx.Value(key{}), nil
	})

	ctx := context.WithValue(context.Background(), key{}, "run-7")
	resp := h.Handle(ctx, Request{JSONRPC: "2.0", ID: 1, Method: "ctx"})
	if resp.Result != "run-7" {
		t.Errorf("Result = %v, want run-7", resp.Result)
	}
}

func TestHandlerError(t *testing.T) {
	h := NewHandler()
	h.Register("fail", func(context.Context, json.RawMessage) (any, *Error) {
		return nil, &Error{Code: CodeStoreFailed, Message: "boom"}
	})

	req := Request{JSONRPC: "2.0", ID: 2, Method: "fail"}
	resp := h.Handle(context.Background(), req)

	if resp.Error == nil {
		t.Fatal("expected error")
	}
	if resp.Error.Code != CodeStoreFailed {
		t.Errorf("Code = %d", resp.Error.Code)
	}
	if resp.ID != 2 {
		t.Errorf("ID = %v", resp.ID)
	}
}

func TestHandleRaw(t *testing.T) {
	h := NewHandler()
	h.Register("ping", func(context.Context, json.RawMessage) (any, *Error) {
		return "pong", nil
	})

	resp, ok := h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if !ok {
		t.Fatal("expected a response for a request with id")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if resp.Result != "pong" {
		t.Errorf("Result = %v", resp.Result)
	}

	if _, ok := h.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","method":"ping"}`)); ok {
		t.Error("notifications must not produce a response")
	}
}

func TestHandleRawParseError(t *testing.T) {
	h := NewHandler()
	resp, ok := h.HandleRaw(context.Background(), []byte(`{invalid json`))

	if !ok || resp.Error == nil {
		t.Fatal("expected parse error response")
	}
	if resp.Error.Code != CodeParseError {
		t.Errorf("Code = %d", resp.Error.Code)
	}
}

func TestParseParams(t *testing.T) {
	raw := json.RawMessage(`{"capability":"display-metric","context":"dashboard"}`)
	params, err := ParseParams[WidgetsMatchParams](raw)
	if err != nil {
		t.Fatalf("ParseParams: %v", err)
	}
	if params.Capability != "display-metric" || params.Context != "dashboard" {
		t.Errorf("params = %+v", params)
	}
}

func TestParseParamsNil(t *testing.T) {
	params, err := ParseParams[WidgetsDescribeParams](nil)
	if err != nil {
		t.Fatalf("ParseParams(nil): %v", err)
	}
	if params.Kind != "" {
		t.Errorf("expected empty kind, got %q", params.Kind)
	}
}

func TestParseParamsInvalid(t *testing.T) {
	_, err := ParseParams[WidgetsDescribeParams](json.RawMessage(`"not an object"`))
	if err == nil {
		t.Fatal("expected error for invalid params")
	}
	if err.Code != CodeInvalidParams {
		t.Errorf("Code = %d", err.Code)
	}
}

func TestHandlerMethods(t *testing.T) {
	h := NewHandler()
	h.Register("b", func(context.Context, json.RawMessage) (any, *Error) { return nil, nil })
	h.Register("a", func(context.Context, json.RawMessage) (any, *Error) { return nil, nil })

	methods := h.Methods()
	if len(methods) != 2 || methods[0] != "a" || methods[1] != "b" {
		t.Errorf("Methods() = %v, want [a b]", methods)
	}
}
