package protocol

import (
	"encoding/json"
	"testing"
)

func TestRequestMarshal(t *testing.T) {
	req := Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  MethodWidgetsDescribe,
		Params:  json.RawMessage(`{"kind":"kpi"}`),
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Request
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Method != MethodWidgetsDescribe {
		t.Errorf("Method = %q, want %q", decoded.Method, MethodWidgetsDescribe)
	}
	if decoded.IsNotification() {
		t.Error("request with id is not a notification")
	}
}

func TestRequestNotification(t *testing.T) {
	var req Request
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"guard.run"}`), &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !req.IsNotification() {
		t.Error("request without id should be a notification")
	}
}

func TestResponseSuccess(t *testing.T) {
	resp := NewResponse(1, map[string]any{"data": "hello"})

	if resp.JSONRPC != "2.0" {
		t.Error("JSONRPC should be 2.0")
	}
	if resp.Error != nil {
		t.Error("Error should be nil for success response")
	}
	if resp.ID != 1 {
		t.Errorf("ID = %v, want 1", resp.ID)
	}
}

func TestResponseError(t *testing.T) {
	resp := NewErrorResponse(2, CodeMethodNotFound, "method not found", nil)

	if resp.Error == nil {
		t.Fatal("Error should not be nil")
	}
	if resp.Error.Code != CodeMethodNotFound {
		t.Errorf("Code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
	}
	if resp.Error.Error() != "method not found" {
		t.Errorf("Message = %q", resp.Error.Message)
	}
}

func TestMethodConstants(t *testing.T) {
	methods := []string{
		MethodGuardRun, MethodGuardLast,
		MethodWidgetsList, MethodWidgetsDescribe, MethodWidgetsMatch,
	}

	seen := make(map[string]bool)
	for _, m := range methods {
		if m == "" {
			t.Error("empty method constant")
		}
		if seen[m] {
			t.Errorf("duplicate method: %s", m)
		}
		seen[m] = true
	}
}

func TestErrorResponseWithData(t *testing.T) {
	resp := NewErrorResponse(1, CodeGeneratorUnavailable, "generator unavailable", []string{"FAIL generator unavailable"})

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Response
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Error.Code != CodeGeneratorUnavailable {
		t.Errorf("Code = %d", decoded.Error.Code)
	}
	if lines, ok := decoded.Error.Data.([]any); !ok || len(lines) != 1 {
		t.Errorf("Data = %#v", decoded.Error.Data)
	}
}
