package mcp

import (
	"encoding/json"
	"testing"
)

func TestID_JSON(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		want string
	}{
		{"int", Int64ID(42), `42`},
		{"string", StringID("abc-123"), `"abc-123"`},
		{"zero", ID{}, `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.id)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("marshal = %s, want %s", data, tt.want)
			}
			var got ID
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got != tt.id {
				t.Errorf("round trip = %v, want %v", got, tt.id)
			}
		})
	}
}

func TestID_UnmarshalRejectsOtherTypes(t *testing.T) {
	var id ID
	if err := json.Unmarshal([]byte(`{"x":1}`), &id); err == nil {
		t.Error("expected error for object id")
	}
	if err := json.Unmarshal([]byte(`1.5`), &id); err == nil {
		t.Error("expected error for fractional id")
	}
}

func TestRequest_OmitsEmptyParams(t *testing.T) {
	for _, params := range []any{nil, map[string]any{}, struct{}{}} {
		req, err := NewRequest(Int64ID(1), "tools/list", params)
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		data, err := json.Marshal(req)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		want := `{"jsonrpc":"2.0","method":"tools/list","id":1}`
		if string(data) != want {
			t.Errorf("params %#v: got %s, want %s", params, data, want)
		}
	}
}

func TestRequest_NotificationHasNoID(t *testing.T) {
	req, err := NewRequest(ID{}, "notifications/initialized", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	data, _ := json.Marshal(req)
	if string(data) != `{"jsonrpc":"2.0","method":"notifications/initialized"}` {
		t.Errorf("got %s", data)
	}
}

// Encoding is stable across a decode/encode cycle.
func TestRequest_RoundTripStable(t *testing.T) {
	cases := []struct {
		id     ID
		method string
		params any
	}{
		{Int64ID(1), "initialize", map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"roots": map[string]any{"listChanged": true}},
			"clientInfo":      map[string]any{"name": "c", "version": "1"},
		}},
		{Int64ID(2), "tools/list", nil},
		{StringID("6f1c"), "tools/call", map[string]any{"name": "create_node", "arguments": map[string]any{"label": "Person", "n": 3}}},
		{Int64ID(9), "tools/call", []any{"positional", 1}},
	}
	for _, c := range cases {
		req, err := NewRequest(c.id, c.method, c.params)
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		first, err := json.Marshal(req)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var decoded Request
		if err := json.Unmarshal(first, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", first, err)
		}
		second, err := json.Marshal(decoded)
		if err != nil {
			t.Fatalf("re-marshal: %v", err)
		}
		if string(first) != string(second) {
			t.Errorf("unstable encoding:\n first  %s\n second %s", first, second)
		}
	}
}

func TestRequest_UnmarshalRequiresVersion(t *testing.T) {
	var req Request
	if err := json.Unmarshal([]byte(`{"jsonrpc":"1.0","method":"x","id":1}`), &req); err == nil {
		t.Error("expected error for jsonrpc 1.0")
	}
}

func TestDecodeResponse(t *testing.T) {
	resp, err := decodeResponse([]byte(`{"jsonrpc":"2.0","id":3,"result":{"ok":true}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != Int64ID(3) || string(resp.Result) != `{"ok":true}` || resp.Error != nil {
		t.Errorf("unexpected response: %+v", resp)
	}

	resp, err = decodeResponse([]byte(`{"jsonrpc":"2.0","id":"a","error":{"code":-32602,"message":"Invalid params"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != StringID("a") || resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestDecodeResponse_Rejects(t *testing.T) {
	if _, err := decodeResponse([]byte(`{"jsonrpc":"2.0","id":1}`)); err == nil {
		t.Error("expected error for reply with neither result nor error")
	}
	if _, err := decodeResponse([]byte(`{"jsonrpc":"2.0","method":"notifications/progress"}`)); err != errServerMessage {
		t.Errorf("expected errServerMessage, got %v", err)
	}
	if _, err := decodeResponse([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestResponse_MarshalLocalFailure(t *testing.T) {
	resp := failed(KindTransport, "boom")
	if _, err := json.Marshal(resp); err == nil {
		t.Error("expected error marshaling a local failure")
	}
}
