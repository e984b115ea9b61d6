package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

func TestNewRequest(t *testing.T) {
	req := NewRequest(42, "tools/list", map[string]any{"cursor": "abc"})

	if req.JSONRPC != "2.0" {
		t.Errorf("JSONRPC = %q, want %q", req.JSONRPC, "2.0")
	}
	if req.ID != 42 {
		t.Errorf("ID = %d, want 42", req.ID)
	}
	if req.Method != "tools/list" {
		t.Errorf("Method = %q, want %q", req.Method, "tools/list")
	}
}

func TestRequestMarshalRoundtrip(t *testing.T) {
	req := NewRequest(1, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
	})

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Request
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.JSONRPC != req.JSONRPC {
		t.Errorf("JSONRPC = %q, want %q", decoded.JSONRPC, req.JSONRPC)
	}
	if decoded.ID != req.ID {
		t.Errorf("ID = %d, want %d", decoded.ID, req.ID)
	}
	if decoded.Method != req.Method {
		t.Errorf("Method = %q, want %q", decoded.Method, req.Method)
	}
}

// randomParams builds a random JSON-representable value tree: maps,
// slices, strings, numbers, bools, and nulls, nested up to depth.
func randomParams(rng *rand.Rand, depth int) any {
	if depth <= 0 {
		switch rng.Intn(4) {
		case 0:
			return fmt.Sprintf("s%d", rng.Intn(1000))
		case 1:
			return float64(rng.Intn(1 << 20))
		case 2:
			return rng.Intn(2) == 0
		default:
			return nil
		}
	}
	switch rng.Intn(3) {
	case 0:
		m := map[string]any{}
		for i := range rng.Intn(4) + 1 {
			m[fmt.Sprintf("k%d", i)] = randomParams(rng, depth-1)
		}
		return m
	case 1:
		s := make([]any, rng.Intn(4)+1)
		for i := range s {
			s[i] = randomParams(rng, depth-1)
		}
		return s
	default:
		return randomParams(rng, 0)
	}
}

func TestRequestRoundtripRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	methods := []string{"initialize", "tools/list", "tools/call", "ping", "notifications/initialized"}

	for i := range 50 {
		method := fmt.Sprintf("%s/%d", methods[rng.Intn(len(methods))], i)
		params := map[string]any{"payload": randomParams(rng, 3)}
		req := NewRequest(int64(i), method, params)

		data, err := json.Marshal(req)
		if err != nil {
			t.Fatalf("marshal %q: %v", method, err)
		}

		var decoded Request
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal %q: %v", method, err)
		}

		if decoded.ID != req.ID {
			t.Errorf("ID = %d, want %d", decoded.ID, req.ID)
		}
		if decoded.Method != method {
			t.Errorf("Method = %q, want %q", decoded.Method, method)
		}
		if !reflect.DeepEqual(decoded.Params, params) {
			t.Errorf("Params changed across round trip:\n got %#v\nwant %#v", decoded.Params, params)
		}
	}
}

func TestDecodeResponse(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`))
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.ID != 1 {
		t.Errorf("ID = %d, want 1", resp.ID)
	}
	if resp.Error != nil {
		t.Errorf("Error = %v, want nil", resp.Error)
	}
	if resp.Result == nil {
		t.Fatal("Result is nil, want non-nil")
	}
}

func TestDecodeResponseError(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"Method not found"}}`))
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}

	if resp.Error == nil {
		t.Fatal("Error is nil, want non-nil")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("Error.Code = %d, want -32601", resp.Error.Code)
	}
	if resp.Error.Message != "Method not found" {
		t.Errorf("Error.Message = %q, want %q", resp.Error.Message, "Method not found")
	}
}

func TestDecodeResponseMalformed(t *testing.T) {
	_, err := DecodeResponse([]byte(`{not json`))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}
}

func TestDecodeResponseWrongVersion(t *testing.T) {
	_, err := DecodeResponse([]byte(`{"jsonrpc":"1.0","id":1,"result":{}}`))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}
}

func TestRPCErrorString(t *testing.T) {
	e := &RPCError{Code: -32600, Message: "Invalid Request"}
	got := e.Error()
	want := "jsonrpc error -32600: Invalid Request"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotification(t *testing.T) {
	notif := NewNotification("notifications/initialized", nil)

	if notif.JSONRPC != "2.0" {
		t.Errorf("JSONRPC = %q, want %q", notif.JSONRPC, "2.0")
	}
	if notif.Method != "notifications/initialized" {
		t.Errorf("Method = %q, want %q", notif.Method, "notifications/initialized")
	}
	if notif.Params != nil {
		t.Errorf("Params = %v, want nil", notif.Params)
	}
}

func TestNotificationOmitsNilParams(t *testing.T) {
	notif := NewNotification("test", nil)
	data, err := json.Marshal(notif)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if _, ok := m["params"]; ok {
		t.Error("params should be omitted when nil")
	}
}
