package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPSendJSON(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  json.RawMessage(`{"tools":[]}`),
		})
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{
		Name:    "remote",
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer token123"},
		Logger:  testLogger(),
	})

	resp, err := tr.Send(context.Background(), NewRequest(5, "tools/list", nil))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.ID != 5 {
		t.Errorf("response ID = %d, want 5", resp.ID)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestHTTPSendEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		// A notification event precedes the response event.
		w.Write([]byte("event: message\n"))
		w.Write([]byte(`data: {"jsonrpc":"2.0","method":"notifications/progress"}` + "\n\n"))
		w.Write([]byte(`data: {"jsonrpc":"2.0","id":9,"result":{"content":[{"type":"text","text":"hi"}]}}` + "\n\n"))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL, Logger: testLogger()})

	resp, err := tr.Send(context.Background(), NewRequest(9, "tools/call", map[string]any{"name": "echo"}))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.ID != 9 {
		t.Errorf("response ID = %d, want 9", resp.ID)
	}

	var result callToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "hi" {
		t.Errorf("content = %+v", result.Content)
	}
}

func TestHTTPSessionAffinity(t *testing.T) {
	var sessions []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessions = append(sessions, r.Header.Get("Mcp-Session"))
		w.Header().Set("Mcp-Session", "sess-42")
		w.Header().Set("Content-Type", "application/json")
		var req Request
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{}`)})
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL, Logger: testLogger()})

	for i := int64(1); i <= 2; i++ {
		if _, err := tr.Send(context.Background(), NewRequest(i, "ping", nil)); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	if len(sessions) != 2 {
		t.Fatalf("requests = %d, want 2", len(sessions))
	}
	if sessions[0] != "" {
		t.Errorf("first request carried session %q, want empty", sessions[0])
	}
	if sessions[1] != "sess-42" {
		t.Errorf("second request session = %q, want %q", sessions[1], "sess-42")
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{Name: "remote", URL: srv.URL, Logger: testLogger()})

	_, err := tr.Send(context.Background(), NewRequest(1, "ping", nil))
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if transportErr.Server != "remote" {
		t.Errorf("Server = %q", transportErr.Server)
	}
}

func TestHTTPNotifyAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL, Logger: testLogger()})

	if err := tr.Notify(context.Background(), NewNotification("notifications/initialized", nil)); err != nil {
		t.Errorf("Notify: %v", err)
	}
}

func TestHTTPConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // guaranteed-dead endpoint

	tr := NewHTTPTransport(HTTPConfig{Name: "dead", URL: url, Logger: testLogger()})

	_, err := tr.Send(context.Background(), NewRequest(1, "ping", nil))
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
}
