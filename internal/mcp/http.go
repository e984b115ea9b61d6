package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/locodev/loco/internal/httpkit"
)

// HTTPConfig configures an HTTP MCP transport that communicates with a
// remote MCP server over streamable HTTP (JSON-RPC over POST).
type HTTPConfig struct {
	// Name identifies the server in logs and errors.
	Name string

	// URL is the MCP server endpoint.
	URL string

	// Headers are additional HTTP headers sent with every request
	// (e.g., Authorization).
	Headers map[string]string

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger
}

// HTTPTransport communicates with an MCP server over streamable HTTP.
// Each JSON-RPC request is sent as an HTTP POST; the response comes
// back either as a plain JSON body or as an SSE stream that is scanned
// until the matching response arrives.
type HTTPTransport struct {
	name       string
	url        string
	headers    map[string]string
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.RWMutex
	sessionID string // Mcp-Session header for session affinity
}

// NewHTTPTransport creates an HTTP transport for the given config.
// The underlying HTTP client is constructed via httpkit.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := httpkit.NewClient(
		httpkit.WithLogger(logger),
	)

	name := cfg.Name
	if name == "" {
		name = cfg.URL
	}

	return &HTTPTransport{
		name:       name,
		url:        cfg.URL,
		headers:    cfg.Headers,
		httpClient: client,
		logger:     logger,
	}
}

// Send sends a JSON-RPC request via HTTP POST and returns the response.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpResp, err := t.post(ctx, body, "application/json, text/event-stream")
	if err != nil {
		return nil, err
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<20)

	if httpResp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
		return nil, &TransportError{Server: t.name, Op: "send",
			Err: fmt.Errorf("MCP server returned %d: %s", httpResp.StatusCode, errBody)}
	}

	contentType, _, _ := mime.ParseMediaType(httpResp.Header.Get("Content-Type"))
	if contentType == "text/event-stream" {
		return t.readEventStream(httpResp.Body, req.ID)
	}

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20)) // 10 MiB limit
	if err != nil {
		return nil, &TransportError{Server: t.name, Op: "send",
			Err: fmt.Errorf("read response body: %w", err)}
	}

	return DecodeResponse(respBody)
}

// readEventStream scans SSE data lines until a response with the given
// request ID appears. Other events (server notifications, unrelated
// responses) are skipped.
func (t *HTTPTransport) readEventStream(body io.Reader, wantID int64) (*Response, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var resp Response
		if err := json.Unmarshal([]byte(payload), &resp); err != nil {
			t.logger.Debug("skipping non-JSON SSE event", "data", payload)
			continue
		}
		if resp.ID == wantID {
			return &resp, nil
		}
		t.logger.Debug("skipping unmatched SSE message", "id", resp.ID)
	}
	if err := scanner.Err(); err != nil {
		return nil, &TransportError{Server: t.name, Op: "send",
			Err: fmt.Errorf("read event stream: %w", err)}
	}
	return nil, &TransportError{Server: t.name, Op: "send",
		Err: fmt.Errorf("event stream ended before response %d", wantID)}
}

// Notify sends a JSON-RPC notification via HTTP POST. No response
// content is expected, but the HTTP response status is checked.
func (t *HTTPTransport) Notify(ctx context.Context, notif *Notification) error {
	body, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	httpResp, err := t.post(ctx, body, "application/json")
	if err != nil {
		return err
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<20)

	// Accept 200 and 202 (accepted) for notifications.
	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusAccepted {
		errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
		return &TransportError{Server: t.name, Op: "notify",
			Err: fmt.Errorf("MCP server returned %d for notification: %s", httpResp.StatusCode, errBody)}
	}

	return nil
}

// post issues the HTTP POST shared by Send and Notify, applying
// configured headers and session affinity.
func (t *HTTPTransport) post(ctx context.Context, body []byte, accept string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)

	// Apply configured headers (auth, etc.).
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}

	// Include session ID if we have one from a previous response.
	t.mu.RLock()
	if t.sessionID != "" {
		httpReq.Header.Set("Mcp-Session", t.sessionID)
	}
	t.mu.RUnlock()

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Server: t.name, Op: "post",
			Err: fmt.Errorf("HTTP request to %s: %w", t.url, err)}
	}

	// Capture session ID from response.
	if sid := httpResp.Header.Get("Mcp-Session"); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	return httpResp, nil
}

// Close is a no-op for HTTP transports. The underlying HTTP client
// manages its own connection pool via httpkit.
func (t *HTTPTransport) Close() error {
	return nil
}
