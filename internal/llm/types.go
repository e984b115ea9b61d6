// Package llm provides LLM client implementations.
package llm

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
	Name       string     `json:"name,omitempty"`         // Tool name on tool responses
}

// ToolCall is a parsed tool call from the model. Immutable once captured
// from the stream; the dispatch step consumes it exactly once.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ensureToolCallID returns id unchanged, or a synthesized unique ID
// when the provider omitted one. Every tool call needs an ID so its
// tool-result message can be matched back to it.
func ensureToolCallID(id string) string {
	if id != "" {
		return id
	}
	return "call_" + uuid.NewString()
}

// ChatResponse is the unified response from any LLM provider.
// Wire format conversion happens at provider boundaries.
type ChatResponse struct {
	Model   string
	Message Message
	Done    bool

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int
}

// StreamEvent represents a single event in a streaming response.
// Consumers switch on Kind to determine what data is available.
type StreamEvent struct {
	Kind StreamEventKind

	// Token is set for KindToken events.
	Token string

	// ToolCall is set for KindToolCallStart events.
	ToolCall *ToolCall

	// Response is set for KindDone events (final summary).
	Response *ChatResponse
}

// StreamEventKind identifies the type of stream event.
type StreamEventKind int

const (
	// KindToken is an incremental text token from the model.
	KindToken StreamEventKind = iota

	// KindToolCallStart fires when a complete tool call has been parsed
	// from the stream.
	KindToolCallStart

	// KindDone signals the stream is complete. Response carries final metadata.
	KindDone
)

// StreamCallback receives streaming events.
type StreamCallback func(event StreamEvent)

// GenerationError is a failure of the LLM backend. Transient failures
// (rate limits, 5xx, connection faults) are retried with backoff up to
// a ceiling; non-transient failures (auth, malformed request) surface
// immediately.
type GenerationError struct {
	Provider  string
	Status    int
	Message   string
	Transient bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: API error %d: %s", e.Provider, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// transientStatus reports whether an HTTP status from a provider is
// worth retrying. 408/429 and server-side errors qualify.
func transientStatus(status int) bool {
	return status == 408 || status == 429 || status >= 500
}
