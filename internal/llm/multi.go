package llm

import (
	"context"
	"fmt"
	"strings"
)

// MultiClient routes requests to a provider based on the model string's
// prefix ("anthropic/claude-sonnet-4" routes to the "anthropic" client
// with model "claude-sonnet-4"). Models with no prefix go to the
// fallback provider.
type MultiClient struct {
	clients  map[string]Client // provider name -> client
	fallback string            // provider for bare model names
}

// NewMultiClient creates a routing client. fallback names the provider
// used for model strings without a provider prefix.
func NewMultiClient(fallback string) *MultiClient {
	return &MultiClient{
		clients:  make(map[string]Client),
		fallback: fallback,
	}
}

// AddProvider registers a client for a provider name.
func (m *MultiClient) AddProvider(name string, client Client) {
	m.clients[name] = client
}

// clientFor resolves a model string to its provider client and the
// bare model name to pass through.
func (m *MultiClient) clientFor(model string) (Client, string, error) {
	provider := m.fallback
	name := model
	if p, rest, ok := strings.Cut(model, "/"); ok {
		provider, name = p, rest
	}
	client, ok := m.clients[provider]
	if !ok {
		return nil, "", fmt.Errorf("no provider configured for model %q", model)
	}
	return client, name, nil
}

// Chat sends a request to the appropriate provider for the model.
func (m *MultiClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	client, name, err := m.clientFor(model)
	if err != nil {
		return nil, err
	}
	return client.Chat(ctx, name, messages, tools)
}

// ChatStream sends a streaming request to the appropriate provider.
func (m *MultiClient) ChatStream(ctx context.Context, model string, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResponse, error) {
	client, name, err := m.clientFor(model)
	if err != nil {
		return nil, err
	}
	return client.ChatStream(ctx, name, messages, tools, callback)
}

// Ping checks the fallback provider.
func (m *MultiClient) Ping(ctx context.Context) error {
	if client, ok := m.clients[m.fallback]; ok {
		return client.Ping(ctx)
	}
	return fmt.Errorf("no fallback provider configured")
}
