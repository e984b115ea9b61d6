// Package tools defines the tools available to the agent.
package tools

import (
	"context"
	"sort"
	"sync"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string                                                         `json:"name"`
	Description string                                                         `json:"description"`
	Parameters  map[string]any                                                 `json:"parameters"`
	Handler     func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools. Safe for concurrent use; MCP server
// loading registers bridged tools from one goroutine per server.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry. Registering a name that already
// exists replaces the previous tool.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil if not registered.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all tools as OpenAI-style function definitions, sorted by
// name so the output is stable across calls.
func (r *Registry) List() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]map[string]any, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// AllToolNames returns the names of every registered tool, in no
// particular order.
func (r *Registry) AllToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// FilteredCopy returns a new registry containing only the named tools.
// Names that are not registered are skipped. The copy shares Tool values
// with the source but has its own map, so registering into the copy does
// not affect the original.
func (r *Registry) FilteredCopy(include []string) *Registry {
	filtered := NewRegistry()
	for _, name := range include {
		if t := r.Get(name); t != nil {
			filtered.Register(t)
		}
	}
	return filtered
}

// FilteredCopyExcluding returns a new registry containing every tool
// except the named ones.
func (r *Registry) FilteredCopyExcluding(exclude []string) *Registry {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}
	filtered := NewRegistry()
	for _, name := range r.AllToolNames() {
		if !excluded[name] {
			filtered.Register(r.Get(name))
		}
	}
	return filtered
}

// Execute runs a tool by name with the given arguments. A missing tool
// returns *ErrToolUnavailable so callers can distinguish a capability
// mismatch from an execution failure.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool := r.Get(name)
	if tool == nil {
		return "", &ErrToolUnavailable{ToolName: name}
	}
	return tool.Handler(ctx, args)
}
