package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRegisterLastWriteWins(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{Name: "dup", Handler: func(ctx context.Context, args map[string]any) (string, error) {
		return "first", nil
	}})
	r.Register(&Tool{Name: "dup", Handler: func(ctx context.Context, args map[string]any) (string, error) {
		return "second", nil
	}})

	got, err := r.Execute(context.Background(), "dup", nil)
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if got != "second" {
		t.Errorf("Execute(dup) = %q, want %q", got, "second")
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	r := NewRegistry()
	if got := r.Get("nope"); got != nil {
		t.Errorf("Get(nope) = %v, want nil", got)
	}
}

func TestListSortedAndStable(t *testing.T) {
	r := newTestRegistry()

	first := r.List()
	second := r.List()

	if len(first) != 3 {
		t.Fatalf("List() returned %d tools, want 3", len(first))
	}
	wantOrder := []string{"alpha", "beta", "gamma"}
	for i, def := range first {
		fn, ok := def["function"].(map[string]any)
		if !ok {
			t.Fatalf("List()[%d] missing function block", i)
		}
		if fn["name"] != wantOrder[i] {
			t.Errorf("List()[%d] = %v, want %q", i, fn["name"], wantOrder[i])
		}
	}
	for i := range first {
		fa := first[i]["function"].(map[string]any)
		fb := second[i]["function"].(map[string]any)
		if fa["name"] != fb["name"] {
			t.Errorf("List() order changed between calls at index %d: %v vs %v", i, fa["name"], fb["name"])
		}
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "missing", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}

	var unavailable *ErrToolUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %T, want *ErrToolUnavailable", err)
	}
	if unavailable.ToolName != "missing" {
		t.Errorf("ToolName = %q, want %q", unavailable.ToolName, "missing")
	}
}

func TestConcurrentRegisterAndRead(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for g := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				name := fmt.Sprintf("srv%d_tool%02d", g, i)
				r.Register(&Tool{Name: name, Handler: func(ctx context.Context, args map[string]any) (string, error) {
					return name, nil
				}})
				r.Get(name)
				r.List()
			}
		}()
	}
	wg.Wait()

	if got := len(r.AllToolNames()); got != 200 {
		t.Errorf("registered tools = %d, want 200", got)
	}
}

func TestExecutePassesArgs(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{Name: "echo", Handler: func(ctx context.Context, args map[string]any) (string, error) {
		s, _ := args["text"].(string)
		return s, nil
	}})

	got, err := r.Execute(context.Background(), "echo", map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if got != "hello" {
		t.Errorf("Execute(echo) = %q, want %q", got, "hello")
	}
}
