package tools

import (
	"sort"
	"testing"
)

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r, BuiltinOptions{WorkDir: t.TempDir()})

	names := r.AllToolNames()
	sort.Strings(names)
	want := []string{"bash", "edit", "glob", "grep", "read", "write"}
	if len(names) != len(want) {
		t.Fatalf("registered tools = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tool[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRegisterBuiltinsBashDisabled(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r, BuiltinOptions{WorkDir: t.TempDir(), BashDisabled: true})

	if r.Get("bash") != nil {
		t.Error("bash registered despite being disabled")
	}
	if r.Get("read") == nil {
		t.Error("read tool missing")
	}
}
