package tools

import "time"

// BuiltinOptions configures the built-in tool set.
type BuiltinOptions struct {
	WorkDir      string
	BashTimeout  time.Duration
	BashDisabled bool
}

// RegisterBuiltins adds the standard tools (read, write, edit, glob,
// grep, and bash unless disabled) to the registry.
func RegisterBuiltins(r *Registry, opts BuiltinOptions) {
	NewFileTools(opts.WorkDir).Register(r)
	NewFinder(opts.WorkDir).Register(r)
	if !opts.BashDisabled {
		NewShell(opts.WorkDir, opts.BashTimeout).Register(r)
	}
}
