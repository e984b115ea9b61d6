// Package hooks runs user-configured shell commands around tool
// execution. A PreToolUse hook can veto a tool call before it runs;
// a PostToolUse hook can attach extra context to the result.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/locodev/loco/internal/config"
)

// Hook event names.
const (
	EventPreToolUse  = "PreToolUse"
	EventPostToolUse = "PostToolUse"
)

// DefaultTimeout bounds a single hook command unless the config sets
// its own.
const DefaultTimeout = 60 * time.Second

// BlockedError indicates a hook vetoed the tool call. The tool never
// executes when a PreToolUse hook blocks.
type BlockedError struct {
	ToolName string
	Reason   string
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("tool %q blocked by hook", e.ToolName)
	}
	return fmt.Sprintf("tool %q blocked by hook: %s", e.ToolName, e.Reason)
}

// TimeoutError indicates a hook command exceeded its time budget.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("hook command timed out after %s: %s", e.Timeout, e.Command)
}

// payload is what a hook command reads on stdin.
type payload struct {
	HookEvent string         `json:"hook_event"`
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input"`
	Cwd       string         `json:"cwd"`
}

// Decision is the optional JSON a hook command writes to stdout.
type Decision struct {
	Decision          string `json:"decision,omitempty"`
	Reason            string `json:"reason,omitempty"`
	AdditionalContext string `json:"additional_context,omitempty"`
}

// Outcome is the merged result of every hook that ran for one event.
type Outcome struct {
	// AdditionalContext holds, in hook order, every non-empty
	// additional_context the hooks emitted.
	AdditionalContext []string
}

// Pipeline dispatches tool lifecycle events to configured hook
// commands.
type Pipeline struct {
	hooks  map[string][]config.HookMatcher
	cwd    string
	logger *slog.Logger
}

// NewPipeline creates a pipeline from the config's hooks map. The cwd
// is reported to hook commands in their stdin payload; empty falls
// back to the process working directory.
func NewPipeline(hooks map[string][]config.HookMatcher, cwd string, logger *slog.Logger) *Pipeline {
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{hooks: hooks, cwd: cwd, logger: logger}
}

// Run executes every hook whose matcher covers toolName, in config
// order. It returns *BlockedError when a hook denies the call or exits
// with status 2. Hooks that time out or fail with any other status are
// logged and skipped.
func (p *Pipeline) Run(ctx context.Context, event, toolName string, toolInput map[string]any) (*Outcome, error) {
	outcome := &Outcome{}
	if p == nil || len(p.hooks) == 0 {
		return outcome, nil
	}

	in := payload{
		HookEvent: event,
		ToolName:  toolName,
		ToolInput: toolInput,
		Cwd:       p.cwd,
	}

	for _, matcher := range p.hooks[event] {
		if !matcherCovers(matcher.Matcher, toolName) {
			continue
		}
		for _, spec := range matcher.Hooks {
			decision, err := p.runHook(ctx, spec, in)
			if err != nil {
				var blocked *BlockedError
				if errors.As(err, &blocked) {
					return outcome, blocked
				}
				p.logger.Warn("hook failed, continuing",
					"event", event,
					"tool", toolName,
					"command", spec.Command,
					"error", err)
				continue
			}
			if decision == nil {
				continue
			}
			if decision.Decision == "deny" {
				return outcome, &BlockedError{ToolName: toolName, Reason: decision.Reason}
			}
			if decision.AdditionalContext != "" {
				outcome.AdditionalContext = append(outcome.AdditionalContext, decision.AdditionalContext)
			}
		}
	}
	return outcome, nil
}

// runHook executes a single hook command with the payload on stdin.
// Exit 0 returns the parsed stdout decision (nil when stdout is empty
// or not JSON). Exit 2 returns *BlockedError carrying the stderr text.
// Any other failure is returned as-is for the caller to log.
func (p *Pipeline) runHook(ctx context.Context, spec config.HookSpec, in payload) (*Decision, error) {
	timeout := DefaultTimeout
	if spec.TimeoutSec > 0 {
		timeout = time.Duration(spec.TimeoutSec) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdin, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal hook payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", spec.Command)
	cmd.Dir = p.cwd
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, &TimeoutError{Command: spec.Command, Timeout: timeout}
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok && exitErr.ExitCode() == 2 {
			reason := strings.TrimSpace(stderr.String())
			return nil, &BlockedError{ToolName: in.ToolName, Reason: reason}
		}
		return nil, fmt.Errorf("hook command %q: %w (stderr: %s)",
			spec.Command, runErr, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return nil, nil
	}
	var decision Decision
	if err := json.Unmarshal([]byte(out), &decision); err != nil {
		// Non-JSON stdout is informational only.
		p.logger.Debug("hook stdout is not a decision", "command", spec.Command, "stdout", out)
		return nil, nil
	}
	return &decision, nil
}

// matcherCovers reports whether a matcher pattern applies to the tool.
// Empty and "*" match everything; otherwise the pattern is an anchored
// regular expression, so "read" is an exact match and "read|write" an
// alternation. A pattern that fails to compile matches only itself.
func matcherCovers(pattern, toolName string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return pattern == toolName
	}
	return re.MatchString(toolName)
}
