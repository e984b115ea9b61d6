package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/locodev/loco/internal/hooks"
	"github.com/locodev/loco/internal/llm"
	"github.com/locodev/loco/internal/tools"
)

// defaultMaxIter bounds model/tool round trips within a single turn.
// When the model is still calling tools at the ceiling, the engine
// makes one final call with no tools to force a text answer.
const defaultMaxIter = 15

// interruptedResult answers a tool call that was cancelled before it
// could run, so the transcript never carries a dangling tool call.
const interruptedResult = "Error: interrupted by user"

// State tracks where the engine is within a turn.
type State int

const (
	StateIdle State = iota
	StateAwaitingModel
	StateToolDispatch
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateToolDispatch:
		return "tool_dispatch"
	default:
		return "unknown"
	}
}

// UI receives turn progress for display. Implementations must not
// block; the engine calls them inline on its own goroutine.
type UI interface {
	// Token delivers one incremental text fragment from the model.
	Token(text string)

	// ToolStarted fires just before a tool call is dispatched.
	ToolStarted(name string, args map[string]any)

	// ToolFinished fires after a tool call resolves. failed is true
	// for blocked, unavailable, and erroring calls.
	ToolFinished(name, result string, failed bool)
}

// Engine runs chat turns: one streaming model call, sequential tool
// dispatch, repeat until the model answers with text. One engine owns
// one conversation and is not safe for concurrent turns.
type Engine struct {
	logger   *slog.Logger
	llm      llm.Client
	registry *tools.Registry
	hooks    *hooks.Pipeline
	ui       UI
	conv     *Conversation
	maxIter  int

	mu    sync.Mutex
	state State
}

// EngineOptions tunes engine behavior.
type EngineOptions struct {
	// MaxIterations caps model/tool round trips per turn (default 15).
	MaxIterations int

	// UI receives progress events. Nil disables display.
	UI UI

	// Hooks runs PreToolUse/PostToolUse commands. Nil disables hooks.
	Hooks *hooks.Pipeline
}

// NewEngine creates an engine over the given conversation and registry.
func NewEngine(logger *slog.Logger, client llm.Client, registry *tools.Registry, conv *Conversation, opts EngineOptions) *Engine {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:   logger,
		llm:      client,
		registry: registry,
		hooks:    opts.Hooks,
		ui:       opts.UI,
		conv:     conv,
		maxIter:  maxIter,
	}
}

// Conversation returns the engine's conversation.
func (e *Engine) Conversation() *Conversation { return e.conv }

// State returns the engine's current position within a turn.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Turn runs one full user turn: append the input, then alternate model
// calls and tool dispatch until the model stops requesting tools.
// Cancellation answers any pending tool calls with interrupted results
// before returning, so the conversation stays resumable.
func (e *Engine) Turn(ctx context.Context, userInput string) error {
	e.conv.AddUserMessage(userInput)
	defer e.setState(StateIdle)

	toolDefs := e.toolDefs()

	for i := range e.maxIter {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.setState(StateAwaitingModel)
		start := time.Now()

		resp, err := e.llm.ChatStream(ctx, e.conv.Model, e.conv.History(), toolDefs, e.streamCallback())
		if err != nil {
			return fmt.Errorf("llm call failed (iter %d): %w", i, err)
		}

		e.logger.Debug("llm response",
			"iter", i,
			"model", e.conv.Model,
			"tool_calls", len(resp.Message.ToolCalls),
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)

		e.conv.AddAssistantMessage(resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			return nil
		}

		e.setState(StateToolDispatch)
		if err := e.dispatchAll(ctx, resp.Message.ToolCalls); err != nil {
			return err
		}
	}

	// The model is still asking for tools at the iteration ceiling.
	e.logger.Warn("max iterations reached, forcing text response", "max_iter", e.maxIter)
	e.setState(StateAwaitingModel)

	resp, err := e.llm.ChatStream(ctx, e.conv.Model, e.conv.History(), nil, e.streamCallback())
	if err != nil {
		return fmt.Errorf("final llm call failed: %w", err)
	}
	e.conv.AddAssistantMessage(resp.Message)
	return nil
}

// toolDefs returns the schemas offered to the model, honoring the
// conversation's tool filter.
func (e *Engine) toolDefs() []map[string]any {
	if e.registry == nil {
		return nil
	}
	if len(e.conv.ToolFilter) > 0 {
		return e.registry.FilteredCopy(e.conv.ToolFilter).List()
	}
	return e.registry.List()
}

// streamCallback forwards text tokens to the UI.
func (e *Engine) streamCallback() llm.StreamCallback {
	if e.ui == nil {
		return nil
	}
	return func(ev llm.StreamEvent) {
		if ev.Kind == llm.KindToken {
			e.ui.Token(ev.Token)
		}
	}
}

// dispatchAll runs the assistant's tool calls in request order. Every
// call gets an answering tool message, including the ones skipped
// after a cancellation.
func (e *Engine) dispatchAll(ctx context.Context, calls []llm.ToolCall) error {
	for idx, tc := range calls {
		if err := ctx.Err(); err != nil {
			for _, pending := range calls[idx:] {
				e.conv.AddToolResult(pending.ID, pending.Name, interruptedResult)
			}
			return err
		}
		result, failed := e.dispatchOne(ctx, tc)
		e.conv.AddToolResult(tc.ID, tc.Name, result)
		if e.ui != nil {
			e.ui.ToolFinished(tc.Name, result, failed)
		}
	}
	return nil
}

// dispatchOne runs a single tool call through the hook pipeline and
// the registry. Failures come back as result text so the model can
// react; they never abort the turn.
func (e *Engine) dispatchOne(ctx context.Context, tc llm.ToolCall) (result string, failed bool) {
	if e.ui != nil {
		e.ui.ToolStarted(tc.Name, tc.Arguments)
	}

	if e.hooks != nil {
		if _, err := e.hooks.Run(ctx, hooks.EventPreToolUse, tc.Name, tc.Arguments); err != nil {
			e.logger.Info("tool call blocked by hook", "tool", tc.Name, "error", err)
			// A denial with a stated reason surfaces that reason verbatim
			// as the tool result, so the model sees exactly what the hook
			// said.
			var blocked *hooks.BlockedError
			if errors.As(err, &blocked) && blocked.Reason != "" {
				return blocked.Reason, true
			}
			return "Error: " + err.Error(), true
		}
	}

	start := time.Now()
	result, err := e.registry.Execute(ctx, tc.Name, tc.Arguments)
	if err != nil {
		e.logger.Error("tool exec failed", "tool", tc.Name, "error", err)
		result = "Error: " + err.Error()
		failed = true
	} else {
		e.logger.Debug("tool exec done",
			"tool", tc.Name,
			"result_len", len(result),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}

	if e.hooks != nil {
		outcome, hookErr := e.hooks.Run(ctx, hooks.EventPostToolUse, tc.Name, tc.Arguments)
		if hookErr != nil {
			e.logger.Warn("post-tool hook failed", "tool", tc.Name, "error", hookErr)
		} else if len(outcome.AdditionalContext) > 0 {
			result += "\n\n" + strings.Join(outcome.AdditionalContext, "\n")
		}
	}

	return result, failed
}
