package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/locodev/loco/internal/chat"
	"github.com/locodev/loco/internal/config"
	"github.com/locodev/loco/internal/hooks"
	"github.com/locodev/loco/internal/llm"
	"github.com/locodev/loco/internal/tools"
)

// ToolName is the registry name of the sub-agent tool. It is excluded
// from every sub-agent's own registry so agents cannot recurse.
const ToolName = "agent"

// Runner executes sub-agent tasks on isolated conversations.
type Runner struct {
	logger    *slog.Logger
	llm       llm.Client
	cfg       *config.Config
	agents    *Registry
	parentReg *tools.Registry
	hooks     *hooks.Pipeline
}

// NewRunner creates a sub-agent runner over the parent's tool registry.
func NewRunner(logger *slog.Logger, client llm.Client, cfg *config.Config, agents *Registry, parentReg *tools.Registry, hookPipeline *hooks.Pipeline) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logger:    logger,
		llm:       client,
		cfg:       cfg,
		agents:    agents,
		parentReg: parentReg,
		hooks:     hookPipeline,
	}
}

// RegisterTool adds the agent tool to the parent registry. Nothing is
// registered when no agent definitions were discovered.
func (r *Runner) RegisterTool(reg *tools.Registry) {
	names := r.agents.Names()
	if len(names) == 0 {
		return
	}

	var desc strings.Builder
	desc.WriteString("Run a specialized sub-agent on a task in an isolated conversation. Available agents:")
	for _, def := range r.agents.All() {
		desc.WriteString(fmt.Sprintf("\n- %s: %s", def.Name, def.Description))
	}

	reg.Register(&tools.Tool{
		Name:        ToolName,
		Description: desc.String(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agent": map[string]any{
					"type":        "string",
					"enum":        names,
					"description": "Name of the agent to run",
				},
				"task": map[string]any{
					"type":        "string",
					"description": "Plain English description of what the agent should accomplish",
				},
			},
			"required": []string{"agent", "task"},
		},
		Handler: r.handle,
	})
}

// handle runs one sub-agent task. Failures come back as tool result
// strings so the calling model can react.
func (r *Runner) handle(ctx context.Context, args map[string]any) (string, error) {
	agentName, _ := args["agent"].(string)
	if agentName == "" {
		return "Error: agent is required", nil
	}
	task, _ := args["task"].(string)
	if task == "" {
		return "Error: task is required", nil
	}

	def := r.agents.Get(agentName)
	if def == nil {
		return fmt.Sprintf("Error: Unknown agent '%s'. Available: %s",
			agentName, strings.Join(r.agents.Names(), ", ")), nil
	}

	return r.Run(ctx, def, task)
}

// Run executes a task under the given agent definition and returns the
// agent's final summary.
func (r *Runner) Run(ctx context.Context, def *Definition, task string) (string, error) {
	model := def.Model
	if model == "" {
		model = r.cfg.DefaultModel
	}
	model = r.cfg.ResolveModel(model)

	systemPrompt := fmt.Sprintf(`You are a specialized agent: %s

%s

Current task: %s

Complete this task and provide a clear summary of what you found or accomplished.`,
		def.Name, def.SystemPrompt, task)

	// Restrict the registry to the agent's tools, never including the
	// agent tool itself.
	parentNames := r.parentReg.AllToolNames()
	effective := def.EffectiveTools(parentNames)
	var allowed []string
	for _, name := range effective {
		if name != ToolName {
			allowed = append(allowed, name)
		}
	}
	reg := r.parentReg.FilteredCopy(allowed)

	conv := chat.NewConversation(model, systemPrompt)
	eng := chat.NewEngine(r.logger, r.llm, reg, conv, chat.EngineOptions{Hooks: r.hooks})

	r.logger.Info("agent started",
		"agent", def.Name,
		"model", model,
		"task_len", len(task),
		"tools_available", len(allowed),
	)
	start := time.Now()

	if err := eng.Turn(ctx, task); err != nil {
		r.logger.Warn("agent turn failed", "agent", def.Name, "error", err)
		return fmt.Sprintf("Agent error: %v", err), nil
	}

	r.logger.Info("agent completed",
		"agent", def.Name,
		"messages", len(conv.Messages),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	// The last assistant message with content is the summary.
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		msg := conv.Messages[i]
		if msg.Role == "assistant" && msg.Content != "" {
			return msg.Content, nil
		}
	}
	return "Agent completed without a response", nil
}
