package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/locodev/loco/internal/agent"
	"github.com/locodev/loco/internal/buildinfo"
	"github.com/locodev/loco/internal/chat"
	"github.com/locodev/loco/internal/config"
	"github.com/locodev/loco/internal/hooks"
	"github.com/locodev/loco/internal/llm"
	"github.com/locodev/loco/internal/mcp"
	"github.com/locodev/loco/internal/session"
	"github.com/locodev/loco/internal/skills"
	"github.com/locodev/loco/internal/tools"
	"github.com/locodev/loco/internal/ui"
)

// chatStack bundles everything a conversation needs: the tool registry
// (builtins plus bridged MCP tools plus the agent tool), the hook
// pipeline, the LLM client, and the live MCP connections to close on
// exit.
type chatStack struct {
	cwd        string
	client     llm.Client
	registry   *tools.Registry
	hooks      *hooks.Pipeline
	mcpClients map[string]*mcp.Client
	skills     *skills.Registry
	agents     *agent.Registry
}

// buildChatStack wires the full tool and provider stack from config.
// MCP servers connect concurrently; an unreachable one contributes no
// tools but never blocks startup. The caller must Close the returned
// stack.
func buildChatStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*chatStack, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	client := buildLLMClient(cfg, logger)

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, tools.BuiltinOptions{
		WorkDir:      cwd,
		BashTimeout:  time.Duration(cfg.Tools.BashTimeoutOrDefault()) * time.Second,
		BashDisabled: cfg.Tools.BashDisabled,
	})

	hookPipeline := hooks.NewPipeline(cfg.Hooks, cwd, logger)

	mcpClients := mcp.LoadServers(ctx, cfg.MCPServers, registry, mcpConnectTimeout, logger)

	userDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		userDir = filepath.Join(home, ".loco")
	}

	skillReg := skills.Discover(filepath.Join(userDir, "skills"), cwd, logger)
	agentReg := agent.Discover(filepath.Join(userDir, "agents"), cwd, logger)

	runner := agent.NewRunner(logger, client, cfg, agentReg, registry, hookPipeline)
	runner.RegisterTool(registry)

	return &chatStack{
		cwd:        cwd,
		client:     client,
		registry:   registry,
		hooks:      hookPipeline,
		mcpClients: mcpClients,
		skills:     skillReg,
		agents:     agentReg,
	}, nil
}

// Close shuts down the stack's MCP connections.
func (s *chatStack) Close(logger *slog.Logger) {
	mcp.CloseAll(s.mcpClients, logger)
}

// skillAugmentation builds the skills section appended to the system
// prompt, or "" when no skills are loaded.
func skillAugmentation(reg *skills.Registry) string {
	desc := reg.Descriptions()
	if desc == "" {
		return ""
	}
	return desc + "\n\nWhen a skill matches the user's request, follow its instructions."
}

// runChat is the primary operating mode: an interactive REPL reading
// user input line by line. Slash commands are handled locally; anything
// else becomes a chat turn. Ctrl+C during a turn cancels that turn
// (pending tool calls get interrupted results); at the prompt it exits.
// The transcript is saved after every turn.
func runChat(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, configPath, modelFlag string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, logLevel(cfg), "text")

	stack, err := buildChatStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close(logger)

	model := cfg.ResolveModel(cfg.DefaultModel)
	if modelFlag != "" {
		model = cfg.ResolveModel(modelFlag)
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = chat.DefaultSystemPrompt(stack.cwd)
	}
	conv := chat.NewConversation(model, systemPrompt)
	conv.SkillAugmentation = skillAugmentation(stack.skills)

	console := ui.NewConsole(stdout, 0)
	engine := chat.NewEngine(logger, stack.client, stack.registry, conv, chat.EngineOptions{
		UI:    console,
		Hooks: stack.hooks,
	})

	// Session persistence is best-effort. A broken store (read-only
	// disk, bad data dir) downgrades to an ephemeral session.
	var store *session.Store
	var sessionID string
	if store, err = session.Open(sessionDBPath(cfg)); err != nil {
		logger.Warn("session store unavailable, transcript will not be saved", "error", err)
		store = nil
	} else {
		defer store.Close()
	}

	console.Welcome(buildinfo.Version, model, stack.cwd)

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout, "\nGoodbye!")
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			handled, quit := handleSlashCommand(input, conv, cfg, cfgPath, console)
			if quit {
				fmt.Fprintln(stdout, "Goodbye!")
				return nil
			}
			if !handled {
				console.Error("Unknown command: %s", strings.Fields(input)[0])
				console.Info("Type /help for available commands")
			}
			continue
		}

		// Ctrl+C cancels the current turn, not the process.
		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		err := engine.Turn(turnCtx, input)
		stop()

		switch {
		case errors.Is(err, context.Canceled):
			console.Info("Interrupted")
		case err != nil:
			console.Error("Error: %v", err)
		}
		console.EndTurn()

		if store != nil {
			id, err := store.Save(&session.Record{
				ID:       sessionID,
				Name:     sessionName(conv),
				Model:    conv.Model,
				Messages: conv.Messages,
			})
			if err != nil {
				logger.Warn("session save failed", "error", err)
			} else {
				sessionID = id
			}
		}
	}
}

// runAsk handles the "loco ask <question>" subcommand: the same stack
// as the REPL, one turn, then exit. Useful for scripting and smoke
// tests.
func runAsk(ctx context.Context, stdout, stderr io.Writer, configPath, modelFlag string, args []string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, logLevel(cfg), "text")

	stack, err := buildChatStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close(logger)

	model := cfg.ResolveModel(cfg.DefaultModel)
	if modelFlag != "" {
		model = cfg.ResolveModel(modelFlag)
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = chat.DefaultSystemPrompt(stack.cwd)
	}
	conv := chat.NewConversation(model, systemPrompt)
	conv.SkillAugmentation = skillAugmentation(stack.skills)

	console := ui.NewConsole(stdout, 0)
	engine := chat.NewEngine(logger, stack.client, stack.registry, conv, chat.EngineOptions{
		UI:    console,
		Hooks: stack.hooks,
	})

	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Turn(turnCtx, strings.Join(args, " ")); err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	console.EndTurn()
	return nil
}

// handleSlashCommand processes a REPL slash command. It returns whether
// the command was recognized and whether the REPL should exit.
func handleSlashCommand(input string, conv *chat.Conversation, cfg *config.Config, cfgPath string, console *ui.Console) (handled, quit bool) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	switch cmd {
	case "/help":
		console.Info("Available commands:\n\n" +
			"  /help           Show this help message\n" +
			"  /clear          Clear conversation history\n" +
			"  /model [name]   Show or switch the current model\n" +
			"  /config         Show configuration file path\n" +
			"  /quit           Exit loco (or Ctrl+D)\n\n" +
			"Use model aliases from config (e.g., /model gpt4)\n" +
			"or full provider/model strings (e.g., /model openai/gpt-4o)")
		return true, false

	case "/clear":
		conv.Clear()
		console.Info("Conversation cleared.")
		return true, false

	case "/model":
		if arg != "" {
			conv.Model = cfg.ResolveModel(arg)
			console.Info("Switched to model: %s", conv.Model)
			return true, false
		}
		console.Info("Current model: %s", conv.Model)
		aliases := make([]string, 0, len(cfg.Models))
		for alias := range cfg.Models {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			marker := ""
			if cfg.Models[alias] == conv.Model {
				marker = "  <-- current"
			}
			console.Info("  %s: %s%s", alias, cfg.Models[alias], marker)
		}
		return true, false

	case "/config":
		if cfgPath == "" {
			console.Info("Config file: (none, using defaults)")
		} else {
			console.Info("Config file: %s", cfgPath)
		}
		return true, false

	case "/quit", "/exit", "/q":
		return true, true
	}

	return false, false
}

// sessionName derives a human-readable session label from the first
// user message.
func sessionName(conv *chat.Conversation) string {
	for _, msg := range conv.Messages {
		if msg.Role != "user" {
			continue
		}
		name := msg.Content
		if i := strings.IndexByte(name, '\n'); i >= 0 {
			name = name[:i]
		}
		if len(name) > 60 {
			name = name[:60]
		}
		return name
	}
	return "untitled"
}
