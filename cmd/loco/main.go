// Loco is a terminal LLM client for coding work.
//
// It runs an interactive chat loop in which the model can call local
// tools (file reads and writes, shell commands, search) and tools
// bridged from MCP servers. It can also expose its own built-in tools
// as an MCP server over stdio. Configuration is loaded from a single
// YAML file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	loco                     Start an interactive chat session
//	loco ask <question>      Ask a single question and exit
//	loco sessions [list]     List saved sessions
//	loco sessions show <id>  Print a saved session transcript
//	loco sessions rm <id>    Delete a saved session
//	loco mcp-serve           Serve built-in tools over MCP on stdio
//	loco version             Print version and build information
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/locodev/loco/internal/buildinfo"
	"github.com/locodev/loco/internal/config"
	"github.com/locodev/loco/internal/llm"
	"github.com/locodev/loco/internal/mcp"
	"github.com/locodev/loco/internal/session"
	"github.com/locodev/loco/internal/tools"
)

// mcpConnectTimeout bounds the initialize handshake per configured
// MCP server at startup.
const mcpConnectTimeout = 10 * time.Second

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the loco command. All OS-level
// dependencies are injected as parameters: stdin feeds the chat loop
// (and the MCP server in mcp-serve mode), stdout receives program
// output, stderr receives structured logs, and args is os.Args[1:].
//
// Arguments are parsed by hand. The flag package relies on package-level
// globals (flag.CommandLine), which makes it impossible to call run()
// concurrently from tests, and our flag surface is small.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var modelFlag string
	var workDir string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-m" || args[i] == "--model") && i+1 < len(args):
			modelFlag = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-m="):
			modelFlag = strings.TrimPrefix(args[i], "-m=")
		case strings.HasPrefix(args[i], "--model="):
			modelFlag = strings.TrimPrefix(args[i], "--model=")
		case (args[i] == "-C" || args[i] == "--cwd") && i+1 < len(args):
			workDir = args[i+1]
			i++
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				// Collect remaining args as subcommand arguments.
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if workDir != "" {
		if err := os.Chdir(workDir); err != nil {
			return fmt.Errorf("change directory: %w", err)
		}
	}

	switch command {
	case "":
		return runChat(ctx, stdin, stdout, stderr, configPath, modelFlag)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: loco ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, modelFlag, cmdArgs)
	case "sessions":
		return runSessions(stdout, configPath, cmdArgs)
	case "mcp-serve":
		return runMCPServe(ctx, stdin, stdout, stderr, configPath)
	case "version":
		return runVersion(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// printUsage writes the top-level help text to w. It is called when
// loco is invoked with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Loco - LLM Coding Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: loco [flags] [command] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  (none)              Start an interactive chat session")
	fmt.Fprintln(w, "  ask <question>      Ask a single question and exit")
	fmt.Fprintln(w, "  sessions [list]     List saved sessions")
	fmt.Fprintln(w, "  sessions show <id>  Print a saved session transcript")
	fmt.Fprintln(w, "  sessions rm <id>    Delete a saved session")
	fmt.Fprintln(w, "  mcp-serve           Serve built-in tools over MCP on stdio")
	fmt.Fprintln(w, "  version             Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -m, --model name  Model to use (alias or provider/model string)")
	fmt.Fprintln(w, "  -C, --cwd <dir>   Working directory")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./loco.yaml, ~/.config/loco/config.yaml, /etc/loco/config.yaml")
	return nil
}

// runVersion prints build metadata in a stable field order.
func runVersion(w io.Writer) error {
	fmt.Fprintln(w, buildinfo.String())
	info := buildinfo.Info()
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// runMCPServe handles the "loco mcp-serve" subcommand. The built-in
// tools (shaped by the tools section of config, same as the REPL) are
// exposed over MCP on stdin/stdout. Logs go to stderr so they never
// corrupt the JSON-RPC stream.
func runMCPServe(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, logLevel(cfg), "text")
	if cfgPath != "" {
		logger.Info("config loaded", "path", cfgPath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, tools.BuiltinOptions{
		WorkDir:      cwd,
		BashTimeout:  time.Duration(cfg.Tools.BashTimeoutOrDefault()) * time.Second,
		BashDisabled: cfg.Tools.BashDisabled,
	})

	logger.Info("serving MCP on stdio", "tools", len(registry.AllToolNames()))
	return mcp.NewServer(registry, logger).Serve(ctx, stdin, stdout)
}

// runSessions handles the "loco sessions" subcommand: list (default),
// show <id>, and rm <id>.
func runSessions(stdout io.Writer, configPath string, args []string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	store, err := session.Open(sessionDBPath(cfg))
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	action := "list"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "list":
		records, err := store.List(50)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(stdout, "No saved sessions.")
			return nil
		}
		for _, rec := range records {
			fmt.Fprintf(stdout, "%s  %s  %3d msgs  %s\n",
				rec.ID, rec.UpdatedAt.Format("2006-01-02 15:04"), rec.MessageCount, rec.Name)
		}
		return nil

	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: loco sessions show <id>")
		}
		rec, err := store.Load(args[1])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("session not found: %s", args[1])
		}
		fmt.Fprintf(stdout, "Session %s (%s, model %s)\n\n", rec.ID, rec.Name, rec.Model)
		for _, msg := range rec.Messages {
			content := msg.Content
			if content == "" && len(msg.ToolCalls) > 0 {
				names := make([]string, 0, len(msg.ToolCalls))
				for _, tc := range msg.ToolCalls {
					names = append(names, tc.Name)
				}
				content = "(tool calls: " + strings.Join(names, ", ") + ")"
			}
			fmt.Fprintf(stdout, "[%s] %s\n", msg.Role, content)
		}
		return nil

	case "rm", "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: loco sessions rm <id>")
		}
		deleted, err := store.Delete(args[1])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("session not found: %s", args[1])
		}
		fmt.Fprintf(stdout, "Deleted session %s\n", args[1])
		return nil

	default:
		return fmt.Errorf("unknown sessions action: %s (expected list, show, rm)", action)
	}
}

// newLogger creates a structured logger that writes to w at the given
// level and format. Format must be "text" or "json"; any other value
// defaults to text. All log output in loco goes through slog; this
// helper standardizes the handler configuration across subcommands.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// logLevel resolves the configured log level, defaulting to warn so
// chat output stays clean. Unknown level strings also fall back to warn.
func logLevel(cfg *config.Config) slog.Level {
	if cfg.LogLevel == "" {
		return slog.LevelWarn
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

// loadConfig locates and parses the YAML configuration file. If
// explicit is non-empty, that exact path is used and must exist.
// Otherwise [config.FindConfig] searches the default locations, and
// when none exists loco starts from built-in defaults so a fresh
// install works without any setup. Returns the parsed config, the path
// that was loaded ("" for defaults), and any error.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		return config.Default(), "", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// buildLLMClient constructs the provider-routing client from config.
// The openai and anthropic providers are always registered (API keys
// fall back to the conventional environment variables); an ollama
// entry reuses the OpenAI-compatible endpoint shape against a local
// default URL. Extra providers from config are treated as
// OpenAI-compatible. The whole stack is wrapped in retry handling.
func buildLLMClient(cfg *config.Config, logger *slog.Logger) llm.Client {
	multi := llm.NewMultiClient("openai")

	openaiCfg := cfg.Providers["openai"]
	multi.AddProvider("openai", llm.NewOpenAIClient(
		openaiCfg.BaseURL, orEnv(openaiCfg.APIKey, "OPENAI_API_KEY"), logger))

	anthropicCfg := cfg.Providers["anthropic"]
	multi.AddProvider("anthropic", llm.NewAnthropicClient(
		anthropicCfg.BaseURL, orEnv(anthropicCfg.APIKey, "ANTHROPIC_API_KEY"), logger))

	ollamaURL := cfg.Providers["ollama"].BaseURL
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434/v1"
	}
	multi.AddProvider("ollama", llm.NewOpenAIClient(ollamaURL, cfg.Providers["ollama"].APIKey, logger))

	for name, pc := range cfg.Providers {
		switch name {
		case "openai", "anthropic", "ollama":
			continue
		}
		multi.AddProvider(name, llm.NewOpenAIClient(pc.BaseURL, pc.APIKey, logger))
	}

	return llm.NewRetryClient(multi, logger)
}

// orEnv returns value, or the named environment variable when value
// is empty.
func orEnv(value, envKey string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envKey)
}

// sessionDBPath returns the session database location, under DataDir
// when configured and ~/.loco otherwise.
func sessionDBPath(cfg *config.Config) string {
	dir := cfg.DataDir
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".loco")
		} else {
			dir = ".loco"
		}
	}
	return filepath.Join(dir, "sessions.db")
}
