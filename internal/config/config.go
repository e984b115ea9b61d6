// Package config handles loco configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./loco.yaml, ~/.config/loco/config.yaml, /etc/loco/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"loco.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "loco", "config.yaml"))
	}

	paths = append(paths, "/etc/loco/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all loco configuration.
type Config struct {
	DefaultModel string                     `yaml:"default_model"`
	Models       map[string]string          `yaml:"models"`
	Providers    map[string]ProviderConfig  `yaml:"providers"`
	Tools        ToolsConfig                `yaml:"tools"`
	Hooks        map[string][]HookMatcher   `yaml:"hooks"`
	MCPServers   map[string]MCPServerConfig `yaml:"mcp_servers"`
	SystemPrompt string                     `yaml:"system_prompt"`
	DataDir      string                     `yaml:"data_dir"`
	LogLevel     string                     `yaml:"log_level"`
}

// ProviderConfig defines credentials and endpoint for one LLM provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ToolsConfig defines built-in tool settings.
type ToolsConfig struct {
	// BashDisabled turns off shell command execution entirely.
	BashDisabled bool `yaml:"bash_disabled"`
	// BashTimeoutSec is the default command timeout in seconds (default 120).
	BashTimeoutSec int `yaml:"bash_timeout_sec"`
}

// BashTimeoutOrDefault returns the configured bash timeout with the
// 120 second fallback applied.
func (t ToolsConfig) BashTimeoutOrDefault() int {
	if t.BashTimeoutSec <= 0 {
		return 120
	}
	return t.BashTimeoutSec
}

// HookMatcher pairs a tool-name pattern with the hook commands to run
// when a tool matching that pattern fires.
type HookMatcher struct {
	// Matcher is an exact tool name, "a|b" alternation, or "*"/empty for all.
	Matcher string     `yaml:"matcher"`
	Hooks   []HookSpec `yaml:"hooks"`
}

// HookSpec is one shell command invoked by the hook pipeline.
type HookSpec struct {
	Command string `yaml:"command"`
	// TimeoutSec bounds the hook subprocess (default 60).
	TimeoutSec int `yaml:"timeout_sec"`
}

// MCP server transport types.
const (
	MCPServerTypeCommand = "command"
	MCPServerTypeHTTP    = "http"
)

// MCPServerConfig describes one external MCP server. The Type field
// discriminates between a spawned subprocess ("command", the default)
// and a remote HTTP endpoint ("http").
type MCPServerConfig struct {
	Type string `yaml:"type"`

	// Command-based fields (type "command").
	Command []string          `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	Cwd     string            `yaml:"cwd"`

	// HTTP-based fields (type "http").
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// Validate checks that the populated fields match the declared type.
// It runs before any connection attempt so a bad entry fails fast.
func (c MCPServerConfig) Validate() error {
	switch c.Type {
	case "", MCPServerTypeCommand:
		if len(c.Command) == 0 {
			return fmt.Errorf("command-based MCP server must have 'command' field")
		}
	case MCPServerTypeHTTP:
		if c.URL == "" {
			return fmt.Errorf("HTTP-based MCP server must have 'url' field")
		}
	default:
		return fmt.Errorf("unknown MCP server type %q (valid: command, http)", c.Type)
	}
	return nil
}

// Argv returns the full command line for a command-based server,
// the command vector with any extra args appended.
func (c MCPServerConfig) Argv() []string {
	argv := make([]string, 0, len(c.Command)+len(c.Args))
	argv = append(argv, c.Command...)
	argv = append(argv, c.Args...)
	return argv
}

// EnvList returns the configured environment as sorted "KEY=VALUE"
// entries suitable for exec.Cmd.Env.
func (c MCPServerConfig) EnvList() []string {
	if len(c.Env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+c.Env[k])
	}
	return env
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if err := cfg.ValidateMCPServers(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateMCPServers checks every configured MCP server entry.
func (c *Config) ValidateMCPServers() error {
	for name, sc := range c.MCPServers {
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("mcp server %q: %w", name, err)
		}
	}
	return nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		DefaultModel: "openai/gpt-4o",
		Models: map[string]string{
			"gpt4":      "openai/gpt-4o",
			"gpt4-mini": "openai/gpt-4o-mini",
			"sonnet":    "anthropic/claude-sonnet-4-20250514",
			"local":     "ollama/llama3",
		},
	}
}

// ResolveModel maps a model alias to its full provider/model string.
// Unknown aliases pass through unchanged.
func (c *Config) ResolveModel(model string) string {
	if full, ok := c.Models[model]; ok {
		return full
	}
	return model
}

// ProviderFor extracts the provider name from a resolved model string
// ("openai/gpt-4o" -> "openai") and returns its configuration. A model
// string with no provider prefix defaults to openai.
func (c *Config) ProviderFor(model string) (string, ProviderConfig) {
	provider := "openai"
	if name, _, ok := strings.Cut(model, "/"); ok {
		provider = name
	}
	return provider, c.Providers[provider]
}

// ModelName strips the provider prefix from a resolved model string.
func ModelName(model string) string {
	if _, name, ok := strings.Cut(model, "/"); ok {
		return name
	}
	return model
}
