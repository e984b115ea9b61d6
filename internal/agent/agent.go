// Package agent loads sub-agent definitions and exposes them to the
// model as a tool. A sub-agent runs its task on an isolated
// conversation with a restricted tool registry and hands back only its
// final summary.
package agent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/locodev/loco/internal/skills"
)

// Definition is a sub-agent loaded from a markdown file.
type Definition struct {
	Name         string
	Description  string
	SystemPrompt string

	// AllowedTools, when set, is the complete tool list for the agent.
	// Otherwise DisallowedTools is subtracted from the parent's tools.
	AllowedTools    []string
	DisallowedTools []string

	// Model overrides the conversation's model when set. Aliases are
	// resolved against the config.
	Model string

	Path string
}

// EffectiveTools resolves the agent's tool list against the tools the
// parent actually has.
func (d *Definition) EffectiveTools(all []string) []string {
	if d.AllowedTools != nil {
		var out []string
		for _, name := range d.AllowedTools {
			if contains(all, name) {
				out = append(out, name)
			}
		}
		return out
	}
	if d.DisallowedTools != nil {
		var out []string
		for _, name := range all {
			if !contains(d.DisallowedTools, name) {
				out = append(out, name)
			}
		}
		return out
	}
	return all
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Registry holds discovered agent definitions by name.
type Registry struct {
	agents map[string]*Definition
	logger *slog.Logger
}

// Discover loads agent definitions from, in precedence order, the user
// directory, the project's .claude/agents directory, and the project's
// .loco/agents directory. Later locations override earlier ones.
func Discover(userDir, projectDir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{agents: make(map[string]*Definition), logger: logger}

	if userDir != "" {
		r.loadDir(userDir)
	}
	if projectDir != "" {
		r.loadDir(filepath.Join(projectDir, ".claude", "agents"))
		r.loadDir(filepath.Join(projectDir, ".loco", "agents"))
	}
	return r
}

func (r *Registry) loadDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		def, err := Parse(string(data), strings.TrimSuffix(e.Name(), ".md"))
		if err != nil {
			r.logger.Warn("failed to load agent", "path", path, "error", err)
			continue
		}
		def.Path = path
		r.agents[def.Name] = def
	}
}

// agentFrontmatter is the YAML header of an agent markdown file.
// "tools" is accepted as an alias for "allowed-tools".
type agentFrontmatter struct {
	Name            string            `yaml:"name"`
	Description     string            `yaml:"description"`
	Tools           skills.StringList `yaml:"tools"`
	AllowedTools    skills.StringList `yaml:"allowed-tools"`
	DisallowedTools skills.StringList `yaml:"disallowed-tools"`
	Model           string            `yaml:"model"`
}

// Parse builds a Definition from raw markdown. fallbackName is used
// when the frontmatter carries no name, conventionally the file stem.
func Parse(raw, fallbackName string) (*Definition, error) {
	front, body := skills.SplitFrontmatter(raw)

	var fm agentFrontmatter
	if front != "" {
		if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
			return nil, fmt.Errorf("parse frontmatter: %w", err)
		}
	}

	name := fm.Name
	if name == "" {
		name = fallbackName
	}

	body = strings.TrimSpace(body)
	description := fm.Description
	if description == "" {
		description = firstParagraphLine(body)
	}

	allowed := []string(fm.AllowedTools)
	if allowed == nil {
		allowed = fm.Tools
	}

	return &Definition{
		Name:            name,
		Description:     description,
		SystemPrompt:    body,
		AllowedTools:    allowed,
		DisallowedTools: fm.DisallowedTools,
		Model:           fm.Model,
	}, nil
}

// Get returns an agent definition by name, or nil.
func (r *Registry) Get(name string) *Definition {
	return r.agents[name]
}

// All returns every definition sorted by name.
func (r *Registry) All() []*Definition {
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Definition, 0, len(names))
	for _, name := range names {
		out = append(out, r.agents[name])
	}
	return out
}

// Names returns the sorted agent names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func firstParagraphLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return ""
}
