// Package skills loads reusable prompt documents that teach the model
// specific tasks. A skill lives in its own directory as a SKILL.md
// file with YAML frontmatter; its body is injected into the system
// prompt when the skill is active.
package skills

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill is a parsed SKILL.md document.
type Skill struct {
	Name          string
	Description   string
	Content       string // markdown body, frontmatter stripped
	AllowedTools  []string
	Model         string
	UserInvocable bool
	Path          string
}

// PromptAddition returns the block appended to the system prompt while
// the skill is active.
func (s *Skill) PromptAddition() string {
	return fmt.Sprintf("--- SKILL: %s ---\n%s\n--- END SKILL ---", s.Name, s.Content)
}

// Registry holds discovered skills by name.
type Registry struct {
	skills map[string]*Skill
	logger *slog.Logger
}

// Discover loads skills from the user directory and then the project's
// .loco/skills directory. A project skill with the same name replaces
// the user one. Unreadable skill files are logged and skipped.
func Discover(userDir, projectDir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{skills: make(map[string]*Skill), logger: logger}

	if userDir != "" {
		r.loadDir(userDir)
	}
	if projectDir != "" {
		r.loadDir(filepath.Join(projectDir, ".loco", "skills"))
	}
	return r
}

// loadDir loads every <dir>/<name>/SKILL.md found under dir.
func (r *Registry) loadDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name(), "SKILL.md")
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		skill, err := Parse(string(data), e.Name())
		if err != nil {
			r.logger.Warn("failed to load skill", "path", path, "error", err)
			continue
		}
		skill.Path = path
		r.skills[skill.Name] = skill
	}
}

// frontmatter is the YAML header of a SKILL.md file.
type frontmatter struct {
	Name          string     `yaml:"name"`
	Description   string     `yaml:"description"`
	AllowedTools  StringList `yaml:"allowed-tools"`
	Model         string     `yaml:"model"`
	UserInvocable *bool      `yaml:"user-invocable"`
}

// Parse builds a Skill from raw SKILL.md content. fallbackName is used
// when the frontmatter carries no name, conventionally the skill's
// directory name.
func Parse(raw, fallbackName string) (*Skill, error) {
	front, body := SplitFrontmatter(raw)

	var fm frontmatter
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

	invocable := true
	if fm.UserInvocable != nil {
		invocable = *fm.UserInvocable
	}

	return &Skill{
		Name:          name,
		Description:   description,
		Content:       body,
		AllowedTools:  fm.AllowedTools,
		Model:         fm.Model,
		UserInvocable: invocable,
	}, nil
}

// Get returns a skill by name, or nil.
func (r *Registry) Get(name string) *Skill {
	return r.skills[name]
}

// All returns every skill sorted by name.
func (r *Registry) All() []*Skill {
	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Skill, 0, len(names))
	for _, name := range names {
		out = append(out, r.skills[name])
	}
	return out
}

// UserInvocable returns the skills a user may activate by name.
func (r *Registry) UserInvocable() []*Skill {
	var out []*Skill
	for _, s := range r.All() {
		if s.UserInvocable {
			out = append(out, s)
		}
	}
	return out
}

// Descriptions returns a system-prompt section listing every skill,
// or "" when none are loaded.
func (r *Registry) Descriptions() string {
	all := r.All()
	if len(all) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Available skills (use when relevant):")
	for _, s := range all {
		sb.WriteString(fmt.Sprintf("\n- %s: %s", s.Name, s.Description))
	}
	return sb.String()
}

// SplitFrontmatter splits a markdown document into its YAML
// frontmatter (without the --- delimiters) and body. A document
// without a frontmatter block comes back as ("", raw).
func SplitFrontmatter(raw string) (front, body string) {
	if !strings.HasPrefix(raw, "---") {
		return "", raw
	}

	rest := strings.TrimPrefix(raw, "---")
	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, "\n") && !strings.HasPrefix(rest, "\r\n") {
		return "", raw
	}
	rest = strings.TrimLeft(rest, "\r\n")

	closeIdx := strings.Index(rest, "\n---")
	if closeIdx < 0 {
		return "", raw
	}

	front = rest[:closeIdx]
	body = rest[closeIdx+4:]
	body = strings.TrimLeft(body, "\r\n")
	return front, body
}

// firstParagraphLine returns the first non-empty, non-heading line.
func firstParagraphLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return ""
}

// StringList unmarshals from either a YAML sequence or a single
// comma-separated scalar, so "read, grep" and [read, grep] both work.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*l = out
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := value.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("tool list must be a string or sequence")
	}
}
