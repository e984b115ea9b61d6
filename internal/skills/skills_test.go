package skills

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSkill(t *testing.T, dir, name, content string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseFullFrontmatter(t *testing.T) {
	raw := `---
name: code-review
description: Reviews code for issues
allowed-tools: read, grep
model: gpt4
user-invocable: false
---
# Code Review

Look for bugs and style problems.`

	skill, err := Parse(raw, "fallback")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skill.Name != "code-review" {
		t.Errorf("name = %q", skill.Name)
	}
	if skill.Description != "Reviews code for issues" {
		t.Errorf("description = %q", skill.Description)
	}
	if len(skill.AllowedTools) != 2 || skill.AllowedTools[0] != "read" || skill.AllowedTools[1] != "grep" {
		t.Errorf("allowed tools = %v", skill.AllowedTools)
	}
	if skill.Model != "gpt4" {
		t.Errorf("model = %q", skill.Model)
	}
	if skill.UserInvocable {
		t.Error("user-invocable false not honored")
	}
	if strings.Contains(skill.Content, "---") || !strings.HasPrefix(skill.Content, "# Code Review") {
		t.Errorf("content = %q", skill.Content)
	}
}

func TestParseNoFrontmatter(t *testing.T) {
	raw := "# Testing\n\nHelps write unit tests.\n"

	skill, err := Parse(raw, "testing")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skill.Name != "testing" {
		t.Errorf("name = %q, want fallback", skill.Name)
	}
	// Description falls back to the first body line that isn't a heading.
	if skill.Description != "Helps write unit tests." {
		t.Errorf("description = %q", skill.Description)
	}
	if !skill.UserInvocable {
		t.Error("user-invocable should default true")
	}
}

func TestParseToolListSequence(t *testing.T) {
	raw := "---\nname: x\nallowed-tools: [read, write]\n---\nbody"

	skill, err := Parse(raw, "x")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(skill.AllowedTools) != 2 || skill.AllowedTools[1] != "write" {
		t.Errorf("allowed tools = %v", skill.AllowedTools)
	}
}

func TestPromptAddition(t *testing.T) {
	skill := &Skill{Name: "review", Content: "Check everything."}
	got := skill.PromptAddition()
	want := "--- SKILL: review ---\nCheck everything.\n--- END SKILL ---"
	if got != want {
		t.Errorf("addition = %q, want %q", got, want)
	}
}

func TestDiscoverProjectOverridesUser(t *testing.T) {
	userDir := t.TempDir()
	projectDir := t.TempDir()

	writeSkill(t, userDir, "review", "---\nname: review\ndescription: user version\n---\nuser body")
	writeSkill(t, userDir, "tests", "---\nname: tests\ndescription: writes tests\n---\ntest body")
	writeSkill(t, filepath.Join(projectDir, ".loco", "skills"), "review",
		"---\nname: review\ndescription: project version\n---\nproject body")

	reg := Discover(userDir, projectDir, testLogger())

	if got := len(reg.All()); got != 2 {
		t.Fatalf("skills = %d, want 2", got)
	}
	review := reg.Get("review")
	if review == nil || review.Description != "project version" {
		t.Errorf("review = %+v, want project version", review)
	}
	if reg.Get("tests") == nil {
		t.Error("user-only skill missing")
	}
}

func TestDiscoverMissingDirs(t *testing.T) {
	reg := Discover(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "also-nope"), testLogger())
	if got := len(reg.All()); got != 0 {
		t.Errorf("skills = %d, want 0", got)
	}
	if reg.Descriptions() != "" {
		t.Errorf("descriptions = %q, want empty", reg.Descriptions())
	}
}

func TestDescriptions(t *testing.T) {
	userDir := t.TempDir()
	writeSkill(t, userDir, "b-skill", "---\nname: b-skill\ndescription: second\n---\nbody")
	writeSkill(t, userDir, "a-skill", "---\nname: a-skill\ndescription: first\n---\nbody")

	reg := Discover(userDir, "", testLogger())

	got := reg.Descriptions()
	want := "Available skills (use when relevant):\n- a-skill: first\n- b-skill: second"
	if got != want {
		t.Errorf("descriptions = %q, want %q", got, want)
	}
}

func TestUserInvocableFilter(t *testing.T) {
	userDir := t.TempDir()
	writeSkill(t, userDir, "manual", "---\nname: manual\n---\nbody")
	writeSkill(t, userDir, "auto", "---\nname: auto\nuser-invocable: false\n---\nbody")

	reg := Discover(userDir, "", testLogger())

	invocable := reg.UserInvocable()
	if len(invocable) != 1 || invocable[0].Name != "manual" {
		t.Errorf("invocable = %v", invocable)
	}
}
