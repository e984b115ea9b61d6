package tools

import (
	"context"
	"strings"
	"testing"
)

func TestGrepBasicMatch(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	writeTestFile(t, dir, "util.go", "package main\n\nfunc helper() {}\n")
	f := NewFinder(dir)

	got, err := f.handleGrep(context.Background(), map[string]any{"pattern": "func main"})
	if err != nil {
		t.Fatalf("handleGrep error: %v", err)
	}
	if !strings.HasPrefix(got, "Found 1 match(es) in 1 file(s):") {
		t.Errorf("handleGrep header wrong: %q", got)
	}
	if !strings.Contains(got, "main.go:3: func main() {}") {
		t.Errorf("missing match line: %q", got)
	}
}

func TestGrepCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "notes.txt", "TODO: fix this\ntodo: and this\n")
	f := NewFinder(dir)

	got, err := f.handleGrep(context.Background(), map[string]any{
		"pattern":          "todo",
		"case_insensitive": true,
	})
	if err != nil {
		t.Fatalf("handleGrep error: %v", err)
	}
	if !strings.HasPrefix(got, "Found 2 match(es)") {
		t.Errorf("case insensitive search missed matches: %q", got)
	}
}

func TestGrepGlobFilter(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.go", "needle\n")
	writeTestFile(t, dir, "b.txt", "needle\n")
	f := NewFinder(dir)

	got, err := f.handleGrep(context.Background(), map[string]any{
		"pattern": "needle",
		"glob":    "**/*.go",
	})
	if err != nil {
		t.Fatalf("handleGrep error: %v", err)
	}
	if !strings.Contains(got, "a.go:1: needle") {
		t.Errorf("missing match in filtered file: %q", got)
	}
	if strings.Contains(got, "b.txt") {
		t.Errorf("glob filter leaked file: %q", got)
	}
}

func TestGrepSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "only.txt", "alpha\nbeta\n")
	f := NewFinder(dir)

	got, err := f.handleGrep(context.Background(), map[string]any{
		"pattern": "beta",
		"path":    path,
	})
	if err != nil {
		t.Fatalf("handleGrep error: %v", err)
	}
	if !strings.Contains(got, "only.txt:2: beta") {
		t.Errorf("single file search failed: %q", got)
	}
}

func TestGrepContextLines(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "ctx.txt", "one\ntwo\nthree\nfour\nfive\n")
	f := NewFinder(dir)

	got, err := f.handleGrep(context.Background(), map[string]any{
		"pattern":       "three",
		"context_lines": float64(1),
	})
	if err != nil {
		t.Fatalf("handleGrep error: %v", err)
	}
	if !strings.Contains(got, "ctx.txt:3:") {
		t.Errorf("missing context header: %q", got)
	}
	if !strings.Contains(got, "    2: two") || !strings.Contains(got, "  > 3: three") || !strings.Contains(got, "    4: four") {
		t.Errorf("context lines wrong: %q", got)
	}
}

func TestGrepLimit(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "many.txt", strings.Repeat("hit\n", 10))
	f := NewFinder(dir)

	got, err := f.handleGrep(context.Background(), map[string]any{
		"pattern": "hit",
		"limit":   float64(3),
	})
	if err != nil {
		t.Fatalf("handleGrep error: %v", err)
	}
	if !strings.HasPrefix(got, "Found 3 match(es)") {
		t.Errorf("limit not applied: %q", got)
	}
	if !strings.Contains(got, "[Limited to 3 matches]") {
		t.Errorf("missing truncation note: %q", got)
	}
}

func TestGrepSkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "bin.dat", "needle\x00binary")
	writeTestFile(t, dir, "text.txt", "needle\n")
	f := NewFinder(dir)

	got, err := f.handleGrep(context.Background(), map[string]any{"pattern": "needle"})
	if err != nil {
		t.Fatalf("handleGrep error: %v", err)
	}
	if strings.Contains(got, "bin.dat") {
		t.Errorf("binary file was searched: %q", got)
	}
	if !strings.Contains(got, "text.txt:1: needle") {
		t.Errorf("text file match missing: %q", got)
	}
}

func TestGrepNoMatches(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "empty.txt", "nothing here\n")
	f := NewFinder(dir)

	got, err := f.handleGrep(context.Background(), map[string]any{"pattern": "absent"})
	if err != nil {
		t.Fatalf("handleGrep error: %v", err)
	}
	if got != "No matches found for pattern: absent" {
		t.Errorf("handleGrep = %q", got)
	}
}

func TestGrepInvalidRegex(t *testing.T) {
	f := NewFinder(t.TempDir())
	got, err := f.handleGrep(context.Background(), map[string]any{"pattern": "(unclosed"})
	if err != nil {
		t.Fatalf("handleGrep error: %v", err)
	}
	if !strings.HasPrefix(got, "Error: Invalid regex pattern:") {
		t.Errorf("handleGrep = %q", got)
	}
}
