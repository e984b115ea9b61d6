package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGlobRegexp(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.md", "README.md", true},
		{"*.md", "docs/README.md", false},
		{"**/*.go", "main.go", true},
		{"**/*.go", "internal/a/b.go", true},
		{"**/*.go", "internal/a/b.txt", false},
		{"src/**/*.ts", "src/app.ts", true},
		{"src/**/*.ts", "src/deep/nested/app.ts", true},
		{"src/**/*.ts", "lib/app.ts", false},
		{"file?.txt", "file1.txt", true},
		{"file?.txt", "file12.txt", false},
		{"**/*", "anything/at/all.bin", true},
	}

	for _, tt := range tests {
		re, err := globRegexp(tt.pattern)
		if err != nil {
			t.Fatalf("globRegexp(%q) error: %v", tt.pattern, err)
		}
		if got := re.MatchString(tt.path); got != tt.want {
			t.Errorf("globRegexp(%q).Match(%q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}

func TestGlobFindsFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.md", "a")
	writeTestFile(t, dir, "b.md", "b")
	writeTestFile(t, dir, "c.txt", "c")
	f := NewFinder(dir)

	got, err := f.handleGlob(context.Background(), map[string]any{"pattern": "*.md"})
	if err != nil {
		t.Fatalf("handleGlob error: %v", err)
	}
	if !strings.HasPrefix(got, "Found 2 file(s) matching '*.md':") {
		t.Errorf("handleGlob header wrong: %q", got)
	}
	if !strings.Contains(got, "  a.md") || !strings.Contains(got, "  b.md") {
		t.Errorf("missing expected files: %q", got)
	}
	if strings.Contains(got, "c.txt") {
		t.Errorf("non-matching file listed: %q", got)
	}
}

func TestGlobRecursive(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub", "deep"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, dir, "top.go", "x")
	writeTestFile(t, filepath.Join(dir, "sub", "deep"), "nested.go", "x")
	f := NewFinder(dir)

	got, err := f.handleGlob(context.Background(), map[string]any{"pattern": "**/*.go"})
	if err != nil {
		t.Fatalf("handleGlob error: %v", err)
	}
	if !strings.Contains(got, "top.go") || !strings.Contains(got, "sub/deep/nested.go") {
		t.Errorf("recursive glob missed files: %q", got)
	}
}

func TestGlobNewestFirst(t *testing.T) {
	dir := t.TempDir()
	older := writeTestFile(t, dir, "older.md", "x")
	newer := writeTestFile(t, dir, "newer.md", "x")

	base := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, base, base); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	f := NewFinder(dir)
	got, err := f.handleGlob(context.Background(), map[string]any{"pattern": "*.md"})
	if err != nil {
		t.Fatalf("handleGlob error: %v", err)
	}

	newerIdx := strings.Index(got, "newer.md")
	olderIdx := strings.Index(got, "older.md")
	if newerIdx < 0 || olderIdx < 0 || newerIdx > olderIdx {
		t.Errorf("expected newer.md before older.md: %q", got)
	}
}

func TestGlobLimit(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1.txt", "2.txt", "3.txt"} {
		writeTestFile(t, dir, name, "x")
	}
	f := NewFinder(dir)

	got, err := f.handleGlob(context.Background(), map[string]any{
		"pattern": "*.txt",
		"limit":   float64(2),
	})
	if err != nil {
		t.Fatalf("handleGlob error: %v", err)
	}
	if !strings.HasPrefix(got, "Found 2 file(s)") {
		t.Errorf("limit not applied: %q", got)
	}
	if !strings.Contains(got, "[Limited to 2 results]") {
		t.Errorf("missing truncation note: %q", got)
	}
}

func TestGlobNoMatches(t *testing.T) {
	f := NewFinder(t.TempDir())
	got, err := f.handleGlob(context.Background(), map[string]any{"pattern": "*.zig"})
	if err != nil {
		t.Fatalf("handleGlob error: %v", err)
	}
	if got != "No files found matching pattern: *.zig" {
		t.Errorf("handleGlob = %q", got)
	}
}

func TestGlobMissingDirectory(t *testing.T) {
	f := NewFinder(t.TempDir())
	got, err := f.handleGlob(context.Background(), map[string]any{
		"pattern": "*",
		"path":    "does-not-exist",
	})
	if err != nil {
		t.Fatalf("handleGlob error: %v", err)
	}
	if !strings.HasPrefix(got, "Error: Directory does not exist:") {
		t.Errorf("handleGlob = %q", got)
	}
}
