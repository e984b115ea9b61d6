package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const globDefaultLimit = 100

// Finder provides the glob and grep tools. Relative search paths are
// resolved against baseDir.
type Finder struct {
	baseDir string
}

// NewFinder creates a finder rooted at baseDir. An empty baseDir falls
// back to the current working directory.
func NewFinder(baseDir string) *Finder {
	if baseDir == "" {
		baseDir, _ = os.Getwd()
	}
	return &Finder{baseDir: baseDir}
}

// Register adds the glob and grep tools to the registry.
func (f *Finder) Register(r *Registry) {
	r.Register(&Tool{
		Name: "glob",
		Description: "Find files matching a glob pattern. " +
			"Supports patterns like '**/*.py' (all Python files), " +
			"'src/**/*.ts' (TypeScript in src), '*.md' (markdown in current dir). " +
			"Returns file paths sorted by modification time (newest first).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Glob pattern to match files (e.g., '**/*.py', 'src/**/*.ts').",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Directory to search in. Defaults to current working directory.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of files to return. Default is 100.",
				},
			},
			"required": []string{"pattern"},
		},
		Handler: f.handleGlob,
	})

	r.Register(&Tool{
		Name: "grep",
		Description: "Search for a pattern in file contents. " +
			"Supports regex patterns. " +
			"Can search in a specific file, directory, or filter by file glob. " +
			"Returns matching lines with file paths and line numbers.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Regex pattern to search for in file contents.",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "File or directory to search in. Defaults to current directory.",
				},
				"glob": map[string]any{
					"type":        "string",
					"description": "Glob pattern to filter files (e.g., '**/*.py'). Only used if path is a directory.",
				},
				"case_insensitive": map[string]any{
					"type":        "boolean",
					"description": "Whether to ignore case. Default is false.",
				},
				"context_lines": map[string]any{
					"type":        "integer",
					"description": "Number of lines to show before and after each match. Default is 0.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of matches to return. Default is 50.",
				},
			},
			"required": []string{"pattern"},
		},
		Handler: f.handleGrep,
	})
}

func (f *Finder) resolveDir(p string) string {
	if p == "" {
		return f.baseDir
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(f.baseDir, p)
	}
	return filepath.Clean(p)
}

func (f *Finder) handleGlob(ctx context.Context, args map[string]any) (string, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}
	path, _ := args["path"].(string)
	searchPath := f.resolveDir(path)

	limit := globDefaultLimit
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	info, err := os.Stat(searchPath)
	if err != nil {
		return fmt.Sprintf("Error: Directory does not exist: %s", searchPath), nil
	}
	if !info.IsDir() {
		return fmt.Sprintf("Error: Not a directory: %s", searchPath), nil
	}

	re, err := globRegexp(pattern)
	if err != nil {
		return fmt.Sprintf("Error searching for files: %v", err), nil
	}

	files, err := matchFiles(searchPath, re)
	if err != nil {
		return fmt.Sprintf("Error searching for files: %v", err), nil
	}

	// Newest first; ties keep directory-walk order.
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	truncated := false
	if len(files) > limit {
		files = files[:limit]
		truncated = true
	}

	if len(files) == 0 {
		return fmt.Sprintf("No files found matching pattern: %s", pattern), nil
	}

	lines := []string{fmt.Sprintf("Found %d file(s) matching '%s':", len(files), pattern)}
	for _, m := range files {
		lines = append(lines, "  "+m.relPath)
	}
	if truncated {
		lines = append(lines, fmt.Sprintf("\n[Limited to %d results]", limit))
	}
	return strings.Join(lines, "\n"), nil
}

type matchedFile struct {
	relPath string
	absPath string
	modTime time.Time
}

// matchFiles walks root and returns regular files whose slash-separated
// relative path matches re.
func matchFiles(root string, re *regexp.Regexp) ([]matchedFile, error) {
	var files []matchedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !re.MatchString(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, matchedFile{relPath: rel, absPath: path, modTime: info.ModTime()})
		return nil
	})
	return files, err
}

// globRegexp translates a glob pattern into an anchored regexp over
// slash-separated relative paths. '**' crosses directory boundaries,
// '*' and '?' stop at them, and '[...]' character classes pass through.
func globRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	segments := strings.Split(pattern, "/")
	for i, seg := range segments {
		last := i == len(segments)-1
		if seg == "**" {
			if last {
				b.WriteString(".*")
			} else {
				b.WriteString("(?:[^/]+/)*")
			}
			continue
		}
		for j := 0; j < len(seg); j++ {
			switch c := seg[j]; c {
			case '*':
				b.WriteString("[^/]*")
			case '?':
				b.WriteString("[^/]")
			case '[':
				end := strings.IndexByte(seg[j:], ']')
				if end < 0 {
					return nil, fmt.Errorf("unterminated character class in pattern %q", pattern)
				}
				b.WriteString(seg[j : j+end+1])
				j += end
			default:
				b.WriteString(regexp.QuoteMeta(string(c)))
			}
		}
		if !last {
			b.WriteString("/")
		}
	}

	b.WriteString("$")
	return regexp.Compile(b.String())
}
