package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const grepDefaultLimit = 50

// binaryExtensions lists file suffixes skipped during content search.
var binaryExtensions = map[string]bool{
	".pyc": true, ".pyo": true, ".so": true, ".dll": true, ".exe": true, ".bin": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true, ".pdf": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true, ".rar": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true,
	".ttf": true, ".woff": true, ".woff2": true, ".eot": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
}

func (f *Finder) handleGrep(ctx context.Context, args map[string]any) (string, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}
	path, _ := args["path"].(string)
	globFilter, _ := args["glob"].(string)
	caseInsensitive, _ := args["case_insensitive"].(bool)

	contextLines := 0
	if c, ok := args["context_lines"].(float64); ok && c > 0 {
		contextLines = int(c)
	}
	limit := grepDefaultLimit
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	searchPath := f.resolveDir(path)
	info, err := os.Stat(searchPath)
	if err != nil {
		return fmt.Sprintf("Error: Path does not exist: %s", searchPath), nil
	}

	if caseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Sprintf("Error: Invalid regex pattern: %v", err), nil
	}

	var filePaths []string
	if !info.IsDir() {
		filePaths = []string{searchPath}
	} else {
		globPattern := globFilter
		if globPattern == "" {
			globPattern = "**/*"
		}
		globRE, err := globRegexp(globPattern)
		if err != nil {
			return fmt.Sprintf("Error: Invalid glob pattern: %v", err), nil
		}
		matches, err := matchFiles(searchPath, globRE)
		if err != nil {
			return fmt.Sprintf("Error searching files: %v", err), nil
		}
		for _, m := range matches {
			if !isBinaryFile(m.absPath) {
				filePaths = append(filePaths, m.absPath)
			}
		}
	}

	var matches []string
	matchCount := 0
	filesWithMatches := 0

	for _, fp := range filePaths {
		if matchCount >= limit {
			break
		}
		fileMatches := f.searchFile(fp, re, contextLines, limit-matchCount)
		if len(fileMatches) > 0 {
			filesWithMatches++
			matches = append(matches, fileMatches...)
			matchCount += len(fileMatches)
		}
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No matches found for pattern: %s", pattern), nil
	}

	result := fmt.Sprintf("Found %d match(es) in %d file(s):\n", matchCount, filesWithMatches) +
		strings.Join(matches, "\n")
	if matchCount >= limit {
		result += fmt.Sprintf("\n\n[Limited to %d matches]", limit)
	}
	return result, nil
}

// searchFile returns formatted matches from a single file, at most
// remaining entries.
func (f *Finder) searchFile(path string, re *regexp.Regexp, contextLines, remaining int) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	lines := splitLines(string(data))

	displayPath := path
	if rel, err := filepath.Rel(f.baseDir, path); err == nil && !strings.HasPrefix(rel, "..") {
		displayPath = rel
	}

	var matches []string
	for i, line := range lines {
		if len(matches) >= remaining {
			break
		}
		if !re.MatchString(line) {
			continue
		}
		lineNum := i + 1
		if contextLines > 0 {
			start := i - contextLines
			if start < 0 {
				start = 0
			}
			end := i + contextLines + 1
			if end > len(lines) {
				end = len(lines)
			}
			parts := []string{fmt.Sprintf("\n%s:%d:", displayPath, lineNum)}
			for j := start; j < end; j++ {
				prefix := " "
				if j == i {
					prefix = ">"
				}
				parts = append(parts, fmt.Sprintf("  %s %d: %s", prefix, j+1, lines[j]))
			}
			matches = append(matches, strings.Join(parts, "\n"))
		} else {
			matches = append(matches, fmt.Sprintf("%s:%d: %s", displayPath, lineNum, line))
		}
	}
	return matches
}

// isBinaryFile reports whether a file should be skipped during content
// search, by extension or by a null byte in the first kilobyte.
func isBinaryFile(path string) bool {
	if binaryExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	fh, err := os.Open(path)
	if err != nil {
		return true
	}
	defer fh.Close()

	buf := make([]byte, 1024)
	n, err := fh.Read(buf)
	if err != nil && n == 0 {
		return true
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}
