package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	readDefaultLimit = 2000
	readMaxLineChars = 2000
)

// FileTools provides the read, write, and edit tools. Relative paths are
// resolved against baseDir.
type FileTools struct {
	baseDir string
}

// NewFileTools creates file tools rooted at baseDir. An empty baseDir
// falls back to the current working directory.
func NewFileTools(baseDir string) *FileTools {
	if baseDir == "" {
		baseDir, _ = os.Getwd()
	}
	return &FileTools{baseDir: baseDir}
}

// resolvePath expands a leading ~ and makes relative paths absolute
// against the base directory.
func (ft *FileTools) resolvePath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(ft.baseDir, p)
	}
	return filepath.Clean(p)
}

// Register adds the file tools to the registry.
func (ft *FileTools) Register(r *Registry) {
	r.Register(&Tool{
		Name: "read",
		Description: "Read the contents of a file. Returns the file contents with line numbers. " +
			"Use this to examine existing files before modifying them.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "The absolute or relative path to the file to read.",
				},
				"offset": map[string]any{
					"type":        "integer",
					"description": "Line number to start reading from (1-indexed). Optional.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of lines to read. Optional, defaults to 2000.",
				},
			},
			"required": []string{"file_path"},
		},
		Handler: ft.handleRead,
	})

	r.Register(&Tool{
		Name: "write",
		Description: "Write content to a file. Creates the file if it doesn't exist, " +
			"or overwrites if it does. Creates parent directories as needed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "The absolute or relative path to the file to write.",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The content to write to the file.",
				},
			},
			"required": []string{"file_path", "content"},
		},
		Handler: ft.handleWrite,
	})

	r.Register(&Tool{
		Name: "edit",
		Description: "Edit a file by replacing a specific string with a new string. " +
			"The old_string must match exactly (including whitespace and indentation). " +
			"Use the read tool first to see the exact content to replace.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "The absolute or relative path to the file to edit.",
				},
				"old_string": map[string]any{
					"type":        "string",
					"description": "The exact string to find and replace. Must match exactly.",
				},
				"new_string": map[string]any{
					"type":        "string",
					"description": "The string to replace old_string with.",
				},
				"replace_all": map[string]any{
					"type":        "boolean",
					"description": "If true, replace all occurrences. Default is false (replace first only).",
				},
			},
			"required": []string{"file_path", "old_string", "new_string"},
		},
		Handler: ft.handleEdit,
	})
}

func (ft *FileTools) handleRead(ctx context.Context, args map[string]any) (string, error) {
	filePath, _ := args["file_path"].(string)
	if filePath == "" {
		return "", fmt.Errorf("file_path is required")
	}
	path := ft.resolvePath(filePath)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("Error: File not found: %s", path), nil
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: Not a file: %s", path), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err), nil
	}

	startLine := 0
	if offset, ok := args["offset"].(float64); ok && offset > 0 {
		startLine = int(offset) - 1
	}
	maxLines := readDefaultLimit
	if limit, ok := args["limit"].(float64); ok && limit > 0 {
		maxLines = int(limit)
	}

	lines := splitLines(string(data))
	totalLines := len(lines)
	if startLine > totalLines {
		startLine = totalLines
	}
	endLine := startLine + maxLines
	if endLine > totalLines {
		endLine = totalLines
	}

	var b strings.Builder
	for i := startLine; i < endLine; i++ {
		line := lines[i]
		if len(line) > readMaxLineChars {
			line = line[:readMaxLineChars] + "...[truncated]"
		}
		if i > startLine {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d\t%s", i+1, line)
	}

	result := b.String()
	if startLine > 0 || endLine < totalLines {
		result = fmt.Sprintf("[Showing lines %d-%d of %d]\n\n%s", startLine+1, endLine, totalLines, result)
	}
	return result, nil
}

func (ft *FileTools) handleWrite(ctx context.Context, args map[string]any) (string, error) {
	filePath, _ := args["file_path"].(string)
	if filePath == "" {
		return "", fmt.Errorf("file_path is required")
	}
	content, ok := args["content"].(string)
	if !ok {
		return "", fmt.Errorf("content is required")
	}
	path := ft.resolvePath(filePath)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Sprintf("Error creating directory: %v", err), nil
	}

	_, statErr := os.Stat(path)
	existed := statErr == nil

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err), nil
	}

	lineCount := strings.Count(content, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		lineCount++
	}

	action := "Created"
	if existed {
		action = "Updated"
	}
	return fmt.Sprintf("%s %s (%d lines)", action, path, lineCount), nil
}

func (ft *FileTools) handleEdit(ctx context.Context, args map[string]any) (string, error) {
	filePath, _ := args["file_path"].(string)
	if filePath == "" {
		return "", fmt.Errorf("file_path is required")
	}
	oldString, ok := args["old_string"].(string)
	if !ok || oldString == "" {
		return "", fmt.Errorf("old_string is required")
	}
	newString, ok := args["new_string"].(string)
	if !ok {
		return "", fmt.Errorf("new_string is required")
	}
	replaceAll, _ := args["replace_all"].(bool)
	path := ft.resolvePath(filePath)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("Error: File not found: %s", path), nil
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: Not a file: %s", path), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err), nil
	}
	content := string(data)

	if !strings.Contains(content, oldString) {
		hint := editPartialMatchHint(content, oldString)
		return fmt.Sprintf("Error: old_string not found in file.%s", hint), nil
	}

	count := strings.Count(content, oldString)
	if count > 1 && !replaceAll {
		return fmt.Sprintf("Error: Found %d occurrences of old_string. "+
			"Either make old_string more specific, or set replace_all=true.", count), nil
	}

	var newContent string
	replacedCount := 1
	if replaceAll {
		newContent = strings.ReplaceAll(content, oldString, newString)
		replacedCount = count
	} else {
		newContent = strings.Replace(content, oldString, newString, 1)
	}

	if err := os.WriteFile(path, []byte(newContent), 0o644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err), nil
	}
	return fmt.Sprintf("Replaced %d occurrence(s) in %s", replacedCount, path), nil
}

// editPartialMatchHint reports the first lines containing the first line
// of the missed old_string, to help the model re-anchor its edit.
func editPartialMatchHint(content, oldString string) string {
	needle := strings.TrimSpace(strings.SplitN(oldString, "\n", 2)[0])
	if needle == "" {
		return ""
	}
	var lines []int
	for i, line := range strings.Split(content, "\n") {
		if strings.Contains(line, needle) {
			lines = append(lines, i+1)
			if len(lines) == 5 {
				break
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}
	parts := make([]string, len(lines))
	for i, n := range lines {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf(" Partial matches found on lines: [%s]", strings.Join(parts, ", "))
}

// splitLines splits file content into lines without the trailing
// newline producing a phantom empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
