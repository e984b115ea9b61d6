// Package ui renders chat progress to the terminal. It implements the
// engine's display interface: streamed tokens, tool call panels, and
// status lines.
package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// toolResultPreviewLen caps how much of a tool result is echoed to the
// terminal. The model sees the full result either way.
const toolResultPreviewLen = 200

// Console writes chat progress to a terminal.
type Console struct {
	out      io.Writer
	markdown *markdownRenderer
}

// NewConsole creates a console writing to out, typically os.Stdout.
func NewConsole(out io.Writer, width int) *Console {
	return &Console{
		out:      out,
		markdown: newMarkdownRenderer(width),
	}
}

// Token streams one text fragment from the model.
func (c *Console) Token(text string) {
	fmt.Fprint(c.out, text)
}

// ToolStarted prints a panel line announcing a tool call.
func (c *Console) ToolStarted(name string, args map[string]any) {
	fmt.Fprintf(c.out, "\n%s %s\n", toolStyle.Render("●"), toolStyle.Render(name)+dimStyle.Render("("+formatArgs(args)+")"))
}

// ToolFinished prints a short preview of a tool result.
func (c *Console) ToolFinished(name, result string, failed bool) {
	preview := firstLine(result)
	if len(preview) > toolResultPreviewLen {
		preview = preview[:toolResultPreviewLen] + "..."
	}
	if failed {
		fmt.Fprintf(c.out, "  %s %s\n", errorStyle.Render("✗"), preview)
		return
	}
	fmt.Fprintf(c.out, "  %s\n", dimStyle.Render(preview))
}

// Welcome prints the startup banner.
func (c *Console) Welcome(version, model, cwd string) {
	fmt.Fprintf(c.out, "%s %s\n", promptStyle.Render("loco"), dimStyle.Render(version))
	fmt.Fprintf(c.out, "%s\n", dimStyle.Render("model: "+model))
	fmt.Fprintf(c.out, "%s\n\n", dimStyle.Render("cwd:   "+cwd))
}

// Error prints an error line.
func (c *Console) Error(format string, args ...any) {
	fmt.Fprintf(c.out, "%s\n", errorStyle.Render(fmt.Sprintf(format, args...)))
}

// Info prints a dimmed status line.
func (c *Console) Info(format string, args ...any) {
	fmt.Fprintf(c.out, "%s\n", dimStyle.Render(fmt.Sprintf(format, args...)))
}

// Markdown renders a markdown document to the terminal.
func (c *Console) Markdown(doc string) {
	fmt.Fprintln(c.out, c.markdown.Render(doc))
}

// EndTurn prints the blank line that separates turns.
func (c *Console) EndTurn() {
	fmt.Fprintln(c.out)
}

// formatArgs renders tool arguments as "key=value, key=value" with
// keys sorted and long values truncated.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprintf("%v", args[k])
		v = strings.ReplaceAll(v, "\n", " ")
		if len(v) > 60 {
			v = v[:60] + "..."
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ", ")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// markdownRenderer wraps glamour with graceful degradation: when the
// renderer cannot be built, documents pass through as plain text.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
}

func newMarkdownRenderer(width int) *markdownRenderer {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &markdownRenderer{}
	}
	return &markdownRenderer{renderer: r}
}

// Render converts markdown to styled terminal output, falling back to
// the raw text on error.
func (m *markdownRenderer) Render(doc string) string {
	if m == nil || m.renderer == nil {
		return doc
	}
	rendered, err := m.renderer.Render(doc)
	if err != nil {
		return doc
	}
	return strings.TrimSuffix(rendered, "\n")
}
