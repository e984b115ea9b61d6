package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const shellMaxOutputChars = 50000

// Shell provides the bash tool. Commands run in the given working
// directory with the parent process environment.
type Shell struct {
	workDir        string
	defaultTimeout time.Duration
}

// NewShell creates a shell executor. A zero timeout defaults to 120
// seconds.
func NewShell(workDir string, defaultTimeout time.Duration) *Shell {
	if defaultTimeout <= 0 {
		defaultTimeout = 120 * time.Second
	}
	return &Shell{workDir: workDir, defaultTimeout: defaultTimeout}
}

// Register adds the bash tool to the registry.
func (s *Shell) Register(r *Registry) {
	r.Register(&Tool{
		Name: "bash",
		Description: "Execute a bash command and return its output. " +
			"Use this for running tests, git commands, package managers, etc. " +
			"Commands run in the current working directory.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The bash command to execute.",
				},
				"timeout": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Timeout in seconds. Default is %d.", int(s.defaultTimeout.Seconds())),
				},
			},
			"required": []string{"command"},
		},
		Handler: s.handleBash,
	})
}

func (s *Shell) handleBash(ctx context.Context, args map[string]any) (string, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	timeout := s.defaultTimeout
	if sec, ok := args["timeout"].(float64); ok && sec > 0 {
		timeout = time.Duration(sec) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = s.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("Error: Command timed out after %d seconds", int(timeout.Seconds())), nil
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return fmt.Sprintf("Error executing command: %v", runErr), nil
		}
	}

	var b strings.Builder
	if stdout.Len() > 0 {
		b.Write(stdout.Bytes())
	}
	if stderr.Len() > 0 {
		if b.Len() > 0 {
			b.WriteString("\n--- stderr ---\n")
		}
		b.Write(stderr.Bytes())
	}
	if exitCode != 0 {
		fmt.Fprintf(&b, "\n[Exit code: %d]", exitCode)
	}

	output := b.String()
	if len(output) > shellMaxOutputChars {
		output = output[:shellMaxOutputChars] +
			fmt.Sprintf("\n\n[Output truncated at %d characters]", shellMaxOutputChars)
	}
	if output == "" {
		return "[Command completed with no output]", nil
	}
	return output, nil
}
