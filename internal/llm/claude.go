package llm

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultClaudeModel is the model passed to the claude CLI.
	DefaultClaudeModel = "haiku"

	// DefaultClaudeTimeout bounds a single CLI invocation.
	DefaultClaudeTimeout = 2 * time.Minute
)

// Claude completes prompts by shelling out to the claude CLI.
type Claude struct {
	command string
	model   string
	timeout time.Duration
}

// NewClaude creates a CLI completer. Empty model and zero timeout select
// the defaults.
func NewClaude(model string, timeout time.Duration) *Claude {
	if model == "" {
		model = DefaultClaudeModel
	}
	if timeout <= 0 {
		timeout = DefaultClaudeTimeout
	}
	return &Claude{command: "claude", model: model, timeout: timeout}
}

// Complete runs the CLI in print mode. Params are not supported by the CLI
// and are ignored.
func (c *Claude) Complete(ctx context.Context, prompt string, _ Params) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command, "--model", c.model, "-p", prompt)
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("claude CLI timed out after %s", c.timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("claude CLI error: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("claude CLI error: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}
