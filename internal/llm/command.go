package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandProvider runs a local model runner as a subprocess:
//
//	<binary> run <model> <prompt>
//
// The prompt travels as a single argument and the reply is read from stdout.
type CommandProvider struct {
	Binary  string
	Model   string
	Timeout time.Duration
}

// NewCommandProvider creates a subprocess provider. An empty binary defaults
// to "ollama"; a zero timeout waits for the process however long it takes.
func NewCommandProvider(binary, model string, timeout time.Duration) *CommandProvider {
	if binary == "" {
		binary = "ollama"
	}
	return &CommandProvider{Binary: binary, Model: model, Timeout: timeout}
}

// IsConfigured reports whether the runner binary can be found.
func (c *CommandProvider) IsConfigured() bool {
	_, err := exec.LookPath(c.Binary)
	return err == nil
}

// Generate runs the model once and returns its raw stdout. maxTokens is not
// supported by the runner CLI and is ignored.
func (c *CommandProvider) Generate(ctx context.Context, prompt string, _ int) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Binary, "run", c.Model, prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s run timed out after %v: %w", c.Binary, c.Timeout, ctx.Err())
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", fmt.Errorf("%s run canceled: %w", c.Binary, ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s run failed: %w (stderr: %s)", c.Binary, err, msg)
		}
		return "", fmt.Errorf("%s run failed: %w", c.Binary, err)
	}

	return stdout.String(), nil
}
