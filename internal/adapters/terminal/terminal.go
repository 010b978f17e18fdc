// Package terminal runs allowlisted shell commands with a bounded
// execution time. Anything not explicitly allowed is refused before it
// ever reaches the operating system.
package terminal

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"conductor/internal/registry"
	"conductor/pkg/logging"
)

const adapterName = "terminal"

// DefaultTimeout bounds command execution when no timeout is
// configured.
const DefaultTimeout = 30 * time.Second

// Adapter executes commands from a fixed allowlist.
type Adapter struct {
	allowed map[string]bool
	timeout time.Duration
	workDir string
}

// New creates a terminal adapter. Only the named commands may run;
// an empty allowlist permits nothing.
func New(allowlist []string, timeout time.Duration, workDir string) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	allowed := make(map[string]bool, len(allowlist))
	for _, name := range allowlist {
		allowed[name] = true
	}
	return &Adapter{allowed: allowed, timeout: timeout, workDir: workDir}
}

func (a *Adapter) Name() string { return adapterName }

func (a *Adapter) Description() string {
	return "allowlisted command execution"
}

func (a *Adapter) Capabilities() []registry.Capability {
	return []registry.Capability{
		{
			Name:        "run_command",
			Description: "Run an allowlisted command and capture its output",
			InputSchema: map[string]any{
				"command": map[string]any{"type": "string", "description": "executable name"},
				"args":    map[string]any{"type": "array", "description": "command arguments"},
			},
		},
	}
}

func (a *Adapter) Initialize(ctx context.Context) error {
	if len(a.allowed) == 0 {
		logging.Warn(adapterName, "No commands allowlisted; every run_command will be refused")
	}
	return nil
}

func (a *Adapter) Execute(ctx context.Context, cmd registry.Command) registry.Result {
	if cmd.Tool != "run_command" {
		return registry.UnknownToolResult(adapterName, cmd.Tool)
	}

	name, _ := cmd.Args["command"].(string)
	if name == "" {
		return registry.Errorf("command argument is required")
	}
	if !a.allowed[name] {
		return registry.Errorf("command %q is not allowlisted", name)
	}

	args := stringSlice(cmd.Args["args"])
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Dir = a.workDir
	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return registry.Errorf("command %q timed out after %s", name, a.timeout)
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return registry.Errorf("running %q: %v", name, err)
		}
	}

	return registry.Ok(map[string]any{
		"stdout":   stdout.String(),
		"stderr":   stderr.String(),
		"exitCode": exitCode,
	})
}

func (a *Adapter) Shutdown(ctx context.Context) error { return nil }

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
