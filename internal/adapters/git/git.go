// Package git exposes version control operations for one repository by
// shelling out to the git binary.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"conductor/internal/registry"
)

const (
	adapterName = "git"

	commandTimeout = 30 * time.Second
)

// Adapter runs git commands inside its repository directory.
type Adapter struct {
	repoPath string

	// runner is swappable for tests.
	runner func(ctx context.Context, repoPath string, args ...string) (string, string, error)
}

// New creates a git adapter for the repository at repoPath.
func New(repoPath string) *Adapter {
	return &Adapter{repoPath: repoPath, runner: runGit}
}

func (a *Adapter) Name() string { return adapterName }

func (a *Adapter) Description() string {
	return "git operations on " + a.repoPath
}

func (a *Adapter) Capabilities() []registry.Capability {
	return []registry.Capability{
		{
			Name:        "status",
			Description: "Show working tree status",
			InputSchema: map[string]any{},
		},
		{
			Name:        "log",
			Description: "Show recent commits",
			InputSchema: map[string]any{
				"limit": map[string]any{"type": "number", "description": "maximum number of commits"},
			},
		},
		{
			Name:        "diff",
			Description: "Show unstaged changes, optionally for one path",
			InputSchema: map[string]any{
				"path": map[string]any{"type": "string", "description": "limit the diff to this path"},
			},
		},
		{
			Name:        "add",
			Description: "Stage files",
			InputSchema: map[string]any{
				"paths": map[string]any{"type": "array", "description": "paths to stage"},
			},
		},
		{
			Name:        "commit",
			Description: "Create a commit from staged changes",
			InputSchema: map[string]any{
				"message": map[string]any{"type": "string", "description": "commit message"},
			},
		},
		{
			Name:        "current_branch",
			Description: "Show the checked out branch",
			InputSchema: map[string]any{},
		},
	}
}

// Initialize verifies the directory is a git repository.
func (a *Adapter) Initialize(ctx context.Context) error {
	if _, _, err := a.runner(ctx, a.repoPath, "rev-parse", "--git-dir"); err != nil {
		return fmt.Errorf("%s is not a git repository: %w", a.repoPath, err)
	}
	return nil
}

func (a *Adapter) Execute(ctx context.Context, cmd registry.Command) registry.Result {
	switch cmd.Tool {
	case "status":
		return a.git(ctx, "status", "--porcelain")
	case "log":
		limit := 10
		if n, ok := cmd.Args["limit"].(float64); ok && n > 0 {
			limit = int(n)
		}
		return a.git(ctx, "log", fmt.Sprintf("--max-count=%d", limit), "--oneline")
	case "diff":
		args := []string{"diff"}
		if path, ok := cmd.Args["path"].(string); ok && path != "" {
			args = append(args, "--", path)
		}
		return a.git(ctx, args...)
	case "add":
		paths := stringSlice(cmd.Args["paths"])
		if len(paths) == 0 {
			return registry.Errorf("paths argument is required")
		}
		return a.git(ctx, append([]string{"add", "--"}, paths...)...)
	case "commit":
		message, _ := cmd.Args["message"].(string)
		if strings.TrimSpace(message) == "" {
			return registry.Errorf("message argument is required")
		}
		return a.git(ctx, "commit", "-m", message)
	case "current_branch":
		return a.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	default:
		return registry.UnknownToolResult(adapterName, cmd.Tool)
	}
}

func (a *Adapter) Shutdown(ctx context.Context) error { return nil }

func (a *Adapter) git(ctx context.Context, args ...string) registry.Result {
	stdout, stderr, err := a.runner(ctx, a.repoPath, args...)
	if err != nil {
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = err.Error()
		}
		return registry.Errorf("git %s: %s", args[0], detail)
	}
	return registry.Ok(map[string]any{"output": strings.TrimRight(stdout, "\n")})
}

func runGit(ctx context.Context, repoPath string, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", repoPath}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

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
