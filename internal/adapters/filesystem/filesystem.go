// Package filesystem provides file operations rooted under a base
// directory. Every path argument is resolved relative to the root and
// may not escape it.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"conductor/internal/registry"
)

const adapterName = "filesystem"

// Adapter serves file operations under its root directory.
type Adapter struct {
	root string
}

// New creates a filesystem adapter rooted at root.
func New(root string) *Adapter {
	return &Adapter{root: filepath.Clean(root)}
}

func (a *Adapter) Name() string { return adapterName }

func (a *Adapter) Description() string {
	return "file operations rooted under " + a.root
}

func (a *Adapter) Capabilities() []registry.Capability {
	pathProp := map[string]any{"type": "string", "description": "path relative to the adapter root"}
	return []registry.Capability{
		{
			Name:        "read_file",
			Description: "Read a file and return its contents",
			InputSchema: map[string]any{"path": pathProp},
		},
		{
			Name:        "write_file",
			Description: "Write content to a file, creating parent directories as needed",
			InputSchema: map[string]any{
				"path":    pathProp,
				"content": map[string]any{"type": "string", "description": "file content"},
			},
		},
		{
			Name:        "list_directory",
			Description: "List the entries of a directory",
			InputSchema: map[string]any{"path": pathProp},
		},
		{
			Name:        "delete_file",
			Description: "Delete a file",
			InputSchema: map[string]any{"path": pathProp},
		},
		{
			Name:        "file_exists",
			Description: "Check whether a path exists",
			InputSchema: map[string]any{"path": pathProp},
		},
	}
}

// Initialize ensures the root directory exists.
func (a *Adapter) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(a.root, 0o755); err != nil {
		return fmt.Errorf("creating root %s: %w", a.root, err)
	}
	return nil
}

func (a *Adapter) Execute(ctx context.Context, cmd registry.Command) registry.Result {
	path, err := a.resolve(stringArg(cmd.Args, "path"))
	if err != nil {
		return registry.Errorf("%v", err)
	}

	switch cmd.Tool {
	case "read_file":
		return a.readFile(path)
	case "write_file":
		content, ok := cmd.Args["content"].(string)
		if !ok {
			return registry.Errorf("content argument is required")
		}
		return a.writeFile(path, content)
	case "list_directory":
		return a.listDirectory(path)
	case "delete_file":
		return a.deleteFile(path)
	case "file_exists":
		return a.fileExists(path)
	default:
		return registry.UnknownToolResult(adapterName, cmd.Tool)
	}
}

func (a *Adapter) Shutdown(ctx context.Context) error { return nil }

// resolve joins rel onto the root and rejects anything that would
// escape it, including absolute paths and ".." traversal.
func (a *Adapter) resolve(rel string) (string, error) {
	if rel == "" {
		return "", errors.New("path argument is required")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q must be relative", rel)
	}
	full := filepath.Join(a.root, rel)
	inRoot, err := filepath.Rel(a.root, full)
	if err != nil || inRoot == ".." || strings.HasPrefix(inRoot, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the adapter root", rel)
	}
	return full, nil
}

func (a *Adapter) readFile(path string) registry.Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return registry.Errorf("reading %s: %v", path, err)
	}
	return registry.Ok(map[string]any{"content": string(data), "size": len(data)})
}

func (a *Adapter) writeFile(path, content string) registry.Result {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return registry.Errorf("creating parent directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return registry.Errorf("writing %s: %v", path, err)
	}
	return registry.Ok(map[string]any{"bytesWritten": len(content)})
}

func (a *Adapter) listDirectory(path string) registry.Result {
	entries, err := os.ReadDir(path)
	if err != nil {
		return registry.Errorf("listing %s: %v", path, err)
	}
	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		item := map[string]any{"name": e.Name(), "isDir": e.IsDir()}
		if info, err := e.Info(); err == nil && !e.IsDir() {
			item["size"] = info.Size()
		}
		items = append(items, item)
	}
	return registry.Ok(map[string]any{"entries": items})
}

func (a *Adapter) deleteFile(path string) registry.Result {
	info, err := os.Stat(path)
	if err != nil {
		return registry.Errorf("deleting %s: %v", path, err)
	}
	if info.IsDir() {
		return registry.Errorf("%s is a directory, not a file", path)
	}
	if err := os.Remove(path); err != nil {
		return registry.Errorf("deleting %s: %v", path, err)
	}
	return registry.Ok(map[string]any{"deleted": true})
}

func (a *Adapter) fileExists(path string) registry.Result {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return registry.Ok(map[string]any{"exists": false})
	}
	if err != nil {
		return registry.Errorf("checking %s: %v", path, err)
	}
	return registry.Ok(map[string]any{"exists": true, "isDir": info.IsDir()})
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
