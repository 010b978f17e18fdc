package registry

import (
	"context"
	"fmt"
)

// Capability describes one operation an adapter exposes. It is pure
// data and immutable once declared by the adapter.
type Capability struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// Command is the opaque payload routed to an adapter. Validity of Args
// is adapter-specific.
type Command struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// Result is the only shape any adapter, local or remote, may return.
// Exactly one of Data or Error is populated depending on Success.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok builds a successful Result carrying data.
func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

// Errorf builds a failed Result with a formatted error message.
func Errorf(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ServiceStatus tracks the lifecycle of a registry entry.
type ServiceStatus string

const (
	StatusRegistered ServiceStatus = "Registered"
	StatusActive     ServiceStatus = "Active"
	StatusFailed     ServiceStatus = "Failed"
)

// ServiceInfo is the registry-owned view of a registered adapter.
type ServiceInfo struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Status       ServiceStatus `json:"status"`
	Capabilities []Capability  `json:"capabilities"`
}

// Adapter is the contract every service variant must satisfy.
type Adapter interface {
	// Name returns the unique service name, e.g. "fs" or "deployment".
	Name() string

	// Description returns a human-readable summary of the service.
	Description() string

	// Capabilities returns the operations this adapter exposes.
	Capabilities() []Capability

	// Initialize prepares the adapter for use. A failing Initialize
	// prevents registration.
	Initialize(ctx context.Context) error

	// Execute runs one command. Internal failures must be translated
	// into Result{Success: false}; Execute never panics or leaks errors
	// to the caller.
	Execute(ctx context.Context, cmd Command) Result

	// Shutdown releases adapter resources. Called exactly once by the
	// owning registry.
	Shutdown(ctx context.Context) error
}
