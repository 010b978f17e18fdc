package deploy

import (
	"context"
)

// ExecuteRequest is what a provider receives once the shared stages
// have passed: the validated config, the caller's role, and the
// prepared deployment materials.
type ExecuteRequest struct {
	Config      Config
	Role        RoleContext
	Preparation Preparation
}

// ExecuteOutcome carries the provider-specific results of the execute
// stage back into the pipeline's Result.
type ExecuteOutcome struct {
	URL      string
	Status   Status
	Logs     []string
	Metadata map[string]any
}

// Provider implements platform-specific deployment execution. The
// shared pipeline stages live outside the provider; Execute is only
// called after validation, dependency resolution, and preparation all
// succeeded.
type Provider interface {
	// Name is the unique registration name; it is also the prefix of
	// every deployment id this provider owns.
	Name() string

	// Capabilities declares the platform, supported environments, and
	// project hints used during automatic selection.
	Capabilities() Capabilities

	// Execute performs the platform-specific deployment.
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteOutcome, error)

	// Status reports the current state of a deployment this provider
	// created. Unknown ids return a DeploymentNotFoundError.
	Status(ctx context.Context, deploymentID string) (*Result, error)

	// Cancel stops a running deployment. Providers without cancel
	// semantics return ErrCancelNotSupported.
	Cancel(ctx context.Context, deploymentID string) error
}
