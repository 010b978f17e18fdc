package deploy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelNotSupported is the default answer for providers that do not
// implement cancellation.
var ErrCancelNotSupported = errors.New("cancel is not supported by this provider")

// ValidationError fails the pipeline before anything ran: unreachable
// project path, platform conflict, or unsupported environment.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid deployment config (%s): %s", e.Field, e.Detail)
}

// DependencyMissingError aborts the pipeline before the deployment is
// attempted.
type DependencyMissingError struct {
	Missing []string
}

func (e *DependencyMissingError) Error() string {
	return fmt.Sprintf("missing dependencies: %s", strings.Join(e.Missing, ", "))
}

// NoSuitableProviderError is returned when automatic selection finds no
// provider above the confidence threshold.
type NoSuitableProviderError struct {
	Platform string
}

func (e *NoSuitableProviderError) Error() string {
	if e.Platform == "" || e.Platform == PlatformAuto {
		return "no suitable provider for automatic selection"
	}
	return fmt.Sprintf("no provider registered for platform %q", e.Platform)
}

// DeploymentNotFoundError is returned by status lookups for ids that
// no provider owns.
type DeploymentNotFoundError struct {
	DeploymentID string
}

func (e *DeploymentNotFoundError) Error() string {
	return fmt.Sprintf("deployment %q not found", e.DeploymentID)
}
