// Package worker runs the deployment engine behind the line-framed
// unix socket protocol. It owns the provider registry, the pipeline,
// and the persistent deployment store; clients only ever see the
// protocol methods.
package worker

import (
	"context"
	"encoding/json"
	"errors"

	"conductor/internal/deploy"
	"conductor/internal/protocol"
	"conductor/internal/store"
	"conductor/pkg/logging"
)

const subsystem = "Worker"

// Method names served by the worker.
const (
	MethodPing      = "ping"
	MethodRun       = "deploy.run"
	MethodStatus    = "deploy.status"
	MethodCancel    = "deploy.cancel"
	MethodProviders = "deploy.providers"
)

// RunParams is the payload of deploy.run.
type RunParams struct {
	Config deploy.Config      `json:"config"`
	Role   deploy.RoleContext `json:"role,omitempty"`
}

// RunResult is the answer to deploy.run.
type RunResult struct {
	Selection deploy.Selection `json:"selection"`
	Result    *deploy.Result   `json:"result"`
}

// StatusParams is the payload of deploy.status. Refresh asks the
// owning provider for live state instead of the stored record alone.
type StatusParams struct {
	DeploymentID string `json:"deploymentId"`
	Refresh      bool   `json:"refresh,omitempty"`
}

// CancelParams is the payload of deploy.cancel.
type CancelParams struct {
	DeploymentID string `json:"deploymentId"`
}

// ProviderInfo describes one registered provider in deploy.providers.
type ProviderInfo struct {
	Name         string               `json:"name"`
	Platform     string               `json:"platform"`
	Environments []deploy.Environment `json:"environments"`
	ProjectHints []string             `json:"projectHints,omitempty"`
}

// Options configures a worker.
type Options struct {
	SocketPath string
	Registry   *deploy.Registry
	Pipeline   *deploy.Pipeline
	Store      *store.Store
}

// Worker ties the protocol server to the deployment engine.
type Worker struct {
	server   *protocol.Server
	registry *deploy.Registry
	pipeline *deploy.Pipeline
	store    *store.Store
}

// New builds a worker and registers its method handlers. Start must be
// called before clients can connect.
func New(opts Options) *Worker {
	w := &Worker{
		server:   protocol.NewServer(opts.SocketPath),
		registry: opts.Registry,
		pipeline: opts.Pipeline,
		store:    opts.Store,
	}
	w.server.Handle(MethodPing, w.handlePing)
	w.server.Handle(MethodRun, w.handleRun)
	w.server.Handle(MethodStatus, w.handleStatus)
	w.server.Handle(MethodCancel, w.handleCancel)
	w.server.Handle(MethodProviders, w.handleProviders)
	return w
}

// Start begins accepting connections on the socket.
func (w *Worker) Start(ctx context.Context) error {
	return w.server.Start(ctx)
}

// Stop shuts the socket down and waits for in-flight handlers.
func (w *Worker) Stop() {
	w.server.Stop()
}

func (w *Worker) handlePing(ctx context.Context, params json.RawMessage) (any, *protocol.ErrorPayload) {
	return map[string]any{"pong": true}, nil
}

func (w *Worker) handleRun(ctx context.Context, params json.RawMessage) (any, *protocol.ErrorPayload) {
	var p RunParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, protocol.NewErrorPayload(protocol.CodeInvalidParams, "invalid deploy.run params: %v", err)
	}

	provider, selection, err := w.registry.Select(p.Config)
	if err != nil {
		return nil, protocol.NewErrorPayload(protocol.CodeInvalidParams, "%v", err)
	}
	logging.Info(subsystem, "Selected provider %s (%s, confidence %.2f)",
		selection.Provider, selection.Reason, selection.Confidence)

	result, deployErr := w.pipeline.Deploy(ctx, provider, p.Config, p.Role)
	if result != nil && result.DeploymentID != "" {
		if saveErr := w.store.Save(ctx, result); saveErr != nil {
			logging.Error(subsystem, saveErr, "Failed to persist deployment %s", result.DeploymentID)
		}
	}
	if deployErr != nil {
		return nil, deployErrorPayload(deployErr)
	}
	return RunResult{Selection: selection, Result: result}, nil
}

func (w *Worker) handleStatus(ctx context.Context, params json.RawMessage) (any, *protocol.ErrorPayload) {
	var p StatusParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, protocol.NewErrorPayload(protocol.CodeInvalidParams, "invalid deploy.status params: %v", err)
	}
	if p.DeploymentID == "" {
		return nil, protocol.NewErrorPayload(protocol.CodeInvalidParams, "deploymentId is required")
	}

	stored, err := w.store.Get(ctx, p.DeploymentID)
	if err != nil {
		return nil, deployErrorPayload(err)
	}
	if !p.Refresh {
		return stored, nil
	}

	provider, err := w.registry.ProviderFor(p.DeploymentID)
	if err != nil {
		// The record exists but no live provider owns the id; the
		// stored state is the best available answer.
		return stored, nil
	}
	live, err := provider.Status(ctx, p.DeploymentID)
	if err != nil {
		logging.Warn(subsystem, "Live status for %s unavailable: %v", p.DeploymentID, err)
		return stored, nil
	}
	if live.Status != stored.Status || (live.URL != "" && live.URL != stored.URL) {
		if err := w.store.SetStatus(ctx, p.DeploymentID, live.Status, live.URL); err != nil {
			logging.Error(subsystem, err, "Failed to update status for %s", p.DeploymentID)
		}
		stored, err = w.store.Get(ctx, p.DeploymentID)
		if err != nil {
			return nil, deployErrorPayload(err)
		}
	}
	return stored, nil
}

func (w *Worker) handleCancel(ctx context.Context, params json.RawMessage) (any, *protocol.ErrorPayload) {
	var p CancelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, protocol.NewErrorPayload(protocol.CodeInvalidParams, "invalid deploy.cancel params: %v", err)
	}

	provider, err := w.registry.ProviderFor(p.DeploymentID)
	if err != nil {
		return nil, deployErrorPayload(err)
	}
	if err := provider.Cancel(ctx, p.DeploymentID); err != nil {
		return nil, deployErrorPayload(err)
	}
	if err := w.store.SetStatus(ctx, p.DeploymentID, deploy.StatusCanceled, ""); err != nil {
		logging.Error(subsystem, err, "Failed to mark %s canceled", p.DeploymentID)
	}
	logging.Info(subsystem, "Canceled deployment %s", p.DeploymentID)
	return map[string]any{"canceled": true}, nil
}

func (w *Worker) handleProviders(ctx context.Context, params json.RawMessage) (any, *protocol.ErrorPayload) {
	providers := w.registry.List()
	infos := make([]ProviderInfo, 0, len(providers))
	for _, p := range providers {
		caps := p.Capabilities()
		infos = append(infos, ProviderInfo{
			Name:         p.Name(),
			Platform:     caps.Platform,
			Environments: caps.Environments,
			ProjectHints: caps.ProjectHints,
		})
	}
	return infos, nil
}

// deployErrorPayload maps the typed pipeline errors onto protocol error
// codes: caller mistakes become invalid params, everything else is an
// internal failure.
func deployErrorPayload(err error) *protocol.ErrorPayload {
	var (
		vErr  *deploy.ValidationError
		dErr  *deploy.DependencyMissingError
		npErr *deploy.NoSuitableProviderError
		nfErr *deploy.DeploymentNotFoundError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &dErr), errors.As(err, &npErr), errors.As(err, &nfErr):
		return protocol.NewErrorPayload(protocol.CodeInvalidParams, "%v", err)
	case errors.Is(err, deploy.ErrCancelNotSupported):
		return protocol.NewErrorPayload(protocol.CodeInvalidParams, "%v", err)
	default:
		return protocol.NewErrorPayload(protocol.CodeInternal, "deployment failed: %v", err)
	}
}
