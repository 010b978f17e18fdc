// Package deployworker is the remote service adapter: it exposes the
// deployment worker's socket methods as ordinary registry tools, so
// callers cannot tell a remote service from an in-process one.
package deployworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"conductor/internal/deploy"
	"conductor/internal/protocol"
	"conductor/internal/registry"
	"conductor/internal/worker"
	"conductor/pkg/logging"
)

const adapterName = "deploy"

// Adapter forwards tool calls to the worker over a persistent protocol
// client.
type Adapter struct {
	client *protocol.Client
}

// New wraps an existing protocol client. The adapter takes over the
// client's connection lifecycle via Initialize and Shutdown.
func New(client *protocol.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Name() string { return adapterName }

func (a *Adapter) Description() string {
	return "deployment operations served by the deployment worker"
}

func (a *Adapter) Capabilities() []registry.Capability {
	idProp := map[string]any{"type": "string", "description": "deployment id"}
	return []registry.Capability{
		{
			Name:        "deploy",
			Description: "Deploy a project through the best matching provider",
			InputSchema: map[string]any{
				"projectPath":  map[string]any{"type": "string", "description": "path to the project"},
				"platform":     map[string]any{"type": "string", "description": "target platform, or auto"},
				"environment":  map[string]any{"type": "string", "description": "preview or production"},
				"dependencies": map[string]any{"type": "array", "description": "required dependencies"},
				"role":         map[string]any{"type": "string", "description": "requesting role"},
			},
		},
		{
			Name:        "deployment_status",
			Description: "Look up the state of a deployment",
			InputSchema: map[string]any{
				"deploymentId": idProp,
				"refresh":      map[string]any{"type": "boolean", "description": "query the provider for live state"},
			},
		},
		{
			Name:        "cancel_deployment",
			Description: "Cancel a running deployment",
			InputSchema: map[string]any{"deploymentId": idProp},
		},
		{
			Name:        "list_providers",
			Description: "List the registered deployment providers",
			InputSchema: map[string]any{},
		},
	}
}

// Initialize connects to the worker socket. Registration fails when the
// worker is unreachable; the client keeps reconnecting afterwards.
func (a *Adapter) Initialize(ctx context.Context) error {
	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("connecting to deployment worker: %w", err)
	}
	logging.Info("DeployAdapter", "Connected to deployment worker")
	return nil
}

func (a *Adapter) Execute(ctx context.Context, cmd registry.Command) registry.Result {
	method, params, err := translate(cmd)
	if err != nil {
		return registry.Errorf("%v", err)
	}

	raw, err := a.client.Call(ctx, method, params)
	if err != nil {
		return callFailure(err)
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return registry.Errorf("decoding worker response: %v", err)
	}
	return registry.Ok(data)
}

func (a *Adapter) Shutdown(ctx context.Context) error {
	a.client.Disconnect()
	return nil
}

// translate maps a registry tool invocation onto a worker method and
// its typed params.
func translate(cmd registry.Command) (string, any, error) {
	switch cmd.Tool {
	case "deploy":
		cfg := deploy.Config{
			ProjectPath: stringArg(cmd.Args, "projectPath"),
			Platform:    stringArg(cmd.Args, "platform"),
			Environment: deploy.Environment(stringArg(cmd.Args, "environment")),
		}
		if cfg.Platform == "" {
			cfg.Platform = deploy.PlatformAuto
		}
		if deps, ok := cmd.Args["dependencies"].([]any); ok {
			for _, d := range deps {
				if s, ok := d.(string); ok {
					cfg.Dependencies = append(cfg.Dependencies, s)
				}
			}
		}
		return worker.MethodRun, worker.RunParams{
			Config: cfg,
			Role:   deploy.RoleContext{Role: stringArg(cmd.Args, "role")},
		}, nil

	case "deployment_status":
		id := stringArg(cmd.Args, "deploymentId")
		if id == "" {
			return "", nil, fmt.Errorf("deploymentId argument is required")
		}
		refresh, _ := cmd.Args["refresh"].(bool)
		return worker.MethodStatus, worker.StatusParams{DeploymentID: id, Refresh: refresh}, nil

	case "cancel_deployment":
		id := stringArg(cmd.Args, "deploymentId")
		if id == "" {
			return "", nil, fmt.Errorf("deploymentId argument is required")
		}
		return worker.MethodCancel, worker.CancelParams{DeploymentID: id}, nil

	case "list_providers":
		return worker.MethodProviders, nil, nil

	default:
		return "", nil, &registry.UnknownToolError{Service: adapterName, Tool: cmd.Tool}
	}
}

// callFailure turns transport and remote errors into structured
// failures; the caller never sees a Go error from Execute.
func callFailure(err error) registry.Result {
	var payload *protocol.ErrorPayload
	if errors.As(err, &payload) {
		return registry.Errorf("worker error %d: %s", payload.Code, payload.Message)
	}
	return registry.Errorf("deployment worker unavailable: %v", err)
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
