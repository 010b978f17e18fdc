// Package docker deploys projects as local containers through the
// Docker Engine API. The daemon client is hidden behind a narrow
// interface so tests can run against a fake.
package docker

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"conductor/internal/deploy"
)

const (
	providerName = "docker"

	// appPort is the port the deployed application is expected to
	// listen on inside the container.
	appPort = "8080/tcp"

	deploymentLabel = "conductor.deployment"
)

// ContainerAPI is the slice of the Docker Engine client this provider
// needs. *client.Client satisfies it.
type ContainerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Provider serves the "docker" platform.
type Provider struct {
	api ContainerAPI
}

// New wraps an existing Engine API client.
func New(api ContainerAPI) *Provider {
	return &Provider{api: api}
}

// NewFromEnv connects to the daemon using the standard DOCKER_*
// environment variables.
func NewFromEnv() (*Provider, error) {
	api, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return New(api), nil
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Capabilities() deploy.Capabilities {
	return deploy.Capabilities{
		Platform:     "docker",
		Environments: []deploy.Environment{deploy.EnvPreview, deploy.EnvProduction},
		ProjectHints: []string{"Dockerfile", "docker-compose.yml"},
	}
}

// Execute creates and starts one container named after the deployment
// id. The image is assumed to be built already; the image tag follows
// the project name and environment.
func (p *Provider) Execute(ctx context.Context, req deploy.ExecuteRequest) (*deploy.ExecuteOutcome, error) {
	image := imageTag(req.Config)

	created, err := p.api.ContainerCreate(ctx,
		&container.Config{
			Image: image,
			Env:   envList(req.Preparation.EnvVars),
			Labels: map[string]string{
				deploymentLabel: req.Preparation.DeploymentID,
			},
			ExposedPorts: nat.PortSet{nat.Port(appPort): struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				nat.Port(appPort): []nat.PortBinding{{HostIP: "127.0.0.1"}},
			},
		},
		nil, nil, req.Preparation.DeploymentID)
	if err != nil {
		return nil, fmt.Errorf("creating container from %s: %w", image, err)
	}

	if err := p.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container %s: %w", created.ID, err)
	}

	url := p.publishedURL(ctx, created.ID)
	return &deploy.ExecuteOutcome{
		URL:    url,
		Status: deploy.StatusSucceeded,
		Logs: []string{
			"created container " + created.ID + " from image " + image,
			"container started",
		},
		Metadata: map[string]any{
			"containerId": created.ID,
			"image":       image,
		},
	}, nil
}

func (p *Provider) Status(ctx context.Context, deploymentID string) (*deploy.Result, error) {
	info, err := p.api.ContainerInspect(ctx, deploymentID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, &deploy.DeploymentNotFoundError{DeploymentID: deploymentID}
		}
		return nil, fmt.Errorf("inspecting container %s: %w", deploymentID, err)
	}

	result := &deploy.Result{
		DeploymentID: deploymentID,
		Platform:     "docker",
		Status:       containerStatus(info),
		URL:          p.publishedURL(ctx, deploymentID),
	}
	if info.Created != "" {
		if created, err := time.Parse(time.RFC3339Nano, info.Created); err == nil {
			result.CreatedAt = created
		}
	}
	return result, nil
}

// Cancel stops the container and removes it so the deployment name can
// be reused.
func (p *Provider) Cancel(ctx context.Context, deploymentID string) error {
	if err := p.api.ContainerStop(ctx, deploymentID, container.StopOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return &deploy.DeploymentNotFoundError{DeploymentID: deploymentID}
		}
		return fmt.Errorf("stopping container %s: %w", deploymentID, err)
	}
	if err := p.api.ContainerRemove(ctx, deploymentID, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("removing container %s: %w", deploymentID, err)
	}
	return nil
}

func (p *Provider) publishedURL(ctx context.Context, containerID string) string {
	info, err := p.api.ContainerInspect(ctx, containerID)
	if err != nil || info.NetworkSettings == nil {
		return ""
	}
	bindings := info.NetworkSettings.Ports[nat.Port(appPort)]
	if len(bindings) == 0 || bindings[0].HostPort == "" {
		return ""
	}
	return "http://127.0.0.1:" + bindings[0].HostPort
}

func containerStatus(info types.ContainerJSON) deploy.Status {
	if info.State == nil {
		return deploy.StatusUnknown
	}
	switch info.State.Status {
	case "created":
		return deploy.StatusPending
	case "running", "restarting":
		return deploy.StatusSucceeded
	case "exited", "dead":
		if info.State.ExitCode == 0 {
			return deploy.StatusCanceled
		}
		return deploy.StatusFailed
	default:
		return deploy.StatusUnknown
	}
}

func imageTag(cfg deploy.Config) string {
	name := strings.ToLower(filepath.Base(filepath.Clean(cfg.ProjectPath)))
	return fmt.Sprintf("%s:%s", name, cfg.Environment)
}

func envList(vars map[string]string) []string {
	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
