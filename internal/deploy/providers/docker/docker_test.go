package docker

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/deploy"
)

type fakeEngine struct {
	created   []container.Config
	started   []string
	stopped   []string
	removed   []string
	inspect   map[string]types.ContainerJSON
	createErr error
	startErr  error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{inspect: make(map[string]types.ContainerJSON)}
}

func (f *fakeEngine) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	f.created = append(f.created, *config)
	return container.CreateResponse{ID: containerName}, nil
}

func (f *fakeEngine) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, containerID)
	return nil
}

func (f *fakeEngine) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	info, ok := f.inspect[containerID]
	if !ok {
		return types.ContainerJSON{}, errdefs.NotFound(errors.New("no such container"))
	}
	return info, nil
}

func (f *fakeEngine) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	if _, ok := f.inspect[containerID]; !ok {
		return errdefs.NotFound(errors.New("no such container"))
	}
	f.stopped = append(f.stopped, containerID)
	return nil
}

func (f *fakeEngine) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.removed = append(f.removed, containerID)
	delete(f.inspect, containerID)
	return nil
}

func runningContainer(hostPort string) types.ContainerJSON {
	info := types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			State: &types.ContainerState{Status: "running", Running: true},
		},
		NetworkSettings: &types.NetworkSettings{},
	}
	if hostPort != "" {
		info.NetworkSettings.Ports = nat.PortMap{
			nat.Port(appPort): []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: hostPort}},
		}
	}
	return info
}

func executeRequest() deploy.ExecuteRequest {
	return deploy.ExecuteRequest{
		Config: deploy.Config{
			ProjectPath: "/work/My_App",
			Environment: deploy.EnvPreview,
		},
		Preparation: deploy.Preparation{
			DeploymentID: "docker-abc",
			EnvVars:      map[string]string{"B": "2", "A": "1"},
		},
	}
}

func TestExecuteCreatesAndStartsContainer(t *testing.T) {
	engine := newFakeEngine()
	engine.inspect["docker-abc"] = runningContainer("32768")
	p := New(engine)

	outcome, err := p.Execute(context.Background(), executeRequest())
	require.NoError(t, err)

	assert.Equal(t, deploy.StatusSucceeded, outcome.Status)
	assert.Equal(t, "http://127.0.0.1:32768", outcome.URL)
	assert.Equal(t, []string{"docker-abc"}, engine.started)

	require.Len(t, engine.created, 1)
	cfg := engine.created[0]
	assert.Equal(t, "my_app:preview", cfg.Image)
	assert.Equal(t, []string{"A=1", "B=2"}, cfg.Env, "env vars are sorted for determinism")
	assert.Equal(t, "docker-abc", cfg.Labels[deploymentLabel])
}

func TestExecutePropagatesCreateFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.createErr = errors.New("image not found")

	_, err := New(engine).Execute(context.Background(), executeRequest())
	assert.ErrorContains(t, err, "image not found")
}

func TestStatusMapsContainerStates(t *testing.T) {
	tests := []struct {
		name  string
		state types.ContainerState
		want  deploy.Status
	}{
		{"running", types.ContainerState{Status: "running"}, deploy.StatusSucceeded},
		{"created", types.ContainerState{Status: "created"}, deploy.StatusPending},
		{"clean exit", types.ContainerState{Status: "exited", ExitCode: 0}, deploy.StatusCanceled},
		{"crash", types.ContainerState{Status: "exited", ExitCode: 137}, deploy.StatusFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := newFakeEngine()
			state := tc.state
			engine.inspect["docker-abc"] = types.ContainerJSON{
				ContainerJSONBase: &types.ContainerJSONBase{State: &state},
			}

			result, err := New(engine).Status(context.Background(), "docker-abc")
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Status)
		})
	}
}

func TestStatusUnknownContainer(t *testing.T) {
	_, err := New(newFakeEngine()).Status(context.Background(), "docker-gone")

	var nfErr *deploy.DeploymentNotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestCancelStopsAndRemoves(t *testing.T) {
	engine := newFakeEngine()
	engine.inspect["docker-abc"] = runningContainer("")
	p := New(engine)

	require.NoError(t, p.Cancel(context.Background(), "docker-abc"))
	assert.Equal(t, []string{"docker-abc"}, engine.stopped)
	assert.Equal(t, []string{"docker-abc"}, engine.removed)

	var nfErr *deploy.DeploymentNotFoundError
	assert.ErrorAs(t, p.Cancel(context.Background(), "docker-abc"), &nfErr)
}
