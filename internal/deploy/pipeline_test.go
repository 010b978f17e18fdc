package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	caps    Capabilities
	execute func(ctx context.Context, req ExecuteRequest) (*ExecuteOutcome, error)

	lastRequest *ExecuteRequest
}

func (f *fakeProvider) Name() string               { return f.name }
func (f *fakeProvider) Capabilities() Capabilities { return f.caps }

func (f *fakeProvider) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteOutcome, error) {
	f.lastRequest = &req
	if f.execute != nil {
		return f.execute(ctx, req)
	}
	return &ExecuteOutcome{Status: StatusSucceeded, URL: "https://" + f.name + ".example"}, nil
}

func (f *fakeProvider) Status(ctx context.Context, deploymentID string) (*Result, error) {
	return nil, &DeploymentNotFoundError{DeploymentID: deploymentID}
}

func (f *fakeProvider) Cancel(ctx context.Context, deploymentID string) error {
	return ErrCancelNotSupported
}

func newFakeProvider(name, platform string) *fakeProvider {
	return &fakeProvider{
		name: name,
		caps: Capabilities{
			Platform:     platform,
			Environments: []Environment{EnvPreview, EnvProduction},
		},
	}
}

func newTestPipeline() *Pipeline {
	p := NewPipeline(BuiltinCatalog())
	p.newID = func() string { return "fixed-id" }
	return p
}

func projectDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644))
	}
	return dir
}

func TestDeploySucceedsThroughAllStages(t *testing.T) {
	provider := newFakeProvider("static", "static")
	pipeline := newTestPipeline()

	cfg := Config{
		ProjectPath:  projectDir(t, "package.json"),
		Platform:     "static",
		Environment:  EnvPreview,
		Dependencies: []string{"node"},
	}

	result, err := pipeline.Deploy(context.Background(), provider, cfg, RoleContext{})
	require.NoError(t, err)

	assert.Equal(t, "static-fixed-id", result.DeploymentID)
	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, "https://static.example", result.URL)
	assert.Equal(t, "static", result.Platform)
	assert.Equal(t, EnvPreview, result.Environment)

	require.NotNil(t, provider.lastRequest)
	assert.Equal(t, "npm run build", provider.lastRequest.Preparation.BuildCommand)
	assert.Equal(t, "production", provider.lastRequest.Preparation.EnvVars["NODE_ENV"])
	assert.Equal(t, "preview", provider.lastRequest.Preparation.EnvVars["DEPLOY_ENV"])
}

func TestDeployLogsStartWithInitiationAndKeepOrder(t *testing.T) {
	provider := newFakeProvider("static", "static")
	pipeline := newTestPipeline()

	result, err := pipeline.Deploy(context.Background(), provider, Config{
		ProjectPath: projectDir(t),
		Environment: EnvProduction,
	}, RoleContext{})
	require.NoError(t, err)

	require.NotEmpty(t, result.Logs)
	assert.Equal(t, "deployment initiated", result.Logs[0].Message)
	for i := 1; i < len(result.Logs); i++ {
		assert.False(t, result.Logs[i].Timestamp.Before(result.Logs[i-1].Timestamp))
	}
}

func TestDeployValidationFailures(t *testing.T) {
	provider := newFakeProvider("static", "static")
	previewOnly := newFakeProvider("preview-only", "static")
	previewOnly.caps.Environments = []Environment{EnvPreview}

	tests := []struct {
		name     string
		provider Provider
		cfg      Config
		field    string
	}{
		{
			name:     "missing project path",
			provider: provider,
			cfg:      Config{ProjectPath: "/does/not/exist", Environment: EnvPreview},
			field:    "projectPath",
		},
		{
			name:     "platform conflict",
			provider: provider,
			cfg:      Config{ProjectPath: projectDir(t), Platform: "kubernetes", Environment: EnvPreview},
			field:    "platform",
		},
		{
			name:     "unknown environment",
			provider: provider,
			cfg:      Config{ProjectPath: projectDir(t), Environment: "staging"},
			field:    "environment",
		},
		{
			name:     "unsupported environment",
			provider: previewOnly,
			cfg:      Config{ProjectPath: projectDir(t), Environment: EnvProduction},
			field:    "environment",
		},
	}

	pipeline := newTestPipeline()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := pipeline.Deploy(context.Background(), tc.provider, tc.cfg, RoleContext{})

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
			require.NotNil(t, result)
			assert.Equal(t, StatusFailed, result.Status)
		})
	}
}

func TestDeployAbortsOnMissingDependency(t *testing.T) {
	provider := newFakeProvider("static", "static")
	pipeline := newTestPipeline()

	result, err := pipeline.Deploy(context.Background(), provider, Config{
		ProjectPath:  projectDir(t),
		Environment:  EnvPreview,
		Dependencies: []string{"node", "no-such-dep"},
	}, RoleContext{})

	var depErr *DependencyMissingError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, []string{"no-such-dep"}, depErr.Missing)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Nil(t, provider.lastRequest, "execute must not run after a dependency failure")
}

func TestDeployRejectsConflictingDependencies(t *testing.T) {
	provider := newFakeProvider("static", "static")
	pipeline := newTestPipeline()

	_, err := pipeline.Deploy(context.Background(), provider, Config{
		ProjectPath:  projectDir(t),
		Environment:  EnvPreview,
		Dependencies: []string{"sqlite", "postgres"},
	}, RoleContext{})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "dependencies", vErr.Field)
	assert.Nil(t, provider.lastRequest)
}

func TestDeployExecuteFailureKeepsLogs(t *testing.T) {
	provider := newFakeProvider("static", "static")
	provider.execute = func(ctx context.Context, req ExecuteRequest) (*ExecuteOutcome, error) {
		return nil, errors.New("platform rejected the build")
	}
	pipeline := newTestPipeline()

	result, err := pipeline.Deploy(context.Background(), provider, Config{
		ProjectPath: projectDir(t),
		Environment: EnvPreview,
	}, RoleContext{})

	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "static-fixed-id", result.DeploymentID)
	last := result.Logs[len(result.Logs)-1]
	assert.Contains(t, last.Message, "platform rejected the build")
}

func TestDeployRoleEnhancements(t *testing.T) {
	t.Run("operations role adds security hardening", func(t *testing.T) {
		provider := newFakeProvider("static", "static")
		result, err := newTestPipeline().Deploy(context.Background(), provider, Config{
			ProjectPath: projectDir(t),
			Environment: EnvProduction,
		}, RoleContext{Role: "operations"})
		require.NoError(t, err)

		assert.Equal(t, true, result.Metadata["securityHardened"])
		assert.Contains(t, provider.lastRequest.Preparation.ConfigFiles, "security-headers.conf")
	})

	t.Run("product role enables analytics", func(t *testing.T) {
		provider := newFakeProvider("static", "static")
		result, err := newTestPipeline().Deploy(context.Background(), provider, Config{
			ProjectPath: projectDir(t),
			Environment: EnvPreview,
		}, RoleContext{Role: "product", ProjectID: "proj-7"})
		require.NoError(t, err)

		assert.Equal(t, true, result.Metadata["analyticsEnabled"])
		assert.Equal(t, "true", provider.lastRequest.Preparation.EnvVars["ANALYTICS_ENABLED"])
		assert.Equal(t, "proj-7", result.Metadata["projectId"])
	})

	t.Run("unknown role changes nothing", func(t *testing.T) {
		provider := newFakeProvider("static", "static")
		result, err := newTestPipeline().Deploy(context.Background(), provider, Config{
			ProjectPath: projectDir(t),
			Environment: EnvPreview,
		}, RoleContext{Role: "marketing"})
		require.NoError(t, err)

		assert.NotContains(t, result.Metadata, "securityHardened")
		assert.NotContains(t, result.Metadata, "analyticsEnabled")
	})
}

func TestDetectBuildCommand(t *testing.T) {
	assert.Equal(t, "npm run build", detectBuildCommand(projectDir(t, "package.json")))
	assert.Equal(t, "go build ./...", detectBuildCommand(projectDir(t, "go.mod")))
	assert.Equal(t, "docker build .", detectBuildCommand(projectDir(t, "Dockerfile")))
	assert.Equal(t, "", detectBuildCommand(projectDir(t)))
}

func TestResultLogsAreAppendOnly(t *testing.T) {
	r := &Result{}
	base := time.Now()
	r.AppendLog(base, "validate", "first")
	r.AppendLog(base.Add(time.Second), "execute", "second")

	require.Len(t, r.Logs, 2)
	assert.Equal(t, "first", r.Logs[0].Message)
	assert.Equal(t, "second", r.Logs[1].Message)
}
