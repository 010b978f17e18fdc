package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"conductor/internal/metrics"
	"conductor/pkg/logging"
)

const (
	stageValidate     = "validate"
	stageDependencies = "resolve_dependencies"
	stagePrepare      = "prepare"
	stageExecute      = "execute"
)

// Pipeline drives one deployment through the shared stages and hands
// the prepared request to a provider for execution. It is safe for
// concurrent use.
type Pipeline struct {
	catalog *Catalog

	// now and newID are swappable for tests.
	now   func() time.Time
	newID func() string
}

// NewPipeline builds a pipeline over the given dependency catalog.
func NewPipeline(catalog *Catalog) *Pipeline {
	return &Pipeline{
		catalog: catalog,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Deploy runs the full stage sequence against one provider. The
// returned Result is non-nil even on failure so callers always get the
// accumulated logs; the error carries the typed stage failure.
func (p *Pipeline) Deploy(ctx context.Context, provider Provider, cfg Config, role RoleContext) (*Result, error) {
	caps := provider.Capabilities()
	result := &Result{
		Status:      StatusPending,
		Platform:    caps.Platform,
		Environment: cfg.Environment,
		CreatedAt:   p.now(),
	}
	result.AppendLog(p.now(), stageValidate, "deployment initiated")

	if err := p.validate(provider, cfg); err != nil {
		return p.fail(result, provider, stageValidate, err)
	}
	metrics.RecordStage(caps.Platform, stageValidate, "ok")
	result.AppendLog(p.now(), stageValidate, "configuration validated")

	resolution := p.catalog.Resolve(cfg.Dependencies)
	if len(resolution.Missing) > 0 {
		return p.fail(result, provider, stageDependencies, &DependencyMissingError{Missing: resolution.Missing})
	}
	if len(resolution.Conflicting) > 0 {
		return p.fail(result, provider, stageDependencies, &ValidationError{
			Field:  "dependencies",
			Detail: fmt.Sprintf("conflicting dependencies: %v", resolution.Conflicting),
		})
	}
	metrics.RecordStage(caps.Platform, stageDependencies, "ok")
	result.AppendLog(p.now(), stageDependencies,
		fmt.Sprintf("%d dependencies resolved", len(resolution.Resolved)))

	prep := p.prepare(provider, cfg, resolution)
	p.enhanceForRole(role, &prep, result)
	result.DeploymentID = prep.DeploymentID
	metrics.RecordStage(caps.Platform, stagePrepare, "ok")
	result.AppendLog(p.now(), stagePrepare, "deployment prepared as "+prep.DeploymentID)

	result.Status = StatusInProgress
	outcome, err := provider.Execute(ctx, ExecuteRequest{
		Config:      cfg,
		Role:        role,
		Preparation: prep,
	})
	if err != nil {
		return p.fail(result, provider, stageExecute, err)
	}
	metrics.RecordStage(caps.Platform, stageExecute, "ok")

	result.Status = outcome.Status
	if result.Status == "" {
		result.Status = StatusSucceeded
	}
	result.URL = outcome.URL
	for _, line := range outcome.Logs {
		result.AppendLog(p.now(), stageExecute, line)
	}
	for k, v := range outcome.Metadata {
		result.SetMeta(k, v)
	}
	result.AppendLog(p.now(), stageExecute, "deployment finished with status "+string(result.Status))
	logging.Info("Deploy", "Deployment %s finished with status %s", result.DeploymentID, result.Status)
	return result, nil
}

func (p *Pipeline) fail(result *Result, provider Provider, stage string, err error) (*Result, error) {
	metrics.RecordStage(provider.Capabilities().Platform, stage, "error")
	result.Status = StatusFailed
	result.AppendLog(p.now(), stage, err.Error())
	logging.Error("Deploy", err, "Deployment failed during %s", stage)
	return result, err
}

func (p *Pipeline) validate(provider Provider, cfg Config) error {
	info, err := os.Stat(cfg.ProjectPath)
	if err != nil {
		return &ValidationError{Field: "projectPath", Detail: err.Error()}
	}
	if !info.IsDir() {
		return &ValidationError{Field: "projectPath", Detail: "not a directory"}
	}

	caps := provider.Capabilities()
	if cfg.Platform != "" && cfg.Platform != PlatformAuto && cfg.Platform != caps.Platform {
		return &ValidationError{
			Field:  "platform",
			Detail: fmt.Sprintf("provider %s serves platform %q, not %q", provider.Name(), caps.Platform, cfg.Platform),
		}
	}

	switch cfg.Environment {
	case EnvPreview, EnvProduction:
	default:
		return &ValidationError{Field: "environment", Detail: fmt.Sprintf("unknown environment %q", cfg.Environment)}
	}
	if !caps.SupportsEnvironment(cfg.Environment) {
		return &ValidationError{
			Field:  "environment",
			Detail: fmt.Sprintf("provider %s does not support %q", provider.Name(), cfg.Environment),
		}
	}
	return nil
}

// prepare is pure: it derives the deployment identity and materials
// without touching the target platform.
func (p *Pipeline) prepare(provider Provider, cfg Config, resolution Resolution) Preparation {
	prep := Preparation{
		DeploymentID: provider.Name() + "-" + p.newID(),
		BuildCommand: detectBuildCommand(cfg.ProjectPath),
		EnvVars:      make(map[string]string, len(resolution.EnvVars)+1),
	}
	for k, v := range resolution.EnvVars {
		prep.EnvVars[k] = v
	}
	prep.EnvVars["DEPLOY_ENV"] = string(cfg.Environment)
	return prep
}

// enhanceForRole layers role-conditioned settings on top of the
// prepared deployment. The base preparation is never replaced, only
// extended.
func (p *Pipeline) enhanceForRole(role RoleContext, prep *Preparation, result *Result) {
	switch role.Role {
	case "operations":
		if prep.ConfigFiles == nil {
			prep.ConfigFiles = make(map[string]string)
		}
		prep.ConfigFiles["security-headers.conf"] = "X-Frame-Options: DENY\nX-Content-Type-Options: nosniff\n"
		result.SetMeta("securityHardened", true)
	case "product":
		prep.EnvVars["ANALYTICS_ENABLED"] = "true"
		result.SetMeta("analyticsEnabled", true)
	}
	if role.ProjectID != "" {
		result.SetMeta("projectId", role.ProjectID)
	}
}

// detectBuildCommand sniffs the project layout for a build entrypoint.
func detectBuildCommand(projectPath string) string {
	checks := []struct {
		marker  string
		command string
	}{
		{"package.json", "npm run build"},
		{"go.mod", "go build ./..."},
		{"Dockerfile", "docker build ."},
		{"Makefile", "make build"},
	}
	for _, c := range checks {
		if _, err := os.Stat(filepath.Join(projectPath, c.marker)); err == nil {
			return c.command
		}
	}
	return ""
}
