// Package static deploys file-based sites. It has no external runtime:
// execution publishes the project as-is and the provider tracks its
// deployments in memory.
package static

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"conductor/internal/deploy"
)

const providerName = "static"

// Provider serves the "static" platform.
type Provider struct {
	domain string

	mu          sync.Mutex
	deployments map[string]deploy.Result
}

// New returns a static provider publishing under the given domain,
// e.g. "static.local".
func New(domain string) *Provider {
	if domain == "" {
		domain = "static.local"
	}
	return &Provider{
		domain:      domain,
		deployments: make(map[string]deploy.Result),
	}
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Capabilities() deploy.Capabilities {
	return deploy.Capabilities{
		Platform:     "static",
		Environments: []deploy.Environment{deploy.EnvPreview, deploy.EnvProduction},
		ProjectHints: []string{"index.html", "public", "dist"},
	}
}

func (p *Provider) Execute(ctx context.Context, req deploy.ExecuteRequest) (*deploy.ExecuteOutcome, error) {
	files, err := countFiles(req.Config.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	if files == 0 {
		return nil, fmt.Errorf("project %s has no files to publish", req.Config.ProjectPath)
	}

	site := siteName(req.Config.ProjectPath)
	url := fmt.Sprintf("https://%s.%s", site, p.domain)
	if req.Config.Environment == deploy.EnvPreview {
		url = fmt.Sprintf("https://%s-preview.%s", site, p.domain)
	}

	result := deploy.Result{
		DeploymentID: req.Preparation.DeploymentID,
		Status:       deploy.StatusSucceeded,
		URL:          url,
		Platform:     "static",
		Environment:  req.Config.Environment,
		CreatedAt:    time.Now(),
	}
	p.mu.Lock()
	p.deployments[result.DeploymentID] = result
	p.mu.Unlock()

	return &deploy.ExecuteOutcome{
		URL:    url,
		Status: deploy.StatusSucceeded,
		Logs:   []string{fmt.Sprintf("published %d files to %s", files, url)},
		Metadata: map[string]any{
			"fileCount": files,
		},
	}, nil
}

func (p *Provider) Status(ctx context.Context, deploymentID string) (*deploy.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result, ok := p.deployments[deploymentID]
	if !ok {
		return nil, &deploy.DeploymentNotFoundError{DeploymentID: deploymentID}
	}
	return &result, nil
}

func (p *Provider) Cancel(ctx context.Context, deploymentID string) error {
	return deploy.ErrCancelNotSupported
}

func siteName(projectPath string) string {
	name := strings.ToLower(filepath.Base(filepath.Clean(projectPath)))
	return strings.ReplaceAll(name, "_", "-")
}

func countFiles(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count, err
}
