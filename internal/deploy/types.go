package deploy

import (
	"time"
)

// Environment is the deployment target environment.
type Environment string

const (
	EnvPreview    Environment = "preview"
	EnvProduction Environment = "production"
)

// PlatformAuto is the sentinel platform value asking the registry to
// select a provider automatically.
const PlatformAuto = "auto"

// Config is the immutable input to the deployment pipeline.
type Config struct {
	ProjectPath  string      `json:"projectPath"`
	Platform     string      `json:"platform"`
	Environment  Environment `json:"environment"`
	Dependencies []string    `json:"dependencies,omitempty"`
}

// RoleContext carries the requesting role so providers can attach
// role-conditioned enhancements without altering the base config.
type RoleContext struct {
	Role        string         `json:"role,omitempty"`
	ProjectID   string         `json:"projectId,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// Status is the lifecycle state of one deployment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
	StatusUnknown    Status = "unknown"
)

// LogEntry is one timestamped pipeline log line.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
}

// Result describes one deployment attempt. Logs are append-only across
// pipeline stages; they are never reordered or deleted.
type Result struct {
	DeploymentID string         `json:"deploymentId"`
	Status       Status         `json:"status"`
	URL          string         `json:"url,omitempty"`
	Platform     string         `json:"platform"`
	Environment  Environment    `json:"environment"`
	CreatedAt    time.Time      `json:"createdAt"`
	Logs         []LogEntry     `json:"logs"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// AppendLog adds one log entry; entries keep arrival order.
func (r *Result) AppendLog(now time.Time, stage, message string) {
	r.Logs = append(r.Logs, LogEntry{Timestamp: now, Stage: stage, Message: message})
}

// SetMeta records a metadata field, allocating the map on first use.
func (r *Result) SetMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
}

// Selection is the registry's choice of provider for a request. It is
// derived per request, never stored.
type Selection struct {
	Provider   string  `json:"provider"`
	Platform   string  `json:"platform"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Preparation is the pure output of the prepare stage: the identity and
// materials of the deployment, with no external side effects yet.
type Preparation struct {
	DeploymentID string            `json:"deploymentId"`
	BuildCommand string            `json:"buildCommand,omitempty"`
	EnvVars      map[string]string `json:"envVars,omitempty"`
	ConfigFiles  map[string]string `json:"configFiles,omitempty"`
}

// Capabilities declares what a provider supports; the scorer and the
// validate stage both consult it.
type Capabilities struct {
	Platform     string        `json:"platform"`
	Environments []Environment `json:"environments"`
	// ProjectHints are file names whose presence in the project
	// suggests this platform (e.g. "Dockerfile" for docker).
	ProjectHints []string `json:"projectHints,omitempty"`
}

// SupportsEnvironment reports whether env is in the declared list.
func (c Capabilities) SupportsEnvironment(env Environment) bool {
	for _, e := range c.Environments {
		if e == env {
			return true
		}
	}
	return false
}
