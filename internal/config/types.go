package config

import (
	"time"
)

// ConductorConfig is the top-level configuration structure for
// conductor.
type ConductorConfig struct {
	GlobalSettings GlobalSettings  `yaml:"globalSettings"`
	Worker         WorkerConfig    `yaml:"worker"`
	Client         ClientConfig    `yaml:"client"`
	Adapters       AdaptersConfig  `yaml:"adapters"`
	MCP            MCPConfig       `yaml:"mcp"`
	Providers      ProvidersConfig `yaml:"providers"`
}

// GlobalSettings holds options that apply across all subsystems.
type GlobalSettings struct {
	LogLevel string `yaml:"logLevel,omitempty"` // "debug", "info", "warn", "error"
}

// WorkerConfig configures the deployment worker daemon.
type WorkerConfig struct {
	SocketPath   string `yaml:"socketPath,omitempty"`   // unix socket the worker listens on
	DatabasePath string `yaml:"databasePath,omitempty"` // sqlite file for deployment records
}

// ClientConfig configures the protocol client used to reach the worker.
type ClientConfig struct {
	RequestTimeout       time.Duration `yaml:"requestTimeout,omitempty"`
	AutoReconnect        *bool         `yaml:"autoReconnect,omitempty"`
	ReconnectDelay       time.Duration `yaml:"reconnectDelay,omitempty"`
	MaxReconnectAttempts int           `yaml:"maxReconnectAttempts,omitempty"`
}

// AutoReconnectEnabled resolves the optional flag, defaulting to true.
func (c ClientConfig) AutoReconnectEnabled() bool {
	if c.AutoReconnect == nil {
		return true
	}
	return *c.AutoReconnect
}

// AdaptersConfig configures the in-process service adapters.
type AdaptersConfig struct {
	Filesystem FilesystemAdapterConfig `yaml:"filesystem"`
	Git        GitAdapterConfig        `yaml:"git"`
	Terminal   TerminalAdapterConfig   `yaml:"terminal"`
}

// FilesystemAdapterConfig roots the filesystem adapter.
type FilesystemAdapterConfig struct {
	Root string `yaml:"root,omitempty"`
}

// GitAdapterConfig points the git adapter at a repository.
type GitAdapterConfig struct {
	RepoPath string `yaml:"repoPath,omitempty"`
}

// TerminalAdapterConfig bounds what the terminal adapter may run.
type TerminalAdapterConfig struct {
	Allowlist []string      `yaml:"allowlist,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	WorkDir   string        `yaml:"workDir,omitempty"`
}

// MCPConfig configures the MCP tool server.
type MCPConfig struct {
	Host        string `yaml:"host,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	Enabled     bool   `yaml:"enabled,omitempty"`
	MetricsPort int    `yaml:"metricsPort,omitempty"` // 0 disables the metrics endpoint
}

// ProvidersConfig configures the deployment providers the worker
// registers.
type ProvidersConfig struct {
	Static     StaticProviderConfig     `yaml:"static"`
	Docker     DockerProviderConfig     `yaml:"docker"`
	Kubernetes KubernetesProviderConfig `yaml:"kubernetes"`
}

// StaticProviderConfig configures the static site provider.
type StaticProviderConfig struct {
	Domain string `yaml:"domain,omitempty"`
}

// DockerProviderConfig configures the docker provider. It is opt-in
// since it needs a reachable daemon.
type DockerProviderConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// KubernetesProviderConfig configures the kubernetes provider. It is
// opt-in since it needs cluster access.
type KubernetesProviderConfig struct {
	Enabled    bool   `yaml:"enabled,omitempty"`
	Namespace  string `yaml:"namespace,omitempty"`
	Kubeconfig string `yaml:"kubeconfig,omitempty"`
}
