package config

import (
	"time"
)

// GetDefaultConfig returns the configuration used when no config file
// overrides anything: local socket, on-disk store next to it, all
// in-process adapters rooted at the working directory, MCP enabled.
func GetDefaultConfig() ConductorConfig {
	return ConductorConfig{
		GlobalSettings: GlobalSettings{
			LogLevel: "info",
		},
		Worker: WorkerConfig{
			SocketPath:   "/tmp/conductor/worker.sock",
			DatabasePath: "/tmp/conductor/deployments.db",
		},
		Client: ClientConfig{
			RequestTimeout:       30 * time.Second,
			ReconnectDelay:       time.Second,
			MaxReconnectAttempts: 5,
		},
		Adapters: AdaptersConfig{
			Filesystem: FilesystemAdapterConfig{Root: "."},
			Git:        GitAdapterConfig{RepoPath: "."},
			Terminal: TerminalAdapterConfig{
				Allowlist: []string{"ls", "cat", "echo", "make", "npm", "go"},
				Timeout:   30 * time.Second,
			},
		},
		MCP: MCPConfig{
			Host:    "localhost",
			Port:    8090,
			Enabled: true,
		},
		Providers: ProvidersConfig{
			Static: StaticProviderConfig{Domain: "static.local"},
			Kubernetes: KubernetesProviderConfig{
				Namespace: "default",
			},
		},
	}
}
