package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/conductor"
	projectConfigDir = ".conductor"
	configFileName   = "config.yaml"
)

// LoadConfig loads the conductor configuration by layering default,
// user, and project settings. Missing files are fine; unparseable ones
// are an error.
func LoadConfig() (ConductorConfig, error) {
	config := GetDefaultConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional; keep going on defaults.
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else {
		if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
			userConfig, err := loadConfigFromFile(userConfigPath)
			if err != nil {
				return ConductorConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
			}
			config = mergeConfigs(config, userConfig)
		}
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else {
		if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
			projectConfig, err := loadConfigFromFile(projectConfigPath)
			if err != nil {
				return ConductorConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
			}
			config = mergeConfigs(config, projectConfig)
		}
	}

	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

func loadConfigFromFile(filePath string) (ConductorConfig, error) {
	var config ConductorConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return ConductorConfig{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return ConductorConfig{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Zero values
// in the overlay leave the base setting untouched.
func mergeConfigs(base, overlay ConductorConfig) ConductorConfig {
	merged := base

	if overlay.GlobalSettings.LogLevel != "" {
		merged.GlobalSettings.LogLevel = overlay.GlobalSettings.LogLevel
	}

	if overlay.Worker.SocketPath != "" {
		merged.Worker.SocketPath = overlay.Worker.SocketPath
	}
	if overlay.Worker.DatabasePath != "" {
		merged.Worker.DatabasePath = overlay.Worker.DatabasePath
	}

	if overlay.Client.RequestTimeout != 0 {
		merged.Client.RequestTimeout = overlay.Client.RequestTimeout
	}
	if overlay.Client.AutoReconnect != nil {
		merged.Client.AutoReconnect = overlay.Client.AutoReconnect
	}
	if overlay.Client.ReconnectDelay != 0 {
		merged.Client.ReconnectDelay = overlay.Client.ReconnectDelay
	}
	if overlay.Client.MaxReconnectAttempts != 0 {
		merged.Client.MaxReconnectAttempts = overlay.Client.MaxReconnectAttempts
	}

	if overlay.Adapters.Filesystem.Root != "" {
		merged.Adapters.Filesystem.Root = overlay.Adapters.Filesystem.Root
	}
	if overlay.Adapters.Git.RepoPath != "" {
		merged.Adapters.Git.RepoPath = overlay.Adapters.Git.RepoPath
	}
	if len(overlay.Adapters.Terminal.Allowlist) > 0 {
		merged.Adapters.Terminal.Allowlist = overlay.Adapters.Terminal.Allowlist
	}
	if overlay.Adapters.Terminal.Timeout != 0 {
		merged.Adapters.Terminal.Timeout = overlay.Adapters.Terminal.Timeout
	}
	if overlay.Adapters.Terminal.WorkDir != "" {
		merged.Adapters.Terminal.WorkDir = overlay.Adapters.Terminal.WorkDir
	}

	if overlay.MCP.Host != "" {
		merged.MCP.Host = overlay.MCP.Host
	}
	if overlay.MCP.Port != 0 {
		merged.MCP.Port = overlay.MCP.Port
	}
	if overlay.MCP.MetricsPort != 0 {
		merged.MCP.MetricsPort = overlay.MCP.MetricsPort
	}
	merged.MCP.Enabled = base.MCP.Enabled || overlay.MCP.Enabled

	if overlay.Providers.Static.Domain != "" {
		merged.Providers.Static.Domain = overlay.Providers.Static.Domain
	}
	merged.Providers.Docker.Enabled = base.Providers.Docker.Enabled || overlay.Providers.Docker.Enabled
	merged.Providers.Kubernetes.Enabled = base.Providers.Kubernetes.Enabled || overlay.Providers.Kubernetes.Enabled
	if overlay.Providers.Kubernetes.Namespace != "" {
		merged.Providers.Kubernetes.Namespace = overlay.Providers.Kubernetes.Namespace
	}
	if overlay.Providers.Kubernetes.Kubeconfig != "" {
		merged.Providers.Kubernetes.Kubeconfig = overlay.Providers.Kubernetes.Kubeconfig
	}

	return merged
}

// GetUserConfigDir returns the user configuration directory path.
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
