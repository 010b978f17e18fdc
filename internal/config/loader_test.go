package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// Helper function to create a temporary config file
func createTempConfigFile(t *testing.T, dir string, filename string, content ConductorConfig) string {
	t.Helper()
	tempFilePath := filepath.Join(dir, filename)
	data, err := yaml.Marshal(&content)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tempFilePath, data, 0o644))
	return tempFilePath
}

func pointPathsAway(t *testing.T) {
	t.Helper()
	tempDir := t.TempDir()

	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	t.Cleanup(func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
	})

	getUserConfigPath = func() (string, error) {
		return filepath.Join(tempDir, "non-existent-user-config.yaml"), nil
	}
	getProjectConfigPath = func() (string, error) {
		return filepath.Join(tempDir, "non-existent-project-config.yaml"), nil
	}
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	pointPathsAway(t)

	loadedConfig, err := LoadConfig()
	require.NoError(t, err)

	defaults := GetDefaultConfig()
	assert.Equal(t, defaults.Worker, loadedConfig.Worker)
	assert.Equal(t, defaults.Client, loadedConfig.Client)
	assert.Equal(t, defaults.MCP, loadedConfig.MCP)
	assert.True(t, loadedConfig.Client.AutoReconnectEnabled(), "reconnect defaults to on")
}

func TestLoadConfig_UserOverride(t *testing.T) {
	tempDir := t.TempDir()

	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	originalOsUserHomeDir := osUserHomeDir
	defer func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
		osUserHomeDir = originalOsUserHomeDir
	}()

	osUserHomeDir = func() (string, error) { return tempDir, nil }
	getUserConfigPath = func() (string, error) {
		return filepath.Join(tempDir, userConfigDir, configFileName), nil
	}
	getProjectConfigPath = func() (string, error) {
		return filepath.Join(tempDir, "no-project", configFileName), nil
	}

	userConfDir := filepath.Join(tempDir, userConfigDir)
	require.NoError(t, os.MkdirAll(userConfDir, 0o755))

	noReconnect := false
	userOverride := ConductorConfig{
		GlobalSettings: GlobalSettings{LogLevel: "debug"},
		Worker:         WorkerConfig{SocketPath: "/run/conductor/worker.sock"},
		Client: ClientConfig{
			RequestTimeout: 5 * time.Second,
			AutoReconnect:  &noReconnect,
		},
	}
	createTempConfigFile(t, userConfDir, configFileName, userOverride)

	loadedConfig, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", loadedConfig.GlobalSettings.LogLevel)
	assert.Equal(t, "/run/conductor/worker.sock", loadedConfig.Worker.SocketPath)
	assert.Equal(t, 5*time.Second, loadedConfig.Client.RequestTimeout)
	assert.False(t, loadedConfig.Client.AutoReconnectEnabled())

	// Untouched settings keep their defaults.
	assert.Equal(t, GetDefaultConfig().Worker.DatabasePath, loadedConfig.Worker.DatabasePath)
	assert.Equal(t, GetDefaultConfig().Client.MaxReconnectAttempts, loadedConfig.Client.MaxReconnectAttempts)
}

func TestLoadConfig_ProjectOverridesUser(t *testing.T) {
	tempDir := t.TempDir()

	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	originalOsGetwd := osGetwd
	defer func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
		osGetwd = originalOsGetwd
	}()

	osGetwd = func() (string, error) { return tempDir, nil }
	getUserConfigPath = func() (string, error) {
		return filepath.Join(tempDir, userConfigDir, configFileName), nil
	}
	getProjectConfigPath = func() (string, error) {
		return filepath.Join(tempDir, projectConfigDir, configFileName), nil
	}

	userConfDir := filepath.Join(tempDir, userConfigDir)
	require.NoError(t, os.MkdirAll(userConfDir, 0o755))
	createTempConfigFile(t, userConfDir, configFileName, ConductorConfig{
		GlobalSettings: GlobalSettings{LogLevel: "debug"},
		MCP:            MCPConfig{Port: 7001},
	})

	projectConfDir := filepath.Join(tempDir, projectConfigDir)
	require.NoError(t, os.MkdirAll(projectConfDir, 0o755))
	createTempConfigFile(t, projectConfDir, configFileName, ConductorConfig{
		MCP:      MCPConfig{Port: 7002},
		Adapters: AdaptersConfig{Terminal: TerminalAdapterConfig{Allowlist: []string{"just"}}},
	})

	loadedConfig, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7002, loadedConfig.MCP.Port, "project layer wins")
	assert.Equal(t, "debug", loadedConfig.GlobalSettings.LogLevel, "user layer survives where project is silent")
	assert.Equal(t, []string{"just"}, loadedConfig.Adapters.Terminal.Allowlist)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	tempDir := t.TempDir()

	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	defer func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
	}()

	userConfDir := filepath.Join(tempDir, userConfigDir)
	require.NoError(t, os.MkdirAll(userConfDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userConfDir, configFileName), []byte("worker: ["), 0o644))

	getUserConfigPath = func() (string, error) {
		return filepath.Join(userConfDir, configFileName), nil
	}
	getProjectConfigPath = func() (string, error) {
		return filepath.Join(tempDir, "no-project", configFileName), nil
	}

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestProviderEnableFlagsAreSticky(t *testing.T) {
	base := GetDefaultConfig()
	merged := mergeConfigs(base, ConductorConfig{
		Providers: ProvidersConfig{
			Docker:     DockerProviderConfig{Enabled: true},
			Kubernetes: KubernetesProviderConfig{Enabled: true, Namespace: "apps"},
		},
	})

	assert.True(t, merged.Providers.Docker.Enabled)
	assert.True(t, merged.Providers.Kubernetes.Enabled)
	assert.Equal(t, "apps", merged.Providers.Kubernetes.Namespace)
}
