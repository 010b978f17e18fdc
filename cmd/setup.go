package cmd

import (
	"context"
	"os"

	"conductor/internal/adapters/deployworker"
	"conductor/internal/adapters/filesystem"
	"conductor/internal/adapters/git"
	"conductor/internal/adapters/terminal"
	"conductor/internal/config"
	"conductor/internal/protocol"
	"conductor/internal/registry"
	"conductor/pkg/logging"
)

// initLogging configures the global logger from config, with --debug
// forcing the debug level.
func initLogging(cfg config.ConductorConfig, debug bool) {
	level := logging.ParseLevel(cfg.GlobalSettings.LogLevel)
	if debug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)
}

// newWorkerClient builds a protocol client for the worker socket from
// the client config section.
func newWorkerClient(cfg config.ConductorConfig) *protocol.Client {
	return protocol.NewClient(protocol.ClientOptions{
		SocketPath:           cfg.Worker.SocketPath,
		RequestTimeout:       cfg.Client.RequestTimeout,
		AutoReconnect:        cfg.Client.AutoReconnectEnabled(),
		ReconnectDelay:       cfg.Client.ReconnectDelay,
		MaxReconnectAttempts: cfg.Client.MaxReconnectAttempts,
	})
}

// buildRegistry registers the configured adapters. An adapter that
// fails to initialize is skipped with a warning so the remaining
// services stay usable; withDeploy controls whether the remote
// deployment adapter is attempted at all.
func buildRegistry(ctx context.Context, cfg config.ConductorConfig, withDeploy bool) *registry.Registry {
	reg := registry.New()

	adapters := []registry.Adapter{
		filesystem.New(cfg.Adapters.Filesystem.Root),
		git.New(cfg.Adapters.Git.RepoPath),
		terminal.New(cfg.Adapters.Terminal.Allowlist, cfg.Adapters.Terminal.Timeout, cfg.Adapters.Terminal.WorkDir),
	}
	if withDeploy {
		adapters = append(adapters, deployworker.New(newWorkerClient(cfg)))
	}

	for _, adapter := range adapters {
		if err := reg.Register(ctx, adapter); err != nil {
			logging.Warn("Setup", "Skipping service %s: %v", adapter.Name(), err)
		}
	}
	return reg
}
