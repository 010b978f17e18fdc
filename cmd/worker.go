package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"conductor/internal/config"
	"conductor/internal/deploy"
	"conductor/internal/deploy/providers/docker"
	"conductor/internal/deploy/providers/kubernetes"
	"conductor/internal/deploy/providers/static"
	"conductor/internal/store"
	"conductor/internal/worker"
	"conductor/pkg/logging"
)

var workerDebug bool

// workerCmd runs the deployment worker daemon.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the deployment worker daemon",
	Long: `Runs the deployment worker: a daemon that owns the deployment
providers and serves deployment requests over a unix socket.

The static provider is always registered. The docker and kubernetes
providers are registered when enabled in configuration and their
backing platform is reachable. Deployment records are persisted to
SQLite so status queries survive restarts.

The socket path and database path come from the worker section of the
configuration.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	initLogging(cfg, workerDebug)

	for _, path := range []string{cfg.Worker.SocketPath, cfg.Worker.DatabasePath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", path, err)
		}
	}

	st, err := store.Open(cfg.Worker.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening deployment store: %w", err)
	}
	defer st.Close()

	registry, err := buildProviderRegistry(cfg)
	if err != nil {
		return err
	}

	w := worker.New(worker.Options{
		SocketPath: cfg.Worker.SocketPath,
		Registry:   registry,
		Pipeline:   deploy.NewPipeline(deploy.BuiltinCatalog()),
		Store:      st,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}
	fmt.Printf("Deployment worker listening on %s\n", cfg.Worker.SocketPath)

	<-ctx.Done()
	logging.Info("Worker", "Shutting down")
	w.Stop()
	return nil
}

// buildProviderRegistry registers the providers enabled in config. A
// provider whose platform client cannot be built is skipped with a
// warning rather than failing the whole daemon.
func buildProviderRegistry(cfg config.ConductorConfig) (*deploy.Registry, error) {
	registry := deploy.NewRegistry()

	if err := registry.Register(static.New(cfg.Providers.Static.Domain)); err != nil {
		return nil, err
	}

	if cfg.Providers.Docker.Enabled {
		provider, err := docker.NewFromEnv()
		if err != nil {
			logging.Warn("Worker", "Docker provider unavailable: %v", err)
		} else if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}

	if cfg.Providers.Kubernetes.Enabled {
		provider, err := kubernetes.NewFromKubeconfig(
			cfg.Providers.Kubernetes.Kubeconfig,
			cfg.Providers.Kubernetes.Namespace,
		)
		if err != nil {
			logging.Warn("Worker", "Kubernetes provider unavailable: %v", err)
		} else if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().BoolVar(&workerDebug, "debug", false, "Enable debug logging")
}
