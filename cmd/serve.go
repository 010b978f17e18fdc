package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"conductor/internal/config"
	"conductor/internal/mcpserver"
	"conductor/internal/metrics"
	"conductor/pkg/logging"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveCmd starts the adapter registry and exposes it over MCP.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the conductor MCP server",
	Long: `Starts the service adapter registry and exposes every adapter tool
over an MCP SSE endpoint for AI assistant access.

The filesystem, git and terminal adapters run in-process. Deployment
tools are proxied to the deployment worker daemon; start it separately
with 'conductor worker'. When the worker is unreachable the deployment
service is skipped and the remaining services stay available.

Configuration is layered from defaults, ~/.config/conductor/config.yaml
and ./.conductor/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	initLogging(cfg, serveDebug)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := buildRegistry(ctx, cfg, true)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := reg.ShutdownAll(shutdownCtx); err != nil {
			logging.Error("Serve", err, "Shutdown finished with errors")
		}
	}()

	services := reg.ListServices()
	logging.Info("Serve", "Registered %d services", len(services))
	for _, svc := range services {
		logging.Info("Serve", "  %s: %s", svc.Name, svc.Description)
	}

	group, ctx := errgroup.WithContext(ctx)

	var mcp *mcpserver.Server
	if cfg.MCP.Enabled {
		mcp = mcpserver.New(mcpserver.Config{
			Host:    cfg.MCP.Host,
			Port:    cfg.MCP.Port,
			Version: rootCmd.Version,
		}, reg)
		if err := mcp.Start(ctx); err != nil {
			return fmt.Errorf("failed to start MCP server: %w", err)
		}
		fmt.Printf("MCP endpoint: %s\n", mcp.Endpoint())
	}

	if cfg.MCP.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.MCP.Host, cfg.MCP.MetricsPort),
			Handler: mux,
		}
		group.Go(func() error {
			logging.Info("Serve", "Metrics on %s/metrics", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	<-ctx.Done()
	logging.Info("Serve", "Shutting down")

	if mcp != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mcp.Stop(shutdownCtx); err != nil {
			logging.Error("Serve", err, "MCP shutdown failed")
		}
	}
	return group.Wait()
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
}
