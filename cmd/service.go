package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"conductor/internal/config"
	"conductor/internal/registry"
)

var serviceCallArgs string

// serviceCmd groups the service inspection and invocation commands.
var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Inspect and call service adapters",
	Long: `Inspect and call the registered service adapters directly.

Available commands:
  list          - List all services with their status
  capabilities  - Show the tools a service exposes
  call          - Execute one tool of one service

These commands build the adapter registry in-process; the deployment
service additionally needs a running 'conductor worker'.`,
}

var serviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all services",
	RunE:  runServiceList,
}

var serviceCapabilitiesCmd = &cobra.Command{
	Use:   "capabilities <service>",
	Short: "Show the tools a service exposes",
	Args:  cobra.ExactArgs(1),
	RunE:  runServiceCapabilities,
}

var serviceCallCmd = &cobra.Command{
	Use:   "call <service> <tool>",
	Short: "Execute one tool of one service",
	Long: `Execute one tool of one service and print the structured result.

Tool arguments are passed as a JSON object via --args:

  conductor service call filesystem read_file --args '{"path":"go.mod"}'`,
	Args: cobra.ExactArgs(2),
	RunE: runServiceCall,
}

// withRegistry loads config, builds the registry, runs fn, and tears
// the adapters down again.
func withRegistry(cmd *cobra.Command, fn func(reg *registry.Registry) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	initLogging(cfg, false)

	ctx := cmd.Context()
	reg := buildRegistry(ctx, cfg, true)
	defer func() {
		_ = reg.ShutdownAll(ctx)
	}()
	return fn(reg)
}

func runServiceList(cmd *cobra.Command, args []string) error {
	return withRegistry(cmd, func(reg *registry.Registry) error {
		for _, svc := range reg.ListServices() {
			fmt.Printf("%-12s %-12s %s\n", svc.Name, svc.Status, svc.Description)
		}
		return nil
	})
}

func runServiceCapabilities(cmd *cobra.Command, args []string) error {
	return withRegistry(cmd, func(reg *registry.Registry) error {
		caps, err := reg.GetCapabilities(args[0])
		if err != nil {
			return err
		}
		for _, capability := range caps {
			fmt.Printf("%-20s %s\n", capability.Name, capability.Description)
		}
		return nil
	})
}

func runServiceCall(cmd *cobra.Command, args []string) error {
	toolArgs := map[string]any{}
	if serviceCallArgs != "" {
		if err := json.Unmarshal([]byte(serviceCallArgs), &toolArgs); err != nil {
			return fmt.Errorf("--args must be a JSON object: %w", err)
		}
	}

	return withRegistry(cmd, func(reg *registry.Registry) error {
		result := reg.Execute(cmd.Context(), args[0], registry.Command{
			Tool: args[1],
			Args: toolArgs,
		})

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("tool %s/%s failed", args[0], args[1])
		}
		return nil
	})
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.AddCommand(serviceListCmd)
	serviceCmd.AddCommand(serviceCapabilitiesCmd)
	serviceCmd.AddCommand(serviceCallCmd)

	serviceCallCmd.Flags().StringVar(&serviceCallArgs, "args", "", "Tool arguments as a JSON object")
}
