package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Orchestrate service adapters and deployments",
	Long: `conductor exposes a set of service adapters (filesystem, git,
terminal, deployment) behind one uniform tool interface, serves them to
AI assistants over MCP, and drives deployments through a separate
worker daemon reachable over a unix socket.`,
	// SilenceUsage prevents printing the usage message on errors we
	// already report ourselves.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "conductor version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
