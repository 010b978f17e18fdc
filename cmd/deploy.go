package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"conductor/internal/config"
	"conductor/internal/deploy"
	"conductor/internal/protocol"
	"conductor/internal/worker"
)

var (
	deployProject      string
	deployPlatform     string
	deployEnvironment  string
	deployDependencies []string
	deployRole         string

	deployStatusRefresh bool
)

// deployCmd talks to the deployment worker over its socket.
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a project through the deployment worker",
	Long: `Deploys a project by sending a request to the deployment worker.

The worker validates the configuration, resolves dependencies, prepares
the deployment, and executes it through the selected provider. With
--platform auto (the default) the worker picks the best matching
provider from the project layout.

Requires a running 'conductor worker'.`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

var deployStatusCmd = &cobra.Command{
	Use:   "status <deployment-id>",
	Short: "Show the status of a deployment",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeployStatus,
}

var deployCancelCmd = &cobra.Command{
	Use:   "cancel <deployment-id>",
	Short: "Cancel a running deployment",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeployCancel,
}

var deployProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the registered deployment providers",
	Args:  cobra.NoArgs,
	RunE:  runDeployProviders,
}

// callWorker connects to the worker socket, performs one call, and
// prints the JSON answer.
func callWorker(cmd *cobra.Command, method string, params any) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	initLogging(cfg, false)

	client := newWorkerClient(cfg)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("deployment worker unreachable at %s: %w (is 'conductor worker' running?)",
			cfg.Worker.SocketPath, err)
	}
	defer client.Disconnect()

	raw, err := client.Call(cmd.Context(), method, params)
	if err != nil {
		var payload *protocol.ErrorPayload
		if errors.As(err, &payload) {
			return fmt.Errorf("worker rejected the request: %s", payload.Message)
		}
		return err
	}

	var pretty any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return err
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(pretty)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	if deployProject == "" {
		return fmt.Errorf("--project is required")
	}
	return callWorker(cmd, worker.MethodRun, worker.RunParams{
		Config: deploy.Config{
			ProjectPath:  deployProject,
			Platform:     deployPlatform,
			Environment:  deploy.Environment(deployEnvironment),
			Dependencies: deployDependencies,
		},
		Role: deploy.RoleContext{Role: deployRole},
	})
}

func runDeployStatus(cmd *cobra.Command, args []string) error {
	return callWorker(cmd, worker.MethodStatus, worker.StatusParams{
		DeploymentID: args[0],
		Refresh:      deployStatusRefresh,
	})
}

func runDeployCancel(cmd *cobra.Command, args []string) error {
	return callWorker(cmd, worker.MethodCancel, worker.CancelParams{DeploymentID: args[0]})
}

func runDeployProviders(cmd *cobra.Command, args []string) error {
	return callWorker(cmd, worker.MethodProviders, nil)
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.AddCommand(deployStatusCmd)
	deployCmd.AddCommand(deployCancelCmd)
	deployCmd.AddCommand(deployProvidersCmd)

	deployCmd.Flags().StringVar(&deployProject, "project", "", "Path to the project to deploy")
	deployCmd.Flags().StringVar(&deployPlatform, "platform", deploy.PlatformAuto, "Target platform (static, docker, kubernetes, or auto)")
	deployCmd.Flags().StringVar(&deployEnvironment, "env", string(deploy.EnvPreview), "Target environment (preview or production)")
	deployCmd.Flags().StringArrayVar(&deployDependencies, "dep", nil, "Required dependency (repeatable)")
	deployCmd.Flags().StringVar(&deployRole, "role", "", "Requesting role (operations, product)")

	deployStatusCmd.Flags().BoolVar(&deployStatusRefresh, "refresh", false, "Query the provider for live state")
}
