// Package config provides configuration management for conductor.
//
// This package implements a layered configuration system that allows
// users to customize conductor's behavior through YAML files.
// Configuration is loaded from multiple sources and merged in a
// specific order, with later sources overriding earlier ones.
//
// # Configuration Layers
//
// Configuration is loaded and merged in the following order:
//
//  1. Default Configuration (embedded in binary)
//     - Provides sensible defaults for all settings
//     - Ensures conductor works out-of-the-box
//
//  2. User Configuration (~/.config/conductor/config.yaml)
//     - User-specific settings that apply to all projects
//     - Useful for personal preferences and common overrides
//
//  3. Project Configuration (./.conductor/config.yaml)
//     - Project-specific settings in the current directory
//     - Allows teams to share configuration via version control
//
// # Configuration Structure
//
// The configuration file uses YAML format with the following main
// sections:
//
//	globalSettings:
//	  logLevel: "info"
//
//	worker:
//	  socketPath: "/tmp/conductor/worker.sock"
//	  databasePath: "/tmp/conductor/deployments.db"
//
//	client:
//	  requestTimeout: 30s
//	  autoReconnect: true
//	  reconnectDelay: 1s
//	  maxReconnectAttempts: 5
//
//	adapters:
//	  filesystem:
//	    root: "."
//	  git:
//	    repoPath: "."
//	  terminal:
//	    allowlist: ["ls", "make", "go"]
//	    timeout: 30s
//
//	mcp:
//	  host: "localhost"
//	  port: 8090
//	  enabled: true
//	  metricsPort: 9102
//
//	providers:
//	  static:
//	    domain: "static.local"
//	  docker:
//	    enabled: false
//	  kubernetes:
//	    enabled: false
//	    namespace: "default"
//	    kubeconfig: ""
//
// The worker section is read by the deployment worker daemon; the
// client section configures how the CLI and the deploy adapter reach
// that daemon over its unix socket.
package config
