// Package deploy implements the deployment provider pipeline and the
// provider registry with automatic platform selection.
//
// A deployment runs through a fixed sequence of stages (validate,
// resolve dependencies, prepare, execute) driven by the Pipeline.
// Concrete providers only supply the execute stage (and optionally
// status/cancel); everything shared lives here. Every stage appends a
// timestamped log entry to the eventual DeploymentResult.
//
// Provider selection for platform "auto" is delegated to a pluggable
// Scorer so the heuristics stay documented and replaceable rather than
// buried in the registry.
package deploy
