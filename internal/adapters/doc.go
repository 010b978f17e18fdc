// Package adapters contains the service adapter implementations that
// plug into the registry.
//
// # Overview
//
// Every adapter translates one backing capability (local files, a git
// repository, the shell, the deployment worker) into the uniform
// tool-call contract of the registry: named tools with JSON-shaped
// arguments, answered with a structured Result that is either success
// data or an error message. Callers interact with every service the
// same way regardless of what sits behind it.
//
// # Adapters
//
//  1. filesystem: file operations rooted under a base directory, with
//     path traversal rejected at the boundary.
//
//  2. git: version control operations for one repository, shelling out
//     to the git binary.
//
//  3. terminal: allowlisted command execution with bounded runtime.
//
//  4. deployworker: the remote adapter. It forwards deployment tools
//     to the worker daemon over the unix socket protocol, so a remote
//     service is indistinguishable from an in-process one.
//
// # Error Handling
//
// Adapters never return Go errors from Execute. Operational failures
// (missing file, rejected command, unreachable worker) travel inside
// the Result so the registry can pass them through uniformly; only
// Initialize and Shutdown report errors to the caller.
package adapters
