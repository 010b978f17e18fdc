// Package registry provides the service adapter abstraction layer for
// conductor.
//
// This package defines the uniform command/result contract that every
// adapter must satisfy, and the Registry that owns named adapters and
// routes commands to them.
//
// # Core Concepts
//
// Adapter: the fundamental unit of work. Each adapter wraps either
// in-process logic (filesystem, git, terminal) or a remote worker process
// reached over the line protocol (deployment).
//
// Registry: a thread-safe collection of named adapters. It is the only
// holder allowed to call Shutdown on an adapter.
//
// Capability: static metadata describing one operation an adapter
// exposes. Callers use capability discovery to build a self-describing
// menu of operations without hardcoding adapter internals.
//
// # Contract
//
// Adapter.Execute must catch all internal failures and translate them
// into Result{Success: false, Error: ...}. It never returns a Go error
// to the Registry; this uniformity is what lets the Registry treat
// in-process and out-of-process adapters identically.
package registry
