package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"conductor/internal/metrics"
	"conductor/pkg/logging"
)

type entry struct {
	adapter      Adapter
	status       ServiceStatus
	capabilities []Capability
}

// Registry owns a collection of named adapters and routes commands to
// them. Registration and shutdown are expected during setup/teardown
// phases; Execute calls against different adapters may run concurrently.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Register initializes the adapter and adds it to the registry.
// Registration is all-or-nothing: if Initialize fails the adapter is
// not added and the error propagates to the caller.
func (r *Registry) Register(ctx context.Context, adapter Adapter) error {
	name := adapter.Name()

	r.mu.RLock()
	_, exists := r.entries[name]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("service %q is already registered", name)
	}

	logging.Debug("Registry", "Registering service %s", name)
	if err := adapter.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing service %q: %w", name, err)
	}

	caps := adapter.Capabilities()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		// Registered concurrently between the check and now. The second
		// adapter was initialized but never owned, so shut it down.
		if err := adapter.Shutdown(ctx); err != nil {
			logging.Warn("Registry", "Shutdown of duplicate service %s failed: %v", name, err)
		}
		return fmt.Errorf("service %q is already registered", name)
	}
	r.entries[name] = &entry{
		adapter:      adapter,
		status:       StatusRegistered,
		capabilities: caps,
	}
	r.order = append(r.order, name)

	logging.Info("Registry", "Registered service %s (%d capabilities)", name, len(caps))
	return nil
}

// Execute routes a command to the named adapter. It never returns a Go
// error: an unknown service, an adapter panic, or any adapter-internal
// failure all surface as Result{Success: false}.
func (r *Registry) Execute(ctx context.Context, service string, cmd Command) Result {
	r.mu.RLock()
	ent, ok := r.entries[service]
	r.mu.RUnlock()

	if !ok {
		return Result{Success: false, Error: (&UnknownServiceError{Service: service}).Error()}
	}

	result := r.executeGuarded(ctx, ent.adapter, cmd)

	r.mu.Lock()
	if result.Success {
		ent.status = StatusActive
	} else {
		// Tool-level failures are routine; only mark the entry failed
		// when the adapter itself blew up.
		if result.Error == "" {
			result.Error = "adapter returned failure without error detail"
		}
	}
	r.mu.Unlock()

	metrics.RecordExecute(service, cmd.Tool, result.Success)
	return result
}

// executeGuarded invokes the adapter with panic containment so a
// misbehaving adapter cannot take down the registry.
func (r *Registry) executeGuarded(ctx context.Context, adapter Adapter, cmd Command) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("Registry", fmt.Errorf("%v", rec), "Adapter %s panicked executing %s", adapter.Name(), cmd.Tool)
			result = Errorf("adapter %q panicked: %v", adapter.Name(), rec)
			r.markFailed(adapter.Name())
		}
	}()
	return adapter.Execute(ctx, cmd)
}

func (r *Registry) markFailed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ent, ok := r.entries[name]; ok {
		ent.status = StatusFailed
	}
}

// ListServices returns registered services in registration order.
func (r *Registry) ListServices() []ServiceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ServiceInfo, 0, len(r.order))
	for _, name := range r.order {
		ent := r.entries[name]
		infos = append(infos, ServiceInfo{
			Name:         name,
			Description:  ent.adapter.Description(),
			Status:       ent.status,
			Capabilities: ent.capabilities,
		})
	}
	return infos
}

// GetCapabilities returns the capability list of one service.
func (r *Registry) GetCapabilities(service string) ([]Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ent, ok := r.entries[service]
	if !ok {
		return nil, &UnknownServiceError{Service: service}
	}
	return ent.capabilities, nil
}

// ShutdownAll shuts down every adapter, continuing past individual
// failures, and returns the aggregated errors.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	r.mu.Lock()
	names := r.order
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.order = nil
	r.mu.Unlock()

	var errs []error
	for _, name := range names {
		ent := entries[name]
		if err := ent.adapter.Shutdown(ctx); err != nil {
			logging.Warn("Registry", "Shutdown of service %s failed: %v", name, err)
			errs = append(errs, fmt.Errorf("shutdown %q: %w", name, err))
			continue
		}
		logging.Debug("Registry", "Shut down service %s", name)
	}
	return errors.Join(errs...)
}
