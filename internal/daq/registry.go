// ABOUTME: Process-wide device ownership registry
// ABOUTME: Maps device name to its single owning handle
package daq

import (
	"fmt"
	"sync"
)

// Registry enforces single ownership per device: acquiring a name tears
// down any prior handle for that name before opening a new one.
type Registry struct {
	mu      sync.Mutex
	devices map[string]Device
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Device)}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Acquire opens name through open, closing any device previously registered
// under the same name
func (r *Registry) Acquire(name string, open Opener) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.devices[name]; ok {
		prev.Close()
		delete(r.devices, name)
	}

	d, err := open(name)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", name, err)
	}
	r.devices[name] = d
	return d, nil
}

// Release closes d and removes it from the registry if it is still the
// registered owner of its name
func (r *Registry) Release(d Device) {
	r.mu.Lock()
	if cur, ok := r.devices[d.Name()]; ok && cur == d {
		delete(r.devices, d.Name())
	}
	r.mu.Unlock()

	d.Close()
}
