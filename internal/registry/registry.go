// Package registry holds the set of known agent adapters: the built-in
// node-bridge, CLI-flag, and binary-download adapters, plus any
// user-defined custom adapters loaded from YAML (spec.md §4.7).
package registry

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/grayridge/acphost/internal/agents"
	"github.com/grayridge/acphost/internal/common/apperr"
	"github.com/grayridge/acphost/internal/common/logger"
)

// Registry holds every adapter the host can launch, keyed by agent id.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]agents.Adapter
	log      *logger.Logger
}

// New constructs an empty Registry. Use RegisterBuiltin for the
// host's fixed adapters and LoadCustomAgents for user-defined ones.
func New(log *logger.Logger) *Registry {
	return &Registry{
		adapters: make(map[string]agents.Adapter),
		log:      log.WithFields(zap.String("component", "registry")),
	}
}

// RegisterBuiltin adds a fixed, non-removable adapter, replacing whatever
// adapter is already registered under the same id. It performs no
// shadowing check; RegisterCustom is the path that refuses to shadow a
// built-in.
func (r *Registry) RegisterBuiltin(a agents.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Descriptor().ID] = a
}

// RegisterCustom adds a user-defined adapter, refusing to shadow a
// built-in descriptor of the same id.
func (r *Registry) RegisterCustom(a agents.Adapter) error {
	id := a.Descriptor().ID

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.adapters[id]; ok && existing.Descriptor().Builtin {
		return apperr.New(apperr.AccessDenied, fmt.Sprintf("cannot register custom agent %q: shadows a built-in agent", id))
	}
	r.adapters[id] = a
	return nil
}

// Get returns the adapter registered under id.
func (r *Registry) Get(id string) (agents.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	if !ok {
		return nil, apperr.New(apperr.AgentNotFound, fmt.Sprintf("no agent registered with id %q", id))
	}
	return a, nil
}

// List returns every registered adapter's descriptor.
func (r *Registry) List() []agents.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]agents.Descriptor, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a.Descriptor())
	}
	return out
}

// Remove deletes a previously-registered custom adapter. Built-in
// adapters cannot be removed (spec.md §4.7: "Builtin flag gates registry
// mutation").
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.adapters[id]
	if !ok {
		return apperr.New(apperr.AgentNotFound, fmt.Sprintf("no agent registered with id %q", id))
	}
	if existing.Descriptor().Builtin {
		return apperr.New(apperr.AccessDenied, fmt.Sprintf("agent %q is built-in and cannot be removed", id))
	}
	delete(r.adapters, id)
	return nil
}

// customAgentsFile is the on-disk shape of the custom adapter config.
type customAgentsFile struct {
	Agents []agents.CustomSpec `yaml:"agents"`
}

// LoadCustomAgents reads path (if it exists) and registers each entry as
// a Custom adapter. A missing file is not an error: it simply means no
// custom agents are configured yet.
func (r *Registry) LoadCustomAgents(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.Wrap(apperr.AgentSetupFailed, "failed to read custom agents file", err)
	}

	var parsed customAgentsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return apperr.Wrap(apperr.AgentSetupFailed, "failed to parse custom agents file", err)
	}

	for _, spec := range parsed.Agents {
		if err := r.RegisterCustom(agents.NewCustom(spec)); err != nil {
			r.log.Warn("skipping custom agent from config", zap.String("id", spec.ID), zap.Error(err))
		}
	}
	return nil
}
