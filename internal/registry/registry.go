// Package registry owns module lifecycle: registration, dependency ordering,
// and Init/Start/Stop of solarwatch plugins.
package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/HerbHall/solarwatch/pkg/plugin"
)

var _ plugin.PluginResolver = (*Registry)(nil)

// Registry holds every registered plugin. Optional plugins that fail
// validation, Init or Start are disabled along with everything that depends
// on them; required plugins abort startup instead.
type Registry struct {
	mu       sync.RWMutex
	plugins  map[string]plugin.Plugin
	infos    map[string]plugin.PluginInfo
	order    []string
	disabled map[string]bool
	logger   *zap.Logger
}

// New returns an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]plugin.Plugin),
		infos:    make(map[string]plugin.PluginInfo),
		disabled: make(map[string]bool),
		logger:   logger,
	}
}

// Register adds p. Names must be unique.
func (r *Registry) Register(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("plugin has empty name")
	}
	if _, dup := r.plugins[info.Name]; dup {
		return fmt.Errorf("plugin %q already registered", info.Name)
	}
	r.plugins[info.Name] = p
	r.infos[info.Name] = info
	r.logger.Info("plugin registered",
		zap.String("name", info.Name),
		zap.String("version", info.Version),
	)
	return nil
}

// Validate checks API versions and dependencies, then fixes the start order.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.sortedNames() {
		info := r.infos[name]
		if err := checkAPIVersion(info); err != nil {
			if err := r.disable(name, err); err != nil {
				return err
			}
			continue
		}
		for _, dep := range info.Dependencies {
			if _, ok := r.plugins[dep]; !ok {
				if err := r.disable(name, fmt.Errorf("plugin %q depends on %q which is not registered", name, dep)); err != nil {
					return err
				}
				break
			}
		}
	}

	if err := r.cascade(); err != nil {
		return err
	}

	order, err := r.topologicalSort()
	if err != nil {
		return err
	}
	r.order = order
	r.logger.Info("plugin order resolved",
		zap.Strings("order", order),
		zap.Int("disabled", len(r.disabled)),
	)
	return nil
}

// InitAll initializes active plugins in dependency order. depsFn builds the
// dependencies for each plugin. Plugins implementing plugin.EventSubscriber
// are subscribed on the bus they were given. No lock is held while plugin
// code runs, so Init may resolve other plugins.
func (r *Registry) InitAll(ctx context.Context, depsFn func(name string) plugin.Dependencies) error {
	for _, name := range r.startOrder() {
		if r.IsDisabled(name) {
			continue
		}
		p := r.plugins[name]
		deps := depsFn(name)

		r.logger.Info("initializing plugin", zap.String("name", name))
		if err := guard(func() error { return p.Init(ctx, deps) }); err != nil {
			if err := r.fail(name, fmt.Errorf("plugin %q init: %w", name, err)); err != nil {
				return err
			}
			continue
		}
		if v, ok := p.(plugin.Validator); ok {
			if err := v.ValidateConfig(); err != nil {
				if err := r.fail(name, fmt.Errorf("plugin %q config: %w", name, err)); err != nil {
					return err
				}
				continue
			}
		}
		if es, ok := p.(plugin.EventSubscriber); ok && deps.Bus != nil {
			for _, sub := range es.Subscriptions() {
				deps.Bus.Subscribe(sub.Topic, sub.Handler)
			}
		}
	}
	return nil
}

// StartAll starts active plugins in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, name := range r.startOrder() {
		if r.IsDisabled(name) {
			continue
		}
		r.logger.Info("starting plugin", zap.String("name", name))
		p := r.plugins[name]
		if err := guard(func() error { return p.Start(ctx) }); err != nil {
			if err := r.fail(name, fmt.Errorf("plugin %q start: %w", name, err)); err != nil {
				return err
			}
		}
	}
	return nil
}

// StopAll stops active plugins in reverse dependency order. Errors and
// panics are logged; every plugin gets its Stop call.
func (r *Registry) StopAll(ctx context.Context) {
	for _, name := range slices.Backward(r.startOrder()) {
		if r.IsDisabled(name) {
			continue
		}
		r.logger.Info("stopping plugin", zap.String("name", name))
		p := r.plugins[name]
		if err := guard(func() error { return p.Stop(ctx) }); err != nil {
			r.logger.Error("plugin stop failed", zap.String("name", name), zap.Error(err))
		}
	}
}

func (r *Registry) startOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// fail disables name and its dependents after a lifecycle error.
func (r *Registry) fail(name string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.disable(name, err); err != nil {
		return err
	}
	return r.cascade()
}

// Get returns an active plugin by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok || r.disabled[name] {
		return nil, false
	}
	return p, true
}

// Resolve implements plugin.PluginResolver.
func (r *Registry) Resolve(name string) (plugin.Plugin, bool) {
	return r.Get(name)
}

// ResolveByRole returns active plugins declaring role, in dependency order.
func (r *Registry) ResolveByRole(role string) []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []plugin.Plugin
	for _, name := range r.order {
		if !r.disabled[name] && slices.Contains(r.infos[name].Roles, role) {
			out = append(out, r.plugins[name])
		}
	}
	return out
}

// All returns active plugins in dependency order.
func (r *Registry) All() []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		if !r.disabled[name] {
			out = append(out, r.plugins[name])
		}
	}
	return out
}

// AllRoutes collects routes from active HTTPProvider plugins, keyed by name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string][]plugin.Route)
	for _, name := range r.order {
		if r.disabled[name] {
			continue
		}
		if hp, ok := r.plugins[name].(plugin.HTTPProvider); ok {
			if rs := hp.Routes(); len(rs) > 0 {
				routes[name] = rs
			}
		}
	}
	return routes
}

// IsDisabled reports whether name was disabled during startup.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disabled[name]
}

// disable marks an optional plugin disabled, or returns err for a required one.
// Callers hold the write lock.
func (r *Registry) disable(name string, err error) error {
	if r.infos[name].Required {
		return err
	}
	r.logger.Warn("disabling plugin", zap.String("name", name), zap.Error(err))
	r.disabled[name] = true
	return nil
}

// cascade disables every plugin with a disabled dependency until stable.
func (r *Registry) cascade() error {
	for changed := true; changed; {
		changed = false
		for _, name := range r.sortedNames() {
			if r.disabled[name] {
				continue
			}
			for _, dep := range r.infos[name].Dependencies {
				if !r.disabled[dep] {
					continue
				}
				if err := r.disable(name, fmt.Errorf("plugin %q depends on disabled plugin %q", name, dep)); err != nil {
					return err
				}
				changed = true
				break
			}
		}
	}
	return nil
}

// topologicalSort orders active plugins so dependencies come first. Ties
// break alphabetically so the order is reproducible.
func (r *Registry) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)
	for _, name := range r.sortedNames() {
		if r.disabled[name] {
			continue
		}
		inDegree[name] = 0
		for _, dep := range r.infos[name].Dependencies {
			if r.disabled[dep] {
				continue
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for name, d := range inDegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(inDegree))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, d := range dependents[name] {
			inDegree[d]--
			if inDegree[d] == 0 {
				ready = append(ready, d)
				slices.Sort(ready)
			}
		}
	}

	if len(order) != len(inDegree) {
		var cycle []string
		for name, d := range inDegree {
			if d > 0 {
				cycle = append(cycle, name)
			}
		}
		slices.Sort(cycle)
		return nil, fmt.Errorf("dependency cycle among plugins: %v", cycle)
	}
	return order, nil
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func checkAPIVersion(info plugin.PluginInfo) error {
	if info.APIVersion < plugin.APIVersionMin || info.APIVersion > plugin.APIVersionCurrent {
		return fmt.Errorf("plugin %q targets plugin API v%d, server supports v%d to v%d",
			info.Name, info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
	}
	return nil
}

// guard converts a panic in fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}
