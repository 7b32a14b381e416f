package check

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Factory creates a fresh, unconfigured check instance.
type Factory func() Check

// Spec is a configured check as produced by the configuration loader.
type Spec struct {
	Name       string
	ID         string
	Severity   Severity
	Tokens     []string
	Properties Properties
}

// Registry maps check names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name; the short name (without "Check") is
// registered as well.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	short := ShortName(name)
	if _, ok := r.factories[short]; ok {
		return fmt.Errorf("check %q already registered", name)
	}
	r.factories[short] = f
	return nil
}

// MustRegister is Register that panics on duplicates.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Lookup finds a factory by simple, short or qualified name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[ShortName(name)]
	return f, ok
}

// Names returns registered short names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Instantiate creates and configures one instance for spec.
// Each call configures the instance with its own deep copy of the properties.
func (r *Registry) Instantiate(spec Spec) (Check, error) {
	f, ok := r.Lookup(spec.Name)
	if !ok {
		return nil, fmt.Errorf("unknown check %q (known: %s)", spec.Name, strings.Join(r.Names(), ", "))
	}
	c := f()
	if !c.Capability().IsValid() {
		return nil, fmt.Errorf("check %s: invalid capability %d", c.Name(), c.Capability())
	}
	props, err := spec.Properties.Clone()
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", c.Name(), err)
	}
	if cfg, ok := c.(Configurable); ok {
		if err := cfg.Configure(props); err != nil {
			return nil, fmt.Errorf("check %s: cannot configure: %w", c.Name(), err)
		}
	} else if len(props) > 0 {
		return nil, fmt.Errorf("check %s: does not accept properties", c.Name())
	}
	return c, nil
}
