package module

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/breakwatch/internal/config"
	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
	"github.com/GriffinCanCode/breakwatch/internal/trace"
)

// Provider builds a module from configuration.
type Provider func(cfg *config.Config) (Module, error)

// Registry maps module names to providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Default holds the modules compiled into the binary. Reaction packages add
// themselves from init.
var Default = NewRegistry()

// Register adds p to the default registry.
func Register(name string, p Provider) { Default.Register(name, p) }

// Register adds a provider. Registering a name twice panics, as with
// database/sql drivers.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == nil {
		panic("module: Register provider is nil")
	}
	if _, dup := r.providers[name]; dup {
		panic("module: Register called twice for " + name)
	}
	r.providers[name] = p
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Discover builds the named modules in order. Every failure here is a
// configuration error.
func (r *Registry) Discover(names []string, cfg *config.Config) ([]Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modules := make([]Module, 0, len(names))
	for i, name := range names {
		if slices.Contains(names[:i], name) {
			return nil, apperr.Newf(apperr.CodeConfigInvalid, "module %q listed twice", name)
		}
		p, ok := r.providers[name]
		if !ok {
			return nil, apperr.Newf(apperr.CodeConfigInvalid, "unknown module %q", name).
				WithMetadata("available", fmt.Sprint(r.namesLocked()))
		}
		m, err := p(cfg)
		if err != nil {
			return nil, apperr.Wrapf(err, apperr.CodeConfigInvalid, "create module %q", name)
		}
		modules = append(modules, m)
	}
	return modules, nil
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// InitializeAll runs every module's Initialize concurrently and waits for all
// of them. The result joins one MODULE_INIT_FAILED error per failing module.
func InitializeAll(ctx context.Context, modules []Module, timeout time.Duration) error {
	errs := make([]error, len(modules))
	var g errgroup.Group
	for i, m := range modules {
		g.Go(func() error {
			start := time.Now()
			if err := call(ctx, timeout, m.Initialize); err != nil {
				errs[i] = apperr.Wrapf(err, apperr.CodeModuleInitFailed, "initialize %s", m.Title()).
					WithMetadata("module", m.Title())
				return errs[i]
			}
			trace.Logger(ctx).Info("module initialized", "module", m.Title(), "took", time.Since(start))
			return nil
		})
	}
	if g.Wait() == nil {
		return nil
	}
	return errors.Join(errs...)
}
