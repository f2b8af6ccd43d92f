package module

import (
	"context"
	"errors"
	"sync"
	"time"

	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
	"github.com/GriffinCanCode/breakwatch/internal/resilience"
	"github.com/GriffinCanCode/breakwatch/internal/trace"
)

// Outcome is the result of delivering one event to one module.
type Outcome struct {
	Module  string
	Err     error
	Elapsed time.Duration
}

// Dispatcher fans events out to modules. Each module gets its own goroutine,
// deadline and circuit breaker so one misbehaving module cannot delay or
// starve the others.
type Dispatcher struct {
	modules  []Module
	breakers []*resilience.Breaker
	timeout  time.Duration
}

// BreakerTuner is implemented by modules that need breaker settings other
// than the dispatcher default.
type BreakerTuner interface {
	BreakerConfig() resilience.Config
}

// NewDispatcher creates a dispatcher with one breaker per module.
func NewDispatcher(modules []Module, timeout time.Duration, breaker resilience.Config) *Dispatcher {
	d := &Dispatcher{modules: modules, timeout: timeout}
	for _, m := range modules {
		cfg := breaker
		if t, ok := m.(BreakerTuner); ok {
			cfg = t.BreakerConfig()
		}
		d.breakers = append(d.breakers, resilience.New(m.Title(), cfg))
	}
	return d
}

// Modules returns the modules in registration order.
func (d *Dispatcher) Modules() []Module { return d.modules }

// OnBreakerChange registers fn to run whenever a module's breaker changes
// state. It must be called before the first Dispatch.
func (d *Dispatcher) OnBreakerChange(fn func(module string, from, to resilience.State)) {
	for _, b := range d.breakers {
		b.WithHook(fn)
	}
}

// BreakerStates returns each module's breaker state keyed by title.
func (d *Dispatcher) BreakerStates() map[string]resilience.State {
	states := make(map[string]resilience.State, len(d.breakers))
	for _, b := range d.breakers {
		states[b.Name()] = b.State()
	}
	return states
}

// Dispatch delivers ev to every module and returns once each has finished or
// timed out. Outcomes are in module order.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) []Outcome {
	outcomes := make([]Outcome, len(d.modules))
	var wg sync.WaitGroup
	for i := range d.modules {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = d.deliver(ctx, i, ev)
		}()
	}
	wg.Wait()
	return outcomes
}

func (d *Dispatcher) deliver(ctx context.Context, i int, ev Event) Outcome {
	m, b := d.modules[i], d.breakers[i]
	out := Outcome{Module: m.Title()}
	log := trace.Logger(ctx).With("module", m.Title(), "event", ev.Kind.String(), "event_id", ev.ID.String())

	if err := b.Allow(); err != nil {
		out.Err = apperr.Wrap(err, apperr.CodeModuleSuspended, "module suspended").WithMetadata("module", m.Title())
		log.Warn("notification skipped", "error", out.Err)
		return out
	}

	start := time.Now()
	err := call(ctx, d.timeout, func(ctx context.Context) error {
		if ev.Kind == Started {
			return m.OnStarted(ctx, ev.Display)
		}
		return m.OnEnded(ctx)
	})
	out.Elapsed = time.Since(start)

	if err != nil {
		b.Failure()
		if !apperr.IsCode(err, apperr.CodeTimeout) && !apperr.IsCode(err, apperr.CodeCancelled) {
			err = apperr.Wrapf(err, apperr.CodeModuleDispatchFailed, "%s %s", m.Title(), ev.Kind)
		}
		out.Err = err
		log.Error("notification failed", "error", err, "took", out.Elapsed)
		return out
	}
	b.Success()
	log.Debug("notification delivered", "took", out.Elapsed)
	return out
}

// Failed returns the failed outcomes joined into one error, or nil.
func Failed(outcomes []Outcome) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}
