// Package orchestrator drives the detect, decide, notify and sleep cycle.
package orchestrator

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/GriffinCanCode/breakwatch/internal/config"
	"github.com/GriffinCanCode/breakwatch/internal/detector"
	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
	"github.com/GriffinCanCode/breakwatch/internal/module"
	"github.com/GriffinCanCode/breakwatch/internal/resilience"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
	"github.com/GriffinCanCode/breakwatch/internal/syncx"
	"github.com/GriffinCanCode/breakwatch/internal/trace"
)

// Manager owns the detection state machine and the module list for the
// lifetime of the process.
type Manager struct {
	cfg        *config.Config
	capturer   screen.Capturer
	machine    *detector.Machine
	dispatcher *module.Dispatcher

	status *syncx.Guard[Status]

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// New creates a manager. Modules must already be initialized.
func New(cfg *config.Config, capturer screen.Capturer, scorer detector.Scorer, dispatcher *module.Dispatcher) *Manager {
	titles := make([]string, 0, len(dispatcher.Modules()))
	for _, m := range dispatcher.Modules() {
		titles = append(titles, m.Title())
	}
	breakers := make(map[string]string, len(titles))
	for name, state := range dispatcher.BreakerStates() {
		breakers[name] = state.String()
	}
	m := &Manager{
		cfg:        cfg,
		capturer:   capturer,
		machine:    detector.NewMachine(scorer),
		dispatcher: dispatcher,
		status: syncx.NewGuard(Status{
			State:    StateIdle,
			Modules:  titles,
			Scores:   map[string]float64{},
			Breakers: breakers,
		}),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	dispatcher.OnBreakerChange(m.breakerChanged)
	return m
}

// Setup discovers and initializes the configured modules and builds a
// manager around them. Nothing is polled if it fails.
func Setup(ctx context.Context, cfg *config.Config, registry *module.Registry, capturer screen.Capturer, scorer detector.Scorer) (*Manager, error) {
	modules, err := registry.Discover(cfg.Modules, cfg)
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		trace.Logger(ctx).Warn("no modules enabled, transitions will only be logged")
	}
	if err := module.InitializeAll(ctx, modules, cfg.ModuleInitTimeout); err != nil {
		if cerr := module.CloseAll(modules); cerr != nil {
			trace.Logger(ctx).Warn("closing modules after failed start", "error", cerr)
		}
		return nil, err
	}
	dispatcher := module.NewDispatcher(modules, cfg.DispatchTimeout, resilience.DefaultConfig())
	return New(cfg, capturer, scorer, dispatcher), nil
}

// Start runs the polling loop until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	defer close(m.done)
	log := trace.Logger(ctx)
	log.Info("polling started", "interval", m.cfg.PollInterval, "modules", len(m.dispatcher.Modules()))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("polling stopped", "reason", ctx.Err())
			return nil
		case <-m.stopCh:
			log.Info("polling stopped")
			return nil
		case <-timer.C:
			m.cycle(ctx)
			timer.Reset(m.cfg.PollInterval)
		}
	}
}

// Stop ends the loop and waits for the in-flight cycle, including its
// dispatch, up to the shutdown timeout.
func (m *Manager) Stop() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	select {
	case <-m.done:
		return nil
	case <-time.After(m.cfg.ShutdownTimeout):
		trace.Logger(context.Background()).Warn("abandoning in-flight cycle", "waited", m.cfg.ShutdownTimeout)
		return apperr.Newf(apperr.CodeTimeout, "cycle still running after %v", m.cfg.ShutdownTimeout)
	}
}

// Modules returns the initialized modules.
func (m *Manager) Modules() []module.Module { return m.dispatcher.Modules() }

// Status returns the latest snapshot and its revision.
func (m *Manager) Status() (Status, uint64) {
	return m.status.Load()
}

func (m *Manager) cycle(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, CycleSpanName)
	defer span.End()
	log := trace.Logger(ctx)

	displays, err := m.capturer.Displays(ctx)
	if err != nil {
		if _, ok := apperr.As(err); !ok {
			err = apperr.Wrap(err, apperr.CodeDisplayEnumFailed, "enumerate displays")
		}
		span.SetAttr("error", err.Error())
		log.Error("cycle failed", "error", err)
		m.publish(nil, nil, nil, err)
		return
	}
	span.SetAttr("displays", len(displays))

	ev, err := m.machine.Scan(ctx, displays)
	if err != nil {
		span.SetAttr("error", err.Error())
		log.Error("cycle failed", "error", err)
		m.publish(displays, nil, nil, err)
		return
	}

	var outcomes []module.Outcome
	if ev != nil {
		span.SetAttr("event", ev.Kind.String())
		if ev.Kind == module.Started {
			log.Info("break started", "display", ev.Display.ID, "event_id", ev.ID.String())
		} else {
			log.Info("break ended", "event_id", ev.ID.String())
		}
		outcomes = m.dispatcher.Dispatch(ctx, *ev)
		if err := module.Failed(outcomes); err != nil {
			log.Warn("some modules were not notified", "event", ev.Kind.String(), "error", err)
		}
	}
	m.publish(displays, ev, outcomes, nil)
}

// breakerChanged runs on dispatch goroutines. The map is copied because
// readers of earlier snapshots may still hold the old one.
func (m *Manager) breakerChanged(name string, _, to resilience.State) {
	m.status.Update(func(s *Status) {
		breakers := maps.Clone(s.Breakers)
		breakers[name] = to.String()
		s.Breakers = breakers
	})
}

func (m *Manager) publish(displays []screen.Display, ev *module.Event, outcomes []module.Outcome, err error) {
	scores := m.machine.Scores()
	active, isActive := m.machine.Active()

	m.status.Update(func(s *Status) {
		s.Cycles++
		if displays != nil {
			s.Displays = displays
		}
		s.Scores = scores
		s.State, s.Active = StateIdle, nil
		if isActive {
			s.State, s.Active = StateActive, &active
		}
		if err != nil {
			s.LastError, s.LastErrorAt = err.Error(), time.Now()
		}
		if ev != nil {
			s.LastEvent, s.LastTransition = ev, ev.At
			s.Failures = nil
			for _, o := range outcomes {
				if o.Err != nil {
					s.Failures = append(s.Failures, ModuleFailure{Module: o.Module, Error: o.Err.Error()})
				}
			}
		}
	})
}
