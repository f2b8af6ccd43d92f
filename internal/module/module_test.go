package module

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/breakwatch/internal/config"
	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
	"github.com/GriffinCanCode/breakwatch/internal/resilience"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
)

type fakeModule struct {
	title   string
	initErr error
	hang    chan struct{} // blocks every call until closed, ignoring ctx
	fail    error
	panics  bool

	mu      sync.Mutex
	started []screen.Display
	ended   int
}

func (f *fakeModule) Title() string { return f.title }

func (f *fakeModule) Initialize(context.Context) error {
	if f.hang != nil {
		<-f.hang
	}
	return f.initErr
}

func (f *fakeModule) OnStarted(_ context.Context, d screen.Display) error {
	if err := f.behave(); err != nil {
		return err
	}
	f.mu.Lock()
	f.started = append(f.started, d)
	f.mu.Unlock()
	return nil
}

func (f *fakeModule) OnEnded(context.Context) error {
	if err := f.behave(); err != nil {
		return err
	}
	f.mu.Lock()
	f.ended++
	f.mu.Unlock()
	return nil
}

func (f *fakeModule) behave() error {
	if f.hang != nil {
		<-f.hang
	}
	if f.panics {
		panic("module exploded")
	}
	return f.fail
}

func (f *fakeModule) endedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ended
}

var display = screen.Display{ID: "HDMI-1", Name: "HDMI-1", Bounds: screen.Rect{Width: 1920, Height: 1080}}

func TestEvents(t *testing.T) {
	s := StartedEvent(display)
	if s.Kind != Started || !s.Display.Same(display) {
		t.Errorf("StartedEvent = %+v", s)
	}
	e := EndedEvent()
	if e.Kind != Ended || e.Display.ID != "" {
		t.Errorf("EndedEvent = %+v", e)
	}
	if s.ID == e.ID {
		t.Error("events should have distinct IDs")
	}
	if Started.String() != "started" || Ended.String() != "ended" {
		t.Errorf("Kind strings = %s/%s", Started, Ended)
	}
}

func TestDispatchDeliversToAll(t *testing.T) {
	a, b := &fakeModule{title: "a"}, &fakeModule{title: "b"}
	d := NewDispatcher([]Module{a, b}, time.Second, resilience.DefaultConfig())

	outcomes := d.Dispatch(context.Background(), StartedEvent(display))
	if err := Failed(outcomes); err != nil {
		t.Fatalf("Failed() = %v", err)
	}
	for _, m := range []*fakeModule{a, b} {
		if len(m.started) != 1 || !m.started[0].Same(display) {
			t.Errorf("%s started = %v, want [%v]", m.title, m.started, display)
		}
	}
	if outcomes[0].Module != "a" || outcomes[1].Module != "b" {
		t.Errorf("outcome order = %s,%s", outcomes[0].Module, outcomes[1].Module)
	}
}

func TestDispatchHungModuleDoesNotBlockOthers(t *testing.T) {
	hang := make(chan struct{})
	defer close(hang)
	hung := &fakeModule{title: "hung", hang: hang}
	ok := &fakeModule{title: "ok"}
	d := NewDispatcher([]Module{hung, ok}, 50*time.Millisecond, resilience.DefaultConfig())

	start := time.Now()
	outcomes := d.Dispatch(context.Background(), EndedEvent())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Dispatch took %v, want about one timeout", elapsed)
	}

	if ok.endedCount() != 1 {
		t.Errorf("ok module ended = %d, want 1", ok.endedCount())
	}
	if !apperr.IsCode(outcomes[0].Err, apperr.CodeTimeout) {
		t.Errorf("hung outcome = %v, want TIMEOUT", outcomes[0].Err)
	}
	if outcomes[1].Err != nil {
		t.Errorf("ok outcome = %v, want nil", outcomes[1].Err)
	}
}

func TestDispatchContainsFailures(t *testing.T) {
	bad := &fakeModule{title: "bad", fail: stderrors.New("player gone")}
	boom := &fakeModule{title: "boom", panics: true}
	ok := &fakeModule{title: "ok"}
	d := NewDispatcher([]Module{bad, boom, ok}, time.Second, resilience.DefaultConfig())

	outcomes := d.Dispatch(context.Background(), StartedEvent(display))
	if !apperr.IsCode(outcomes[0].Err, apperr.CodeModuleDispatchFailed) {
		t.Errorf("bad outcome = %v, want MODULE_DISPATCH_FAILED", outcomes[0].Err)
	}
	if outcomes[1].Err == nil || !strings.Contains(outcomes[1].Err.Error(), "panic") {
		t.Errorf("panicking outcome = %v, want recovered panic", outcomes[1].Err)
	}
	if outcomes[2].Err != nil {
		t.Errorf("ok outcome = %v, want nil", outcomes[2].Err)
	}
}

func TestDispatchSuspendsFailingModule(t *testing.T) {
	bad := &fakeModule{title: "bad", fail: stderrors.New("nope")}
	d := NewDispatcher([]Module{bad}, time.Second, resilience.Config{
		Threshold:         2,
		ResetTimeout:      time.Hour,
		HalfOpenSuccesses: 1,
	})

	for range 2 {
		d.Dispatch(context.Background(), EndedEvent())
	}
	outcomes := d.Dispatch(context.Background(), EndedEvent())
	if !apperr.IsCode(outcomes[0].Err, apperr.CodeModuleSuspended) {
		t.Errorf("outcome = %v, want MODULE_SUSPENDED", outcomes[0].Err)
	}
}

type tunedModule struct {
	fakeModule
	breaker resilience.Config
}

func (m *tunedModule) BreakerConfig() resilience.Config { return m.breaker }

func TestDispatchHonorsBreakerTuner(t *testing.T) {
	tuned := &tunedModule{
		fakeModule: fakeModule{title: "remote", fail: stderrors.New("unreachable")},
		breaker:    resilience.Config{Threshold: 1, ResetTimeout: time.Hour, HalfOpenSuccesses: 1},
	}
	local := &fakeModule{title: "local", fail: stderrors.New("nope")}
	d := NewDispatcher([]Module{tuned, local}, time.Second, resilience.DefaultConfig())

	d.Dispatch(context.Background(), EndedEvent())
	outcomes := d.Dispatch(context.Background(), EndedEvent())
	if !apperr.IsCode(outcomes[0].Err, apperr.CodeModuleSuspended) {
		t.Errorf("tuned outcome = %v, want MODULE_SUSPENDED after one failure", outcomes[0].Err)
	}
	if !apperr.IsCode(outcomes[1].Err, apperr.CodeModuleDispatchFailed) {
		t.Errorf("local outcome = %v, want MODULE_DISPATCH_FAILED under default threshold", outcomes[1].Err)
	}
}

func TestDispatchReportsBreakerChanges(t *testing.T) {
	bad := &fakeModule{title: "bad", fail: stderrors.New("nope")}
	ok := &fakeModule{title: "ok"}
	d := NewDispatcher([]Module{bad, ok}, time.Second, resilience.Config{
		Threshold:         1,
		ResetTimeout:      time.Hour,
		HalfOpenSuccesses: 1,
	})

	var mu sync.Mutex
	var changes []string
	d.OnBreakerChange(func(module string, from, to resilience.State) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, module+":"+from.String()+"->"+to.String())
	})

	d.Dispatch(context.Background(), StartedEvent(display))

	mu.Lock()
	got := strings.Join(changes, ",")
	mu.Unlock()
	if got != "bad:closed->open" {
		t.Errorf("breaker changes = %q, want %q", got, "bad:closed->open")
	}
	states := d.BreakerStates()
	if states["bad"] != resilience.Open || states["ok"] != resilience.Closed {
		t.Errorf("BreakerStates() = %v", states)
	}
}

func TestInitializeAllAggregatesFailures(t *testing.T) {
	hang := make(chan struct{})
	defer close(hang)
	modules := []Module{
		&fakeModule{title: "fine"},
		&fakeModule{title: "broken", initErr: stderrors.New("no such player")},
		&fakeModule{title: "stuck", hang: hang},
	}

	err := InitializeAll(context.Background(), modules, 50*time.Millisecond)
	if err == nil {
		t.Fatal("InitializeAll() = nil, want error")
	}
	if !apperr.IsFatal(err) {
		t.Errorf("error %v should be fatal", err)
	}
	msg := err.Error()
	for _, want := range []string{"broken", "stuck"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not name %q", msg, want)
		}
	}
	if strings.Contains(msg, "initialize fine") {
		t.Errorf("error %q names a healthy module", msg)
	}
}

func TestInitializeAllRunsConcurrently(t *testing.T) {
	var running, peak atomic.Int32
	gate := make(chan struct{})
	mk := func(name string) Module {
		return &initProbe{name: name, running: &running, peak: &peak, gate: gate}
	}
	modules := []Module{mk("a"), mk("b"), mk("c")}
	go func() {
		for running.Load() < 3 {
			time.Sleep(time.Millisecond)
		}
		close(gate)
	}()

	if err := InitializeAll(context.Background(), modules, time.Second); err != nil {
		t.Fatalf("InitializeAll() = %v", err)
	}
	if peak.Load() != 3 {
		t.Errorf("peak concurrency = %d, want 3", peak.Load())
	}
}

type initProbe struct {
	fakeModule
	name          string
	running, peak *atomic.Int32
	gate          chan struct{}
}

func (p *initProbe) Title() string { return p.name }

func (p *initProbe) Initialize(ctx context.Context) error {
	n := p.running.Add(1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	select {
	case <-p.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestDiscover(t *testing.T) {
	r := NewRegistry()
	r.Register("a", func(*config.Config) (Module, error) { return &fakeModule{title: "a"}, nil })
	r.Register("b", func(*config.Config) (Module, error) { return &fakeModule{title: "b"}, nil })
	r.Register("bad", func(*config.Config) (Module, error) { return nil, stderrors.New("no device") })
	cfg := config.Defaults()

	mods, err := r.Discover([]string{"b", "a"}, cfg)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(mods) != 2 || mods[0].Title() != "b" || mods[1].Title() != "a" {
		t.Errorf("Discover() order wrong: %v", mods)
	}

	tests := []struct {
		name  string
		names []string
	}{
		{"unknown", []string{"a", "zzz"}},
		{"duplicate", []string{"a", "a"}},
		{"provider error", []string{"bad"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Discover(tt.names, cfg)
			if !apperr.IsCode(err, apperr.CodeConfigInvalid) || !apperr.IsFatal(err) {
				t.Errorf("Discover(%v) error = %v, want fatal CONFIG_INVALID", tt.names, err)
			}
		})
	}

	if got := r.Names(); len(got) != 3 || got[0] != "a" {
		t.Errorf("Names() = %v", got)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	p := func(*config.Config) (Module, error) { return nil, nil }
	r.Register("x", p)
	defer func() {
		if recover() == nil {
			t.Error("second Register should panic")
		}
	}()
	r.Register("x", p)
}
