package detector

import (
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"testing"

	"github.com/GriffinCanCode/breakwatch/internal/compare"
	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
	"github.com/GriffinCanCode/breakwatch/internal/module"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
)

// scriptScorer returns the next queued score for each display.
type scriptScorer struct {
	scores map[string][]float64
	errs   map[string]error
	calls  []string
}

func (s *scriptScorer) Score(_ context.Context, d screen.Display) (float64, error) {
	s.calls = append(s.calls, d.ID)
	if err := s.errs[d.ID]; err != nil {
		return 0, err
	}
	q := s.scores[d.ID]
	if len(q) == 0 {
		return 1, nil
	}
	s.scores[d.ID] = q[1:]
	return q[0], nil
}

var (
	dispA = screen.Display{ID: "A", Name: "DP-1", Bounds: screen.Rect{Width: 1920, Height: 1080}}
	dispB = screen.Display{ID: "B", Name: "HDMI-1", Bounds: screen.Rect{X: 1920, Width: 2560, Height: 1080}}
)

func TestFirstMatchWins(t *testing.T) {
	s := &scriptScorer{scores: map[string][]float64{"A": {0.1}, "B": {0.05}}}
	m := NewMachine(s)

	ev, err := m.Scan(context.Background(), []screen.Display{dispA, dispB})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if ev == nil || ev.Kind != module.Started || !ev.Display.Same(dispA) {
		t.Fatalf("Scan() = %+v, want Started(A)", ev)
	}
	if len(s.calls) != 1 || s.calls[0] != "A" {
		t.Errorf("scored %v, want only A", s.calls)
	}
	if active, ok := m.Active(); !ok || !active.Same(dispA) {
		t.Errorf("Active() = %v,%v, want A", active, ok)
	}
}

func TestActiveSkipsOtherDisplays(t *testing.T) {
	// B scores 1 on the first cycle, then would match if it were evaluated
	s := &scriptScorer{scores: map[string][]float64{"A": {0.1, 0.3, 0.95}}}
	m := NewMachine(s)
	displays := []screen.Display{dispB, dispA}
	ctx := context.Background()

	if ev, _ := m.Scan(ctx, displays); ev == nil || ev.Kind != module.Started || !ev.Display.Same(dispA) {
		t.Fatalf("first Scan() = %+v, want Started(A)", ev)
	}
	s.calls = nil
	s.scores["B"] = []float64{0.0, 0.0}

	ev, err := m.Scan(ctx, displays)
	if err != nil || ev != nil {
		t.Fatalf("second Scan() = %+v, %v, want no transition", ev, err)
	}
	if len(s.calls) != 1 || s.calls[0] != "A" {
		t.Errorf("scored %v while A active, want only A", s.calls)
	}

	ev, err = m.Scan(ctx, displays)
	if err != nil {
		t.Fatalf("third Scan() error = %v", err)
	}
	if ev == nil || ev.Kind != module.Ended {
		t.Fatalf("third Scan() = %+v, want Ended", ev)
	}
	if _, ok := m.Active(); ok {
		t.Error("machine should be idle after Ended")
	}
}

func TestNoDuplicateStarted(t *testing.T) {
	s := &scriptScorer{scores: map[string][]float64{"A": {0.1, 0.1, 0.1, 0.1}}}
	m := NewMachine(s)

	started := 0
	for range 4 {
		ev, err := m.Scan(context.Background(), []screen.Display{dispA})
		if err != nil {
			t.Fatal(err)
		}
		if ev != nil && ev.Kind == module.Started {
			started++
		}
	}
	if started != 1 {
		t.Errorf("Started emitted %d times, want 1", started)
	}
}

func TestThresholdBoundary(t *testing.T) {
	s := &scriptScorer{scores: map[string][]float64{"A": {Threshold, 0.69, Threshold}}}
	m := NewMachine(s)
	ctx := context.Background()
	displays := []screen.Display{dispA}

	if ev, _ := m.Scan(ctx, displays); ev != nil {
		t.Errorf("score at threshold started a break: %+v", ev)
	}
	if ev, _ := m.Scan(ctx, displays); ev == nil || ev.Kind != module.Started {
		t.Errorf("score below threshold = %+v, want Started", ev)
	}
	if ev, _ := m.Scan(ctx, displays); ev == nil || ev.Kind != module.Ended {
		t.Errorf("score at threshold while active = %+v, want Ended", ev)
	}
}

func TestScoringErrorAbortsScan(t *testing.T) {
	s := &scriptScorer{
		scores: map[string][]float64{"B": {0.1}},
		errs:   map[string]error{"A": apperr.New(apperr.CodeCaptureFailed, "xgb gone")},
	}
	m := NewMachine(s)

	ev, err := m.Scan(context.Background(), []screen.Display{dispA, dispB})
	if !apperr.IsCode(err, apperr.CodeCaptureFailed) || !apperr.IsTransient(err) {
		t.Errorf("Scan() error = %v, want transient CAPTURE_FAILED", err)
	}
	if ev != nil {
		t.Errorf("Scan() = %+v, want no transition", ev)
	}
	if len(s.calls) != 1 {
		t.Errorf("scored %v, want scan to stop at A", s.calls)
	}
}

func TestActiveDisplayDisappears(t *testing.T) {
	s := &scriptScorer{scores: map[string][]float64{"A": {0.1}, "B": {0.0}}}
	m := NewMachine(s)
	ctx := context.Background()

	if ev, _ := m.Scan(ctx, []screen.Display{dispA}); ev == nil || ev.Kind != module.Started {
		t.Fatalf("Scan() = %+v, want Started", ev)
	}
	s.calls = nil

	ev, err := m.Scan(ctx, []screen.Display{dispB})
	if err != nil {
		t.Fatal(err)
	}
	if ev == nil || ev.Kind != module.Ended {
		t.Fatalf("Scan() = %+v, want Ended", ev)
	}
	if len(s.calls) != 0 {
		t.Errorf("scored %v, want nothing on the disappearing cycle", s.calls)
	}

	// B can start a new break on the next cycle
	if ev, _ := m.Scan(ctx, []screen.Display{dispB}); ev == nil || !ev.Display.Same(dispB) {
		t.Errorf("Scan() = %+v, want Started(B)", ev)
	}
}

func TestScores(t *testing.T) {
	s := &scriptScorer{scores: map[string][]float64{"A": {0.9}, "B": {0.8}}}
	m := NewMachine(s)
	if _, err := m.Scan(context.Background(), []screen.Display{dispA, dispB}); err != nil {
		t.Fatal(err)
	}
	got := m.Scores()
	if got["A"] != 0.9 || got["B"] != 0.8 {
		t.Errorf("Scores() = %v", got)
	}
	got["A"] = 0
	if m.Scores()["A"] != 0.9 {
		t.Error("Scores() should return a copy")
	}
}

type fakeCapturer struct {
	img  image.Image
	err  error
	rect image.Rectangle
}

func (f *fakeCapturer) Displays(context.Context) ([]screen.Display, error) { return nil, nil }
func (f *fakeCapturer) Close() error                                       { return nil }

func (f *fakeCapturer) Capture(_ context.Context, r image.Rectangle) (image.Image, error) {
	f.rect = r
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

func solid(w, h int, c color.Gray) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = c.Y
	}
	return img
}

func TestPipeline(t *testing.T) {
	tmpl := &compare.Template{Image: solid(160, 90, color.Gray{Y: 200})}
	capt := &fakeCapturer{img: solid(1920, 1080, color.Gray{Y: 200})}
	p := NewPipeline(capt, compare.NewGridComparator(), tmpl)

	score, err := p.Score(context.Background(), dispB)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != 0 {
		t.Errorf("score = %v, want 0 for matching frame", score)
	}
	want := image.Rect(1920+320, 0, 1920+320+1920, 1080)
	if capt.rect != want {
		t.Errorf("captured %v, want %v", capt.rect, want)
	}

	capt.img = solid(1920, 1080, color.Gray{Y: 20})
	score, _ = p.Score(context.Background(), dispB)
	if score < Threshold {
		t.Errorf("score = %v, want >= %v for a different frame", score, Threshold)
	}
}

func TestPipelineErrors(t *testing.T) {
	tmpl := &compare.Template{Image: solid(16, 9, color.Gray{})}
	capt := &fakeCapturer{err: stderrors.New("BadMatch")}
	p := NewPipeline(capt, compare.NewGridComparator(), tmpl)

	if _, err := p.Score(context.Background(), dispA); !apperr.IsCode(err, apperr.CodeCaptureFailed) {
		t.Errorf("capture error = %v, want CAPTURE_FAILED", err)
	}

	empty := screen.Display{ID: "Z"}
	if _, err := p.Score(context.Background(), empty); !apperr.IsCode(err, apperr.CodeCaptureFailed) {
		t.Errorf("empty display error = %v, want CAPTURE_FAILED", err)
	}
}
