// Package detector decides when a break starts and ends from per-display
// difference scores.
package detector

import (
	"context"
	"maps"

	"github.com/GriffinCanCode/breakwatch/internal/module"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
	"github.com/GriffinCanCode/breakwatch/internal/trace"
)

// Threshold separates a match (below) from a non-match (at or above).
const Threshold = 0.70

// Machine tracks whether a break is active and on which display. It is
// driven by a single goroutine and is not safe for concurrent use.
type Machine struct {
	scorer Scorer
	active *screen.Display
	scores map[string]float64
}

func NewMachine(scorer Scorer) *Machine {
	return &Machine{scorer: scorer, scores: make(map[string]float64)}
}

// Active returns the display the break was detected on, if any.
func (m *Machine) Active() (screen.Display, bool) {
	if m.active == nil {
		return screen.Display{}, false
	}
	return *m.active, true
}

// Scores returns the scores computed by the most recent Scan, keyed by
// display ID.
func (m *Machine) Scores() map[string]float64 {
	return maps.Clone(m.scores)
}

// Scan evaluates displays in order and returns the transition they cause, or
// nil. While a break is active only its display is evaluated. The first
// display below threshold wins when idle. A scoring error ends the scan
// without a transition.
func (m *Machine) Scan(ctx context.Context, displays []screen.Display) (*module.Event, error) {
	clear(m.scores)
	log := trace.Logger(ctx)

	if m.active != nil && !present(displays, *m.active) {
		log.Warn("active display disappeared, ending break", "display", m.active.ID)
		m.active = nil
		ev := module.EndedEvent()
		return &ev, nil
	}

	for _, d := range displays {
		if m.active != nil && !m.active.Same(d) {
			continue
		}

		score, err := m.scorer.Score(ctx, d)
		if err != nil {
			return nil, err
		}
		m.scores[d.ID] = score
		log.Debug("display scored", "display", d.ID, "score", score)

		switch {
		case m.active == nil && score < Threshold:
			active := d
			m.active = &active
			ev := module.StartedEvent(d)
			return &ev, nil
		case m.active != nil && score >= Threshold:
			m.active = nil
			ev := module.EndedEvent()
			return &ev, nil
		}
	}
	return nil, nil
}

func present(displays []screen.Display, d screen.Display) bool {
	for _, x := range displays {
		if x.Same(d) {
			return true
		}
	}
	return false
}
