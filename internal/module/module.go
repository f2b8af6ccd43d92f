// Package module defines reaction modules and the engine that discovers,
// initializes and notifies them.
package module

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/breakwatch/internal/screen"
)

// Module reacts to the start and end of a detected break.
type Module interface {
	Title() string
	Initialize(ctx context.Context) error
	OnStarted(ctx context.Context, display screen.Display) error
	OnEnded(ctx context.Context) error
}

// Kind is the transition an Event reports.
type Kind int

const (
	Started Kind = iota
	Ended
)

func (k Kind) String() string {
	if k == Ended {
		return "ended"
	}
	return "started"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is one detector transition. Display is the zero value for Ended.
type Event struct {
	ID      uuid.UUID      `json:"id"`
	Kind    Kind           `json:"kind"`
	Display screen.Display `json:"display,omitzero"`
	At      time.Time      `json:"at"`
}

// StartedEvent reports a break beginning on display.
func StartedEvent(display screen.Display) Event {
	return Event{ID: uuid.New(), Kind: Started, Display: display, At: time.Now()}
}

// EndedEvent reports the active break finishing.
func EndedEvent() Event {
	return Event{ID: uuid.New(), Kind: Ended, At: time.Now()}
}

// CloseAll closes the modules that hold resources, in reverse order.
func CloseAll(modules []Module) error {
	var errs []error
	for i := len(modules) - 1; i >= 0; i-- {
		if c, ok := modules[i].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
