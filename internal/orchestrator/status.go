package orchestrator

import (
	"time"

	"github.com/GriffinCanCode/breakwatch/internal/module"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
)

// Status is the snapshot published after every polling cycle.
type Status struct {
	State          string             `json:"state"`
	Active         *screen.Display    `json:"active,omitempty"`
	Displays       []screen.Display   `json:"displays"`
	Scores         map[string]float64 `json:"scores"`
	Modules        []string           `json:"modules"`
	Breakers       map[string]string  `json:"breakers"`
	Cycles         uint64             `json:"cycles"`
	LastEvent      *module.Event      `json:"last_event,omitempty"`
	LastTransition time.Time          `json:"last_transition,omitzero"`
	LastError      string             `json:"last_error,omitempty"`
	LastErrorAt    time.Time          `json:"last_error_at,omitzero"`
	Failures       []ModuleFailure    `json:"failures,omitempty"`
}

// ModuleFailure is a failed notification from the latest transition.
type ModuleFailure struct {
	Module string `json:"module"`
	Error  string `json:"error"`
}
