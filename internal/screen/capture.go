// Package screen enumerates display outputs, maps them to capture regions
// that match the reference template's shape, and grabs their pixels.
package screen

import (
	"context"
	"fmt"
	"image"
)

// Rect is a rectangle in virtual-desktop coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Display is one display output as seen during a single polling pass.
type Display struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Bounds Rect   `json:"bounds"`
}

// Same reports whether d and other refer to the same output.
func (d Display) Same(other Display) bool { return d.ID == other.ID }

func (d Display) String() string {
	return fmt.Sprintf("%s (%dx%d+%d+%d)", d.Name, d.Bounds.Width, d.Bounds.Height, d.Bounds.X, d.Bounds.Y)
}

// Capturer is the pixel-capture capability the detector depends on.
type Capturer interface {
	// Displays lists the currently attached outputs in a stable order.
	Displays(ctx context.Context) ([]Display, error)
	// Capture grabs the given rectangle of the virtual desktop.
	Capture(ctx context.Context, r image.Rectangle) (image.Image, error)
	Close() error
}
