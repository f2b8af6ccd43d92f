package screen

import (
	"image"
	"math"
)

// AspectEpsilon is the tolerance for treating a display as having exactly
// the reference aspect ratio.
const AspectEpsilon = 0.001

// Fit classifies a display's shape relative to the reference.
type Fit int

const (
	Matches Fit = iota
	Wider       // pillarboxed: bars left and right
	Taller      // letterboxed: bars top and bottom
)

func (f Fit) String() string {
	return [...]string{"matches", "wider", "taller"}[f]
}

// Region is the part of a display, relative to its origin, whose aspect
// ratio matches the reference template.
type Region struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	XOffset int `json:"x_offset"`
	YOffset int `json:"y_offset"`
}

// Empty reports whether the region has no pixels.
func (r Region) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Rect converts the region to absolute desktop coordinates.
func (r Region) Rect(d Display) image.Rectangle {
	x := d.Bounds.X + r.XOffset
	y := d.Bounds.Y + r.YOffset
	return image.Rect(x, y, x+r.Width, y+r.Height)
}

// Classify compares the display's aspect ratio with aspect.
func Classify(d Display, aspect float64) Fit {
	ratio := float64(d.Bounds.Width) / float64(d.Bounds.Height)
	switch {
	case math.Abs(ratio-aspect) <= AspectEpsilon:
		return Matches
	case ratio > aspect:
		return Wider
	default:
		return Taller
	}
}

// ComputeRegion centres the largest rectangle of the given aspect ratio on
// the display. Degenerate displays or ratios yield an empty region.
func ComputeRegion(d Display, aspect float64) Region {
	w, h := d.Bounds.Width, d.Bounds.Height
	if w <= 0 || h <= 0 || aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		return Region{}
	}

	switch Classify(d, aspect) {
	case Matches:
		return Region{Width: w, Height: h}
	case Wider:
		width := min(int(math.Round(float64(h)*aspect)), w)
		return Region{Width: width, Height: h, XOffset: (w - width) / 2}
	default:
		height := min(int(math.Round(float64(w)/aspect)), h)
		return Region{Width: w, Height: height, YOffset: (h - height) / 2}
	}
}
