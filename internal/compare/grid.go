package compare

import (
	"image"

	"golang.org/x/image/draw"
)

const (
	DefaultGridSize = 16
	// DefaultCellTolerance is the brightness delta (0-255) a cell may drift
	// before it counts as different.
	DefaultCellTolerance = 3
)

// GridComparator shrinks both images to a small grayscale grid and returns
// the fraction of cells whose brightness differs by more than the tolerance.
// It is insensitive to compression noise and small overlays.
type GridComparator struct {
	Size      int
	Tolerance uint8
}

func NewGridComparator() *GridComparator {
	return &GridComparator{Size: DefaultGridSize, Tolerance: DefaultCellTolerance}
}

func (g *GridComparator) Compare(candidate, reference image.Image) (float64, error) {
	if err := checkSizes(candidate, reference); err != nil {
		return 0, err
	}
	a := g.shrink(candidate)
	b := g.shrink(reference)

	differing := 0
	for i := range a.Pix {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		if d > int(g.Tolerance) {
			differing++
		}
	}
	return float64(differing) / float64(len(a.Pix)), nil
}

func (g *GridComparator) shrink(img image.Image) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, g.Size, g.Size))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Src, nil)
	return gray
}
