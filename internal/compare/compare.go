// Package compare scores how different a captured frame is from the
// reference template. Scores are in [0,1]; lower means more similar.
package compare

import (
	"image"

	"golang.org/x/image/draw"

	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
)

// Comparator returns a normalized difference score for two images of equal
// size.
type Comparator interface {
	Compare(candidate, reference image.Image) (float64, error)
}

// New returns the comparator registered under name.
func New(name string) (Comparator, error) {
	switch name {
	case "grid", "":
		return NewGridComparator(), nil
	case "phash":
		return NewHashComparator(PerceptionHash), nil
	case "ahash":
		return NewHashComparator(AverageHash), nil
	case "dhash":
		return NewHashComparator(DifferenceHash), nil
	default:
		return nil, apperr.Newf(apperr.CodeConfigInvalid, "unknown comparator %q", name)
	}
}

// Resize scales img to w×h. Images that already have that size are
// returned unchanged.
func Resize(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func checkSizes(candidate, reference image.Image) error {
	if candidate == nil || reference == nil {
		return apperr.New(apperr.CodeCompareFailed, "nil image")
	}
	cb, rb := candidate.Bounds(), reference.Bounds()
	if cb.Empty() || rb.Empty() {
		return apperr.New(apperr.CodeCompareFailed, "empty image")
	}
	if cb.Dx() != rb.Dx() || cb.Dy() != rb.Dy() {
		return apperr.Newf(apperr.CodeCompareFailed, "size mismatch: candidate %dx%d, reference %dx%d",
			cb.Dx(), cb.Dy(), rb.Dx(), rb.Dy())
	}
	return nil
}
