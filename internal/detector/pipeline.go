package detector

import (
	"context"

	"github.com/GriffinCanCode/breakwatch/internal/compare"
	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
)

// Scorer produces a difference score for one display.
type Scorer interface {
	Score(ctx context.Context, display screen.Display) (float64, error)
}

// Pipeline scores a display by cropping it to the template's shape,
// scaling the crop to the template's size and comparing the two.
type Pipeline struct {
	capturer   screen.Capturer
	comparator compare.Comparator
	template   *compare.Template
}

func NewPipeline(capturer screen.Capturer, comparator compare.Comparator, template *compare.Template) *Pipeline {
	return &Pipeline{capturer: capturer, comparator: comparator, template: template}
}

func (p *Pipeline) Score(ctx context.Context, display screen.Display) (float64, error) {
	region := screen.ComputeRegion(display, p.template.Aspect())
	if region.Empty() {
		return 0, apperr.New(apperr.CodeCaptureFailed, "empty capture region").
			WithMetadata("display", display.ID)
	}

	img, err := p.capturer.Capture(ctx, region.Rect(display))
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return 0, err
		}
		return 0, apperr.Wrap(err, apperr.CodeCaptureFailed, "capture").WithMetadata("display", display.ID)
	}

	frame := compare.Resize(img, p.template.Width(), p.template.Height())
	score, err := p.comparator.Compare(frame, p.template.Image)
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return 0, err
		}
		return 0, apperr.Wrap(err, apperr.CodeCompareFailed, "compare").WithMetadata("display", display.ID)
	}
	return score, nil
}
