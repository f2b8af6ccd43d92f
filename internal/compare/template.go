package compare

import (
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"

	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
)

// Template is the reference image of an active event.
type Template struct {
	Image image.Image
	Path  string
}

// LoadTemplate decodes a PNG or JPEG reference image.
func LoadTemplate(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.CodeConfigMissing, "open template %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.CodeTemplateInvalid, "decode template %s", path)
	}
	if img.Bounds().Empty() {
		return nil, apperr.Newf(apperr.CodeTemplateInvalid, "template %s has no pixels", path)
	}
	return &Template{Image: img, Path: path}, nil
}

func (t *Template) Width() int  { return t.Image.Bounds().Dx() }
func (t *Template) Height() int { return t.Image.Bounds().Dy() }

// Aspect is the template's width/height ratio.
func (t *Template) Aspect() float64 {
	return float64(t.Width()) / float64(t.Height())
}
