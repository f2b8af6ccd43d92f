package compare

import (
	"image"
	"sync"

	"github.com/corona10/goimagehash"

	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
)

// HashKind selects the perceptual hash algorithm.
type HashKind int

const (
	PerceptionHash HashKind = iota
	AverageHash
	DifferenceHash
)

const hashBits = 64

// HashComparator scores by Hamming distance between 64-bit perceptual
// hashes. Unrelated images differ in about half the bits, so the distance is
// scaled by two: identical frames score 0 and unrelated frames score near 1.
type HashComparator struct {
	kind HashKind

	mu      sync.Mutex
	ref     image.Image
	refHash *goimagehash.ImageHash
}

func NewHashComparator(kind HashKind) *HashComparator {
	return &HashComparator{kind: kind}
}

func (h *HashComparator) Compare(candidate, reference image.Image) (float64, error) {
	if err := checkSizes(candidate, reference); err != nil {
		return 0, err
	}
	refHash, err := h.referenceHash(reference)
	if err != nil {
		return 0, err
	}
	candHash, err := h.hash(candidate)
	if err != nil {
		return 0, err
	}
	dist, err := candHash.Distance(refHash)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.CodeCompareFailed, "hash distance")
	}
	return min(1, 2*float64(dist)/hashBits), nil
}

// referenceHash caches the template's hash; the template is loaded once and
// always passed as the same pointer.
func (h *HashComparator) referenceHash(reference image.Image) (*goimagehash.ImageHash, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refHash != nil && h.ref == reference {
		return h.refHash, nil
	}
	hash, err := h.hash(reference)
	if err != nil {
		return nil, err
	}
	h.ref, h.refHash = reference, hash
	return hash, nil
}

func (h *HashComparator) hash(img image.Image) (*goimagehash.ImageHash, error) {
	var (
		hash *goimagehash.ImageHash
		err  error
	)
	switch h.kind {
	case AverageHash:
		hash, err = goimagehash.AverageHash(img)
	case DifferenceHash:
		hash, err = goimagehash.DifferenceHash(img)
	default:
		hash, err = goimagehash.PerceptionHash(img)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeCompareFailed, "perceptual hash")
	}
	return hash, nil
}
