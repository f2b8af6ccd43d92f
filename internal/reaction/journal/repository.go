package journal

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Repository handles database operations for transitions.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a transition.
func (r *Repository) Create(t *Transition) error {
	if err := r.db.Create(t).Error; err != nil {
		return errors.Wrap(err, "failed to insert transition")
	}
	return nil
}

// LastStarted returns the most recent "started" row, or nil if there is none.
func (r *Repository) LastStarted() (*Transition, error) {
	var t Transition
	err := r.db.Where("kind = ?", "started").Order("at DESC").First(&t).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query last started transition")
	}
	return &t, nil
}

// Since returns transitions at or after since, oldest first.
func (r *Repository) Since(since time.Time) ([]Transition, error) {
	var ts []Transition
	if err := r.db.Where("at >= ?", since).Order("at ASC").Find(&ts).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query transitions")
	}
	return ts, nil
}

// Count returns the number of rows of the given kind.
func (r *Repository) Count(kind string) (int64, error) {
	var n int64
	if err := r.db.Model(&Transition{}).Where("kind = ?", kind).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count transitions")
	}
	return n, nil
}
