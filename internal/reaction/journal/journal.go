// Package journal records every transition in a local SQLite database.
package journal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/GriffinCanCode/breakwatch/internal/config"
	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
	"github.com/GriffinCanCode/breakwatch/internal/module"
	"github.com/GriffinCanCode/breakwatch/internal/screen"
	"github.com/GriffinCanCode/breakwatch/internal/trace"
)

func init() {
	module.Register("journal", New)
}

type Journal struct {
	path string

	mu      sync.Mutex
	db      *gorm.DB
	repo    *Repository
	started time.Time
}

func New(cfg *config.Config) (module.Module, error) {
	if cfg.Journal.Path == "" {
		return nil, apperr.New(apperr.CodeConfigInvalid, "JOURNAL_PATH is empty")
	}
	return &Journal{path: cfg.Journal.Path}, nil
}

func (j *Journal) Title() string { return "journal" }

// Initialize opens the database and migrates the schema.
func (j *Journal) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return apperr.Wrap(err, apperr.CodeConfigInvalid, "create journal directory")
	}
	db, err := gorm.Open(sqlite.Open(j.path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return apperr.Wrap(errors.Wrap(err, "failed to open database"), apperr.CodeUnavailable, j.path)
	}
	if err := db.WithContext(ctx).AutoMigrate(&Transition{}); err != nil {
		return apperr.Wrap(errors.Wrap(err, "failed to migrate schema"), apperr.CodeInternal, j.path)
	}

	repo := NewRepository(db.WithContext(context.Background()))
	last, err := repo.LastStarted()
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, j.path)
	}

	j.mu.Lock()
	j.db, j.repo = db, repo
	j.mu.Unlock()

	n, _ := repo.Count(module.Started.String())
	log := trace.Logger(ctx)
	if last != nil {
		log.Info("journal opened", "path", j.path, "breaks", n, "last_break", last.At)
	} else {
		log.Info("journal opened", "path", j.path, "breaks", n)
	}
	return nil
}

func (j *Journal) OnStarted(ctx context.Context, d screen.Display) error {
	now := time.Now()
	j.mu.Lock()
	j.started = now
	j.mu.Unlock()
	return j.record(ctx, &Transition{
		Kind:        module.Started.String(),
		DisplayID:   d.ID,
		DisplayName: d.Name,
		Width:       d.Bounds.Width,
		Height:      d.Bounds.Height,
		At:          now,
	})
}

func (j *Journal) OnEnded(ctx context.Context) error {
	now := time.Now()
	t := &Transition{Kind: module.Ended.String(), At: now}
	j.mu.Lock()
	if !j.started.IsZero() {
		t.BreakSeconds = now.Sub(j.started).Seconds()
		j.started = time.Time{}
	}
	j.mu.Unlock()
	return j.record(ctx, t)
}

func (j *Journal) record(ctx context.Context, t *Transition) error {
	j.mu.Lock()
	db := j.db
	j.mu.Unlock()
	if db == nil {
		return apperr.New(apperr.CodeUnavailable, "journal not initialized")
	}
	t.EventID = uuid.NewString()
	if err := NewRepository(db.WithContext(ctx)).Create(t); err != nil {
		return apperr.Wrap(err, apperr.CodeModuleDispatchFailed, "journal write")
	}
	return nil
}

// Repository returns the journal's repository, or nil before Initialize.
func (j *Journal) Repository() *Repository {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.repo
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	j.db, j.repo = nil, nil
	return sqlDB.Close()
}
