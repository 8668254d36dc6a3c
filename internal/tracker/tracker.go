// Package tracker keeps the append-only log of application outcomes and
// persists it as a CSV table and a human-readable text file.
package tracker

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/types"
)

const fileTimeLayout = "20060102_150405"

// Recorder receives persistence failures.
type Recorder interface {
	RecordPersistenceFailure()
}

type noopRecorder struct{}

func (noopRecorder) RecordPersistenceFailure() {}

// Tracker is an append-only, insertion-ordered list of outcomes.
type Tracker struct {
	mu       sync.Mutex
	outcomes []types.ApplicationOutcome
	dirty    bool
	// failed is set when the last write did not complete; the next Record
	// retries regardless of cadence.
	failed bool

	cfg      config.TrackerConfig
	csvPath  string
	textPath string
	lockPath string
	logger   *errors.Logger
	recorder Recorder
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRecorder reports persistence failures to r.
func WithRecorder(r Recorder) Option {
	return func(t *Tracker) {
		if r != nil {
			t.recorder = r
		}
	}
}

// WithStartTime fixes the timestamp used in output file names.
func WithStartTime(ts time.Time) Option {
	return func(t *Tracker) { t.setPaths(ts) }
}

// New creates an empty tracker. Output file names are fixed here and reused
// by every subsequent persist.
func New(cfg config.TrackerConfig, logger *errors.Logger, opts ...Option) *Tracker {
	if cfg.PersistEvery < 1 {
		cfg.PersistEvery = 1
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = "successful_applications"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 10 * time.Second
	}

	t := &Tracker{
		cfg:      cfg,
		logger:   logger,
		recorder: noopRecorder{},
		lockPath: filepath.Join(cfg.OutputDir, "."+cfg.FilePrefix+".lock"),
	}
	t.setPaths(time.Now())
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) setPaths(ts time.Time) {
	base := fmt.Sprintf("%s_%s", t.cfg.FilePrefix, ts.Format(fileTimeLayout))
	t.csvPath = filepath.Join(t.cfg.OutputDir, base+".csv")
	t.textPath = filepath.Join(t.cfg.OutputDir, base+".txt")
}

// Record appends outcome and persists the log when the cadence or a previous
// failure calls for it. A persistence error leaves the in-memory log intact.
func (t *Tracker) Record(outcome types.ApplicationOutcome) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.outcomes = append(t.outcomes, outcome)
	t.dirty = true

	if len(t.outcomes)%t.cfg.PersistEvery != 0 && !t.failed {
		return nil
	}
	return t.persistLocked()
}

// Flush persists any outcomes not yet written.
func (t *Tracker) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.dirty {
		return nil
	}
	return t.persistLocked()
}

// All returns a copy of the outcomes in insertion order.
func (t *Tracker) All() []types.ApplicationOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]types.ApplicationOutcome, len(t.outcomes))
	copy(out, t.outcomes)
	return out
}

// Len returns the number of recorded outcomes.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.outcomes)
}

// Paths returns the CSV and text file paths.
func (t *Tracker) Paths() (csvPath, textPath string) {
	return t.csvPath, t.textPath
}

func (t *Tracker) persistLocked() error {
	snapshot := t.outcomes
	if err := t.store(snapshot); err != nil {
		t.failed = true
		t.recorder.RecordPersistenceFailure()
		appErr := errors.NewPersistenceError(errors.ErrCodePersistenceFailed, "failed to persist application outcomes", err).
			WithContext("csv_path", t.csvPath).
			WithContext("outcomes", len(snapshot))
		t.logger.LogError(appErr, "Persisting outcomes failed", "csv_path", t.csvPath)
		return appErr
	}

	t.failed = false
	t.dirty = false
	t.logger.Debug("Outcomes persisted", "csv_path", t.csvPath, "text_path", t.textPath, "count", len(snapshot))
	return nil
}

// ReadCSV loads outcomes from a CSV file written by a Tracker.
func ReadCSV(path string) ([]types.ApplicationOutcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to open outcome log", err)
	}
	defer func() { _ = f.Close() }()
	return readOutcomes(f)
}
