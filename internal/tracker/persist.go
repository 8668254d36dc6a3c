package tracker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"jobapplicator/internal/formatters"
	"jobapplicator/internal/types"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// store rewrites both output files from the full outcome list while holding
// the directory lock.
func (t *Tracker) store(outcomes []types.ApplicationOutcome) error {
	if err := os.MkdirAll(t.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(t.lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.LockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", t.lockPath, err)
	}
	if !locked {
		return fmt.Errorf("acquire lock %s: timed out", t.lockPath)
	}
	defer func() { _ = lock.Unlock() }()

	var csvBuf, textBuf bytes.Buffer
	if err := formatters.WriteOutcomesCSV(&csvBuf, outcomes); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	if err := formatters.WriteOutcomesText(&textBuf, outcomes); err != nil {
		return fmt.Errorf("encode text: %w", err)
	}

	if err := writeAtomic(t.csvPath, csvBuf.Bytes()); err != nil {
		return err
	}
	return writeAtomic(t.textPath, textBuf.Bytes())
}

// writeAtomic replaces path with data via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func readOutcomes(r io.Reader) ([]types.ApplicationOutcome, error) {
	outcomes, err := formatters.ReadOutcomesCSV(r, time.Local)
	if err != nil {
		return nil, fmt.Errorf("parse outcome log: %w", err)
	}
	return outcomes, nil
}
