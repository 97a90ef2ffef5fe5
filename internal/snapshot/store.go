package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/czkultura/dataserve/internal/dataset"
	"github.com/czkultura/dataserve/internal/logger"
)

// ErrNotFound is returned when a dataset has no snapshot file on disk, either
// because none is configured or because the configured file is missing.
var ErrNotFound = errors.New("snapshot not found")

// DecodeError marks a snapshot file that exists but cannot be turned into a
// valid record. Callers distinguish it from ErrNotFound because a corrupt
// file deserves a louder diagnosis than an absent one.
type DecodeError struct {
	Dataset string
	Path    string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("snapshot %s (%s) is corrupt: %v", e.Dataset, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Store reads and writes dataset snapshot files. Reads go through the
// dataset's codec and validation, so a successful Read always yields a
// well-formed record. Writes are atomic: the file on disk is either the old
// snapshot or the new one, never a partial write.
type Store struct {
	mu sync.Mutex
}

func NewStore() *Store {
	return &Store{}
}

// Read loads and validates the dataset's snapshot.
func (s *Store) Read(ds dataset.Dataset) (dataset.Record, error) {
	if !ds.HasSnapshot() {
		return nil, fmt.Errorf("%s: no snapshot configured: %w", ds.Name, ErrNotFound)
	}

	data, err := os.ReadFile(ds.SnapshotFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %s: %w", ds.Name, ds.SnapshotFile, ErrNotFound)
		}
		return nil, fmt.Errorf("read snapshot %s: %w", ds.SnapshotFile, err)
	}

	rec, err := ds.Codec.Decode(data)
	if err != nil {
		return nil, &DecodeError{Dataset: ds.Name, Path: ds.SnapshotFile, Err: err}
	}
	if err := rec.Validate(); err != nil {
		return nil, &DecodeError{Dataset: ds.Name, Path: ds.SnapshotFile, Err: err}
	}
	return rec, nil
}

// Write validates the record and replaces the dataset's snapshot atomically
// via a temp file in the same directory followed by a rename.
func (s *Store) Write(ds dataset.Dataset, rec dataset.Record) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if !ds.HasSnapshot() {
		return fmt.Errorf("%s: no snapshot configured", ds.Name)
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validate before write: %w", err)
	}

	payload, err := ds.Codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(ds.SnapshotFile)
	base := filepath.Base(ds.SnapshotFile)

	tmpFile, err := os.CreateTemp(dir, base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), ds.SnapshotFile); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}

	logger.WithDataset("snapshot", ds.Name).WithField("bytes", len(payload)).
		Debug("snapshot written")
	return nil
}
