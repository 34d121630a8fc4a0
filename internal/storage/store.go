// Package storage keeps a journal of planning episodes on disk, one JSON
// file per episode, written atomically.
package storage

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	episodeSuffix = ".episode.json"
	// pruneLockName is the file Prune locks inside the journal directory.
	pruneLockName = "prune.lock"
)

var (
	// ErrNotFound is returned by Load for an unknown episode id.
	ErrNotFound = errors.New("episode not found")
	// ErrWouldBlock signals that a non-blocking lock attempt failed because
	// another process holds the lock.
	ErrWouldBlock = errors.New("file lock would block")
)

// DefaultDirectory returns {UserConfigDir}/harvest/episodes.
func DefaultDirectory() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "harvest", "episodes"), nil
}

// Store is an episode journal rooted at a directory.
type Store struct {
	dir string
}

// Open returns a store over dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("storage: empty directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create episode directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the journal directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("invalid episode id %q: %w", id, err)
	}
	return filepath.Join(s.dir, id+episodeSuffix), nil
}

// Save persists ep, replacing any earlier record with the same id.
func (s *Store) Save(ep *Episode) error {
	if ep == nil {
		return errors.New("storage: nil episode")
	}
	path, err := s.path(ep.ID)
	if err != nil {
		return err
	}
	ep.Version = CurrentSchemaVersion
	data, err := json.MarshalIndent(ep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal episode: %w", err)
	}
	if err := AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write episode file: %w", err)
	}
	slog.Debug("[storage] episode saved", "id", ep.ID, "path", path)
	return nil
}

// Load reads one episode.
func (s *Store) Load(id string) (*Episode, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	return readEpisode(path, id)
}

func readEpisode(path, id string) (*Episode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read episode file: %w", err)
	}
	var ep Episode
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal episode %s: %w", id, err)
	}
	if ep.Version != CurrentSchemaVersion {
		return nil, fmt.Errorf("episode %s has unsupported schema version %q", id, ep.Version)
	}
	if ep.ID != id {
		return nil, fmt.Errorf("episode file %s holds mismatched id %q", id, ep.ID)
	}
	return &ep, nil
}

// List returns every readable episode, oldest first. Unreadable files are
// logged and skipped.
func (s *Store) List() ([]*Episode, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []*Episode
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, episodeSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, episodeSuffix)
		path, err := s.path(id)
		if err != nil {
			slog.Warn("[storage] skipping episode", "file", name, "error", err)
			continue
		}
		ep, err := readEpisode(path, id)
		if err != nil {
			slog.Warn("[storage] skipping episode", "file", name, "error", err)
			continue
		}
		out = append(out, ep)
	}
	slices.SortFunc(out, func(a, b *Episode) int {
		return cmp.Or(a.StartedAt.Compare(b.StartedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Retention bounds the journal. Zero fields are not enforced.
type Retention struct {
	MaxCount int
	MaxAge   time.Duration
}

// PruneReport lists the episodes Prune removed.
type PruneReport struct {
	Removed []string
	Kept    int
}

// Prune deletes episodes outside r. Only one process prunes a directory at a
// time; a concurrent attempt fails with ErrWouldBlock.
func (s *Store) Prune(r Retention, now time.Time) (*PruneReport, error) {
	unlock, err := s.lockPrune()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire prune lock: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			slog.Warn("[storage] failed to release prune lock", "dir", s.dir, "error", err)
		}
	}()

	episodes, err := s.List()
	if err != nil {
		return nil, err
	}

	remove := make(map[string]bool)
	if r.MaxAge > 0 {
		cutoff := now.Add(-r.MaxAge)
		for _, ep := range episodes {
			if ep.StartedAt.Before(cutoff) {
				remove[ep.ID] = true
			}
		}
	}
	if r.MaxCount > 0 && len(episodes) > r.MaxCount {
		// oldest first, so the excess is at the front
		for _, ep := range episodes[:len(episodes)-r.MaxCount] {
			remove[ep.ID] = true
		}
	}

	report := &PruneReport{}
	var errs []error
	for _, ep := range episodes {
		if !remove[ep.ID] {
			report.Kept++
			continue
		}
		path, err := s.path(ep.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		report.Removed = append(report.Removed, ep.ID)
	}
	return report, errors.Join(errs...)
}

// lockPrune takes the journal's prune lock without blocking. The returned
// func releases it and removes the lock file.
func (s *Store) lockPrune() (func() error, error) {
	f, err := os.OpenFile(filepath.Join(s.dir, pruneLockName), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := tryLock(f); err != nil {
		f.Close()
		return nil, err
	}
	return func() error {
		err1 := unlockFile(f)
		err2 := f.Close()
		err3 := os.Remove(f.Name())
		if os.IsNotExist(err3) {
			err3 = nil
		}
		return errors.Join(err1, err2, err3)
	}, nil
}
