package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// StaleLockAge is how old a lock file must be before it is assumed to be
// left over from a crashed run.
const StaleLockAge = time.Hour

// Lock guards a source against overlapping runs, including runs in other
// processes sharing the state directory.
type Lock struct {
	path string
}

// Lock acquires the run lock for sourceID. It returns ErrSourceBusy when a
// fresh lock is held by someone else.
func (s *Store) Lock(sourceID string) (*Lock, error) {
	path := filepath.Join(s.dir, sourceID+".lock")

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d\n%s\n", os.Getpid(), strconv.FormatInt(time.Now().Unix(), 10))
			f.Close()
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock: %w", err)
		}

		info, statErr := os.Stat(path)
		if statErr != nil || time.Since(info.ModTime()) < StaleLockAge {
			return nil, ErrSourceBusy
		}
		// Stale lock from a crashed run.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	return nil, ErrSourceBusy
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
