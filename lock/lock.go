// Package lock implements CanonicalMarketLock: filesystem-based mutual
// exclusion for a canonical instrument across processes, held for the
// lifetime of the process that acquires it.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StaleThreshold is the wall-clock age beyond which a lock file is
// considered abandoned and reclaimable.
const StaleThreshold = 10 * time.Minute

// fileContents is the JSON body of a lock file.
type fileContents struct {
	RunID               string    `json:"run_id"`
	AcquiredAtUTC       time.Time `json:"acquired_at_utc"`
	CanonicalInstrument string    `json:"canonical_instrument"`
}

// Lock is a held CanonicalMarketLock for one instrument.
type Lock struct {
	path                string
	runID               string
	canonicalInstrument string

	// Reclaimed is true when this lock was acquired by taking over a
	// stale lock file left behind by a process that never released it,
	// rather than by writing a fresh one.
	Reclaimed bool
}

func lockPath(projectRoot, canonicalInstrument string) string {
	return filepath.Join(projectRoot, "runtime_locks", fmt.Sprintf("canonical_%s.lock", canonicalInstrument))
}

// Acquire attempts to take the lock for canonicalInstrument. If an
// existing lock file is younger than StaleThreshold, acquisition fails
// closed (do not start). An unreadable file, or one at least as old as
// the threshold, is reclaimed.
func Acquire(projectRoot, canonicalInstrument, runID string) (*Lock, error) {
	path := lockPath(projectRoot, canonicalInstrument)
	reclaimed := false

	if info, err := os.Stat(path); err == nil {
		fresh := time.Since(info.ModTime()) < StaleThreshold
		if fresh {
			var held fileContents
			if data, rerr := os.ReadFile(path); rerr != nil || json.Unmarshal(data, &held) != nil {
				fresh = false // unreadable: reclaim
			}
		}
		if fresh {
			return nil, fmt.Errorf(
				"lock: canonical market %s is held by another process (lock age %s < stale threshold %s)",
				canonicalInstrument, time.Since(info.ModTime()), StaleThreshold)
		}
		// Stale: fall through and reclaim.
		reclaimed = true
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("lock: stat %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("lock: mkdir: %w", err)
	}
	body := fileContents{RunID: runID, AcquiredAtUTC: time.Now().UTC(), CanonicalInstrument: canonicalInstrument}
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("lock: marshal: %w", err)
	}
	// Inability to write the file is fail-closed: do not run.
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("lock: write %s: %w", path, err)
	}

	return &Lock{path: path, runID: runID, canonicalInstrument: canonicalInstrument, Reclaimed: reclaimed}, nil
}

// Release deletes the lock file only if it still belongs to this run —
// never steal a successor's lock that reclaimed the same path after this
// one went stale.
func (l *Lock) Release() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("lock: read %s for release check: %w", l.path, err)
	}
	var body fileContents
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("lock: unparseable lock file on release: %w", err)
	}
	if body.RunID != l.runID {
		// A successor reclaimed this lock after we went stale; not ours
		// to delete.
		return nil
	}
	return os.Remove(l.path)
}

// Dispose releases the lock best-effort; failures are logged and ignored
// by the caller, since a stale-reclaim on the next run will clean up.
func (l *Lock) Dispose() error {
	return l.Release()
}
