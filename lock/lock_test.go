package lock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireThenReleaseRoundTrips(t *testing.T) {
	root := t.TempDir()

	l, err := Acquire(root, "ES", "run-1")
	require.NoError(t, err)

	path := lockPath(root, "ES")
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquireFailsWhenFreshLockHeld(t *testing.T) {
	root := t.TempDir()

	_, err := Acquire(root, "ES", "run-1")
	require.NoError(t, err)

	_, err = Acquire(root, "ES", "run-2")
	assert.Error(t, err)
}

func TestAcquireReclaimsStaleLock(t *testing.T) {
	root := t.TempDir()
	path := lockPath(root, "ES")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	body, err := json.Marshal(fileContents{RunID: "stale-run", AcquiredAtUTC: time.Now().Add(-StaleThreshold * 2), CanonicalInstrument: "ES"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	// Back-date the file's mtime itself: staleness is judged by mtime, not
	// the JSON body's acquired_at_utc.
	staleTime := time.Now().Add(-StaleThreshold * 2)
	require.NoError(t, os.Chtimes(path, staleTime, staleTime))

	l, err := Acquire(root, "ES", "run-2")
	require.NoError(t, err)
	assert.Equal(t, "run-2", l.runID)
}

func TestReleaseDoesNotStealSuccessorLock(t *testing.T) {
	root := t.TempDir()
	path := lockPath(root, "ES")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	staleTime := time.Now().Add(-StaleThreshold * 2)
	body, err := json.Marshal(fileContents{RunID: "run-1", AcquiredAtUTC: staleTime, CanonicalInstrument: "ES"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	require.NoError(t, os.Chtimes(path, staleTime, staleTime))

	stale := &Lock{path: path, runID: "run-1", canonicalInstrument: "ES"}

	// A successor reclaims the same path.
	_, err = Acquire(root, "ES", "run-2")
	require.NoError(t, err)

	// The original (now stale) holder's Release must not delete run-2's lock.
	require.NoError(t, stale.Release())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
