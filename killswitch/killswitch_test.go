package killswitch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEnabledFailsClosedOnMissingFile(t *testing.T) {
	ks := New(filepath.Join(t.TempDir(), "does_not_exist.json"))
	assert.True(t, ks.IsEnabled())
}

func TestIsEnabledFailsClosedOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kill_switch.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	ks := New(path)
	assert.True(t, ks.IsEnabled())
}

func TestIsEnabledReadsValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kill_switch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"enabled": false}`), 0o644))

	ks := New(path)
	assert.False(t, ks.IsEnabled())
}

func TestSetThenReadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kill_switch.json")
	require.NoError(t, Set(path, true, "operator paused trading"))

	ks := New(path)
	assert.True(t, ks.IsEnabled())
	assert.Equal(t, "operator paused trading", ks.Message())
}

func TestPathAccessor(t *testing.T) {
	ks := New("/tmp/whatever.json")
	assert.Equal(t, "/tmp/whatever.json", ks.Path())
}
