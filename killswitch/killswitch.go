// Package killswitch implements the global, fail-closed kill switch: a
// cached read of a single JSON config file that, when unreadable,
// unparseable, or missing, reports "enabled" rather than "disabled".
package killswitch

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// CacheTTL is how long a read of the kill switch state is trusted before
// the file is re-read.
const CacheTTL = 5 * time.Second

type state struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message,omitempty"`
}

// KillSwitch is the TTL-cached reader of {project}/configs/robot/kill_switch.json.
type KillSwitch struct {
	path string

	mu        sync.Mutex
	cached    bool
	cachedAt  time.Time
	lastMsg   string
	lastErr   error
}

// New constructs a KillSwitch reading path.
func New(path string) *KillSwitch {
	return &KillSwitch{path: path}
}

// IsEnabled reports whether order submission is currently blocked.
// Missing file, unparseable content, or any I/O error fails closed
// (returns true).
func (k *KillSwitch) IsEnabled() bool {
	enabled, _ := k.check()
	return enabled
}

// Message returns the operator-supplied reason from the last successful
// read, if any.
func (k *KillSwitch) Message() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lastMsg
}

// Path returns the backing file path, for callers that need to route a
// mutation through the package-level Set function.
func (k *KillSwitch) Path() string { return k.path }

// LastError returns the error behind the most recent fail-closed read, or
// nil when the last read succeeded. It lets a caller distinguish an
// operator-enabled kill switch from one that's fail-closed only because the
// backing file couldn't be read or parsed.
func (k *KillSwitch) LastError() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lastErr
}

func (k *KillSwitch) check() (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if time.Since(k.cachedAt) < CacheTTL && !k.cachedAt.IsZero() {
		return k.cached, k.lastErr
	}

	data, err := os.ReadFile(k.path)
	if err != nil {
		k.cached, k.cachedAt, k.lastErr = true, time.Now(), err
		return true, err
	}

	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		k.cached, k.cachedAt, k.lastErr = true, time.Now(), err
		return true, err
	}

	k.cached, k.cachedAt, k.lastMsg, k.lastErr = s.Enabled, time.Now(), s.Message, nil
	return s.Enabled, nil
}

// Set writes {enabled, message} to the kill switch file. This is the
// operator-facing mutation path (e.g. the admin HTTP surface's
// POST /kill-switch); it does not touch the cache directly — the next
// IsEnabled call past CacheTTL re-reads the file.
func Set(path string, enabled bool, message string) error {
	data, err := json.MarshalIndent(state{Enabled: enabled, Message: message}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
