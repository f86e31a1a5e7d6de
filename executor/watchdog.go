package executor

import (
	"time"

	"qtsw2exec/events"
)

// unprotectedTimeout is how long a filled entry may go without an
// acknowledged stop and target before the watchdog fail-closes it
// any filled entry whose entry_fill_time is older than 10 seconds and
// whose stop or target is not yet acknowledged.
const unprotectedTimeout = 10 * time.Second

// RunWatchdog should be invoked periodically (e.g. on a 1s ticker by the
// host process) to catch any intent that filled but never reached an
// acknowledged stop/target, whether because HandleEntryFill is still
// retrying or because an acknowledgement never arrived.
func (e *Executor) RunWatchdog() {
	e.mu.RLock()
	ids := make([]string, 0, len(e.intents))
	for id := range e.intents {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	now := time.Now().UTC()
	for _, id := range ids {
		t, ok := e.getTracked(id)
		if !ok {
			continue
		}
		t.mu.Lock()
		firstFillAt := t.firstFillAt
		stopAckAt := t.stopAckAt
		targetAckAt := t.targetAckAt
		state := t.state
		it := t.it
		t.mu.Unlock()

		if firstFillAt == nil || state != StateEntryFilling && state != StateEntrySubmitted {
			continue
		}
		if now.Sub(*firstFillAt) < unprotectedTimeout {
			continue
		}
		if stopAckAt != nil && targetAckAt != nil {
			continue
		}

		e.mu.RLock()
		policy := e.policies[id]
		e.mu.RUnlock()

		e.sink.Emit(events.UnprotectedPositionTimeout, events.Fields{
			"intent_id":       id,
			"seconds_elapsed": now.Sub(*firstFillAt).Seconds(),
		})
		e.failClosed(id, it.Stream, policy.ExecutionInstrument, "unprotected position watchdog timeout")
	}
}
