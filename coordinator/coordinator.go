// Package coordinator tracks remaining exposure per intent and is the
// final gate on exit submissions, preventing a fill-queue race from ever
// closing more size than was actually opened.
package coordinator

import (
	"sync"
	"time"

	"qtsw2exec/adapter"
	"qtsw2exec/events"
	"qtsw2exec/intent"
)

// State is an IntentExposure's lifecycle stage.
type State int

const (
	StateActive State = iota
	StateStandingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateStandingDown:
		return "STANDING_DOWN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Exposure is the in-memory, per-intent record of how much risk is still
// open. Mutated only through Coordinator's own methods — never directly.
type Exposure struct {
	IntentID       string
	EntryFilledQty int
	ExitFilledQty  int
	State          State
	Direction      intent.Direction
	Instrument     string
	Stream         string
}

// Remaining is the quantity still exposed: entry minus exit.
func (e Exposure) Remaining() int {
	return e.EntryFilledQty - e.ExitFilledQty
}

// AdapterOps is the subset of the broker adapter capability the
// coordinator needs to react to a fully-closed position or an observed
// exposure mismatch.
type AdapterOps interface {
	CancelIntentOrders(intentID string, utc time.Time) error
	GetAccountSnapshot(utc time.Time) (adapter.AccountSnapshot, error)
}

// FlattenFunc flattens one intent's position (used by OnProtectiveFailure).
type FlattenFunc func(intentID, instrument string, utc time.Time) error

// FlattenInstrumentFunc flattens every open position on an instrument —
// the broader fallback when a per-intent flatten fails.
type FlattenInstrumentFunc func(instrument string, utc time.Time) error

// StandDownFunc stands a stream down.
type StandDownFunc func(stream, reason string)

// Coordinator is the InstrumentIntentCoordinator: a concurrent map of
// intent id to Exposure plus the protective-failure escalation path.
type Coordinator struct {
	mu        sync.RWMutex
	exposures map[string]*Exposure

	adapter          AdapterOps
	flattenIntent    FlattenFunc
	flattenInstrument FlattenInstrumentFunc
	standDown        StandDownFunc
	sink             events.Sink
}

// New constructs a Coordinator. adapter and the flatten/stand-down
// callbacks may be nil in tests that only exercise the bookkeeping paths.
func New(adapter AdapterOps, flattenIntent FlattenFunc, flattenInstrument FlattenInstrumentFunc, standDown StandDownFunc, sink events.Sink) *Coordinator {
	return &Coordinator{
		exposures:         make(map[string]*Exposure),
		adapter:           adapter,
		flattenIntent:     flattenIntent,
		flattenInstrument: flattenInstrument,
		standDown:         standDown,
		sink:              sink,
	}
}

// OnEntryFill inserts or updates an intent's exposure. A CLOSED intent
// never reopens from a stray late entry fill callback.
func (c *Coordinator) OnEntryFill(intentID string, qty int, stream, instrument string, direction intent.Direction, utc time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.exposures[intentID]
	if !ok {
		e = &Exposure{IntentID: intentID, Stream: stream, Instrument: instrument, Direction: direction}
		c.exposures[intentID] = e
	}
	e.EntryFilledQty += qty
	if e.State != StateClosed {
		e.State = StateActive
	}
}

// OnExitFill accumulates an exit fill and closes the exposure once
// remaining size reaches zero, cancelling any still-working orders for
// the intent. It also recomputes broker-vs-intent exposure for
// observation only, emitting a mismatch event on disagreement — this
// never blocks the fill from being recorded.
func (c *Coordinator) OnExitFill(intentID string, qty int, utc time.Time) {
	c.mu.Lock()
	e, ok := c.exposures[intentID]
	if !ok {
		c.mu.Unlock()
		return
	}
	e.ExitFilledQty += qty
	closed := e.Remaining() <= 0 && e.State != StateClosed
	if closed {
		e.State = StateClosed
	}
	remaining := e.Remaining()
	instrument := e.Instrument
	c.mu.Unlock()

	if closed && c.adapter != nil {
		if err := c.adapter.CancelIntentOrders(intentID, utc); err != nil {
			c.sink.Emit(events.OrderCancelled, events.Fields{
				"intent_id": intentID, "error": err.Error(), "outcome": "cancel_remaining_failed",
			})
		}
	}

	c.checkExposureMismatch(intentID, instrument, remaining, utc)
}

// checkExposureMismatch compares the broker's reported position on
// instrument against what the coordinator's own bookkeeping expects to
// still be open, emitting ExposureMismatchDetected on disagreement. This
// never blocks or corrects the fill that triggered it — it's an
// observation surfaced for an operator to investigate, not a gate.
func (c *Coordinator) checkExposureMismatch(intentID, instrument string, expectedRemaining int, utc time.Time) {
	if c.adapter == nil {
		return
	}
	snap, err := c.adapter.GetAccountSnapshot(utc)
	if err != nil {
		return
	}
	brokerQty := 0
	for _, p := range snap.Positions {
		if p.Instrument != instrument {
			continue
		}
		brokerQty = p.Quantity
		if brokerQty < 0 {
			brokerQty = -brokerQty
		}
		break
	}
	if brokerQty != expectedRemaining {
		c.sink.Emit(events.ExposureMismatchDetected, events.Fields{
			"intent_id":        intentID,
			"instrument":       instrument,
			"broker_quantity":  brokerQty,
			"intent_remaining": expectedRemaining,
		})
	}
}

// CanSubmitExit is the gate a HandleEntryFill or exit path must pass
// before submitting an exit order: the intent must be known, ACTIVE, and
// the requested quantity must not exceed what's actually remaining.
func (c *Coordinator) CanSubmitExit(intentID string, qty int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.exposures[intentID]
	if !ok || e.State != StateActive {
		return false
	}
	return qty <= e.Remaining()
}

// Exposure returns a copy of the current exposure for observation/testing.
func (c *Coordinator) Exposure(intentID string) (Exposure, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.exposures[intentID]
	if !ok {
		return Exposure{}, false
	}
	return *e, true
}

// SetStandDown wires the stand-down-stream callback after construction.
// It exists because the callback is normally the executor's
// StandDownStream method, and the executor is built from an
// already-constructed Coordinator — this breaks the cycle.
func (c *Coordinator) SetStandDown(fn StandDownFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.standDown = fn
}

// OnProtectiveFailure escalates a protective-order failure: stand the
// exposure down, try to flatten just this intent, and if that fails,
// fall back to flattening the whole instrument before standing the
// stream down entirely. This is the coordinator half of the fail-closed
// path IntentExecutor's retry exhaustion drives into. It reports whether
// the position was actually flattened by either path, so the caller can
// decide whether POSITION_FLATTEN_FAIL_CLOSED applies.
func (c *Coordinator) OnProtectiveFailure(intentID, stream string, utc time.Time) bool {
	c.mu.Lock()
	e, ok := c.exposures[intentID]
	if ok {
		e.State = StateStandingDown
	}
	instrument := ""
	if ok {
		instrument = e.Instrument
	}
	c.mu.Unlock()

	flattened := true
	if c.flattenIntent != nil {
		if err := c.flattenIntent(intentID, instrument, utc); err != nil {
			c.sink.Emit(events.FlattenFail, events.Fields{
				"intent_id": intentID, "scope": "intent", "error": err.Error(),
			})
			flattened = false
			if c.flattenInstrument != nil && instrument != "" {
				if err := c.flattenInstrument(instrument, utc); err != nil {
					c.sink.Emit(events.FlattenFail, events.Fields{
						"instrument": instrument, "scope": "instrument", "error": err.Error(),
					})
				} else {
					flattened = true
				}
			}
		}
	}
	if c.standDown != nil {
		c.standDown(stream, "protective order failure on intent "+intentID)
	}
	return flattened
}
