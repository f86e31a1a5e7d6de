package executor

import (
	"time"

	"github.com/shopspring/decimal"

	"qtsw2exec/codec"
	"qtsw2exec/events"
	"qtsw2exec/intent"
)

// CheckBreakEven is invoked by the caller on every monitored-price tick
// for intents that are PROTECTED. It implements the break-even rule: once price crosses the intent's BE trigger in the
// favorable direction, the stop is modified to the strategic entry
// level (it.EntryPrice, never the actual fill price), exactly once,
// gated by the journal's is_be_modified flag.
func (e *Executor) CheckBreakEven(intentID string, currentPrice decimal.Decimal) {
	t, ok := e.getTracked(intentID)
	if !ok {
		return
	}
	t.mu.Lock()
	it := t.it
	state := t.state
	t.mu.Unlock()

	if state != StateProtected {
		return
	}
	if it.BreakEvenTrigger == nil || it.EntryPrice == nil || !it.Direction.IsSet() {
		return
	}
	if e.journal.IsBEModified(intentID, it.TradingDate, it.Stream) {
		e.sink.Emit(events.StopModifySkipped, events.Fields{"intent_id": intentID, "reason": "already break-even modified"})
		return
	}
	if !breakEvenCrossed(it.Direction, currentPrice, *it.BreakEvenTrigger) {
		return
	}

	e.mu.RLock()
	policy := e.policies[intentID]
	e.mu.RUnlock()

	utc := time.Now().UTC()
	e.sink.Emit(events.StopModifyAttempt, events.Fields{"intent_id": intentID, "new_stop": it.EntryPrice.String()})

	if err := e.adapter.ModifyStopTo(intentID, policy.ExecutionInstrument, *it.EntryPrice, utc); err != nil {
		e.sink.Emit(events.StopModifyFail, events.Fields{"intent_id": intentID, "error": err.Error()})
		return
	}

	if err := e.journal.RecordBEModification(intentID, it.TradingDate, it.Stream, *it.EntryPrice, utc); err != nil {
		e.sink.Emit(events.JournalValidationFailed, events.Fields{"intent_id": intentID, "error": err.Error()})
		return
	}
	e.sink.Emit(events.StopModifySuccess, events.Fields{"intent_id": intentID, "stop_tag": codec.Tag(intentID, codec.LegStop), "new_stop": it.EntryPrice.String()})
}

// breakEvenCrossed reports whether currentPrice has advanced past
// trigger in the direction that favors the intent: upward for Long,
// downward for Short.
func breakEvenCrossed(dir intent.Direction, currentPrice, trigger decimal.Decimal) bool {
	if dir == intent.DirectionLong {
		return currentPrice.GreaterThanOrEqual(trigger)
	}
	return currentPrice.LessThanOrEqual(trigger)
}
