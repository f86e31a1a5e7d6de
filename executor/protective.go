package executor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"qtsw2exec/codec"
	"qtsw2exec/events"
	"qtsw2exec/intent"
)

// protectiveRetryAttempts and protectiveRetryDelay implement the protective
// order retry loop: up to 3 attempts, 100ms between attempts.
const (
	protectiveRetryAttempts = 3
	protectiveRetryDelay    = 100 * time.Millisecond
)

// HandleEntryFill is the protective-orders protocol: validate the intent
// is complete enough to protect, confirm the coordinator still considers
// the exit submittable, then retry-submit a fresh OCO-paired stop and
// target until both legs succeed or the retry budget is exhausted.
// cumulative is always the running total fill, never the delta, so
// incremental fills grow coverage and never leave unprotected inventory.
func (e *Executor) HandleEntryFill(intentID string, it intent.Intent, policy Policy, fillPrice decimal.Decimal, delta int, cumulative int) {
	if !it.IsComplete() {
		e.sink.Emit(events.IntentIncompleteUnprotected, events.Fields{"intent_id": intentID})
		e.failClosed(intentID, it.Stream, policy.ExecutionInstrument, "intent missing direction/stop/target on fill")
		return
	}
	if !e.recovery() {
		e.failClosed(intentID, it.Stream, policy.ExecutionInstrument, "recovery predicate denied execution")
		return
	}
	if !e.coordinator.CanSubmitExit(intentID, cumulative) {
		e.sink.Emit(events.ExecutionBlocked, events.Fields{"intent_id": intentID, "reason": "coordinator denied exit submission"})
		return
	}

	var stopOK, targetOK bool
	var lastOCO string

	for attempt := 1; attempt <= protectiveRetryAttempts; attempt++ {
		lastOCO = ocoGroupID(intentID, attempt)
		utc := time.Now().UTC()

		stopResult := e.adapter.SubmitProtectiveStop(intentID, policy.ExecutionInstrument, it.Direction, *it.StopPrice, cumulative, lastOCO, utc)
		if !stopResult.Success {
			e.sink.Emit(events.OrderSubmitFail, events.Fields{"intent_id": intentID, "leg": "STOP", "attempt": attempt, "oco_group": lastOCO, "error": errString(stopResult.Err)})
			if attempt < protectiveRetryAttempts {
				time.Sleep(protectiveRetryDelay)
			}
			continue
		}
		stopOK = true

		targetResult := e.adapter.SubmitTarget(intentID, policy.ExecutionInstrument, it.Direction, *it.TargetPrice, cumulative, lastOCO, utc)
		if !targetResult.Success {
			e.sink.Emit(events.OrderSubmitFail, events.Fields{"intent_id": intentID, "leg": "TARGET", "attempt": attempt, "oco_group": lastOCO, "error": errString(targetResult.Err)})
			stopOK = false
			if attempt < protectiveRetryAttempts {
				time.Sleep(protectiveRetryDelay)
			}
			continue
		}
		targetOK = true
		break
	}

	if stopOK && targetOK {
		e.sink.Emit(events.ProtectivesPlaced, events.Fields{
			"intent_id":          intentID,
			"entry_tag":          codec.Tag(intentID, codec.LegEntry),
			"stop_tag":           codec.Tag(intentID, codec.LegStop),
			"target_tag":         codec.Tag(intentID, codec.LegTarget),
			"oco_group":          lastOCO,
			"stop_price":         it.StopPrice.String(),
			"target_price":       it.TargetPrice.String(),
			"protected_quantity": cumulative,
		})
		e.setState(intentID, StateProtected)
		return
	}

	e.sink.Emit(events.ProtectiveOrdersFailedFlat, events.Fields{"intent_id": intentID, "attempts": protectiveRetryAttempts})
	e.failClosed(intentID, it.Stream, policy.ExecutionInstrument, fmt.Sprintf("protective legs failed after %d attempts", protectiveRetryAttempts))
}

// ocoGroupID formats a fresh OCO group id with the exact naming: "QTSW2:{intent_id}_PROTECTIVE_A{attempt}_{HHmmssfff}". A fresh
// id each attempt guarantees the broker never treats a retried stop as a
// duplicate of a prior attempt's cancelled leg.
func ocoGroupID(intentID string, attempt int) string {
	now := time.Now()
	ts := fmt.Sprintf("%02d%02d%02d%03d", now.Hour(), now.Minute(), now.Second(), now.Nanosecond()/1_000_000)
	return fmt.Sprintf("%s:%s_PROTECTIVE_A%d_%s", codec.Prefix, intentID, attempt, ts)
}
