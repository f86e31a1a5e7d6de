package executor

import (
	"time"

	"github.com/shopspring/decimal"

	"qtsw2exec/adapter"
	"qtsw2exec/codec"
	"qtsw2exec/events"
)

// handleOrderUpdate is registered with the adapter as on_order_update. A
// tag that doesn't decode is a foreign order and is ignored outright.
func (e *Executor) handleOrderUpdate(tag string, state adapter.OrderState, err error) {
	decoded, ok := codec.Decode(tag)
	if !ok {
		return
	}
	t, ok := e.getTracked(decoded.IntentID)
	if !ok {
		return
	}

	switch state {
	case adapter.OrderStateAccepted:
		e.sink.Emit(events.OrderAcknowledged, events.Fields{"intent_id": decoded.IntentID, "leg": decoded.Leg.String()})
		t.mu.Lock()
		now := time.Now().UTC()
		switch decoded.Leg {
		case codec.LegStop:
			t.stopAckAt = &now
		case codec.LegTarget:
			t.targetAckAt = &now
		}
		t.mu.Unlock()
	case adapter.OrderStateRejected:
		e.sink.Emit(events.OrderRejected, events.Fields{"intent_id": decoded.IntentID, "leg": decoded.Leg.String(), "error": errString(err)})
		if decoded.Leg == codec.LegEntry {
			_ = e.journal.RecordRejection(decoded.IntentID, t.it.TradingDate, t.it.Stream, errString(err))
			e.setState(decoded.IntentID, StateRejected)
			e.summary.IncRejected()
		}
	case adapter.OrderStateCancelled:
		e.sink.Emit(events.OrderCancelled, events.Fields{"intent_id": decoded.IntentID, "leg": decoded.Leg.String()})
	}
}

// handleExecution is registered with the adapter as on_execution. Every
// callback delivers a delta quantity; entry fills flow into
// HandleEntryFill, exit fills (stop/target legs) flow into exit
// accounting.
func (e *Executor) handleExecution(tag string, fillPrice decimal.Decimal, deltaQty int, utc time.Time) {
	decoded, ok := codec.Decode(tag)
	if !ok {
		return
	}
	t, ok := e.getTracked(decoded.IntentID)
	if !ok {
		return
	}
	e.mu.RLock()
	policy := e.policies[decoded.IntentID]
	e.mu.RUnlock()

	switch decoded.Leg {
	case codec.LegEntry:
		t.mu.Lock()
		t.entryCumulative += deltaQty
		cumulative := t.entryCumulative
		if t.firstFillAt == nil {
			t.firstFillAt = &utc
		}
		it := t.it
		t.mu.Unlock()

		if err := e.journal.RecordEntryFill(decoded.IntentID, it.TradingDate, it.Stream, fillPrice, deltaQty, utc, policy.ContractMultiplier, it.Direction, policy.ExecutionInstrument, policy.CanonicalInstrument); err != nil {
			e.sink.Emit(events.JournalValidationFailed, events.Fields{"intent_id": decoded.IntentID, "error": err.Error()})
			return
		}
		e.coordinator.OnEntryFill(decoded.IntentID, deltaQty, it.Stream, policy.ExecutionInstrument, it.Direction, utc)

		if cumulative < policy.ExpectedQty {
			e.sink.Emit(events.ExecutionPartialFill, events.Fields{"intent_id": decoded.IntentID, "cumulative": cumulative})
		} else {
			e.sink.Emit(events.ExecutionFilled, events.Fields{"intent_id": decoded.IntentID, "cumulative": cumulative})
		}
		e.setState(decoded.IntentID, StateEntryFilling)
		e.summary.IncFilled()

		e.HandleEntryFill(decoded.IntentID, it, policy, fillPrice, deltaQty, cumulative)

	case codec.LegStop, codec.LegTarget:
		t.mu.Lock()
		t.exitCumulative += deltaQty
		it := t.it
		t.mu.Unlock()

		exitKind := "STOP"
		if decoded.Leg == codec.LegTarget {
			exitKind = "TARGET"
		}
		if err := e.journal.RecordExitFill(decoded.IntentID, it.TradingDate, it.Stream, fillPrice, deltaQty, exitKind, utc); err != nil {
			e.sink.Emit(events.JournalValidationFailed, events.Fields{"intent_id": decoded.IntentID, "error": err.Error()})
			return
		}
		e.coordinator.OnExitFill(decoded.IntentID, deltaQty, utc)
		e.sink.Emit(events.ExecutionFilled, events.Fields{"intent_id": decoded.IntentID, "leg": exitKind})
	}
}
