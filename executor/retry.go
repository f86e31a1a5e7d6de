package executor

import (
	"fmt"
	"time"

	"qtsw2exec/adapter"
	"qtsw2exec/coordinator"
	"qtsw2exec/events"
)

// RetryingFlatten wraps an adapter's Flatten in the 3-attempt, 200ms
// backoff the protective-failure path requires, and adapts it to
// coordinator.FlattenFunc so it can be wired in at Coordinator
// construction time, before the Executor that owns it exists.
func RetryingFlatten(ad adapter.ExecutionAdapter, sink events.Sink) coordinator.FlattenFunc {
	return func(intentID, instrument string, utc time.Time) error {
		var lastErr error
		for attempt := 1; attempt <= flattenRetryAttempts; attempt++ {
			sink.Emit(events.FlattenAttempt, events.Fields{"intent_id": intentID, "scope": "intent", "attempt": attempt})
			if err := ad.Flatten(intentID, instrument, time.Now().UTC()); err != nil {
				lastErr = err
				sink.Emit(events.FlattenFail, events.Fields{"intent_id": intentID, "attempt": attempt, "error": err.Error()})
				if attempt < flattenRetryAttempts {
					sink.Emit(events.FlattenRetryAttempt, events.Fields{"intent_id": intentID, "attempt": attempt + 1})
					time.Sleep(flattenRetryDelay)
				}
				continue
			}
			if attempt > 1 {
				sink.Emit(events.FlattenRetrySucceeded, events.Fields{"intent_id": intentID, "attempt": attempt})
			}
			sink.Emit(events.FlattenSuccess, events.Fields{"intent_id": intentID, "scope": "intent"})
			return nil
		}
		return fmt.Errorf("executor: flatten intent %s failed after %d attempts: %w", intentID, flattenRetryAttempts, lastErr)
	}
}

// RetryingFlattenInstrument is RetryingFlatten's instrument-wide fallback
// It's the fallback when a per-intent flatten fails: it uses the
// empty-intent form of Flatten, which every
// adapter treats as "close whatever position remains on this
// instrument" rather than tracking one intent's tag.
func RetryingFlattenInstrument(ad adapter.ExecutionAdapter, sink events.Sink) coordinator.FlattenInstrumentFunc {
	return func(instrument string, utc time.Time) error {
		var lastErr error
		for attempt := 1; attempt <= flattenRetryAttempts; attempt++ {
			sink.Emit(events.FlattenAttempt, events.Fields{"instrument": instrument, "scope": "instrument", "attempt": attempt})
			if err := ad.Flatten("", instrument, time.Now().UTC()); err != nil {
				lastErr = err
				sink.Emit(events.FlattenFail, events.Fields{"instrument": instrument, "attempt": attempt, "error": err.Error()})
				if attempt < flattenRetryAttempts {
					time.Sleep(flattenRetryDelay)
				}
				continue
			}
			sink.Emit(events.FlattenSuccess, events.Fields{"instrument": instrument, "scope": "instrument"})
			return nil
		}
		return fmt.Errorf("executor: flatten instrument %s failed after %d attempts: %w", instrument, flattenRetryAttempts, lastErr)
	}
}
