package executor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"qtsw2exec/events"
)

const (
	flattenRetryAttempts = 3
	flattenRetryDelay    = 200 * time.Millisecond
)

// incidentRecord is the JSON shape persisted to execution_incidents/ for
// every protective or flatten failure, for post-hoc review.
type incidentRecord struct {
	IntentID      string    `json:"intent_id"`
	Stream        string    `json:"stream"`
	Instrument    string    `json:"instrument"`
	Reason        string    `json:"reason"`
	FlattenFailed bool      `json:"flatten_failed"`
	OccurredAt    time.Time `json:"occurred_at_utc"`
}

// failClosed is the single fail-closed path every unsafe condition in the
// executor routes through: escalate through the coordinator's
// protective-failure path (per-intent flatten, instrument-wide fallback,
// stand the stream down), then emit an emergency notification and
// persist an incident record. Manual intervention is the final recourse;
// nothing here silently resumes trading.
func (e *Executor) failClosed(intentID, stream, instrument, reason string) {
	e.setState(intentID, StateFlattening)

	flattened := e.coordinator.OnProtectiveFailure(intentID, stream, time.Now().UTC())
	if !flattened {
		e.sink.Emit(events.PositionFlattenFailClosed, events.Fields{"intent_id": intentID, "stream": stream, "reason": reason})
	}
	// The coordinator's stand-down callback may be unwired; StandDownStream
	// is idempotent, so calling it here as well is safe.
	e.StandDownStream(stream, reason)
	e.setState(intentID, StateStoodDown)

	e.notifier.Notify(events.PriorityEmergency, fmt.Sprintf("fail-closed: intent %s", intentID), reason)
	e.writeIncident(intentID, stream, instrument, reason, !flattened)
}

// writeIncident persists an incidentRecord to incidentDir. A write
// failure here is logged but never re-enters the fail-closed path — the
// position has already been flattened and the stream stood down; losing
// the paper trail doesn't change the safety outcome.
func (e *Executor) writeIncident(intentID, stream, instrument, reason string, flattenFailed bool) {
	if e.incidentDir == "" {
		return
	}
	rec := incidentRecord{
		IntentID:      intentID,
		Stream:        stream,
		Instrument:    instrument,
		Reason:        reason,
		FlattenFailed: flattenFailed,
		OccurredAt:    time.Now().UTC(),
	}
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		e.sink.Emit(events.JournalValidationFailed, events.Fields{"intent_id": intentID, "error": "incident marshal: " + err.Error()})
		return
	}
	if err := os.MkdirAll(e.incidentDir, 0o755); err != nil {
		e.sink.Emit(events.JournalValidationFailed, events.Fields{"intent_id": intentID, "error": "incident mkdir: " + err.Error()})
		return
	}
	name := fmt.Sprintf("protective_failure_%s_%s.json", intentID, rec.OccurredAt.Format("20060102150405"))
	path := filepath.Join(e.incidentDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		e.sink.Emit(events.JournalValidationFailed, events.Fields{"intent_id": intentID, "error": "incident write: " + err.Error()})
	}
}
