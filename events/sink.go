package events

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Sink is the structured logger external collaborator: an
// append-only event sink. log records are part of the contract, so the
// signature is narrow and typed rather than a generic logging facade.
type Sink interface {
	Emit(evt Type, fields Fields)
}

// ZerologSink is the primary Sink implementation, backed by
// github.com/rs/zerolog. Every Emit call produces exactly one JSON log
// line with a stable "event" field plus the caller-supplied fields,
// matching the "field shape is stable for downstream grepping" contract.
type ZerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink builds a sink writing to w (os.Stdout in production).
func NewZerologSink(w io.Writer, runID string) *ZerologSink {
	if w == nil {
		w = os.Stdout
	}
	logger := zerolog.New(w).With().Timestamp().Str("run_id", runID).Logger()
	return &ZerologSink{logger: logger}
}

func (s *ZerologSink) Emit(evt Type, fields Fields) {
	ev := s.logger.Info()
	if isEmergencyEvent(evt) {
		ev = s.logger.Error()
	}
	ev = ev.Str("event", string(evt))
	for k, v := range fields {
		ev = addField(ev, k, v)
	}
	ev.Msg(string(evt))
}

// addField type-switches a value onto a zerolog event. zerolog's *Event
// methods aren't generic, so values are dispatched by kind; anything
// unrecognized falls back to Interface() rather than being dropped.
func addField(ev *zerolog.Event, key string, v any) *zerolog.Event {
	switch val := v.(type) {
	case string:
		return ev.Str(key, val)
	case int:
		return ev.Int(key, val)
	case int64:
		return ev.Int64(key, val)
	case bool:
		return ev.Bool(key, val)
	case float64:
		return ev.Float64(key, val)
	case error:
		return ev.AnErr(key, val)
	default:
		return ev.Interface(key, val)
	}
}

func isEmergencyEvent(evt Type) bool {
	switch evt {
	case JournalCorruption, JournalInvariantViolation, JournalOverfill,
		ProtectiveOrdersFailedFlat, PositionFlattenFailClosed,
		UnprotectedPositionTimeout, IntentIncompleteUnprotected,
		KillSwitchErrorFailClosed:
		return true
	default:
		return false
	}
}
