package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtsw2exec/adapter"
	"qtsw2exec/events"
	"qtsw2exec/intent"
)

type noopAdapterOps struct {
	cancelled []string
	snapshot  adapter.AccountSnapshot
}

func (n *noopAdapterOps) CancelIntentOrders(intentID string, utc time.Time) error {
	n.cancelled = append(n.cancelled, intentID)
	return nil
}

func (n *noopAdapterOps) GetAccountSnapshot(utc time.Time) (adapter.AccountSnapshot, error) {
	return n.snapshot, nil
}

type noopSink struct{}

func (noopSink) Emit(events.Type, events.Fields) {}

type capturingSink struct {
	events []events.Type
}

func (s *capturingSink) Emit(t events.Type, _ events.Fields) {
	s.events = append(s.events, t)
}

func (s *capturingSink) saw(t events.Type) bool {
	for _, e := range s.events {
		if e == t {
			return true
		}
	}
	return false
}

func TestOnEntryFillAccumulatesAndCanSubmitExit(t *testing.T) {
	c := New(&noopAdapterOps{}, nil, nil, nil, noopSink{})

	c.OnEntryFill("i1", 1, "ES1", "ESUSDT", intent.DirectionLong, time.Now())
	c.OnEntryFill("i1", 1, "ES1", "ESUSDT", intent.DirectionLong, time.Now())

	exp, ok := c.Exposure("i1")
	require.True(t, ok)
	assert.Equal(t, 2, exp.EntryFilledQty)
	assert.Equal(t, StateActive, exp.State)

	assert.True(t, c.CanSubmitExit("i1", 2))
	assert.False(t, c.CanSubmitExit("i1", 3))
}

func TestCanSubmitExitDeniesUnknownIntent(t *testing.T) {
	c := New(&noopAdapterOps{}, nil, nil, nil, noopSink{})
	assert.False(t, c.CanSubmitExit("unknown", 1))
}

func TestOnExitFillClosesAtZeroRemainingAndCancelsOrders(t *testing.T) {
	ops := &noopAdapterOps{}
	c := New(ops, nil, nil, nil, noopSink{})

	c.OnEntryFill("i1", 2, "ES1", "ESUSDT", intent.DirectionLong, time.Now())
	c.OnExitFill("i1", 1, time.Now())

	exp, _ := c.Exposure("i1")
	assert.Equal(t, StateActive, exp.State)
	assert.Empty(t, ops.cancelled)

	c.OnExitFill("i1", 1, time.Now())
	exp, _ = c.Exposure("i1")
	assert.Equal(t, StateClosed, exp.State)
	assert.Equal(t, []string{"i1"}, ops.cancelled)

	assert.False(t, c.CanSubmitExit("i1", 1))
}

func TestOnExitFillDetectsBrokerExposureMismatch(t *testing.T) {
	ops := &noopAdapterOps{snapshot: adapter.AccountSnapshot{
		Positions: []adapter.Position{{Instrument: "ESUSDT", Quantity: 2}},
	}}
	sink := &capturingSink{}
	c := New(ops, nil, nil, nil, sink)

	c.OnEntryFill("i1", 2, "ES1", "ESUSDT", intent.DirectionLong, time.Now())
	c.OnExitFill("i1", 1, time.Now())

	assert.True(t, sink.saw(events.ExposureMismatchDetected))
}

func TestOnExitFillNoMismatchWhenBrokerAgrees(t *testing.T) {
	ops := &noopAdapterOps{snapshot: adapter.AccountSnapshot{
		Positions: []adapter.Position{{Instrument: "ESUSDT", Quantity: 1}},
	}}
	sink := &capturingSink{}
	c := New(ops, nil, nil, nil, sink)

	c.OnEntryFill("i1", 2, "ES1", "ESUSDT", intent.DirectionLong, time.Now())
	c.OnExitFill("i1", 1, time.Now())

	assert.False(t, sink.saw(events.ExposureMismatchDetected))
}

func TestOnProtectiveFailureFlattensAndStandsDown(t *testing.T) {
	var flattenedIntent, flattenedInstrument string
	var stoodDownStream, stoodDownReason string

	flattenIntent := func(intentID, instrument string, utc time.Time) error {
		flattenedIntent = intentID
		return nil
	}
	standDown := func(stream, reason string) {
		stoodDownStream, stoodDownReason = stream, reason
	}

	c := New(&noopAdapterOps{}, flattenIntent, nil, standDown, noopSink{})
	c.OnEntryFill("i1", 1, "ES1", "ESUSDT", intent.DirectionLong, time.Now())

	ok := c.OnProtectiveFailure("i1", "ES1", time.Now())
	assert.True(t, ok)
	assert.Equal(t, "i1", flattenedIntent)
	assert.Empty(t, flattenedInstrument)
	assert.Equal(t, "ES1", stoodDownStream)
	assert.Contains(t, stoodDownReason, "i1")

	exp, _ := c.Exposure("i1")
	assert.Equal(t, StateStandingDown, exp.State)
}

func TestOnProtectiveFailureFallsBackToInstrumentFlatten(t *testing.T) {
	flattenIntent := func(intentID, instrument string, utc time.Time) error {
		return assert.AnError
	}
	var instrumentFlattened string
	flattenInstrument := func(instrument string, utc time.Time) error {
		instrumentFlattened = instrument
		return nil
	}

	c := New(&noopAdapterOps{}, flattenIntent, flattenInstrument, func(string, string) {}, noopSink{})
	c.OnEntryFill("i1", 1, "ES1", "ESUSDT", intent.DirectionLong, time.Now())

	ok := c.OnProtectiveFailure("i1", "ES1", time.Now())
	assert.True(t, ok)
	assert.Equal(t, "ESUSDT", instrumentFlattened)
}

func TestOnProtectiveFailureReportsFailureWhenBothFlattensFail(t *testing.T) {
	flattenIntent := func(intentID, instrument string, utc time.Time) error { return assert.AnError }
	flattenInstrument := func(instrument string, utc time.Time) error { return assert.AnError }

	c := New(&noopAdapterOps{}, flattenIntent, flattenInstrument, func(string, string) {}, noopSink{})
	c.OnEntryFill("i1", 1, "ES1", "ESUSDT", intent.DirectionLong, time.Now())

	ok := c.OnProtectiveFailure("i1", "ES1", time.Now())
	assert.False(t, ok)
}

func TestSetStandDownWiresLateBoundCallback(t *testing.T) {
	c := New(&noopAdapterOps{}, nil, nil, nil, noopSink{})

	var called bool
	c.SetStandDown(func(stream, reason string) { called = true })
	c.OnEntryFill("i1", 1, "ES1", "ESUSDT", intent.DirectionLong, time.Now())
	c.OnProtectiveFailure("i1", "ES1", time.Now())

	assert.True(t, called)
}
