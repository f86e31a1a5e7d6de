package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtsw2exec/events"
	"qtsw2exec/intent"
)

type recordingSink struct {
	emitted []events.Type
}

func (s *recordingSink) Emit(evt events.Type, fields events.Fields) {
	s.emitted = append(s.emitted, evt)
}

func (s *recordingSink) saw(evt events.Type) bool {
	for _, e := range s.emitted {
		if e == evt {
			return true
		}
	}
	return false
}

func newTestJournal(t *testing.T) (*Journal, *recordingSink, *[]string) {
	t.Helper()
	sink := &recordingSink{}
	standDowns := &[]string{}
	j := New(t.TempDir(), sink, func(stream, reason string) { *standDowns = append(*standDowns, stream+": "+reason) }, nil)
	return j, sink, standDowns
}

func TestRecordSubmissionThenIsIntentSubmitted(t *testing.T) {
	j, _, _ := newTestJournal(t)

	assert.False(t, j.IsIntentSubmitted("i1", "2026-08-01", "ES1"))
	require.NoError(t, j.RecordSubmission("i1", "2026-08-01", "ES1", "ESUSDT", "LIMIT", "broker-1", nil))
	assert.True(t, j.IsIntentSubmitted("i1", "2026-08-01", "ES1"))
}

func TestRecordSubmissionRejectsEmptyIdentity(t *testing.T) {
	j, _, _ := newTestJournal(t)
	err := j.RecordSubmission("", "2026-08-01", "ES1", "ESUSDT", "LIMIT", "broker-1", nil)
	assert.Error(t, err)
}

func TestCorruptedEntryFailsClosedAsSubmitted(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	var standDowns []string
	j := New(dir, sink, func(stream, reason string) { standDowns = append(standDowns, stream) }, nil)

	k := Key{TradingDate: "2026-08-01", Stream: "ES1", IntentID: "i1"}
	require.NoError(t, os.WriteFile(filepath.Join(dir, k.fileName()), []byte("{not json"), 0o644))

	assert.True(t, j.IsIntentSubmitted("i1", "2026-08-01", "ES1"))
	assert.True(t, sink.saw(events.JournalCorruption))
	assert.Equal(t, []string{"ES1"}, standDowns)
}

func TestRecordEntryFillAccumulatesWeightedAverage(t *testing.T) {
	j, _, _ := newTestJournal(t)
	require.NoError(t, j.RecordSubmission("i1", "2026-08-01", "ES1", "ESUSDT", "MARKET", "b1", nil))

	require.NoError(t, j.RecordEntryFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(100), 1, time.Now().UTC(), decimal.NewFromInt(5), intent.DirectionLong, "ESUSDT", "ES"))
	require.NoError(t, j.RecordEntryFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(102), 1, time.Now().UTC(), decimal.NewFromInt(5), intent.DirectionLong, "ESUSDT", "ES"))

	k := Key{TradingDate: "2026-08-01", Stream: "ES1", IntentID: "i1"}
	j.mu.Lock()
	entry, _ := j.loadLocked(k)
	j.mu.Unlock()

	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.EntryFilledQtyTotal)
	assert.True(t, entry.EntryAvgFillPrice.Equal(decimal.NewFromInt(101)), "expected avg 101, got %s", entry.EntryAvgFillPrice)
}

func TestRecordEntryFillRejectsDirectionMismatch(t *testing.T) {
	j, sink, standDowns := newTestJournal(t)
	require.NoError(t, j.RecordEntryFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(100), 1, time.Now().UTC(), decimal.NewFromInt(5), intent.DirectionLong, "ESUSDT", "ES"))

	err := j.RecordEntryFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(100), 1, time.Now().UTC(), decimal.NewFromInt(5), intent.DirectionShort, "ESUSDT", "ES")
	assert.Error(t, err)
	assert.True(t, sink.saw(events.JournalInvariantViolation))
	assert.NotEmpty(t, *standDowns)
}

func TestRecordExitFillPartialThenComplete(t *testing.T) {
	j, sink, _ := newTestJournal(t)
	require.NoError(t, j.RecordEntryFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(100), 2, time.Now().UTC(), decimal.NewFromInt(5), intent.DirectionLong, "ESUSDT", "ES"))

	require.NoError(t, j.RecordExitFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(105), 1, "TARGET", time.Now().UTC()))
	assert.False(t, sink.saw(events.TradeCompleted))

	require.NoError(t, j.RecordExitFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(105), 1, "TARGET", time.Now().UTC()))
	assert.True(t, sink.saw(events.TradeCompleted))

	k := Key{TradingDate: "2026-08-01", Stream: "ES1", IntentID: "i1"}
	j.mu.Lock()
	entry, _ := j.loadLocked(k)
	j.mu.Unlock()
	require.NotNil(t, entry.RealizedPnLNet)
	// (105-100) * 2 * 5 = 50
	assert.True(t, entry.RealizedPnLNet.Equal(decimal.NewFromInt(50)), "got %s", entry.RealizedPnLNet)
}

func TestRecordExitFillWithoutPriorEntryStandsDown(t *testing.T) {
	j, sink, standDowns := newTestJournal(t)
	err := j.RecordExitFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(105), 1, "STOP", time.Now().UTC())
	assert.Error(t, err)
	assert.True(t, sink.saw(events.JournalValidationFailed))
	assert.NotEmpty(t, *standDowns)
}

func TestRecordExitFillOverfillStandsDown(t *testing.T) {
	j, sink, standDowns := newTestJournal(t)
	require.NoError(t, j.RecordEntryFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(100), 1, time.Now().UTC(), decimal.NewFromInt(5), intent.DirectionLong, "ESUSDT", "ES"))
	require.NoError(t, j.RecordExitFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(105), 1, "TARGET", time.Now().UTC()))

	err := j.RecordExitFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(105), 1, "TARGET", time.Now().UTC())
	assert.Error(t, err)
	assert.True(t, sink.saw(events.JournalOverfill))
	assert.NotEmpty(t, *standDowns)
}

func TestRecordBEModificationIsIdempotent(t *testing.T) {
	j, _, _ := newTestJournal(t)
	require.NoError(t, j.RecordEntryFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(100), 1, time.Now().UTC(), decimal.NewFromInt(5), intent.DirectionLong, "ESUSDT", "ES"))

	assert.False(t, j.IsBEModified("i1", "2026-08-01", "ES1"))
	require.NoError(t, j.RecordBEModification("i1", "2026-08-01", "ES1", decimal.NewFromInt(100), time.Now().UTC()))
	assert.True(t, j.IsBEModified("i1", "2026-08-01", "ES1"))

	// Second call is a silent no-op, not an error.
	require.NoError(t, j.RecordBEModification("i1", "2026-08-01", "ES1", decimal.NewFromInt(999), time.Now().UTC()))
}

func TestHasEntryFillForStreamScansFiles(t *testing.T) {
	j, _, _ := newTestJournal(t)
	ok, err := j.HasEntryFillForStream("2026-08-01", "ES1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, j.RecordEntryFill("i1", "2026-08-01", "ES1", decimal.NewFromInt(100), 1, time.Now().UTC(), decimal.NewFromInt(5), intent.DirectionLong, "ESUSDT", "ES"))

	ok, err = j.HasEntryFillForStream("2026-08-01", "ES1")
	require.NoError(t, err)
	assert.True(t, ok)
}
