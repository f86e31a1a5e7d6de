package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"qtsw2exec/events"
	"qtsw2exec/intent"
)

// StandDownFunc stands a stream down on any corruption or invariant
// violation.
type StandDownFunc func(stream, reason string)

type cacheSlot struct {
	entry     *Entry
	corrupted bool
}

// Journal is the ExecutionJournal: the durable, single-mutex-guarded
// source of truth for per-intent idempotency. Every public method is
// I/O-sequenced under the same mutex so the in-memory cache and the
// on-disk files never diverge.
type Journal struct {
	mu       sync.Mutex
	baseDir  string
	cache    map[Key]*cacheSlot
	sink     events.Sink
	standDown StandDownFunc
	index    *Index // optional sqlite duplicate-check accelerator
}

// New constructs a Journal rooted at baseDir
// ({project}/data/execution_journals).
func New(baseDir string, sink events.Sink, standDown StandDownFunc, index *Index) *Journal {
	return &Journal{
		baseDir:   baseDir,
		cache:     make(map[Key]*cacheSlot),
		sink:      sink,
		standDown: standDown,
		index:     index,
	}
}

func (j *Journal) path(k Key) string {
	return filepath.Join(j.baseDir, k.fileName())
}

// loadLocked reads an entry from cache or disk. Caller must hold j.mu.
// A parse failure marks the slot corrupted, stands the stream down, and
// is reported back to the caller via corrupted=true — never returns an
// error for a missing file (that's just "not yet submitted").
func (j *Journal) loadLocked(k Key) (entry *Entry, corrupted bool) {
	if slot, ok := j.cache[k]; ok {
		return slot.entry, slot.corrupted
	}

	data, err := os.ReadFile(j.path(k))
	if err != nil {
		if os.IsNotExist(err) {
			j.cache[k] = &cacheSlot{}
			return nil, false
		}
		// Unreadable for a reason other than "doesn't exist" is treated
		// the same as corrupted content: fail closed.
		j.reportCorruption(k, err)
		j.cache[k] = &cacheSlot{corrupted: true}
		return nil, true
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		j.reportCorruption(k, err)
		j.cache[k] = &cacheSlot{corrupted: true}
		return nil, true
	}

	j.cache[k] = &cacheSlot{entry: &e}
	return &e, false
}

func (j *Journal) reportCorruption(k Key, cause error) {
	j.sink.Emit(events.JournalCorruption, events.Fields{
		"intent_id": k.IntentID, "trading_date": k.TradingDate,
		"stream": k.Stream, "error": cause.Error(),
	})
	if j.standDown != nil {
		j.standDown(k.Stream, fmt.Sprintf("journal corruption for intent %s: %v", k.IntentID, cause))
	}
}

// saveLocked persists e and refreshes the cache. Caller must hold j.mu.
func (j *Journal) saveLocked(k Key, e *Entry) error {
	if err := os.MkdirAll(j.baseDir, 0o755); err != nil {
		return fmt.Errorf("journal: mkdir %s: %w", j.baseDir, err)
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("journal: marshal entry %s: %w", k.IntentID, err)
	}
	tmp := j.path(k) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("journal: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, j.path(k)); err != nil {
		return fmt.Errorf("journal: rename %s: %w", tmp, err)
	}
	j.cache[k] = &cacheSlot{entry: e}
	if j.index != nil {
		j.index.Upsert(k, e)
	}
	return nil
}

// IsIntentSubmitted reads cache-or-disk. A corrupted entry fails closed:
// it's reported once and treated as submitted forever after, preventing a
// duplicate submission from ever reaching the broker.
func (j *Journal) IsIntentSubmitted(intentID, date, stream string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	k := Key{TradingDate: date, Stream: stream, IntentID: intentID}
	e, corrupted := j.loadLocked(k)
	if corrupted {
		return true
	}
	return e != nil && e.EntrySubmitted
}

// RecordSubmission creates or loads the entry and marks it submitted.
// Empty trading_date/stream are rejected outright rather than silently
// tolerated.
func (j *Journal) RecordSubmission(intentID, date, stream, instrument, orderType, brokerOrderID string, expectedEntryPrice *decimal.Decimal) error {
	if date == "" || stream == "" || intentID == "" {
		return fmt.Errorf("journal: record_submission requires non-empty intent_id, trading_date and stream")
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	k := Key{TradingDate: date, Stream: stream, IntentID: intentID}
	e, corrupted := j.loadLocked(k)
	if corrupted {
		return fmt.Errorf("journal: entry %s is corrupted, refusing to record submission", intentID)
	}
	if e == nil {
		e = &Entry{IntentID: intentID, TradingDate: date, Stream: stream, Instrument: instrument}
	}
	now := time.Now().UTC()
	e.EntrySubmitted = true
	e.EntrySubmittedAt = &now
	e.BrokerOrderID = brokerOrderID
	e.EntryOrderType = orderType
	e.ExpectedEntryPrice = expectedEntryPrice
	return j.saveLocked(k, e)
}

// RecordRejection marks an entry's submission as rejected. Terminal: no
// retry follows a broker-reported rejection.
func (j *Journal) RecordRejection(intentID, date, stream, reason string) error {
	if date == "" || stream == "" || intentID == "" {
		return fmt.Errorf("journal: record_rejection requires non-empty intent_id, trading_date and stream")
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	k := Key{TradingDate: date, Stream: stream, IntentID: intentID}
	e, corrupted := j.loadLocked(k)
	if corrupted {
		return fmt.Errorf("journal: entry %s is corrupted, refusing to record rejection", intentID)
	}
	if e == nil {
		e = &Entry{IntentID: intentID, TradingDate: date, Stream: stream}
	}
	now := time.Now().UTC()
	e.Rejected = true
	e.RejectedAt = &now
	e.RejectionReason = reason
	return j.saveLocked(k, e)
}

// RecordEntryFill accumulates a delta entry fill. First fill sets the
// immutable trade attributes (direction, contract multiplier) and
// entry_filled_at_utc; later fills validate against them and stand the
// stream down on mismatch (invariant 3).
func (j *Journal) RecordEntryFill(intentID, date, stream string, fillPrice decimal.Decimal, deltaQty int, utc time.Time, contractMultiplier decimal.Decimal, direction intent.Direction, executionInstrument, canonicalInstrument string) error {
	if date == "" || stream == "" || intentID == "" {
		return fmt.Errorf("journal: record_entry_fill requires non-empty intent_id, trading_date and stream")
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	k := Key{TradingDate: date, Stream: stream, IntentID: intentID}
	e, corrupted := j.loadLocked(k)
	if corrupted {
		return fmt.Errorf("journal: entry %s is corrupted, refusing entry fill", intentID)
	}
	if e == nil {
		e = &Entry{IntentID: intentID, TradingDate: date, Stream: stream, Instrument: canonicalInstrument}
	}

	if e.Direction.IsSet() && direction.IsSet() && e.Direction != direction {
		j.invariantViolation(k, fmt.Sprintf("direction changed from %s to %s mid-trade", e.Direction, direction))
		return fmt.Errorf("journal: direction mismatch for intent %s", intentID)
	}
	if e.ContractMultiplier != nil && !e.ContractMultiplier.Equal(contractMultiplier) {
		j.invariantViolation(k, fmt.Sprintf("contract multiplier changed from %s to %s mid-trade", e.ContractMultiplier, contractMultiplier))
		return fmt.Errorf("journal: contract multiplier mismatch for intent %s", intentID)
	}

	if deltaQty == 0 {
		// Idempotence law: a zero delta changes nothing.
		return j.saveLocked(k, e)
	}
	if deltaQty < 0 {
		return fmt.Errorf("journal: entry fill delta must be non-negative, got %d", deltaQty)
	}

	firstFill := e.EntryFilledQtyTotal == 0
	e.EntryFilledQtyTotal += deltaQty
	e.EntryFillNotional = e.EntryFillNotional.Add(fillPrice.Mul(decimal.NewFromInt(int64(deltaQty))))
	e.EntryAvgFillPrice = e.EntryFillNotional.Div(decimal.NewFromInt(int64(e.EntryFilledQtyTotal)))

	if firstFill {
		t := utc
		e.EntryFilledAtUTC = &t
		norm := direction
		e.Direction = norm
		cm := contractMultiplier
		e.ContractMultiplier = &cm
	}

	if e.ExpectedEntryPrice != nil {
		slipPoints := fillPrice.Sub(*e.ExpectedEntryPrice)
		if direction == intent.DirectionShort {
			slipPoints = slipPoints.Neg()
		}
		slipDollars := slipPoints.Mul(decimal.NewFromInt(int64(deltaQty))).Mul(contractMultiplier)
		if e.SlippagePoints == nil {
			zero := decimal.Zero
			e.SlippagePoints = &zero
			e.SlippageDollars = &zero
		}
		sp := e.SlippagePoints.Add(slipPoints)
		sd := e.SlippageDollars.Add(slipDollars)
		e.SlippagePoints = &sp
		e.SlippageDollars = &sd
		j.sink.Emit(events.ExecutionSlippageDetected, events.Fields{
			"intent_id": intentID, "slippage_points": slipPoints.String(), "slippage_dollars": slipDollars.String(),
		})
	}

	return j.saveLocked(k, e)
}

// RecordExitFill accumulates a delta exit fill and, once exit quantity
// reaches entry quantity, computes realized P&L and marks the trade
// complete. An exit delivered before any qualifying entry, or one that
// would push exit quantity past entry quantity, stands the stream down.
func (j *Journal) RecordExitFill(intentID, date, stream string, exitPrice decimal.Decimal, deltaQty int, exitOrderType string, utc time.Time) error {
	if date == "" || stream == "" || intentID == "" {
		return fmt.Errorf("journal: record_exit_fill requires non-empty intent_id, trading_date and stream")
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	k := Key{TradingDate: date, Stream: stream, IntentID: intentID}
	e, corrupted := j.loadLocked(k)
	if corrupted {
		return fmt.Errorf("journal: entry %s is corrupted, refusing exit fill", intentID)
	}
	if e == nil || e.EntryFilledQtyTotal <= 0 || !e.Direction.IsSet() || e.ContractMultiplier == nil {
		j.sink.Emit(events.JournalValidationFailed, events.Fields{
			"intent_id": intentID, "reason": "exit fill with no prior qualifying entry",
		})
		if j.standDown != nil {
			j.standDown(stream, fmt.Sprintf("exit fill for intent %s with no prior entry", intentID))
		}
		return fmt.Errorf("journal: exit fill for intent %s has no prior entry", intentID)
	}

	if deltaQty == 0 {
		return j.saveLocked(k, e)
	}
	if deltaQty < 0 {
		return fmt.Errorf("journal: exit fill delta must be non-negative, got %d", deltaQty)
	}

	firstExit := e.ExitFilledQtyTotal == 0
	e.ExitFilledQtyTotal += deltaQty
	e.ExitFillNotional = e.ExitFillNotional.Add(exitPrice.Mul(decimal.NewFromInt(int64(deltaQty))))
	e.ExitAvgFillPrice = e.ExitFillNotional.Div(decimal.NewFromInt(int64(e.ExitFilledQtyTotal)))

	if firstExit {
		e.ExitOrderType = exitOrderType
		t := utc
		e.ExitFilledAtUTC = &t
	} else if exitOrderType != e.ExitOrderType {
		e.CompletionReason = "EMERGENCY_OVERRIDE"
	}

	switch {
	case e.ExitFilledQtyTotal < e.EntryFilledQtyTotal:
		// Partial exit: no P&L yet.
		return j.saveLocked(k, e)

	case e.ExitFilledQtyTotal == e.EntryFilledQtyTotal:
		points := e.ExitAvgFillPrice.Sub(e.EntryAvgFillPrice)
		if e.Direction == intent.DirectionShort {
			points = points.Neg()
		}
		gross := points.Mul(decimal.NewFromInt(int64(e.EntryFilledQtyTotal))).Mul(*e.ContractMultiplier)
		net := gross
		if e.SlippageDollars != nil {
			net = net.Sub(*e.SlippageDollars)
		}
		if e.Commission != nil {
			net = net.Sub(*e.Commission)
		}
		if e.Fees != nil {
			net = net.Sub(*e.Fees)
		}
		e.TradeCompleted = true
		e.RealizedPnLPoints = &points
		e.RealizedPnLGross = &gross
		e.RealizedPnLNet = &net
		if e.CompletionReason == "" {
			e.CompletionReason = exitOrderType
		}
		now := utc
		e.CompletedAtUTC = &now
		if err := j.saveLocked(k, e); err != nil {
			return err
		}
		j.sink.Emit(events.TradeCompleted, events.Fields{
			"intent_id": intentID, "realized_pnl_net": net.String(), "completion_reason": e.CompletionReason,
		})
		return nil

	default: // exit_qty_total > entry_qty_total
		j.sink.Emit(events.JournalOverfill, events.Fields{
			"intent_id": intentID, "entry_qty": e.EntryFilledQtyTotal, "exit_qty": e.ExitFilledQtyTotal,
		})
		if j.standDown != nil {
			j.standDown(stream, fmt.Sprintf("overfill on intent %s: exit %d > entry %d", intentID, e.ExitFilledQtyTotal, e.EntryFilledQtyTotal))
		}
		// Persist the recorded state for post-hoc review even though the
		// trade is not marked complete.
		_ = j.saveLocked(k, e)
		return fmt.Errorf("journal: overfill on intent %s", intentID)
	}
}

// RecordBEModification idempotently records the one-time break-even stop
// move. Gated by IsBEModified so a second attempt is a silent no-op.
func (j *Journal) RecordBEModification(intentID, date, stream string, newStop decimal.Decimal, utc time.Time) error {
	if date == "" || stream == "" || intentID == "" {
		return fmt.Errorf("journal: record_be_modification requires non-empty intent_id, trading_date and stream")
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	k := Key{TradingDate: date, Stream: stream, IntentID: intentID}
	e, corrupted := j.loadLocked(k)
	if corrupted {
		return fmt.Errorf("journal: entry %s is corrupted, refusing be modification", intentID)
	}
	if e == nil {
		return fmt.Errorf("journal: no entry for intent %s to record be modification against", intentID)
	}
	if e.BEModified {
		return nil // idempotent: already applied.
	}
	e.BEModified = true
	t := utc
	e.BEModifiedAt = &t
	e.BEStopPrice = &newStop
	return j.saveLocked(k, e)
}

// IsBEModified is the idempotency gate the executor's CheckBreakEven checks
// before attempting a stop modification.
func (j *Journal) IsBEModified(intentID, date, stream string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	k := Key{TradingDate: date, Stream: stream, IntentID: intentID}
	e, corrupted := j.loadLocked(k)
	if corrupted {
		return true // fail closed: never double-apply after a corrupted read.
	}
	return e != nil && e.BEModified
}

func (j *Journal) invariantViolation(k Key, reason string) {
	j.sink.Emit(events.JournalInvariantViolation, events.Fields{
		"intent_id": k.IntentID, "trading_date": k.TradingDate, "stream": k.Stream, "reason": reason,
	})
	if j.standDown != nil {
		j.standDown(k.Stream, reason)
	}
}

// HasEntryFillForStream scans {date}_{stream}_*.json for any entry with a
// nonzero entry fill, skipping unparseable files rather than failing the
// whole scan.
func (j *Journal) HasEntryFillForStream(date, stream string) (bool, error) {
	entries, err := j.scanStream(date, stream)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.EntryFilledQtyTotal > 0 {
			return true, nil
		}
	}
	return false, nil
}

// HasCompletedTradeForStream scans for any completed trade on the stream.
func (j *Journal) HasCompletedTradeForStream(date, stream string) (bool, error) {
	entries, err := j.scanStream(date, stream)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.TradeCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (j *Journal) scanStream(date, stream string) ([]*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	pattern := filepath.Join(j.baseDir, fmt.Sprintf("%s_%s_*.json", date, stream))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("journal: glob %s: %w", pattern, err)
	}
	var out []*Entry
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue // skip unreadable
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue // skip unparseable
		}
		out = append(out, &e)
	}
	return out, nil
}

// keyFromFileName parses a journal file name into a Key.
func keyFromFileName(name string) (Key, bool) {
	name = strings.TrimSuffix(filepath.Base(name), ".json")
	parts := strings.SplitN(name, "_", 3)
	if len(parts) != 3 {
		return Key{}, false
	}
	return Key{TradingDate: parts[0], Stream: parts[1], IntentID: parts[2]}, true
}
