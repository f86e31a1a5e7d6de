// Package intent defines the immutable, content-addressed description of a
// desired trade that the strategy generator hands to the executor.
package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TriggerReason is a short, strategy-supplied label for why an intent was
// raised (e.g. "BREAKOUT", "VWAP_REVERSION"). It's informational only and
// does not participate in the intent id.
type TriggerReason string

// Intent is the immutable descriptor of a desired trade. Two Intents with
// identical canonical fields are, by design, the same intent: ID is a pure
// function of the ten identity+plan fields below.
type Intent struct {
	// Identity fields.
	TradingDate        string // YYYY-MM-DD
	Stream             string // logical strategy stream, e.g. "ES1"
	CanonicalInstrument string // logical instrument, e.g. "ES"
	SessionTag         string
	SlotTime           string // local wall-clock HH:MM

	// Plan fields.
	Direction        Direction
	EntryPrice       *decimal.Decimal
	StopPrice        *decimal.Decimal
	TargetPrice      *decimal.Decimal
	BreakEvenTrigger *decimal.Decimal

	// Plan fields excluded from the id: informational only.
	EntryTimestamp time.Time
	TriggerReason  TriggerReason
}

// canonicalField renders one field of the intent id input. Decimals are
// fixed to two places; an absent value is the literal "NULL", matching
// the canonicalization rule exactly so re-hashing a reconstructed
// Intent reproduces the same id.
func canonicalField(d *decimal.Decimal) string {
	if d == nil {
		return "NULL"
	}
	return d.StringFixed(2)
}

// canonicalDirection renders Direction for the id input: the literal "NULL"
// when undecided, matching every other absent field, rather than Direction's
// display-facing empty string.
func canonicalDirection(d Direction) string {
	if !d.IsSet() {
		return "NULL"
	}
	return d.String()
}

// canonicalForm is the pipe-joined string the intent id hashes.
func (i Intent) canonicalForm() string {
	fields := []string{
		i.TradingDate,
		i.Stream,
		i.CanonicalInstrument,
		i.SessionTag,
		i.SlotTime,
		canonicalDirection(i.Direction),
		canonicalField(i.EntryPrice),
		canonicalField(i.StopPrice),
		canonicalField(i.TargetPrice),
		canonicalField(i.BreakEvenTrigger),
	}
	return strings.Join(fields, "|")
}

// ID computes the intent id: the first 16 hex characters of the SHA-256
// digest of the canonical form. Deterministic and content-addressed —
// resubmitting the same plan, whether from a restart or a duplicate
// strategy tick, always yields the same id.
func (i Intent) ID() string {
	sum := sha256.Sum256([]byte(i.canonicalForm()))
	return hex.EncodeToString(sum[:])[:16]
}

// IsComplete reports whether the fields HandleEntryFill requires before it
// will place protective orders are all present.
func (i Intent) IsComplete() bool {
	return i.Direction.IsSet() && i.StopPrice != nil && i.TargetPrice != nil
}

func (i Intent) String() string {
	return fmt.Sprintf("Intent{id=%s date=%s stream=%s instrument=%s dir=%s}",
		i.ID(), i.TradingDate, i.Stream, i.CanonicalInstrument, i.Direction)
}
