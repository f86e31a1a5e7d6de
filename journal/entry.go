// Package journal implements the durable, per-intent source of truth for
// idempotency: the ExecutionJournal. One JSON document per
// (trading_date, stream, intent_id) triple, guarded by a single mutex so
// reads and writes never interleave.
package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"qtsw2exec/intent"
)

// Entry is the persisted record for one intent. Field names use
// snake_case directly as JSON tags so the on-disk files read the same as
// the domain vocabulary they describe.
type Entry struct {
	// Identity.
	IntentID    string `json:"intent_id"`
	TradingDate string `json:"trading_date"`
	Stream      string `json:"stream"`
	Instrument  string `json:"instrument"`

	// Submission.
	EntrySubmitted      bool             `json:"entry_submitted"`
	EntrySubmittedAt    *time.Time       `json:"entry_submitted_at,omitempty"`
	BrokerOrderID       string           `json:"broker_order_id,omitempty"`
	EntryOrderType      string           `json:"entry_order_type,omitempty"`
	ExpectedEntryPrice  *decimal.Decimal `json:"expected_entry_price,omitempty"`
	Rejected            bool             `json:"rejected"`
	RejectedAt          *time.Time       `json:"rejected_at,omitempty"`
	RejectionReason     string           `json:"rejection_reason,omitempty"`

	// Entry fills (delta-accumulated).
	EntryFilledQtyTotal int              `json:"entry_filled_qty_total"`
	EntryFillNotional   decimal.Decimal  `json:"entry_fill_notional"`
	EntryAvgFillPrice   decimal.Decimal  `json:"entry_avg_fill_price"`
	EntryFilledAtUTC    *time.Time       `json:"entry_filled_at_utc,omitempty"`

	// Exit fills (delta-accumulated).
	ExitFilledQtyTotal int             `json:"exit_filled_qty_total"`
	ExitFillNotional   decimal.Decimal `json:"exit_fill_notional"`
	ExitAvgFillPrice   decimal.Decimal `json:"exit_avg_fill_price"`
	ExitOrderType      string          `json:"exit_order_type,omitempty"`
	ExitFilledAtUTC    *time.Time      `json:"exit_filled_at_utc,omitempty"`

	// Immutable trade attributes, set on first entry fill.
	Direction          intent.Direction `json:"direction"`
	ContractMultiplier *decimal.Decimal `json:"contract_multiplier,omitempty"`

	// Break-even modification.
	BEModified      bool             `json:"be_modified"`
	BEModifiedAt    *time.Time       `json:"be_modified_at,omitempty"`
	BEStopPrice     *decimal.Decimal `json:"be_stop_price,omitempty"`

	// Costs.
	SlippagePoints  *decimal.Decimal `json:"slippage_points,omitempty"`
	SlippageDollars *decimal.Decimal `json:"slippage_dollars,omitempty"`
	Commission      *decimal.Decimal `json:"commission,omitempty"`
	Fees            *decimal.Decimal `json:"fees,omitempty"`

	// Completion.
	TradeCompleted      bool             `json:"trade_completed"`
	RealizedPnLPoints   *decimal.Decimal `json:"realized_pnl_points,omitempty"`
	RealizedPnLGross    *decimal.Decimal `json:"realized_pnl_gross,omitempty"`
	RealizedPnLNet      *decimal.Decimal `json:"realized_pnl_net,omitempty"`
	CompletionReason    string           `json:"completion_reason,omitempty"`
	CompletedAtUTC      *time.Time       `json:"completed_at_utc,omitempty"`
}

// Key identifies an Entry's on-disk location.
type Key struct {
	TradingDate string
	Stream      string
	IntentID    string
}

func (k Key) fileName() string {
	return k.TradingDate + "_" + k.Stream + "_" + k.IntentID + ".json"
}
