// Package adapter defines the ExecutionAdapter capability contract
// that any brokerage binding must satisfy, plus three
// concrete bindings selected by Mode: a no-op DRY-RUN adapter, a SIM
// adapter bound to a sandboxed brokerage testnet, and a fail-closed-stub
// LIVE adapter.
package adapter

import (
	"time"

	"github.com/shopspring/decimal"

	"qtsw2exec/intent"
)

// OrderKind is the order type an entry submission may take.
type OrderKind int

const (
	OrderKindMarket OrderKind = iota
	OrderKindLimit
	OrderKindStopMarket
)

// OrderState is the broker-reported lifecycle stage of a submitted order.
type OrderState int

const (
	OrderStateSubmitted OrderState = iota
	OrderStateAccepted
	OrderStateRejected
	OrderStateCancelled
	OrderStateFilled
	OrderStatePartiallyFilled
)

// SubmitResult is the outcome of a submission call.
type SubmitResult struct {
	Success       bool
	BrokerOrderID string
	Err           error
}

// Position is one leg of an account snapshot.
type Position struct {
	Instrument string
	Direction  intent.Direction
	Quantity   int
}

// WorkingOrder is one open order in an account snapshot.
type WorkingOrder struct {
	BrokerOrderID string
	Tag           string // robot-owned tags decode via package codec
	Instrument    string
	Quantity      int
}

// AccountSnapshot is the result of get_account_snapshot.
type AccountSnapshot struct {
	Positions     []Position
	WorkingOrders []WorkingOrder
}

// OrderUpdateCallback and ExecutionCallback are the two adapter
// callbacks: on_order_update(order_state, error?) and
// on_execution(fill_price, delta_qty), both additionally carrying the
// order's robot tag, which the executor decodes via package codec to
// route the callback to the right intent/leg.
type OrderUpdateCallback func(tag string, state OrderState, err error)
type ExecutionCallback func(tag string, fillPrice decimal.Decimal, deltaQty int, utc time.Time)

// ExecutionAdapter is the contract the core requires from any brokerage
// binding. A concrete adapter binds to a specific
// brokerage; the core treats it as an opaque capability.
type ExecutionAdapter interface {
	SubmitEntry(intentID, instrument string, direction intent.Direction, entryPrice *decimal.Decimal, qty int, kind OrderKind, utc time.Time) SubmitResult
	SubmitProtectiveStop(intentID, instrument string, direction intent.Direction, stopPrice decimal.Decimal, qty int, ocoGroup string, utc time.Time) SubmitResult
	SubmitTarget(intentID, instrument string, direction intent.Direction, limitPrice decimal.Decimal, qty int, ocoGroup string, utc time.Time) SubmitResult
	ModifyStopTo(intentID, instrument string, newStop decimal.Decimal, utc time.Time) error
	Flatten(intentID, instrument string, utc time.Time) error
	CancelIntentOrders(intentID string, utc time.Time) error
	GetAccountSnapshot(utc time.Time) (AccountSnapshot, error)
	CancelRobotOwnedWorkingOrders(snapshot AccountSnapshot, utc time.Time) error

	// SetCallbacks registers the executor's fill/order-update handlers.
	// Called once at wiring time before any submission.
	SetCallbacks(onOrderUpdate OrderUpdateCallback, onExecution ExecutionCallback)
}
