package adapter

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"qtsw2exec/codec"
	"qtsw2exec/intent"
)

// NullAdapter is the DRY-RUN binding: every submission succeeds
// synchronously with a fabricated broker order id, and immediately fires
// a full simulated fill at the requested price so the rest of the state
// machine can be exercised end to end without a brokerage on the other
// end.
type NullAdapter struct {
	onOrderUpdate OrderUpdateCallback
	onExecution   ExecutionCallback
	seq           int
}

// NewNullAdapter constructs a DRY-RUN adapter.
func NewNullAdapter() *NullAdapter {
	return &NullAdapter{}
}

func (n *NullAdapter) SetCallbacks(onOrderUpdate OrderUpdateCallback, onExecution ExecutionCallback) {
	n.onOrderUpdate = onOrderUpdate
	n.onExecution = onExecution
}

func (n *NullAdapter) nextOrderID() string {
	n.seq++
	return "DRYRUN-ORDER-" + strconv.Itoa(n.seq)
}

func (n *NullAdapter) SubmitEntry(intentID, instrument string, direction intent.Direction, entryPrice *decimal.Decimal, qty int, kind OrderKind, utc time.Time) SubmitResult {
	tag := codec.Tag(intentID, codec.LegEntry)
	id := n.nextOrderID()
	fillPrice := decimal.Zero
	if entryPrice != nil {
		fillPrice = *entryPrice
	}
	if n.onOrderUpdate != nil {
		n.onOrderUpdate(tag, OrderStateAccepted, nil)
	}
	if n.onExecution != nil {
		n.onExecution(tag, fillPrice, qty, utc)
	}
	return SubmitResult{Success: true, BrokerOrderID: id}
}

func (n *NullAdapter) SubmitProtectiveStop(intentID, instrument string, direction intent.Direction, stopPrice decimal.Decimal, qty int, ocoGroup string, utc time.Time) SubmitResult {
	tag := codec.Tag(intentID, codec.LegStop)
	if n.onOrderUpdate != nil {
		n.onOrderUpdate(tag, OrderStateAccepted, nil)
	}
	return SubmitResult{Success: true, BrokerOrderID: n.nextOrderID()}
}

func (n *NullAdapter) SubmitTarget(intentID, instrument string, direction intent.Direction, limitPrice decimal.Decimal, qty int, ocoGroup string, utc time.Time) SubmitResult {
	tag := codec.Tag(intentID, codec.LegTarget)
	if n.onOrderUpdate != nil {
		n.onOrderUpdate(tag, OrderStateAccepted, nil)
	}
	return SubmitResult{Success: true, BrokerOrderID: n.nextOrderID()}
}

func (n *NullAdapter) ModifyStopTo(intentID, instrument string, newStop decimal.Decimal, utc time.Time) error {
	return nil
}

func (n *NullAdapter) Flatten(intentID, instrument string, utc time.Time) error {
	return nil
}

func (n *NullAdapter) CancelIntentOrders(intentID string, utc time.Time) error {
	return nil
}

func (n *NullAdapter) GetAccountSnapshot(utc time.Time) (AccountSnapshot, error) {
	return AccountSnapshot{}, nil
}

func (n *NullAdapter) CancelRobotOwnedWorkingOrders(snapshot AccountSnapshot, utc time.Time) error {
	return nil
}
