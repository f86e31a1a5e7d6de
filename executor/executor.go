// Package executor implements IntentExecutor: the per-intent state
// machine that submits entry, protective and break-even orders with
// retry and fail-closed policy. It is the hardest part of the core
// because it's the only component that touches every other
// one: the journal, the coordinator, the kill switch, the market lock's
// guarantee, and the adapter.
package executor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"qtsw2exec/adapter"
	"qtsw2exec/coordinator"
	"qtsw2exec/events"
	"qtsw2exec/intent"
	"qtsw2exec/journal"
	"qtsw2exec/killswitch"
	"qtsw2exec/summary"
)

// State is an intent's position in the state machine.
type State int

const (
	StateIdle State = iota
	StateEntrySubmitted
	StateEntryFilling
	StateProtected
	StateCompleted
	StateRejected
	StateFlattening
	StateStoodDown
)

// Policy is the expected-quantity/instrument-binding expectation
// registered at submission time.
type Policy struct {
	ExpectedQty         int
	MaxQty              int
	CanonicalInstrument string
	ExecutionInstrument string
	ContractMultiplier  decimal.Decimal
}

// tracked is the executor's private bookkeeping for one intent.
type tracked struct {
	mu sync.Mutex

	it     intent.Intent
	state  State
	stream string

	entryCumulative int
	exitCumulative  int

	firstFillAt   *time.Time
	stopAckAt     *time.Time
	targetAckAt   *time.Time
}

// RecoveryPredicate lets the host application gate execution on
// system-wide health beyond the kill switch: if execution is not
// currently allowed, fail-closed. The zero value always allows execution.
type RecoveryPredicate func() bool

// SubmitOutcome is the result of SubmitIntent, used by callers and tests
// to distinguish the various submission failure paths.
type SubmitOutcome string

const (
	OutcomeSubmitted SubmitOutcome = "SUBMITTED"
	OutcomeDuplicate SubmitOutcome = "DUPLICATE_SKIPPED"
	OutcomeBlocked   SubmitOutcome = "BLOCKED"
	OutcomeStoodDown SubmitOutcome = "STREAM_STOOD_DOWN"
	OutcomeRejected  SubmitOutcome = "REJECTED"
)

// Executor is the IntentExecutor.
type Executor struct {
	journal     *journal.Journal
	coordinator *coordinator.Coordinator
	killSwitch  *killswitch.KillSwitch
	adapter     adapter.ExecutionAdapter
	sink        events.Sink
	notifier    events.Notifier
	summary     *summary.Summary
	incidentDir string
	recovery    RecoveryPredicate

	mu             sync.RWMutex
	policies       map[string]Policy
	intents        map[string]*tracked
	standDown      map[string]bool // stream -> stood down
}

// New wires an Executor. adapter's SetCallbacks is invoked internally so
// the executor owns the single registration point for fill/order-update
// callbacks.
func New(j *journal.Journal, c *coordinator.Coordinator, ks *killswitch.KillSwitch, ad adapter.ExecutionAdapter, sink events.Sink, notifier events.Notifier, sum *summary.Summary, incidentDir string, recovery RecoveryPredicate) *Executor {
	if recovery == nil {
		recovery = func() bool { return true }
	}
	e := &Executor{
		journal:     j,
		coordinator: c,
		killSwitch:  ks,
		adapter:     ad,
		sink:        sink,
		notifier:    notifier,
		summary:     sum,
		incidentDir: incidentDir,
		recovery:    recovery,
		policies:    make(map[string]Policy),
		intents:     make(map[string]*tracked),
		standDown:   make(map[string]bool),
	}
	ad.SetCallbacks(e.handleOrderUpdate, e.handleExecution)
	return e
}

func (e *Executor) isStoodDown(stream string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.standDown[stream]
}

// StandDownStream is the stream-stand-down callback every other
// component (journal, coordinator) is wired to invoke. It's idempotent
// and safe to call from any goroutine.
func (e *Executor) StandDownStream(stream, reason string) {
	e.mu.Lock()
	already := e.standDown[stream]
	e.standDown[stream] = true
	e.mu.Unlock()
	if already {
		return
	}
	e.sink.Emit(events.StreamStoodDown, events.Fields{"stream": stream, "reason": reason})
	e.notifier.Notify(events.PriorityEmergency, "stream stood down: "+stream, reason)
}

// entryOrderKind resolves which of the two supported entry kinds
// an intent uses. A breakout-triggered intent (trigger
// reason containing "BREAKOUT") submits a stop-market entry; otherwise a
// limit entry when an entry price is supplied, else a market entry.
func entryOrderKind(it intent.Intent) adapter.OrderKind {
	if strings.Contains(strings.ToUpper(string(it.TriggerReason)), "BREAKOUT") {
		return adapter.OrderKindStopMarket
	}
	if it.EntryPrice != nil {
		return adapter.OrderKindLimit
	}
	return adapter.OrderKindMarket
}

// SubmitIntent drives the submission sequence end to end. ec binds the canonical instrument/stream to the instrument
// actually routed to the broker.
func (e *Executor) SubmitIntent(ctx context.Context, it intent.Intent, ec intent.ExecutionContext, expectedQty, maxQty int, contractMultiplier decimal.Decimal) SubmitOutcome {
	intentID := it.ID()

	if e.isStoodDown(it.Stream) {
		e.summary.IncBlocked()
		return OutcomeStoodDown
	}

	if e.killSwitch.IsEnabled() {
		if err := e.killSwitch.LastError(); err != nil {
			e.sink.Emit(events.KillSwitchErrorFailClosed, events.Fields{
				"intent_id": intentID, "stream": it.Stream, "error": err.Error(),
			})
		} else {
			e.sink.Emit(events.KillSwitchActive, events.Fields{"intent_id": intentID, "stream": it.Stream})
		}
		e.summary.IncBlocked()
		return OutcomeBlocked
	}

	if e.journal.IsIntentSubmitted(intentID, it.TradingDate, it.Stream) {
		e.sink.Emit(events.IntentDuplicateSkipped, events.Fields{"intent_id": intentID})
		e.summary.IncDuplicatesSkipped()
		return OutcomeDuplicate
	}

	e.mu.Lock()
	e.policies[intentID] = Policy{
		ExpectedQty: expectedQty, MaxQty: maxQty,
		CanonicalInstrument: ec.CanonicalInstrument, ExecutionInstrument: ec.ExecutionInstrument,
		ContractMultiplier: contractMultiplier,
	}
	e.intents[intentID] = &tracked{it: it, state: StateEntrySubmitted, stream: it.Stream}
	e.mu.Unlock()
	e.sink.Emit(events.IntentPolicyRegistered, events.Fields{
		"intent_id": intentID, "expected_qty": expectedQty, "max_qty": maxQty,
		"canonical_instrument": ec.CanonicalInstrument, "execution_instrument": ec.ExecutionInstrument,
	})
	e.summary.IncIntentsSeen()

	kind := entryOrderKind(it)
	utc := time.Now().UTC()
	e.sink.Emit(events.OrderSubmitAttempt, events.Fields{"intent_id": intentID, "leg": "ENTRY"})
	result := e.adapter.SubmitEntry(intentID, ec.ExecutionInstrument, it.Direction, it.EntryPrice, expectedQty, kind, utc)

	if !result.Success {
		e.sink.Emit(events.OrderSubmitFail, events.Fields{"intent_id": intentID, "error": errString(result.Err)})
		_ = e.journal.RecordRejection(intentID, it.TradingDate, it.Stream, errString(result.Err))
		e.setState(intentID, StateRejected)
		e.summary.IncRejected()
		return OutcomeRejected
	}

	e.sink.Emit(events.OrderSubmitSuccess, events.Fields{"intent_id": intentID, "broker_order_id": result.BrokerOrderID})
	e.sink.Emit(events.OrderSubmitted, events.Fields{"intent_id": intentID})
	if err := e.journal.RecordSubmission(intentID, it.TradingDate, it.Stream, ec.ExecutionInstrument, orderKindString(kind), result.BrokerOrderID, it.EntryPrice); err != nil {
		e.sink.Emit(events.JournalValidationFailed, events.Fields{"intent_id": intentID, "error": err.Error()})
	}
	e.summary.IncSubmitted()
	return OutcomeSubmitted
}

func orderKindString(k adapter.OrderKind) string {
	switch k {
	case adapter.OrderKindLimit:
		return "LIMIT"
	case adapter.OrderKindStopMarket:
		return "STOP_MARKET"
	default:
		return "MARKET"
	}
}

func (e *Executor) setState(intentID string, s State) {
	e.mu.RLock()
	t, ok := e.intents[intentID]
	e.mu.RUnlock()
	if !ok {
		return
	}
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (e *Executor) getTracked(intentID string) (*tracked, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.intents[intentID]
	return t, ok
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
