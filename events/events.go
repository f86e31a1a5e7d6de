// Package events defines the stable log event taxonomy the execution
// subsystem emits. Every transition emits exactly one event; field names
// are part of the contract and must stay stable for downstream
// grepping, so they're typed here rather than passed as free-form maps.
package events

// Type is one of the fixed taxonomy of event names.
type Type string

const (
	SimAccountVerified           Type = "SIM_ACCOUNT_VERIFIED"
	ExecutionBlocked             Type = "EXECUTION_BLOCKED"
	KillSwitchActive             Type = "KILL_SWITCH_ACTIVE"
	KillSwitchErrorFailClosed    Type = "KILL_SWITCH_ERROR_FAIL_CLOSED"
	CanonicalMarketLockAcquired  Type = "CANONICAL_MARKET_LOCK_ACQUIRED"
	CanonicalMarketLockStale     Type = "CANONICAL_MARKET_LOCK_STALE"
	CanonicalMarketLockFailed    Type = "CANONICAL_MARKET_LOCK_FAILED"
	CanonicalMarketLockReleased  Type = "CANONICAL_MARKET_LOCK_RELEASED"
	OrderSubmitAttempt           Type = "ORDER_SUBMIT_ATTEMPT"
	OrderSubmitSuccess           Type = "ORDER_SUBMIT_SUCCESS"
	OrderSubmitFail              Type = "ORDER_SUBMIT_FAIL"
	OrderSubmitted               Type = "ORDER_SUBMITTED"
	OrderAcknowledged            Type = "ORDER_ACKNOWLEDGED"
	OrderRejected                Type = "ORDER_REJECTED"
	OrderCancelled               Type = "ORDER_CANCELLED"
	ExecutionPartialFill         Type = "EXECUTION_PARTIAL_FILL"
	ExecutionFilled              Type = "EXECUTION_FILLED"
	ProtectivesPlaced            Type = "PROTECTIVES_PLACED"
	ProtectiveOrdersSubmitted    Type = "PROTECTIVE_ORDERS_SUBMITTED"
	ProtectiveOrdersFailedFlat   Type = "PROTECTIVE_ORDERS_FAILED_FLATTENED"
	UnprotectedPositionTimeout   Type = "UNPROTECTED_POSITION_TIMEOUT"
	IntentIncompleteUnprotected  Type = "INTENT_INCOMPLETE_UNPROTECTED_POSITION"
	StopModifyAttempt            Type = "STOP_MODIFY_ATTEMPT"
	StopModifySuccess            Type = "STOP_MODIFY_SUCCESS"
	StopModifyFail               Type = "STOP_MODIFY_FAIL"
	StopModifySkipped            Type = "STOP_MODIFY_SKIPPED"
	ExecutionSlippageDetected    Type = "EXECUTION_SLIPPAGE_DETECTED"
	JournalCorruption            Type = "EXECUTION_JOURNAL_CORRUPTION"
	JournalInvariantViolation    Type = "EXECUTION_JOURNAL_INVARIANT_VIOLATION"
	JournalValidationFailed      Type = "EXECUTION_JOURNAL_VALIDATION_FAILED"
	JournalOverfill              Type = "EXECUTION_JOURNAL_OVERFILL"
	TradeCompleted               Type = "TRADE_COMPLETED"
	FlattenAttempt               Type = "FLATTEN_ATTEMPT"
	FlattenSuccess                Type = "FLATTEN_SUCCESS"
	FlattenFail                  Type = "FLATTEN_FAIL"
	FlattenRetryAttempt          Type = "FLATTEN_RETRY_ATTEMPT"
	FlattenRetrySucceeded        Type = "FLATTEN_RETRY_SUCCEEDED"
	PositionFlattenFailClosed    Type = "POSITION_FLATTEN_FAIL_CLOSED"
	IntentPolicyRegistered       Type = "INTENT_POLICY_REGISTERED"
	IntentDuplicateSkipped       Type = "INTENT_DUPLICATE_SKIPPED"
	StreamStoodDown              Type = "STREAM_STOOD_DOWN"
	ExposureMismatchDetected     Type = "EXPOSURE_MISMATCH_DETECTED"
)

// Priority mirrors the notification sink's priority tagging: 2 is the
// emergency tier used for every fail-closed path.
type Priority int

const (
	PriorityInfo      Priority = 0
	PriorityWarning   Priority = 1
	PriorityEmergency Priority = 2
)

// Fields is the small structured-field container that replaces the
// ad-hoc "dynamic anonymous object" log payload (design
// Notes). Field names here are exactly the names downstream log consumers
// grep for, so add fields rather than renaming existing ones.
type Fields map[string]any
