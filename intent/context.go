package intent

import (
	"fmt"
	"strings"
)

// ExecutionContext pairs the canonical instrument/stream the strategy
// reasons about with the instrument actually routed to the broker (e.g.
// canonical "ES" may execute as "MES"). Construction guards against an
// identity-leak class of bug: the execution symbol must never appear as a
// substring of the canonical stream id, which would make broker-side logs
// and tags ambiguous between the two namespaces.
type ExecutionContext struct {
	CanonicalInstrument string
	Stream              string
	ExecutionInstrument string
}

// NewExecutionContext validates and constructs an ExecutionContext.
func NewExecutionContext(canonicalInstrument, stream, executionInstrument string) (ExecutionContext, error) {
	if canonicalInstrument == "" || stream == "" || executionInstrument == "" {
		return ExecutionContext{}, fmt.Errorf("intent: execution context requires non-empty canonical instrument, stream and execution instrument")
	}
	if strings.Contains(stream, executionInstrument) {
		return ExecutionContext{}, fmt.Errorf(
			"intent: execution instrument %q must not appear as a substring of stream %q (identity leak)",
			executionInstrument, stream)
	}
	return ExecutionContext{
		CanonicalInstrument: canonicalInstrument,
		Stream:              stream,
		ExecutionInstrument: executionInstrument,
	}, nil
}
