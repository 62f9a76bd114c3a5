// Package sequencer owns the ordered walk over a construction plan: registry
// lookup, technique synthesis on a miss, paradigm dispatch, per-operation
// failure recovery, the fallback artifact, and final document finalization.
package sequencer

import (
	"time"

	"gemsmith/internal/backend"
	"gemsmith/internal/plan"
)

// OutcomeStatus classifies one operation's result.
type OutcomeStatus string

const (
	// StatusSuccess means the operation produced or modified an artifact.
	StatusSuccess OutcomeStatus = "SUCCESS"
	// StatusSkippedUnknownHandled means the operation was unknown and a
	// fallback stub stood in for it; geometry was still produced.
	StatusSkippedUnknownHandled OutcomeStatus = "SKIPPED_UNKNOWN_HANDLED"
	// StatusFailed means the operation errored and was skipped. The walk
	// continues.
	StatusFailed OutcomeStatus = "FAILED"
)

// OperationOutcome is one append-only entry of the outcome log. The log has
// exactly one entry per attempted operation, in plan order.
type OperationOutcome struct {
	Index     int
	Operation string
	Status    OutcomeStatus
	Artifact  *backend.ArtifactRef
	Error     string
	Duration  time.Duration
}

// ExecutionContext is the mutable per-run state threaded through the walk.
// Only the sequencer worker touches it.
type ExecutionContext struct {
	last     *backend.ArtifactRef
	byOp     map[string]backend.ArtifactRef
	quality  *plan.QualitySetupSpec
	outcomes []OperationOutcome
}

func newExecutionContext() *ExecutionContext {
	return &ExecutionContext{byOp: make(map[string]backend.ArtifactRef)}
}

// Last returns the most recently produced artifact, or nil.
func (ec *ExecutionContext) Last() *backend.ArtifactRef {
	return ec.last
}

// Record stores an artifact as the latest and indexes it by operation name.
func (ec *ExecutionContext) Record(opName string, ref backend.ArtifactRef) {
	r := ref
	ec.last = &r
	ec.byOp[opName] = ref
}

// ByOperation looks up the artifact a named operation produced.
func (ec *ExecutionContext) ByOperation(opName string) (backend.ArtifactRef, bool) {
	ref, ok := ec.byOp[opName]
	return ref, ok
}

// SetQuality records the active quality settings from setup_quality.
func (ec *ExecutionContext) SetQuality(q plan.QualitySetupSpec) {
	ec.quality = &q
}

// Quality returns the active quality settings, or nil before setup.
func (ec *ExecutionContext) Quality() *plan.QualitySetupSpec {
	return ec.quality
}

// Outcomes returns the append-only outcome log.
func (ec *ExecutionContext) Outcomes() []OperationOutcome {
	return ec.outcomes
}

func (ec *ExecutionContext) appendOutcome(o OperationOutcome) {
	ec.outcomes = append(ec.outcomes, o)
}
