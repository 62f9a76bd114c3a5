package sequencer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gemsmith/internal/backend"
	"gemsmith/internal/config"
	"gemsmith/internal/logging"
	"gemsmith/internal/plan"
	"gemsmith/internal/registry"
	"gemsmith/internal/synth"
)

// State is the sequencer's lifecycle state.
type State string

const (
	StateReady                 State = "READY"
	StateRunning               State = "RUNNING"
	StateCompletedWithArtifact State = "COMPLETED_WITH_ARTIFACT"
	StateCompletedEmpty        State = "COMPLETED_EMPTY"
)

// Result is the final handoff to the caller. Artifact is non-nil whenever
// the run completed, even if every operation failed (fallback guarantee).
type Result struct {
	Artifact        *backend.ArtifactRef
	OutcomeLog      []OperationOutcome
	MaterialApplied bool
	State           State
	Cancelled       bool
}

// Config wires a sequencer. Precision and Artistic default to the shipped
// document adapters when nil.
type Config struct {
	Document    *backend.Document
	Registry    *registry.Registry
	Synthesizer *synth.Synthesizer
	Runner      *synth.Runner
	Checker     *synth.SafetyChecker
	Precision   backend.PrecisionBackend
	Artistic    backend.ArtisticBackend

	// ResultMarker names the final artifact in the document.
	ResultMarker string
	// FallbackSeed varies the fallback ring deterministically.
	FallbackSeed int64
	// EventBuffer sizes the progress channel; 0 means a sane default.
	EventBuffer int
}

// Sequencer executes one construction plan on one worker goroutine. It is
// single-use: Execute may be called once.
type Sequencer struct {
	doc         *backend.Document
	registry    *registry.Registry
	synthesizer *synth.Synthesizer
	dispatcher  *Dispatcher
	fallback    *FallbackProvider

	resultMarker string
	state        State

	events    chan Event
	closeOnce sync.Once
}

// New builds a sequencer from config.
func New(cfg Config) *Sequencer {
	if cfg.Precision == nil {
		cfg.Precision = backend.NewNURBSAdapter(cfg.Document)
	}
	if cfg.Artistic == nil {
		cfg.Artistic = backend.NewMeshAdapter(cfg.Document)
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.ResultMarker == "" {
		cfg.ResultMarker = "gemsmith_result"
	}
	if cfg.Checker == nil {
		// Strict allow-list: no extra imports unless explicitly configured.
		cfg.Checker = synth.NewSafetyChecker(config.SandboxConfig{})
	}
	return &Sequencer{
		doc:          cfg.Document,
		registry:     cfg.Registry,
		synthesizer:  cfg.Synthesizer,
		dispatcher:   NewDispatcher(cfg.Precision, cfg.Artistic, cfg.Registry, cfg.Runner, cfg.Checker),
		fallback:     NewFallbackProvider(cfg.Precision, cfg.FallbackSeed),
		resultMarker: cfg.ResultMarker,
		state:        StateReady,
		events:       make(chan Event, cfg.EventBuffer),
	}
}

// Events returns the progress channel. It is closed when Execute returns.
func (s *Sequencer) Events() <-chan Event {
	return s.events
}

// State returns the current lifecycle state.
func (s *Sequencer) State() State {
	return s.state
}

func (s *Sequencer) closeEvents() {
	s.closeOnce.Do(func() { close(s.events) })
}

// Execute walks the plan in declared order. Per-operation failures are
// recorded and skipped; only finalization errors fail the run. The document
// is the single-writer resource: a second in-flight run on the same
// document is rejected with ErrDocumentBusy, never interleaved.
func (s *Sequencer) Execute(ctx context.Context, p *plan.ConstructionPlan) (*Result, error) {
	release, err := s.doc.TryAcquire()
	if err != nil {
		return nil, err
	}
	defer release()
	defer s.closeEvents()

	timer := logging.StartTimer(logging.CategorySequencer, "plan_execution")
	defer timer.Stop()

	s.state = StateRunning
	ec := newExecutionContext()
	cancelled := false

	s.emit(Event{Type: EventRunStarted, Message: fmt.Sprintf("%d operations", len(p.Operations))})
	logging.Sequencer("starting plan execution: %d operations", len(p.Operations))

	for i, op := range p.Operations {
		// Cancellation is cooperative and observed between operations only;
		// a running backend call is never interrupted mid-flight.
		if ctx.Err() != nil {
			cancelled = true
			logging.Sequencer("cancelled after %d/%d operations", i, len(p.Operations))
			break
		}

		s.emit(Event{Type: EventOperationStart, OperationIndex: i, OperationName: op.Name})
		outcome := s.runOperation(ctx, i, op, ec)
		ec.appendOutcome(outcome)
		s.emit(Event{Type: EventOperationDone, OperationIndex: i, OperationName: op.Name, Outcome: &outcome})
	}

	artifact := ec.Last()
	if artifact == nil {
		ref, err := s.fallback.Provide()
		if err != nil {
			s.state = StateCompletedEmpty
			return &Result{OutcomeLog: ec.Outcomes(), State: s.state, Cancelled: cancelled},
				&FinalizationError{Step: "fallback artifact", Cause: err}
		}
		artifact = &ref
		s.emit(Event{Type: EventFallbackUsed, Message: ref.Name})
	}

	if err := s.doc.AttachResultMarker(*artifact, s.resultMarker); err != nil {
		s.state = StateCompletedEmpty
		return &Result{Artifact: artifact, OutcomeLog: ec.Outcomes(), State: s.state, Cancelled: cancelled},
			&FinalizationError{Step: "result marker", Cause: err}
	}
	if err := s.doc.ApplyMaterial(p.Materials); err != nil {
		s.state = StateCompletedEmpty
		return &Result{Artifact: artifact, OutcomeLog: ec.Outcomes(), State: s.state, Cancelled: cancelled},
			&FinalizationError{Step: "material application", Cause: err}
	}

	s.state = StateCompletedWithArtifact
	result := &Result{
		Artifact:        artifact,
		OutcomeLog:      ec.Outcomes(),
		MaterialApplied: true,
		State:           s.state,
		Cancelled:       cancelled,
	}
	s.emit(Event{Type: EventRunFinished, Message: string(s.state)})
	logging.Sequencer("plan execution finished: %s, %d outcomes", s.state, len(result.OutcomeLog))
	return result, nil
}

// runOperation resolves, synthesizes if needed, and dispatches one
// operation. It never returns an error: failures become FAILED outcomes and
// the walk continues.
func (s *Sequencer) runOperation(ctx context.Context, index int, op plan.Operation, ec *ExecutionContext) OperationOutcome {
	start := time.Now()
	stubbed := false

	if !s.registry.Exists(op.Name) && op.SynthesizedCode == "" {
		s.emit(Event{Type: EventSynthesisStart, OperationIndex: index, OperationName: op.Name})
		logging.Sequencer("registry miss for %s; invoking synthesizer", op.Name)

		res := s.synthesizer.Synthesize(ctx, synth.TechniqueRequest{
			Name:       op.Name,
			Paradigm:   s.registry.Paradigm(op),
			Parameters: op.Parameters,
		})
		s.registry.RegisterTechnique(registry.Technique{Name: op.Name, Source: res.SourceText, Origin: res.Origin.String()})

		msg := res.Origin.String()
		if res.RejectionReason != "" {
			msg = fmt.Sprintf("%s (%s)", msg, res.RejectionReason)
		}
		s.emit(Event{Type: EventSynthesisDone, OperationIndex: index, OperationName: op.Name, Message: msg})
	}

	// Stub origin sticks to the technique, so a repeated unknown operation
	// reports handled-stub on every occurrence, not just the first.
	if op.SynthesizedCode == "" {
		if t, ok := s.registry.Technique(op.Name); ok && t.Origin == synth.OriginFallbackStub.String() {
			stubbed = true
		}
	}

	ref, err := s.dispatcher.Dispatch(ctx, op, ec)
	outcome := OperationOutcome{
		Index:     index,
		Operation: op.Name,
		Duration:  time.Since(start),
	}

	switch {
	case err != nil:
		outcome.Status = StatusFailed
		outcome.Error = err.Error()
		logging.Get(logging.CategorySequencer).Warn("operation %d (%s) failed: %v; continuing", index, op.Name, err)
	case stubbed:
		outcome.Status = StatusSkippedUnknownHandled
		outcome.Artifact = ref
	default:
		outcome.Status = StatusSuccess
		outcome.Artifact = ref
	}

	if ref != nil && err == nil {
		ec.Record(op.Name, *ref)
	}
	return outcome
}
