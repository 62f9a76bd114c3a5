package sequencer

import (
	"context"
	"fmt"

	"gemsmith/internal/backend"
	"gemsmith/internal/geomapi"
	"gemsmith/internal/logging"
	"gemsmith/internal/plan"
	"gemsmith/internal/registry"
	"gemsmith/internal/synth"
)

// Dispatcher routes one operation to exactly one backend based on its
// paradigm and typed spec. Synthesized techniques run through the embedded
// interpreter and land in whichever backend the paradigm selects.
type Dispatcher struct {
	precision backend.PrecisionBackend
	artistic  backend.ArtisticBackend
	registry  *registry.Registry
	runner    *synth.Runner
	checker   *synth.SafetyChecker
}

// NewDispatcher wires a dispatcher to its two backends.
func NewDispatcher(precision backend.PrecisionBackend, artistic backend.ArtisticBackend, reg *registry.Registry, runner *synth.Runner, checker *synth.SafetyChecker) *Dispatcher {
	return &Dispatcher{precision: precision, artistic: artistic, registry: reg, runner: runner, checker: checker}
}

// Dispatch executes one operation. A nil ArtifactRef with a nil error means
// the operation succeeded without producing geometry (quality setup,
// validation passes). Backend panics are contained here and surface as
// per-operation errors, never as a crashed run.
func (d *Dispatcher) Dispatch(ctx context.Context, op plan.Operation, ec *ExecutionContext) (ref *backend.ArtifactRef, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ref = nil
			err = fmt.Errorf("backend panicked during %s: %v", op.Name, rec)
		}
	}()

	paradigm := op.Paradigm
	if paradigm == plan.ParadigmUnspecified {
		paradigm = d.registry.Paradigm(op)
	}

	switch spec := op.Spec().(type) {
	case plan.ShankSpec:
		logging.Dispatch("%s -> precision backend", op.Name)
		return wrap(d.precision.CreateShank(spec))
	case plan.BezelSpec:
		logging.Dispatch("%s -> precision backend", op.Name)
		return wrap(d.precision.CreateBezelSetting(spec, ec.Last()))
	case plan.ProngSpec:
		logging.Dispatch("%s -> precision backend", op.Name)
		return wrap(d.precision.CreateProngSetting(spec, ec.Last()))
	case plan.GemstoneSpec:
		logging.Dispatch("%s -> precision backend", op.Name)
		return wrap(d.precision.CreateGemstone(spec, ec.Last()))
	case plan.EngravingSpec:
		logging.Dispatch("%s -> precision backend", op.Name)
		return wrap(d.precision.AddEngraving(spec, ec.Last()))
	case plan.DisplacementSpec:
		logging.Dispatch("%s -> artistic backend", op.Name)
		return wrap(d.artistic.ApplyDisplacement(spec, ec.Last()))
	case plan.SculptSpec:
		logging.Dispatch("%s -> artistic backend", op.Name)
		return wrap(d.artistic.PerformSculpt(spec, ec.Last()))
	case plan.RetopologySpec:
		logging.Dispatch("%s -> artistic backend", op.Name)
		return wrap(d.artistic.PerformRetopology(spec, ec.Last()))
	case plan.TextureSpec:
		logging.Dispatch("%s -> artistic backend", op.Name)
		return wrap(d.artistic.ApplyTexture(spec, ec.Last()))
	case plan.FinishingSpec:
		logging.Dispatch("%s -> artistic backend", op.Name)
		return wrap(d.artistic.ApplyFinishing(spec, ec.Last()))
	case plan.QualitySetupSpec:
		ec.SetQuality(spec)
		logging.Dispatch("%s -> execution context (preset %s)", op.Name, spec.Preset)
		return nil, nil
	case plan.UnknownSpec:
		return d.dispatchSynthesized(ctx, op, paradigm, ec)
	default:
		return nil, fmt.Errorf("no backend route for operation %s", op.Name)
	}
}

// dispatchSynthesized runs a previously registered technique for an unknown
// operation and registers its geometry as a component on the routed backend.
func (d *Dispatcher) dispatchSynthesized(ctx context.Context, op plan.Operation, paradigm plan.Paradigm, ec *ExecutionContext) (*backend.ArtifactRef, error) {
	source := op.SynthesizedCode
	if source == "" {
		technique, ok := d.registry.Technique(op.Name)
		if !ok {
			return nil, fmt.Errorf("no technique registered for unknown operation %s", op.Name)
		}
		source = technique.Source
	}

	// Every source is gated here, whatever its provenance: inline code on
	// the wire, a cached technique, or one loaded from the library
	// directory. The synthesizer's own check does not cover those paths.
	if report := d.checker.Check(source); !report.Safe {
		logging.Get(logging.CategorySandbox).Warn("technique %s refused: %s", op.Name, report.Summary())
		return nil, fmt.Errorf("technique %s rejected by safety check: %s", op.Name, report.Summary())
	}

	builder := geomapi.NewBuilder()
	handles, err := d.runner.Run(ctx, source, builder, op.NumericParameters())
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 && builder.Count() == 0 {
		return nil, fmt.Errorf("technique %s produced no geometry", op.Name)
	}

	if paradigm == plan.ParadigmArtistic {
		logging.Dispatch("%s -> artistic backend (synthesized, %d shapes)", op.Name, builder.Count())
		return wrap(d.artistic.RegisterComponent(op.Name, builder.Shapes(), ec.Last()))
	}
	logging.Dispatch("%s -> precision backend (synthesized, %d shapes)", op.Name, builder.Count())
	return wrap(d.precision.RegisterComponent(op.Name, builder.Shapes(), ec.Last()))
}

func wrap(ref backend.ArtifactRef, err error) (*backend.ArtifactRef, error) {
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
