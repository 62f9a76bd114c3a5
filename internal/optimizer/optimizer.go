// Package optimizer implements the quality-preset plan expansion pre-pass.
// It is a pure plan-to-plan transform: given a validated plan and a preset
// name it prepends a quality setup operation, expands known component
// operations into base plus refinement steps, and appends global finishing
// operations. It never touches a backend.
package optimizer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gemsmith/internal/logging"
	"gemsmith/internal/plan"
)

// Preset holds the detail parameters of one quality tier.
type Preset struct {
	Name              string
	SubdivisionLevels int
	DetailMultiplier  float64
	Resolution        int
}

var presets = map[string]Preset{
	"preview":        {Name: "preview", SubdivisionLevels: 0, DetailMultiplier: 0.5, Resolution: 64},
	"standard":       {Name: "standard", SubdivisionLevels: 1, DetailMultiplier: 1.0, Resolution: 128},
	"professional":   {Name: "professional", SubdivisionLevels: 2, DetailMultiplier: 1.5, Resolution: 256},
	"hyper_realistic": {Name: "hyper_realistic", SubdivisionLevels: 3, DetailMultiplier: 2.0, Resolution: 512},
}

// DefaultPreset is used when the caller supplies no preset name.
const DefaultPreset = "standard"

// LookupPreset returns the preset for a name, or false for an unknown name.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// PresetNames returns all preset names in ascending quality order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return presets[names[i]].SubdivisionLevels < presets[names[j]].SubdivisionLevels
	})
	return names
}

// setupOperation is the synthetic first op that records the active preset.
// Its presence also marks a plan as already expanded.
const setupOperation = "setup_quality"

// Expand applies the preset to a validated plan. Expansion is idempotent:
// a plan that already begins with the setup operation is returned unchanged.
func Expand(p *plan.ConstructionPlan, presetName string) (*plan.ConstructionPlan, error) {
	if presetName == "" {
		presetName = DefaultPreset
	}
	preset, ok := LookupPreset(presetName)
	if !ok {
		return nil, fmt.Errorf("unknown quality preset %q (known: %s)", presetName, strings.Join(PresetNames(), ", "))
	}

	if len(p.Operations) > 0 && p.Operations[0].Name == setupOperation {
		logging.Get(logging.CategoryOptimizer).Debug("plan already expanded; skipping")
		return p, nil
	}

	timer := logging.StartTimer(logging.CategoryOptimizer, "plan_expansion")
	defer timer.Stop()

	expanded := &plan.ConstructionPlan{
		Reasoning:    p.Reasoning,
		Materials:    p.Materials,
		Presentation: p.Presentation,
	}

	expanded.Operations = append(expanded.Operations, plan.Operation{
		Name: setupOperation,
		Parameters: map[string]any{
			"preset":             preset.Name,
			"subdivision_levels": float64(preset.SubdivisionLevels),
			"detail_multiplier":  preset.DetailMultiplier,
			"resolution":         float64(preset.Resolution),
		},
		Paradigm: plan.ParadigmArtistic,
	})

	for _, op := range p.Operations {
		expanded.Operations = append(expanded.Operations, expandOperation(op, preset)...)
	}

	expanded.Operations = append(expanded.Operations, finishingOperations(preset)...)

	logging.Get(logging.CategoryOptimizer).Info("expanded %d operations to %d (preset %s)",
		len(p.Operations), len(expanded.Operations), preset.Name)
	return expanded, nil
}

// expandOperation turns one known component op into base plus refinement
// steps. Unknown categories pass through untouched so synthesis still sees
// them verbatim.
func expandOperation(op plan.Operation, preset Preset) []plan.Operation {
	switch category(op.Name) {
	case "shank":
		return expandShank(op, preset)
	case "bezel":
		return expandBezel(op, preset)
	case "gemstone":
		return expandGemstone(op, preset)
	case "prong":
		return expandProng(op, preset)
	default:
		return []plan.Operation{op}
	}
}

func category(opName string) string {
	name := strings.ToLower(opName)
	switch {
	case strings.Contains(name, "shank") || strings.Contains(name, "band"):
		return "shank"
	case strings.Contains(name, "bezel"):
		return "bezel"
	case strings.Contains(name, "gemstone") || strings.Contains(name, "gem_"):
		return "gemstone"
	case strings.Contains(name, "prong"):
		return "prong"
	default:
		return ""
	}
}

func expandShank(op plan.Operation, preset Preset) []plan.Operation {
	base := op
	base.Parameters = cloneParams(op.Parameters)
	base.Parameters["segments"] = float64(preset.Resolution)

	ops := []plan.Operation{base}
	if preset.SubdivisionLevels >= 1 {
		ops = append(ops, refinement("apply_smoothing", map[string]any{
			"target":     op.Name,
			"iterations": float64(preset.SubdivisionLevels),
			"factor":     0.5 * preset.DetailMultiplier,
		}))
	}
	if preset.SubdivisionLevels >= 2 {
		ops = append(ops, refinement("apply_surface_texture", map[string]any{
			"target":  op.Name,
			"pattern": "micro_grain",
			"depth":   0.02 * preset.DetailMultiplier,
		}))
	}
	return ops
}

func expandBezel(op plan.Operation, preset Preset) []plan.Operation {
	base := op
	base.Parameters = cloneParams(op.Parameters)
	base.Parameters["wall_segments"] = float64(preset.Resolution / 2)

	ops := []plan.Operation{base}
	if preset.SubdivisionLevels >= 1 {
		ops = append(ops, refinement("enhance_edges", map[string]any{
			"target":     op.Name,
			"crease_deg": 30.0,
			"sharpness":  preset.DetailMultiplier,
		}))
	}
	return ops
}

func expandProng(op plan.Operation, preset Preset) []plan.Operation {
	base := op
	base.Parameters = cloneParams(op.Parameters)

	ops := []plan.Operation{base}
	if preset.SubdivisionLevels >= 2 {
		ops = append(ops, refinement("apply_smoothing", map[string]any{
			"target":     op.Name,
			"iterations": float64(preset.SubdivisionLevels - 1),
			"factor":     0.3 * preset.DetailMultiplier,
		}))
	}
	return ops
}

// Facet counts per cut at DetailMultiplier 1.0. The multiplier scales these
// up for the higher tiers, rounded to whole facets.
var baseFacets = map[string]int{
	"round":    57,
	"princess": 76,
	"emerald":  57,
	"oval":     69,
	"pear":     71,
	"marquise": 57,
}

// girdleRatio derives the girdle diameter from the nominal carat diameter
// per cut.
var girdleRatio = map[string]float64{
	"round":    1.00,
	"princess": 0.92,
	"emerald":  0.88,
	"oval":     1.06,
	"pear":     1.10,
	"marquise": 1.18,
}

func expandGemstone(op plan.Operation, preset Preset) []plan.Operation {
	cut := strings.ToLower(op.ParamString("cut", "round"))
	facets, ok := baseFacets[cut]
	if !ok {
		facets = baseFacets["round"]
		cut = "round"
	}

	diameter := op.ParamFloat("diameter_mm", 6.0)

	base := op
	base.Parameters = cloneParams(op.Parameters)
	base.Parameters["cut"] = cut
	base.Parameters["facets"] = math.Round(float64(facets) * preset.DetailMultiplier)
	base.Parameters["girdle_diameter_mm"] = diameter * girdleRatio[cut]

	ops := []plan.Operation{base}
	if preset.SubdivisionLevels >= 1 {
		ops = append(ops, refinement("apply_surface_texture", map[string]any{
			"target":  op.Name,
			"pattern": "facet_polish",
			"depth":   0.005 * preset.DetailMultiplier,
		}))
	}
	if preset.SubdivisionLevels >= 3 {
		ops = append(ops, refinement("enhance_edges", map[string]any{
			"target":     op.Name,
			"crease_deg": 15.0,
			"sharpness":  preset.DetailMultiplier,
		}))
	}
	return ops
}

func finishingOperations(preset Preset) []plan.Operation {
	var ops []plan.Operation
	if preset.SubdivisionLevels >= 1 {
		ops = append(ops, refinement("apply_smoothing", map[string]any{
			"target":     "all",
			"iterations": float64(preset.SubdivisionLevels),
			"factor":     0.25,
		}))
	}
	if preset.SubdivisionLevels >= 2 {
		ops = append(ops, refinement("enhance_edges", map[string]any{
			"target":     "all",
			"crease_deg": 45.0,
			"sharpness":  preset.DetailMultiplier,
		}))
	}
	ops = append(ops, plan.Operation{
		Name: "validate_geometry",
		Parameters: map[string]any{
			"min_resolution": float64(preset.Resolution),
		},
		Paradigm: plan.ParadigmArtistic,
	})
	return ops
}

func refinement(name string, params map[string]any) plan.Operation {
	return plan.Operation{Name: name, Parameters: params, Paradigm: plan.ParadigmArtistic}
}

func cloneParams(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}
