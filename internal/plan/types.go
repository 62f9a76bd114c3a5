// Package plan defines the construction-plan data model and its schema
// validator. A plan is the ordered list of parametric operations an LLM
// produces to describe how one piece of jewelry is built.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Paradigm selects which geometry backend an operation belongs to.
type Paradigm int

const (
	// ParadigmUnspecified means the paradigm must be inferred from the
	// operation name.
	ParadigmUnspecified Paradigm = iota
	// ParadigmPrecision routes to the NURBS-style manufacturing backend.
	ParadigmPrecision
	// ParadigmArtistic routes to the mesh-style organic backend.
	ParadigmArtistic
)

func (p Paradigm) String() string {
	switch p {
	case ParadigmPrecision:
		return "PRECISION"
	case ParadigmArtistic:
		return "ARTISTIC"
	default:
		return "UNSPECIFIED"
	}
}

// ParseParadigm decodes the wire-format paradigm tag.
func ParseParadigm(s string) Paradigm {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NURBS", "PRECISION":
		return ParadigmPrecision
	case "MESH", "ARTISTIC":
		return ParadigmArtistic
	default:
		return ParadigmUnspecified
	}
}

// Operation is one step of a construction plan. Parameters are kept as the
// raw decoded mapping; Spec() exposes the typed view.
type Operation struct {
	Name            string         `json:"operation"`
	Parameters      map[string]any `json:"parameters"`
	Paradigm        Paradigm       `json:"-"`
	SynthesizedCode string         `json:"synthesized_code,omitempty"`
}

// Material is the primary material of the final piece.
type Material string

const (
	MaterialGold      Material = "GOLD"
	MaterialSilver    Material = "SILVER"
	MaterialPlatinum  Material = "PLATINUM"
	MaterialRoseGold  Material = "ROSE_GOLD"
	MaterialWhiteGold Material = "WHITE_GOLD"
	MaterialCopper    Material = "COPPER"
	MaterialTitanium  Material = "TITANIUM"
)

// Finish is the surface finish of the final piece.
type Finish string

const (
	FinishPolished    Finish = "POLISHED"
	FinishMatte       Finish = "MATTE"
	FinishBrushed     Finish = "BRUSHED"
	FinishHammered    Finish = "HAMMERED"
	FinishAntique     Finish = "ANTIQUE"
	FinishSandblasted Finish = "SANDBLASTED"
)

// MaterialSpecification is required alongside a plan in the strict schema.
type MaterialSpecification struct {
	PrimaryMaterial Material `json:"primary_material"`
	Finish          Finish   `json:"finish"`
}

// CameraEffects is optional presentation metadata.
type CameraEffects struct {
	UseDepthOfField bool   `json:"use_depth_of_field"`
	FocusPoint      string `json:"focus_point"`
}

// PresentationPlan is additive metadata; the interpreter threads it through
// unchanged.
type PresentationPlan struct {
	MaterialStyle     string        `json:"material_style"`
	RenderEnvironment string        `json:"render_environment"`
	CameraEffects     CameraEffects `json:"camera_effects"`
}

// ConstructionPlan is a validated plan ready for optimization and execution.
type ConstructionPlan struct {
	Reasoning    string
	Operations   []Operation
	Materials    MaterialSpecification
	Presentation *PresentationPlan
}

// wirePlan mirrors the JSON wire format produced by the plan requestor.
type wirePlan struct {
	Reasoning        string            `json:"reasoning"`
	ConstructionPlan []wireOperation   `json:"construction_plan"`
	Operations       []wireOperation   `json:"operations"`
	Materials        *json.RawMessage  `json:"material_specifications"`
	Presentation     *PresentationPlan `json:"presentation_plan"`
}

type wireOperation struct {
	Operation       string         `json:"operation"`
	Parameters      map[string]any `json:"parameters"`
	Paradigm        string         `json:"paradigm"`
	SynthesizedCode string         `json:"synthesized_code"`
}

// ParamFloat reads a numeric parameter, accepting the numeric types the JSON
// decoder produces. Returns the fallback when absent or non-numeric.
func (o Operation) ParamFloat(key string, fallback float64) float64 {
	v, ok := o.Parameters[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return fallback
}

// ParamString reads a string parameter with a fallback.
func (o Operation) ParamString(key, fallback string) string {
	if v, ok := o.Parameters[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// NumericParameters projects the parameter map down to its numeric entries.
// This is the shape synthesized handlers receive.
func (o Operation) NumericParameters() map[string]float64 {
	out := make(map[string]float64, len(o.Parameters))
	for k, v := range o.Parameters {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case float32:
			out[k] = float64(n)
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case json.Number:
			if f, err := n.Float64(); err == nil {
				out[k] = f
			}
		}
	}
	return out
}

func (o Operation) String() string {
	return fmt.Sprintf("%s[%s]", o.Name, o.Paradigm)
}
