package plan

import (
	"encoding/json"
	"fmt"

	"gemsmith/internal/logging"
)

// SchemaErrorKind categorizes structural defects in a received plan.
type SchemaErrorKind int

const (
	SchemaMissingField SchemaErrorKind = iota
	SchemaNotAList
	SchemaEmptyPlan
	SchemaMalformedOperation
)

func (k SchemaErrorKind) String() string {
	switch k {
	case SchemaMissingField:
		return "missing_field"
	case SchemaNotAList:
		return "not_a_list"
	case SchemaEmptyPlan:
		return "empty_plan"
	case SchemaMalformedOperation:
		return "malformed_operation"
	default:
		return "unknown"
	}
}

// SchemaError is a fatal structural defect; it aborts before any execution.
type SchemaError struct {
	Kind  SchemaErrorKind
	Field string // set for SchemaMissingField
	Index int    // set for SchemaMalformedOperation
}

func (e *SchemaError) Error() string {
	switch e.Kind {
	case SchemaMissingField:
		return fmt.Sprintf("plan schema: missing required field %q", e.Field)
	case SchemaNotAList:
		return "plan schema: operations is not a list"
	case SchemaEmptyPlan:
		return "plan schema: operations list is empty"
	case SchemaMalformedOperation:
		return fmt.Sprintf("plan schema: malformed operation at index %d", e.Index)
	default:
		return "plan schema: invalid plan"
	}
}

// KnownNameFunc reports whether an operation name is known to the registry.
// Unknown names are not a validation failure, only a warning; they become a
// synthesis concern at execution time.
type KnownNameFunc func(name string) bool

// Validate checks structural well-formedness of a raw decoded plan value and
// returns the validated ConstructionPlan. The input is never mutated.
func Validate(raw map[string]any, known KnownNameFunc) (*ConstructionPlan, error) {
	reasoning, ok := raw["reasoning"].(string)
	if !ok {
		return nil, &SchemaError{Kind: SchemaMissingField, Field: "reasoning"}
	}

	opsRaw, ok := raw["construction_plan"]
	if !ok {
		if opsRaw, ok = raw["operations"]; !ok {
			return nil, &SchemaError{Kind: SchemaMissingField, Field: "construction_plan"}
		}
	}

	matsRaw, ok := raw["material_specifications"]
	if !ok {
		return nil, &SchemaError{Kind: SchemaMissingField, Field: "material_specifications"}
	}

	opsList, ok := opsRaw.([]any)
	if !ok {
		return nil, &SchemaError{Kind: SchemaNotAList}
	}
	if len(opsList) == 0 {
		return nil, &SchemaError{Kind: SchemaEmptyPlan}
	}

	ops := make([]Operation, 0, len(opsList))
	for i, elem := range opsList {
		entry, ok := elem.(map[string]any)
		if !ok {
			return nil, &SchemaError{Kind: SchemaMalformedOperation, Index: i}
		}
		name, ok := entry["operation"].(string)
		if !ok || name == "" {
			return nil, &SchemaError{Kind: SchemaMalformedOperation, Index: i}
		}
		paramsRaw, ok := entry["parameters"]
		if !ok {
			return nil, &SchemaError{Kind: SchemaMalformedOperation, Index: i}
		}
		params, ok := paramsRaw.(map[string]any)
		if !ok {
			return nil, &SchemaError{Kind: SchemaMalformedOperation, Index: i}
		}

		op := Operation{
			Name:       name,
			Parameters: params,
		}
		if tag, ok := entry["paradigm"].(string); ok {
			op.Paradigm = ParseParadigm(tag)
		}
		if code, ok := entry["synthesized_code"].(string); ok {
			op.SynthesizedCode = code
		}

		if known != nil && !known(name) {
			logging.Get(logging.CategoryPlan).Warn(
				"operation %q (index %d) is not in the registry; it will be synthesized at execution time", name, i)
		}

		ops = append(ops, op)
	}

	materials, err := decodeMaterials(matsRaw)
	if err != nil {
		return nil, err
	}

	validated := &ConstructionPlan{
		Reasoning:  reasoning,
		Operations: ops,
		Materials:  materials,
	}

	if presRaw, ok := raw["presentation_plan"].(map[string]any); ok {
		validated.Presentation = decodePresentation(presRaw)
	}

	return validated, nil
}

// Parse decodes plan JSON and validates it in one step. Decode failures are
// surfaced as format errors distinct from schema errors.
func Parse(data []byte, known KnownNameFunc) (*ConstructionPlan, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("plan format: %w", err)
	}
	return Validate(raw, known)
}

func decodeMaterials(raw any) (MaterialSpecification, error) {
	entry, ok := raw.(map[string]any)
	if !ok {
		return MaterialSpecification{}, &SchemaError{Kind: SchemaMissingField, Field: "material_specifications"}
	}
	spec := MaterialSpecification{
		PrimaryMaterial: MaterialGold,
		Finish:          FinishPolished,
	}
	if m, ok := entry["primary_material"].(string); ok && m != "" {
		spec.PrimaryMaterial = Material(m)
	}
	if f, ok := entry["finish"].(string); ok && f != "" {
		spec.Finish = Finish(f)
	}
	return spec, nil
}

func decodePresentation(raw map[string]any) *PresentationPlan {
	pres := &PresentationPlan{}
	if v, ok := raw["material_style"].(string); ok {
		pres.MaterialStyle = v
	}
	if v, ok := raw["render_environment"].(string); ok {
		pres.RenderEnvironment = v
	}
	if cam, ok := raw["camera_effects"].(map[string]any); ok {
		if v, ok := cam["use_depth_of_field"].(bool); ok {
			pres.CameraEffects.UseDepthOfField = v
		}
		if v, ok := cam["focus_point"].(string); ok {
			pres.CameraEffects.FocusPoint = v
		}
	}
	return pres
}
