package plan

import (
	"encoding/json"
	"errors"
	"testing"
)

func decode(t *testing.T, data string) map[string]any {
	t.Helper()
	var raw map[string]any
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		t.Fatalf("test input is not valid JSON: %v", err)
	}
	return raw
}

func TestValidateRejectsMalformedPlans(t *testing.T) {
	tests := []struct {
		name string
		json string
		kind SchemaErrorKind
	}{
		{
			name: "missing reasoning",
			json: `{"construction_plan": [], "material_specifications": {}}`,
			kind: SchemaMissingField,
		},
		{
			name: "missing operations",
			json: `{"reasoning": "x", "material_specifications": {}}`,
			kind: SchemaMissingField,
		},
		{
			name: "missing materials",
			json: `{"reasoning": "x", "construction_plan": []}`,
			kind: SchemaMissingField,
		},
		{
			name: "operations not a list",
			json: `{"reasoning": "x", "construction_plan": {"a": 1}, "material_specifications": {}}`,
			kind: SchemaNotAList,
		},
		{
			name: "empty operations",
			json: `{"reasoning": "x", "construction_plan": [], "material_specifications": {}}`,
			kind: SchemaEmptyPlan,
		},
		{
			name: "non-dict element",
			json: `{"reasoning": "x", "construction_plan": ["create_shank"], "material_specifications": {}}`,
			kind: SchemaMalformedOperation,
		},
		{
			name: "element missing operation name",
			json: `{"reasoning": "x", "construction_plan": [{"parameters": {}}], "material_specifications": {}}`,
			kind: SchemaMalformedOperation,
		},
		{
			name: "element missing parameters",
			json: `{"reasoning": "x", "construction_plan": [{"operation": "create_shank"}], "material_specifications": {}}`,
			kind: SchemaMalformedOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(decode(t, tt.json), nil)
			if err == nil {
				t.Fatal("expected rejection, got nil error")
			}
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %T: %v", err, err)
			}
			if schemaErr.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, schemaErr.Kind)
			}
		})
	}
}

func TestValidateAcceptsWellFormedPlan(t *testing.T) {
	raw := decode(t, `{
		"reasoning": "simple gold band",
		"construction_plan": [
			{"operation": "create_shank", "parameters": {"thickness_mm": 2.0, "diameter_mm": 18.0}},
			{"operation": "apply_twist", "parameters": {"angle_deg": 30}, "paradigm": "MESH"}
		],
		"material_specifications": {"primary_material": "GOLD", "finish": "POLISHED"}
	}`)

	p, err := Validate(raw, nil)
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if len(p.Operations) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(p.Operations))
	}
	if p.Operations[0].Name != "create_shank" {
		t.Errorf("expected create_shank first, got %s", p.Operations[0].Name)
	}
	if p.Operations[1].Paradigm != ParadigmArtistic {
		t.Errorf("expected MESH tag to decode to artistic, got %s", p.Operations[1].Paradigm)
	}
	if p.Materials.PrimaryMaterial != MaterialGold || p.Materials.Finish != FinishPolished {
		t.Errorf("unexpected materials: %+v", p.Materials)
	}
}

func TestValidateAcceptsOperationsAlias(t *testing.T) {
	raw := decode(t, `{
		"reasoning": "x",
		"operations": [{"operation": "create_shank", "parameters": {}}],
		"material_specifications": {"primary_material": "SILVER", "finish": "MATTE"}
	}`)

	p, err := Validate(raw, nil)
	if err != nil {
		t.Fatalf("expected acceptance of operations alias, got %v", err)
	}
	if len(p.Operations) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(p.Operations))
	}
}

func TestValidateUnknownNameIsNotAFailure(t *testing.T) {
	raw := decode(t, `{
		"reasoning": "x",
		"construction_plan": [{"operation": "create_star_bezel", "parameters": {}}],
		"material_specifications": {"primary_material": "GOLD", "finish": "POLISHED"}
	}`)

	known := func(name string) bool { return name == "create_shank" }
	p, err := Validate(raw, known)
	if err != nil {
		t.Fatalf("unknown names must validate (synthesis concern), got %v", err)
	}
	if p.Operations[0].Name != "create_star_bezel" {
		t.Errorf("operation name lost in validation: %+v", p.Operations[0])
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{not json`), nil)
	if err == nil {
		t.Fatal("expected format error for invalid JSON")
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		t.Fatal("decode failure must not be a SchemaError")
	}
}

func TestOperationSpecDecoding(t *testing.T) {
	op := Operation{
		Name: "create_gemstone",
		Parameters: map[string]any{
			"cut":         "princess",
			"diameter_mm": 5.5,
		},
	}

	spec, ok := op.Spec().(GemstoneSpec)
	if !ok {
		t.Fatalf("expected GemstoneSpec, got %T", op.Spec())
	}
	if spec.Cut != "princess" || spec.DiameterMM != 5.5 {
		t.Errorf("unexpected spec: %+v", spec)
	}
	if spec.DepthMM != 3.6 {
		t.Errorf("expected default depth 3.6, got %v", spec.DepthMM)
	}

	unknown := Operation{Name: "create_star_bezel", Parameters: map[string]any{"points": 5.0}}
	uspec, ok := unknown.Spec().(UnknownSpec)
	if !ok {
		t.Fatalf("expected UnknownSpec for unregistered name, got %T", unknown.Spec())
	}
	if uspec.Name != "create_star_bezel" {
		t.Errorf("unexpected unknown spec: %+v", uspec)
	}
}
