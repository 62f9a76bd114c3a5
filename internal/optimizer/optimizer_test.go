package optimizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"gemsmith/internal/plan"
)

func basePlan() *plan.ConstructionPlan {
	return &plan.ConstructionPlan{
		Reasoning: "gold band with a round stone",
		Operations: []plan.Operation{
			{Name: "create_shank", Parameters: map[string]any{"thickness_mm": 2.0, "diameter_mm": 18.0}},
			{Name: "create_gemstone", Parameters: map[string]any{"cut": "round", "diameter_mm": 6.0}},
		},
		Materials: plan.MaterialSpecification{PrimaryMaterial: plan.MaterialGold, Finish: plan.FinishPolished},
	}
}

func TestLookupPreset(t *testing.T) {
	for _, name := range []string{"preview", "standard", "professional", "hyper_realistic"} {
		if _, ok := LookupPreset(name); !ok {
			t.Errorf("preset %s missing", name)
		}
	}
	if _, ok := LookupPreset("ultra"); ok {
		t.Error("unknown preset must not resolve")
	}
	if _, ok := LookupPreset("  Standard "); !ok {
		t.Error("preset lookup should normalize case and whitespace")
	}
}

func TestExpandPrependsQualitySetup(t *testing.T) {
	expanded, err := Expand(basePlan(), "standard")
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if expanded.Operations[0].Name != "setup_quality" {
		t.Fatalf("first operation = %s, want setup_quality", expanded.Operations[0].Name)
	}

	setup, ok := expanded.Operations[0].Spec().(plan.QualitySetupSpec)
	if !ok {
		t.Fatalf("setup operation decoded to %T", expanded.Operations[0].Spec())
	}
	if setup.Preset != "standard" || setup.SubdivisionLevels != 1 || setup.Resolution != 128 {
		t.Errorf("unexpected setup spec: %+v", setup)
	}
}

func TestExpandUnknownPresetFails(t *testing.T) {
	if _, err := Expand(basePlan(), "ludicrous"); err == nil {
		t.Fatal("unknown preset must be rejected")
	}
}

func TestExpandAppendsValidation(t *testing.T) {
	expanded, err := Expand(basePlan(), "preview")
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	last := expanded.Operations[len(expanded.Operations)-1]
	if last.Name != "validate_geometry" {
		t.Errorf("last operation = %s, want validate_geometry", last.Name)
	}
}

func TestExpandPreviewAddsNoRefinements(t *testing.T) {
	expanded, err := Expand(basePlan(), "preview")
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	// setup + 2 base ops + validation, nothing gated below subdivision 1.
	if len(expanded.Operations) != 4 {
		names := make([]string, 0, len(expanded.Operations))
		for _, op := range expanded.Operations {
			names = append(names, op.Name)
		}
		t.Fatalf("expected 4 operations for preview, got %v", names)
	}
}

func TestExpandProfessionalRefinesComponents(t *testing.T) {
	expanded, err := Expand(basePlan(), "professional")
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	counts := make(map[string]int)
	for _, op := range expanded.Operations {
		counts[op.Name]++
	}
	if counts["apply_smoothing"] == 0 {
		t.Error("professional tier should add smoothing refinements")
	}
	if counts["apply_surface_texture"] == 0 {
		t.Error("professional tier should add surface texture refinements")
	}
	if counts["validate_geometry"] != 1 {
		t.Errorf("expected exactly one validation pass, got %d", counts["validate_geometry"])
	}
}

func TestGemstoneFacetDerivation(t *testing.T) {
	tests := []struct {
		cut    string
		preset string
		facets float64
	}{
		{"round", "standard", 57},
		{"princess", "standard", 76},
		{"round", "hyper_realistic", 114},
		{"oval", "preview", 35}, // 69 * 0.5 rounded
	}

	for _, tt := range tests {
		p := &plan.ConstructionPlan{
			Reasoning:  "x",
			Operations: []plan.Operation{{Name: "create_gemstone", Parameters: map[string]any{"cut": tt.cut, "diameter_mm": 6.0}}},
			Materials:  plan.MaterialSpecification{PrimaryMaterial: plan.MaterialGold, Finish: plan.FinishPolished},
		}
		expanded, err := Expand(p, tt.preset)
		if err != nil {
			t.Fatalf("Expand failed: %v", err)
		}

		var gem *plan.Operation
		for i := range expanded.Operations {
			if expanded.Operations[i].Name == "create_gemstone" {
				gem = &expanded.Operations[i]
			}
		}
		if gem == nil {
			t.Fatalf("%s/%s: gemstone operation lost in expansion", tt.cut, tt.preset)
		}
		if got := gem.Parameters["facets"]; got != tt.facets {
			t.Errorf("%s/%s: facets = %v, want %v", tt.cut, tt.preset, got, tt.facets)
		}
	}
}

func TestExpandIsIdempotent(t *testing.T) {
	once, err := Expand(basePlan(), "professional")
	if err != nil {
		t.Fatalf("first Expand failed: %v", err)
	}
	twice, err := Expand(once, "professional")
	if err != nil {
		t.Fatalf("second Expand failed: %v", err)
	}

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second expansion is not a no-op (-once +twice):\n%s", diff)
	}
}

func TestExpandDoesNotMutateInput(t *testing.T) {
	original := basePlan()
	if _, err := Expand(original, "professional"); err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(original.Operations) != 2 {
		t.Errorf("input plan mutated: %d operations", len(original.Operations))
	}
	if _, ok := original.Operations[0].Parameters["segments"]; ok {
		t.Error("input operation parameters mutated")
	}
}
