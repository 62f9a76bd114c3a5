package synth

import (
	"strings"
	"testing"

	"go.uber.org/goleak"

	"gemsmith/internal/config"
)

const safeTechnique = `package technique

import "geomapi"

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	h := b.AddCylinder(params["radius_mm"], params["height_mm"])
	return []geomapi.Handle{h}, nil
}
`

func TestSafetyChecker(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
	checker := NewSafetyChecker(config.SandboxConfig{})

	tests := []struct {
		name        string
		code        string
		shouldPass  bool
		violation   ViolationType
		descContain string
	}{
		{
			name:       "safe geometry handler",
			code:       safeTechnique,
			shouldPass: true,
		},
		{
			name: "safe with math import",
			code: `package technique

import (
	"geomapi"
	"math"
)

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	h := b.AddTorus(math.Max(params["r"], 1.0), 0.5)
	return []geomapi.Handle{h}, nil
}
`,
			shouldPass: true,
		},
		{
			name: "forbidden file IO import",
			code: `package technique

import (
	"geomapi"
	"os"
)

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	_ = os.Remove("/tmp/x")
	return nil, nil
}
`,
			shouldPass:  false,
			violation:   ViolationForbiddenImport,
			descContain: "os",
		},
		{
			name: "forbidden exec import",
			code: `package technique

import (
	"geomapi"
	"os/exec"
)

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	_ = exec.Command("whoami")
	return nil, nil
}
`,
			shouldPass:  false,
			violation:   ViolationForbiddenImport,
			descContain: "os/exec",
		},
		{
			name: "panic call",
			code: `package technique

import "geomapi"

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	if params["r"] <= 0 {
		panic("bad radius")
	}
	return nil, nil
}
`,
			shouldPass:  false,
			violation:   ViolationPanic,
			descContain: "panic",
		},
		{
			name: "goroutine spawn",
			code: `package technique

import "geomapi"

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	go func() {
		b.AddSphere(1)
	}()
	return nil, nil
}
`,
			shouldPass:  false,
			violation:   ViolationGoroutine,
			descContain: "goroutine",
		},
		{
			name: "missing entry point",
			code: `package technique

import "geomapi"

func BuildIt(b *geomapi.Builder) ([]geomapi.Handle, error) {
	return nil, nil
}
`,
			shouldPass:  false,
			violation:   ViolationMissingEntryPoint,
			descContain: "CreateCustomComponent",
		},
		{
			name: "wrong signature",
			code: `package technique

func CreateCustomComponent(radius float64) float64 {
	return radius * 2
}
`,
			shouldPass:  false,
			violation:   ViolationBadSignature,
			descContain: "must take",
		},
		{
			name:        "unparseable source",
			code:        "this is not go",
			shouldPass:  false,
			violation:   ViolationParseError,
			descContain: "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := checker.Check(tt.code)
			if report.Safe != tt.shouldPass {
				t.Fatalf("Safe = %v, want %v (violations: %+v)", report.Safe, tt.shouldPass, report.Violations)
			}
			if tt.shouldPass {
				if len(report.Violations) != 0 {
					t.Errorf("safe code must have no violations, got %+v", report.Violations)
				}
				return
			}
			if len(report.Violations) == 0 {
				t.Fatal("unsafe code must carry at least one violation")
			}
			found := false
			for _, v := range report.Violations {
				if v.Type == tt.violation && strings.Contains(strings.ToLower(v.Description), strings.ToLower(tt.descContain)) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected a %s violation containing %q, got %+v", tt.violation, tt.descContain, report.Violations)
			}
		})
	}
}

func TestSafetyCheckerExtraImports(t *testing.T) {
	code := `package technique

import (
	"geomapi"
	"sort"
)

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	keys := []float64{params["a"], params["b"]}
	sort.Float64s(keys)
	return []geomapi.Handle{b.AddSphere(keys[0])}, nil
}
`

	strict := NewSafetyChecker(config.SandboxConfig{})
	if report := strict.Check(code); report.Safe {
		t.Fatal("sort must be rejected without an extra_imports entry")
	}

	widened := NewSafetyChecker(config.SandboxConfig{ExtraImports: []string{"sort"}})
	if report := widened.Check(code); !report.Safe {
		t.Fatalf("sort must be accepted with extra_imports, got %+v", report.Violations)
	}
}

func TestSafetyCheckerScoreAndCounts(t *testing.T) {
	checker := NewSafetyChecker(config.SandboxConfig{})

	report := checker.Check(safeTechnique)
	if report.Score != 1.0 {
		t.Errorf("safe code score = %v, want 1.0", report.Score)
	}
	if report.ImportsChecked != 1 {
		t.Errorf("ImportsChecked = %d, want 1", report.ImportsChecked)
	}
	if report.CallsChecked == 0 {
		t.Error("expected at least one checked call")
	}

	bad := checker.Check(`package technique

import (
	"geomapi"
	"net/http"
)

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	_, _ = http.Get("http://example.com")
	return nil, nil
}
`)
	if bad.Score != 0.0 {
		t.Errorf("unsafe code score = %v, want 0.0", bad.Score)
	}
}
