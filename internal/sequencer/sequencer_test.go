package sequencer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"gemsmith/internal/backend"
	"gemsmith/internal/config"
	"gemsmith/internal/geomapi"
	"gemsmith/internal/plan"
	"gemsmith/internal/registry"
	"gemsmith/internal/synth"
)

// mockPrecision records which precision calls arrived and can be scripted to
// fail specific operations. Artifacts register in the real document so
// finalization behaves as in production.
type mockPrecision struct {
	doc    *backend.Document
	calls  []string
	failOn map[string]bool
}

func newMockPrecision(doc *backend.Document) *mockPrecision {
	return &mockPrecision{doc: doc, failOn: make(map[string]bool)}
}

func (m *mockPrecision) result(op, name string, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	m.calls = append(m.calls, op)
	if m.failOn[op] {
		return backend.ArtifactRef{}, fmt.Errorf("%s: scripted failure", op)
	}
	return m.doc.AddArtifact("nurbs", op, name, nil, base), nil
}

func (m *mockPrecision) CreateShank(spec plan.ShankSpec) (backend.ArtifactRef, error) {
	return m.result("create_shank", "shank", nil)
}
func (m *mockPrecision) CreateBezelSetting(spec plan.BezelSpec, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	return m.result("create_bezel_setting", "bezel", base)
}
func (m *mockPrecision) CreateProngSetting(spec plan.ProngSpec, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	return m.result("create_prong_setting", "prongs", base)
}
func (m *mockPrecision) CreateGemstone(spec plan.GemstoneSpec, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	return m.result("create_gemstone", "gemstone", base)
}
func (m *mockPrecision) AddEngraving(spec plan.EngravingSpec, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	return m.result("add_engraving", "engraving", base)
}
func (m *mockPrecision) RegisterComponent(name string, shapes []geomapi.Shape, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	return m.result("register:"+name, name, base)
}

type mockArtistic struct {
	doc    *backend.Document
	calls  []string
	failOn map[string]bool
}

func newMockArtistic(doc *backend.Document) *mockArtistic {
	return &mockArtistic{doc: doc, failOn: make(map[string]bool)}
}

func (m *mockArtistic) result(op, name string, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	m.calls = append(m.calls, op)
	if m.failOn[op] {
		return backend.ArtifactRef{}, fmt.Errorf("%s: scripted failure", op)
	}
	return m.doc.AddArtifact("mesh", op, name, nil, base), nil
}

func (m *mockArtistic) ApplyDisplacement(spec plan.DisplacementSpec, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	return m.result("apply_displacement", "displaced", base)
}
func (m *mockArtistic) PerformSculpt(spec plan.SculptSpec, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	return m.result("perform_sculpt", "sculpted", base)
}
func (m *mockArtistic) PerformRetopology(spec plan.RetopologySpec, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	return m.result("perform_retopology", "retopo", base)
}
func (m *mockArtistic) ApplyTexture(spec plan.TextureSpec, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	return m.result("apply_texture", "textured", base)
}
func (m *mockArtistic) ApplyFinishing(spec plan.FinishingSpec, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	return m.result("finishing:"+spec.Kind, spec.Kind, base)
}
func (m *mockArtistic) RegisterComponent(name string, shapes []geomapi.Shape, base *backend.ArtifactRef) (backend.ArtifactRef, error) {
	return m.result("register:"+name, name, base)
}

func goldPolished() plan.MaterialSpecification {
	return plan.MaterialSpecification{PrimaryMaterial: plan.MaterialGold, Finish: plan.FinishPolished}
}

func stubSynthesizer() *synth.Synthesizer {
	checker := synth.NewSafetyChecker(config.SandboxConfig{})
	return synth.NewSynthesizer(nil, checker, nil, synth.Options{Attempts: 1, Timeout: time.Second})
}

func newTestSequencer(doc *backend.Document, precision backend.PrecisionBackend, artistic backend.ArtisticBackend) *Sequencer {
	return New(Config{
		Document:    doc,
		Registry:    registry.New(),
		Synthesizer: stubSynthesizer(),
		Runner:      synth.NewRunner(5 * time.Second),
		Precision:   precision,
		Artistic:    artistic,
	})
}

func drain(s *Sequencer) []Event {
	var events []Event
	for ev := range s.Events() {
		events = append(events, ev)
	}
	return events
}

func TestShankHappyPath(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	doc := backend.NewDocument()
	seq := newTestSequencer(doc, nil, nil)

	p := &plan.ConstructionPlan{
		Reasoning: "x",
		Operations: []plan.Operation{
			{Name: "create_shank", Parameters: map[string]any{"thickness_mm": 2.0, "diameter_mm": 18.0}},
		},
		Materials: goldPolished(),
	}

	result, err := seq.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.State != StateCompletedWithArtifact {
		t.Errorf("State = %s, want %s", result.State, StateCompletedWithArtifact)
	}
	if len(result.OutcomeLog) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(result.OutcomeLog))
	}
	if result.OutcomeLog[0].Status != StatusSuccess {
		t.Errorf("outcome = %s, want SUCCESS (%s)", result.OutcomeLog[0].Status, result.OutcomeLog[0].Error)
	}
	if result.Artifact == nil {
		t.Fatal("expected a non-nil artifact")
	}
	if !result.MaterialApplied {
		t.Error("material must be applied at finalization")
	}
	if doc.Material() == nil || doc.Material().PrimaryMaterial != plan.MaterialGold {
		t.Error("document material not recorded")
	}
}

func TestDispatchRoutingExactness(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	doc := backend.NewDocument()
	precision := newMockPrecision(doc)
	artistic := newMockArtistic(doc)
	seq := newTestSequencer(doc, precision, artistic)

	p := &plan.ConstructionPlan{
		Reasoning: "x",
		Operations: []plan.Operation{
			{Name: "create_shank", Parameters: map[string]any{"thickness_mm": 2.0, "diameter_mm": 18.0}},
			{Name: "apply_displacement", Parameters: map[string]any{"strength_mm": 0.4}},
			{Name: "create_gemstone", Parameters: map[string]any{"cut": "round", "diameter_mm": 5.0}},
			{Name: "perform_sculpt", Parameters: map[string]any{}},
		},
		Materials: goldPolished(),
	}

	if _, err := seq.Execute(context.Background(), p); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	wantPrecision := []string{"create_shank", "create_gemstone"}
	wantArtistic := []string{"apply_displacement", "perform_sculpt"}

	if len(precision.calls) != len(wantPrecision) {
		t.Fatalf("precision calls = %v, want %v", precision.calls, wantPrecision)
	}
	for i, call := range wantPrecision {
		if precision.calls[i] != call {
			t.Errorf("precision call %d = %s, want %s", i, precision.calls[i], call)
		}
	}
	if len(artistic.calls) != len(wantArtistic) {
		t.Fatalf("artistic calls = %v, want %v", artistic.calls, wantArtistic)
	}
	for i, call := range wantArtistic {
		if artistic.calls[i] != call {
			t.Errorf("artistic call %d = %s, want %s", i, artistic.calls[i], call)
		}
	}
}

func TestPartialFailureProgression(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	doc := backend.NewDocument()
	precision := newMockPrecision(doc)
	precision.failOn["create_gemstone"] = true
	artistic := newMockArtistic(doc)
	seq := newTestSequencer(doc, precision, artistic)

	ops := []plan.Operation{
		{Name: "create_shank", Parameters: map[string]any{}},
		{Name: "create_gemstone", Parameters: map[string]any{"cut": "round"}},
		{Name: "create_bezel_setting", Parameters: map[string]any{}},
		{Name: "apply_displacement", Parameters: map[string]any{}},
		{Name: "perform_sculpt", Parameters: map[string]any{}},
	}
	p := &plan.ConstructionPlan{Reasoning: "x", Operations: ops, Materials: goldPolished()}

	result, err := seq.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("per-operation failure must not fail the run: %v", err)
	}
	if len(result.OutcomeLog) != len(ops) {
		t.Fatalf("outcome log has %d entries, want %d", len(result.OutcomeLog), len(ops))
	}
	if result.OutcomeLog[1].Status != StatusFailed {
		t.Errorf("failed operation recorded as %s", result.OutcomeLog[1].Status)
	}
	for _, i := range []int{0, 2, 3, 4} {
		if result.OutcomeLog[i].Status != StatusSuccess {
			t.Errorf("outcome %d = %s, want SUCCESS", i, result.OutcomeLog[i].Status)
		}
	}
}

func TestFallbackGuarantee(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	doc := backend.NewDocument()
	precision := newMockPrecision(doc)
	precision.failOn["create_shank"] = true
	precision.failOn["create_gemstone"] = true
	artistic := newMockArtistic(doc)
	seq := newTestSequencer(doc, precision, artistic)

	p := &plan.ConstructionPlan{
		Reasoning: "x",
		Operations: []plan.Operation{
			{Name: "create_shank", Parameters: map[string]any{}},
			{Name: "create_gemstone", Parameters: map[string]any{"cut": "round"}},
		},
		Materials: goldPolished(),
	}

	result, err := seq.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Artifact == nil {
		t.Fatal("fallback guarantee violated: artifact is nil")
	}
	if result.Artifact.Name != "fallback_ring" {
		t.Errorf("artifact = %q, want the fallback ring", result.Artifact.Name)
	}
	if result.State != StateCompletedWithArtifact {
		t.Errorf("State = %s, want %s", result.State, StateCompletedWithArtifact)
	}
}

func TestUnknownOperationSynthesizesStub(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	doc := backend.NewDocument()
	seq := newTestSequencer(doc, nil, nil)

	p := &plan.ConstructionPlan{
		Reasoning: "x",
		Operations: []plan.Operation{
			{Name: "create_star_bezel", Parameters: map[string]any{"diameter_mm": 6.0}},
		},
		Materials: goldPolished(),
	}

	result, err := seq.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.OutcomeLog) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(result.OutcomeLog))
	}
	if result.OutcomeLog[0].Status != StatusSkippedUnknownHandled {
		t.Errorf("outcome = %s, want SKIPPED_UNKNOWN_HANDLED (%s)",
			result.OutcomeLog[0].Status, result.OutcomeLog[0].Error)
	}
	if result.Artifact == nil {
		t.Fatal("stubbed unknown operation must still yield an artifact")
	}
}

func TestRepeatedUnknownOperationStaysStubbed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	doc := backend.NewDocument()
	seq := newTestSequencer(doc, nil, nil)

	p := &plan.ConstructionPlan{
		Reasoning: "x",
		Operations: []plan.Operation{
			{Name: "create_star_bezel", Parameters: map[string]any{"diameter_mm": 6.0}},
			{Name: "create_star_bezel", Parameters: map[string]any{"diameter_mm": 8.0}},
		},
		Materials: goldPolished(),
	}

	result, err := seq.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(result.OutcomeLog) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(result.OutcomeLog))
	}
	for i, outcome := range result.OutcomeLog {
		if outcome.Status != StatusSkippedUnknownHandled {
			t.Errorf("outcome %d = %s, want SKIPPED_UNKNOWN_HANDLED; placeholder geometry must not masquerade as real output", i, outcome.Status)
		}
	}
}

func TestInlineHandlerCodeIsSafetyChecked(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	escape := filepath.Join(t.TempDir(), "escaped.txt")
	malicious := fmt.Sprintf(`package technique

import (
	"os"

	"geomapi"
)

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	if err := os.WriteFile(%q, []byte("owned"), 0644); err != nil {
		return nil, err
	}
	h := b.AddCylinder(1.0, 1.0)
	return []geomapi.Handle{h}, nil
}
`, escape)

	doc := backend.NewDocument()
	seq := newTestSequencer(doc, nil, nil)

	p := &plan.ConstructionPlan{
		Reasoning: "x",
		Operations: []plan.Operation{
			{Name: "create_spiral_band", Parameters: map[string]any{}, SynthesizedCode: malicious},
		},
		Materials: goldPolished(),
	}

	result, err := seq.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.OutcomeLog[0].Status != StatusFailed {
		t.Fatalf("inline code importing os must be refused, got %s", result.OutcomeLog[0].Status)
	}
	if !strings.Contains(result.OutcomeLog[0].Error, "safety check") {
		t.Errorf("outcome error should name the safety check, got %q", result.OutcomeLog[0].Error)
	}
	if _, statErr := os.Stat(escape); statErr == nil {
		t.Fatal("inline handler executed and wrote outside the interpreter")
	}
}

func TestInlineHandlerCodeRunsWhenSafe(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	safe := `package technique

import "geomapi"

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	h := b.AddTorus(params["diameter_mm"]/2, 1.0)
	return []geomapi.Handle{h}, nil
}
`

	doc := backend.NewDocument()
	seq := newTestSequencer(doc, nil, nil)

	p := &plan.ConstructionPlan{
		Reasoning: "x",
		Operations: []plan.Operation{
			{Name: "create_spiral_band", Parameters: map[string]any{"diameter_mm": 17.0}, SynthesizedCode: safe},
		},
		Materials: goldPolished(),
	}

	result, err := seq.Execute(context.Background(), p)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.OutcomeLog[0].Status != StatusSuccess {
		t.Fatalf("safe inline code should execute, got %s (%s)", result.OutcomeLog[0].Status, result.OutcomeLog[0].Error)
	}
	if result.Artifact == nil || result.Artifact.Name == "fallback_ring" {
		t.Error("inline handler geometry should be the final artifact")
	}
}

func TestCancellationBetweenOperations(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	doc := backend.NewDocument()
	precision := newMockPrecision(doc)
	artistic := newMockArtistic(doc)
	seq := newTestSequencer(doc, precision, artistic)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &plan.ConstructionPlan{
		Reasoning: "x",
		Operations: []plan.Operation{
			{Name: "create_shank", Parameters: map[string]any{}},
			{Name: "create_gemstone", Parameters: map[string]any{"cut": "round"}},
		},
		Materials: goldPolished(),
	}

	result, err := seq.Execute(ctx, p)
	if err != nil {
		t.Fatalf("cancellation must still finalize a partial result: %v", err)
	}
	if !result.Cancelled {
		t.Error("result must report the cancellation")
	}
	if len(result.OutcomeLog) != 0 {
		t.Errorf("no operations should run after upfront cancellation, got %d", len(result.OutcomeLog))
	}
	if result.Artifact == nil {
		t.Error("cancelled run still receives the fallback artifact")
	}
	if len(precision.calls) != 1 || precision.calls[0] != "register:fallback_ring" {
		t.Errorf("only the fallback registration may reach the backend, got %v", precision.calls)
	}
}

func TestSecondRunOnBusyDocumentIsRejected(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	doc := backend.NewDocument()
	release, err := doc.TryAcquire()
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	seq := newTestSequencer(doc, nil, nil)
	p := &plan.ConstructionPlan{
		Reasoning:  "x",
		Operations: []plan.Operation{{Name: "create_shank", Parameters: map[string]any{}}},
		Materials:  goldPolished(),
	}

	_, err = seq.Execute(context.Background(), p)
	if err != backend.ErrDocumentBusy {
		t.Fatalf("expected ErrDocumentBusy, got %v", err)
	}
}

func TestMaterialFailureIsFatal(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	doc := backend.NewDocument()
	seq := newTestSequencer(doc, nil, nil)

	p := &plan.ConstructionPlan{
		Reasoning: "x",
		Operations: []plan.Operation{
			{Name: "create_shank", Parameters: map[string]any{"thickness_mm": 2.0, "diameter_mm": 18.0}},
		},
		Materials: plan.MaterialSpecification{PrimaryMaterial: "UNOBTAINIUM", Finish: plan.FinishPolished},
	}

	result, err := seq.Execute(context.Background(), p)
	if err == nil {
		t.Fatal("unknown material must fail finalization")
	}
	var finErr *FinalizationError
	if !errors.As(err, &finErr) || finErr.Step != "material application" {
		t.Errorf("expected material-application finalization error, got %v", err)
	}
	if result == nil || result.MaterialApplied {
		t.Error("material must not be marked applied on failure")
	}
}

func TestProgressEventsAreEmitted(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	doc := backend.NewDocument()
	seq := newTestSequencer(doc, nil, nil)

	p := &plan.ConstructionPlan{
		Reasoning: "x",
		Operations: []plan.Operation{
			{Name: "create_shank", Parameters: map[string]any{"thickness_mm": 2.0, "diameter_mm": 18.0}},
		},
		Materials: goldPolished(),
	}

	done := make(chan []Event, 1)
	go func() { done <- drain(seq) }()

	if _, err := seq.Execute(context.Background(), p); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	events := <-done

	seen := make(map[EventType]bool)
	for _, ev := range events {
		seen[ev.Type] = true
	}
	for _, want := range []EventType{EventRunStarted, EventOperationStart, EventOperationDone, EventRunFinished} {
		if !seen[want] {
			t.Errorf("missing %s event", want)
		}
	}
}
