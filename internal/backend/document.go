// Package backend models the active document/scene and the two geometry
// backend adapters the dispatcher routes operations to. The interpreter never
// inspects artifact internals; it only forwards references between
// operations.
package backend

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gemsmith/internal/plan"
)

// ArtifactRef is an opaque handle to geometry produced by a backend.
type ArtifactRef struct {
	ID      string `json:"id"`
	Backend string `json:"backend"`
	Name    string `json:"name"`
}

// ArtifactRecord is the document-side state behind a reference.
type ArtifactRecord struct {
	Ref        ArtifactRef
	Operation  string
	Parameters map[string]float64
	BaseID     string // artifact this one was built on, if any
	CreatedAt  time.Time
}

// ErrDocumentBusy is returned when a second plan execution is requested while
// one is already in flight on the same document.
var ErrDocumentBusy = fmt.Errorf("document busy: a plan execution is already in flight")

// Document is the single active scene. It is a single-writer resource: only
// the sequencer holding the acquisition may mutate it.
type Document struct {
	mu        sync.Mutex
	inflight  bool
	artifacts map[string]ArtifactRecord
	order     []string

	material     *plan.MaterialSpecification
	resultMarker string
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{artifacts: make(map[string]ArtifactRecord)}
}

// TryAcquire claims the document for one plan execution. The returned release
// function must be called when the run ends. A second acquisition while one
// is outstanding fails with ErrDocumentBusy rather than interleaving.
func (d *Document) TryAcquire() (func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inflight {
		return nil, ErrDocumentBusy
	}
	d.inflight = true
	return func() {
		d.mu.Lock()
		d.inflight = false
		d.mu.Unlock()
	}, nil
}

// AddArtifact registers a new artifact record and returns its reference.
func (d *Document) AddArtifact(backendName, operation, displayName string, params map[string]float64, base *ArtifactRef) ArtifactRef {
	d.mu.Lock()
	defer d.mu.Unlock()

	ref := ArtifactRef{
		ID:      uuid.NewString(),
		Backend: backendName,
		Name:    displayName,
	}
	rec := ArtifactRecord{
		Ref:        ref,
		Operation:  operation,
		Parameters: params,
		CreatedAt:  time.Now(),
	}
	if base != nil {
		rec.BaseID = base.ID
	}
	d.artifacts[ref.ID] = rec
	d.order = append(d.order, ref.ID)
	return ref
}

// Artifacts returns the document's artifact records in creation order.
func (d *Document) Artifacts() []ArtifactRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ArtifactRecord, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.artifacts[id])
	}
	return out
}

// Lookup resolves a reference to its record.
func (d *Document) Lookup(ref ArtifactRef) (ArtifactRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.artifacts[ref.ID]
	return rec, ok
}

// AttachResultMarker names the final artifact's result channel. Finalization
// fails if the reference does not resolve.
func (d *Document) AttachResultMarker(ref ArtifactRef, marker string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.artifacts[ref.ID]; !ok {
		return fmt.Errorf("attach result marker: artifact %s not in document", ref.ID)
	}
	if marker == "" {
		return fmt.Errorf("attach result marker: empty marker name")
	}
	d.resultMarker = marker
	return nil
}

// ResultMarker returns the marker set at finalization, if any.
func (d *Document) ResultMarker() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resultMarker
}

// ApplyMaterial records the material specification on the document. An
// unrecognized material or finish is a finalization failure, not a
// best-effort skip.
func (d *Document) ApplyMaterial(spec plan.MaterialSpecification) error {
	if !validMaterial(spec.PrimaryMaterial) {
		return fmt.Errorf("apply material: unknown material %q", spec.PrimaryMaterial)
	}
	if !validFinish(spec.Finish) {
		return fmt.Errorf("apply material: unknown finish %q", spec.Finish)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := spec
	d.material = &copied
	return nil
}

// Material returns the applied material specification, if any.
func (d *Document) Material() *plan.MaterialSpecification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.material
}

func validMaterial(m plan.Material) bool {
	switch m {
	case plan.MaterialGold, plan.MaterialSilver, plan.MaterialPlatinum,
		plan.MaterialRoseGold, plan.MaterialWhiteGold, plan.MaterialCopper,
		plan.MaterialTitanium:
		return true
	}
	return false
}

func validFinish(f plan.Finish) bool {
	switch f {
	case plan.FinishPolished, plan.FinishMatte, plan.FinishBrushed,
		plan.FinishHammered, plan.FinishAntique, plan.FinishSandblasted:
		return true
	}
	return false
}
