package backend

import (
	"fmt"

	"gemsmith/internal/geomapi"
	"gemsmith/internal/logging"
	"gemsmith/internal/plan"
)

// ArtisticBackend is the organic surface-modification adapter (mesh-style):
// displacement, sculpting, retopology, procedural texture. Every operation
// takes the current base artifact when one exists.
type ArtisticBackend interface {
	ApplyDisplacement(spec plan.DisplacementSpec, base *ArtifactRef) (ArtifactRef, error)
	PerformSculpt(spec plan.SculptSpec, base *ArtifactRef) (ArtifactRef, error)
	PerformRetopology(spec plan.RetopologySpec, base *ArtifactRef) (ArtifactRef, error)
	ApplyTexture(spec plan.TextureSpec, base *ArtifactRef) (ArtifactRef, error)
	ApplyFinishing(spec plan.FinishingSpec, base *ArtifactRef) (ArtifactRef, error)
	RegisterComponent(name string, shapes []geomapi.Shape, base *ArtifactRef) (ArtifactRef, error)
}

const artisticName = "mesh"

// MeshAdapter implements ArtisticBackend against the shared document.
type MeshAdapter struct {
	doc *Document
}

// NewMeshAdapter binds an artistic adapter to a document.
func NewMeshAdapter(doc *Document) *MeshAdapter {
	return &MeshAdapter{doc: doc}
}

func (a *MeshAdapter) ApplyDisplacement(spec plan.DisplacementSpec, base *ArtifactRef) (ArtifactRef, error) {
	if base == nil {
		return ArtifactRef{}, fmt.Errorf("apply_displacement: no base mesh to displace")
	}
	if spec.StrengthMM <= 0 {
		return ArtifactRef{}, fmt.Errorf("apply_displacement: strength must be positive")
	}
	name := fmt.Sprintf("displacement %s %.2fmm", spec.Pattern, spec.StrengthMM)
	ref := a.doc.AddArtifact(artisticName, "apply_displacement", name, map[string]float64{
		"strength_mm": spec.StrengthMM,
		"angle_deg":   spec.AngleDeg,
	}, base)
	logging.Get(logging.CategoryBackend).Info("artistic: %s on %s -> %s", name, base.ID, ref.ID)
	return ref, nil
}

func (a *MeshAdapter) PerformSculpt(spec plan.SculptSpec, base *ArtifactRef) (ArtifactRef, error) {
	if base == nil {
		return ArtifactRef{}, fmt.Errorf("perform_sculpt: no base mesh to sculpt")
	}
	if spec.Iterations < 1 {
		return ArtifactRef{}, fmt.Errorf("perform_sculpt: iterations must be at least 1")
	}
	name := fmt.Sprintf("sculpt %s x%d", spec.Brush, spec.Iterations)
	ref := a.doc.AddArtifact(artisticName, "perform_sculpt", name, map[string]float64{
		"strength_mm": spec.StrengthMM,
		"iterations":  float64(spec.Iterations),
	}, base)
	return ref, nil
}

func (a *MeshAdapter) PerformRetopology(spec plan.RetopologySpec, base *ArtifactRef) (ArtifactRef, error) {
	if base == nil {
		return ArtifactRef{}, fmt.Errorf("perform_retopology: no base mesh")
	}
	if spec.TargetFaces < 100 {
		return ArtifactRef{}, fmt.Errorf("perform_retopology: target faces %d too low", spec.TargetFaces)
	}
	name := fmt.Sprintf("retopology %d faces", spec.TargetFaces)
	ref := a.doc.AddArtifact(artisticName, "perform_retopology", name, map[string]float64{
		"target_faces": float64(spec.TargetFaces),
	}, base)
	return ref, nil
}

func (a *MeshAdapter) ApplyTexture(spec plan.TextureSpec, base *ArtifactRef) (ArtifactRef, error) {
	if base == nil {
		return ArtifactRef{}, fmt.Errorf("apply_surface_texture: no base mesh")
	}
	if spec.DepthMM <= 0 {
		return ArtifactRef{}, fmt.Errorf("apply_surface_texture: depth must be positive")
	}
	name := fmt.Sprintf("texture %s %.2fmm", spec.Pattern, spec.DepthMM)
	ref := a.doc.AddArtifact(artisticName, "apply_surface_texture", name, map[string]float64{
		"scale_mm": spec.ScaleMM,
		"depth_mm": spec.DepthMM,
	}, base)
	return ref, nil
}

func (a *MeshAdapter) ApplyFinishing(spec plan.FinishingSpec, base *ArtifactRef) (ArtifactRef, error) {
	if base == nil {
		return ArtifactRef{}, fmt.Errorf("%s: no base mesh", spec.Kind)
	}
	name := fmt.Sprintf("%s x%d", spec.Kind, spec.Iterations)
	ref := a.doc.AddArtifact(artisticName, spec.Kind, name, map[string]float64{
		"iterations": float64(spec.Iterations),
	}, base)
	return ref, nil
}

// RegisterComponent records the output of a synthesized artistic handler.
func (a *MeshAdapter) RegisterComponent(name string, shapes []geomapi.Shape, base *ArtifactRef) (ArtifactRef, error) {
	if len(shapes) == 0 {
		return ArtifactRef{}, fmt.Errorf("register component %q: builder produced no geometry", name)
	}
	params := map[string]float64{"shape_count": float64(len(shapes))}
	ref := a.doc.AddArtifact(artisticName, name, fmt.Sprintf("custom %s (%s)", name, shapes[0].Describe()), params, base)
	logging.Get(logging.CategoryBackend).Info("artistic: registered synthesized component %s with %d shapes", name, len(shapes))
	return ref, nil
}
