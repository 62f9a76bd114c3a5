package backend

import (
	"fmt"

	"gemsmith/internal/geomapi"
	"gemsmith/internal/logging"
	"gemsmith/internal/plan"
)

// PrecisionBackend is the manufacturing-grade construction adapter
// (NURBS-style): shanks, bezels, prong settings, gemstones.
type PrecisionBackend interface {
	CreateShank(spec plan.ShankSpec) (ArtifactRef, error)
	CreateBezelSetting(spec plan.BezelSpec, base *ArtifactRef) (ArtifactRef, error)
	CreateProngSetting(spec plan.ProngSpec, base *ArtifactRef) (ArtifactRef, error)
	CreateGemstone(spec plan.GemstoneSpec, base *ArtifactRef) (ArtifactRef, error)
	AddEngraving(spec plan.EngravingSpec, base *ArtifactRef) (ArtifactRef, error)
	RegisterComponent(name string, shapes []geomapi.Shape, base *ArtifactRef) (ArtifactRef, error)
}

const precisionName = "nurbs"

// NURBSAdapter implements PrecisionBackend against the shared document.
// Geometry kernel math is external; the adapter validates parameters and
// registers parametrized artifact records.
type NURBSAdapter struct {
	doc *Document
}

// NewNURBSAdapter binds a precision adapter to a document.
func NewNURBSAdapter(doc *Document) *NURBSAdapter {
	return &NURBSAdapter{doc: doc}
}

func (a *NURBSAdapter) CreateShank(spec plan.ShankSpec) (ArtifactRef, error) {
	if spec.ThicknessMM <= 0 || spec.DiameterMM <= 0 {
		return ArtifactRef{}, fmt.Errorf("create_shank: thickness and diameter must be positive (got %.2f, %.2f)",
			spec.ThicknessMM, spec.DiameterMM)
	}
	if spec.ThicknessMM >= spec.DiameterMM/2 {
		return ArtifactRef{}, fmt.Errorf("create_shank: thickness %.2fmm too large for diameter %.2fmm",
			spec.ThicknessMM, spec.DiameterMM)
	}
	name := fmt.Sprintf("shank %s %.1fx%.1fmm", spec.Profile, spec.DiameterMM, spec.ThicknessMM)
	ref := a.doc.AddArtifact(precisionName, "create_shank", name, map[string]float64{
		"thickness_mm": spec.ThicknessMM,
		"diameter_mm":  spec.DiameterMM,
		"width_mm":     spec.WidthMM,
	}, nil)
	logging.Get(logging.CategoryBackend).Info("precision: created %s (%s)", name, ref.ID)
	return ref, nil
}

func (a *NURBSAdapter) CreateBezelSetting(spec plan.BezelSpec, base *ArtifactRef) (ArtifactRef, error) {
	if spec.StoneDiameterMM <= 0 {
		return ArtifactRef{}, fmt.Errorf("create_bezel_setting: stone diameter must be positive")
	}
	if spec.WallThicknessMM <= 0 || spec.WallThicknessMM > spec.StoneDiameterMM {
		return ArtifactRef{}, fmt.Errorf("create_bezel_setting: wall thickness %.2fmm out of range for stone %.2fmm",
			spec.WallThicknessMM, spec.StoneDiameterMM)
	}
	name := fmt.Sprintf("bezel %.1fmm", spec.StoneDiameterMM)
	ref := a.doc.AddArtifact(precisionName, "create_bezel_setting", name, map[string]float64{
		"stone_diameter_mm": spec.StoneDiameterMM,
		"wall_thickness_mm": spec.WallThicknessMM,
		"height_mm":         spec.HeightMM,
	}, base)
	logging.Get(logging.CategoryBackend).Info("precision: created %s (%s)", name, ref.ID)
	return ref, nil
}

func (a *NURBSAdapter) CreateProngSetting(spec plan.ProngSpec, base *ArtifactRef) (ArtifactRef, error) {
	if spec.ProngCount < 2 || spec.ProngCount > 8 {
		return ArtifactRef{}, fmt.Errorf("create_prong_setting: prong count %d outside 2..8", spec.ProngCount)
	}
	if spec.StoneDiameterMM <= 0 {
		return ArtifactRef{}, fmt.Errorf("create_prong_setting: stone diameter must be positive")
	}
	name := fmt.Sprintf("%d-prong setting %.1fmm", spec.ProngCount, spec.StoneDiameterMM)
	ref := a.doc.AddArtifact(precisionName, "create_prong_setting", name, map[string]float64{
		"prong_count":       float64(spec.ProngCount),
		"prong_diameter_mm": spec.ProngDiameterMM,
		"stone_diameter_mm": spec.StoneDiameterMM,
		"height_mm":         spec.HeightMM,
	}, base)
	logging.Get(logging.CategoryBackend).Info("precision: created %s (%s)", name, ref.ID)
	return ref, nil
}

func (a *NURBSAdapter) CreateGemstone(spec plan.GemstoneSpec, base *ArtifactRef) (ArtifactRef, error) {
	if spec.DiameterMM <= 0 {
		return ArtifactRef{}, fmt.Errorf("create_gemstone: diameter must be positive")
	}
	switch spec.Cut {
	case "round", "princess", "emerald", "oval", "pear", "marquise":
	default:
		return ArtifactRef{}, fmt.Errorf("create_gemstone: unknown cut %q", spec.Cut)
	}
	name := fmt.Sprintf("%s gemstone %.1fmm", spec.Cut, spec.DiameterMM)
	ref := a.doc.AddArtifact(precisionName, "create_gemstone", name, map[string]float64{
		"diameter_mm": spec.DiameterMM,
		"depth_mm":    spec.DepthMM,
	}, base)
	logging.Get(logging.CategoryBackend).Info("precision: created %s (%s)", name, ref.ID)
	return ref, nil
}

func (a *NURBSAdapter) AddEngraving(spec plan.EngravingSpec, base *ArtifactRef) (ArtifactRef, error) {
	if base == nil {
		return ArtifactRef{}, fmt.Errorf("add_engraving: no base artifact to engrave")
	}
	if spec.DepthMM <= 0 || spec.DepthMM > 1.0 {
		return ArtifactRef{}, fmt.Errorf("add_engraving: depth %.2fmm outside (0, 1.0]", spec.DepthMM)
	}
	name := fmt.Sprintf("engraving %s %.2fmm", spec.Pattern, spec.DepthMM)
	ref := a.doc.AddArtifact(precisionName, "add_engraving", name, map[string]float64{
		"depth_mm": spec.DepthMM,
	}, base)
	return ref, nil
}

// RegisterComponent records the output of a synthesized precision handler:
// the shapes a sandboxed builder accumulated become one artifact.
func (a *NURBSAdapter) RegisterComponent(name string, shapes []geomapi.Shape, base *ArtifactRef) (ArtifactRef, error) {
	if len(shapes) == 0 {
		return ArtifactRef{}, fmt.Errorf("register component %q: builder produced no geometry", name)
	}
	params := map[string]float64{"shape_count": float64(len(shapes))}
	ref := a.doc.AddArtifact(precisionName, name, fmt.Sprintf("custom %s (%s)", name, shapes[0].Describe()), params, base)
	logging.Get(logging.CategoryBackend).Info("precision: registered synthesized component %s with %d shapes", name, len(shapes))
	return ref, nil
}
