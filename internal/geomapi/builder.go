// Package geomapi is the whitelisted geometry-building surface exposed to
// synthesized technique code. A synthesized handler receives a *Builder and
// may call nothing outside this package and the math stdlib; the sandbox
// checker enforces that statically before any execution.
package geomapi

import (
	"fmt"
	"math"
)

// Handle identifies a shape recorded in a Builder.
type Handle int

// ShapeKind enumerates the primitives the builder can produce.
type ShapeKind string

const (
	KindCylinder ShapeKind = "cylinder"
	KindTorus    ShapeKind = "torus"
	KindSphere   ShapeKind = "sphere"
	KindBox      ShapeKind = "box"
	KindCone     ShapeKind = "cone"
	KindFaceted  ShapeKind = "faceted_sphere"
	KindSwept    ShapeKind = "swept_profile"
)

// Shape is one recorded primitive with its dimensions in millimeters.
type Shape struct {
	Kind   ShapeKind
	Params map[string]float64
	Offset [3]float64
}

// Builder accumulates primitives for one synthesized component. It performs
// parameter validation only; the owning backend turns the recorded shapes
// into a document artifact.
type Builder struct {
	shapes []Shape
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) record(kind ShapeKind, params map[string]float64) Handle {
	b.shapes = append(b.shapes, Shape{Kind: kind, Params: params})
	return Handle(len(b.shapes) - 1)
}

// AddCylinder records a cylinder primitive.
func (b *Builder) AddCylinder(radiusMM, heightMM float64) Handle {
	return b.record(KindCylinder, map[string]float64{
		"radius_mm": clampPositive(radiusMM, 1.0),
		"height_mm": clampPositive(heightMM, 1.0),
	})
}

// AddTorus records a torus primitive (ring analogue).
func (b *Builder) AddTorus(majorRadiusMM, minorRadiusMM float64) Handle {
	return b.record(KindTorus, map[string]float64{
		"major_radius_mm": clampPositive(majorRadiusMM, 9.0),
		"minor_radius_mm": clampPositive(minorRadiusMM, 1.0),
	})
}

// AddSphere records a sphere primitive.
func (b *Builder) AddSphere(radiusMM float64) Handle {
	return b.record(KindSphere, map[string]float64{
		"radius_mm": clampPositive(radiusMM, 1.0),
	})
}

// AddBox records a box primitive.
func (b *Builder) AddBox(widthMM, depthMM, heightMM float64) Handle {
	return b.record(KindBox, map[string]float64{
		"width_mm":  clampPositive(widthMM, 1.0),
		"depth_mm":  clampPositive(depthMM, 1.0),
		"height_mm": clampPositive(heightMM, 1.0),
	})
}

// AddCone records a cone primitive.
func (b *Builder) AddCone(baseRadiusMM, heightMM float64) Handle {
	return b.record(KindCone, map[string]float64{
		"base_radius_mm": clampPositive(baseRadiusMM, 1.0),
		"height_mm":      clampPositive(heightMM, 1.0),
	})
}

// AddFacetedSphere records a faceted sphere, the gemstone analogue. Facet
// count is clamped to a manufacturable range.
func (b *Builder) AddFacetedSphere(radiusMM float64, facets int) Handle {
	if facets < 8 {
		facets = 8
	}
	if facets > 1024 {
		facets = 1024
	}
	return b.record(KindFaceted, map[string]float64{
		"radius_mm": clampPositive(radiusMM, 1.0),
		"facets":    float64(facets),
	})
}

// SweepProfile records a profile swept along a circular path, used for band
// profiles the primitives cannot express.
func (b *Builder) SweepProfile(profileRadiusMM, pathRadiusMM float64, segments int) Handle {
	if segments < 3 {
		segments = 3
	}
	return b.record(KindSwept, map[string]float64{
		"profile_radius_mm": clampPositive(profileRadiusMM, 1.0),
		"path_radius_mm":    clampPositive(pathRadiusMM, 9.0),
		"segments":          float64(segments),
	})
}

// Translate offsets a recorded shape. Unknown handles are ignored.
func (b *Builder) Translate(h Handle, dx, dy, dz float64) {
	if int(h) < 0 || int(h) >= len(b.shapes) {
		return
	}
	s := b.shapes[h]
	s.Offset[0] += dx
	s.Offset[1] += dy
	s.Offset[2] += dz
	b.shapes[h] = s
}

// Shapes returns the recorded primitives in creation order.
func (b *Builder) Shapes() []Shape {
	out := make([]Shape, len(b.shapes))
	copy(out, b.shapes)
	return out
}

// Count returns the number of recorded shapes.
func (b *Builder) Count() int {
	return len(b.shapes)
}

// Describe renders a short human-readable summary of a shape, used in
// artifact names and logs.
func (s Shape) Describe() string {
	switch s.Kind {
	case KindCylinder:
		return fmt.Sprintf("cylinder r=%.2f h=%.2f", s.Params["radius_mm"], s.Params["height_mm"])
	case KindTorus:
		return fmt.Sprintf("torus R=%.2f r=%.2f", s.Params["major_radius_mm"], s.Params["minor_radius_mm"])
	case KindSphere:
		return fmt.Sprintf("sphere r=%.2f", s.Params["radius_mm"])
	case KindFaceted:
		return fmt.Sprintf("faceted sphere r=%.2f f=%d", s.Params["radius_mm"], int(s.Params["facets"]))
	default:
		return string(s.Kind)
	}
}

func clampPositive(v, fallback float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
