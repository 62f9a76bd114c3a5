package plan

// OperationSpec is the typed view of an operation's parameters, decoded once
// at validation time instead of per-field access inside the backends. Unknown
// names decode to UnknownSpec, which triggers technique synthesis at
// execution time.
type OperationSpec interface {
	specName() string
}

// ShankSpec covers create_shank and create_band.
type ShankSpec struct {
	ThicknessMM float64
	DiameterMM  float64
	WidthMM     float64
	Profile     string // round, flat, d_shape, knife_edge
}

// BezelSpec covers create_bezel_setting.
type BezelSpec struct {
	StoneDiameterMM float64
	WallThicknessMM float64
	HeightMM        float64
}

// ProngSpec covers create_prong_setting.
type ProngSpec struct {
	ProngCount      int
	ProngDiameterMM float64
	StoneDiameterMM float64
	HeightMM        float64
}

// GemstoneSpec covers create_gemstone.
type GemstoneSpec struct {
	Cut        string // round, princess, emerald, oval, pear, marquise
	DiameterMM float64
	DepthMM    float64
}

// EngravingSpec covers add_engraving.
type EngravingSpec struct {
	Pattern string
	DepthMM float64
}

// DisplacementSpec covers apply_displacement and apply_twist.
type DisplacementSpec struct {
	StrengthMM float64
	Pattern    string
	AngleDeg   float64
}

// SculptSpec covers perform_sculpt.
type SculptSpec struct {
	Brush      string
	StrengthMM float64
	Iterations int
}

// RetopologySpec covers perform_retopology.
type RetopologySpec struct {
	TargetFaces int
	Preserve    string
}

// TextureSpec covers apply_surface_texture.
type TextureSpec struct {
	Pattern string
	ScaleMM float64
	DepthMM float64
}

// QualitySetupSpec covers the synthetic setup_quality operation the optimizer
// prepends.
type QualitySetupSpec struct {
	Preset            string
	SubdivisionLevels int
	DetailMultiplier  float64
	Resolution        int
}

// FinishingSpec covers apply_smoothing, enhance_edges and validate_geometry.
type FinishingSpec struct {
	Kind       string
	Iterations int
}

// UnknownSpec is the catch-all for names outside the registry.
type UnknownSpec struct {
	Name string
	Raw  map[string]any
}

func (ShankSpec) specName() string        { return "shank" }
func (BezelSpec) specName() string        { return "bezel" }
func (ProngSpec) specName() string        { return "prong" }
func (GemstoneSpec) specName() string     { return "gemstone" }
func (EngravingSpec) specName() string    { return "engraving" }
func (DisplacementSpec) specName() string { return "displacement" }
func (SculptSpec) specName() string       { return "sculpt" }
func (RetopologySpec) specName() string   { return "retopology" }
func (TextureSpec) specName() string      { return "texture" }
func (QualitySetupSpec) specName() string { return "quality_setup" }
func (FinishingSpec) specName() string    { return "finishing" }
func (UnknownSpec) specName() string      { return "unknown" }

// Spec decodes the operation into its typed variant. Missing parameters take
// manufacturing defaults; range validation is the backend's concern.
func (o Operation) Spec() OperationSpec {
	switch o.Name {
	case "create_shank", "create_band":
		return ShankSpec{
			ThicknessMM: o.ParamFloat("thickness_mm", 2.0),
			DiameterMM:  o.ParamFloat("diameter_mm", 18.0),
			WidthMM:     o.ParamFloat("width_mm", o.ParamFloat("thickness_mm", 2.0)),
			Profile:     o.ParamString("profile", "round"),
		}
	case "create_bezel_setting":
		return BezelSpec{
			StoneDiameterMM: o.ParamFloat("stone_diameter_mm", 6.0),
			WallThicknessMM: o.ParamFloat("wall_thickness_mm", 0.5),
			HeightMM:        o.ParamFloat("height_mm", 3.0),
		}
	case "create_prong_setting":
		return ProngSpec{
			ProngCount:      int(o.ParamFloat("prong_count", 4)),
			ProngDiameterMM: o.ParamFloat("prong_diameter_mm", 0.8),
			StoneDiameterMM: o.ParamFloat("stone_diameter_mm", 6.0),
			HeightMM:        o.ParamFloat("height_mm", 4.0),
		}
	case "create_gemstone":
		return GemstoneSpec{
			Cut:        o.ParamString("cut", "round"),
			DiameterMM: o.ParamFloat("diameter_mm", 6.0),
			DepthMM:    o.ParamFloat("depth_mm", 3.6),
		}
	case "add_engraving":
		return EngravingSpec{
			Pattern: o.ParamString("pattern", "floral"),
			DepthMM: o.ParamFloat("depth_mm", 0.3),
		}
	case "apply_displacement", "apply_twist":
		return DisplacementSpec{
			StrengthMM: o.ParamFloat("strength_mm", 0.5),
			Pattern:    o.ParamString("pattern", "organic"),
			AngleDeg:   o.ParamFloat("angle_deg", 0),
		}
	case "perform_sculpt":
		return SculptSpec{
			Brush:      o.ParamString("brush", "clay"),
			StrengthMM: o.ParamFloat("strength_mm", 0.4),
			Iterations: int(o.ParamFloat("iterations", 1)),
		}
	case "perform_retopology":
		return RetopologySpec{
			TargetFaces: int(o.ParamFloat("target_faces", 20000)),
			Preserve:    o.ParamString("preserve", "silhouette"),
		}
	case "apply_surface_texture":
		return TextureSpec{
			Pattern: o.ParamString("pattern", "hammered"),
			ScaleMM: o.ParamFloat("scale_mm", 1.0),
			DepthMM: o.ParamFloat("depth_mm", 0.2),
		}
	case "setup_quality":
		return QualitySetupSpec{
			Preset:            o.ParamString("preset", "standard"),
			SubdivisionLevels: int(o.ParamFloat("subdivision_levels", 2)),
			DetailMultiplier:  o.ParamFloat("detail_multiplier", 1.0),
			Resolution:        int(o.ParamFloat("resolution", 64)),
		}
	case "apply_smoothing", "enhance_edges", "validate_geometry":
		return FinishingSpec{
			Kind:       o.Name,
			Iterations: int(o.ParamFloat("iterations", 1)),
		}
	default:
		return UnknownSpec{Name: o.Name, Raw: o.Parameters}
	}
}
