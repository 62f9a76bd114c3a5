package geomapi

import "reflect"

// Symbols exports the builder API into a yaegi interpreter. Synthesized code
// imports it as plain "geomapi"; nothing else from this module is visible
// inside the sandbox.
func Symbols() map[string]map[string]reflect.Value {
	return map[string]map[string]reflect.Value{
		"geomapi/geomapi": {
			"Builder":      reflect.ValueOf((*Builder)(nil)),
			"Handle":       reflect.ValueOf((*Handle)(nil)),
			"Shape":        reflect.ValueOf((*Shape)(nil)),
			"ShapeKind":    reflect.ValueOf((*ShapeKind)(nil)),
			"NewBuilder":   reflect.ValueOf(NewBuilder),
			"KindCylinder": reflect.ValueOf(KindCylinder),
			"KindTorus":    reflect.ValueOf(KindTorus),
			"KindSphere":   reflect.ValueOf(KindSphere),
			"KindBox":      reflect.ValueOf(KindBox),
			"KindCone":     reflect.ValueOf(KindCone),
			"KindFaceted":  reflect.ValueOf(KindFaceted),
			"KindSwept":    reflect.ValueOf(KindSwept),
		},
	}
}
