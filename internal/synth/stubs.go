package synth

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Fallback stubs are deterministic technique source generated when the LLM
// is unavailable or every candidate fails the safety check. They build a
// recognizable primitive so the construction always produces geometry the
// user can see, sized from whatever numeric parameters the plan carried.

const stubTemplateText = `package technique

import "geomapi"

// {{.FuncName}} is a generated placeholder for the "{{.OpName}}" operation.
func {{.FuncName}}(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	size := params["{{.SizeParam}}"]
	if size <= 0 {
		size = {{.DefaultSize}}
	}
{{- if eq .Primitive "cylinder"}}
	h := b.AddCylinder(size/2, size/3)
{{- else if eq .Primitive "faceted_sphere"}}
	h := b.AddFacetedSphere(size/2, 32)
{{- else if eq .Primitive "torus"}}
	h := b.AddTorus(size/2, size/8)
{{- end}}
	return []geomapi.Handle{h}, nil
}
`

var stubTemplate = template.Must(template.New("stub").Parse(stubTemplateText))

type stubData struct {
	FuncName    string
	OpName      string
	SizeParam   string
	DefaultSize string
	Primitive   string
}

// FallbackStub generates deterministic placeholder source for an operation
// the pipeline could not synthesize. The primitive is chosen from keywords
// in the operation name so the placeholder at least resembles the intent.
func FallbackStub(req TechniqueRequest) string {
	data := stubData{
		FuncName:    EntryPointName,
		OpName:      req.Name,
		SizeParam:   "size_mm",
		DefaultSize: "10.0",
		Primitive:   classifyStubPrimitive(req.Name),
	}

	if _, ok := req.Parameters["diameter_mm"]; ok {
		data.SizeParam = "diameter_mm"
	}

	var buf bytes.Buffer
	if err := stubTemplate.Execute(&buf, data); err != nil {
		// Template data is fully static apart from the operation name, so
		// execution cannot fail; keep a hard fallback anyway.
		return fmt.Sprintf("package technique\n\nimport \"geomapi\"\n\nfunc %s(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {\n\treturn []geomapi.Handle{b.AddCylinder(5, 3)}, nil\n}\n", EntryPointName)
	}
	return buf.String()
}

func classifyStubPrimitive(opName string) string {
	name := strings.ToLower(opName)
	switch {
	case containsAny(name, "stone", "gem", "diamond", "crystal"):
		return "faceted_sphere"
	case containsAny(name, "bezel", "halo", "crown", "hoop"):
		return "torus"
	case containsAny(name, "band", "ring", "shank", "post", "pin"):
		return "cylinder"
	default:
		return "cylinder"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
