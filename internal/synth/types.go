// Package synth implements runtime technique synthesis: when a plan
// references an operation the registry does not know, the synthesizer asks
// the LLM collaborator for a handler, gates the result through a static
// safety check, and executes accepted code only inside a yaegi interpreter
// with a restricted symbol table.
package synth

import "gemsmith/internal/plan"

// EntryPointName is the only function shape accepted from synthesized code:
//
//	func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error)
const EntryPointName = "CreateCustomComponent"

// Origin records where a synthesis result came from.
type Origin int

const (
	OriginLLM Origin = iota
	OriginFallbackStub
	OriginCache
)

func (o Origin) String() string {
	switch o {
	case OriginLLM:
		return "llm"
	case OriginFallbackStub:
		return "fallback_stub"
	case OriginCache:
		return "cache"
	}
	return "unknown"
}

// TechniqueRequest describes the operation to synthesize.
type TechniqueRequest struct {
	Name       string
	Paradigm   plan.Paradigm
	Parameters map[string]any
}

// SynthesisResult is the synthesizer's output. Accepted source has already
// passed the sandbox check; rejected results carry the reason and the
// pipeline falls back to a stub.
type SynthesisResult struct {
	SourceText      string
	Accepted        bool
	RejectionReason string
	Origin          Origin
}
