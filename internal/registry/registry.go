// Package registry holds the versioned set of known operation names, the
// paradigm table, and the on-disk library of synthesized techniques accepted
// in earlier runs.
package registry

import (
	"sort"
	"strings"
	"sync"

	"gemsmith/internal/plan"
)

// Version identifies the built-in operation set. Bumped whenever an
// operation is added or its parameter contract changes.
const Version = "2026.08"

// Info describes one built-in operation.
type Info struct {
	Name        string
	Paradigm    plan.Paradigm
	Category    string
	Description string
}

var builtins = map[string]Info{
	"create_shank":          {Paradigm: plan.ParadigmPrecision, Category: "shank", Description: "ring shank/band body"},
	"create_band":           {Paradigm: plan.ParadigmPrecision, Category: "shank", Description: "plain band body"},
	"create_bezel_setting":  {Paradigm: plan.ParadigmPrecision, Category: "bezel", Description: "bezel stone setting"},
	"create_prong_setting":  {Paradigm: plan.ParadigmPrecision, Category: "prong", Description: "prong stone setting"},
	"create_gemstone":       {Paradigm: plan.ParadigmPrecision, Category: "gemstone", Description: "faceted gemstone"},
	"add_engraving":         {Paradigm: plan.ParadigmPrecision, Category: "detail", Description: "surface engraving"},
	"apply_twist":           {Paradigm: plan.ParadigmArtistic, Category: "modifier", Description: "twist deformation"},
	"apply_displacement":    {Paradigm: plan.ParadigmArtistic, Category: "modifier", Description: "displacement modifier"},
	"apply_surface_texture": {Paradigm: plan.ParadigmArtistic, Category: "texture", Description: "procedural surface texture"},
	"perform_sculpt":        {Paradigm: plan.ParadigmArtistic, Category: "sculpt", Description: "brush sculpting pass"},
	"perform_retopology":    {Paradigm: plan.ParadigmArtistic, Category: "sculpt", Description: "retopology pass"},
	"setup_quality":         {Paradigm: plan.ParadigmArtistic, Category: "quality", Description: "quality tier setup"},
	"apply_smoothing":       {Paradigm: plan.ParadigmArtistic, Category: "finishing", Description: "global smoothing"},
	"enhance_edges":         {Paradigm: plan.ParadigmArtistic, Category: "finishing", Description: "edge enhancement"},
	"validate_geometry":     {Paradigm: plan.ParadigmArtistic, Category: "finishing", Description: "geometry validation pass"},
}

func init() {
	for name, info := range builtins {
		info.Name = name
		builtins[name] = info
	}
}

// Technique is a synthesized operation persisted to the technique library.
// Origin records where the source came from ("llm", "cache",
// "fallback_stub"); stub-origin techniques produce placeholder geometry and
// their outcomes are reported accordingly.
type Technique struct {
	Name   string
	Source string
	Origin string
}

// Registry answers membership and paradigm questions for operation names.
// The built-in set is immutable; synthesized techniques can be registered at
// runtime and reloaded from the library directory.
type Registry struct {
	mu         sync.RWMutex
	techniques map[string]Technique
}

// New returns a registry with only the built-in operation set.
func New() *Registry {
	return &Registry{techniques: make(map[string]Technique)}
}

// Exists reports membership by set test. Pure, no side effects.
func (r *Registry) Exists(name string) bool {
	if _, ok := builtins[name]; ok {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.techniques[name]
	return ok
}

// IsBuiltin reports whether the name is in the static versioned set.
func (r *Registry) IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// Describe returns the info for a built-in operation.
func (r *Registry) Describe(name string) (Info, bool) {
	info, ok := builtins[name]
	return info, ok
}

// Names returns every known name, built-ins first, sorted within each group.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)

	r.mu.RLock()
	learned := make([]string, 0, len(r.techniques))
	for name := range r.techniques {
		learned = append(learned, name)
	}
	r.mu.RUnlock()
	sort.Strings(learned)

	return append(names, learned...)
}

// Paradigm resolves the backend for an operation: the declared tag wins,
// then the built-in table, then name-prefix inference. Ambiguous names
// default to precision.
func (r *Registry) Paradigm(op plan.Operation) plan.Paradigm {
	if op.Paradigm != plan.ParadigmUnspecified {
		return op.Paradigm
	}
	if info, ok := builtins[op.Name]; ok {
		return info.Paradigm
	}
	return InferParadigm(op.Name)
}

// InferParadigm applies the name-prefix convention: create_*/add_* names are
// precision-style, apply_*/perform_*/sculpt_* names are artistic-style.
func InferParadigm(name string) plan.Paradigm {
	switch {
	case strings.HasPrefix(name, "create_"), strings.HasPrefix(name, "add_"):
		return plan.ParadigmPrecision
	case strings.HasPrefix(name, "apply_"), strings.HasPrefix(name, "perform_"),
		strings.HasPrefix(name, "sculpt_"):
		return plan.ParadigmArtistic
	default:
		return plan.ParadigmPrecision
	}
}

// RegisterTechnique adds a synthesized technique to the in-memory set.
func (r *Registry) RegisterTechnique(t Technique) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.techniques[t.Name] = t
}

// Technique returns a registered synthesized technique.
func (r *Registry) Technique(name string) (Technique, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.techniques[name]
	return t, ok
}

// TechniqueCount reports how many synthesized techniques are loaded.
func (r *Registry) TechniqueCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.techniques)
}

func (r *Registry) replaceTechniques(ts map[string]Technique) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.techniques = ts
}
