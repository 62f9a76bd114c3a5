package synth

import (
	"fmt"
	"sort"
	"strings"

	"gemsmith/internal/plan"
)

// buildSystemPrompt describes the handler contract and the sandbox rules.
// The allowed import list is injected so prompt and checker never drift.
func buildSystemPrompt(allowedPackages []string) string {
	return fmt.Sprintf(`You are a Go code generator for a parametric jewelry construction pipeline.
You write a single technique handler that builds geometry through the provided builder API.

CONTRACT (mandatory, checked statically before execution):
- Package clause: package technique
- Exactly one exported function with this exact signature:
  func %s(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error)
- Return the handles of every shape you create.

SAFETY RULES (violations are rejected, no exceptions):
- Allowed imports ONLY: %s
- Do NOT use panic() - return errors instead
- Do NOT spawn goroutines
- No filesystem, network, exec, or unsafe access of any kind

BUILDER API (package geomapi):
- b.AddCylinder(radiusMM, heightMM float64) Handle
- b.AddTorus(majorRadiusMM, minorRadiusMM float64) Handle
- b.AddSphere(radiusMM float64) Handle
- b.AddBox(widthMM, depthMM, heightMM float64) Handle
- b.AddCone(baseRadiusMM, heightMM float64) Handle
- b.AddFacetedSphere(radiusMM float64, facets int) Handle
- b.SweepProfile(profileRadiusMM, pathRadiusMM float64, segments int) Handle
- b.Translate(h Handle, dx, dy, dz float64)

All dimensions are millimeters. Validate parameters and fall back to
sensible jewelry-scale defaults when a parameter is missing or non-positive.
Respond with Go code only.`, EntryPointName, strings.Join(allowedPackages, ", "))
}

// buildUserPrompt describes the specific operation to synthesize.
func buildUserPrompt(req TechniqueRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write the %s handler for the operation %q.\n\n", EntryPointName, req.Name)

	switch req.Paradigm {
	case plan.ParadigmPrecision:
		sb.WriteString("Paradigm: precision (NURBS-style). Favor exact primitives: cylinders, tori, cones, swept profiles.\n")
	case plan.ParadigmArtistic:
		sb.WriteString("Paradigm: artistic (mesh-style). Favor organic composition: spheres, faceted spheres, translated clusters.\n")
	}

	if len(req.Parameters) > 0 {
		sb.WriteString("\nPlan parameters (read them from the params map by these keys):\n")
		keys := make([]string, 0, len(req.Parameters))
		for k := range req.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s = %v\n", k, req.Parameters[k])
		}
	} else {
		sb.WriteString("\nNo parameters were supplied; choose jewelry-scale defaults.\n")
	}

	sb.WriteString("\nGenerate complete, compilable Go code now.")
	return sb.String()
}

// buildRetryPrompt feeds the previous rejection back so the next attempt
// does not repeat it.
func buildRetryPrompt(req TechniqueRequest, previousCode, rejection string) string {
	return fmt.Sprintf(`Your previous handler for %q was rejected by the safety check.

--- REJECTION ---
%s

--- PREVIOUS CODE (do not repeat these mistakes) ---
%s

%s`, req.Name, rejection, previousCode, buildUserPrompt(req))
}
