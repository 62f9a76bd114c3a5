package synth

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"sort"
	"strings"
	"time"

	"gemsmith/internal/config"
	"gemsmith/internal/logging"
	"gemsmith/internal/mangle"
)

//go:embed geom_safety.mg
var geomSafetyPolicy string

// SafetyChecker validates synthesized technique code using a Mangle policy
// over facts extracted from the Go AST. It never executes the code.
type SafetyChecker struct {
	cfg         config.SandboxConfig
	policy      string
	allowedPkgs []string
}

// SafetyReport contains the results of a safety check.
type SafetyReport struct {
	Safe           bool
	Violations     []SafetyViolation
	ImportsChecked int
	CallsChecked   int
	Score          float64 // 0.0 = unsafe, 1.0 = safe
}

// Summary renders the violations as a single line for errors and retry
// feedback.
func (r *SafetyReport) Summary() string {
	if len(r.Violations) == 0 {
		return "rejected with no recorded violations"
	}
	parts := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Type, v.Description))
	}
	return strings.Join(parts, "; ")
}

// SafetyViolation describes a single safety issue.
type SafetyViolation struct {
	Type        ViolationType
	Location    string
	Description string
	Severity    ViolationSeverity
}

// ViolationType categorizes violations.
type ViolationType int

const (
	ViolationForbiddenImport ViolationType = iota
	ViolationMissingEntryPoint
	ViolationBadSignature
	ViolationPanic
	ViolationGoroutine
	ViolationParseError
	ViolationPolicy
)

func (v ViolationType) String() string {
	switch v {
	case ViolationForbiddenImport:
		return "forbidden_import"
	case ViolationMissingEntryPoint:
		return "missing_entry_point"
	case ViolationBadSignature:
		return "bad_signature"
	case ViolationPanic:
		return "panic"
	case ViolationGoroutine:
		return "goroutine"
	case ViolationParseError:
		return "parse_error"
	case ViolationPolicy:
		return "policy_violation"
	default:
		return "unknown"
	}
}

// ViolationSeverity indicates how serious a violation is.
type ViolationSeverity int

const (
	SeverityWarning ViolationSeverity = iota
	SeverityBlocking
)

// NewSafetyChecker creates a checker with the embedded policy.
func NewSafetyChecker(cfg config.SandboxConfig) *SafetyChecker {
	checker := &SafetyChecker{
		cfg:    cfg,
		policy: geomSafetyPolicy,
	}
	checker.allowedPkgs = checker.buildAllowedPackages()
	return checker
}

// AllowedPackages returns the import allow-list, for prompts and errors.
func (sc *SafetyChecker) AllowedPackages() []string {
	out := make([]string, len(sc.allowedPkgs))
	copy(out, sc.allowedPkgs)
	return out
}

func (sc *SafetyChecker) buildAllowedPackages() []string {
	base := []string{
		"errors",
		"fmt",
		"geomapi",
		"math",
	}
	base = append(base, sc.cfg.ExtraImports...)

	seen := make(map[string]struct{}, len(base))
	for _, pkg := range base {
		seen[pkg] = struct{}{}
	}
	allowed := make([]string, 0, len(seen))
	for pkg := range seen {
		allowed = append(allowed, pkg)
	}
	sort.Strings(allowed)
	return allowed
}

// Check performs a static safety check on candidate source text.
func (sc *SafetyChecker) Check(code string) *SafetyReport {
	timer := logging.StartTimer(logging.CategorySandbox, "safety_check")
	defer timer.Stop()

	report := &SafetyReport{
		Safe:       true,
		Violations: []SafetyViolation{},
		Score:      1.0,
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "technique.go", code, parser.ParseComments)
	if err != nil {
		return sc.fail(report, ViolationParseError, "", fmt.Sprintf("failed to parse code: %v", err))
	}

	if v := checkEntryPoint(file); v != nil {
		return sc.fail(report, v.Type, v.Location, v.Description)
	}

	emitter := &astFactEmitter{fset: fset, fileName: "technique.go"}
	emitter.emitImports(file)
	ast.Walk(&astFactVisitor{emitter: emitter}, file)

	facts := emitter.facts
	index := buildFactIndex(facts)
	report.ImportsChecked = len(index.imports)
	report.CallsChecked = index.callCount

	for _, pkg := range sc.allowedPkgs {
		facts = append(facts, mangle.Fact{
			Predicate: "allowed_package",
			Args:      []interface{}{pkg},
		})
	}

	engine, err := sc.newEngine()
	if err != nil {
		return sc.fail(report, ViolationPolicy, "", fmt.Sprintf("failed to init safety engine: %v", err))
	}
	if err := engine.AddFacts(facts); err != nil {
		return sc.fail(report, ViolationPolicy, "", fmt.Sprintf("failed to add facts: %v", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	result, err := engine.Query(ctx, "?violation(V)")
	if err != nil {
		return sc.fail(report, ViolationPolicy, "", fmt.Sprintf("safety policy query failed: %v", err))
	}
	if len(result.Bindings) == 0 {
		return report
	}

	report.Safe = false
	report.Score = 0.0
	for _, binding := range result.Bindings {
		report.Violations = append(report.Violations, describeViolation(binding["V"], index))
	}
	logging.Get(logging.CategorySandbox).Warn("synthesized code rejected: %d violations", len(report.Violations))
	return report
}

func (sc *SafetyChecker) fail(report *SafetyReport, vType ViolationType, location, msg string) *SafetyReport {
	report.Safe = false
	report.Score = 0.0
	report.Violations = append(report.Violations, SafetyViolation{
		Type:        vType,
		Location:    location,
		Description: msg,
		Severity:    SeverityBlocking,
	})
	return report
}

func (sc *SafetyChecker) newEngine() (*mangle.Engine, error) {
	cfg := mangle.DefaultConfig()
	engine, err := mangle.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	if err := engine.LoadSchemaString(sc.policy); err != nil {
		return nil, err
	}
	return engine, nil
}

// checkEntryPoint verifies the fixed handler contract is present: one
// function named CreateCustomComponent taking two parameters and returning
// two values.
func checkEntryPoint(file *ast.File) *SafetyViolation {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Name.Name != EntryPointName || fn.Recv != nil {
			continue
		}
		params := 0
		if fn.Type.Params != nil {
			for _, field := range fn.Type.Params.List {
				n := len(field.Names)
				if n == 0 {
					n = 1
				}
				params += n
			}
		}
		results := 0
		if fn.Type.Results != nil {
			for _, field := range fn.Type.Results.List {
				n := len(field.Names)
				if n == 0 {
					n = 1
				}
				results += n
			}
		}
		if params != 2 || results != 2 {
			return &SafetyViolation{
				Type:        ViolationBadSignature,
				Location:    EntryPointName,
				Description: fmt.Sprintf("%s must take (builder, params) and return (handles, error); got %d params, %d results", EntryPointName, params, results),
				Severity:    SeverityBlocking,
			}
		}
		return nil
	}
	return &SafetyViolation{
		Type:        ViolationMissingEntryPoint,
		Description: fmt.Sprintf("entry point %s not found", EntryPointName),
		Severity:    SeverityBlocking,
	}
}

type factIndex struct {
	imports        map[string]struct{}
	panicFuncs     map[string]struct{}
	goroutineLines map[string]struct{}
	callCount      int
}

func buildFactIndex(facts []mangle.Fact) factIndex {
	idx := factIndex{
		imports:        make(map[string]struct{}),
		panicFuncs:     make(map[string]struct{}),
		goroutineLines: make(map[string]struct{}),
	}
	for _, fact := range facts {
		switch fact.Predicate {
		case "ast_import":
			if len(fact.Args) > 1 {
				if pkg, ok := fact.Args[1].(string); ok {
					idx.imports[pkg] = struct{}{}
				}
			}
		case "ast_call":
			idx.callCount++
			if len(fact.Args) > 1 {
				if callee, _ := fact.Args[1].(string); callee == "panic" {
					if fn, ok := fact.Args[0].(string); ok {
						idx.panicFuncs[fn] = struct{}{}
					}
				}
			}
		case "ast_goroutine_spawn":
			if len(fact.Args) > 1 {
				if line, ok := fact.Args[1].(string); ok {
					idx.goroutineLines[line] = struct{}{}
				}
			}
		}
	}
	return idx
}

func describeViolation(value interface{}, idx factIndex) SafetyViolation {
	if v, ok := value.(string); ok {
		if _, ok := idx.imports[v]; ok {
			return SafetyViolation{
				Type:        ViolationForbiddenImport,
				Description: fmt.Sprintf("import %q is not on the allowlist", v),
				Severity:    SeverityBlocking,
			}
		}
		if _, ok := idx.panicFuncs[v]; ok {
			return SafetyViolation{
				Type:        ViolationPanic,
				Location:    v,
				Description: "panic is not permitted in synthesized code; return an error instead",
				Severity:    SeverityBlocking,
			}
		}
		if _, ok := idx.goroutineLines[v]; ok {
			return SafetyViolation{
				Type:        ViolationGoroutine,
				Location:    fmt.Sprintf("line:%s", v),
				Description: "goroutines are not permitted in synthesized code",
				Severity:    SeverityBlocking,
			}
		}
		return SafetyViolation{
			Type:        ViolationPolicy,
			Description: fmt.Sprintf("policy violation: %v", v),
			Severity:    SeverityBlocking,
		}
	}
	return SafetyViolation{
		Type:        ViolationPolicy,
		Description: fmt.Sprintf("policy violation: %v", value),
		Severity:    SeverityBlocking,
	}
}

// astFactEmitter walks the AST and emits facts for the safety policy.
type astFactEmitter struct {
	fset       *token.FileSet
	fileName   string
	currentFcn string
	facts      []mangle.Fact
}

func (e *astFactEmitter) emitImports(file *ast.File) {
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		e.facts = append(e.facts, mangle.Fact{
			Predicate: "ast_import",
			Args:      []interface{}{e.fileName, importPath},
		})
	}
}

func (e *astFactEmitter) emitCall(call *ast.CallExpr) {
	callee := e.exprToString(call.Fun)
	e.facts = append(e.facts, mangle.Fact{
		Predicate: "ast_call",
		Args:      []interface{}{e.currentFcn, callee},
	})
}

func (e *astFactEmitter) emitGoroutine(stmt *ast.GoStmt) {
	line := fmt.Sprintf("%d", e.fset.Position(stmt.Go).Line)
	target := e.exprToString(stmt.Call.Fun)
	e.facts = append(e.facts, mangle.Fact{
		Predicate: "ast_goroutine_spawn",
		Args:      []interface{}{target, line},
	})
}

func (e *astFactEmitter) exprToString(expr ast.Expr) string {
	var buf bytes.Buffer
	_ = printer.Fprint(&buf, e.fset, expr)
	return buf.String()
}

type astFactVisitor struct {
	emitter *astFactEmitter
}

func (v *astFactVisitor) Visit(node ast.Node) ast.Visitor {
	if node == nil {
		return nil
	}
	switch n := node.(type) {
	case *ast.FuncDecl:
		prev := v.emitter.currentFcn
		v.emitter.currentFcn = n.Name.Name
		if n.Body != nil {
			ast.Walk(v, n.Body)
		}
		v.emitter.currentFcn = prev
		return nil
	case *ast.FuncLit:
		prev := v.emitter.currentFcn
		pos := v.emitter.fset.Position(n.Pos())
		v.emitter.currentFcn = fmt.Sprintf("func_literal_%d", pos.Line)
		if n.Body != nil {
			ast.Walk(v, n.Body)
		}
		v.emitter.currentFcn = prev
		return nil
	case *ast.CallExpr:
		v.emitter.emitCall(n)
	case *ast.GoStmt:
		v.emitter.emitGoroutine(n)
	}
	return v
}
