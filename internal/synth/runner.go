package synth

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"path"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"gemsmith/internal/geomapi"
	"gemsmith/internal/logging"
)

// Runner executes accepted technique code inside an embedded yaegi
// interpreter. The interpreter sees only the allow-listed standard-library
// packages and the geometry builder API; os, net and the rest of the stdlib
// are never loaded, so a handler that slipped past the static check still
// has no filesystem or network symbols to call. Every run gets a fresh
// interpreter so techniques cannot observe each other.
type Runner struct {
	execTimeout time.Duration
	allowed     []string
}

// NewRunner creates a runner with the given per-execution timeout. The
// allow-list mirrors the safety checker's; when empty, only errors, fmt and
// math are loadable.
func NewRunner(execTimeout time.Duration, allowedPackages ...string) *Runner {
	if execTimeout <= 0 {
		execTimeout = 10 * time.Second
	}
	if len(allowedPackages) == 0 {
		allowedPackages = []string{"errors", "fmt", "math"}
	}
	return &Runner{execTimeout: execTimeout, allowed: allowedPackages}
}

// symbols selects the allow-listed subset of the stdlib symbol table.
// yaegi keys packages as "<import path>/<package name>".
func (r *Runner) symbols() interp.Exports {
	out := make(interp.Exports, len(r.allowed))
	for _, pkg := range r.allowed {
		key := pkg + "/" + path.Base(pkg)
		if syms, ok := stdlib.Symbols[key]; ok {
			out[key] = syms
		}
	}
	return out
}

// HandlerFunc is the shape every synthesized entry point must satisfy.
type HandlerFunc = func(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error)

// Run evaluates source in a fresh interpreter and invokes the entry point
// with the supplied builder and parameters. The builder must not be shared
// with another running handler.
func (r *Runner) Run(ctx context.Context, source string, b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	timer := logging.StartTimer(logging.CategorySandbox, "technique_execution")
	defer timer.Stop()

	pkgName, err := packageName(source)
	if err != nil {
		return nil, fmt.Errorf("technique source is not parseable: %w", err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(r.symbols()); err != nil {
		return nil, fmt.Errorf("failed to load allowed symbols: %w", err)
	}
	if err := i.Use(geomapi.Symbols()); err != nil {
		return nil, fmt.Errorf("failed to load geometry symbols: %w", err)
	}

	if _, err := i.Eval(source); err != nil {
		return nil, fmt.Errorf("technique evaluation failed: %w", err)
	}

	entry, err := i.Eval(pkgName + "." + EntryPointName)
	if err != nil {
		return nil, fmt.Errorf("entry point %s not found: %w", EntryPointName, err)
	}

	handler, ok := entry.Interface().(HandlerFunc)
	if !ok {
		return nil, fmt.Errorf("%s has incorrect signature (expected func(*geomapi.Builder, map[string]float64) ([]geomapi.Handle, error))", EntryPointName)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.execTimeout)
	defer cancel()

	type outcome struct {
		handles []geomapi.Handle
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("technique panicked: %v", rec)}
			}
		}()
		handles, err := handler(b, params)
		done <- outcome{handles: handles, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("technique returned error: %w", out.err)
		}
		return out.handles, nil
	case <-runCtx.Done():
		return nil, fmt.Errorf("technique execution timed out after %v: %w", r.execTimeout, runCtx.Err())
	}
}

func packageName(source string) (string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "technique.go", source, parser.PackageClauseOnly)
	if err != nil {
		return "", err
	}
	return file.Name.Name, nil
}
