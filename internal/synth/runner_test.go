package synth

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"gemsmith/internal/geomapi"
)

func TestRunnerExecutesTechnique(t *testing.T) {
	r := NewRunner(5 * time.Second)
	b := geomapi.NewBuilder()

	handles, err := r.Run(context.Background(), safeTechnique, b, map[string]float64{
		"radius_mm": 2.0,
		"height_mm": 3.0,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(handles) != 1 {
		t.Fatalf("expected 1 handle, got %d", len(handles))
	}
	if b.Count() != 1 {
		t.Errorf("expected 1 shape in builder, got %d", b.Count())
	}

	shape := b.Shapes()[0]
	if shape.Kind != geomapi.KindCylinder {
		t.Errorf("expected cylinder, got %s", shape.Kind)
	}
	if shape.Params["radius_mm"] != 2.0 {
		t.Errorf("radius parameter lost: %+v", shape.Params)
	}
}

func TestRunnerPropagatesHandlerError(t *testing.T) {
	source := `package technique

import (
	"errors"
	"geomapi"
)

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	return nil, errors.New("radius out of range")
}
`
	r := NewRunner(5 * time.Second)
	_, err := r.Run(context.Background(), source, geomapi.NewBuilder(), nil)
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if !strings.Contains(err.Error(), "radius out of range") {
		t.Errorf("handler error lost: %v", err)
	}
}

func TestRunnerRejectsWrongSignature(t *testing.T) {
	source := `package technique

func CreateCustomComponent(radius float64) float64 {
	return radius
}
`
	r := NewRunner(5 * time.Second)
	_, err := r.Run(context.Background(), source, geomapi.NewBuilder(), nil)
	if err == nil {
		t.Fatal("expected signature mismatch error")
	}
	if !strings.Contains(err.Error(), "signature") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunnerContainsPanics(t *testing.T) {
	source := `package technique

import "geomapi"

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	var empty []geomapi.Handle
	return []geomapi.Handle{empty[3]}, nil
}
`
	r := NewRunner(5 * time.Second)
	_, err := r.Run(context.Background(), source, geomapi.NewBuilder(), nil)
	if err == nil {
		t.Fatal("expected contained panic to surface as error")
	}
	if !strings.Contains(err.Error(), "panic") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunnerSymbolTableExcludesOS(t *testing.T) {
	source := `package technique

import (
	"os"

	"geomapi"
)

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	f, err := os.Create("escaped.txt")
	if err != nil {
		return nil, err
	}
	f.Close()
	return nil, nil
}
`
	r := NewRunner(5 * time.Second)
	_, err := r.Run(context.Background(), source, geomapi.NewBuilder(), nil)
	if err == nil {
		t.Fatal("os must not be loadable inside the interpreter")
	}
	if _, statErr := os.Stat("escaped.txt"); statErr == nil {
		os.Remove("escaped.txt")
		t.Fatal("handler escaped the interpreter and touched the filesystem")
	}
}

func TestRunnerSymbolTableFollowsAllowList(t *testing.T) {
	source := `package technique

import (
	"math"

	"geomapi"
)

func CreateCustomComponent(b *geomapi.Builder, params map[string]float64) ([]geomapi.Handle, error) {
	h := b.AddCylinder(math.Sqrt(4.0), 3.0)
	return []geomapi.Handle{h}, nil
}
`
	r := NewRunner(5*time.Second, "errors", "fmt", "math")
	handles, err := r.Run(context.Background(), source, geomapi.NewBuilder(), nil)
	if err != nil {
		t.Fatalf("allow-listed math must be loadable: %v", err)
	}
	if len(handles) != 1 {
		t.Fatalf("expected 1 handle, got %d", len(handles))
	}

	// The same source fails when math is withheld from the allow-list.
	narrow := NewRunner(5*time.Second, "errors")
	if _, err := narrow.Run(context.Background(), source, geomapi.NewBuilder(), nil); err == nil {
		t.Fatal("math must not resolve outside the allow-list")
	}
}

func TestRunnerRejectsUnparseableSource(t *testing.T) {
	r := NewRunner(time.Second)
	_, err := r.Run(context.Background(), "not go at all", geomapi.NewBuilder(), nil)
	if err == nil {
		t.Fatal("expected parse error")
	}
}
