package sequencer

import (
	"context"
	"errors"
	"net"
	"strings"

	"gemsmith/internal/plan"
)

// FinalizationError marks a failure in the mandatory run-closing steps
// (fallback provisioning, result marker, material application). Unlike
// per-operation errors these fail the whole run.
type FinalizationError struct {
	Step  string
	Cause error
}

func (e *FinalizationError) Error() string {
	return "finalization failed at " + e.Step + ": " + e.Cause.Error()
}

func (e *FinalizationError) Unwrap() error {
	return e.Cause
}

// ErrorCategory is the user-facing classification attached to a failed run.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryNetwork    ErrorCategory = "network"
	CategoryTimeout    ErrorCategory = "timeout"
	CategoryFormat     ErrorCategory = "format"
	CategoryUnknown    ErrorCategory = "unknown"
)

// Categorize maps an execution error onto its user-facing category.
func Categorize(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	var schemaErr *plan.SchemaError
	if errors.As(err, &schemaErr) {
		return CategoryValidation
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout"):
		return CategoryTimeout
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network"):
		return CategoryNetwork
	case strings.Contains(msg, "json") || strings.Contains(msg, "unmarshal") || strings.Contains(msg, "parse"):
		return CategoryFormat
	default:
		return CategoryUnknown
	}
}
