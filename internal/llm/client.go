// Package llm provides the text-completion clients the technique synthesizer
// calls. The interpreter core never generates plans itself; it only uses
// this narrower contract for synthesis.
package llm

import "context"

// Client is the minimal text-completion interface the synthesizer depends on.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
