package synth

import (
	"context"
	"fmt"
	"time"

	"gemsmith/internal/llm"
	"gemsmith/internal/logging"
)

// TechniqueCache stores accepted technique source keyed by operation name so
// a repeated unknown operation skips the LLM round trip.
type TechniqueCache interface {
	Lookup(name string) (source string, ok bool, err error)
	Save(name, source, origin string) error
}

// Options control the synthesis loop. Attempts is a policy cap on LLM round
// trips per operation, not a network retry count.
type Options struct {
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
}

// Synthesizer produces technique handlers for operations the registry does
// not know. Every candidate, cached or fresh, passes through the safety
// checker before it is accepted; when all attempts fail the synthesizer
// degrades to a deterministic fallback stub rather than failing the build.
type Synthesizer struct {
	client  llm.Client
	checker *SafetyChecker
	cache   TechniqueCache
	opts    Options
}

// NewSynthesizer creates a synthesizer. client and cache may be nil; with a
// nil client every request resolves to a fallback stub.
func NewSynthesizer(client llm.Client, checker *SafetyChecker, cache TechniqueCache, opts Options) *Synthesizer {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	return &Synthesizer{client: client, checker: checker, cache: cache, opts: opts}
}

// Synthesize resolves a technique for the requested operation. The returned
// result is always usable: Accepted is true for LLM, cache, and stub
// origins alike, and RejectionReason records why the LLM path was abandoned
// when the result is a stub.
func (s *Synthesizer) Synthesize(ctx context.Context, req TechniqueRequest) SynthesisResult {
	timer := logging.StartTimer(logging.CategorySynthesis, fmt.Sprintf("synthesize_%s", req.Name))
	defer timer.Stop()

	if s.cache != nil {
		if source, ok, err := s.cache.Lookup(req.Name); err != nil {
			logging.Get(logging.CategorySynthesis).Warn("cache lookup for %s failed: %v", req.Name, err)
		} else if ok {
			// Cached source is re-checked: the allowlist may have narrowed
			// since the technique was stored.
			if report := s.checker.Check(source); report.Safe {
				logging.Synthesis("technique %s served from cache", req.Name)
				return SynthesisResult{SourceText: source, Accepted: true, Origin: OriginCache}
			}
			logging.Get(logging.CategorySynthesis).Warn("cached technique %s no longer passes safety check; re-synthesizing", req.Name)
		}
	}

	if s.client == nil {
		logging.Synthesis("no LLM client configured; using fallback stub for %s", req.Name)
		return s.stub(req, "no LLM client configured")
	}

	system := buildSystemPrompt(s.checker.AllowedPackages())
	var lastCode, lastRejection string

	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		if attempt > 1 && s.opts.Backoff > 0 {
			select {
			case <-time.After(s.opts.Backoff):
			case <-ctx.Done():
				return s.stub(req, fmt.Sprintf("cancelled before attempt %d: %v", attempt, ctx.Err()))
			}
		}

		user := buildUserPrompt(req)
		if attempt > 1 {
			user = buildRetryPrompt(req, lastCode, lastRejection)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		response, err := s.client.CompleteWithSystem(attemptCtx, system, user)
		cancel()
		if err != nil {
			lastRejection = fmt.Sprintf("LLM request failed: %v", err)
			logging.Get(logging.CategorySynthesis).Warn("attempt %d/%d for %s: %s", attempt, s.opts.Attempts, req.Name, lastRejection)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		code := extractCodeBlock(response, "go")
		report := s.checker.Check(code)
		if report.Safe {
			logging.Synthesis("technique %s accepted on attempt %d (%d imports, %d calls checked)",
				req.Name, attempt, report.ImportsChecked, report.CallsChecked)
			s.persist(req.Name, code, OriginLLM)
			return SynthesisResult{SourceText: code, Accepted: true, Origin: OriginLLM}
		}

		lastCode = code
		lastRejection = report.Summary()
		logging.Get(logging.CategorySynthesis).Warn("attempt %d/%d for %s rejected: %s",
			attempt, s.opts.Attempts, req.Name, lastRejection)
	}

	if lastRejection == "" {
		lastRejection = "no acceptable candidate produced"
	}
	return s.stub(req, lastRejection)
}

func (s *Synthesizer) stub(req TechniqueRequest, reason string) SynthesisResult {
	source := FallbackStub(req)
	s.persist(req.Name, source, OriginFallbackStub)
	return SynthesisResult{
		SourceText:      source,
		Accepted:        true,
		RejectionReason: reason,
		Origin:          OriginFallbackStub,
	}
}

func (s *Synthesizer) persist(name, source string, origin Origin) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(name, source, origin.String()); err != nil {
		logging.Get(logging.CategorySynthesis).Warn("failed to cache technique %s: %v", name, err)
	}
}
