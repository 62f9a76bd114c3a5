package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gemsmith/internal/backend"
	"gemsmith/internal/llm"
	"gemsmith/internal/logging"
	"gemsmith/internal/optimizer"
	"gemsmith/internal/plan"
	"gemsmith/internal/registry"
	"gemsmith/internal/sequencer"
	"gemsmith/internal/store"
	"gemsmith/internal/synth"
)

var (
	runPreset  string
	runNoSynth bool
)

var runCmd = &cobra.Command{
	Use:   "run <plan.json>",
	Short: "Validate, optimize and execute a construction plan",
	Long: `Runs the full pipeline on a plan file: schema validation, quality-preset
expansion, then ordered execution against the geometry backends. Progress
events stream to stdout; the run and its outcome log are persisted.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	runCmd.Flags().StringVarP(&runPreset, "preset", "p", "", "quality preset (preview|standard|professional|hyper_realistic)")
	runCmd.Flags().BoolVar(&runNoSynth, "no-synth", false, "skip the LLM collaborator; unknown operations use fallback stubs")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read plan: %w", err)
	}

	reg := registry.New()
	if err := reg.LoadTechniques(techniqueDir()); err != nil {
		logging.Get(logging.CategoryBoot).Warn("technique library load failed: %v", err)
	}

	validated, err := plan.Parse(data, reg.Exists)
	if err != nil {
		return fmt.Errorf("[%s] %w", sequencer.Categorize(err), err)
	}

	preset := runPreset
	if preset == "" {
		preset = cfg.Execution.QualityPreset
	}
	expanded, err := optimizer.Expand(validated, preset)
	if err != nil {
		return err
	}
	logger.Info("plan accepted",
		zap.String("plan", args[0]),
		zap.String("preset", preset),
		zap.Int("operations", len(validated.Operations)),
		zap.Int("expanded_operations", len(expanded.Operations)))
	fmt.Printf("Plan accepted: %d operations (expanded from %d, preset %s)\n",
		len(expanded.Operations), len(validated.Operations), preset)

	db, err := store.OpenPath(filepath.Join(workspace, cfg.Store.DatabasePath))
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer db.Close()

	seq := buildSequencer(ctx, reg, db)

	// Techniques accepted mid-run (gemsmith synth --save in another terminal)
	// become visible without a restart.
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		if err := reg.Watch(watchCtx, techniqueDir()); err != nil && watchCtx.Err() == nil {
			logging.Get(logging.CategoryBoot).Warn("technique library watcher stopped: %v", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	var result *sequencer.Result

	g.Go(func() error {
		for ev := range seq.Events() {
			printEvent(ev)
		}
		return nil
	})
	g.Go(func() error {
		var execErr error
		result, execErr = seq.Execute(gctx, expanded)
		return execErr
	})

	if err := g.Wait(); err != nil {
		logger.Error("plan execution failed",
			zap.String("category", string(sequencer.Categorize(err))),
			zap.Error(err))
		return fmt.Errorf("[%s] %w", sequencer.Categorize(err), err)
	}
	logger.Info("plan execution finished",
		zap.String("state", string(result.State)),
		zap.Int("outcomes", len(result.OutcomeLog)),
		zap.Bool("material_applied", result.MaterialApplied),
		zap.Bool("cancelled", result.Cancelled))

	runID, err := db.SaveRun(expanded.Reasoning, preset, result)
	if err != nil {
		logger.Warn("failed to persist run", zap.Error(err))
		logging.Get(logging.CategoryStore).Warn("failed to persist run: %v", err)
	} else {
		logger.Info("run saved", zap.String("run_id", runID))
		fmt.Printf("Run saved: %s\n", runID)
	}

	printSummary(result)
	return nil
}

// buildSequencer wires the execution stack from config. A missing or failing
// LLM client is not fatal: synthesis degrades to deterministic stubs.
func buildSequencer(ctx context.Context, reg *registry.Registry, db *store.Store) *sequencer.Sequencer {
	var client llm.Client
	if !runNoSynth {
		var err error
		client, err = llm.NewFromConfig(ctx, cfg.LLM, cfg.LLMTimeout())
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: LLM collaborator unavailable (%v); unknown operations will use stubs\n", err)
		}
	}

	checker := synth.NewSafetyChecker(cfg.Sandbox)
	var cache synth.TechniqueCache
	if cfg.Synthesis.CacheEnabled {
		cache = db
	}
	synthesizer := synth.NewSynthesizer(client, checker, cache, synth.Options{
		Attempts: cfg.Synthesis.Attempts,
		Timeout:  cfg.SynthesisTimeout(),
		Backoff:  cfg.SynthesisBackoff(),
	})

	return sequencer.New(sequencer.Config{
		Document:     backend.NewDocument(),
		Registry:     reg,
		Synthesizer:  synthesizer,
		Runner:       synth.NewRunner(cfg.SandboxExecTimeout(), checker.AllowedPackages()...),
		Checker:      checker,
		ResultMarker: cfg.Execution.ResultMarker,
		FallbackSeed: cfg.Execution.FallbackSeed,
		EventBuffer:  cfg.Execution.EventBuffer,
	})
}

func techniqueDir() string {
	return filepath.Join(workspace, cfg.Synthesis.TechniqueDir)
}

func printEvent(ev sequencer.Event) {
	switch ev.Type {
	case sequencer.EventRunStarted:
		fmt.Printf("▶ run started (%s)\n", ev.Message)
	case sequencer.EventOperationStart:
		logger.Debug("operation starting",
			zap.Int("index", ev.OperationIndex),
			zap.String("operation", ev.OperationName))
		fmt.Printf("  [%d] %s...\n", ev.OperationIndex, ev.OperationName)
	case sequencer.EventSynthesisStart:
		logger.Info("synthesizing technique",
			zap.Int("index", ev.OperationIndex),
			zap.String("operation", ev.OperationName))
		fmt.Printf("  [%d] %s unknown; synthesizing technique\n", ev.OperationIndex, ev.OperationName)
	case sequencer.EventSynthesisDone:
		logger.Info("synthesis resolved",
			zap.String("operation", ev.OperationName),
			zap.String("result", ev.Message))
		fmt.Printf("  [%d] synthesis: %s\n", ev.OperationIndex, ev.Message)
	case sequencer.EventOperationDone:
		if ev.Outcome != nil {
			mark := "✓"
			if ev.Outcome.Status == sequencer.StatusFailed {
				mark = "✗"
				logger.Warn("operation failed",
					zap.Int("index", ev.OperationIndex),
					zap.String("operation", ev.OperationName),
					zap.String("error", ev.Outcome.Error))
			}
			fmt.Printf("  [%d] %s %s (%s, %v)\n", ev.OperationIndex, mark, ev.OperationName, ev.Outcome.Status, ev.Outcome.Duration.Round(time.Millisecond))
		}
	case sequencer.EventFallbackUsed:
		logger.Warn("fallback artifact engaged", zap.String("artifact", ev.Message))
		fmt.Printf("  no geometry produced; fallback artifact %q registered\n", ev.Message)
	case sequencer.EventRunFinished:
		fmt.Printf("▶ run finished: %s\n", ev.Message)
	}
}

func printSummary(result *sequencer.Result) {
	success, stubbed, failed := 0, 0, 0
	for _, o := range result.OutcomeLog {
		switch o.Status {
		case sequencer.StatusSuccess:
			success++
		case sequencer.StatusSkippedUnknownHandled:
			stubbed++
		case sequencer.StatusFailed:
			failed++
		}
	}

	fmt.Println()
	fmt.Printf("State:            %s\n", result.State)
	if result.Artifact != nil {
		fmt.Printf("Artifact:         %s (%s backend)\n", result.Artifact.Name, result.Artifact.Backend)
	}
	fmt.Printf("Operations:       %d success, %d stubbed, %d failed\n", success, stubbed, failed)
	fmt.Printf("Material applied: %v\n", result.MaterialApplied)
	if result.Cancelled {
		fmt.Println("Note: run was cancelled; outcomes cover the operations attempted before cancellation")
	}
}
