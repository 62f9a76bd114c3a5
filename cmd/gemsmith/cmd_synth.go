package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gemsmith/internal/llm"
	"gemsmith/internal/registry"
	"gemsmith/internal/synth"
)

var (
	synthParams []string
	synthSave   bool
)

var synthCmd = &cobra.Command{
	Use:   "synth <technique-name>",
	Short: "Dry-run technique synthesis with a full safety report",
	Long: `Invokes the LLM collaborator for a single technique name, runs the
candidate through the sandbox checker, and prints the verdict and source.
Nothing is executed. Use --save to add an accepted technique to the library.`,
	Args: cobra.ExactArgs(1),
	RunE: synthesizeTechnique,
}

func init() {
	synthCmd.Flags().StringSliceVar(&synthParams, "param", nil, "plan parameter as key=value (repeatable)")
	synthCmd.Flags().BoolVar(&synthSave, "save", false, "save accepted source to the technique library")
}

func synthesizeTechnique(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := args[0]

	params := make(map[string]any, len(synthParams))
	for _, kv := range synthParams {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --param %q, expected key=value", kv)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			params[key] = f
		} else {
			params[key] = value
		}
	}

	client, err := llm.NewFromConfig(ctx, cfg.LLM, cfg.LLMTimeout())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM collaborator unavailable (%v); result will be a fallback stub\n", err)
	}

	checker := synth.NewSafetyChecker(cfg.Sandbox)
	synthesizer := synth.NewSynthesizer(client, checker, nil, synth.Options{
		Attempts: cfg.Synthesis.Attempts,
		Timeout:  cfg.SynthesisTimeout(),
		Backoff:  cfg.SynthesisBackoff(),
	})

	result := synthesizer.Synthesize(ctx, synth.TechniqueRequest{
		Name:       name,
		Paradigm:   registry.InferParadigm(name),
		Parameters: params,
	})

	fmt.Printf("Technique: %s\n", name)
	fmt.Printf("Origin:    %s\n", result.Origin)
	if result.RejectionReason != "" {
		fmt.Printf("Note:      %s\n", result.RejectionReason)
	}

	report := checker.Check(result.SourceText)
	fmt.Printf("Safety:    safe=%v score=%.1f (%d imports, %d calls checked)\n",
		report.Safe, report.Score, report.ImportsChecked, report.CallsChecked)
	for _, v := range report.Violations {
		fmt.Printf("  violation [%s] %s\n", v.Type, v.Description)
	}

	fmt.Println("\n--- source ---")
	fmt.Println(result.SourceText)

	if synthSave && report.Safe {
		reg := registry.New()
		if err := reg.SaveTechnique(techniqueDir(), registry.Technique{Name: name, Source: result.SourceText}); err != nil {
			return fmt.Errorf("failed to save technique: %w", err)
		}
		fmt.Printf("Saved to %s\n", techniqueDir())
	}
	return nil
}
