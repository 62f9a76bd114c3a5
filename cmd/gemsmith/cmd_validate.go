package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gemsmith/internal/logging"
	"gemsmith/internal/plan"
	"gemsmith/internal/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan.json>",
	Short: "Check a construction plan against the schema without executing it",
	Args:  cobra.ExactArgs(1),
	RunE:  validatePlan,
}

func validatePlan(cmd *cobra.Command, args []string) error {
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
		logger.Warn("plan rejected", zap.String("plan", args[0]), zap.Error(err))
		var schemaErr *plan.SchemaError
		if errors.As(err, &schemaErr) {
			return fmt.Errorf("plan rejected (%s): %w", schemaErr.Kind, err)
		}
		return fmt.Errorf("plan rejected: %w", err)
	}

	unknown := 0
	for _, op := range validated.Operations {
		if !reg.Exists(op.Name) {
			unknown++
			fmt.Printf("  note: %s is not in the registry; it would be synthesized\n", op.Name)
		}
	}

	logger.Info("plan validated",
		zap.String("plan", args[0]),
		zap.Int("operations", len(validated.Operations)),
		zap.Int("unknown", unknown))
	fmt.Printf("Plan is valid: %d operations (%d unknown), material %s/%s\n",
		len(validated.Operations), unknown,
		validated.Materials.PrimaryMaterial, validated.Materials.Finish)
	return nil
}
