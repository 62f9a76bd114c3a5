package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gemsmith/internal/config"
	"gemsmith/internal/logging"
)

var (
	// Global flags
	verbose     bool
	workspace   string
	flagAPIKey  string
	flagTimeout string

	// Loaded in PersistentPreRunE, shared by all commands.
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gemsmith",
	Short: "gemsmith - construction plan interpreter for parametric jewelry",
	Long: `gemsmith interprets LLM-generated construction plans for parametric
3D jewelry. It validates plan structure, expands operations by quality
preset, and executes them in order against two geometry backends: a
precision (NURBS-style) backend for manufacturing-grade components and an
artistic (mesh-style) backend for organic modifiers.

Operations the registry does not know are synthesized at runtime: an LLM
collaborator writes the handler, a static safety check gates it, and
accepted code runs only inside an embedded interpreter with a restricted
symbol table. Plans always finish with a usable artifact, even if every
operation fails.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}

		cfg, err = config.Load(workspace)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if flagAPIKey != "" {
			cfg.LLM.APIKey = flagAPIKey
		}
		if flagTimeout != "" {
			cfg.LLM.Timeout = flagTimeout
		}

		debug := cfg.Logging.DebugMode || verbose
		if err := logging.Initialize(workspace, debug, cfg.Logging.Level); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logging.Get(logging.CategoryBoot).Info("gemsmith %s starting in %s", cfg.Version, workspace)
		logger.Debug("configuration loaded",
			zap.String("version", cfg.Version),
			zap.String("workspace", workspace),
			zap.String("provider", cfg.LLM.Provider),
			zap.String("preset", cfg.Execution.QualityPreset))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "LLM API key (overrides config and environment)")
	rootCmd.PersistentFlags().StringVar(&flagTimeout, "timeout", "", "LLM request timeout, e.g. 90s (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(opsCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
