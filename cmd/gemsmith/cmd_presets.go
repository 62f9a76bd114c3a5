package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gemsmith/internal/optimizer"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Show the quality preset table used by the plan optimizer",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%-16s %-13s %-12s %s\n", "PRESET", "SUBDIVISIONS", "DETAIL", "RESOLUTION")
		for _, name := range optimizer.PresetNames() {
			p, _ := optimizer.LookupPreset(name)
			marker := ""
			if name == cfg.Execution.QualityPreset {
				marker = "  (default)"
			}
			fmt.Printf("%-16s %-13d %-12.1f %d%s\n", p.Name, p.SubdivisionLevels, p.DetailMultiplier, p.Resolution, marker)
		}
		return nil
	},
}
