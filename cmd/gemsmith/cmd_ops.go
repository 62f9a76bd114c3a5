package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gemsmith/internal/logging"
	"gemsmith/internal/registry"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the operation registry, built-ins and learned techniques",
	RunE:  listOps,
}

func listOps(cmd *cobra.Command, args []string) error {
	reg := registry.New()
	if err := reg.LoadTechniques(techniqueDir()); err != nil {
		logging.Get(logging.CategoryBoot).Warn("technique library load failed: %v", err)
	}

	fmt.Printf("Registry version %s\n\n", registry.Version)
	fmt.Println("Built-in operations:")
	for _, name := range reg.Names() {
		info, ok := reg.Describe(name)
		if !ok {
			continue
		}
		fmt.Printf("  %-22s %-10s %-10s %s\n", name, info.Paradigm, info.Category, info.Description)
	}

	if reg.TechniqueCount() > 0 {
		fmt.Printf("\nLearned techniques (%d):\n", reg.TechniqueCount())
		for _, name := range reg.Names() {
			if reg.IsBuiltin(name) {
				continue
			}
			fmt.Printf("  %-22s %s\n", name, registry.InferParadigm(name))
		}
	}
	return nil
}
