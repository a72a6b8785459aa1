package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randompersona1/ussplitter-server/internal/engine"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the separation models the engine accepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			catalog := engine.DefaultCatalog(cfg.Engine.ExtraModels...)
			rows := make([][]string, 0, len(catalog.Single)+len(catalog.Bag))
			for _, name := range catalog.Names() {
				note := ""
				if name == cfg.Engine.DefaultModel {
					note = "default"
				}
				rows = append(rows, []string{name, note})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Model", ""}, rows))
			return nil
		},
	}
}
