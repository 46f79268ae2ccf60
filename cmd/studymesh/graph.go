package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the orchestration graph as a Mermaid diagram",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// The diagram only depends on the wiring, so no provider is contacted.
		cfg.Model.Provider = "mock"
		cfg.Retrieval.Backend = "memory"
		cfg.Retrieval.Corpus = ""

		app, err := build(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		fmt.Fprint(cmd.OutOrStdout(), app.mesh.Mermaid())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
