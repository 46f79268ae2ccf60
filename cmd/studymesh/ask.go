package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/studymesh"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		app, err := build(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		if cfg.Server.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Server.RequestTimeout)
			defer cancel()
		}

		resp, err := app.mesh.Ask(ctx, studymesh.Request{Question: strings.Join(args, " ")})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			fmt.Fprintf(out, "route: %s\nnodes: %s\n\n", resp.Route, strings.Join(resp.Nodes, " -> "))
		}
		fmt.Fprintln(out, resp.Answer)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolP("verbose", "v", false, "Print the route and visited nodes")
}
