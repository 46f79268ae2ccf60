package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "studymesh",
	Short: "studymesh answers textbook questions with a routed multi-agent graph",
	Long: `studymesh classifies each question with a supervisor model and hands it to a
specialist (QA, tutor, reasoning, planner or web search). Textbook answers are
extended with a short study plan.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("provider", "", "Override model.provider (openai, anthropic, gemini, mock)")
	rootCmd.PersistentFlags().String("corpus", "", "Override retrieval.corpus (directory of .txt/.md files)")
}
