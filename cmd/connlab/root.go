package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"connlab/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "connlab",
	Short: "Leakage-safe dataset preparation for word-grouping fine-tuning",
	Long: "Connlab builds train/validation/test splits and experiment datasets\n" +
		"for fine-tuning language models on word-grouping puzzles, with active\n" +
		"verification that no held-out puzzle leaks into a training file.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logging.Init(level, logFormat)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
