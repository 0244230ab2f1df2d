package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"connlab/internal/puzzle"
	"connlab/internal/reasonfmt"
)

var (
	formatPuzzlesPath string
	formatInPath      string
	formatOutPath     string
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Wrap raw reasoning traces into the <think> training format",
	Long: `Rewrites each assistant message as reasoning wrapped in <think></think>
tags followed by the authoritative answer taken from the source puzzles.
Records whose puzzle id has no known answer pass through unchanged.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		puzzles, err := puzzle.ReadPuzzles(formatPuzzlesPath)
		if err != nil {
			return err
		}
		records, err := puzzle.ReadJSONL(formatInPath)
		if err != nil {
			return err
		}

		out, formatted := reasonfmt.WrapThink(records, reasonfmt.AnswerKey(puzzles))
		if err := puzzle.WriteJSONL(formatOutPath, out); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Formatted %d of %d records into %s\n",
			formatted, len(records), formatOutPath)
		return nil
	},
}

func init() {
	formatCmd.Flags().StringVar(&formatPuzzlesPath, "puzzles", "puzzles.json", "Source puzzles with answers")
	formatCmd.Flags().StringVar(&formatInPath, "in", "", "Raw reasoning dataset (JSONL)")
	formatCmd.Flags().StringVar(&formatOutPath, "out", "", "Formatted output dataset (JSONL)")
	_ = formatCmd.MarkFlagRequired("in")
	_ = formatCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(formatCmd)
}
