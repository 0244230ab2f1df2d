package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"connlab/internal/puzzle"
	"connlab/internal/split"
	"connlab/internal/synth"
)

var (
	generatePatternsPath string
	generateOutPath      string
	generateCount        int
	generateSeed         int64
	generateStartDate    string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic word-grouping puzzles from category patterns",
	RunE: func(cmd *cobra.Command, _ []string) error {
		patterns, err := synth.LoadPatterns(generatePatternsPath)
		if err != nil {
			return err
		}
		gen, err := synth.NewGenerator(patterns, split.NewRand(generateSeed))
		if err != nil {
			return err
		}

		start, err := time.Parse("2006-01-02", generateStartDate)
		if err != nil {
			return fmt.Errorf("parse start date %q: %w", generateStartDate, err)
		}

		puzzles, err := gen.GenerateSet(generateCount, start)
		if err != nil {
			return err
		}
		if err := puzzle.WriteJSON(generateOutPath, puzzles); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d puzzles to %s\n", len(puzzles), generateOutPath)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generatePatternsPath, "patterns", "patterns.json", "Category pattern file")
	generateCmd.Flags().StringVar(&generateOutPath, "out", "synthetic_puzzles.json", "Output puzzle file")
	generateCmd.Flags().IntVar(&generateCount, "count", 200, "Number of puzzles to generate")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 42, "Random seed")
	generateCmd.Flags().StringVar(&generateStartDate, "start-date", "2024-01-01", "Date of the first puzzle (YYYY-MM-DD)")
	rootCmd.AddCommand(generateCmd)
}
