package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"connlab/internal/eval"
	"connlab/internal/puzzle"
	"connlab/internal/report"
)

var (
	evalGlob        string
	evalCSVPath     string
	evalResultsPath string
	evalMarkdown    bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score prediction files and summarize the results",
	Long: `Evaluates every prediction file matching the glob. Each puzzle scores
0.25 per correctly recovered group; the per-file summaries go to a CSV and,
optionally, the full per-puzzle results to a JSON file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		paths, err := filepath.Glob(evalGlob)
		if err != nil {
			return fmt.Errorf("bad glob %q: %w", evalGlob, err)
		}
		if len(paths) == 0 {
			return fmt.Errorf("no prediction files match %q", evalGlob)
		}
		sort.Strings(paths)

		var summaries []eval.Summary
		allResults := make(map[string][]eval.Result)
		for _, path := range paths {
			results, summary, err := eval.EvaluateFile(path)
			if err != nil {
				return err
			}
			summaries = append(summaries, summary)
			allResults[summary.File] = results
		}

		if err := eval.WriteCSV(evalCSVPath, summaries); err != nil {
			return err
		}
		if evalResultsPath != "" {
			if err := puzzle.WriteJSON(evalResultsPath, allResults); err != nil {
				return err
			}
		}

		mode := report.ASCII
		if evalMarkdown {
			mode = report.Markdown
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.EvalSummary(summaries, mode))
		fmt.Fprintf(cmd.OutOrStdout(), "\nSummary written to %s\n", evalCSVPath)
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVar(&evalGlob, "predictions", "predictions/*.json", "Glob of prediction files")
	evalCmd.Flags().StringVar(&evalCSVPath, "csv", "evaluation_summary.csv", "Summary CSV output path")
	evalCmd.Flags().StringVar(&evalResultsPath, "results", "", "Optional per-puzzle results JSON output path")
	evalCmd.Flags().BoolVar(&evalMarkdown, "markdown", false, "Render the summary table as Markdown")
	rootCmd.AddCommand(evalCmd)
}
