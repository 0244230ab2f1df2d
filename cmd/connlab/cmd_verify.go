package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"connlab/internal/experiment"
)

var verifyPlanPath string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-check previously built datasets for leakage",
	Long: `Replays the plan's deterministic partitioning without writing anything,
then re-scans every generated training file against the derived held-out sets.
Exits non-zero if any file contains an id outside its allowed partition.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		plan, err := experiment.LoadPlan(verifyPlanPath)
		if err != nil {
			return err
		}

		b := experiment.NewBuilder(plan)
		if err := b.Load(); err != nil {
			return err
		}
		if err := b.VerifyAll(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "No leakage found under %s\n", plan.OutputDir)
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyPlanPath, "plan", "experiment_plan.yaml", "Experiment plan YAML")
	rootCmd.AddCommand(verifyCmd)
}
