package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"connlab/internal/experiment"
	"connlab/internal/runner"
)

var (
	trainPlanPath string
	trainLogDir   string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the plan's training jobs across the configured GPUs",
	Long: `Launches each training job from the plan as an external script, one job
per GPU at a time. Job output is captured to per-job log files; a failed job
does not stop its siblings.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		plan, err := experiment.LoadPlan(trainPlanPath)
		if err != nil {
			return err
		}
		if len(plan.Jobs) == 0 {
			return fmt.Errorf("plan has no training jobs")
		}

		pool, err := runner.NewPool(plan.GPUs, trainLogDir)
		if err != nil {
			return err
		}

		results, err := pool.Run(cmd.Context(), plan.Jobs)
		for _, r := range results {
			status := "ok"
			if r.Err != nil {
				status = "FAILED"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-30s gpu=%d %-8s %s\n", r.Name, r.GPU, status, r.Duration.Round(time.Second))
		}
		return err
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainPlanPath, "plan", "experiment_plan.yaml", "Experiment plan YAML")
	trainCmd.Flags().StringVar(&trainLogDir, "log-dir", "training_logs", "Directory for per-job log files")
	rootCmd.AddCommand(trainCmd)
}
