// Package runner launches training jobs from an experiment plan,
// fanning them out over the available GPUs. Each job is an external
// training script invocation; the runner owns scheduling, GPU
// assignment, and log capture, not the training itself.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"connlab/internal/experiment"
	"connlab/internal/logging"
)

// JobResult records the outcome of one training job.
type JobResult struct {
	Name     string
	GPU      int
	Duration time.Duration
	LogPath  string
	Err      error
}

// Pool runs jobs with at most one job per GPU at a time.
type Pool struct {
	GPUs   []int
	LogDir string
	Python string
}

// NewPool builds a pool over the given GPU ids. Logs land in logDir,
// one file per job.
func NewPool(gpus []int, logDir string) (*Pool, error) {
	if len(gpus) == 0 {
		return nil, fmt.Errorf("runner: no GPUs configured")
	}
	return &Pool{GPUs: gpus, LogDir: logDir, Python: "python"}, nil
}

// Run executes all jobs, bounded by the number of GPUs. A job failure
// does not cancel its siblings; every result is reported. Context
// cancellation stops in-flight jobs and skips pending ones.
func (p *Pool) Run(ctx context.Context, jobs []experiment.JobSpec) ([]JobResult, error) {
	logger := logging.New("runner")
	logger.Info("starting training jobs", "jobs", len(jobs), "gpus", len(p.GPUs))

	if err := os.MkdirAll(p.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("runner: create log dir: %w", err)
	}

	// GPU ids circulate through this channel; holding one is the
	// right to run on that device.
	gpuPool := make(chan int, len(p.GPUs))
	for _, id := range p.GPUs {
		gpuPool <- id
	}

	results := make([]JobResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(p.GPUs))
	for i, job := range jobs {
		g.Go(func() error {
			gpu, err := acquireGPU(gctx, gpuPool)
			if err != nil {
				results[i] = JobResult{Name: job.Name, Err: err}
				return nil
			}
			defer func() { gpuPool <- gpu }()

			results[i] = p.runJob(gctx, job, gpu)
			return nil
		})
	}
	_ = g.Wait() // errors captured in JobResult.Err

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Error("job failed", "job", r.Name, "gpu", r.GPU, "error", r.Err)
		} else {
			logger.Info("job finished", "job", r.Name, "gpu", r.GPU, "duration", r.Duration)
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("runner: %d of %d jobs failed", failed, len(jobs))
	}
	return results, nil
}

func (p *Pool) runJob(ctx context.Context, job experiment.JobSpec, gpu int) JobResult {
	logger := logging.New("runner")
	start := time.Now()

	logPath := filepath.Join(p.LogDir, job.Name+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return JobResult{Name: job.Name, GPU: gpu, Err: fmt.Errorf("runner: create log %q: %w", logPath, err)}
	}
	defer logFile.Close()

	args := []string{job.Script,
		"--train-file", job.TrainFile,
		"--output-dir", job.OutputDir,
	}
	if job.ValidationFile != "" {
		args = append(args, "--validation-file", job.ValidationFile)
	}
	if job.MaxSteps > 0 {
		args = append(args, "--max-steps", strconv.Itoa(job.MaxSteps))
	}

	cmd := exec.CommandContext(ctx, p.Python, args...)
	cmd.Env = append(os.Environ(), "CUDA_VISIBLE_DEVICES="+strconv.Itoa(gpu))
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	logger.Info("launching job", "job", job.Name, "gpu", gpu, "script", job.Script, "log", logPath)
	err = cmd.Run()

	result := JobResult{
		Name:     job.Name,
		GPU:      gpu,
		Duration: time.Since(start),
		LogPath:  logPath,
	}
	if err != nil {
		result.Err = fmt.Errorf("runner: job %s: %w", job.Name, err)
	}
	return result
}

// acquireGPU takes a GPU id from the pool, respecting context cancellation.
func acquireGPU(ctx context.Context, pool chan int) (int, error) {
	select {
	case id := <-pool:
		return id, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
