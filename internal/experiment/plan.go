// Package experiment assembles per-experiment training datasets from
// the base partitions, following a YAML plan. Three experiment families
// are built: data-augmentation ablation, format impact, and warmup
// curriculum. Every derived file is filtered through the Train
// partition and re-verified for leakage before the build completes.
package experiment

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"connlab/internal/split"
)

// SourceFiles names the formatted input files of one puzzle source.
// Unstructured is optional; only the NYT source carries it.
type SourceFiles struct {
	StructuredTrain string `yaml:"structured_train"`
	StructuredTest  string `yaml:"structured_test"`
	Unstructured    string `yaml:"unstructured,omitempty"`
}

// LoRAConfig mirrors the adapter hyperparameters handed to the external
// fine-tuning collaborator.
type LoRAConfig struct {
	R       int     `yaml:"r"`
	Alpha   int     `yaml:"alpha"`
	Dropout float64 `yaml:"dropout"`
}

// TrainingConfig holds the shared fine-tuning hyperparameters recorded
// in each job spec. The training loop itself is external; these values
// only flow into the dispatched process arguments.
type TrainingConfig struct {
	Model        string     `yaml:"model"`
	MaxSeqLength int        `yaml:"max_seq_length"`
	LoRA         LoRAConfig `yaml:"lora"`
	LearningRate float64    `yaml:"learning_rate"`
	BatchSize    int        `yaml:"batch_size"`
	GradAccum    int        `yaml:"grad_accum"`
	WarmupSteps  int        `yaml:"warmup_steps"`
	Epochs       int        `yaml:"epochs"`
}

// JobSpec describes one external training or prediction process.
type JobSpec struct {
	Name           string `yaml:"name"`
	Script         string `yaml:"script"`
	TrainFile      string `yaml:"train_file"`
	ValidationFile string `yaml:"validation_file"`
	OutputDir      string `yaml:"output_dir"`
	MaxSteps       int    `yaml:"max_steps,omitempty"`
}

// Plan is the full preparation configuration loaded from YAML.
type Plan struct {
	Seed               int64   `yaml:"seed"`
	ValidationFraction float64 `yaml:"validation_fraction"`
	FormatSampleSize   int     `yaml:"format_sample_size"`
	OutputDir          string  `yaml:"output_dir"`

	NYT          SourceFiles `yaml:"nyt"`
	Synthetic    SourceFiles `yaml:"synthetic"`
	PreconnTrain string      `yaml:"preconn_train"`

	Training TrainingConfig `yaml:"training"`
	GPUs     []int          `yaml:"gpus,omitempty"`
	Jobs     []JobSpec      `yaml:"jobs,omitempty"`
}

// LoadPlan reads and validates a plan file. Defaults match the original
// study: seed 42, 10% validation, 500-id format sample, output under data/.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("experiment: read plan %q: %w", path, err)
	}
	return ParsePlan(data)
}

// ParsePlan parses plan YAML bytes and applies defaults.
func ParsePlan(data []byte) (*Plan, error) {
	p := &Plan{
		Seed:               42,
		ValidationFraction: 0.10,
		FormatSampleSize:   500,
		OutputDir:          "data",
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("experiment: parse plan: %w", err)
	}
	if p.ValidationFraction <= 0 || p.ValidationFraction > 1 {
		return nil, fmt.Errorf("%w: validation fraction %v outside (0,1]",
			split.ErrConfiguration, p.ValidationFraction)
	}
	if p.FormatSampleSize < 2 {
		return nil, fmt.Errorf("%w: format sample size %d below 2",
			split.ErrConfiguration, p.FormatSampleSize)
	}
	return p, nil
}

// RequiredInputs lists the plan's mandatory source files in load order.
// The test files come first: the Test partition must be definable before
// anything else is sampled.
func (p *Plan) RequiredInputs() []string {
	return []string{
		p.NYT.StructuredTest,
		p.Synthetic.StructuredTest,
		p.NYT.StructuredTrain,
		p.Synthetic.StructuredTrain,
		p.NYT.Unstructured,
		p.PreconnTrain,
	}
}

// CheckInputs verifies every required source file exists before any
// partitioning begins. An absent file blocks the entire run.
func (p *Plan) CheckInputs() error {
	for _, path := range p.RequiredInputs() {
		if path == "" {
			return fmt.Errorf("%w: plan leaves a required input unset", split.ErrMissingSource)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %q: %v", split.ErrMissingSource, path, err)
		}
	}
	return nil
}
