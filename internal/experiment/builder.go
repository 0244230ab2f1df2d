package experiment

import (
	"fmt"
	"math/rand"
	"path/filepath"

	"log/slog"

	"connlab/internal/logging"
	"connlab/internal/puzzle"
	"connlab/internal/split"
)

// Builder runs the preparation phases in the fixed lifecycle order:
// base partitions first (Test before Validation before Train), then the
// three experiment families, then a file-level re-scan of everything it
// wrote. A leakage or configuration error at any phase aborts the build;
// nothing is repaired or partially emitted for the failed experiment.
type Builder struct {
	plan   *Plan
	rng    *rand.Rand
	logger *slog.Logger

	nytTrainFull []puzzle.Record
	nytTest      []puzzle.Record
	synTrainFull []puzzle.Record
	synTest      []puzzle.Record
	unstructured []puzzle.Record
	preconn      []puzzle.Record

	nyt split.Partitions
	syn split.Partitions

	checks []split.FileCheck

	// verifyOnly re-derives partitions and checks existing files
	// without rewriting anything.
	verifyOnly bool
}

// NewBuilder creates a Builder with its own seeded generator. The rng is
// consumed only through the builder's sampling calls, in a fixed order,
// so a given plan always reproduces byte-identical outputs.
func NewBuilder(plan *Plan) *Builder {
	return &Builder{
		plan:   plan,
		rng:    split.NewRand(plan.Seed),
		logger: logging.New("experiment"),
	}
}

// Load checks and reads every source file. Test files are loaded first;
// a missing one blocks the run before any sampling happens.
func (b *Builder) Load() error {
	if err := b.plan.CheckInputs(); err != nil {
		return err
	}
	var err error
	if b.nytTest, err = puzzle.ReadJSONL(b.plan.NYT.StructuredTest); err != nil {
		return err
	}
	if b.synTest, err = puzzle.ReadJSONL(b.plan.Synthetic.StructuredTest); err != nil {
		return err
	}
	if b.nytTrainFull, err = puzzle.ReadJSONL(b.plan.NYT.StructuredTrain); err != nil {
		return err
	}
	if b.synTrainFull, err = puzzle.ReadJSONL(b.plan.Synthetic.StructuredTrain); err != nil {
		return err
	}
	if b.unstructured, err = puzzle.ReadJSONL(b.plan.NYT.Unstructured); err != nil {
		return err
	}
	if b.preconn, err = puzzle.ReadJSONL(b.plan.PreconnTrain); err != nil {
		return err
	}
	b.logger.Info("sources loaded",
		"nyt_train", len(b.nytTrainFull), "nyt_test", len(b.nytTest),
		"synthetic_train", len(b.synTrainFull), "synthetic_test", len(b.synTest),
		"unstructured", len(b.unstructured), "preconn", len(b.preconn))
	return nil
}

// BuildAll runs every phase and finishes with the on-disk re-scan.
func (b *Builder) BuildAll() error {
	if err := b.buildBase(); err != nil {
		return err
	}
	if err := b.buildAugmentation(); err != nil {
		return err
	}
	if err := b.buildFormatImpact(); err != nil {
		return err
	}
	if err := b.buildWarmup(); err != nil {
		return err
	}
	if err := split.VerifyFiles(b.checks); err != nil {
		return err
	}
	b.logger.Info("all experiment datasets built", "files_verified", len(b.checks))
	return nil
}

// VerifyAll replays the partitioning deterministically and re-scans the
// previously written files without touching them. The same seed walks
// the same sampling path, so the derived allowed sets match what the
// original prepare run enforced.
func (b *Builder) VerifyAll() error {
	b.verifyOnly = true
	b.checks = nil
	if err := b.buildBase(); err != nil {
		return err
	}
	if err := b.buildAugmentation(); err != nil {
		return err
	}
	if err := b.buildFormatImpact(); err != nil {
		return err
	}
	if err := b.buildWarmup(); err != nil {
		return err
	}
	if err := split.VerifyFiles(b.checks); err != nil {
		return err
	}
	b.logger.Info("all experiment datasets verified", "files_checked", len(b.checks))
	return nil
}

// emit writes one derived dataset and queues its file-level check.
// A nil allowed set skips the check (used for the preconn warmup, whose
// simpler task has its own id space).
func (b *Builder) emit(relPath string, records []puzzle.Record, allowed split.IDSet, label string) error {
	path := filepath.Join(b.plan.OutputDir, relPath)
	if !b.verifyOnly {
		if err := puzzle.WriteJSONL(path, records); err != nil {
			return err
		}
		b.logger.Info("dataset written", "file", relPath, "entries", len(records))
	}
	if allowed != nil {
		b.checks = append(b.checks, split.FileCheck{Path: path, Allowed: allowed, Label: label})
	}
	return nil
}

func (b *Builder) writeRegistry(relPath string, reg any) error {
	if b.verifyOnly {
		return nil
	}
	return puzzle.WriteJSON(filepath.Join(b.plan.OutputDir, relPath), reg)
}

// buildBase fixes the Test partitions, samples Validation, and emits the
// global test/validation files plus the id registries.
func (b *Builder) buildBase() error {
	var err error
	b.nyt, err = split.BuildBasePartitions(b.nytTest,
		append(append([]puzzle.Record{}, b.nytTrainFull...), b.nytTest...),
		b.plan.ValidationFraction, b.rng)
	if err != nil {
		return fmt.Errorf("experiment: nyt partitions: %w", err)
	}
	b.syn, err = split.BuildBasePartitions(b.synTest,
		append(append([]puzzle.Record{}, b.synTrainFull...), b.synTest...),
		b.plan.ValidationFraction, b.rng)
	if err != nil {
		return fmt.Errorf("experiment: synthetic partitions: %w", err)
	}

	b.logger.Info("base partitions",
		"nyt_train", b.nyt.Train.Len(), "nyt_val", b.nyt.Validation.Len(), "nyt_test", b.nyt.Test.Len(),
		"syn_train", b.syn.Train.Len(), "syn_val", b.syn.Validation.Len(), "syn_test", b.syn.Test.Len())

	globalTest := append(append([]puzzle.Record{}, b.nytTest...), b.synTest...)
	if err := b.emit("global_test.jsonl", globalTest, b.nyt.Test.Union(b.syn.Test), "global test"); err != nil {
		return err
	}

	nytVal := split.FilterByPartition(b.nytTrainFull, b.nyt.Validation)
	synVal := split.FilterByPartition(b.synTrainFull, b.syn.Validation)
	globalVal := append(append([]puzzle.Record{}, nytVal...), synVal...)
	if err := b.emit("global_validation.jsonl", globalVal, b.nyt.Validation.Union(b.syn.Validation), "global validation"); err != nil {
		return err
	}

	// Experiment 1 validates against NYT-only sets: perm=1 for the
	// baseline arm, all permutations for the augmented arms.
	if err := b.emit("experiment1/validation_nyt_perm1.jsonl", permutationOne(nytVal), b.nyt.Validation, "exp1 validation perm1"); err != nil {
		return err
	}
	if err := b.emit("experiment1/validation_nyt_all_perms.jsonl", nytVal, b.nyt.Validation, "exp1 validation all perms"); err != nil {
		return err
	}

	testReg := make(split.Registry)
	testReg.Set("nyt_test_ids", b.nyt.Test)
	testReg.Set("synthetic_test_ids", b.syn.Test)
	testReg.Set("unstructured_test_puzzle_ids", split.FromRecords(b.unstructured).Intersect(b.nyt.Test))
	if err := b.writeRegistry("test_ids.json", testReg); err != nil {
		return err
	}

	valReg := make(split.Registry)
	valReg.Set("nyt_val_ids", b.nyt.Validation)
	valReg.Set("synthetic_val_ids", b.syn.Validation)
	valReg.Set("nyt_train_ids", b.nyt.Train)
	valReg.Set("synthetic_train_ids", b.syn.Train)
	return b.writeRegistry("validation_ids.json", valReg)
}

// buildAugmentation emits the four data-augmentation ablation arms.
func (b *Builder) buildAugmentation() error {
	nytTrain := split.FilterByPartition(b.nytTrainFull, b.nyt.Train)
	synTrain := split.FilterByPartition(b.synTrainFull, b.syn.Train)
	both := b.nyt.Train.Union(b.syn.Train)

	if err := b.emit("experiment1/baseline_train.jsonl", permutationOne(nytTrain), b.nyt.Train, "exp1 baseline"); err != nil {
		return err
	}
	if err := b.emit("experiment1/permutation_train.jsonl", nytTrain, b.nyt.Train, "exp1 permutation"); err != nil {
		return err
	}
	syntheticArm := append(permutationOne(nytTrain), permutationOne(synTrain)...)
	if err := b.emit("experiment1/synthetic_train.jsonl", syntheticArm, both, "exp1 synthetic"); err != nil {
		return err
	}
	full := append(append([]puzzle.Record{}, nytTrain...), synTrain...)
	return b.emit("experiment1/full_train.jsonl", full, both, "exp1 full")
}

// idSplits records the format-impact sample and its curriculum halves.
type idSplits struct {
	AllIDs        []int  `json:"all_ids"`
	FirstHalfIDs  []int  `json:"first_half_ids"`
	SecondHalfIDs []int  `json:"second_half_ids"`
	Note          string `json:"note"`
}

// buildFormatImpact aligns the structured and unstructured variants,
// samples a fixed-size id subset, and emits the four format arms plus
// their validation sets. The sample is re-verified against the Test and
// Validation sets even though alignment already excluded them; two
// independent checks guard this boundary.
func (b *Builder) buildFormatImpact() error {
	excluded := b.nyt.Test.Union(b.nyt.Validation)
	structuredTrain := split.FilterByPartition(b.nytTrainFull, b.nyt.Train)

	common := split.AlignCrossFormat(structuredTrain, b.unstructured, excluded)
	sampleSize := b.plan.FormatSampleSize
	if common.Len() < sampleSize {
		sampleSize = common.Len()
	}
	sampled, err := split.SampleIDs(common, sampleSize, b.rng)
	if err != nil {
		return fmt.Errorf("experiment: format sample: %w", err)
	}
	sampledSet := split.NewIDSet(sampled...)

	if err := split.VerifyDisjoint(sampledSet, b.nyt.Test, "format sample/test"); err != nil {
		return err
	}
	if err := split.VerifyDisjoint(sampledSet, b.nyt.Validation, "format sample/validation"); err != nil {
		return err
	}
	b.logger.Info("format sample drawn", "common_ids", common.Len(), "sampled", len(sampled))

	if err := b.writeRegistry("experiment2/sampled_ids.json", split.Registry{"sampled_ids": sampledSet.Sorted()}); err != nil {
		return err
	}

	firstHalf, secondHalf := split.SplitPoint(sampled)
	if err := split.VerifyDisjoint(split.NewIDSet(firstHalf...), split.NewIDSet(secondHalf...), "phase1/phase2"); err != nil {
		return err
	}

	structuredByID := groupByID(permutationOne(structuredTrain))
	unstructuredByID := firstByID(split.FilterByPartition(b.unstructured, sampledSet))

	structuredOnly := collect(structuredByID, sampled)
	if err := b.emit("experiment2/structured_only_train.jsonl", structuredOnly, sampledSet, "exp2 structured"); err != nil {
		return err
	}
	unstructuredOnly := collectOne(unstructuredByID, sampled)
	if err := b.emit("experiment2/unstructured_only_train.jsonl", unstructuredOnly, sampledSet, "exp2 unstructured"); err != nil {
		return err
	}

	// Mixed and sequential carry the same entries: first half
	// unstructured, second half structured. Mixed shuffles them
	// together; sequential keeps the curriculum order on disk.
	phase1 := collectOne(unstructuredByID, firstHalf)
	phase2 := collect(structuredByID, secondHalf)
	mixed := append(append([]puzzle.Record{}, phase1...), phase2...)
	b.rng.Shuffle(len(mixed), func(i, j int) { mixed[i], mixed[j] = mixed[j], mixed[i] })
	if err := b.emit("experiment2/mixed_train.jsonl", mixed, sampledSet, "exp2 mixed"); err != nil {
		return err
	}
	if err := b.emit("experiment2/sequential_phase1_unstructured.jsonl", phase1, split.NewIDSet(firstHalf...), "exp2 sequential phase1"); err != nil {
		return err
	}
	if err := b.emit("experiment2/sequential_phase2_structured.jsonl", phase2, split.NewIDSet(secondHalf...), "exp2 sequential phase2"); err != nil {
		return err
	}

	splits := idSplits{
		AllIDs:        sampledSet.Sorted(),
		FirstHalfIDs:  split.NewIDSet(firstHalf...).Sorted(),
		SecondHalfIDs: split.NewIDSet(secondHalf...).Sorted(),
		Note:          "mixed uses all sampled ids shuffled; sequential trains first_half then second_half",
	}
	if err := b.writeRegistry("experiment2/id_splits.json", splits); err != nil {
		return err
	}

	return b.buildFormatValidation()
}

// buildFormatValidation emits the experiment-2 validation sets: the same
// NYT validation puzzles in structured, unstructured, and mixed form.
func (b *Builder) buildFormatValidation() error {
	structuredVal := permutationOne(split.FilterByPartition(b.nytTrainFull, b.nyt.Validation))
	unstructuredVal := split.FilterByPartition(b.unstructured, b.nyt.Validation)

	if err := b.emit("experiment2/validation_structured.jsonl", structuredVal, b.nyt.Validation, "exp2 validation structured"); err != nil {
		return err
	}
	if err := b.emit("experiment2/validation_unstructured.jsonl", unstructuredVal, b.nyt.Validation, "exp2 validation unstructured"); err != nil {
		return err
	}

	valIDs := b.nyt.Validation.Sorted()
	firstHalf, secondHalf := split.SplitPoint(valIDs)
	mixed := append(collectOne(firstByID(unstructuredVal), firstHalf), collect(groupByID(structuredVal), secondHalf)...)
	b.rng.Shuffle(len(mixed), func(i, j int) { mixed[i], mixed[j] = mixed[j], mixed[i] })
	return b.emit("experiment2/validation_mixed.jsonl", mixed, b.nyt.Validation, "exp2 validation mixed")
}

// buildWarmup emits the warmup-curriculum components. The preconn
// warmup is a simpler task with its own id space, so it carries no
// partition check; the later phases reuse the verified Train filters.
func (b *Builder) buildWarmup() error {
	nytTrain := split.FilterByPartition(b.nytTrainFull, b.nyt.Train)
	synTrain := split.FilterByPartition(b.synTrainFull, b.syn.Train)
	both := b.nyt.Train.Union(b.syn.Train)

	if err := b.emit("experiment3/preconn_warmup.jsonl", b.preconn, nil, ""); err != nil {
		return err
	}
	if err := b.emit("experiment3/synthetic_component.jsonl", synTrain, b.syn.Train, "exp3 synthetic component"); err != nil {
		return err
	}
	if err := b.emit("experiment3/nyt_component.jsonl", nytTrain, b.nyt.Train, "exp3 nyt component"); err != nil {
		return err
	}
	full := append(append([]puzzle.Record{}, nytTrain...), synTrain...)
	return b.emit("experiment3/full_augmented.jsonl", full, both, "exp3 full augmented")
}

// Partitions exposes the built NYT and synthetic partitions, in that
// order. Valid after BuildAll.
func (b *Builder) Partitions() (nyt, synthetic split.Partitions) {
	return b.nyt, b.syn
}

func permutationOne(records []puzzle.Record) []puzzle.Record {
	var out []puzzle.Record
	for _, r := range records {
		if r.Metadata.Permutation == 1 {
			out = append(out, r)
		}
	}
	return out
}

func groupByID(records []puzzle.Record) map[int][]puzzle.Record {
	out := make(map[int][]puzzle.Record)
	for _, r := range records {
		if id := r.OriginalID(); id != 0 {
			out[id] = append(out[id], r)
		}
	}
	return out
}

func firstByID(records []puzzle.Record) map[int]puzzle.Record {
	out := make(map[int]puzzle.Record)
	for _, r := range records {
		id := r.OriginalID()
		if id == 0 {
			continue
		}
		if _, ok := out[id]; !ok {
			out[id] = r
		}
	}
	return out
}

func collect(byID map[int][]puzzle.Record, ids []int) []puzzle.Record {
	var out []puzzle.Record
	for _, id := range ids {
		out = append(out, byID[id]...)
	}
	return out
}

func collectOne(byID map[int]puzzle.Record, ids []int) []puzzle.Record {
	var out []puzzle.Record
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
