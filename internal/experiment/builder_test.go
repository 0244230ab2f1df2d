package experiment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"connlab/internal/puzzle"
	"connlab/internal/split"
)

func structuredRecord(id, perm int, source string) puzzle.Record {
	return puzzle.Record{
		Messages: []puzzle.Message{
			{Role: "user", Content: fmt.Sprintf("%s puzzle %d perm %d", source, id, perm)},
			{Role: "assistant", Content: "<think>\nreasoning\n</think>\n\n**GROUP**: A, B, C, D"},
		},
		Metadata: puzzle.Metadata{OriginalID: id, Permutation: perm, Format: "structured", Source: source},
	}
}

func unstructuredRecord(id int) puzzle.Record {
	return puzzle.Record{
		Messages: []puzzle.Message{
			{Role: "user", Content: fmt.Sprintf("unstructured puzzle %d", id)},
			{Role: "assistant", Content: "free-form reasoning"},
		},
		Metadata: puzzle.Metadata{PuzzleID: id, Format: "unstructured", Source: "nyt"},
	}
}

// writeFixture lays out a miniature corpus: NYT test ids 1-3, NYT train
// ids 4-20 with two permutations each, synthetic test ids 201-202,
// synthetic train ids 203-212, unstructured variants for ids 4-15.
func writeFixture(t *testing.T, dir string) *Plan {
	t.Helper()

	write := func(name string, records []puzzle.Record) string {
		path := filepath.Join(dir, name)
		if err := puzzle.WriteJSONL(path, records); err != nil {
			t.Fatalf("fixture %s: %v", name, err)
		}
		return path
	}

	var nytTest, nytTrain, synTest, synTrain, unstructured, preconn []puzzle.Record
	for id := 1; id <= 3; id++ {
		nytTest = append(nytTest, structuredRecord(id, 1, "nyt"))
	}
	for id := 4; id <= 20; id++ {
		nytTrain = append(nytTrain, structuredRecord(id, 1, "nyt"), structuredRecord(id, 2, "nyt"))
	}
	for id := 201; id <= 202; id++ {
		synTest = append(synTest, structuredRecord(id, 1, "synthetic"))
	}
	for id := 203; id <= 212; id++ {
		synTrain = append(synTrain, structuredRecord(id, 1, "synthetic"), structuredRecord(id, 2, "synthetic"))
	}
	for id := 4; id <= 15; id++ {
		unstructured = append(unstructured, unstructuredRecord(id))
	}
	for id := 9001; id <= 9005; id++ {
		preconn = append(preconn, puzzle.Record{
			Messages: []puzzle.Message{{Role: "user", Content: "warmup"}},
			Metadata: puzzle.Metadata{PuzzleID: id, Format: "preconn"},
		})
	}

	return &Plan{
		Seed:               42,
		ValidationFraction: 0.10,
		FormatSampleSize:   8,
		OutputDir:          filepath.Join(dir, "out"),
		NYT: SourceFiles{
			StructuredTrain: write("nyt_train.jsonl", nytTrain),
			StructuredTest:  write("nyt_test.jsonl", nytTest),
			Unstructured:    write("unstructured.jsonl", unstructured),
		},
		Synthetic: SourceFiles{
			StructuredTrain: write("syn_train.jsonl", synTrain),
			StructuredTest:  write("syn_test.jsonl", synTest),
		},
		PreconnTrain: write("preconn.jsonl", preconn),
	}
}

func buildAll(t *testing.T, plan *Plan) *Builder {
	t.Helper()
	b := NewBuilder(plan)
	if err := b.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := b.BuildAll(); err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	return b
}

func TestBuildAll_EmitsEveryDataset(t *testing.T) {
	plan := writeFixture(t, t.TempDir())
	buildAll(t, plan)

	for _, name := range []string{
		"global_test.jsonl",
		"global_validation.jsonl",
		"test_ids.json",
		"validation_ids.json",
		"experiment1/baseline_train.jsonl",
		"experiment1/permutation_train.jsonl",
		"experiment1/synthetic_train.jsonl",
		"experiment1/full_train.jsonl",
		"experiment1/validation_nyt_perm1.jsonl",
		"experiment1/validation_nyt_all_perms.jsonl",
		"experiment2/structured_only_train.jsonl",
		"experiment2/unstructured_only_train.jsonl",
		"experiment2/mixed_train.jsonl",
		"experiment2/sequential_phase1_unstructured.jsonl",
		"experiment2/sequential_phase2_structured.jsonl",
		"experiment2/sampled_ids.json",
		"experiment2/id_splits.json",
		"experiment2/validation_structured.jsonl",
		"experiment2/validation_unstructured.jsonl",
		"experiment2/validation_mixed.jsonl",
		"experiment3/preconn_warmup.jsonl",
		"experiment3/synthetic_component.jsonl",
		"experiment3/nyt_component.jsonl",
		"experiment3/full_augmented.jsonl",
	} {
		if _, err := os.Stat(filepath.Join(plan.OutputDir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
}

func TestBuildAll_PartitionSizes(t *testing.T) {
	plan := writeFixture(t, t.TempDir())
	b := buildAll(t, plan)

	nyt, syn := b.Partitions()
	// 17-id NYT pool at 10% truncates to 1 validation id; 10-id
	// synthetic pool gives exactly 1.
	if nyt.Test.Len() != 3 || nyt.Validation.Len() != 1 || nyt.Train.Len() != 16 {
		t.Errorf("nyt partitions = %d/%d/%d, want 3/1/16",
			nyt.Test.Len(), nyt.Validation.Len(), nyt.Train.Len())
	}
	if syn.Test.Len() != 2 || syn.Validation.Len() != 1 || syn.Train.Len() != 9 {
		t.Errorf("synthetic partitions = %d/%d/%d, want 2/1/9",
			syn.Test.Len(), syn.Validation.Len(), syn.Train.Len())
	}
	if err := nyt.Verify(); err != nil {
		t.Errorf("nyt partitions overlap: %v", err)
	}
	if err := syn.Verify(); err != nil {
		t.Errorf("synthetic partitions overlap: %v", err)
	}
}

func TestBuildAll_Deterministic(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	planA := writeFixture(t, dirA)
	planB := writeFixture(t, dirB)
	buildAll(t, planA)
	buildAll(t, planB)

	for _, name := range []string{"test_ids.json", "validation_ids.json", "experiment2/id_splits.json"} {
		a, err := os.ReadFile(filepath.Join(planA.OutputDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		b, err := os.ReadFile(filepath.Join(planB.OutputDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(a) != string(b) {
			t.Errorf("%s differs across identical plans", name)
		}
	}
}

func TestBuildAll_RegistriesDisjoint(t *testing.T) {
	plan := writeFixture(t, t.TempDir())
	buildAll(t, plan)

	var testReg, valReg split.Registry
	if err := puzzle.ReadJSON(filepath.Join(plan.OutputDir, "test_ids.json"), &testReg); err != nil {
		t.Fatalf("read test registry: %v", err)
	}
	if err := puzzle.ReadJSON(filepath.Join(plan.OutputDir, "validation_ids.json"), &valReg); err != nil {
		t.Fatalf("read validation registry: %v", err)
	}

	test := split.NewIDSet(testReg["nyt_test_ids"]...)
	val := split.NewIDSet(valReg["nyt_val_ids"]...)
	train := split.NewIDSet(valReg["nyt_train_ids"]...)

	if err := split.VerifyDisjoint(test, val, "test/validation"); err != nil {
		t.Error(err)
	}
	if err := split.VerifyDisjoint(test, train, "test/train"); err != nil {
		t.Error(err)
	}
	if err := split.VerifyDisjoint(val, train, "validation/train"); err != nil {
		t.Error(err)
	}
}

func TestBuildAll_FormatSampleRespectsExclusions(t *testing.T) {
	plan := writeFixture(t, t.TempDir())
	b := buildAll(t, plan)
	nyt, _ := b.Partitions()

	var sampledReg split.Registry
	if err := puzzle.ReadJSON(filepath.Join(plan.OutputDir, "experiment2/sampled_ids.json"), &sampledReg); err != nil {
		t.Fatalf("read sampled ids: %v", err)
	}
	sampled := sampledReg["sampled_ids"]
	if len(sampled) != plan.FormatSampleSize {
		t.Errorf("sampled %d ids, want %d", len(sampled), plan.FormatSampleSize)
	}
	for _, id := range sampled {
		if nyt.Test.Has(id) || nyt.Validation.Has(id) {
			t.Errorf("sampled id %d lies in an excluded partition", id)
		}
		if id < 4 || id > 15 {
			t.Errorf("sampled id %d outside the cross-format pool 4..15", id)
		}
	}
}

func TestBuildAll_SequentialPhasesShareNoIDs(t *testing.T) {
	plan := writeFixture(t, t.TempDir())
	buildAll(t, plan)

	phase1, err := puzzle.ReadJSONL(filepath.Join(plan.OutputDir, "experiment2/sequential_phase1_unstructured.jsonl"))
	if err != nil {
		t.Fatalf("read phase1: %v", err)
	}
	phase2, err := puzzle.ReadJSONL(filepath.Join(plan.OutputDir, "experiment2/sequential_phase2_structured.jsonl"))
	if err != nil {
		t.Fatalf("read phase2: %v", err)
	}
	if err := split.VerifyDisjoint(split.FromRecords(phase1), split.FromRecords(phase2), "phase1/phase2"); err != nil {
		t.Error(err)
	}

	// Mixed holds the same entries as the two sequential phases.
	mixed, err := puzzle.ReadJSONL(filepath.Join(plan.OutputDir, "experiment2/mixed_train.jsonl"))
	if err != nil {
		t.Fatalf("read mixed: %v", err)
	}
	if len(mixed) != len(phase1)+len(phase2) {
		t.Errorf("mixed has %d entries, want %d", len(mixed), len(phase1)+len(phase2))
	}
	want := split.FromRecords(phase1).Union(split.FromRecords(phase2))
	if diff := cmp.Diff(want.Sorted(), split.FromRecords(mixed).Sorted()); diff != "" {
		t.Errorf("mixed id set mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildAll_PermutationsStayTogether(t *testing.T) {
	plan := writeFixture(t, t.TempDir())
	b := buildAll(t, plan)
	nyt, _ := b.Partitions()

	perms, err := puzzle.ReadJSONL(filepath.Join(plan.OutputDir, "experiment1/permutation_train.jsonl"))
	if err != nil {
		t.Fatalf("read permutation arm: %v", err)
	}
	seen := make(map[int]int)
	for _, r := range perms {
		if !nyt.Train.Has(r.OriginalID()) {
			t.Errorf("permutation arm contains non-train id %d", r.OriginalID())
		}
		seen[r.OriginalID()]++
	}
	for id, n := range seen {
		if n != 2 {
			t.Errorf("id %d has %d permutations in the arm, want 2", id, n)
		}
	}
}

func TestBuildAll_BaselineIsPermOneOnly(t *testing.T) {
	plan := writeFixture(t, t.TempDir())
	buildAll(t, plan)

	baseline, err := puzzle.ReadJSONL(filepath.Join(plan.OutputDir, "experiment1/baseline_train.jsonl"))
	if err != nil {
		t.Fatalf("read baseline: %v", err)
	}
	if len(baseline) != 16 {
		t.Errorf("baseline has %d entries, want 16 (one perm per train id)", len(baseline))
	}
	for _, r := range baseline {
		if r.Metadata.Permutation != 1 {
			t.Errorf("baseline contains permutation %d", r.Metadata.Permutation)
		}
	}
}

func TestVerifyAll_PassesAfterBuild(t *testing.T) {
	plan := writeFixture(t, t.TempDir())
	buildAll(t, plan)

	v := NewBuilder(plan)
	if err := v.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := v.VerifyAll(); err != nil {
		t.Fatalf("VerifyAll on a clean build: %v", err)
	}
}

func TestVerifyAll_CatchesTamperedFile(t *testing.T) {
	plan := writeFixture(t, t.TempDir())
	buildAll(t, plan)

	// Leak a held-out test puzzle into a training file.
	path := filepath.Join(plan.OutputDir, "experiment1/baseline_train.jsonl")
	records, err := puzzle.ReadJSONL(path)
	if err != nil {
		t.Fatalf("read baseline: %v", err)
	}
	records = append(records, structuredRecord(1, 1, "nyt"))
	if err := puzzle.WriteJSONL(path, records); err != nil {
		t.Fatalf("tamper baseline: %v", err)
	}

	v := NewBuilder(plan)
	if err := v.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = v.VerifyAll()
	if err == nil {
		t.Fatal("VerifyAll missed an injected test id")
	}
	var leak *split.LeakageError
	if !errors.As(err, &leak) {
		t.Fatalf("error is %T, want *split.LeakageError", err)
	}
	if len(leak.IDs) != 1 || leak.IDs[0] != 1 {
		t.Errorf("leak ids = %v, want [1]", leak.IDs)
	}
}

func TestVerifyAll_DoesNotRewriteOutputs(t *testing.T) {
	plan := writeFixture(t, t.TempDir())
	buildAll(t, plan)

	path := filepath.Join(plan.OutputDir, "test_ids.json")
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat registry: %v", err)
	}

	v := NewBuilder(plan)
	if err := v.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := v.VerifyAll(); err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat registry: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("verify pass rewrote an output file")
	}
}
