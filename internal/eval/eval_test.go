package eval

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groundTruth = `<think>
some reasoning here
</think>

**FISH**: BASS, PIKE, SOLE, CARP
**TOOLS**: HAMMER, WRENCH, PLIERS, FILE
**DANCES**: TANGO, WALTZ, SAMBA, RUMBA
**METALS**: IRON, ZINC, LEAD, TIN`

func TestExtractFinalAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"close tag present", "<think>r</think>\nanswer", "answer"},
		{"close without open", "reasoning</think>final", "final"},
		{"multiple closes take last", "a</think>b</think>c", "c"},
		{"open without close", "<think>never finished", ""},
		{"no tags", "  plain answer  ", "plain answer"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFinalAnswer(tt.in))
		})
	}
}

func TestExtractGroundTruthGroups(t *testing.T) {
	groups := ExtractGroundTruthGroups(groundTruth)
	require.Len(t, groups, 4)
	assert.Equal(t, []string{"BASS", "PIKE", "SOLE", "CARP"}, groups[0])
	assert.Equal(t, []string{"IRON", "ZINC", "LEAD", "TIN"}, groups[3])
}

func TestExtractGroundTruthGroups_ColonFallback(t *testing.T) {
	text := `Fish: BASS, PIKE, SOLE, CARP
Tools: HAMMER, WRENCH, PLIERS, FILE`
	groups := ExtractGroundTruthGroups(text)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"BASS", "PIKE", "SOLE", "CARP"}, groups[0])
}

func TestExtractPredictedGroups_Markdown(t *testing.T) {
	prediction := `<think>long reasoning</think>

**Group 1**: BASS, PIKE, SOLE, CARP
**Group 2**: hammer, wrench, pliers, file`
	groups := ExtractPredictedGroups(prediction)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"BASS", "PIKE", "SOLE", "CARP"}, groups[0])
	assert.Equal(t, []string{"HAMMER", "WRENCH", "PLIERS", "FILE"}, groups[1], "predicted words are uppercased")
}

func TestExtractPredictedGroups_TableAndLatex(t *testing.T) {
	prediction := `</think>
| 1 | BASS, PIKE, SOLE, CARP |
$\boxed{HAMMER, WRENCH, PLIERS, FILE}$`
	groups := ExtractPredictedGroups(prediction)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"BASS", "PIKE", "SOLE", "CARP"}, groups[0])
	assert.Equal(t, []string{"HAMMER", "WRENCH", "PLIERS", "FILE"}, groups[1])
}

func TestExtractPredictedGroups_DeduplicatesAndStopsAtFour(t *testing.T) {
	prediction := `</think>
1: BASS, PIKE, SOLE, CARP
2: bass, pike, sole, carp
3: HAMMER, WRENCH, PLIERS, FILE
4: TANGO, WALTZ, SAMBA, RUMBA
5: IRON, ZINC, LEAD, TIN
6: RUBY, CHERRY, BRICK, SCARLET`
	groups := ExtractPredictedGroups(prediction)
	assert.Len(t, groups, 4)
}

func TestScore_PartialCredit(t *testing.T) {
	gt := ExtractGroundTruthGroups(groundTruth)
	prediction := `</think>
**A**: BASS, PIKE, SOLE, CARP
**B**: TANGO, WALTZ, SAMBA, RUMBA
**C**: WRONG, WORDS, GO, HERE`

	score, correct := Score(gt, prediction)
	assert.Equal(t, 0.5, score)
	assert.Equal(t, 2, correct)
}

func TestScore_CaseAndOrderInsensitive(t *testing.T) {
	gt := [][]string{{"BASS", "PIKE", "SOLE", "CARP"}}
	score, correct := Score(gt, "</think>\ngroup: carp, sole, pike, bass")
	assert.Equal(t, 0.25, score)
	assert.Equal(t, 1, correct)
}

func TestScore_IncompleteReasoningScoresZero(t *testing.T) {
	gt := [][]string{{"BASS", "PIKE", "SOLE", "CARP"}}
	score, correct := Score(gt, "<think>BASS, PIKE, SOLE, CARP never closed")
	assert.Equal(t, 0.0, score)
	assert.Equal(t, 0, correct)
}

func TestEvaluateFile(t *testing.T) {
	predictions := []Prediction{
		{PuzzleID: "1", Prediction: "</think>\n**A**: BASS, PIKE, SOLE, CARP\n**B**: HAMMER, WRENCH, PLIERS, FILE\n**C**: TANGO, WALTZ, SAMBA, RUMBA\n**D**: IRON, ZINC, LEAD, TIN", GroundTruth: groundTruth},
		{PuzzleID: "1", Prediction: "no answer at all", GroundTruth: groundTruth},
		{PuzzleID: "2", Prediction: "", GroundTruth: "broken"},
	}
	data, err := json.Marshal(predictions)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "preds.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	results, summary, err := EvaluateFile(path)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, "1_dup2", results[1].PuzzleID, "duplicate ids get suffixed")
	assert.False(t, results[2].ExtractionSuccess)

	assert.Equal(t, 3, summary.TotalPuzzles)
	assert.Equal(t, 1, summary.PerfectPuzzles)
	assert.Equal(t, 1, summary.FailedExtractions)
	assert.InDelta(t, 1.0/3.0, summary.AverageScore, 1e-9)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "eval.csv")
	summaries := []Summary{
		{File: "baseline.json", TotalPuzzles: 10, AverageScore: 0.45, PerfectPuzzles: 2, FailedExtractions: 1},
	}
	require.NoError(t, WriteCSV(path, summaries))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"file", "total_puzzles", "average_score", "perfect_puzzles", "failed_extractions"}, rows[0])
	assert.Equal(t, []string{"baseline.json", "10", "0.4500", "2", "1"}, rows[1])
}
