package eval

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Prediction is one model output paired with its ground truth, as
// written by the external prediction-generation collaborator.
type Prediction struct {
	PuzzleID    json.Number    `json:"puzzle_id"`
	Prediction  string         `json:"prediction"`
	GroundTruth string         `json:"ground_truth"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Result scores one prediction. Each correctly recovered group is worth
// 0.25; a perfect puzzle scores 1.0.
type Result struct {
	PuzzleID          string     `json:"puzzle_id"`
	Score             float64    `json:"score"`
	CorrectGroups     int        `json:"correct_groups"`
	TotalGroups       int        `json:"total_groups"`
	ExtractionSuccess bool       `json:"extraction_success"`
	GroundTruthGroups [][]string `json:"ground_truth_groups"`
	PredictedGroups   [][]string `json:"predicted_groups"`
}

// Summary aggregates one prediction file.
type Summary struct {
	File              string  `json:"file"`
	TotalPuzzles      int     `json:"total_puzzles"`
	AverageScore      float64 `json:"average_score"`
	PerfectPuzzles    int     `json:"perfect_puzzles"`
	FailedExtractions int     `json:"failed_extractions"`
}

// Score checks which ground-truth groups appear in the prediction text
// and returns the fraction recovered (0.25 per group) and the count.
func Score(groundTruthGroups [][]string, predictionText string) (float64, int) {
	if len(groundTruthGroups) == 0 || predictionText == "" {
		return 0, 0
	}
	predicted := ExtractPredictedGroups(predictionText)

	correct := 0
	for _, gt := range groundTruthGroups {
		key := normalizeGroup(gt)
		for _, p := range predicted {
			if normalizeGroup(p) == key {
				correct++
				break
			}
		}
	}
	return float64(correct) * 0.25, correct
}

// Evaluate scores a single prediction end to end.
func Evaluate(p Prediction) Result {
	gt := ExtractGroundTruthGroups(p.GroundTruth)
	score, correct := Score(gt, p.Prediction)
	return Result{
		PuzzleID:          p.PuzzleID.String(),
		Score:             score,
		CorrectGroups:     correct,
		TotalGroups:       4,
		ExtractionSuccess: len(gt) == 4,
		GroundTruthGroups: gt,
		PredictedGroups:   ExtractPredictedGroups(p.Prediction),
	}
}

// EvaluateFile loads a JSON array of predictions and scores every entry.
// Duplicate puzzle ids (synthetic and NYT share numeric id spaces) get
// a _dupN suffix so no result is silently overwritten.
func EvaluateFile(path string) ([]Result, Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("eval: read %q: %w", path, err)
	}
	var predictions []Prediction
	if err := json.Unmarshal(data, &predictions); err != nil {
		return nil, Summary{}, fmt.Errorf("eval: parse %q: %w", path, err)
	}

	results := make([]Result, 0, len(predictions))
	seen := make(map[string]int)
	summary := Summary{File: filepath.Base(path)}

	total := 0.0
	for _, p := range predictions {
		r := Evaluate(p)
		if n := seen[r.PuzzleID]; n > 0 {
			seen[r.PuzzleID] = n + 1
			r.PuzzleID = fmt.Sprintf("%s_dup%d", r.PuzzleID, n+1)
		} else {
			seen[r.PuzzleID] = 1
		}
		results = append(results, r)

		total += r.Score
		summary.TotalPuzzles++
		if r.Score == 1.0 {
			summary.PerfectPuzzles++
		}
		if !r.ExtractionSuccess {
			summary.FailedExtractions++
		}
	}
	if summary.TotalPuzzles > 0 {
		summary.AverageScore = total / float64(summary.TotalPuzzles)
	}
	return results, summary, nil
}

// WriteCSV writes one summary row per evaluated file.
func WriteCSV(path string, summaries []Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("eval: create dir for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("eval: create %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"file", "total_puzzles", "average_score", "perfect_puzzles", "failed_extractions"}); err != nil {
		return fmt.Errorf("eval: write header: %w", err)
	}
	for _, s := range summaries {
		row := []string{
			s.File,
			strconv.Itoa(s.TotalPuzzles),
			strconv.FormatFloat(s.AverageScore, 'f', 4, 64),
			strconv.Itoa(s.PerfectPuzzles),
			strconv.Itoa(s.FailedExtractions),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("eval: write row for %s: %w", s.File, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("eval: flush %q: %w", path, err)
	}
	return nil
}
