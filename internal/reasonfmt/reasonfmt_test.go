package reasonfmt

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"connlab/internal/puzzle"
)

func answerKey() map[int][]puzzle.Group {
	return AnswerKey([]puzzle.Puzzle{
		{
			ID: 7,
			Answers: []puzzle.Group{
				{Level: 0, Name: "FISH", Members: []string{"BASS", "CARP", "PIKE", "SOLE"}},
				{Level: 1, Name: "TOOLS", Members: []string{"FILE", "HAMMER", "PLIERS", "WRENCH"}},
			},
		},
	})
}

func TestFormatAnswer(t *testing.T) {
	got := FormatAnswer(answerKey()[7])
	want := "**FISH**: BASS, CARP, PIKE, SOLE\n**TOOLS**: FILE, HAMMER, PLIERS, WRENCH"
	if got != want {
		t.Errorf("FormatAnswer = %q, want %q", got, want)
	}
}

func TestWrapThink_FormatsKnownIDs(t *testing.T) {
	records := []puzzle.Record{
		{
			Messages: []puzzle.Message{
				{Role: "user", Content: "group the words"},
				{Role: "assistant", Content: "step by step reasoning"},
			},
			Metadata: puzzle.Metadata{OriginalID: 7},
		},
	}

	out, formatted := WrapThink(records, answerKey())
	if formatted != 1 {
		t.Fatalf("formatted = %d, want 1", formatted)
	}

	content := out[0].Messages[1].Content
	if !strings.HasPrefix(content, "<think>\nstep by step reasoning\n</think>\n\n") {
		t.Errorf("assistant content not wrapped: %q", content)
	}
	if !strings.Contains(content, "**FISH**: BASS, CARP, PIKE, SOLE") {
		t.Errorf("answer not appended: %q", content)
	}
	if out[0].Messages[0].Content != "group the words" {
		t.Error("user message must pass through untouched")
	}
}

func TestWrapThink_UnknownIDPassesThrough(t *testing.T) {
	records := []puzzle.Record{
		{
			Messages: []puzzle.Message{{Role: "assistant", Content: "reasoning"}},
			Metadata: puzzle.Metadata{OriginalID: 99},
		},
	}
	out, formatted := WrapThink(records, answerKey())
	if formatted != 0 {
		t.Errorf("formatted = %d, want 0", formatted)
	}
	if diff := cmp.Diff(records, out); diff != "" {
		t.Errorf("records changed (-want +got):\n%s", diff)
	}
}

func TestWrapThink_ResolvesPermutedRawIDs(t *testing.T) {
	records := []puzzle.Record{
		{
			Messages: []puzzle.Message{{Role: "assistant", Content: "r"}},
			Metadata: puzzle.Metadata{RawID: "7_perm3"},
		},
	}
	_, formatted := WrapThink(records, answerKey())
	if formatted != 1 {
		t.Errorf("formatted = %d, want 1 (raw perm id should resolve to 7)", formatted)
	}
}

func TestWrapThink_DoesNotMutateInput(t *testing.T) {
	records := []puzzle.Record{
		{
			Messages: []puzzle.Message{{Role: "assistant", Content: "original"}},
			Metadata: puzzle.Metadata{OriginalID: 7},
		},
	}
	WrapThink(records, answerKey())
	if records[0].Messages[0].Content != "original" {
		t.Error("WrapThink mutated its input slice")
	}
}
