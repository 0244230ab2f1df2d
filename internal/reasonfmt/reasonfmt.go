// Package reasonfmt post-processes raw reasoning datasets into the
// training format: assistant reasoning wrapped in <think></think> tags
// with the authoritative answer appended from the source puzzles.
package reasonfmt

import (
	"fmt"
	"strings"

	"connlab/internal/puzzle"
)

// AnswerKey maps original puzzle ids to their answer groups.
func AnswerKey(puzzles []puzzle.Puzzle) map[int][]puzzle.Group {
	key := make(map[int][]puzzle.Group, len(puzzles))
	for _, p := range puzzles {
		key[p.ID] = p.Answers
	}
	return key
}

// FormatAnswer renders answer groups in the canonical final-answer
// format, one "**GROUP**: A, B, C, D" line per group. The evaluation
// stage parses exactly this shape back out of ground truth text.
func FormatAnswer(groups []puzzle.Group) string {
	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		lines = append(lines, fmt.Sprintf("**%s**: %s", g.Name, strings.Join(g.Members, ", ")))
	}
	return strings.Join(lines, "\n")
}

// WrapThink rewrites each record whose id appears in the answer key:
// assistant content becomes "<think>\n<reasoning>\n</think>\n\n<answer>".
// Records with unknown ids pass through untouched, as do non-assistant
// messages. Returns the rewritten records and how many were formatted.
func WrapThink(records []puzzle.Record, key map[int][]puzzle.Group) ([]puzzle.Record, int) {
	out := make([]puzzle.Record, len(records))
	formatted := 0
	for i, r := range records {
		out[i] = r
		answers, ok := key[r.OriginalID()]
		if !ok {
			continue
		}

		msgs := make([]puzzle.Message, len(r.Messages))
		copy(msgs, r.Messages)
		for j, m := range msgs {
			if m.Role != "assistant" {
				continue
			}
			msgs[j].Content = fmt.Sprintf("<think>\n%s\n</think>\n\n%s", m.Content, FormatAnswer(answers))
		}
		out[i].Messages = msgs
		formatted++
	}
	return out, formatted
}
