// Package eval scores model predictions for the word-grouping task by
// matching ground-truth answer groups inside free-form model output.
// Extraction is deliberately forgiving about formatting (markdown
// tables, LaTeX wrappers, missing category labels); scoring is strict
// set equality over normalized words.
package eval

import (
	"regexp"
	"strings"
)

var (
	// **CATEGORY**: W1, W2, W3, W4
	groundTruthPattern = regexp.MustCompile(`\*\*[^*]+\*\*:\s*([^,\n]+),\s*([^,\n]+),\s*([^,\n]+),\s*([^,\n]+)`)

	wordTrimPattern  = regexp.MustCompile(`^[^\p{L}\p{N}_'-]+|[^\p{L}\p{N}_'-]+$`)
	openParenPattern = regexp.MustCompile(`\([^)]*$`)
	parenPattern     = regexp.MustCompile(`\([^)]*\)`)
	boxedPattern     = regexp.MustCompile(`\\boxed\{`)
	dollarPattern    = regexp.MustCompile(`\$+`)
	latexCmdPattern  = regexp.MustCompile(`\\[a-zA-Z]+`)
)

// predictionWindow bounds how far back from the end of the output the
// final answer is searched for.
const predictionWindow = 1000

// ExtractFinalAnswer isolates the text after the reasoning section.
// Thinking models emit </think> as a delimiter, sometimes without an
// opening tag: a closing tag yields everything after it; an opening tag
// without a close means the reasoning never finished (empty answer);
// no tags at all means the whole text is the answer.
func ExtractFinalAnswer(text string) string {
	if text == "" {
		return ""
	}
	if i := strings.LastIndex(text, "</think>"); i >= 0 {
		return strings.TrimSpace(text[i+len("</think>"):])
	}
	if strings.Contains(text, "<think>") {
		return ""
	}
	return strings.TrimSpace(text)
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

// normalizeGroup converts a group to a canonical comparison key:
// normalized words, sorted and joined.
func normalizeGroup(group []string) string {
	words := make([]string, len(group))
	for i, w := range group {
		words[i] = normalizeWord(w)
	}
	// insertion sort; groups are always 4 words
	for i := 1; i < len(words); i++ {
		for j := i; j > 0 && words[j] < words[j-1]; j-- {
			words[j], words[j-1] = words[j-1], words[j]
		}
	}
	return strings.Join(words, "|")
}

// ExtractGroundTruthGroups parses the canonical answer format out of
// ground-truth text, with a colon-line fallback for older files.
// Returns at most 4 groups of 4 words.
func ExtractGroundTruthGroups(text string) [][]string {
	final := ExtractFinalAnswer(text)
	if final == "" {
		return nil
	}

	var groups [][]string
	for _, m := range groundTruthPattern.FindAllStringSubmatch(final, -1) {
		group := make([]string, 0, 4)
		for _, w := range m[1:] {
			if w = strings.TrimSpace(w); w != "" {
				group = append(group, w)
			}
		}
		if len(group) == 4 {
			groups = append(groups, group)
		}
	}

	if len(groups) < 4 {
		for _, line := range strings.Split(final, "\n") {
			if !strings.Contains(line, ":") {
				continue
			}
			_, wordsPart, _ := strings.Cut(line, ":")
			var cleaned []string
			for _, w := range strings.Split(wordsPart, ",") {
				if c := wordTrimPattern.ReplaceAllString(strings.TrimSpace(w), ""); c != "" {
					cleaned = append(cleaned, c)
				}
			}
			if len(cleaned) == 4 && !containsGroup(groups, cleaned) {
				groups = append(groups, cleaned)
			}
		}
	}

	if len(groups) > 4 {
		groups = groups[:4]
	}
	return groups
}

// ExtractPredictedGroups pulls predicted groups from the tail of the
// model output, tolerating markdown tables, bold markers, and LaTeX.
func ExtractPredictedGroups(text string) [][]string {
	final := ExtractFinalAnswer(text)
	if final == "" {
		return nil
	}
	if len(final) > predictionWindow {
		final = final[len(final)-predictionWindow:]
	}

	var groups [][]string
	for _, line := range strings.Split(final, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		for _, part := range strings.Split(line, "|") {
			cleaned := strings.ReplaceAll(part, "*", "")
			cleaned = boxedPattern.ReplaceAllString(cleaned, "")
			cleaned = dollarPattern.ReplaceAllString(cleaned, "")
			cleaned = latexCmdPattern.ReplaceAllString(cleaned, "")
			cleaned = strings.NewReplacer("{", "", "}", "").Replace(cleaned)

			wordsPart := cleaned
			if i := strings.Index(cleaned, ":"); i >= 0 {
				wordsPart = cleaned[i+1:]
			}

			words := extractWords(wordsPart)
			if len(words) == 4 && !containsGroup(groups, words) {
				groups = append(groups, words)
				if len(groups) == 4 {
					return groups
				}
			}
		}
	}
	return groups
}

func extractWords(wordsPart string) []string {
	var out []string
	for _, w := range strings.Split(wordsPart, ",") {
		w = openParenPattern.ReplaceAllString(w, "")
		w = parenPattern.ReplaceAllString(w, "")
		w = wordTrimPattern.ReplaceAllString(strings.TrimSpace(w), "")
		// explanatory phrases masquerading as words
		if strings.Count(w, " ") >= 3 {
			continue
		}
		if len(w) > 1 {
			out = append(out, strings.ToUpper(w))
		}
	}
	return out
}

func containsGroup(groups [][]string, candidate []string) bool {
	key := normalizeGroup(candidate)
	for _, g := range groups {
		if normalizeGroup(g) == key {
			return true
		}
	}
	return false
}
