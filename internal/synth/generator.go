// Package synth generates synthetic 4x4 word-grouping puzzles from
// categorical word patterns, matching the NYT answer format. Generation
// is driven by an explicit seeded generator so a pattern file and seed
// always reproduce the same puzzle set.
package synth

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"connlab/internal/puzzle"
)

// PatternExample is one candidate answer group within a category:
// a named subgroup and its member words (at least four).
type PatternExample struct {
	Subgroup string   `json:"subgroup"`
	Words    []string `json:"words"`
}

// Pattern is a category of related subgroups.
type Pattern struct {
	Name     string           `json:"name"`
	Examples []PatternExample `json:"examples"`
}

// LoadPatterns reads a JSON array of patterns.
func LoadPatterns(path string) ([]Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("synth: read patterns %q: %w", path, err)
	}
	var patterns []Pattern
	if err := json.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("synth: parse patterns %q: %w", path, err)
	}
	return patterns, nil
}

// Generator draws puzzles from a pattern set.
type Generator struct {
	patterns []Pattern
	rng      *rand.Rand
}

// NewGenerator validates the pattern set and wires the generator.
// At least four categories are needed to fill one puzzle.
func NewGenerator(patterns []Pattern, rng *rand.Rand) (*Generator, error) {
	if len(patterns) < 4 {
		return nil, fmt.Errorf("synth: need at least 4 patterns, have %d", len(patterns))
	}
	return &Generator{patterns: patterns, rng: rng}, nil
}

// Generate builds one puzzle: four groups from four distinct categories,
// four unique words each, no word shared across groups, with shuffled
// difficulty levels 0-3 and members sorted. Returns nil (no error) when
// the random draw cannot satisfy the uniqueness constraints; callers
// simply redraw.
func (g *Generator) Generate(id int, date time.Time) *puzzle.Puzzle {
	selected := g.rng.Perm(len(g.patterns))[:4]

	levels := []int{0, 1, 2, 3}
	g.rng.Shuffle(len(levels), func(i, j int) { levels[i], levels[j] = levels[j], levels[i] })

	used := make(map[string]struct{})
	var groups []puzzle.Group

	for i, pi := range selected {
		p := g.patterns[pi]
		ex := p.Examples[g.rng.Intn(len(p.Examples))]

		var available []string
		seen := make(map[string]struct{})
		for _, w := range ex.Words {
			key := strings.ToUpper(w)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if _, taken := used[key]; !taken {
				available = append(available, key)
			}
		}
		if len(available) < 4 {
			return nil
		}

		g.rng.Shuffle(len(available), func(a, b int) { available[a], available[b] = available[b], available[a] })
		members := available[:4]
		for _, w := range members {
			used[w] = struct{}{}
		}
		sort.Strings(members)

		groups = append(groups, puzzle.Group{
			Level:   levels[i],
			Name:    strings.ToUpper(ex.Subgroup),
			Members: members,
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Level < groups[j].Level })

	return &puzzle.Puzzle{
		ID:      id,
		Date:    date.Format("2006-01-02"),
		Answers: groups,
	}
}

// GenerateSet produces n puzzles with sequential ids starting at 1 and
// consecutive dates starting at startDate. Failed draws are retried up
// to 5n attempts; falling short of n is an error so a thin pattern set
// cannot silently shrink the dataset.
func (g *Generator) GenerateSet(n int, startDate time.Time) ([]puzzle.Puzzle, error) {
	var puzzles []puzzle.Puzzle
	maxAttempts := n * 5
	for attempts := 0; len(puzzles) < n && attempts < maxAttempts; attempts++ {
		p := g.Generate(len(puzzles)+1, startDate.AddDate(0, 0, len(puzzles)))
		if p != nil {
			puzzles = append(puzzles, *p)
		}
	}
	if len(puzzles) < n {
		return nil, fmt.Errorf("synth: generated %d/%d puzzles after %d attempts", len(puzzles), n, maxAttempts)
	}
	return puzzles, nil
}
