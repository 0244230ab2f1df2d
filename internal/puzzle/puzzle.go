// Package puzzle defines the data model shared by every stage of the
// pipeline: conversational training records with split-relevant metadata,
// and source puzzles with their answer groups.
//
// This package has no knowledge of partitioning policy. The split and
// experiment packages operate on these types without mutating them.
package puzzle

import (
	"strconv"
	"strings"
)

// Message is one turn of a conversational training example.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Metadata carries the identifiers that partitioning decisions key on.
// OriginalID identifies the underlying puzzle regardless of permutation
// or format variant; it is assigned at generation time and never changes.
//
// Structured files carry original_id directly. Unstructured files carry
// puzzle_id instead, and permuted ids may arrive as strings of the form
// "123_perm2" in raw_id. OriginalID() resolves all three.
type Metadata struct {
	OriginalID  int    `json:"original_id,omitempty"`
	PuzzleID    int    `json:"puzzle_id,omitempty"`
	RawID       string `json:"raw_id,omitempty"`
	Permutation int    `json:"permutation,omitempty"`
	Format      string `json:"format,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Record is one training example: a prompt/solution conversation plus
// the metadata used for leakage-safe splitting.
type Record struct {
	Messages []Message `json:"messages"`
	Metadata Metadata  `json:"metadata"`
}

// OriginalID resolves the record's stable puzzle identifier.
// Falls back from original_id to puzzle_id, then to a numeric prefix of
// raw_id ("123_perm2" resolves to 123). Returns 0 when no id is present.
func (r Record) OriginalID() int {
	if r.Metadata.OriginalID != 0 {
		return r.Metadata.OriginalID
	}
	if r.Metadata.PuzzleID != 0 {
		return r.Metadata.PuzzleID
	}
	if raw := r.Metadata.RawID; raw != "" {
		head, _, _ := strings.Cut(raw, "_")
		if n, err := strconv.Atoi(head); err == nil {
			return n
		}
	}
	return 0
}

// Group is one answer group of a puzzle: four members under a category
// name, with a difficulty level (0 easiest, 3 hardest).
type Group struct {
	Level   int      `json:"level"`
	Name    string   `json:"group"`
	Members []string `json:"members"`
}

// Puzzle is a source puzzle with its full answer key.
type Puzzle struct {
	ID      int     `json:"id"`
	Date    string  `json:"date,omitempty"`
	Answers []Group `json:"answers"`
}
