package puzzle

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ReadJSONL loads newline-delimited JSON records from path.
// Blank lines are skipped; a malformed line is a hard error because a
// silently dropped record would change downstream split sizes.
func ReadJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("puzzle: open %q: %w", path, err)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		data := sc.Bytes()
		if len(data) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("puzzle: %s:%d: %w", path, line, err)
		}
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("puzzle: scan %q: %w", path, err)
	}
	return records, nil
}

// WriteJSONL writes records to path as newline-delimited JSON, creating
// parent directories. The file is always regenerated wholesale; emitted
// datasets are never patched in place.
func WriteJSONL(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("puzzle: create dir for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("puzzle: create %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return fmt.Errorf("puzzle: encode record %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("puzzle: flush %q: %w", path, err)
	}
	return nil
}

// ReadPuzzles loads a JSON array of source puzzles.
func ReadPuzzles(path string) ([]Puzzle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("puzzle: read %q: %w", path, err)
	}
	var puzzles []Puzzle
	if err := json.Unmarshal(data, &puzzles); err != nil {
		return nil, fmt.Errorf("puzzle: unmarshal %q: %w", path, err)
	}
	return puzzles, nil
}

// WriteJSON writes v as indented JSON, creating parent directories.
// Used for id registries and run manifests.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("puzzle: marshal %q: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("puzzle: create dir for %q: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("puzzle: write %q: %w", path, err)
	}
	return nil
}

// ReadJSON loads indented JSON written by WriteJSON back into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("puzzle: read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("puzzle: unmarshal %q: %w", path, err)
	}
	return nil
}
