// Package mcp exposes a read-only inspection surface over a prepared
// dataset directory via the Model Context Protocol. An agent can ask
// what was generated, pull partition memberships, and re-run the
// leakage check without touching the files.
package mcp

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"connlab/internal/puzzle"
	"connlab/internal/split"
)

// Server wraps the MCP SDK server around one dataset directory.
type Server struct {
	MCPServer *sdkmcp.Server
	DataDir   string
}

// NewServer creates an MCP server with dataset inspection tools rooted
// at dataDir, the output directory of a prepare run.
func NewServer(dataDir string) *Server {
	s := &Server{DataDir: dataDir}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "connlab", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "dataset_status",
		Description: "Summarize the prepared dataset: registry sizes and generated experiment files.",
	}, s.handleDatasetStatus)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_partition",
		Description: "Return the puzzle ids of a named partition (e.g. nyt_test_ids, synthetic_val_ids) from the id registries.",
	}, s.handleGetPartition)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "check_leakage",
		Description: "Re-scan a generated training file and report any ids it shares with the held-out registries.",
	}, s.handleCheckLeakage)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_experiments",
		Description: "List generated experiment files under the data directory with their record counts.",
	}, s.handleListExperiments)
}

// --- Tool input/output types ---

type datasetStatusInput struct{}

type datasetStatusOutput struct {
	DataDir    string         `json:"data_dir"`
	Registries map[string]int `json:"registries"`
	FileCount  int            `json:"file_count"`
}

type getPartitionInput struct {
	Name string `json:"name" jsonschema:"registry key, one of: nyt_test_ids, synthetic_test_ids, unstructured_test_puzzle_ids, nyt_val_ids, synthetic_val_ids, nyt_train_ids, synthetic_train_ids"`
}

type getPartitionOutput struct {
	Name string `json:"name"`
	Size int    `json:"size"`
	IDs  []int  `json:"ids"`
}

type checkLeakageInput struct {
	File   string `json:"file" jsonschema:"path of a generated JSONL file, relative to the data directory"`
	Source string `json:"source" jsonschema:"id space to check against: nyt or synthetic"`
}

type checkLeakageOutput struct {
	File      string `json:"file"`
	Records   int    `json:"records"`
	TestLeaks []int  `json:"test_leaks"`
	ValLeaks  []int  `json:"validation_leaks"`
	Clean     bool   `json:"clean"`
}

type listExperimentsInput struct{}

type experimentFile struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
}

type listExperimentsOutput struct {
	Files []experimentFile `json:"files"`
}

// --- Tool handlers ---

func (s *Server) handleDatasetStatus(ctx context.Context, _ *sdkmcp.CallToolRequest, _ datasetStatusInput) (*sdkmcp.CallToolResult, datasetStatusOutput, error) {
	out := datasetStatusOutput{DataDir: s.DataDir, Registries: map[string]int{}}

	for _, name := range []string{"test_ids.json", "validation_ids.json"} {
		reg, err := s.loadRegistry(name)
		if err != nil {
			continue // registry absent until prepare has run
		}
		for key, ids := range reg {
			out.Registries[key] = len(ids)
		}
	}

	files, err := s.experimentFiles()
	if err != nil {
		return nil, datasetStatusOutput{}, err
	}
	out.FileCount = len(files)
	return nil, out, nil
}

func (s *Server) handleGetPartition(ctx context.Context, _ *sdkmcp.CallToolRequest, input getPartitionInput) (*sdkmcp.CallToolResult, getPartitionOutput, error) {
	for _, name := range []string{"test_ids.json", "validation_ids.json"} {
		reg, err := s.loadRegistry(name)
		if err != nil {
			continue
		}
		if ids, ok := reg[input.Name]; ok {
			return nil, getPartitionOutput{Name: input.Name, Size: len(ids), IDs: ids}, nil
		}
	}
	return nil, getPartitionOutput{}, fmt.Errorf("unknown partition %q", input.Name)
}

func (s *Server) handleCheckLeakage(ctx context.Context, _ *sdkmcp.CallToolRequest, input checkLeakageInput) (*sdkmcp.CallToolResult, checkLeakageOutput, error) {
	if strings.Contains(input.File, "..") {
		return nil, checkLeakageOutput{}, fmt.Errorf("file must be relative to the data directory")
	}

	records, err := puzzle.ReadJSONL(filepath.Join(s.DataDir, input.File))
	if err != nil {
		return nil, checkLeakageOutput{}, fmt.Errorf("read %s: %w", input.File, err)
	}
	fileIDs := split.FromRecords(records)

	testKey, valKey := "nyt_test_ids", "nyt_val_ids"
	if input.Source == "synthetic" {
		testKey, valKey = "synthetic_test_ids", "synthetic_val_ids"
	}

	testIDs, err := s.registryIDs("test_ids.json", testKey)
	if err != nil {
		return nil, checkLeakageOutput{}, err
	}
	valIDs, err := s.registryIDs("validation_ids.json", valKey)
	if err != nil {
		return nil, checkLeakageOutput{}, err
	}

	out := checkLeakageOutput{
		File:      input.File,
		Records:   len(records),
		TestLeaks: fileIDs.Intersect(testIDs).Sorted(),
		ValLeaks:  fileIDs.Intersect(valIDs).Sorted(),
	}
	out.Clean = len(out.TestLeaks) == 0 && len(out.ValLeaks) == 0
	return nil, out, nil
}

func (s *Server) handleListExperiments(ctx context.Context, _ *sdkmcp.CallToolRequest, _ listExperimentsInput) (*sdkmcp.CallToolResult, listExperimentsOutput, error) {
	files, err := s.experimentFiles()
	if err != nil {
		return nil, listExperimentsOutput{}, err
	}
	return nil, listExperimentsOutput{Files: files}, nil
}

// --- helpers ---

func (s *Server) loadRegistry(name string) (split.Registry, error) {
	var reg split.Registry
	if err := puzzle.ReadJSON(filepath.Join(s.DataDir, name), &reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *Server) registryIDs(file, key string) (split.IDSet, error) {
	reg, err := s.loadRegistry(file)
	if err != nil {
		return nil, fmt.Errorf("load registry %s: %w", file, err)
	}
	ids, ok := reg[key]
	if !ok {
		return nil, fmt.Errorf("registry %s has no key %q", file, key)
	}
	return split.NewIDSet(ids...), nil
}

func (s *Server) experimentFiles() ([]experimentFile, error) {
	var files []experimentFile
	err := filepath.WalkDir(s.DataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".jsonl") {
			return nil
		}
		records, err := puzzle.ReadJSONL(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.DataDir, path)
		if err != nil {
			return err
		}
		files = append(files, experimentFile{Path: rel, Records: len(records)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.DataDir, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
