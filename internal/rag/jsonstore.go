package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// indexFileName is the fixed name of the on-disk index inside the hidden
// per-workspace state directory.
const indexFileName = "rag_index.json"

// stateDirName is the hidden directory under the workspace root that holds
// ask-go's per-workspace state. It is excluded from indexing and listings.
const stateDirName = ".ask"

// DefaultIndexPath returns the canonical index file path for a workspace:
// <root>/.ask/rag_index.json. Repeated calls against the same workspace
// always address the same file.
func DefaultIndexPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, stateDirName, indexFileName)
}

// JSONStore is a ChunkStore backed by a single JSON file. Save performs a
// full overwrite (last full write wins); no partial-write recovery is
// attempted beyond default file I/O semantics.
type JSONStore struct {
	// path is the index file location.
	path string
}

// NewJSONStore constructs a JSONStore at the given path. An empty path
// resolves to DefaultIndexPath of the current working directory.
func NewJSONStore(path string) *JSONStore {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		path = DefaultIndexPath(cwd)
	}
	return &JSONStore{path: path}
}

// Path returns the resolved index file path.
func (s *JSONStore) Path() string { return s.path }

// Load reads the persisted chunk set. A missing index file is not an error —
// it returns an empty slice so first-run callers fall through to a build.
func (s *JSONStore) Load(_ context.Context) ([]Chunk, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jsonstore: read %s: %w", s.path, err)
	}

	var chunks []Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("jsonstore: parse %s: %w", s.path, err)
	}
	return chunks, nil
}

// Save overwrites the index file with the full chunk set, creating parent
// directories as needed. Persisted scores are normalised to zero — they are
// meaningless outside a single retrieval call.
func (s *JSONStore) Save(_ context.Context, chunks []Chunk) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("jsonstore: create %s: %w", filepath.Dir(s.path), err)
	}

	out := make([]Chunk, len(chunks))
	copy(out, chunks)
	for i := range out {
		out[i].Score = 0
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonstore: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("jsonstore: write %s: %w", s.path, err)
	}
	return nil
}
