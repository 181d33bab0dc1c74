package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestJSONStore_LoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	s := NewJSONStore(filepath.Join(t.TempDir(), ".ask", "rag_index.json"))
	chunks, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected empty result for a missing index, got %d chunks", len(chunks))
	}
}

func TestJSONStore_SaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := NewJSONStore(DefaultIndexPath(root))

	in := []Chunk{
		{
			ID:           "a.go:1-120",
			Path:         "a.go",
			StartLine:    1,
			EndLine:      120,
			Text:         "package a\n",
			Embedding:    []float32{0.1, 0.2, 0.3},
			ModifiedTime: 1700000000.5,
		},
	}
	if err := s.Save(context.Background(), in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(out))
	}
	got := out[0]
	if got.ID != in[0].ID || got.Path != in[0].Path || got.Text != in[0].Text {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.StartLine != 1 || got.EndLine != 120 {
		t.Errorf("line range mismatch: %d-%d", got.StartLine, got.EndLine)
	}
	if len(got.Embedding) != 3 {
		t.Errorf("embedding length mismatch: %d", len(got.Embedding))
	}
	if got.ModifiedTime != 1700000000.5 {
		t.Errorf("modified time mismatch: %v", got.ModifiedTime)
	}
}

func TestJSONStore_SaveZeroesScores(t *testing.T) {
	t.Parallel()

	s := NewJSONStore(DefaultIndexPath(t.TempDir()))

	if err := s.Save(context.Background(), []Chunk{{ID: "a.go:1-1", Path: "a.go", Text: "x", Score: 0.99}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out[0].Score != 0 {
		t.Errorf("persisted score must be zero, got %v", out[0].Score)
	}
}

func TestJSONStore_SaveCreatesStateDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := NewJSONStore(DefaultIndexPath(root))

	if err := s.Save(context.Background(), nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".ask", "rag_index.json")); err != nil {
		t.Errorf("index file not created: %v", err)
	}
}

func TestJSONStore_LoadMalformedIsError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := DefaultIndexPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewJSONStore(path)
	if _, err := s.Load(context.Background()); err == nil {
		t.Error("expected error for malformed index file")
	}
}

func TestDefaultIndexPath_Deterministic(t *testing.T) {
	t.Parallel()

	a := DefaultIndexPath("/ws/project")
	b := DefaultIndexPath("/ws/project")
	if a != b {
		t.Errorf("path must be deterministic: %q vs %q", a, b)
	}
	if filepath.Base(a) != "rag_index.json" || filepath.Base(filepath.Dir(a)) != ".ask" {
		t.Errorf("unexpected layout: %q", a)
	}
}
