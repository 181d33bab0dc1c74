package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// stubEmbedder produces deterministic 2-dimensional vectors from keyword
// content: texts mentioning "alpha" point along the x axis, texts mentioning
// "beta" along the y axis, everything else sits between them. It also counts
// how many texts were embedded so incremental tests can assert the delta.
type stubEmbedder struct {
	// embedded accumulates every text passed to Embed, in call order.
	embedded []string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		s.embedded = append(s.embedded, t)
		switch {
		case strings.Contains(t, "alpha"):
			out = append(out, []float32{1, 0})
		case strings.Contains(t, "beta"):
			out = append(out, []float32{0, 1})
		default:
			out = append(out, []float32{0.7, 0.7})
		}
	}
	return out, nil
}

// failingEmbedder always errors, for propagation tests.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding service down")
}

// newTestIndexer builds an Indexer over a fresh temp workspace with the given
// files, backed by a JSONStore inside the workspace and a stubEmbedder.
func newTestIndexer(t *testing.T, files map[string]string) (*Indexer, *stubEmbedder, string) {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}

	emb := &stubEmbedder{}
	ix, err := NewIndexer(&Config{
		WorkspaceRoot: root,
		Embedder:      emb,
		Store:         NewJSONStore(DefaultIndexPath(root)),
	})
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	return ix, emb, root
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewIndexer_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewIndexer(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewIndexer(&Config{WorkspaceRoot: "/ws"}); err == nil {
		t.Error("expected error for missing embedder")
	}
	if _, err := NewIndexer(&Config{WorkspaceRoot: "/ws", Embedder: &stubEmbedder{}}); err == nil {
		t.Error("expected error for missing store")
	}
}

// ---------------------------------------------------------------------------
// Chunking
// ---------------------------------------------------------------------------

func TestChunkFile_WindowBoundaries(t *testing.T) {
	t.Parallel()

	// 250 lines with a 120-line window must produce windows 1-120, 121-240,
	// 241-250.
	var sb strings.Builder
	for i := 1; i <= 250; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	ix, _, root := newTestIndexer(t, map[string]string{"big.go": sb.String()})

	chunks, err := ix.chunkFile(filepath.Join(root, "big.go"), "big.go", 0)
	if err != nil {
		t.Fatalf("chunkFile: %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantBounds := [][2]int{{1, 120}, {121, 240}, {241, 250}}
	for i, c := range chunks {
		if c.StartLine != wantBounds[i][0] || c.EndLine != wantBounds[i][1] {
			t.Errorf("chunk %d: expected lines %d-%d, got %d-%d",
				i, wantBounds[i][0], wantBounds[i][1], c.StartLine, c.EndLine)
		}
		wantID := fmt.Sprintf("big.go:%d-%d", wantBounds[i][0], wantBounds[i][1])
		if c.ID != wantID {
			t.Errorf("chunk %d: expected ID %q, got %q", i, wantID, c.ID)
		}
	}

	// Concatenating the chunk texts must reconstruct the file.
	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Text)
	}
	if joined.String() != sb.String() {
		t.Error("concatenated chunks do not reconstruct the file")
	}
}

func TestChunkFile_SkipsBlankWindows(t *testing.T) {
	t.Parallel()

	ix, _, root := newTestIndexer(t, map[string]string{"blank.md": strings.Repeat("\n", 300)})

	chunks, err := ix.chunkFile(filepath.Join(root, "blank.md"), "blank.md", 0)
	if err != nil {
		t.Fatalf("chunkFile: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for a blank file, got %d", len(chunks))
	}
}

// ---------------------------------------------------------------------------
// Full build
// ---------------------------------------------------------------------------

func TestBuildIndex_WalksEligibleFilesOnly(t *testing.T) {
	t.Parallel()

	ix, _, _ := newTestIndexer(t, map[string]string{
		"main.go":               "package main // alpha\n",
		"docs/guide.md":         "beta notes\n",
		"binary.bin":            "not indexed\n",
		".git/config":           "excluded\n",
		"node_modules/x/y.json": "excluded\n",
		"__pycache__/m.py":      "excluded\n",
	})

	chunks, err := ix.BuildIndex(context.Background())
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	paths := map[string]bool{}
	for _, c := range chunks {
		paths[c.Path] = true
	}
	if !paths["main.go"] || !paths["docs/guide.md"] {
		t.Errorf("expected main.go and docs/guide.md indexed, got %v", paths)
	}
	if paths["binary.bin"] || paths[".git/config"] || paths["node_modules/x/y.json"] || paths["__pycache__/m.py"] {
		t.Errorf("excluded files leaked into the index: %v", paths)
	}

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %s has no embedding", c.ID)
		}
	}
}

func TestBuildIndex_EmbedFailurePropagates(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ix, err := NewIndexer(&Config{
		WorkspaceRoot: root,
		Embedder:      failingEmbedder{},
		Store:         NewJSONStore(DefaultIndexPath(root)),
	})
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}

	if _, err := ix.BuildIndex(context.Background()); err == nil {
		t.Error("expected embed failure to propagate")
	}
}

// ---------------------------------------------------------------------------
// Incremental build
// ---------------------------------------------------------------------------

func TestBuildIndexIncremental_OnlyChangedFilesReEmbedded(t *testing.T) {
	t.Parallel()

	ix, emb, root := newTestIndexer(t, map[string]string{
		"stable.go":  "package stable // alpha\n",
		"changed.go": "package changed // beta\n",
	})

	if _, err := ix.BuildIndex(context.Background()); err != nil {
		t.Fatalf("initial build: %v", err)
	}
	emb.embedded = nil

	// Touch only changed.go with a strictly newer mtime.
	future := time.Now().Add(10 * time.Second)
	changed := filepath.Join(root, "changed.go")
	if err := os.WriteFile(changed, []byte("package changed // beta v2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(changed, future, future); err != nil {
		t.Fatal(err)
	}

	merged, err := ix.BuildIndexIncremental(context.Background())
	if err != nil {
		t.Fatalf("incremental build: %v", err)
	}

	if len(emb.embedded) != 1 || !strings.Contains(emb.embedded[0], "beta v2") {
		t.Errorf("expected exactly the changed file to be re-embedded, got %v", emb.embedded)
	}

	// Both files must still be present in the merged index.
	paths := map[string]bool{}
	for _, c := range merged {
		paths[c.Path] = true
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %s lost its embedding across the merge", c.ID)
		}
	}
	if !paths["stable.go"] || !paths["changed.go"] {
		t.Errorf("merged index missing files: %v", paths)
	}
}

func TestBuildIndexIncremental_DropsDeletedFiles(t *testing.T) {
	t.Parallel()

	ix, _, root := newTestIndexer(t, map[string]string{
		"keep.go":   "package keep\n",
		"remove.go": "package remove\n",
	})

	if _, err := ix.BuildIndex(context.Background()); err != nil {
		t.Fatalf("initial build: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "remove.go")); err != nil {
		t.Fatal(err)
	}

	merged, err := ix.BuildIndexIncremental(context.Background())
	if err != nil {
		t.Fatalf("incremental build: %v", err)
	}
	for _, c := range merged {
		if c.Path == "remove.go" {
			t.Error("deleted file still present in merged index")
		}
	}
}

func TestBuildIndexIncremental_IdempotentWhenUnchanged(t *testing.T) {
	t.Parallel()

	ix, emb, root := newTestIndexer(t, map[string]string{
		"alpha.go": "package alpha\n",
		"beta.go":  "package beta\n",
	})
	ctx := context.Background()

	if _, err := ix.BuildIndexIncremental(ctx); err != nil {
		t.Fatalf("first incremental build: %v", err)
	}
	firstBytes, err := os.ReadFile(DefaultIndexPath(root))
	if err != nil {
		t.Fatalf("read index after first build: %v", err)
	}
	embedsAfterFirst := len(emb.embedded)
	if embedsAfterFirst == 0 {
		t.Fatal("first build embedded nothing")
	}

	// A second run over the untouched workspace must carry every chunk
	// forward: no re-embedding, and the persisted index byte-identical.
	if _, err := ix.BuildIndexIncremental(ctx); err != nil {
		t.Fatalf("second incremental build: %v", err)
	}
	if len(emb.embedded) != embedsAfterFirst {
		t.Errorf("second run re-embedded %d texts, want 0", len(emb.embedded)-embedsAfterFirst)
	}
	secondBytes, err := os.ReadFile(DefaultIndexPath(root))
	if err != nil {
		t.Fatalf("read index after second build: %v", err)
	}
	if string(firstBytes) != string(secondBytes) {
		t.Error("persisted index changed across a no-op incremental build")
	}
}

// ---------------------------------------------------------------------------
// Retrieval
// ---------------------------------------------------------------------------

func TestRetrieve_RanksBySimilarity(t *testing.T) {
	t.Parallel()

	ix, _, _ := newTestIndexer(t, map[string]string{
		"alpha.go": "package alpha\n",
		"beta.go":  "package beta\n",
	})
	if _, err := ix.BuildIndex(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}

	results, err := ix.Retrieve(context.Background(), "tell me about alpha", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.Path != "alpha.go" {
		t.Errorf("expected alpha.go ranked first, got %s (score %.3f)",
			results[0].Chunk.Path, results[0].Score)
	}
	if results[0].Score < results[1].Score {
		t.Error("results are not sorted by descending score")
	}
}

func TestRetrieve_TopKCapsResults(t *testing.T) {
	t.Parallel()

	ix, _, _ := newTestIndexer(t, map[string]string{
		"a.go": "package a // alpha\n",
		"b.go": "package b // beta\n",
		"c.md": "gamma notes\n",
	})
	if _, err := ix.BuildIndex(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}

	results, err := ix.Retrieve(context.Background(), "alpha", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected topK=1 to cap results, got %d", len(results))
	}
}

func TestRetrieve_EmptyIndexBuildsFirst(t *testing.T) {
	t.Parallel()

	ix, emb, _ := newTestIndexer(t, map[string]string{"a.go": "package a // alpha\n"})

	// No prior BuildIndex call — Retrieve must build on demand.
	results, err := ix.Retrieve(context.Background(), "alpha", DefaultTopK)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results after on-demand build")
	}
	if len(emb.embedded) == 0 {
		t.Error("expected the on-demand build to embed chunks")
	}
}

// ---------------------------------------------------------------------------
// Staleness and EnsureIndex
// ---------------------------------------------------------------------------

func TestIsIndexStale_FreshAndModified(t *testing.T) {
	t.Parallel()

	ix, _, root := newTestIndexer(t, map[string]string{"a.go": "package a\n"})
	chunks, err := ix.BuildIndex(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if ix.IsIndexStale(chunks) {
		t.Error("freshly built index must not be stale")
	}

	future := time.Now().Add(10 * time.Second)
	if err := os.Chtimes(filepath.Join(root, "a.go"), future, future); err != nil {
		t.Fatal(err)
	}
	if !ix.IsIndexStale(chunks) {
		t.Error("index must be stale after the file's mtime advances")
	}
}

func TestIsIndexStale_DeletedFile(t *testing.T) {
	t.Parallel()

	ix, _, root := newTestIndexer(t, map[string]string{"a.go": "package a\n"})
	chunks, err := ix.BuildIndex(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "a.go")); err != nil {
		t.Fatal(err)
	}
	if !ix.IsIndexStale(chunks) {
		t.Error("index must be stale after an indexed file is deleted")
	}
}

func TestIsIndexStale_EmptyIsStale(t *testing.T) {
	t.Parallel()

	ix, _, _ := newTestIndexer(t, nil)
	if !ix.IsIndexStale(nil) {
		t.Error("an empty chunk set is always stale")
	}
}

func TestCountEligibleFiles_StopsAtLimit(t *testing.T) {
	t.Parallel()

	files := map[string]string{}
	for i := 0; i < 10; i++ {
		files[fmt.Sprintf("f%d.go", i)] = "package f\n"
	}
	ix, _, _ := newTestIndexer(t, files)

	if n := ix.CountEligibleFiles(5); n != 6 {
		t.Errorf("expected count to stop at limit+1 (6), got %d", n)
	}
	if n := ix.CountEligibleFiles(100); n != 10 {
		t.Errorf("expected exact count 10 under the limit, got %d", n)
	}
}

func TestEnsureIndex_BuildsWhenMissing(t *testing.T) {
	t.Parallel()

	ix, emb, _ := newTestIndexer(t, map[string]string{"a.go": "package a\n"})

	if err := ix.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if len(emb.embedded) == 0 {
		t.Error("expected a first-run EnsureIndex to build the index")
	}
}

func TestEnsureIndex_NoopWhenFresh(t *testing.T) {
	t.Parallel()

	ix, emb, _ := newTestIndexer(t, map[string]string{"a.go": "package a\n"})
	if _, err := ix.BuildIndex(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	emb.embedded = nil

	if err := ix.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if len(emb.embedded) != 0 {
		t.Errorf("fresh index must not trigger re-embedding, embedded %v", emb.embedded)
	}
}
