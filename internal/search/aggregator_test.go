package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ndev/ask-go/internal/rag"
)

// stubRetriever returns canned results without touching an index.
type stubRetriever struct {
	chunks []rag.ScoredChunk
	err    error
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, topK int) ([]rag.ScoredChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	if topK < len(s.chunks) {
		return s.chunks[:topK], nil
	}
	return s.chunks, nil
}

// newTestAggregator builds an aggregator whose keyword search always
// degrades (nonexistent rg binary) so tests are independent of the host.
func newTestAggregator(root string, ret Retriever) *Aggregator {
	return NewAggregator(&Config{
		WorkspaceRoot: root,
		RipgrepPath:   "/nonexistent/bin/rg",
		NewRetriever: func(string) (Retriever, error) {
			if ret == nil {
				return nil, errors.New("no retriever")
			}
			return ret, nil
		},
	})
}

// writeTestWorkspace creates a minimal workspace with a README, a source
// file, and directories that must never appear in the listing.
func writeTestWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"README.md":            "# Test Project\n\nThis is a test project.",
		"main.py":              "def main():\n    pass\n",
		".git/HEAD":            "ref: refs/heads/main\n",
		"venv/lib/site.py":     "# virtualenv internals\n",
		"__pycache__/main.pyc": "bytecode",
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

var sectionHeaders = []string{
	"## Query",
	"## Search Snippets",
	"## RAG Snippets",
	"## RAG Status",
	"## Direct File Snippets",
	"## README",
	"## Project File Listing (partial)",
}

func TestAggregate_EndToEnd(t *testing.T) {
	t.Parallel()

	dir := writeTestWorkspace(t)
	agg := newTestAggregator(dir, &stubRetriever{})

	bundle := agg.Aggregate(context.Background(), Request{Query: "test"})

	for _, header := range sectionHeaders {
		if !strings.Contains(bundle, header) {
			t.Errorf("bundle missing section %q", header)
		}
	}
	for _, want := range []string{"README.md", "main.py", "Test Project"} {
		if !strings.Contains(bundle, want) {
			t.Errorf("bundle missing %q", want)
		}
	}
	for _, excluded := range []string{".git", "venv", "__pycache__"} {
		if strings.Contains(bundle, excluded) {
			t.Errorf("bundle must not contain %q", excluded)
		}
	}
	if !strings.Contains(bundle, ragStatusNoMatches) {
		t.Errorf("expected RAG status %q in bundle", ragStatusNoMatches)
	}
}

func TestAggregate_NonexistentWorkspace(t *testing.T) {
	t.Parallel()

	agg := newTestAggregator("", &stubRetriever{})
	bundle := agg.Aggregate(context.Background(), Request{
		Query:         "test",
		WorkspaceRoot: "/nonexistent/path",
	})

	for _, header := range sectionHeaders {
		if !strings.Contains(bundle, header) {
			t.Errorf("bundle missing section %q", header)
		}
	}
	for _, placeholder := range []string{placeholderNoReadme, placeholderNoListing, placeholderNoDirect} {
		if !strings.Contains(bundle, placeholder) {
			t.Errorf("bundle missing placeholder %q", placeholder)
		}
	}
}

func TestAggregate_RAGSnippets(t *testing.T) {
	t.Parallel()

	dir := writeTestWorkspace(t)
	ret := &stubRetriever{chunks: []rag.ScoredChunk{
		{
			Chunk: rag.Chunk{Path: "main.py", StartLine: 1, EndLine: 2, Text: "def main():\n    pass\n"},
			Score: 0.912,
		},
	}}
	agg := newTestAggregator(dir, ret)

	bundle := agg.Aggregate(context.Background(), Request{Query: "main"})

	if !strings.Contains(bundle, "main.py:1-2 (score=0.912)") {
		t.Errorf("expected rendered chunk location in bundle:\n%s", bundle)
	}
	if !strings.Contains(bundle, ragStatusCompleted) {
		t.Errorf("expected RAG status %q", ragStatusCompleted)
	}
}

func TestAggregate_RAGFailureDegrades(t *testing.T) {
	t.Parallel()

	dir := writeTestWorkspace(t)
	agg := newTestAggregator(dir, &stubRetriever{err: errors.New("embedding service unreachable")})

	bundle := agg.Aggregate(context.Background(), Request{Query: "test"})

	if !strings.Contains(bundle, "RAG retrieval failed: embedding service unreachable") {
		t.Errorf("expected failure status in bundle:\n%s", bundle)
	}
	// The rest of the bundle must still be intact.
	if !strings.Contains(bundle, "Test Project") {
		t.Error("README section lost after RAG failure")
	}
}

func TestAggregate_EmptyQuerySkipsRAG(t *testing.T) {
	t.Parallel()

	dir := writeTestWorkspace(t)
	agg := newTestAggregator(dir, &stubRetriever{})

	bundle := agg.Aggregate(context.Background(), Request{Query: ""})

	if !strings.Contains(bundle, ragStatusSkippedEmpty) {
		t.Errorf("expected %q in bundle", ragStatusSkippedEmpty)
	}
	if !strings.Contains(bundle, placeholderNoMatches) {
		t.Errorf("expected %q for empty-query keyword section", placeholderNoMatches)
	}
}

func TestAggregate_RAGDisabledByWorkspaceConfig(t *testing.T) {
	t.Parallel()

	dir := writeTestWorkspace(t)
	cfg := "memory:\n  context_profiles:\n    - id: rag_profile\n      metadata:\n        rag_enabled: false\n"
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "memory.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	agg := newTestAggregator(dir, &stubRetriever{chunks: []rag.ScoredChunk{{Chunk: rag.Chunk{Path: "main.py"}}}})
	bundle := agg.Aggregate(context.Background(), Request{Query: "test"})

	if !strings.Contains(bundle, placeholderNoRAG) {
		t.Errorf("expected %q when RAG is disabled", placeholderNoRAG)
	}
	if strings.Contains(bundle, ragStatusCompleted) {
		t.Error("retriever must not run when RAG is disabled")
	}
}

func TestAggregate_ConfigurationDefaultsFocus(t *testing.T) {
	t.Parallel()

	dir := writeTestWorkspace(t)
	agg := newTestAggregator(dir, &stubRetriever{})

	bundle := agg.Aggregate(context.Background(), Request{
		Query:        "where is logging configured",
		QuestionType: QuestionConfiguration,
	})

	// Configuration questions omit the README.
	if strings.Contains(bundle, "Test Project") {
		t.Error("configuration questions must omit the README body")
	}
	if !strings.Contains(bundle, readmeOmitted) {
		t.Errorf("expected %q in bundle", readmeOmitted)
	}
}
