package search

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirectFileSnippets_ResolvesNamedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte("def main():\n    pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := directFileSnippets("what does main.py do", dir)

	if !strings.Contains(got, "main.py:1-2") {
		t.Errorf("expected location header, got:\n%s", got)
	}
	if !strings.Contains(got, "1: def main():") {
		t.Errorf("expected numbered first line, got:\n%s", got)
	}
}

func TestDirectFileSnippets_DefaultRoots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "docs", "setup.md"), []byte("# Setup\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := directFileSnippets("explain setup.md", dir)

	if !strings.Contains(got, "docs/setup.md:1-1") {
		t.Errorf("expected resolution via docs/, got:\n%s", got)
	}
}

func TestDirectFileSnippets_DeduplicatesByRealPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := directFileSnippets("compare notes.txt with notes.txt", dir)

	if n := strings.Count(got, "notes.txt:1-1"); n != 1 {
		t.Errorf("file excerpted %d times, want 1:\n%s", n, got)
	}
}

func TestDirectFileSnippets_DedupHitTriesNextCandidate(t *testing.T) {
	t.Parallel()

	// docs/a.md is excerpted via its explicit path. The bare "a.md" token
	// then resolves to docs/a.md first, which is already excerpted; the
	// remaining candidate directories must still be tried so tests/a.md
	// gets its own excerpt.
	dir := t.TempDir()
	for _, rel := range []string{"docs/a.md", "tests/a.md"} {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("content of "+rel+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got := directFileSnippets("compare docs/a.md with a.md", dir)

	if !strings.Contains(got, "docs/a.md:1-1") {
		t.Errorf("expected docs/a.md excerpt, got:\n%s", got)
	}
	if !strings.Contains(got, "tests/a.md:1-1") {
		t.Errorf("expected tests/a.md excerpt after the dedup hit, got:\n%s", got)
	}
}

func TestDirectFileSnippets_NoReferences(t *testing.T) {
	t.Parallel()

	if got := directFileSnippets("how does authentication work", t.TempDir()); got != "" {
		t.Errorf("expected empty result, got:\n%s", got)
	}
}

func TestDirectFileSnippets_RetrievalFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "docs", "architecture.md"), []byte("# Architecture\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := directFileSnippets("how does retrieval work here", dir)

	if !strings.Contains(got, "docs/architecture.md:1-1") {
		t.Errorf("expected fallback contextual excerpt, got:\n%s", got)
	}
}

func TestDirectFileSnippets_CapsAt200Lines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteString("line\n")
	}
	if err := os.WriteFile(filepath.Join(dir, "big.txt"), []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	got := directFileSnippets("show big.txt", dir)

	if !strings.Contains(got, "big.txt:1-200") {
		t.Errorf("expected 200-line cap in header, got header line: %s", strings.SplitN(got, "\n", 2)[0])
	}
	if strings.Contains(got, "201:") {
		t.Error("excerpt exceeded 200 lines")
	}
}

func TestListWorkspace_ExcludesSkippedDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, rel := range []string{"src/app.go", ".git/HEAD", "node_modules/pkg/index.js", "__pycache__/x.pyc"} {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries := listWorkspace(dir)
	joined := strings.Join(entries, "\n")

	if !strings.Contains(joined, "src/app.go") {
		t.Errorf("listing missing src/app.go: %v", entries)
	}
	for _, excluded := range []string{".git", "node_modules", "__pycache__"} {
		if strings.Contains(joined, excluded) {
			t.Errorf("listing must not contain %q: %v", excluded, entries)
		}
	}
}

func TestRenderListing_Cap(t *testing.T) {
	t.Parallel()

	entries := make([]string, 250)
	for i := range entries {
		entries[i] = "file.txt"
	}

	got := renderListing(entries)

	if !strings.Contains(got, "... and 50 more files") {
		t.Errorf("expected omitted-count suffix, got tail: %q", got[len(got)-40:])
	}
}
