package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ndev/ask-go/internal/search"
)

func TestFormatResponse_SectionOrder(t *testing.T) {
	t.Parallel()

	ft := NewFormatResponseTool()
	args, _ := json.Marshal(formatInput{
		OriginalQuestion: "Q",
		Analysis:         "A",
		CodeSnippets:     "S",
	})

	out, err := ft.InvokableRun(context.Background(), string(args))
	if err != nil {
		t.Fatalf("InvokableRun failed: %v", err)
	}

	qIdx := strings.Index(out, "## Your Question:\nQ")
	aIdx := strings.Index(out, "## Agent Analysis:\nA")
	sIdx := strings.Index(out, "## Relevant Code/Information:\nS")
	if qIdx < 0 || aIdx < 0 || sIdx < 0 {
		t.Fatalf("missing section in output:\n%s", out)
	}
	if !(qIdx < aIdx && aIdx < sIdx) {
		t.Errorf("sections out of order: q=%d a=%d s=%d", qIdx, aIdx, sIdx)
	}
}

func TestFormatResponse_InvalidInput(t *testing.T) {
	t.Parallel()

	ft := NewFormatResponseTool()
	if _, err := ft.InvokableRun(context.Background(), "{not json"); err == nil {
		t.Fatal("expected error for invalid JSON input")
	}
}

func TestSearchCodebase_InvokableRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Demo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	st := NewSearchCodebaseTool(search.NewAggregator(&search.Config{
		WorkspaceRoot: dir,
		RipgrepPath:   "/nonexistent/bin/rg",
	}))

	args, _ := json.Marshal(searchInput{Query: "demo"})
	out, err := st.InvokableRun(context.Background(), string(args))
	if err != nil {
		t.Fatalf("InvokableRun failed: %v", err)
	}

	for _, header := range []string{"## Query", "## README", "## Project File Listing (partial)"} {
		if !strings.Contains(out, header) {
			t.Errorf("output missing section %q", header)
		}
	}
	if !strings.Contains(out, "Demo") {
		t.Error("output missing README content")
	}
}

func TestSearchCodebase_Info(t *testing.T) {
	t.Parallel()

	st := NewSearchCodebaseTool(search.NewAggregator(&search.Config{}))
	info, err := st.Info(context.Background())
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Name != "search_codebase" {
		t.Errorf("tool name: got %q, want %q", info.Name, "search_codebase")
	}
}
