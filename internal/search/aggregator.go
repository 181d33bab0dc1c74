// Package search assembles the evidence bundle that grounds every answer.
// Given a free-text query it merges keyword search (ripgrep), semantic
// retrieval, direct file excerpts, the workspace README and a partial file
// listing into one composite document with fixed section headers.
//
// The aggregator degrades section by section: any failure (search utility
// missing, embedding service down, unreadable file) is rendered as an
// explanatory placeholder inside the affected section. Aggregate never
// returns an error — downstream consumers can always rely on the bundle
// shape.
package search

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ndev/ask-go/internal/rag"
)

// Evidence bundle section placeholders.
const (
	placeholderNoMatches    = "No direct matches found for the query."
	placeholderNoRAG        = "RAG disabled or no matches found."
	placeholderRAGAttempted = "RAG retrieval attempted."
	placeholderNoDirect     = "No direct file references found in the query."
	placeholderNoReadme     = "No README file found."
	placeholderNoListing    = "No files were listed."
)

// Semantic retrieval status lines.
const (
	ragStatusCompleted    = "RAG completed."
	ragStatusNoMatches    = "RAG completed (no matches)."
	ragStatusSkippedEmpty = "RAG skipped (empty query)."
	ragNoMatchesBody      = "No RAG matches found."
)

// Retriever is the semantic search dependency of the aggregator. It is
// satisfied by *rag.Indexer.
type Retriever interface {
	// Retrieve returns the chunks most similar to the query, best first.
	Retrieve(ctx context.Context, query string, topK int) ([]rag.ScoredChunk, error)
}

// Config holds the settings for constructing an Aggregator.
type Config struct {
	// WorkspaceRoot is the default workspace when a request names none.
	// Empty means the process working directory.
	WorkspaceRoot string

	// NewRetriever constructs a semantic retriever for the given workspace
	// root. Invoked per request because the workspace can vary per call.
	// Nil disables semantic retrieval; the RAG section reports it as failed.
	NewRetriever func(root string) (Retriever, error)

	// RipgrepPath overrides PATH lookup of the rg binary. Empty means look
	// up "rg" on PATH.
	RipgrepPath string
}

// Aggregator produces evidence bundles for codebase questions.
type Aggregator struct {
	workspaceRoot string
	newRetriever  func(root string) (Retriever, error)
	rgPath        string
}

// NewAggregator constructs an Aggregator from the given config.
func NewAggregator(cfg *Config) *Aggregator {
	return &Aggregator{
		workspaceRoot: cfg.WorkspaceRoot,
		newRetriever:  cfg.NewRetriever,
		rgPath:        cfg.RipgrepPath,
	}
}

// Request describes one evidence-gathering invocation.
type Request struct {
	// Query is the free-text question or search phrase.
	Query string
	// FocusAreas restricts keyword search to these directories (relative to
	// the workspace root, or absolute). Empty means the whole workspace.
	FocusAreas []string
	// WorkspaceRoot overrides the aggregator's default workspace.
	WorkspaceRoot string
	// QuestionType optionally tailors section filtering. Zero value means
	// no filtering.
	QuestionType QuestionType
}

// Aggregate produces the evidence bundle for the request. It never returns
// an error: every failure mode is rendered inside the affected section.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) string {
	root := req.WorkspaceRoot
	if root == "" {
		root = a.workspaceRoot
	}
	if root == "" {
		if cwd, err := os.Getwd(); err == nil {
			root = cwd
		}
	}

	focusAreas := req.FocusAreas
	if req.QuestionType == QuestionConfiguration && len(focusAreas) == 0 {
		focusAreas = []string{"config", "docs"}
	}

	entries := listWorkspace(root)
	listing := renderListing(entries)
	readme := readReadme(root, entries)
	direct := directFileSnippets(req.Query, root)

	settings := LoadRAGSettings(root)
	ragBody, ragStatus := a.semanticSnippets(ctx, req.Query, root, settings)

	var keyword string
	if req.Query != "" {
		keyword = a.keywordSearch(ctx, req.Query, root, focusAreas)
	}

	keyword, readme = applyQuestionFilter(req.QuestionType, keyword, readme)

	sections := []string{
		"## Query\n" + req.Query,
		"## Search Snippets\n" + orPlaceholder(keyword, placeholderNoMatches),
		"## RAG Snippets\n" + orPlaceholder(ragBody, placeholderNoRAG),
		"## RAG Status\n" + orPlaceholder(ragStatus, placeholderRAGAttempted),
		"## Direct File Snippets\n" + orPlaceholder(direct, placeholderNoDirect),
		"## README\n" + orPlaceholder(readme, placeholderNoReadme),
		"## Project File Listing (partial)\n" + orPlaceholder(listing, placeholderNoListing),
	}
	return strings.Join(sections, "\n\n")
}

// semanticSnippets runs semantic retrieval and renders the matched chunks
// plus a status line. Every failure is folded into the status string.
func (a *Aggregator) semanticSnippets(ctx context.Context, query, root string, settings RAGSettings) (body, status string) {
	if !settings.Enabled {
		return "", ""
	}
	if query == "" {
		return "", ragStatusSkippedEmpty
	}
	if a.newRetriever == nil {
		return "", "RAG retrieval failed: no retriever configured"
	}

	retriever, err := a.newRetriever(root)
	if err != nil {
		return "", fmt.Sprintf("RAG retrieval failed: %v", err)
	}

	scored, err := retriever.Retrieve(ctx, query, settings.TopK)
	if err != nil {
		return "", fmt.Sprintf("RAG retrieval failed: %v", err)
	}
	if len(scored) == 0 {
		return ragNoMatchesBody, ragStatusNoMatches
	}

	rendered := make([]string, 0, len(scored))
	for _, sc := range scored {
		rendered = append(rendered, fmt.Sprintf("%s:%d-%d (score=%.3f)\n%s",
			sc.Chunk.Path, sc.Chunk.StartLine, sc.Chunk.EndLine, sc.Score, strings.TrimSpace(sc.Chunk.Text)))
	}
	return strings.Join(rendered, "\n\n"), ragStatusCompleted
}

// orPlaceholder returns s, or the placeholder when s is empty.
func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}
