package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/ndev/ask-go/internal/logging"
	"github.com/ndev/ask-go/internal/search"
)

// SearchCodebaseTool is an Eino tool that gathers evidence about a workspace
// for a free-text query: keyword matches, semantic retrieval results, direct
// file excerpts, the README and a partial file listing, merged into one
// structured document.
type SearchCodebaseTool struct {
	// aggregator assembles the evidence bundle.
	aggregator *search.Aggregator
}

// searchInput is the JSON-serialisable input schema for SearchCodebaseTool.
type searchInput struct {
	// Query is the question or search phrase.
	Query string `json:"query"`

	// FocusAreas restricts keyword search to these directories.
	FocusAreas []string `json:"focus_areas,omitempty"`

	// WorkspaceRoot overrides the default workspace directory.
	WorkspaceRoot string `json:"workspace_root,omitempty"`

	// QuestionType tailors the evidence bundle to the question kind.
	QuestionType string `json:"question_type,omitempty"`
}

// NewSearchCodebaseTool constructs a SearchCodebaseTool using the provided
// aggregator.
func NewSearchCodebaseTool(aggregator *search.Aggregator) *SearchCodebaseTool {
	return &SearchCodebaseTool{aggregator: aggregator}
}

// Name returns the tool name registered with the agent.
func (t *SearchCodebaseTool) Name() string { return "search_codebase" }

// Description returns the LLM-facing description of this tool.
func (t *SearchCodebaseTool) Description() string {
	return "Searches the codebase for files and snippets relevant to a query. " +
		"Returns keyword matches, semantic (RAG) matches, directly referenced file excerpts, " +
		"the README and a partial file listing as one structured document. " +
		"For a general query like \"what is this codebase\" it provides the file listing and README content."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *SearchCodebaseTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The question or search phrase to look up in the codebase.",
				Required: true,
			},
			"focus_areas": {
				Type: schema.Array,
				Desc: "Optional directories (relative to the workspace root) to restrict keyword search to.",
				ElemInfo: &schema.ParameterInfo{
					Type: schema.String,
				},
			},
			"workspace_root": {
				Type: schema.String,
				Desc: "Optional workspace directory to search instead of the default.",
			},
			"question_type": {
				Type: schema.String,
				Desc: "Optional question kind: overview, lookup, implementation or configuration. Tailors how much context is returned.",
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string and
// returns the evidence bundle for the agent to consume. Evidence gathering
// never fails as a whole: per-section failures are reported inside the
// bundle itself.
func (t *SearchCodebaseTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input searchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("search_codebase: invalid input: %w", err)
	}

	logging.FromContext(ctx).Debug("tools: searching codebase",
		slog.String("query", input.Query),
		slog.Any("focus_areas", input.FocusAreas),
		slog.String("workspace_root", input.WorkspaceRoot),
		slog.String("question_type", input.QuestionType),
	)

	return t.aggregator.Aggregate(ctx, search.Request{
		Query:         input.Query,
		FocusAreas:    input.FocusAreas,
		WorkspaceRoot: input.WorkspaceRoot,
		QuestionType:  search.ParseQuestionType(input.QuestionType),
	}), nil
}
