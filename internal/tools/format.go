package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// FormatResponseTool is an Eino tool that renders an analyzed question and
// its supporting snippets into the final three-section answer layout. It
// performs no retrieval of its own.
type FormatResponseTool struct{}

// formatInput is the JSON-serialisable input schema for FormatResponseTool.
type formatInput struct {
	// OriginalQuestion is the user's question verbatim.
	OriginalQuestion string `json:"original_question"`

	// Analysis is the agent's natural-language analysis.
	Analysis string `json:"analysis"`

	// CodeSnippets holds the supporting code or information excerpts.
	CodeSnippets string `json:"code_snippets"`

	// WorkspaceRoot is the workspace the answer refers to (informational).
	WorkspaceRoot string `json:"workspace_root,omitempty"`
}

// NewFormatResponseTool constructs a FormatResponseTool.
func NewFormatResponseTool() *FormatResponseTool {
	return &FormatResponseTool{}
}

// Name returns the tool name registered with the agent.
func (t *FormatResponseTool) Name() string { return "format_response" }

// Description returns the LLM-facing description of this tool.
func (t *FormatResponseTool) Description() string {
	return "Formats the analyzed question and code snippets into a coherent answer for the user, " +
		"with the question, analysis and supporting code presented as separate sections."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *FormatResponseTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"original_question": {
				Type:     schema.String,
				Desc:     "The user's original question, verbatim.",
				Required: true,
			},
			"analysis": {
				Type:     schema.String,
				Desc:     "The analysis of the question based on gathered evidence.",
				Required: true,
			},
			"code_snippets": {
				Type:     schema.String,
				Desc:     "Supporting code or information excerpts with citations.",
				Required: true,
			},
			"workspace_root": {
				Type: schema.String,
				Desc: "Optional workspace directory the answer refers to.",
			},
		}),
	}, nil
}

// InvokableRun renders the three answer sections in fixed order.
func (t *FormatResponseTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input formatInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("format_response: invalid input: %w", err)
	}

	return fmt.Sprintf("## Your Question:\n%s\n\n## Agent Analysis:\n%s\n\n## Relevant Code/Information:\n%s\n\n",
		input.OriginalQuestion, input.Analysis, input.CodeSnippets), nil
}
