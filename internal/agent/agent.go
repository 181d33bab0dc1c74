// Package agent wires together the Eino ChatModelAgent with the codebase
// search tools to form the core ask assistant. The agent handles the full
// ReAct loop: it decides when to gather evidence via search_codebase, when
// to format an answer, and when to respond directly.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/ndev/ask-go/internal/budget"
	"github.com/ndev/ask-go/internal/logging"
	"github.com/ndev/ask-go/internal/store"
)

// systemPrompt is the base system prompt injected into every conversation.
// It establishes the evidence hierarchy and the citation discipline: every
// claim about the codebase must be grounded in a snippet the tools returned.
const systemPrompt = `You are ask, an assistant that answers questions about the codebase in the
user's workspace. You never answer from memory of similar projects — you gather
evidence first.

## How You Work

For every question about the codebase, call the search_codebase tool with the
user's question as the query. The tool returns a structured evidence document
with these sections: Query, Search Snippets, RAG Snippets, RAG Status, Direct
File Snippets, README, and a partial Project File Listing. Pass focus_areas
when the question names specific directories, and question_type (overview,
lookup, implementation or configuration) when the kind of question is clear.

## Ground Rules for Answering

- If Direct File Snippets exist, answer ONLY from those and cite their
  paths/line ranges exactly.
- Otherwise, use RAG Snippets; cite their paths/line ranges exactly.
- Otherwise, use Search Snippets; cite file paths/lines if present.
- If nothing usable is available, say so explicitly; do NOT invent details or
  rely on the README alone.

Always include a short RAG status if present. Every claim must include an
inline citation of the form path:line-range taken from the provided snippets
(e.g. internal/server/server.go:56-67). If you cannot cite, say so and stop;
do not guess or invent line numbers.

Keep answers to 1-2 short paragraphs unless the user asks for more detail.
Use the format_response tool when the user benefits from a structured answer
with separate analysis and code sections.`

// Config holds the dependencies required to construct a CodebaseAgent.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Tools is the list of codebase tools available to the agent.
	Tools []tool.BaseTool

	// WorkspaceRoot is the workspace the agent answers questions about.
	// Injected into the context so the LLM passes it to tool calls.
	WorkspaceRoot string

	// History is the optional conversation store used to persist and replay
	// prior turns. If nil, each query is stateless.
	History store.ConversationStore

	// HistoryDepth is the number of prior turns (user+assistant pairs) to
	// inject per query. Defaults to 10 if zero.
	HistoryDepth int

	// MaxContextTokens is the estimated token budget for the full input
	// context (system prompt + history + user message). History is trimmed
	// oldest-first to fit. Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// CodebaseAgent wraps the Eino ReAct agent with the question-answering
// behaviour: evidence gathering via tools, history replay and persistence.
type CodebaseAgent struct {
	// reactAgent is the underlying Eino ReAct loop agent.
	reactAgent *react.Agent

	// workspaceRoot is the workspace the agent answers questions about.
	workspaceRoot string

	// history is the optional conversation store for multi-turn context.
	history store.ConversationStore

	// historyDepth is the number of recent messages to inject per query.
	historyDepth int

	// maxContextTokens is the estimated token budget for the full input context.
	maxContextTokens int
}

// New constructs a CodebaseAgent from the provided Config.
func New(ctx context.Context, cfg *Config) (*CodebaseAgent, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}

	agentCfg := &react.AgentConfig{
		ToolCallingModel: cfg.ChatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: cfg.Tools,
		},
	}

	reactAgent, err := react.NewAgent(ctx, agentCfg)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create ReAct agent: %w", err)
	}

	depth := cfg.HistoryDepth
	if depth <= 0 {
		depth = 10
	}

	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &CodebaseAgent{
		reactAgent:       reactAgent,
		workspaceRoot:    cfg.WorkspaceRoot,
		history:          cfg.History,
		historyDepth:     depth,
		maxContextTokens: maxCtx,
	}, nil
}

// Query sends a user question to the agent and streams the response to the
// provided writer. If a conversation store is configured, prior turns are
// injected and the new question and answer are persisted after completion.
func (a *CodebaseAgent) Query(ctx context.Context, userMessage, workspaceDir string, w io.Writer) error {
	messages := a.buildMessages(ctx, userMessage, workspaceDir)

	sr, err := a.reactAgent.Stream(ctx, messages)
	if err != nil {
		return fmt.Errorf("agent: stream failed: %w", err)
	}
	defer sr.Close()

	var msgBuf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("agent: stream receive error: %w", err)
		}
		if msg != nil && msg.Content != "" {
			msgBuf.WriteString(msg.Content)
			if _, err := fmt.Fprint(w, msg.Content); err != nil {
				return fmt.Errorf("agent: write error: %w", err)
			}
		}
	}

	// Persist the turn to the conversation store (non-fatal on error).
	if a.history != nil {
		if err := a.history.Append(ctx, workspaceDir, store.RoleUser, userMessage); err != nil {
			logging.FromContext(ctx).Warn("history: failed to persist user message", slog.Any("error", err))
		}
		if err := a.history.Append(ctx, workspaceDir, store.RoleAssistant, msgBuf.String()); err != nil {
			logging.FromContext(ctx).Warn("history: failed to persist assistant message", slog.Any("error", err))
		}
	}

	return nil
}

// buildMessages constructs the message slice for the agent: system prompt,
// trimmed conversation history, workspace context and the current question.
func (a *CodebaseAgent) buildMessages(ctx context.Context, userMessage, workspaceDir string) []*schema.Message {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
	}

	// Inject recent conversation history so the LLM has multi-turn context.
	// History is trimmed oldest-first to stay within the token budget.
	var historyMsgs []*schema.Message
	if a.history != nil {
		prior, err := a.history.Recent(ctx, workspaceDir, a.historyDepth*2)
		if err != nil {
			logging.FromContext(ctx).Warn("history: failed to load prior messages", slog.Any("error", err))
		} else {
			for _, m := range prior {
				switch m.Role {
				case store.RoleUser:
					historyMsgs = append(historyMsgs, schema.UserMessage(m.Content))
				case store.RoleAssistant:
					historyMsgs = append(historyMsgs, schema.AssistantMessage(m.Content, nil))
				}
			}
		}
	}

	// Tell the LLM which workspace the question is about so it passes
	// workspace_root on tool calls instead of defaulting to the server's cwd.
	root := workspaceDir
	if root == "" {
		root = a.workspaceRoot
	}
	if root != "" {
		messages = append(messages, schema.SystemMessage(
			"The user's workspace root is "+root+". Pass this as workspace_root when calling search_codebase."))
	}

	// Add the current user message to the fixed set for budget calculation.
	fixed := append(messages, schema.UserMessage(userMessage)) //nolint:gocritic // intentional copy

	// Trim history oldest-first so the total estimated token count fits within
	// the configured context budget.
	before := len(historyMsgs)
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, a.maxContextTokens)
	if dropped := before - len(historyMsgs); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(historyMsgs)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	// Insert trimmed history between the system prompt and the rest of the
	// fixed messages (workspace context, user message).
	result := make([]*schema.Message, 0, len(messages)+len(historyMsgs)+1)
	result = append(result, messages[0])     // system prompt
	result = append(result, historyMsgs...)  // trimmed history
	result = append(result, messages[1:]...) // workspace context
	result = append(result, schema.UserMessage(userMessage))
	return result
}
