package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/ndev/ask-go/internal/agent"
	"github.com/ndev/ask-go/internal/provider"
	"github.com/ndev/ask-go/internal/store"
)

// askSession holds the state shared between single-shot questions and the
// interactive REPL: the workspace, the constructed agent, and the session
// focus areas. The agent is rebuilt when /model switches the LLM.
type askSession struct {
	// root is the absolute workspace root questions are answered about.
	root string
	// skipRAG disables semantic retrieval for the whole session.
	skipRAG bool
	// history is the optional conversation store (nil when disabled).
	history store.ConversationStore
	// focus is the session-wide focus override; empty means per-question inference.
	focus []string
	// agent is the current codebase agent. Rebuilt on /model.
	agent *agent.CodebaseAgent
}

// rebuildAgent (re)constructs the chat model, tools and agent from the
// current environment. Called once at session start and again after /model.
func (s *askSession) rebuildAgent(ctx context.Context) error {
	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("initialise model provider: %w", err)
	}

	agg := buildAggregator(s.root, s.skipRAG)

	a, err := agent.New(ctx, &agent.Config{
		ChatModel:     chatModel,
		Tools:         buildTools(agg),
		WorkspaceRoot: s.root,
		History:       s.history,
	})
	if err != nil {
		return fmt.Errorf("initialise agent: %w", err)
	}
	s.agent = a
	return nil
}

// answer sends one question to the agent and streams the response to stdout.
// Focus areas (session override or inferred from the question) are passed as
// a bracketed hint the agent forwards to the search tool.
func (s *askSession) answer(ctx context.Context, question string) error {
	focus := s.focus
	if len(focus) == 0 {
		focus = inferFocusAreas(question)
	}
	if len(focus) > 0 {
		question = fmt.Sprintf("[focus areas: %s]\n\n%s", strings.Join(focus, ", "), question)
	}

	err := s.agent.Query(ctx, question, s.root, os.Stdout)
	fmt.Println()
	return err //nolint:wrapcheck // CLI entry point — error goes directly to cobra
}

// repl runs the interactive read-eval-print loop until /quit or EOF.
func (s *askSession) repl(ctx context.Context) error {
	promptColor := color.New(color.FgCyan, color.Bold)
	infoColor := color.New(color.FgYellow)
	errColor := color.New(color.FgRed)

	infoColor.Printf("ask — workspace %s\n", s.root)
	infoColor.Println("Commands: /model [name], /focus [dirs|clear], /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		promptColor.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err() //nolint:wrapcheck // EOF or terminal error, surfaced as-is
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit" || line == "quit" || line == "exit":
			return nil

		case line == "/model":
			infoColor.Printf("provider: %s\n", getEnvOrDefault("MODEL_PROVIDER", "ollama"))

		case strings.HasPrefix(line, "/model "):
			name := strings.TrimSpace(strings.TrimPrefix(line, "/model "))
			applyModelOverride(name)
			if err := s.rebuildAgent(ctx); err != nil {
				errColor.Printf("model switch failed: %v\n", err)
				continue
			}
			infoColor.Printf("model switched to %s\n", name)

		case line == "/focus":
			if len(s.focus) == 0 {
				infoColor.Println("focus: inferred per question")
			} else {
				infoColor.Printf("focus: %s\n", strings.Join(s.focus, ", "))
			}

		case strings.HasPrefix(line, "/focus "):
			arg := strings.TrimSpace(strings.TrimPrefix(line, "/focus "))
			if arg == "clear" {
				s.focus = nil
				infoColor.Println("focus cleared")
				continue
			}
			s.focus = splitFocusList(arg)
			infoColor.Printf("focus set: %s\n", strings.Join(s.focus, ", "))

		case strings.HasPrefix(line, "/"):
			errColor.Printf("unknown command %q\n", line)

		default:
			if err := s.answer(ctx, line); err != nil {
				errColor.Printf("error: %v\n", err)
			}
		}
	}
}

// splitFocusList parses a comma- or space-separated directory list.
func splitFocusList(arg string) []string {
	fields := strings.FieldsFunc(arg, func(r rune) bool {
		return r == ',' || r == ' '
	})
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// applyModelOverride points the active provider backend at a different model
// by updating the backend's model environment variable. The provider factory
// reads the environment on the next rebuild.
func applyModelOverride(name string) {
	switch getEnvOrDefault("MODEL_PROVIDER", "ollama") {
	case "openai":
		os.Setenv("OPENAI_MODEL", name)
	case "azure":
		os.Setenv("AZURE_OPENAI_DEPLOYMENT", name)
	case "bedrock":
		os.Setenv("BEDROCK_MODEL_ID", name)
	case "gemini":
		os.Setenv("GEMINI_MODEL", name)
	default:
		os.Setenv("OLLAMA_MODEL", name)
	}
}
