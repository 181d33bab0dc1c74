package commands

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/ndev/ask-go/internal/logging"
	"github.com/ndev/ask-go/internal/tracing"
)

// NewAskCmd constructs the `ask ask` command, the default way to question the
// agent. With a question argument it answers once and exits; without one it
// drops into the interactive REPL.
func NewAskCmd() *cobra.Command {
	var dir string
	var skipRAG bool
	var modelOverride string
	var focusAreas []string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the codebase (interactive REPL when no question is given)",
		Long: `Ask the agent a natural language question about the workspace codebase.

The agent gathers evidence before answering: ripgrep keyword search, semantic
retrieval over the embedding index, direct excerpts of files the question
names, the README and the project file listing. Answers cite file paths and
line ranges.

When no question is given an interactive REPL starts. Inside the REPL,
/model switches the LLM, /focus restricts keyword search to directories,
and /quit exits.

Examples:
  ask ask "how does the indexer decide a file is stale?"
  ask ask --dir ~/src/service "where is the retry budget configured?"
  ask ask --focus config,docs "which env vars control logging?"
  ask ask --skip-rag "what does cmd/ask/main.go do?"
  ask ask`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			root, err := resolveWorkspaceRoot(dir)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			if modelOverride != "" {
				applyModelOverride(modelOverride)
			}

			// Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			}

			// Bring the semantic index up to date before the first question.
			// Failures downgrade to warnings — answering must never block on
			// the embedding service.
			if !skipRAG {
				ensureIndexForWorkspace(ctx, root, log)
			}

			hist, closeHist := openHistory(log)
			defer closeHist()

			session := &askSession{
				root:    root,
				skipRAG: skipRAG,
				history: hist,
				focus:   focusAreas,
			}
			if err := session.rebuildAgent(ctx); err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			if len(args) == 0 {
				return session.repl(ctx)
			}
			return session.answer(ctx, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Workspace directory to answer questions about (default: current directory)")
	cmd.Flags().BoolVar(&skipRAG, "skip-rag", false, "Skip semantic retrieval and the startup index refresh")
	cmd.Flags().StringVarP(&modelOverride, "model", "m", "", "Override the model for the active provider (e.g. llama3:70b, gpt-4o)")
	cmd.Flags().StringSliceVarP(&focusAreas, "focus", "f", nil, "Directories to focus keyword search on (default: inferred from the question)")

	return cmd
}
