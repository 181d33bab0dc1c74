package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ndev/ask-go/internal/embedder"
	"github.com/ndev/ask-go/internal/logging"
)

// NewIndexCmd constructs the `ask index` command, which builds or refreshes
// the semantic embedding index for a workspace without asking a question.
func NewIndexCmd() *cobra.Command {
	var dir string
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or refresh the semantic index for a workspace",
		Long: `Chunk, embed and persist the workspace's source files so semantic
retrieval has something to search.

By default the index is updated incrementally: only files modified since
their chunks were last embedded are re-processed. Use --rebuild to discard
the existing index and embed everything from scratch.

The index lives in <workspace>/.ask/rag_index.json, or in Qdrant when
QDRANT_HOST is set.

Examples:
  ask index
  ask index --dir ~/src/service
  ask index --rebuild`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			root, err := resolveWorkspaceRoot(dir)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			if err := embedder.ValidateEnv(log); err != nil {
				return fmt.Errorf("index: %w", err)
			}

			ix, closeStore, err := newIndexer(ctx, root)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer closeStore()

			log.Info("indexing workspace", slog.String("root", root), slog.Bool("rebuild", rebuild))

			var chunks int
			if rebuild {
				built, err := ix.BuildIndex(ctx)
				if err != nil {
					return fmt.Errorf("index: full rebuild failed: %w", err)
				}
				chunks = len(built)
			} else {
				built, err := ix.BuildIndexIncremental(ctx)
				if err != nil {
					return fmt.Errorf("index: incremental update failed: %w", err)
				}
				chunks = len(built)
			}

			fmt.Printf("indexed %s (%d chunks)\n", root, chunks)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Workspace directory to index (default: current directory)")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Discard the existing index and re-embed everything")

	return cmd
}
