package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ndev/ask-go/internal/logging"
	"github.com/ndev/ask-go/internal/store"
)

// NewHistoryCmd constructs the `ask history` command, which prints recent
// question/answer exchanges recorded for a workspace.
func NewHistoryCmd() *cobra.Command {
	var dir string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent questions and answers for a workspace",
		Long: `Print the most recent question/answer exchanges recorded for the
workspace, oldest first.

History is stored per workspace in ~/.ask/history.db (override with
ASK_HISTORY_DB; set it to "disabled" to turn recording off).

Examples:
  ask history
  ask history --dir ~/src/service -n 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			root, err := resolveWorkspaceRoot(dir)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}

			hs, closeHist := openHistory(log)
			if hs == nil {
				return fmt.Errorf("history: store is disabled or unavailable")
			}
			defer closeHist()

			msgs, err := hs.Recent(ctx, root, limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if len(msgs) == 0 {
				fmt.Printf("no history recorded for %s\n", root)
				return nil
			}

			questionColor := color.New(color.FgCyan, color.Bold)
			timeColor := color.New(color.Faint)

			for _, m := range msgs {
				timeColor.Printf("[%s] ", m.CreatedAt.Format("2006-01-02 15:04"))
				if m.Role == store.RoleUser {
					questionColor.Printf("Q: %s\n", m.Content)
				} else {
					fmt.Printf("A: %s\n\n", m.Content)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Workspace directory to show history for (default: current directory)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of messages to show")

	return cmd
}
