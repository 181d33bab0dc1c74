// Package commands defines all Cobra CLI commands for the ask binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/ndev/ask-go/internal/audit"
	"github.com/ndev/ask-go/internal/config"
	"github.com/ndev/ask-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ask",
		Short: "ask — answer questions about your codebase, grounded in its files",
		Long: `ask is a local-first assistant that answers natural language questions
about the codebase in your workspace.

Every answer is grounded in evidence gathered from the workspace itself:
keyword search (ripgrep), semantic retrieval over an incremental embedding
index, direct excerpts of files named in the question, the README, and the
project file listing. The agent cites file paths and line ranges for every
claim it makes.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.ask/config.yaml).
See 'ask --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ask/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewIndexCmd(),
		NewHistoryCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
