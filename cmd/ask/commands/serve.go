package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/qdrant/go-client/qdrant"
	"github.com/spf13/cobra"

	"github.com/ndev/ask-go/internal/agent"
	"github.com/ndev/ask-go/internal/logging"
	"github.com/ndev/ask-go/internal/provider"
	"github.com/ndev/ask-go/internal/server"
	"github.com/ndev/ask-go/internal/tracing"
)

// NewServeCmd constructs the `ask serve` command, which starts the HTTP
// server exposing the agent over a REST/SSE API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var dir string
	var skipRAG bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ask HTTP server",
		Long: `Start the ask HTTP server on localhost.

The server exposes POST /api/ask (SSE-streamed answers), GET /api/health,
GET /api/ready with per-dependency probes, and GET /metrics in Prometheus
format. Set ASK_API_KEY to require a Bearer token on /api/ask.

Examples:
  ask serve
  ask serve --port 9090 --dir ~/src/service
  MODEL_PROVIDER=openai ask serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			root, err := resolveWorkspaceRoot(dir)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")))

			if !skipRAG {
				ensureIndexForWorkspace(ctx, root, log)
			}

			hist, closeHist := openHistory(log)
			defer closeHist()

			agg := buildAggregator(root, skipRAG)

			askAgent, err := agent.New(ctx, &agent.Config{
				ChatModel:     chatModel,
				Tools:         buildTools(agg),
				WorkspaceRoot: root,
				History:       hist,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to initialise agent: %w", err)
			}

			srv, err := server.New(askAgent, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: buildPingers(log),
				APIKey:  os.Getenv("ASK_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Workspace directory to answer questions about (default: current directory)")
	cmd.Flags().BoolVar(&skipRAG, "skip-rag", false, "Skip semantic retrieval and the startup index refresh")

	return cmd
}

// buildPingers assembles the readiness probes for the configured backends:
// Ollama when it serves the chat or embedding model, the embedding endpoint
// when a remote one is configured, and Qdrant when QDRANT_HOST is set.
func buildPingers(log *slog.Logger) []server.Pinger {
	var pingers []server.Pinger

	modelBackend := getEnvOrDefault("MODEL_PROVIDER", "ollama")
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", modelBackend)

	if modelBackend == "ollama" || embBackend == "ollama" {
		pingers = append(pingers, server.NewOllamaPinger(getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")))
	}
	if endpoint := os.Getenv("EMBEDDING_ENDPOINT"); endpoint != "" {
		pingers = append(pingers, server.NewEmbeddingPinger(endpoint))
	}

	if os.Getenv("QDRANT_HOST") != "" {
		client, err := qdrant.NewClient(&qdrant.Config{
			Host:   getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:   getEnvInt("QDRANT_PORT", 6334),
			APIKey: os.Getenv("QDRANT_API_KEY"),
			UseTLS: os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			log.Warn("readiness: could not build qdrant pinger", slog.Any("error", err))
		} else {
			pingers = append(pingers, server.NewQdrantPinger(client))
		}
	}

	return pingers
}
