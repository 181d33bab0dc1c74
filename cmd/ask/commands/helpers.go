package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/tool"

	"github.com/ndev/ask-go/internal/embedder"
	"github.com/ndev/ask-go/internal/rag"
	"github.com/ndev/ask-go/internal/search"
	"github.com/ndev/ask-go/internal/store"
	"github.com/ndev/ask-go/internal/tools"
)

// getEnvOrDefault returns the environment variable value, or def if unset/empty.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the environment variable parsed as an int, or def if
// unset or unparseable.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// resolveWorkspaceRoot turns the --dir flag into an absolute workspace root.
// Precedence: flag, ASK_WORKSPACE, process working directory.
func resolveWorkspaceRoot(dir string) (string, error) {
	if dir == "" {
		dir = os.Getenv("ASK_WORKSPACE")
	}
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve workspace: %w", err)
		}
		return cwd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve workspace %q: %w", dir, err)
	}
	return abs, nil
}

// newChunkStore opens the chunk store for the workspace. When QDRANT_HOST is
// set the Qdrant gRPC store is used; otherwise the local JSON index under
// <workspace>/.ask/ is used.
func newChunkStore(ctx context.Context, root string) (rag.ChunkStore, func(), error) {
	if os.Getenv("QDRANT_HOST") == "" {
		return rag.NewJSONStore(rag.DefaultIndexPath(root)), func() {}, nil
	}

	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	qs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "ask-code"),
		VectorSize: uint64(embedder.DefaultDimensions(embBackend)), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to Qdrant: %w", err)
	}
	return qs, func() { _ = qs.Close() }, nil
}

// newIndexer wires embedder and chunk store into an Indexer for the workspace.
// The returned cleanup function closes the underlying store connection.
func newIndexer(ctx context.Context, root string) (*rag.Indexer, func(), error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("initialise embedder: %w", err)
	}

	chunkStore, closeStore, err := newChunkStore(ctx, root)
	if err != nil {
		return nil, nil, err
	}

	ix, err := rag.NewIndexer(&rag.Config{
		WorkspaceRoot: root,
		Embedder:      emb,
		Store:         chunkStore,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return ix, closeStore, nil
}

// retrieverCache memoises one retriever per workspace root. The aggregator
// constructs a retriever per search call; without the cache a long-running
// `ask serve` process would open a fresh chunk-store connection on every
// query and never close it. Cached retrievers (and their store connections)
// live for the life of the process. Build failures are not cached, so a
// temporarily unreachable store is retried on the next call.
type retrieverCache struct {
	mu     sync.Mutex
	build  func(root string) (search.Retriever, error)
	byRoot map[string]search.Retriever
}

func newRetrieverCache(build func(root string) (search.Retriever, error)) *retrieverCache {
	return &retrieverCache{build: build, byRoot: make(map[string]search.Retriever)}
}

func (c *retrieverCache) get(root string) (search.Retriever, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.byRoot[root]; ok {
		return r, nil
	}
	r, err := c.build(root)
	if err != nil {
		return nil, err
	}
	c.byRoot[root] = r
	return r, nil
}

// buildAggregator constructs the evidence aggregator for the workspace.
// When skipRAG is true the semantic retrieval section is left without a
// retriever and reports itself as unavailable.
func buildAggregator(root string, skipRAG bool) *search.Aggregator {
	cfg := &search.Config{WorkspaceRoot: root}
	if !skipRAG {
		cache := newRetrieverCache(func(wsRoot string) (search.Retriever, error) {
			ix, _, err := newIndexer(context.Background(), wsRoot)
			if err != nil {
				return nil, err
			}
			return ix, nil
		})
		cfg.NewRetriever = cache.get
	}
	return search.NewAggregator(cfg)
}

// buildTools constructs the full list of Eino-compatible codebase tools to
// register with the agent.
func buildTools(agg *search.Aggregator) []tool.BaseTool {
	return []tool.BaseTool{
		tools.NewSearchCodebaseTool(agg),
		tools.NewFormatResponseTool(),
	}
}

// openHistory opens the conversation history store. ASK_HISTORY_DB overrides
// the default path (~/.ask/history.db); set it to "disabled" to turn history
// off. Failures are downgraded to warnings — history is never load-bearing.
func openHistory(log *slog.Logger) (store.ConversationStore, func()) {
	dbPath := os.Getenv("ASK_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via ASK_HISTORY_DB=disabled")
		return nil, func() {}
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs, func() { _ = hs.Close() }
}

// ensureIndexForWorkspace brings the semantic index up to date before the
// first question. Any failure is downgraded to a warning so answering can
// proceed with whatever index already exists.
func ensureIndexForWorkspace(ctx context.Context, root string, log *slog.Logger) {
	settings := search.LoadRAGSettings(root)
	if !settings.Enabled {
		log.Debug("rag: disabled by workspace config, skipping index refresh")
		return
	}

	ix, closeStore, err := newIndexer(ctx, root)
	if err != nil {
		log.Warn("rag: index refresh unavailable", slog.Any("error", err))
		return
	}
	defer closeStore()

	if err := ix.EnsureIndex(ctx); err != nil {
		log.Warn("rag: index refresh failed", slog.Any("error", err))
	}
}

// pathTokenRe matches tokens that plausibly reference files or directories.
var pathTokenRe = regexp.MustCompile(`[A-Za-z0-9_./:-]+`)

// pathishExtensions are file extensions that mark a token as a path reference
// for focus inference.
var pathishExtensions = []string{".go", ".py", ".md", ".yaml", ".yml", ".json", ".txt"}

// inferFocusAreas derives keyword-search focus directories from the question
// itself: when the question names a path (contains a separator or a known
// source extension), search is focused on that path's first directory
// segment. Questions without path references get no focus — the whole
// workspace is searched.
func inferFocusAreas(question string) []string {
	seen := map[string]bool{}
	var focus []string

	for _, token := range pathTokenRe.FindAllString(question, -1) {
		token = strings.Trim(token, ".:")
		if token == "" {
			continue
		}

		pathish := strings.Contains(token, "/")
		if !pathish {
			for _, ext := range pathishExtensions {
				if strings.HasSuffix(token, ext) && token != ext {
					pathish = true
					break
				}
			}
		}
		if !pathish {
			continue
		}

		area := token
		if i := strings.Index(token, "/"); i > 0 {
			area = token[:i]
		}
		if area == "" || area == "/" || seen[area] {
			continue
		}
		seen[area] = true
		focus = append(focus, area)
	}

	return focus
}
