package rag

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ndev/ask-go/internal/logging"
)

// DefaultChunkLines is the fixed window size, in lines, used to partition a
// file into chunks when no override is configured.
const DefaultChunkLines = 120

// DefaultTopK is the number of chunks returned by Retrieve when the caller
// passes a non-positive topK.
const DefaultTopK = 6

// defaultIncludeExt lists the file suffixes eligible for indexing.
var defaultIncludeExt = []string{".go", ".py", ".md", ".txt", ".json", ".yaml", ".yml"}

// skipDirSubstrings lists directory name fragments excluded from every walk:
// version control, dependency trees, bytecode caches, and ask-go's own state.
var skipDirSubstrings = []string{".git", "venv", "__pycache__", "node_modules", stateDirName}

// Config holds the dependencies and tuning knobs for an Indexer.
type Config struct {
	// WorkspaceRoot is the directory tree to index. Required.
	WorkspaceRoot string

	// Embedder converts chunk and query text into vectors. Required.
	Embedder Embedder

	// Store persists the chunk set between calls. Required.
	Store ChunkStore

	// IncludeExt overrides the default file suffix allowlist.
	IncludeExt []string

	// ChunkLines overrides the window size (default: DefaultChunkLines).
	ChunkLines int
}

// Indexer walks one workspace, maintains its chunk index, and answers
// similarity queries. It holds no state between calls other than what the
// ChunkStore persists; callers serialise access to one workspace's index.
type Indexer struct {
	// root is the workspace root directory.
	root string
	// embedder converts text to vectors.
	embedder Embedder
	// store persists the chunk set.
	store ChunkStore
	// includeExt is the resolved file suffix allowlist.
	includeExt []string
	// chunkLines is the resolved window size.
	chunkLines int
}

// NewIndexer constructs an Indexer from the given config, applying defaults
// for the optional fields.
func NewIndexer(cfg *Config) (*Indexer, error) {
	if cfg == nil || cfg.WorkspaceRoot == "" {
		return nil, fmt.Errorf("rag: workspace root must not be empty")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}

	ext := cfg.IncludeExt
	if len(ext) == 0 {
		ext = defaultIncludeExt
	}
	lines := cfg.ChunkLines
	if lines <= 0 {
		lines = DefaultChunkLines
	}

	return &Indexer{
		root:       cfg.WorkspaceRoot,
		embedder:   cfg.Embedder,
		store:      cfg.Store,
		includeExt: ext,
		chunkLines: lines,
	}, nil
}

// BuildIndex performs a full rebuild: walk, chunk, embed everything in one
// batched call, persist, and return the new chunk set.
func (ix *Indexer) BuildIndex(ctx context.Context) ([]Chunk, error) {
	var chunks []Chunk

	err := ix.walkFiles(func(path, rel string, mtime float64) error {
		fileChunks, err := ix.chunkFile(path, rel, mtime)
		if err != nil {
			// Unreadable files are skipped, not fatal — the rest of the
			// workspace is still worth indexing.
			logging.FromContext(ctx).Warn("rag: skipping unreadable file",
				slog.String("path", rel), slog.Any("error", err))
			return nil
		}
		chunks = append(chunks, fileChunks...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := ix.embedChunks(ctx, chunks); err != nil {
		return nil, err
	}

	if err := ix.store.Save(ctx, chunks); err != nil {
		return nil, fmt.Errorf("rag: persist index: %w", err)
	}
	logging.FromContext(ctx).Info("rag: full index built", slog.Int("chunks", len(chunks)))
	return chunks, nil
}

// BuildIndexIncremental is the steady-state build. Files whose on-disk mtime
// is not newer than the earliest mtime recorded for their existing chunks
// are carried forward untouched; only new or modified files are re-chunked
// and re-embedded, so embedding cost tracks changed content rather than
// workspace size. The merged set replaces the prior index in full.
func (ix *Indexer) BuildIndexIncremental(ctx context.Context) ([]Chunk, error) {
	existing, err := ix.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: load existing index: %w", err)
	}

	// Earliest-seen mtime per indexed file.
	indexedMtimes := make(map[string]float64)
	for _, c := range existing {
		if _, ok := indexedMtimes[c.Path]; !ok {
			indexedMtimes[c.Path] = c.ModifiedTime
		}
	}

	var merged []Chunk
	var delta []int // indexes into merged that still need embeddings

	err = ix.walkFiles(func(path, rel string, mtime float64) error {
		if recorded, ok := indexedMtimes[rel]; ok && mtime <= recorded {
			// Unchanged — reuse all existing chunks from this file.
			for _, c := range existing {
				if c.Path == rel {
					merged = append(merged, c)
				}
			}
			return nil
		}

		fileChunks, err := ix.chunkFile(path, rel, mtime)
		if err != nil {
			logging.FromContext(ctx).Warn("rag: skipping unreadable file",
				slog.String("path", rel), slog.Any("error", err))
			return nil
		}
		for _, c := range fileChunks {
			merged = append(merged, c)
			delta = append(delta, len(merged)-1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(delta) > 0 {
		texts := make([]string, len(delta))
		for i, idx := range delta {
			texts[i] = merged[idx].Text
		}
		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("rag: embed delta: %w", err)
		}
		for i, idx := range delta {
			if i >= len(vectors) {
				break
			}
			merged[idx].Embedding = vectors[i]
		}
	}

	if err := ix.store.Save(ctx, merged); err != nil {
		return nil, fmt.Errorf("rag: persist index: %w", err)
	}
	logging.FromContext(ctx).Info("rag: incremental index updated",
		slog.Int("chunks", len(merged)), slog.Int("re_embedded", len(delta)))
	return merged, nil
}

// Retrieve returns the topK chunks most similar to the query, sorted by
// descending cosine similarity. Equal scores retain the loaded index order
// (stable sort). An empty index triggers a full build first; a query the
// embedder cannot vectorise yields an empty result, not an error.
func (ix *Indexer) Retrieve(ctx context.Context, query string, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	chunks, err := ix.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: load index: %w", err)
	}
	if len(chunks) == 0 {
		chunks, err = ix.BuildIndex(ctx)
		if err != nil {
			return nil, err
		}
	}

	queryVecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(queryVecs) == 0 {
		return nil, nil
	}
	qv := queryVecs[0]

	scored := make([]ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = ScoredChunk{Chunk: c, Score: CosineSimilarity(qv, c.Embedding)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

// embedChunks embeds all chunk texts in one batched call and zips the
// vectors back positionally. A shorter vector slice leaves the tail chunks
// without embeddings; they score 0.0 at retrieval time.
func (ix *Indexer) embedChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("rag: embed chunks: %w", err)
	}
	for i := range chunks {
		if i >= len(vectors) {
			break
		}
		chunks[i].Embedding = vectors[i]
	}
	return nil
}

// walkFiles visits every eligible file under the workspace root, calling fn
// with the absolute path, root-relative path, and mtime in epoch seconds.
// Excluded directory subtrees are pruned; fn errors abort the walk.
func (ix *Indexer) walkFiles(fn func(path, rel string, mtime float64) error) error {
	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped; an unreadable root means an
			// empty index rather than a failed build.
			return nil
		}
		if d.IsDir() {
			if path != ix.root && isSkippedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasIncludedExt(d.Name(), ix.includeExt) {
			return nil
		}

		rel, err := filepath.Rel(ix.root, path)
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		return fn(path, filepath.ToSlash(rel), float64(info.ModTime().UnixNano())/1e9)
	})
	if err != nil {
		return fmt.Errorf("rag: walk %s: %w", ix.root, err)
	}
	return nil
}

// chunkFile splits one file into consecutive fixed-size line windows,
// dropping windows whose text is blank. Line terminators are preserved so
// concatenating a file's chunks in order reconstructs its content.
func (ix *Indexer) chunkFile(path, rel string, mtime float64) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	lines := splitLines(string(data))

	var chunks []Chunk
	for i := 0; i < len(lines); i += ix.chunkLines {
		end := i + ix.chunkLines
		if end > len(lines) {
			end = len(lines)
		}
		text := strings.Join(lines[i:end], "")
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:           fmt.Sprintf("%s:%d-%d", rel, i+1, end),
			Path:         rel,
			StartLine:    i + 1,
			EndLine:      end,
			Text:         text,
			ModifiedTime: mtime,
		})
	}
	return chunks, nil
}

// splitLines splits text into lines that keep their trailing newline, the
// way the chunker counts them. A trailing newline does not create an empty
// final line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// isSkippedDir reports whether a directory name matches the exclusion list
// by substring.
func isSkippedDir(name string) bool {
	for _, skip := range skipDirSubstrings {
		if strings.Contains(name, skip) {
			return true
		}
	}
	return false
}

// hasIncludedExt reports whether the file name ends with one of the
// configured suffixes.
func hasIncludedExt(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
