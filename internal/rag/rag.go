// Package rag implements the retrieval subsystem of ask-go: line-window
// chunking of workspace files, incremental embedding-backed indexing, a
// file-backed (or Qdrant-backed) chunk store, and cosine-similarity
// retrieval. The evidence aggregator in internal/search is its only consumer.
package rag

import (
	"context"
	"math"
)

// Chunk is a contiguous line-range excerpt of one workspace file together
// with its embedding vector and index-time metadata. Chunks are persisted as
// JSON records; the field names below are the on-disk contract.
type Chunk struct {
	// ID is "path:start-end", unique within one index generation per file.
	ID string `json:"id"`

	// Path is the owning file path, relative to the workspace root.
	Path string `json:"path"`

	// StartLine is the 1-indexed first line of the window (inclusive).
	StartLine int `json:"start_line"`

	// EndLine is the 1-indexed last line of the window (inclusive).
	EndLine int `json:"end_line"`

	// Text is the raw window content, line terminators preserved.
	Text string `json:"text"`

	// Embedding is the vector produced for Text. Length is fixed by the
	// embedding model; empty when the provider returned no vector.
	Embedding []float32 `json:"embedding"`

	// Score is kept for index-file compatibility. It is always written as
	// zero and is meaningless once reloaded — retrieval returns scores as
	// ScoredChunk pairs instead of mutating persisted records.
	Score float64 `json:"score"`

	// ModifiedTime is the owning file's mtime at index time, epoch seconds.
	ModifiedTime float64 `json:"modified_time"`
}

// ScoredChunk pairs a chunk with the similarity score computed for one
// retrieval call. Scores are transient and never written back to the store.
type ScoredChunk struct {
	// Chunk is the matched chunk as loaded from the store.
	Chunk Chunk

	// Score is the cosine similarity against the query embedding.
	Score float64
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
//
// Unlike a strict batch API, the returned slice MAY be shorter than the
// input when the backing service yields no parseable vector for some texts.
// Callers must zip positionally and treat missing tails as absent vectors.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings,
	// order preserved.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists and reloads the full chunk set for one workspace.
// Save always replaces the complete prior content — the index is a value,
// not a log. Implementations perform no staleness or dimensionality checks;
// that is the Indexer's job.
type ChunkStore interface {
	// Load returns all persisted chunks, or an empty slice when no index
	// exists yet.
	Load(ctx context.Context) ([]Chunk, error)

	// Save overwrites the persisted index with exactly the given chunks.
	Save(ctx context.Context, chunks []Chunk) error
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths, empty vectors, and zero vectors all score 0.0 so the
// ranking code never divides by zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}
	var dot, na, nb float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
