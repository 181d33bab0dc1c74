package rag

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/ndev/ask-go/internal/logging"
)

// StaleSampleCap bounds how many distinct indexed files are stat'ed per
// staleness check. Sampling keeps startup latency flat on large trees at the
// cost of a probabilistic answer.
const StaleSampleCap = 50

// MaxIndexFiles is the hard ceiling on eligible files above which startup
// indexing is skipped entirely, trading completeness for responsiveness.
const MaxIndexFiles = 1000

// IsIndexStale decides whether the loaded chunk set still reflects the
// filesystem. It samples up to StaleSampleCap distinct indexed files
// uniformly at random and declares the index stale when any sampled file is
// missing or strictly newer than its recorded mtime.
//
// The check is probabilistic: a passing sample can mask changes in unsampled
// files. When the distinct-file count is within the cap every file is
// checked and the answer is exact.
func (ix *Indexer) IsIndexStale(chunks []Chunk) bool {
	if len(chunks) == 0 {
		return true
	}

	// Earliest-seen mtime per distinct file, in first-seen order.
	recorded := make(map[string]float64)
	var paths []string
	for _, c := range chunks {
		if _, ok := recorded[c.Path]; !ok {
			recorded[c.Path] = c.ModifiedTime
			paths = append(paths, c.Path)
		}
	}

	if len(paths) > StaleSampleCap {
		rand.Shuffle(len(paths), func(i, j int) { paths[i], paths[j] = paths[j], paths[i] })
		paths = paths[:StaleSampleCap]
	}

	for _, rel := range paths {
		info, err := os.Stat(filepath.Join(ix.root, filepath.FromSlash(rel)))
		if err != nil {
			return true // deleted or unreadable — index no longer matches
		}
		if float64(info.ModTime().UnixNano())/1e9 > recorded[rel] {
			return true
		}
	}
	return false
}

// CountEligibleFiles walks the workspace with the indexing exclusion and
// extension rules and counts matching files, stopping early once limit is
// exceeded so huge trees stay cheap to probe.
func (ix *Indexer) CountEligibleFiles(limit int) int {
	count := 0
	_ = ix.walkFiles(func(_, _ string, _ float64) error {
		count++
		if count > limit {
			return filepath.SkipAll
		}
		return nil
	})
	return count
}

// EnsureIndex brings the persisted index up to date at startup: skip when
// the tree exceeds MaxIndexFiles, full-build when no index exists, run an
// incremental update when the staleness sample fails, and otherwise do
// nothing. Errors are returned for the caller to downgrade — a failed
// startup index must never block answering.
func (ix *Indexer) EnsureIndex(ctx context.Context) error {
	log := logging.FromContext(ctx)

	if n := ix.CountEligibleFiles(MaxIndexFiles); n > MaxIndexFiles {
		log.Warn("rag: workspace too large, skipping indexing",
			slog.Int("eligible_files", n), slog.Int("ceiling", MaxIndexFiles))
		return nil
	}

	chunks, err := ix.store.Load(ctx)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		_, err = ix.BuildIndex(ctx)
		return err
	}
	if ix.IsIndexStale(chunks) {
		_, err = ix.BuildIndexIncremental(ctx)
		return err
	}
	log.Debug("rag: index fresh", slog.Int("chunks", len(chunks)))
	return nil
}
