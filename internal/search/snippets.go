package search

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// snippetMaxLines caps how much of a directly referenced file is excerpted.
const snippetMaxLines = 200

// pathTokenRe extracts path-like tokens from a free-text query.
var pathTokenRe = regexp.MustCompile(`[A-Za-z0-9_./:-]+`)

// snippetExtensions are file extensions that mark a bare token as a file
// reference even without a path separator.
var snippetExtensions = []string{".go", ".py", ".md", ".yaml", ".yml", ".json", ".txt"}

// defaultSnippetRoots are subdirectories tried when resolving a relative
// file reference that does not exist directly under the workspace root.
var defaultSnippetRoots = []string{"src", "docs", "config", "tests"}

// fallbackContextFile is excerpted when the query mentions retrieval-related
// keywords but names no resolvable file.
var fallbackContextFile = filepath.Join("docs", "architecture.md")

// directFileSnippets excerpts files the query names explicitly. Each
// path-like token is resolved against the workspace root and the default
// subdirectories; the first existing regular file per token is read (up to
// snippetMaxLines lines, numbered). Files are deduplicated by resolved real
// path so one file is never excerpted twice. Returns "" when the query
// references no resolvable files.
func directFileSnippets(query, root string) string {
	tokens := pathTokenRe.FindAllString(query, -1)

	// A path split across tokens ("src/runtime/" followed by "index.go")
	// is also tried joined back together.
	for i, tok := range tokens {
		if i+1 < len(tokens) && strings.HasSuffix(tok, "/") {
			tokens = append(tokens, strings.TrimRight(tok, "/")+"/"+strings.TrimLeft(tokens[i+1], "/"))
		}
	}

	seen := make(map[string]bool)
	var snippets []string

	for _, tok := range tokens {
		if !looksLikeFileReference(tok) {
			continue
		}
		for _, cand := range candidatePaths(tok, root) {
			info, err := os.Stat(cand)
			if err != nil || info.IsDir() {
				continue
			}
			real, err := filepath.EvalSymlinks(cand)
			if err != nil {
				real = cand
			}
			if seen[real] {
				// Already excerpted via another token; keep trying the
				// remaining candidate directories for this one.
				continue
			}
			seen[real] = true

			if s := excerptFile(real, root); s != "" {
				snippets = append(snippets, s)
			}
			break
		}
	}

	if len(snippets) == 0 && mentionsRetrieval(query) {
		fallback := filepath.Join(root, fallbackContextFile)
		if pathExists(fallback) {
			if s := excerptFile(fallback, root); s != "" {
				snippets = append(snippets, s)
			}
		}
	}

	return strings.Join(snippets, "\n\n")
}

// looksLikeFileReference reports whether a query token plausibly names a file.
func looksLikeFileReference(tok string) bool {
	if strings.Contains(tok, "/") {
		return true
	}
	for _, ext := range snippetExtensions {
		if strings.HasSuffix(tok, ext) {
			return true
		}
	}
	return false
}

// candidatePaths lists the locations tried for a file-reference token, in order.
func candidatePaths(tok, root string) []string {
	if filepath.IsAbs(tok) {
		return []string{tok}
	}
	cands := []string{filepath.Join(root, tok)}
	for _, sub := range defaultSnippetRoots {
		cands = append(cands, filepath.Join(root, sub, strings.TrimLeft(tok, "/")))
	}
	return cands
}

// mentionsRetrieval reports whether the query asks about context/retrieval
// machinery, triggering the fallback contextual excerpt.
func mentionsRetrieval(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range []string{"context", "rag", "retrieval"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// excerptFile reads up to snippetMaxLines lines of the file and renders them
// numbered, prefixed with a "rel:1-N" location header. Returns "" when the
// file cannot be read.
func excerptFile(path, root string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var numbered []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(numbered) >= snippetMaxLines {
			break
		}
		numbered = append(numbered, fmt.Sprintf("%d: %s", len(numbered)+1, strings.TrimRight(scanner.Text(), " \t")))
	}
	if len(numbered) == 0 {
		return ""
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return fmt.Sprintf("%s:1-%d\n%s", filepath.ToSlash(rel), len(numbered), strings.Join(numbered, "\n"))
}

// pathExists reports whether the path exists on disk.
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
