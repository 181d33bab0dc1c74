package search

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// listingCap bounds the project file listing so the evidence bundle stays
// within a size downstream prompts can absorb.
const listingCap = 200

// skippedPathSubstrings excludes version-control, dependency and cache
// directories from the file listing by substring match on the relative path.
var skippedPathSubstrings = []string{".git", "venv", "__pycache__", "node_modules", ".ask"}

// listWorkspace walks the workspace and returns every entry (files and
// directories) as workspace-relative slash paths, excluding skipped
// directories. A missing or unreadable root yields an empty listing, never
// an error — the caller renders a placeholder instead.
func listWorkspace(root string) []string {
	var entries []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if isSkippedPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, rel)
		return nil
	})
	return entries
}

// isSkippedPath reports whether a relative path falls under an excluded
// directory.
func isSkippedPath(rel string) bool {
	for _, sub := range skippedPathSubstrings {
		if strings.Contains(rel, sub) {
			return true
		}
	}
	return false
}

// renderListing caps the listing and appends a count of omitted entries.
func renderListing(entries []string) string {
	if len(entries) == 0 {
		return ""
	}
	preview := entries
	if len(preview) > listingCap {
		preview = preview[:listingCap]
	}
	listing := strings.Join(preview, "\n")
	if len(entries) > len(preview) {
		listing += fmt.Sprintf("\n... and %d more files", len(entries)-len(preview))
	}
	return listing
}

// readReadme returns the content of the first listed file whose name
// case-insensitively contains "readme", or "" when none exists. Read errors
// surface as explanatory text so the section shape is preserved.
func readReadme(root string, entries []string) string {
	for _, rel := range entries {
		if !strings.Contains(strings.ToLower(filepath.Base(rel)), "readme") {
			continue
		}
		path := filepath.Join(root, filepath.FromSlash(rel))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Sprintf("Error reading README: %v", err)
		}
		return string(data)
	}
	return ""
}
