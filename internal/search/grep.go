package search

import (
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ndev/ask-go/internal/logging"
)

// rgUnavailable is the placeholder used when ripgrep is not on PATH.
const rgUnavailable = "ripgrep (`rg`) is not installed, so code search is unavailable."

// keywordSearch runs ripgrep for the query against each focus directory
// (resolved relative to root) and concatenates the outputs. Missing focus
// directories are skipped. A non-zero exit with empty output means "no
// matches" and is not an error.
func (a *Aggregator) keywordSearch(ctx context.Context, query, root string, focusAreas []string) string {
	rgPath := a.rgPath
	if rgPath == "" {
		found, err := exec.LookPath("rg")
		if err != nil {
			return rgUnavailable
		}
		rgPath = found
	}

	searchDirs := focusAreas
	if len(searchDirs) == 0 {
		searchDirs = []string{root}
	}

	log := logging.FromContext(ctx)

	var outputs []string
	for _, area := range searchDirs {
		areaPath := area
		if !filepath.IsAbs(areaPath) {
			areaPath = filepath.Join(root, area)
		}
		if !pathExists(areaPath) {
			continue
		}

		cmd := exec.CommandContext(ctx, rgPath,
			"--max-filesize", "1M",
			"--max-count", "5",
			"-n",
			"--context", "1",
			"--",
			query,
			areaPath,
		)
		out, err := cmd.Output()
		if err != nil && len(out) == 0 {
			// Exit code 1 means no matches; anything else is logged and
			// treated the same — the section degrades, never aborts.
			if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() != 1 {
				log.Warn("search: ripgrep invocation failed",
					slog.String("dir", areaPath),
					slog.Any("error", err),
				)
			}
			continue
		}

		if trimmed := strings.TrimSpace(string(out)); trimmed != "" {
			outputs = append(outputs, trimmed)
		}
	}

	return strings.TrimSpace(strings.Join(outputs, "\n\n"))
}
