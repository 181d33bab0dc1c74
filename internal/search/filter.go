package search

import (
	"regexp"
	"strings"
)

// QuestionType tailors the evidence bundle to the kind of question asked.
// The zero value applies no filtering.
type QuestionType string

// Recognized question types.
const (
	QuestionOverview       QuestionType = "overview"
	QuestionLookup         QuestionType = "lookup"
	QuestionImplementation QuestionType = "implementation"
	QuestionConfiguration  QuestionType = "configuration"
)

// ParseQuestionType maps a hint string to a QuestionType. Unknown hints
// yield the zero value (no filtering) rather than an error so a confused
// caller still gets a full bundle.
func ParseQuestionType(s string) QuestionType {
	switch QuestionType(strings.ToLower(strings.TrimSpace(s))) {
	case QuestionOverview:
		return QuestionOverview
	case QuestionLookup:
		return QuestionLookup
	case QuestionImplementation:
		return QuestionImplementation
	case QuestionConfiguration:
		return QuestionConfiguration
	default:
		return ""
	}
}

// overviewReadmeLines caps the README excerpt for overview questions.
const overviewReadmeLines = 50

// readmeOmitted replaces the README body for question types where the
// README adds noise rather than signal.
const readmeOmitted = "README omitted for this question type."

// applyQuestionFilter trims the already-computed keyword and README sections
// according to the question type. It never re-runs search.
func applyQuestionFilter(qt QuestionType, keyword, readme string) (string, string) {
	switch qt {
	case QuestionOverview:
		return capSearchMatches(keyword, 3), truncateReadme(readme)
	case QuestionLookup:
		return capSearchMatches(keyword, 5), readmeOmitted
	case QuestionImplementation, QuestionConfiguration:
		return capSearchMatches(keyword, 3), readmeOmitted
	default:
		return keyword, readme
	}
}

// truncateReadme cuts the README to the first second-level heading
// (excluded), or to overviewReadmeLines lines, whichever comes first.
func truncateReadme(readme string) string {
	if readme == "" {
		return ""
	}
	lines := strings.Split(readme, "\n")
	cut := len(lines)
	for i, line := range lines {
		if i > 0 && strings.HasPrefix(line, "## ") {
			cut = i
			break
		}
	}
	if cut > overviewReadmeLines {
		cut = overviewReadmeLines
	}
	return strings.TrimRight(strings.Join(lines[:cut], "\n"), "\n")
}

// rgMatchLineRe identifies ripgrep match lines ("path:line:text") as opposed
// to context lines ("path-line-text") and "--" separators.
var rgMatchLineRe = regexp.MustCompile(`:\d+:`)

// capSearchMatches keeps the keyword output up to roughly maxMatches
// matches' worth of lines.
func capSearchMatches(keyword string, maxMatches int) string {
	if keyword == "" {
		return ""
	}
	lines := strings.Split(keyword, "\n")
	matches := 0
	for i, line := range lines {
		if rgMatchLineRe.MatchString(line) {
			matches++
			if matches > maxMatches {
				kept := lines[:i]
				for len(kept) > 0 && (kept[len(kept)-1] == "--" || strings.TrimSpace(kept[len(kept)-1]) == "") {
					kept = kept[:len(kept)-1]
				}
				return strings.Join(kept, "\n")
			}
		}
	}
	return keyword
}
