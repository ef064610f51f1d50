// Package dedup extracts file paths from tool results and suppresses
// duplicate file actions within a single workflow run.
//
// Only results of file tools are mined, gated by tool name; response
// prose that merely mentions a path is never treated as a file action.
// Tools report the same operation in several phrasings, sometimes more
// than once per run. Extraction tries a fixed sequence of patterns from
// most to least explicit and stops at the first match; a Tracker then
// records which paths a run has already claimed so project memory is
// not polluted with repeats. Tracking is scoped to one run on purpose:
// a later run legitimately touching the same file should be recorded
// again.
package dedup

import (
	"regexp"
	"strings"
)

// knownExtensions limits bare-path matching to files the crew plausibly
// produces. Without this, prose like "v1.2.3" would match as a path.
const knownExtensions = `py|js|ts|tsx|jsx|md|txt|json|yaml|yml|html|css|cpp|c|java|rb|go|rs|php|sh|sql|xml|csv|log|cfg|ini|conf|env`

// Extraction patterns in priority order. The first match wins.
var patterns = []*regexp.Regexp{
	// A quoted path: "src/app.py" or 'main.go'.
	regexp.MustCompile(`["']([^"']+\.(?:` + knownExtensions + `))["']`),
	// An explicit action marker: Created file: src/app.py
	regexp.MustCompile(`(?i)(?:created|modified)\s+file:?\s+(\S+\.(?:` + knownExtensions + `))`),
	// A bare path with a known extension.
	regexp.MustCompile(`\b([\w./-]+\.(?:` + knownExtensions + `))\b`),
}

// ExtractFilePath scans content for a file path, trying each pattern in
// priority order. It returns the first capture and true, or "" and false
// when nothing matches.
func ExtractFilePath(content string) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(content); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// Action distinguishes file creation from modification.
type Action string

const (
	ActionCreated  Action = "created"
	ActionModified Action = "modified"
)

// ActionForTool maps a tool name to the file action it performs. Only
// tools whose name marks them as file-writing qualify; everything else
// (search, read, shell) reports false and its results are never mined
// for paths.
func ActionForTool(toolName string) (Action, bool) {
	lower := strings.ToLower(toolName)
	switch {
	case strings.Contains(lower, "create") || strings.Contains(lower, "write"):
		return ActionCreated, true
	case strings.Contains(lower, "modify") || strings.Contains(lower, "edit") || strings.Contains(lower, "update"):
		return ActionModified, true
	default:
		return "", false
	}
}

// Tracker remembers which file actions a single run has already
// recorded. It is not safe for concurrent use; the workflow engine
// serializes result recording.
type Tracker struct {
	seen map[string]struct{}
}

// NewTracker returns an empty per-run tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// Claim records a file action and reports whether it is the first
// occurrence within this run. Later identical claims return false.
func (t *Tracker) Claim(action Action, path string) bool {
	key := string(action) + ":" + path
	if _, dup := t.seen[key]; dup {
		return false
	}
	t.seen[key] = struct{}{}
	return true
}

// Seen reports whether the action was already claimed in this run.
func (t *Tracker) Seen(action Action, path string) bool {
	_, ok := t.seen[string(action)+":"+path]
	return ok
}
