package conversation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/logging"
)

// DefaultMaxLength is the log size above which summarization triggers
// when no explicit limit is configured.
const DefaultMaxLength = 50

// Log is an append-only conversation history bounded by summarization.
type Log struct {
	maxLength int
	entries   []Entry
	logger    *logging.Logger
	onSummary func(ctx context.Context, summary string)
}

// NewLog returns an empty log that summarizes once it grows past
// maxLength entries. A maxLength of zero or less falls back to
// DefaultMaxLength.
func NewLog(maxLength int, logger *logging.Logger) *Log {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Log{
		maxLength: maxLength,
		logger:    logger,
	}
}

// SetOnSummary registers a callback invoked with the summary text each
// time the log collapses its older entries. Used by the memory manager
// to harvest insights from summaries. The context is the one passed to
// the append that triggered the summarization.
func (l *Log) SetOnSummary(fn func(ctx context.Context, summary string)) {
	l.onSummary = fn
}

// Append adds an entry to the log, stamping it with the current time if
// the caller left the timestamp zero, and summarizes when the log has
// grown past its maximum length.
func (l *Log) Append(ctx context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	l.entries = append(l.entries, e)
	if len(l.entries) > l.maxLength {
		l.Summarize(ctx)
	}
}

// Len returns the current number of entries, summaries included.
func (l *Log) Len() int { return len(l.entries) }

// MaxLength returns the configured summarization threshold.
func (l *Log) MaxLength() int { return l.maxLength }

// Entries returns a copy of the log contents in order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// LastN returns a copy of the most recent n entries, or all entries when
// fewer than n exist. Used to build handoff context snapshots.
func (l *Log) LastN(n int) []Entry {
	if n <= 0 {
		return nil
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Summarize collapses the older portion of the log into a single summary
// entry, keeping the most recent entries verbatim. It reports whether a
// summary was produced. Logs at or below the minimum worth collapsing are
// left untouched, so an append that crosses maxLength always compacts
// back to at most min(10, maxLength)+1 entries.
func (l *Log) Summarize(ctx context.Context) bool {
	if len(l.entries) <= minEntriesForSummary(l.maxLength) {
		return false
	}

	keepRecent := l.maxLength
	if keepRecent > 10 {
		keepRecent = 10
	}
	if len(l.entries) <= keepRecent {
		return false
	}

	older := l.entries[:len(l.entries)-keepRecent]
	summary := BuildSummary(older)
	recent := l.entries[len(l.entries)-keepRecent:]

	compacted := make([]Entry, 0, keepRecent+1)
	compacted = append(compacted, Entry{
		Timestamp: time.Now(),
		AgentName: SummaryAgent,
		Kind:      KindSummary,
		Content:   summary,
		Metadata:  map[string]any{"summarized_entries": len(older)},
	})
	compacted = append(compacted, recent...)
	l.entries = compacted

	l.logger.Debug(ctx, "conversation summarized",
		zap.Int("summarized_entries", len(older)),
		zap.Int("remaining", len(l.entries)),
	)

	if l.onSummary != nil {
		l.onSummary(ctx, summary)
	}
	return true
}

// minEntriesForSummary is the smallest log worth collapsing. Summarizing
// a handful of entries would lose more context than it saves.
func minEntriesForSummary(maxLength int) int {
	min := maxLength / 2
	if min < 3 {
		min = 3
	}
	if min > 10 {
		min = 10
	}
	return min
}
