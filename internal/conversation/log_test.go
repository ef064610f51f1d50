package conversation

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/crewd/internal/logging"
)

func entryAt(agent string, kind Kind, content string, offset int) Entry {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return Entry{
		Timestamp: base.Add(time.Duration(offset) * time.Minute),
		AgentName: agent,
		Kind:      kind,
		Content:   content,
	}
}

func TestLogAppendBelowThreshold(t *testing.T) {
	ctx := context.Background()
	log := NewLog(10, logging.NewNop())
	for i := 0; i < 10; i++ {
		log.Append(ctx, entryAt("planner", KindOutput, fmt.Sprintf("step %d", i), i))
	}
	assert.Equal(t, 10, log.Len())
	for _, e := range log.Entries() {
		assert.NotEqual(t, KindSummary, e.Kind)
	}
}

func TestLogSummarizesPastMaxLength(t *testing.T) {
	ctx := context.Background()
	log := NewLog(20, logging.NewNop())
	for i := 0; i < 21; i++ {
		log.Append(ctx, entryAt("coder", KindOutput, fmt.Sprintf("step %d", i), i))
	}

	// 21 entries, keep 10 recent, collapse 11 older into one summary.
	require.Equal(t, 11, log.Len())
	entries := log.Entries()
	assert.Equal(t, KindSummary, entries[0].Kind)
	assert.Equal(t, SummaryAgent, entries[0].AgentName)
	assert.Equal(t, 11, entries[0].Metadata["summarized_entries"])

	// The surviving entries are the most recent ones, in order.
	for i, e := range entries[1:] {
		assert.Equal(t, fmt.Sprintf("step %d", i+11), e.Content)
	}
}

func TestLogCompactsOnCrossingAppend(t *testing.T) {
	// The append that crosses max_length must always compact the log back
	// to at most min(10, max_length)+1 entries, for every configured limit.
	ctx := context.Background()
	for maxLength := 4; maxLength <= 40; maxLength++ {
		log := NewLog(maxLength, logging.NewNop())
		for i := 0; i <= maxLength; i++ {
			log.Append(ctx, entryAt("coder", KindOutput, fmt.Sprintf("step %d", i), i))
		}
		keep := maxLength
		if keep > 10 {
			keep = 10
		}
		assert.LessOrEqual(t, log.Len(), keep+1, "max_length %d", maxLength)
	}
}

func TestLogSummarizeSkipsSmallLog(t *testing.T) {
	// Below the minimum entry count summarization is a no-op even when
	// the log has crossed its (very small) limit.
	ctx := context.Background()
	log := NewLog(2, logging.NewNop())
	for i := 0; i < 3; i++ {
		log.entries = append(log.entries, entryAt("planner", KindOutput, "x", i))
	}
	assert.False(t, log.Summarize(ctx))
	assert.Equal(t, 3, log.Len())

	// One more entry crosses the minimum and the log collapses.
	log.entries = append(log.entries, entryAt("planner", KindOutput, "x", 3))
	assert.True(t, log.Summarize(ctx))
	assert.Equal(t, 3, log.Len())
}

func TestLogSummarizeLengthStable(t *testing.T) {
	ctx := context.Background()
	log := NewLog(12, logging.NewNop())
	for i := 0; i < 30; i++ {
		log.Append(ctx, entryAt("tester", KindToolResult, fmt.Sprintf("r%d", i), i))
	}

	log.Summarize(ctx)
	lenAfter := log.Len()
	require.LessOrEqual(t, lenAfter, 11)

	// Further summarization never grows the log or stacks summary entries.
	log.Summarize(ctx)
	assert.Equal(t, lenAfter, log.Len())
	summaries := 0
	for _, e := range log.Entries() {
		if e.Kind == KindSummary {
			summaries++
		}
	}
	assert.Equal(t, 1, summaries)
}

func TestLogBoundedUnderSustainedAppends(t *testing.T) {
	ctx := context.Background()
	log := NewLog(15, logging.NewNop())
	for i := 0; i < 500; i++ {
		crossing := log.Len() == 15
		log.Append(ctx, entryAt("coder", KindOutput, "work", i))
		assert.LessOrEqual(t, log.Len(), 15)
		if crossing {
			assert.Equal(t, 11, log.Len())
		}
	}
}

func TestLogOnSummaryCallback(t *testing.T) {
	ctx := context.Background()
	log := NewLog(12, logging.NewNop())
	var captured []string
	log.SetOnSummary(func(_ context.Context, s string) { captured = append(captured, s) })

	log.Append(ctx, entryAt("planner", KindOutput, "plan", 0))
	log.Append(ctx, entryAt("planner", KindOutput, "plan", 1))
	log.Append(ctx, entryAt("planner", KindHandoff, "handing off to coder", 2))
	// Grow past max_length so the three planner entries fall into the
	// older partition.
	for i := 3; i < 13; i++ {
		log.Append(ctx, entryAt("coder", KindOutput, "code", i))
	}

	require.Len(t, captured, 1)
	assert.Contains(t, captured[0], "handoff")
	assert.Contains(t, captured[0], "planner")
}

func TestLogOnSummaryReceivesTriggeringContext(t *testing.T) {
	// The callback must see the context of the append that crossed the
	// threshold, not whichever context was live at registration time.
	type ctxKey struct{}
	log := NewLog(12, logging.NewNop())
	var got context.Context
	log.SetOnSummary(func(ctx context.Context, _ string) { got = ctx })

	for i := 0; i < 13; i++ {
		ctx := context.WithValue(context.Background(), ctxKey{}, i)
		log.Append(ctx, entryAt("coder", KindOutput, "work", i))
	}

	require.NotNil(t, got)
	assert.Equal(t, 12, got.Value(ctxKey{}))
}

func TestLogLastN(t *testing.T) {
	ctx := context.Background()
	log := NewLog(50, logging.NewNop())
	for i := 0; i < 5; i++ {
		log.Append(ctx, entryAt("reviewer", KindOutput, fmt.Sprintf("c%d", i), i))
	}

	last := log.LastN(3)
	require.Len(t, last, 3)
	assert.Equal(t, "c2", last[0].Content)
	assert.Equal(t, "c4", last[2].Content)

	assert.Len(t, log.LastN(100), 5)
	assert.Nil(t, log.LastN(0))
}

func TestBuildSummaryDeterministic(t *testing.T) {
	entries := []Entry{
		entryAt("planner", KindInput, "task", 0),
		entryAt("planner", KindOutput, "plan ready", 1),
		entryAt("planner", KindHandoff, "to coder", 2),
		entryAt("coder", KindOutput, "wrote code", 3),
		entryAt("coder", KindError, "compile failed\ndetails follow", 4),
	}

	first := BuildSummary(entries)
	second := BuildSummary(entries)
	assert.Equal(t, first, second)

	assert.Contains(t, first, "planner: 3 entries")
	assert.Contains(t, first, "coder: 2 entries")
	assert.Contains(t, first, "[handoff]: to coder")
	assert.Contains(t, first, "[error]: compile failed")
	// Multi-line content collapses to its first line.
	assert.NotContains(t, first, "details follow")
	// Agents appear in order of first activity.
	assert.Less(t, strings.Index(first, "planner:"), strings.Index(first, "coder:"))
}

func TestBuildSummaryEmpty(t *testing.T) {
	assert.Equal(t, "CONVERSATION SUMMARY: no entries", BuildSummary(nil))
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindHandoff.Valid())
	assert.True(t, KindRunEnd.Valid())
	assert.False(t, Kind("bogus").Valid())
}
