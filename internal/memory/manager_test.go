package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/crewd/internal/conversation"
	"github.com/fyrsmithlabs/crewd/internal/dedup"
	"github.com/fyrsmithlabs/crewd/internal/logging"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(newTestStore(t), 50, logging.NewNop())
}

func TestManagerRecordToolResultExtractsFiles(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	tracker := dedup.NewTracker()

	m.RecordToolResult(ctx, "todo", "coder", "create_file", `Created file: "app.py" with the Flask routes`, tracker)

	snap := m.Snapshot(ctx, "todo")
	assert.Equal(t, []string{"app.py"}, snap.FilesCreated)
	assert.True(t, m.HasFile(ctx, "todo", "app.py"))
	assert.False(t, m.HasFile(ctx, "todo", "other.py"))
}

func TestManagerOutputProseNeverMinedForFiles(t *testing.T) {
	// A plan that merely talks about files is not a file action; only
	// results of file tools reach project memory.
	m := newTestManager(t)
	ctx := context.Background()
	tracker := dedup.NewTracker()

	m.RecordOutput(ctx, "todo", "planner", "1. We will create app.py with the routes", 20)
	m.RecordOutput(ctx, "todo", "coder", `Created file: "app.py" with the Flask routes`, 25)

	snap := m.Snapshot(ctx, "todo")
	assert.Empty(t, snap.FilesCreated)
	assert.Empty(t, snap.FilesModified)
	assert.False(t, m.HasFile(ctx, "todo", "app.py"))
	assert.False(t, tracker.Seen(dedup.ActionCreated, "app.py"))
}

func TestManagerToolResultGatedOnToolName(t *testing.T) {
	// A read tool's result may quote paths; none of them are actions.
	m := newTestManager(t)
	ctx := context.Background()

	m.RecordToolResult(ctx, "todo", "coder", "read_file", "contents of app.py: ...", dedup.NewTracker())

	assert.Empty(t, m.Snapshot(ctx, "todo").FilesCreated)
}

func TestManagerRecordToolResultDeduplicatesWithinRun(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	tracker := dedup.NewTracker()

	m.RecordToolResult(ctx, "todo", "coder", "create_file", "Created file: app.py", tracker)
	m.RecordToolResult(ctx, "todo", "coder", "create_file", "Created file: app.py", tracker)

	assert.Equal(t, []string{"app.py"}, m.Snapshot(ctx, "todo").FilesCreated)

	// A later run uses a fresh tracker and records again.
	m.RecordToolResult(ctx, "todo", "coder", "create_file", "Created file: app.py", dedup.NewTracker())
	assert.Equal(t, []string{"app.py", "app.py"}, m.Snapshot(ctx, "todo").FilesCreated)
}

func TestManagerRecordToolResultModifiedRouting(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.RecordToolResult(ctx, "todo", "coder", "modify_file", "Modified file: config.yaml to add the port", dedup.NewTracker())

	snap := m.Snapshot(ctx, "todo")
	assert.Empty(t, snap.FilesCreated)
	assert.Equal(t, []string{"config.yaml"}, snap.FilesModified)
}

func TestManagerUpdateProjectSequenceAndScalar(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.UpdateProject(ctx, "todo", FieldNextSteps, "add auth"))
	require.NoError(t, m.UpdateProject(ctx, "todo", FieldNextSteps, []string{"deploy", "monitor"}))
	require.NoError(t, m.UpdateProject(ctx, "todo", FieldOriginalRequirements, "v2 requirements"))
	require.NoError(t, m.UpdateProject(ctx, "todo", FieldOriginalRequirements, "v3 requirements"))

	snap := m.Snapshot(ctx, "todo")
	assert.Equal(t, []string{"add auth", "deploy", "monitor"}, snap.NextSteps)
	assert.Equal(t, "v3 requirements", snap.OriginalRequirements)

	err := m.UpdateProject(ctx, "todo", Field("bogus"), "x")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestManagerUpdatePersistsAcrossManagers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m1 := NewManager(store, 50, logging.NewNop())
	require.NoError(t, m1.UpdateProject(ctx, "todo", FieldMilestonesCompleted, "v1 shipped"))

	m2 := NewManager(store, 50, logging.NewNop())
	assert.Equal(t, []string{"v1 shipped"}, m2.Snapshot(ctx, "todo").MilestonesCompleted)
}

func TestManagerStartProjectCapturesRequirementsOnce(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.StartProject(ctx, "todo", "build a todo API")
	m.StartProject(ctx, "todo", "something else entirely")

	assert.Equal(t, "build a todo API", m.Snapshot(ctx, "todo").OriginalRequirements)
}

func TestManagerContextSummary(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.StartProject(ctx, "todo", "build a todo API with auth")
	for i := 0; i < 7; i++ {
		require.NoError(t, m.UpdateProject(ctx, "todo", FieldFilesCreated, fmt.Sprintf("f%d.py", i)))
	}
	require.NoError(t, m.UpdateProject(ctx, "todo", FieldCurrentBlockers, "no database chosen"))
	require.NoError(t, m.UpdateProject(ctx, "todo", FieldNextSteps, "pick postgres"))

	summary := m.ContextSummary(ctx, "todo")
	assert.Contains(t, summary, "PROJECT: todo")
	assert.Contains(t, summary, "build a todo API with auth")
	assert.Contains(t, summary, "no database chosen")
	assert.Contains(t, summary, "pick postgres")
	// Only the five most recent files appear.
	assert.Contains(t, summary, "f6.py")
	assert.Contains(t, summary, "f2.py")
	assert.NotContains(t, summary, "f1.py")
}

func TestManagerContextSummaryTruncatesRequirements(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	long := ""
	for i := 0; i < 30; i++ {
		long += "requirement detail "
	}
	m.StartProject(ctx, "big", long)

	summary := m.ContextSummary(ctx, "big")
	assert.Contains(t, summary, "...")
	assert.NotContains(t, summary, long)
}

func TestManagerContextSummaryTruncatesOnRuneBoundary(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// Three-byte runes guarantee the 200-byte cut lands mid-rune for
	// some prefix length.
	m.StartProject(ctx, "big", strings.Repeat("需", 120))

	summary := m.ContextSummary(ctx, "big")
	assert.True(t, utf8.ValidString(summary))
	assert.Contains(t, summary, "...")
}

func TestManagerHarvestsInsightsFromSummaries(t *testing.T) {
	// Small log so summarization fires quickly.
	m := NewManager(newTestStore(t), 12, logging.NewNop())
	ctx := context.Background()

	m.Record(ctx, "todo", conversation.Entry{
		AgentName: "planner", Kind: conversation.KindHandoff, Content: "to coder",
	})
	m.Record(ctx, "todo", conversation.Entry{
		AgentName: "coder", Kind: conversation.KindError, Content: "tests failed",
	})
	for i := 0; i < 20; i++ {
		m.Record(ctx, "todo", conversation.Entry{
			AgentName: "coder", Kind: conversation.KindOutput, Content: "work",
		})
	}

	snap := m.Snapshot(ctx, "todo")
	assert.NotEmpty(t, snap.LessonsLearned)
	assert.NotEmpty(t, snap.HandoffPatterns)
}

func TestManagerHandoffContext(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		m.Record(ctx, "todo", conversation.Entry{
			AgentName: "planner", Kind: conversation.KindOutput, Content: fmt.Sprintf("c%d", i),
		})
	}

	last := m.HandoffContext(ctx, "todo", 3)
	require.Len(t, last, 3)
	assert.Equal(t, "c3", last[0].Content)
	assert.Equal(t, "c5", last[2].Content)
}
