package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/conversation"
	"github.com/fyrsmithlabs/crewd/internal/dedup"
	"github.com/fyrsmithlabs/crewd/internal/logging"
)

// Manager owns the conversation log and memory record for each active
// project. All public methods are safe for concurrent use; a single
// mutex serializes access since workflow runs touch memory at step
// granularity, not in tight loops.
type Manager struct {
	mu        sync.Mutex
	store     *Store
	logger    *logging.Logger
	maxLength int
	projects  map[string]*projectState

	summaryCounter metric.Int64Counter
	dedupCounter   metric.Int64Counter
}

type projectState struct {
	log *conversation.Log
	mem *ProjectMemory
}

// NewManager returns a manager backed by store. maxConversationLength
// bounds each project's log before summarization kicks in.
func NewManager(store *Store, maxConversationLength int, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		store:     store,
		logger:    logger.Named("memory"),
		maxLength: maxConversationLength,
		projects:  make(map[string]*projectState),
	}

	meter := otel.Meter("crewd/memory")
	var err error
	m.summaryCounter, err = meter.Int64Counter("crewd.memory.summarizations",
		metric.WithDescription("Conversation summarizations per project"))
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create summarization counter", zap.Error(err))
	}
	m.dedupCounter, err = meter.Int64Counter("crewd.memory.dedup_hits",
		metric.WithDescription("Duplicate file actions suppressed within a run"))
	if err != nil {
		m.logger.Warn(context.Background(), "failed to create dedup counter", zap.Error(err))
	}
	return m
}

// project returns the in-memory state for a project, loading it from the
// store on first access. Caller must hold m.mu.
func (m *Manager) project(ctx context.Context, name string) *projectState {
	if st, ok := m.projects[name]; ok {
		return st
	}
	st := &projectState{
		log: conversation.NewLog(m.maxLength, m.logger),
		mem: m.store.Load(ctx, name),
	}
	st.log.SetOnSummary(func(sctx context.Context, summary string) {
		m.harvestInsights(sctx, name, st, summary)
	})
	m.projects[name] = st
	return st
}

// StartProject ensures a project record exists and captures the original
// requirements on first contact. Later calls never overwrite them.
func (m *Manager) StartProject(ctx context.Context, name, requirements string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.project(ctx, name)
	if st.mem.OriginalRequirements == "" && requirements != "" {
		st.mem.OriginalRequirements = requirements
		st.mem.LastUpdated = time.Now()
		m.save(ctx, st)
	}
}

// Record appends an entry to the project's conversation log. The log may
// summarize as a side effect, which can in turn enrich project memory.
func (m *Manager) Record(ctx context.Context, project string, e conversation.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.project(ctx, project).log.Append(ctx, e)
}

// RecordOutput logs an agent's response text. Output prose is never
// mined for file paths; file tracking happens in RecordToolResult.
func (m *Manager) RecordOutput(ctx context.Context, project, agent, content string, tokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.project(ctx, project)
	st.log.Append(ctx, conversation.Entry{
		AgentName: agent,
		Kind:      conversation.KindOutput,
		Content:   content,
		Tokens:    tokens,
	})
}

// RecordToolResult logs a tool's output and, when the tool is a
// file-writing one, mines the result for the touched path. Extracted
// paths are deduplicated against tracker so one run records each file
// action once, then appended to the appropriate memory field.
func (m *Manager) RecordToolResult(ctx context.Context, project, agent, toolName, result string, tracker *dedup.Tracker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.project(ctx, project)
	st.log.Append(ctx, conversation.Entry{
		AgentName: agent,
		Kind:      conversation.KindToolResult,
		Content:   result,
		Metadata:  map[string]any{"tool": toolName},
	})

	action, ok := dedup.ActionForTool(toolName)
	if !ok {
		return
	}
	path, ok := dedup.ExtractFilePath(result)
	if !ok {
		return
	}
	if tracker != nil && !tracker.Claim(action, path) {
		if m.dedupCounter != nil {
			m.dedupCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("action", string(action))))
		}
		m.logger.Trace(ctx, "duplicate file action suppressed",
			zap.String("project", project),
			zap.String("path", path),
			zap.String("action", string(action)),
		)
		return
	}

	field := FieldFilesCreated
	kind := conversation.KindFileCreated
	if action == dedup.ActionModified {
		field = FieldFilesModified
		kind = conversation.KindFileModified
	}
	if err := st.mem.Apply(field, path); err != nil {
		m.logger.Warn(ctx, "failed to record file action", zap.Error(err))
		return
	}
	st.log.Append(ctx, conversation.Entry{
		AgentName: agent,
		Kind:      kind,
		Content:   path,
	})
	m.save(ctx, st)
}

// UpdateProject applies a single field update to project memory and
// persists the record.
func (m *Manager) UpdateProject(ctx context.Context, project string, field Field, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.project(ctx, project)
	if err := st.mem.Apply(field, value); err != nil {
		return err
	}
	m.save(ctx, st)
	return nil
}

// SetAgentSpecialization records an agent's proven strength for a project.
func (m *Manager) SetAgentSpecialization(ctx context.Context, project, agent, specialization string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.project(ctx, project)
	st.mem.SetAgentSpecialization(agent, specialization)
	m.save(ctx, st)
}

// Snapshot returns a copy of the project's memory record. Mutating the
// copy does not affect the stored record.
func (m *Manager) Snapshot(ctx context.Context, project string) *ProjectMemory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.project(ctx, project).mem.clone()
}

// ContextSummary renders the project briefing injected into agent prompts.
func (m *Manager) ContextSummary(ctx context.Context, project string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.project(ctx, project).mem.ContextSummary()
}

// HasFile reports whether the project has recorded path as created or
// modified in any run.
func (m *Manager) HasFile(ctx context.Context, project, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.project(ctx, project).mem.HasFile(path)
}

// HandoffContext returns the most recent n conversation entries, the
// snapshot that travels with an agent handoff.
func (m *Manager) HandoffContext(ctx context.Context, project string, n int) []conversation.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.project(ctx, project).log.LastN(n)
}

// ConversationLen returns the current conversation log length, summary
// entries included.
func (m *Manager) ConversationLen(ctx context.Context, project string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.project(ctx, project).log.Len()
}

// Flush persists the project's memory record immediately.
func (m *Manager) Flush(ctx context.Context, project string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.save(ctx, m.project(ctx, project))
}

// save persists with one retry. Persistence failure degrades to a warning
// rather than an error: losing a save must never fail a workflow run.
// Caller must hold m.mu.
func (m *Manager) save(ctx context.Context, st *projectState) {
	err := m.store.Save(ctx, st.mem)
	if err == nil {
		return
	}
	m.logger.Warn(ctx, "project memory save failed, retrying",
		zap.String("project", st.mem.ProjectName),
		zap.Error(err),
	)
	if err = m.store.Save(ctx, st.mem); err != nil {
		m.logger.Warn(ctx, "project memory save failed after retry, continuing without persistence",
			zap.String("project", st.mem.ProjectName),
			zap.Error(err),
		)
	}
}

// harvestInsights scans a fresh conversation summary for signals worth
// keeping long term. Matching is a plain substring check on purpose;
// summaries are machine-built and name their events literally. Caller
// must hold m.mu.
func (m *Manager) harvestInsights(ctx context.Context, project string, st *projectState, summary string) {
	if m.summaryCounter != nil {
		m.summaryCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("project", project)))
	}

	lower := strings.ToLower(summary)
	changed := false

	if strings.Contains(lower, "error") {
		st.mem.LessonsLearned = append(st.mem.LessonsLearned,
			"errors surfaced during recent work, review the conversation summary")
		changed = true
	}
	if strings.Contains(lower, "handoff") {
		st.mem.HandoffPatterns = append(st.mem.HandoffPatterns,
			"agents exchanged handoffs during recent work")
		changed = true
	}
	if changed {
		st.mem.LastUpdated = time.Now()
		m.save(ctx, st)
		m.logger.Debug(ctx, "insights harvested from summary",
			zap.String("project", project),
		)
	}
}

// clone makes a deep copy of the record.
func (m *ProjectMemory) clone() *ProjectMemory {
	out := *m
	out.CurrentObjectives = append([]string(nil), m.CurrentObjectives...)
	out.ArchitectureDecisions = append([]string(nil), m.ArchitectureDecisions...)
	out.FilesCreated = append([]string(nil), m.FilesCreated...)
	out.FilesModified = append([]string(nil), m.FilesModified...)
	out.KeyFunctions = append([]string(nil), m.KeyFunctions...)
	out.SuccessfulPatterns = append([]string(nil), m.SuccessfulPatterns...)
	out.FailedApproaches = append([]string(nil), m.FailedApproaches...)
	out.LessonsLearned = append([]string(nil), m.LessonsLearned...)
	out.MilestonesCompleted = append([]string(nil), m.MilestonesCompleted...)
	out.CurrentBlockers = append([]string(nil), m.CurrentBlockers...)
	out.NextSteps = append([]string(nil), m.NextSteps...)
	out.HandoffPatterns = append([]string(nil), m.HandoffPatterns...)
	out.AgentSpecializations = make(map[string]string, len(m.AgentSpecializations))
	for k, v := range m.AgentSpecializations {
		out.AgentSpecializations[k] = v
	}
	return &out
}
