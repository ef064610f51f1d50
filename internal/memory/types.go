// Package memory persists per-project knowledge across workflow runs:
// what was asked for, what the crew built, what worked, what failed,
// and what remains. Documents are plain JSON on disk, one file per
// project, written atomically so a crash never leaves a half-written
// record.
package memory

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ProjectMemory is the durable record for one project. Sequence fields
// accumulate across runs; scalar fields hold the latest value.
type ProjectMemory struct {
	ProjectName          string    `json:"project_name"`
	CreatedAt            time.Time `json:"created_at"`
	LastUpdated          time.Time `json:"last_updated"`
	OriginalRequirements string    `json:"original_requirements"`
	CurrentObjectives    []string  `json:"current_objectives"`

	ArchitectureDecisions []string `json:"architecture_decisions"`
	FilesCreated          []string `json:"files_created"`
	FilesModified         []string `json:"files_modified"`
	KeyFunctions          []string `json:"key_functions"`

	SuccessfulPatterns []string `json:"successful_patterns"`
	FailedApproaches   []string `json:"failed_approaches"`
	LessonsLearned     []string `json:"lessons_learned"`

	MilestonesCompleted []string `json:"milestones_completed"`
	CurrentBlockers     []string `json:"current_blockers"`
	NextSteps           []string `json:"next_steps"`

	AgentSpecializations map[string]string `json:"agent_specializations"`
	HandoffPatterns      []string          `json:"handoff_patterns"`
}

// NewProjectMemory returns a fresh record for a project.
func NewProjectMemory(name, requirements string) *ProjectMemory {
	now := time.Now()
	return &ProjectMemory{
		ProjectName:          name,
		CreatedAt:            now,
		LastUpdated:          now,
		OriginalRequirements: requirements,
		AgentSpecializations: make(map[string]string),
	}
}

// HasFile reports whether path was recorded as created or modified.
func (m *ProjectMemory) HasFile(path string) bool {
	for _, f := range m.FilesCreated {
		if f == path {
			return true
		}
	}
	for _, f := range m.FilesModified {
		if f == path {
			return true
		}
	}
	return false
}

// ContextSummary renders the record into a prompt-ready briefing for
// agents starting a new run: the original ask, recent files, open
// blockers, and next steps.
func (m *ProjectMemory) ContextSummary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "PROJECT: %s\n", m.ProjectName)
	fmt.Fprintf(&b, "Started: %s\n", m.CreatedAt.Format("2006-01-02"))

	fmt.Fprintf(&b, "\nORIGINAL REQUIREMENTS:\n%s\n", truncate(m.OriginalRequirements, 200))

	if len(m.FilesCreated) > 0 {
		recent := m.FilesCreated
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		b.WriteString("\nRECENT FILES:\n")
		for _, f := range recent {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
	}

	if len(m.CurrentBlockers) > 0 {
		b.WriteString("\nCURRENT BLOCKERS:\n")
		for _, blocker := range m.CurrentBlockers {
			fmt.Fprintf(&b, "  - %s\n", blocker)
		}
	}

	if len(m.NextSteps) > 0 {
		b.WriteString("\nNEXT STEPS:\n")
		for _, step := range m.NextSteps {
			fmt.Fprintf(&b, "  - %s\n", step)
		}
	}

	return b.String()
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
