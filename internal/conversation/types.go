package conversation

import "time"

// Kind classifies a conversation entry. The values are stable strings so
// they read naturally in summaries and persisted insight text.
type Kind string

const (
	// KindInput is a prompt or task handed to an agent.
	KindInput Kind = "input"
	// KindOutput is an agent's response text.
	KindOutput Kind = "output"
	// KindHandoff records one agent passing work to another.
	KindHandoff Kind = "handoff"
	// KindToolCall records an agent invoking a tool.
	KindToolCall Kind = "tool_call"
	// KindToolResult records a tool's return value.
	KindToolResult Kind = "tool_result"
	// KindFileCreated records a file the crew created.
	KindFileCreated Kind = "file_created"
	// KindFileModified records a file the crew modified.
	KindFileModified Kind = "file_modified"
	// KindError records a step or tool failure.
	KindError Kind = "error"
	// KindSummary marks a synthetic entry produced by summarization.
	KindSummary Kind = "summary"
	// KindRunStart marks the beginning of a workflow run.
	KindRunStart Kind = "run_start"
	// KindRunEnd marks the end of a workflow run.
	KindRunEnd Kind = "run_end"
)

// Valid reports whether k is one of the defined entry kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindInput, KindOutput, KindHandoff, KindToolCall, KindToolResult,
		KindFileCreated, KindFileModified, KindError, KindSummary,
		KindRunStart, KindRunEnd:
		return true
	}
	return false
}

// SummaryAgent is the agent name attached to synthetic summary entries.
const SummaryAgent = "memory"

// Entry is a single event in a project's conversation log.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	AgentName string         `json:"agent_name"`
	Kind      Kind           `json:"kind"`
	Content   string         `json:"content"`
	Tokens    int            `json:"tokens,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
