// Package conversation implements the append-only, size-bounded event log
// that records everything a crew does within a project.
//
// A Log holds ConversationEntry values in arrival order. When an append
// pushes the log past its configured maximum length, the log synchronously
// collapses its older partition into a single summary entry; only the most
// recent entries survive verbatim. Summarization is a pure function of the
// entries being summarized, so the same history always produces the same
// summary text.
//
// The Log is not safe for concurrent use; the owning memory.Manager
// serializes access per project.
package conversation
