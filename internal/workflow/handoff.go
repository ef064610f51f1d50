package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/crewd/internal/conversation"
	"github.com/fyrsmithlabs/crewd/internal/memory"
)

// Handoff passes work from one agent to another outside the fixed
// workflow order. The receiving agent gets a snapshot of the
// originator's recent conversation so context survives the transfer.
// The snapshot is returned so callers can inject it into the next
// step's prompt.
func (e *Engine) Handoff(ctx context.Context, project, from, to, reason string) []conversation.Entry {
	snapshot := e.recordHandoff(ctx, project, from, to, reason)
	e.logger.Info(ctx, "agent handoff",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("reason", reason),
	)
	return snapshot
}

// recordHandoff writes the handoff conversation entry and remembers the
// pattern in project memory.
func (e *Engine) recordHandoff(ctx context.Context, project, from, to, reason string) []conversation.Entry {
	snapshot := e.memory.HandoffContext(ctx, project, e.cfg.HandoffContextEntries)

	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s: %s", from, to, reason)
	if len(snapshot) > 0 {
		b.WriteString("\nrecent context:")
		for _, entry := range snapshot {
			fmt.Fprintf(&b, "\n  [%s] %s: %s",
				entry.Kind, entry.AgentName, firstLine(entry.Content))
		}
	}

	e.memory.Record(ctx, project, conversation.Entry{
		AgentName: from,
		Kind:      conversation.KindHandoff,
		Content:   b.String(),
		Metadata:  map[string]any{"to": to},
	})

	pattern := fmt.Sprintf("%s -> %s at %s", from, to, time.Now().Format("15:04"))
	if err := e.memory.UpdateProject(ctx, project, memory.FieldHandoffPatterns, pattern); err != nil {
		e.logger.Warn(ctx, "failed to record handoff pattern", zap.Error(err))
	}
	return snapshot
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
