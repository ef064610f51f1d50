package agent

import (
	"fmt"
	"sort"
	"strings"
)

// BuildUserPrompt assembles the user message for a step: project memory
// briefing first, then outputs of completed dependencies, then the task.
// Upstream outputs render in role-name order so the prompt is stable
// regardless of which concurrent step finished first.
func BuildUserPrompt(req InvokeRequest) string {
	var b strings.Builder

	if req.ProjectContext != "" {
		b.WriteString(req.ProjectContext)
		b.WriteString("\n")
	}

	if len(req.UpstreamOutputs) > 0 {
		names := make([]string, 0, len(req.UpstreamOutputs))
		for name := range req.UpstreamOutputs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "OUTPUT FROM %s:\n%s\n\n", strings.ToUpper(name), req.UpstreamOutputs[name])
		}
	}

	fmt.Fprintf(&b, "TASK:\n%s\n", req.Task)
	return b.String()
}
