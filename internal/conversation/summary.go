package conversation

import (
	"fmt"
	"sort"
	"strings"
)

// BuildSummary renders a deterministic plain-text digest of entries. It
// enumerates per-agent activity in order of first appearance, then lists
// every handoff and error event verbatim with its timestamp. The output
// depends only on the input slice, so repeated summarization of the same
// history yields identical text.
func BuildSummary(entries []Entry) string {
	if len(entries) == 0 {
		return "CONVERSATION SUMMARY: no entries"
	}

	type activity struct {
		name  string
		count int
		kinds map[Kind]struct{}
	}
	byAgent := make(map[string]*activity)
	order := make([]*activity, 0, 4)
	for _, e := range entries {
		a, ok := byAgent[e.AgentName]
		if !ok {
			a = &activity{name: e.AgentName, kinds: make(map[Kind]struct{})}
			byAgent[e.AgentName] = a
			order = append(order, a)
		}
		a.count++
		a.kinds[e.Kind] = struct{}{}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CONVERSATION SUMMARY (%s - %s)\n",
		entries[0].Timestamp.Format("15:04"),
		entries[len(entries)-1].Timestamp.Format("15:04"))

	b.WriteString("\nAgent activity:\n")
	for _, a := range order {
		kinds := make([]string, 0, len(a.kinds))
		for k := range a.kinds {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		fmt.Fprintf(&b, "  - %s: %d entries (%s)\n", a.name, a.count, strings.Join(kinds, ", "))
	}

	var events []string
	for _, e := range entries {
		switch e.Kind {
		case KindHandoff, KindError:
			events = append(events, fmt.Sprintf("  - %s %s [%s]: %s",
				e.Timestamp.Format("15:04"), e.AgentName, e.Kind, firstLine(e.Content)))
		}
	}
	if len(events) > 0 {
		b.WriteString("\nKey events:\n")
		b.WriteString(strings.Join(events, "\n"))
		b.WriteString("\n")
	}

	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
