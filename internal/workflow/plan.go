package workflow

import (
	"fmt"

	"github.com/fyrsmithlabs/crewd/internal/agent"
)

// Plan returns the standard coding workflow for a request: the planner
// works alone, the coder consumes the plan, and the reviewer and tester
// both consume the code and run concurrently.
func Plan(request string) []Step {
	return []Step{
		{
			Name:     agent.RolePlanner,
			RoleName: agent.RolePlanner,
			Task:     "Create an implementation plan for: " + request,
		},
		{
			Name:      agent.RoleCoder,
			RoleName:  agent.RoleCoder,
			Task:      "Implement the plan for: " + request,
			DependsOn: []string{agent.RolePlanner},
		},
		{
			Name:      agent.RoleReviewer,
			RoleName:  agent.RoleReviewer,
			Task:      "Review the implementation of: " + request,
			DependsOn: []string{agent.RoleCoder},
		},
		{
			Name:      agent.RoleTester,
			RoleName:  agent.RoleTester,
			Task:      "Write tests for the implementation of: " + request,
			DependsOn: []string{agent.RoleCoder},
		},
	}
}

// waves orders steps into execution waves: every step in a wave has all
// its dependencies satisfied by earlier waves, so steps within a wave
// can run concurrently. Returns an error on unknown dependencies or
// cycles.
func waves(steps []Step) ([][]Step, error) {
	byName := make(map[string]Step, len(steps))
	for _, s := range steps {
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate step %q", s.Name)
		}
		byName[s.Name] = s
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("step %q depends on unknown step %q", s.Name, dep)
			}
		}
	}

	done := make(map[string]bool, len(steps))
	remaining := append([]Step(nil), steps...)
	var out [][]Step
	for len(remaining) > 0 {
		var wave []Step
		var next []Step
		for _, s := range remaining {
			ready := true
			for _, dep := range s.DependsOn {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, s)
			} else {
				next = append(next, s)
			}
		}
		if len(wave) == 0 {
			return nil, fmt.Errorf("dependency cycle among %d steps", len(remaining))
		}
		for _, s := range wave {
			done[s.Name] = true
		}
		out = append(out, wave)
		remaining = next
	}
	return out, nil
}
