// Package workflow plans and executes multi-agent coding runs: a fixed
// plan, code, review-and-test pipeline where independent steps run
// concurrently and every step's activity lands in project memory.
package workflow

import "time"

// Step is one node of a workflow: a role, its task, and the steps whose
// output it needs before it can start.
type Step struct {
	// Name identifies the step; by convention it matches the role name.
	Name string `json:"name"`
	// RoleName is the catalog role that executes this step.
	RoleName string `json:"role"`
	// Task is the instruction handed to the role.
	Task string `json:"task"`
	// DependsOn names the steps whose completed output this step consumes.
	DependsOn []string `json:"depends_on,omitempty"`
}

// StepStatus is the terminal state of one step in a run.
type StepStatus string

const (
	// StatusCompleted means the step produced output.
	StatusCompleted StepStatus = "completed"
	// StatusFailed means the step's executor returned an error.
	StatusFailed StepStatus = "failed"
	// StatusSkipped means a dependency failed so the step never ran.
	StatusSkipped StepStatus = "skipped"
)

// StepResult records how one step went.
type StepResult struct {
	Step          string        `json:"step"`
	Role          string        `json:"role"`
	Task          string        `json:"task"`
	Status        StepStatus    `json:"status"`
	Output        string        `json:"output,omitempty"`
	Error         string        `json:"error,omitempty"`
	TokensUsed    int           `json:"tokens_used,omitempty"`
	EstimatedCost float64       `json:"estimated_cost"`
	Elapsed       time.Duration `json:"elapsed"`
}

// RunResult is the outcome of a whole workflow run. It is always
// returned, failed steps included, so callers can inspect partial work.
type RunResult struct {
	Project       string        `json:"project"`
	Request       string        `json:"request"`
	Complexity    Complexity    `json:"complexity"`
	Success       bool          `json:"success"`
	Steps         []StepResult  `json:"steps"`
	FinalOutput   string        `json:"final_output"`
	EstimatedCost float64       `json:"estimated_cost"`
	Elapsed       time.Duration `json:"elapsed"`
	StartedAt     time.Time     `json:"started_at"`
}

// StepResultFor returns the named step's result, or nil.
func (r *RunResult) StepResultFor(name string) *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Step == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// Artifacts pairs each executed step's task with what it produced.
// Skipped steps are excluded; they never ran, so they have no artifact.
func (r *RunResult) Artifacts() []StepResult {
	out := make([]StepResult, 0, len(r.Steps))
	for _, sr := range r.Steps {
		if sr.Status == StatusSkipped {
			continue
		}
		out = append(out, sr)
	}
	return out
}
