// Package agent defines the crew roles, their prompt construction, and
// the executor that runs a role's step against a model endpoint.
package agent

import "context"

// InvokeRequest is one agent step: a role acting on a task with whatever
// context earlier steps and project memory provide.
type InvokeRequest struct {
	// Role is the catalog role executing this step.
	Role Role
	// Task is the concrete instruction for this step.
	Task string
	// ProjectContext is the memory briefing injected ahead of the task.
	ProjectContext string
	// UpstreamOutputs are outputs of completed dependency steps, keyed
	// by the producing role name.
	UpstreamOutputs map[string]string
}

// ToolCall is a tool invocation the model requested during a step.
type ToolCall struct {
	// Name is the tool the model asked for.
	Name string
	// Arguments is the raw JSON argument payload.
	Arguments string
	// Result is the tool's output, empty when the executor did not run
	// the tool. File tracking keys off results of file tools, never off
	// response prose.
	Result string
}

// InvokeResult is what came back from running a step.
type InvokeResult struct {
	// Output is the model's response text.
	Output string
	// ToolCalls are the tool invocations the model requested, in order.
	ToolCalls []ToolCall
	// HandoffTarget names the role the agent asked to hand off to, empty
	// when the step ended without a handoff.
	HandoffTarget string
	// TokensUsed is the total token count the endpoint reported, zero
	// when the endpoint omits usage.
	TokensUsed int
	// Model is the model that actually served the request.
	Model string
}

// Executor runs agent steps. Implementations must be safe for concurrent
// use; the workflow engine invokes independent steps in parallel.
type Executor interface {
	Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error)
}
