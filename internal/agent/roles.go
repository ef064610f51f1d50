package agent

import "fmt"

// Role describes one member of the crew: what it does, which model backs
// it, and what a single step of it costs before complexity scaling.
type Role struct {
	// Name identifies the role in workflows and conversation entries.
	Name string
	// Description is the role's charter, used in prompts.
	Description string
	// SystemPrompt frames every request the role makes.
	SystemPrompt string
	// Model is the model identifier sent to the executor endpoint.
	Model string
	// BaseCost is the estimated dollar cost of one step at medium
	// complexity. Planning and coding use a stronger, pricier model
	// than review and testing.
	BaseCost float64
}

// Canonical role names.
const (
	RolePlanner  = "planner"
	RoleCoder    = "coder"
	RoleReviewer = "reviewer"
	RoleTester   = "tester"
)

// catalog holds the built-in crew. Order matters for display.
var catalog = []Role{
	{
		Name:        RolePlanner,
		Description: "breaks a request into a concrete implementation plan",
		SystemPrompt: "You are a senior software architect. Produce a short, " +
			"numbered implementation plan for the request. Name the files to " +
			"create and the key functions each needs. Be specific and brief.",
		Model:    "gpt-4",
		BaseCost: 0.03,
	},
	{
		Name:        RoleCoder,
		Description: "implements the plan as working code",
		SystemPrompt: "You are an expert programmer. Implement the plan you are " +
			"given. State each file you create as: Created file: <path>. " +
			"Write complete, runnable code.",
		Model:    "gpt-4",
		BaseCost: 0.03,
	},
	{
		Name:        RoleReviewer,
		Description: "reviews the implementation for defects and style",
		SystemPrompt: "You are a meticulous code reviewer. Review the " +
			"implementation for correctness, error handling, and clarity. " +
			"List concrete findings, most severe first.",
		Model:    "gpt-3.5-turbo",
		BaseCost: 0.002,
	},
	{
		Name:        RoleTester,
		Description: "writes and reasons through tests for the implementation",
		SystemPrompt: "You are a QA engineer. Write tests covering the main " +
			"paths and the edge cases of the implementation. State each test " +
			"file you create as: Created file: <path>.",
		Model:    "gpt-3.5-turbo",
		BaseCost: 0.002,
	},
}

// Roles returns the built-in crew in display order.
func Roles() []Role {
	out := make([]Role, len(catalog))
	copy(out, catalog)
	return out
}

// RoleByName looks up a catalog role.
func RoleByName(name string) (Role, error) {
	for _, r := range catalog {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, fmt.Errorf("unknown role %q", name)
}
