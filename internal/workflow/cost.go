package workflow

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/crewd/internal/agent"
)

// Complexity scales step cost estimates. Harder requests burn more
// tokens per step, so the per-role base cost is multiplied up or down.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
	ComplexityExpert  Complexity = "expert"
)

var complexityMultipliers = map[Complexity]float64{
	ComplexitySimple:  0.5,
	ComplexityMedium:  1.0,
	ComplexityComplex: 2.0,
	ComplexityExpert:  3.0,
}

// ParseComplexity validates a complexity string. Empty input yields
// medium, the neutral multiplier.
func ParseComplexity(s string) (Complexity, error) {
	if s == "" {
		return ComplexityMedium, nil
	}
	c := Complexity(strings.ToLower(s))
	if _, ok := complexityMultipliers[c]; !ok {
		return "", fmt.Errorf("unknown complexity %q", s)
	}
	return c, nil
}

// Multiplier returns the cost scaling factor. Unknown values fall back
// to the medium multiplier rather than zeroing out estimates.
func (c Complexity) Multiplier() float64 {
	if m, ok := complexityMultipliers[c]; ok {
		return m
	}
	return complexityMultipliers[ComplexityMedium]
}

// simpleMarkers and complexMarkers drive request classification. A
// request naming heavyweight work classifies up, trivial wording
// classifies down, anything else stays medium.
var (
	complexMarkers = []string{
		"architecture", "distributed", "microservice", "migration",
		"concurren", "scalab", "security audit", "refactor the entire",
	}
	expertMarkers = []string{
		"compiler", "kernel", "consensus", "cryptograph", "zero-downtime",
	}
	simpleMarkers = []string{
		"typo", "rename", "one-line", "small fix", "comment", "readme",
	}
)

// ClassifyComplexity estimates a request's complexity from its wording,
// with fallback as the result when no marker matches.
func ClassifyComplexity(request string, fallback Complexity) Complexity {
	lower := strings.ToLower(request)
	for _, m := range expertMarkers {
		if strings.Contains(lower, m) {
			return ComplexityExpert
		}
	}
	for _, m := range complexMarkers {
		if strings.Contains(lower, m) {
			return ComplexityComplex
		}
	}
	for _, m := range simpleMarkers {
		if strings.Contains(lower, m) {
			return ComplexitySimple
		}
	}
	if fallback == "" {
		return ComplexityMedium
	}
	return fallback
}

// EstimateStepCost prices one step: the role's base cost scaled by
// complexity.
func EstimateStepCost(role agent.Role, c Complexity) float64 {
	return role.BaseCost * c.Multiplier()
}

// EstimateRunCost prices a whole workflow before running it.
func EstimateRunCost(steps []Step, c Complexity) (float64, error) {
	var total float64
	for _, s := range steps {
		role, err := agent.RoleByName(s.RoleName)
		if err != nil {
			return 0, err
		}
		total += EstimateStepCost(role, c)
	}
	return total, nil
}
