package memory

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownField is returned when an update names a field that is not
// part of the ProjectMemory schema.
var ErrUnknownField = errors.New("unknown memory field")

// Field names an updatable part of a ProjectMemory record. Using an
// explicit enum instead of reflection keeps update semantics visible and
// catches typos at the call site.
type Field string

const (
	FieldOriginalRequirements  Field = "original_requirements"
	FieldCurrentObjectives     Field = "current_objectives"
	FieldArchitectureDecisions Field = "architecture_decisions"
	FieldFilesCreated          Field = "files_created"
	FieldFilesModified         Field = "files_modified"
	FieldKeyFunctions          Field = "key_functions"
	FieldSuccessfulPatterns    Field = "successful_patterns"
	FieldFailedApproaches      Field = "failed_approaches"
	FieldLessonsLearned        Field = "lessons_learned"
	FieldMilestonesCompleted   Field = "milestones_completed"
	FieldCurrentBlockers       Field = "current_blockers"
	FieldNextSteps             Field = "next_steps"
	FieldHandoffPatterns       Field = "handoff_patterns"
)

// sequenceFields accumulate values; everything else replaces.
var sequenceFields = map[Field]bool{
	FieldCurrentObjectives:     true,
	FieldArchitectureDecisions: true,
	FieldFilesCreated:          true,
	FieldFilesModified:         true,
	FieldKeyFunctions:          true,
	FieldSuccessfulPatterns:    true,
	FieldFailedApproaches:      true,
	FieldLessonsLearned:        true,
	FieldMilestonesCompleted:   true,
	FieldCurrentBlockers:       true,
	FieldNextSteps:             true,
	FieldHandoffPatterns:       true,
}

// IsSequence reports whether the field accumulates values on update.
func (f Field) IsSequence() bool { return sequenceFields[f] }

// Apply updates one field of the record. Sequence fields append the
// value (or extend when given a slice); scalar fields replace. The
// last-updated timestamp always advances.
func (m *ProjectMemory) Apply(field Field, value any) error {
	switch field {
	case FieldOriginalRequirements:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %s takes a string, got %T", field, value)
		}
		m.OriginalRequirements = s

	case FieldCurrentObjectives:
		return m.applySequence(field, &m.CurrentObjectives, value)
	case FieldArchitectureDecisions:
		return m.applySequence(field, &m.ArchitectureDecisions, value)
	case FieldFilesCreated:
		return m.applySequence(field, &m.FilesCreated, value)
	case FieldFilesModified:
		return m.applySequence(field, &m.FilesModified, value)
	case FieldKeyFunctions:
		return m.applySequence(field, &m.KeyFunctions, value)
	case FieldSuccessfulPatterns:
		return m.applySequence(field, &m.SuccessfulPatterns, value)
	case FieldFailedApproaches:
		return m.applySequence(field, &m.FailedApproaches, value)
	case FieldLessonsLearned:
		return m.applySequence(field, &m.LessonsLearned, value)
	case FieldMilestonesCompleted:
		return m.applySequence(field, &m.MilestonesCompleted, value)
	case FieldCurrentBlockers:
		return m.applySequence(field, &m.CurrentBlockers, value)
	case FieldNextSteps:
		return m.applySequence(field, &m.NextSteps, value)
	case FieldHandoffPatterns:
		return m.applySequence(field, &m.HandoffPatterns, value)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	m.LastUpdated = time.Now()
	return nil
}

func (m *ProjectMemory) applySequence(field Field, target *[]string, value any) error {
	switch v := value.(type) {
	case string:
		*target = append(*target, v)
	case []string:
		*target = append(*target, v...)
	default:
		return fmt.Errorf("field %s takes a string or []string, got %T", field, value)
	}
	m.LastUpdated = time.Now()
	return nil
}

// SetAgentSpecialization records what an agent proved good at on this
// project. Later entries for the same agent replace earlier ones.
func (m *ProjectMemory) SetAgentSpecialization(agent, specialization string) {
	if m.AgentSpecializations == nil {
		m.AgentSpecializations = make(map[string]string)
	}
	m.AgentSpecializations[agent] = specialization
	m.LastUpdated = time.Now()
}
