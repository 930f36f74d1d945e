package workload

import "fmt"

const (
	// StepRecentUpdates is the read back of the two most recent updates.
	StepRecentUpdates = "recent_updates"

	// StepEntityState is the read back of the folded entity state.
	StepEntityState = "entity_state"
)

// ConsistencyViolation reports that the store answered differently than the unit's own writes imply.
type ConsistencyViolation struct {
	Step     string
	Expected any
	Actual   any
}

func (v *ConsistencyViolation) Error() string {
	return fmt.Sprintf("%s in step %s: expected %v, got %v", ErrConsistencyViolation, v.Step, v.Expected, v.Actual)
}

// Is makes errors.Is(err, ErrConsistencyViolation) hold for every *ConsistencyViolation.
func (v *ConsistencyViolation) Is(target error) bool {
	return target == ErrConsistencyViolation
}
