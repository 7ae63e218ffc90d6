package domain

import "time"

// AssignmentAlgorithm selects how auto-assignment distributes tickets
// over a department's members.
type AssignmentAlgorithm string

const (
	AlgorithmRoundRobin    AssignmentAlgorithm = "ROUND_ROBIN"
	AlgorithmLeastRecent   AssignmentAlgorithm = "LEAST_RECENTLY_ASSIGNED"
	AlgorithmLoadBalancing AssignmentAlgorithm = "LOAD_BALANCING"
)

// ValidAlgorithm reports whether a is one of the three known algorithms.
func ValidAlgorithm(a AssignmentAlgorithm) bool {
	switch a {
	case AlgorithmRoundRobin, AlgorithmLeastRecent, AlgorithmLoadBalancing:
		return true
	}
	return false
}

// Department is a named pool of support agents with one configured
// assignment algorithm. LastAssignedID is the round-robin cursor and is
// mutated only by that algorithm.
type Department struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	MemberIDs      []string            `json:"member_ids"`
	Algorithm      AssignmentAlgorithm `json:"algorithm"`
	LastAssignedID *string             `json:"last_assigned_id,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}
