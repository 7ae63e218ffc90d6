package service

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk-core/internal/domain"
	"github.com/spec-kit/helpdesk-core/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-core/pkg/util"
)

// AssignmentResolver picks the next assignee from a department roster
// using its configured algorithm. It reads ticket history but never
// mutates anything itself.
type AssignmentResolver struct {
	tickets repository.TicketRepository
}

// NewAssignmentResolver constructs the resolver.
func NewAssignmentResolver(tickets repository.TicketRepository) *AssignmentResolver {
	return &AssignmentResolver{tickets: tickets}
}

// NextAssignee returns exactly one member id from a non-empty roster.
func (r *AssignmentResolver) NextAssignee(ctx context.Context, dept *domain.Department) (string, error) {
	if len(dept.MemberIDs) == 0 {
		return "", apperrors.NewInvalidState("no users available", map[string]any{"department_id": dept.ID})
	}
	switch dept.Algorithm {
	case domain.AlgorithmRoundRobin:
		return roundRobin(dept.MemberIDs, dept.LastAssignedID), nil
	case domain.AlgorithmLeastRecent:
		return r.leastRecentlyAssigned(ctx, dept.MemberIDs)
	case domain.AlgorithmLoadBalancing:
		return r.loadBalancing(ctx, dept.MemberIDs)
	default:
		return "", apperrors.NewInvalidArgument("unknown assignment algorithm", map[string]any{"algorithm": dept.Algorithm})
	}
}

// roundRobin advances one past the cursor, wrapping around. A nil or
// stale cursor restarts at the head of the roster.
func roundRobin(members []string, lastAssigned *string) string {
	index := -1
	if lastAssigned != nil {
		for i, member := range members {
			if member == *lastAssigned {
				index = i
				break
			}
		}
	}
	return members[(index+1)%len(members)]
}

// leastRecentlyAssigned prefers the member whose newest assigned ticket
// is oldest. Members never assigned carry the zero time, so they always
// win. Ties keep roster order.
func (r *AssignmentResolver) leastRecentlyAssigned(ctx context.Context, members []string) (string, error) {
	var (
		best   string
		bestAt time.Time
		found  bool
	)
	for _, member := range members {
		latest, err := r.tickets.LatestAssignedAt(ctx, member)
		if err != nil {
			return "", err
		}
		if !found || latest.Before(bestAt) {
			best = member
			bestAt = latest
			found = true
		}
	}
	return best, nil
}

// loadBalancing prefers the member with the fewest open or in-progress
// tickets. Ties keep roster order.
func (r *AssignmentResolver) loadBalancing(ctx context.Context, members []string) (string, error) {
	var (
		best      string
		bestCount int
		found     bool
	)
	for _, member := range members {
		count, err := r.tickets.CountOpenAssigned(ctx, member)
		if err != nil {
			return "", err
		}
		if !found || count < bestCount {
			best = member
			bestCount = count
			found = true
		}
	}
	return best, nil
}
