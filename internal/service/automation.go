package service

import (
	"context"
	"strings"

	"github.com/spec-kit/helpdesk-core/internal/domain"
	"github.com/spec-kit/helpdesk-core/internal/repository"
)

// AutomationEngine evaluates active rules against a ticket and trigger,
// applying matching actions as in-memory mutations. It never touches
// storage itself and never mutates the rules it reads.
type AutomationEngine struct {
	rules repository.RuleRepository
}

// NewAutomationEngine constructs the engine.
func NewAutomationEngine(rules repository.RuleRepository) *AutomationEngine {
	return &AutomationEngine{rules: rules}
}

// Apply runs every active rule for the trigger, in retrieval order,
// against the ticket. It reports whether any action mutated the ticket so
// the caller can persist exactly once per trigger. Later rules may
// overwrite earlier rules' mutations on the same field; rules never
// trigger other rules.
func (e *AutomationEngine) Apply(ctx context.Context, ticket *domain.Ticket, trigger domain.TriggerType) (bool, error) {
	rules, err := e.rules.ListActiveByTrigger(ctx, trigger)
	if err != nil {
		return false, err
	}

	mutated := false
	for _, rule := range rules {
		if !matches(ticket, rule.Conditions) {
			continue
		}
		for _, action := range rule.Actions {
			if applyAction(ticket, action) {
				mutated = true
			}
		}
	}
	return mutated, nil
}

// matches tests a conjunction of conditions; zero-valued fields are
// wildcards.
func matches(ticket *domain.Ticket, cond domain.RuleConditions) bool {
	if cond.Category != "" && ticket.Category != cond.Category {
		return false
	}
	if cond.Priority != "" && ticket.Priority != cond.Priority {
		return false
	}
	if len(cond.Keywords) > 0 {
		haystack := strings.ToLower(ticket.Title + " " + ticket.Description)
		hit := false
		for _, keyword := range cond.Keywords {
			if keyword == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(keyword)) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// applyAction mutates the ticket per the action variant and reports
// whether it did. Stored values are applied as given; validation happened
// where the rule was stored. SEND_NOTIFICATION is a documented no-op.
func applyAction(ticket *domain.Ticket, action domain.RuleAction) bool {
	switch action.Type {
	case domain.ActionAssignTo:
		if action.AssignTo == nil {
			return false
		}
		userID := action.AssignTo.UserID
		ticket.AssigneeID = &userID
		return true
	case domain.ActionSetPriority:
		if action.SetPriority == nil {
			return false
		}
		ticket.Priority = action.SetPriority.Value
		return true
	case domain.ActionSetStatus:
		if action.SetStatus == nil {
			return false
		}
		ticket.Status = action.SetStatus.Value
		return true
	}
	return false
}
