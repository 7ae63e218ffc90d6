package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TriggerType enumerates lifecycle moments a rule can react to.
type TriggerType string

const (
	TriggerOnCreate         TriggerType = "ON_CREATE"
	TriggerOnStatusChange   TriggerType = "ON_STATUS_CHANGE"
	TriggerOnPriorityChange TriggerType = "ON_PRIORITY_CHANGE"
)

// ValidTrigger reports whether t is a known trigger type.
func ValidTrigger(t TriggerType) bool {
	switch t {
	case TriggerOnCreate, TriggerOnStatusChange, TriggerOnPriorityChange:
		return true
	}
	return false
}

// RuleConditions is a conjunction; zero-valued fields are wildcards.
// Keywords match when at least one of them is a case-insensitive
// substring of the ticket title plus description.
type RuleConditions struct {
	Category string         `json:"category,omitempty"`
	Priority TicketPriority `json:"priority,omitempty"`
	Keywords []string       `json:"keywords,omitempty"`
}

// ActionType enumerates rule action kinds.
type ActionType string

const (
	ActionAssignTo         ActionType = "ASSIGN_TO"
	ActionSetPriority      ActionType = "SET_PRIORITY"
	ActionSetStatus        ActionType = "SET_STATUS"
	ActionSendNotification ActionType = "SEND_NOTIFICATION"
)

// RuleAction is a tagged union: exactly the variant matching Type is set.
// The shape is validated where the rule is stored, not at evaluation time;
// evaluation applies whatever value was stored.
type RuleAction struct {
	Type        ActionType
	AssignTo    *AssignToAction
	SetPriority *SetPriorityAction
	SetStatus   *SetStatusAction
}

// AssignToAction sets the ticket assignee.
type AssignToAction struct {
	UserID string `json:"user_id"`
}

// SetPriorityAction overwrites the ticket priority.
type SetPriorityAction struct {
	Value TicketPriority `json:"value"`
}

// SetStatusAction overwrites the ticket status.
type SetStatusAction struct {
	Value TicketStatus `json:"value"`
}

type ruleActionWire struct {
	Type   ActionType `json:"type"`
	UserID string     `json:"user_id,omitempty"`
	Value  string     `json:"value,omitempty"`
}

// MarshalJSON flattens the union into {type, user_id?/value?}.
func (a RuleAction) MarshalJSON() ([]byte, error) {
	wire := ruleActionWire{Type: a.Type}
	switch a.Type {
	case ActionAssignTo:
		if a.AssignTo != nil {
			wire.UserID = a.AssignTo.UserID
		}
	case ActionSetPriority:
		if a.SetPriority != nil {
			wire.Value = string(a.SetPriority.Value)
		}
	case ActionSetStatus:
		if a.SetStatus != nil {
			wire.Value = string(a.SetStatus.Value)
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes and validates the union shape. Unknown action
// types and missing params are rejected here so evaluation never sees a
// malformed action.
func (a *RuleAction) UnmarshalJSON(data []byte) error {
	var wire ruleActionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Type {
	case ActionAssignTo:
		if wire.UserID == "" {
			return fmt.Errorf("action %s requires user_id", wire.Type)
		}
		*a = RuleAction{Type: wire.Type, AssignTo: &AssignToAction{UserID: wire.UserID}}
	case ActionSetPriority:
		if wire.Value == "" {
			return fmt.Errorf("action %s requires value", wire.Type)
		}
		*a = RuleAction{Type: wire.Type, SetPriority: &SetPriorityAction{Value: TicketPriority(wire.Value)}}
	case ActionSetStatus:
		if wire.Value == "" {
			return fmt.Errorf("action %s requires value", wire.Type)
		}
		*a = RuleAction{Type: wire.Type, SetStatus: &SetStatusAction{Value: TicketStatus(wire.Value)}}
	case ActionSendNotification:
		*a = RuleAction{Type: wire.Type}
	default:
		return fmt.Errorf("unknown action type %q", wire.Type)
	}
	return nil
}

// AutomationRule is a trigger/condition/action tuple evaluated on
// lifecycle events. Rules are authored by admins and read-only for the
// evaluation engine.
type AutomationRule struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Trigger    TriggerType    `json:"trigger"`
	Conditions RuleConditions `json:"conditions"`
	Actions    []RuleAction   `json:"actions"`
	IsActive   bool           `json:"is_active"`
	CreatorID  string         `json:"creator_id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
