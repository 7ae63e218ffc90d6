package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-core/internal/domain"
)

// RuleRequest payload for create and update. Actions decode through the
// tagged-union unmarshaller, so malformed actions are rejected before
// the service sees them.
type RuleRequest struct {
	Name       string                `json:"name"`
	Trigger    domain.TriggerType    `json:"trigger"`
	Conditions domain.RuleConditions `json:"conditions"`
	Actions    []domain.RuleAction   `json:"actions"`
	IsActive   *bool                 `json:"is_active,omitempty"`
}

// RuleResponse mirrors the stored rule.
type RuleResponse struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	Trigger    domain.TriggerType    `json:"trigger"`
	Conditions domain.RuleConditions `json:"conditions"`
	Actions    []domain.RuleAction   `json:"actions"`
	IsActive   bool                  `json:"is_active"`
	CreatorID  string                `json:"creator_id"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}
