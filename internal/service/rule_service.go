package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-core/internal/domain"
	"github.com/spec-kit/helpdesk-core/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-core/pkg/util"
)

// RuleService owns admin CRUD for automation rules. Action payloads are
// decoded into tagged unions before they reach this service, so stored
// rules are always well-formed; the evaluation engine never re-validates.
type RuleService struct {
	rules repository.RuleRepository
}

// NewRuleService constructs the service.
func NewRuleService(rules repository.RuleRepository) *RuleService {
	return &RuleService{rules: rules}
}

// RuleInput describes create/update payloads.
type RuleInput struct {
	Name       string
	Trigger    domain.TriggerType
	Conditions domain.RuleConditions
	Actions    []domain.RuleAction
	IsActive   *bool
}

// Create validates and stores a new rule.
func (s *RuleService) Create(ctx context.Context, creatorID string, input RuleInput) (*domain.AutomationRule, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewInvalidArgument("rule name required", nil)
	}
	if !domain.ValidTrigger(input.Trigger) {
		return nil, apperrors.NewInvalidArgument("unknown trigger type", map[string]any{"trigger": input.Trigger})
	}
	if len(input.Actions) == 0 {
		return nil, apperrors.NewInvalidArgument("rule requires at least one action", nil)
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	rule := &domain.AutomationRule{
		Name:       name,
		Trigger:    input.Trigger,
		Conditions: input.Conditions,
		Actions:    input.Actions,
		IsActive:   active,
		CreatorID:  creatorID,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

// Update rewrites an existing rule.
func (s *RuleService) Update(ctx context.Context, id string, input RuleInput) (*domain.AutomationRule, error) {
	rule, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(input.Name); name != "" {
		rule.Name = name
	}
	if input.Trigger != "" {
		if !domain.ValidTrigger(input.Trigger) {
			return nil, apperrors.NewInvalidArgument("unknown trigger type", map[string]any{"trigger": input.Trigger})
		}
		rule.Trigger = input.Trigger
	}
	rule.Conditions = input.Conditions
	if input.Actions != nil {
		if len(input.Actions) == 0 {
			return nil, apperrors.NewInvalidArgument("rule requires at least one action", nil)
		}
		rule.Actions = input.Actions
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

// Get fetches one rule.
func (s *RuleService) Get(ctx context.Context, id string) (*domain.AutomationRule, error) {
	return s.getByID(ctx, id)
}

// List returns all rules, active and inactive.
func (s *RuleService) List(ctx context.Context) ([]domain.AutomationRule, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules, nil
}

// Delete removes a rule.
func (s *RuleService) Delete(ctx context.Context, id string) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("rule", map[string]any{"rule_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *RuleService) getByID(ctx context.Context, id string) (*domain.AutomationRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("rule", map[string]any{"rule_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}
