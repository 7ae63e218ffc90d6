package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-core/internal/api/dto"
	"github.com/spec-kit/helpdesk-core/internal/domain"
	"github.com/spec-kit/helpdesk-core/internal/service"
	apperrors "github.com/spec-kit/helpdesk-core/pkg/util"
)

// RulesHandler exposes admin CRUD for automation rules.
type RulesHandler struct {
	service *service.RuleService
}

// NewRulesHandler constructs handler.
func NewRulesHandler(ruleService *service.RuleService) *RulesHandler {
	return &RulesHandler{service: ruleService}
}

// Create POST /automation-rules.
func (h *RulesHandler) Create(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.RuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid rule payload", map[string]any{"reason": err.Error()})
	}

	rule, err := h.service.Create(c.UserContext(), principal.UserID, service.RuleInput{
		Name:       req.Name,
		Trigger:    req.Trigger,
		Conditions: req.Conditions,
		Actions:    req.Actions,
		IsActive:   req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ruleResponse(rule)})
}

// List GET /automation-rules.
func (h *RulesHandler) List(c *fiber.Ctx) error {
	rules, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.RuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, ruleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /automation-rules/:id.
func (h *RulesHandler) Get(c *fiber.Ctx) error {
	rule, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// Update PATCH /automation-rules/:id.
func (h *RulesHandler) Update(c *fiber.Ctx) error {
	var req dto.RuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidArgument("invalid rule payload", map[string]any{"reason": err.Error()})
	}

	rule, err := h.service.Update(c.UserContext(), c.Params("id"), service.RuleInput{
		Name:       req.Name,
		Trigger:    req.Trigger,
		Conditions: req.Conditions,
		Actions:    req.Actions,
		IsActive:   req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// Delete DELETE /automation-rules/:id.
func (h *RulesHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func ruleResponse(rule *domain.AutomationRule) dto.RuleResponse {
	return dto.RuleResponse{
		ID:         rule.ID,
		Name:       rule.Name,
		Trigger:    rule.Trigger,
		Conditions: rule.Conditions,
		Actions:    rule.Actions,
		IsActive:   rule.IsActive,
		CreatorID:  rule.CreatorID,
		CreatedAt:  rule.CreatedAt,
		UpdatedAt:  rule.UpdatedAt,
	}
}
