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

// DepartmentService owns the admin-facing department catalog. Route-level
// middleware enforces the admin gate; validation happens here.
type DepartmentService struct {
	departments repository.DepartmentRepository
}

// NewDepartmentService constructs the service.
func NewDepartmentService(departments repository.DepartmentRepository) *DepartmentService {
	return &DepartmentService{departments: departments}
}

// DepartmentInput describes create/update payloads.
type DepartmentInput struct {
	Name        string
	Description string
	MemberIDs   []string
	Algorithm   domain.AssignmentAlgorithm
}

// Create validates and stores a new department. Names are unique.
func (s *DepartmentService) Create(ctx context.Context, input DepartmentInput) (*domain.Department, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewInvalidArgument("department name required", nil)
	}
	algorithm := input.Algorithm
	if algorithm == "" {
		algorithm = domain.AlgorithmRoundRobin
	}
	if !domain.ValidAlgorithm(algorithm) {
		return nil, apperrors.NewInvalidArgument("unknown assignment algorithm", map[string]any{"algorithm": algorithm})
	}

	if _, err := s.departments.GetByName(ctx, name); err == nil {
		return nil, apperrors.NewInvalidState("department name already in use", map[string]any{"name": name})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	dept := &domain.Department{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		MemberIDs:   input.MemberIDs,
		Algorithm:   algorithm,
	}
	if err := s.departments.Create(ctx, dept); err != nil {
		return nil, apperrors.MapError(err)
	}
	return dept, nil
}

// Update rewrites name, description, members and algorithm. The
// round-robin cursor is left alone; a stale cursor self-heals.
func (s *DepartmentService) Update(ctx context.Context, id string, input DepartmentInput) (*domain.Department, error) {
	dept, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(input.Name); name != "" && name != dept.Name {
		if _, err := s.departments.GetByName(ctx, name); err == nil {
			return nil, apperrors.NewInvalidState("department name already in use", map[string]any{"name": name})
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		dept.Name = name
	}
	if input.Description != "" {
		dept.Description = strings.TrimSpace(input.Description)
	}
	if input.MemberIDs != nil {
		dept.MemberIDs = input.MemberIDs
	}
	if input.Algorithm != "" {
		if !domain.ValidAlgorithm(input.Algorithm) {
			return nil, apperrors.NewInvalidArgument("unknown assignment algorithm", map[string]any{"algorithm": input.Algorithm})
		}
		dept.Algorithm = input.Algorithm
	}

	if err := s.departments.Update(ctx, dept); err != nil {
		return nil, apperrors.MapError(err)
	}
	return dept, nil
}

// Get fetches one department.
func (s *DepartmentService) Get(ctx context.Context, id string) (*domain.Department, error) {
	return s.getByID(ctx, id)
}

// List returns all departments.
func (s *DepartmentService) List(ctx context.Context) ([]domain.Department, error) {
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return departments, nil
}

// Delete removes a department. Tickets keep their back-pointer; it is a
// reference, not ownership.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	if err := s.departments.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("department", map[string]any{"department_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *DepartmentService) getByID(ctx context.Context, id string) (*domain.Department, error) {
	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("department", map[string]any{"department_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return dept, nil
}
