package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-core/internal/domain"
)

// DepartmentRequest payload for create and update.
type DepartmentRequest struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description,omitempty"`
	MemberIDs   []string                   `json:"member_ids,omitempty"`
	Algorithm   domain.AssignmentAlgorithm `json:"algorithm,omitempty"`
}

// DepartmentResponse mirrors the stored department.
type DepartmentResponse struct {
	ID             string                     `json:"id"`
	Name           string                     `json:"name"`
	Description    string                     `json:"description"`
	MemberIDs      []string                   `json:"member_ids"`
	Algorithm      domain.AssignmentAlgorithm `json:"algorithm"`
	LastAssignedID *string                    `json:"last_assigned_id,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}
