package service

import (
	"github.com/spec-kit/helpdesk-core/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-core/pkg/util"
)

type operation string

const (
	opChangeStatus operation = "change_status"
	opAssign       operation = "assign"
	opAutoAssign   operation = "auto_assign"
	opDelete       operation = "delete"
)

// rolesAllowed is the single authorization table consulted by every
// role-gated operation. Update is deliberately absent: it checks creator
// ownership instead of role.
var rolesAllowed = map[operation][]domain.Role{
	opChangeStatus: {domain.RoleAdmin, domain.RoleSupportAgent},
	opAssign:       {domain.RoleAdmin},
	opAutoAssign:   {domain.RoleAdmin},
	opDelete:       {domain.RoleAdmin},
}

func authorize(op operation, role domain.Role) error {
	allowed, ok := rolesAllowed[op]
	if !ok {
		return nil
	}
	for _, candidate := range allowed {
		if candidate == role {
			return nil
		}
	}
	return apperrors.NewForbidden("insufficient role for " + string(op))
}
