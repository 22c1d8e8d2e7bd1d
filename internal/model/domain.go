package model

import (
	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "ADMIN"
	UserRoleOfficer  UserRole = "OFFICER"
	UserRoleOperator UserRole = "OPERATOR"
	UserRoleViewer   UserRole = "VIEWER"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleOfficer, UserRoleOperator, UserRoleViewer:
		return true
	}
	return false
}

// Principal is the caller identified by the access token.
type Principal struct {
	UserID uuid.UUID
	Role   UserRole
}

func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

// CanManageRegistry reports whether the caller may add or change vehicles.
func (p Principal) CanManageRegistry() bool {
	return p.Role == UserRoleAdmin || p.Role == UserRoleOperator
}

func (p Principal) CanRecordViolations() bool {
	return p.Role == UserRoleAdmin || p.Role == UserRoleOfficer || p.Role == UserRoleOperator
}

func (p Principal) CanProcessViolations() bool {
	return p.Role == UserRoleAdmin || p.Role == UserRoleOfficer
}
