package authz

import (
	"context"

	"github.com/google/uuid"
)

// RoleCatalog resolves catalog roles. Implemented in-process by Catalog.
type RoleCatalog interface {
	Get(id uuid.UUID) (Role, error)
	GetByName(name RoleName) (Role, error)
	List() []Role
}

// AssignmentStore persists scoped role bindings. Rows are never hard-deleted;
// revocation flips IsActive.
type AssignmentStore interface {
	InsertAssignment(ctx context.Context, assignment UserRoleAssignment) error
	DeactivateAssignment(ctx context.Context, id uuid.UUID) error
	ListActiveAssignments(ctx context.Context, userID uuid.UUID) ([]UserRoleAssignment, error)
	ListAssignments(ctx context.Context, orgID uuid.UUID, roleID *uuid.UUID, siteID *uuid.UUID) ([]UserRoleAssignment, error)
}

// OverrideStore persists exception grants. Overrides lapse via expiry only.
type OverrideStore interface {
	InsertOverride(ctx context.Context, override PermissionOverride) error
	ListActiveOverrides(ctx context.Context, userID uuid.UUID) ([]PermissionOverride, error)
}

// DelegationStore persists time-boxed authority transfers.
type DelegationStore interface {
	InsertDelegation(ctx context.Context, delegation Delegation) error
	ListActiveDelegations(ctx context.Context, delegateID uuid.UUID) ([]Delegation, error)
}

// SuperAdminRegistry answers the out-of-band bypass allowlist.
type SuperAdminRegistry interface {
	IsSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}
