package authz

import (
	"time"

	"github.com/google/uuid"
)

// RoleTally counts active assignments of one role within an organization.
type RoleTally struct {
	RoleID   uuid.UUID `json:"role_id"`
	RoleName RoleName  `json:"role_name"`
	Count    int64     `json:"count"`
}

// OrgAccessSummary aggregates one organization's live grants for periodic
// access review.
type OrgAccessSummary struct {
	OrganizationID    uuid.UUID   `json:"organization_id"`
	OrganizationName  string      `json:"organization_name"`
	DistinctUsers     int64       `json:"distinct_users"`
	Assignments       []RoleTally `json:"assignments"`
	ActiveOverrides   int64       `json:"active_overrides"`
	ActiveDelegations int64       `json:"active_delegations"`
}

// AccessReviewSnapshot is a stored point-in-time access summary. Reviews are
// generated on a schedule and rendered by the report surface.
type AccessReviewSnapshot struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	OrganizationID uuid.UUID        `json:"organization_id" db:"organization_id"`
	GeneratedAt    time.Time        `json:"generated_at" db:"generated_at"`
	Summary        OrgAccessSummary `json:"summary" db:"summary"`
}
