package authz

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-esg/meridian/internal/shared"
)

// ============================================================================
// RESOURCES & ACTIONS
// ============================================================================

// Wildcard matches every resource or action inside a permission table.
const Wildcard = "*"

// ResourceType enumerates the protected resource families.
type ResourceType string

const (
	ResourceAll           ResourceType = Wildcard
	ResourceOrganizations ResourceType = "organizations"
	ResourceSites         ResourceType = "sites"
	ResourceUsers         ResourceType = "users"
	ResourceRoles         ResourceType = "roles"
	ResourceEmissions     ResourceType = "emissions"
	ResourceReports       ResourceType = "reports"
	ResourceTargets       ResourceType = "targets"
	ResourceAudit         ResourceType = "audit"
	ResourceSettings      ResourceType = "settings"
)

// IsValid checks if the resource type is a known enumeration member
func (r ResourceType) IsValid() bool {
	switch r {
	case ResourceAll, ResourceOrganizations, ResourceSites, ResourceUsers, ResourceRoles,
		ResourceEmissions, ResourceReports, ResourceTargets, ResourceAudit, ResourceSettings:
		return true
	default:
		return false
	}
}

// Action enumerates the operations a permission can grant.
type Action string

const (
	ActionAll     Action = Wildcard
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionExport  Action = "export"
	ActionApprove Action = "approve"
	ActionAssign  Action = "assign"
)

// IsValid checks if the action is a known enumeration member
func (a Action) IsValid() bool {
	switch a {
	case ActionAll, ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionExport, ActionApprove, ActionAssign:
		return true
	default:
		return false
	}
}

// ============================================================================
// PERMISSION TABLES
// ============================================================================

// PermissionMap maps a resource to the actions granted on it. A wildcard
// resource key applies across all resources; a wildcard action grants every
// action on its resource.
type PermissionMap map[ResourceType][]Action

// Allows reports whether the table grants action on resource, honoring
// wildcards on either axis.
func (m PermissionMap) Allows(resource ResourceType, action Action) bool {
	if len(m) == 0 {
		return false
	}
	if containsAction(m[resource], action) {
		return true
	}
	return containsAction(m[ResourceAll], action)
}

func containsAction(granted []Action, action Action) bool {
	for _, a := range granted {
		if a == action || a == ActionAll {
			return true
		}
	}
	return false
}

// Validate checks every key and action against the closed enumerations.
func (m PermissionMap) Validate() error {
	for resource, actions := range m {
		if !resource.IsValid() {
			return fmt.Errorf("%w: unknown resource %q", shared.ErrValidation, string(resource))
		}
		if len(actions) == 0 {
			return fmt.Errorf("%w: resource %q lists no actions", shared.ErrValidation, string(resource))
		}
		for _, action := range actions {
			if !action.IsValid() {
				return fmt.Errorf("%w: unknown action %q on resource %q", shared.ErrValidation, string(action), string(resource))
			}
		}
	}
	return nil
}

// ============================================================================
// ROLES
// ============================================================================

// RoleLevel places a role in the scoping hierarchy.
type RoleLevel string

const (
	LevelPlatform     RoleLevel = "platform"
	LevelOrganization RoleLevel = "organization"
	LevelRegional     RoleLevel = "regional"
	LevelSite         RoleLevel = "site"
	LevelExternal     RoleLevel = "external"
)

// IsValid checks if the level is a known enumeration member
func (l RoleLevel) IsValid() bool {
	switch l {
	case LevelPlatform, LevelOrganization, LevelRegional, LevelSite, LevelExternal:
		return true
	default:
		return false
	}
}

// Rank orders levels from broadest (platform) to narrowest (external).
func (l RoleLevel) Rank() int {
	switch l {
	case LevelPlatform:
		return 0
	case LevelOrganization:
		return 1
	case LevelRegional:
		return 2
	case LevelSite:
		return 3
	case LevelExternal:
		return 4
	default:
		return 5
	}
}

// RoleName is a canonical role identifier.
type RoleName string

const (
	RolePlatformAdmin       RoleName = "platform_admin"
	RolePlatformSupport     RoleName = "platform_support"
	RoleOrganizationOwner   RoleName = "organization_owner"
	RoleOrganizationManager RoleName = "organization_manager"
	RoleRegionalManager     RoleName = "regional_manager"
	RoleSiteManager         RoleName = "site_manager"
	RoleSiteOperator        RoleName = "site_operator"
	RoleAnalyst             RoleName = "analyst"
	RoleAuditor             RoleName = "auditor"
	RoleViewer              RoleName = "viewer"
)

// Role represents a named bundle of permissions at a hierarchy level.
type Role struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	Name        RoleName      `json:"name" db:"name"`
	DisplayName string        `json:"display_name" db:"display_name"`
	Description string        `json:"description" db:"description"`
	Level       RoleLevel     `json:"level" db:"level"`
	Permissions PermissionMap `json:"permissions" db:"permissions"`
	IsSystem    bool          `json:"is_system" db:"is_system"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// ============================================================================
// GRANT ENTITIES
// ============================================================================

// UserRoleAssignment binds a role to a user within an organization scope.
// A nil SiteID covers every site in the organization.
type UserRoleAssignment struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	UserID         uuid.UUID      `json:"user_id" db:"user_id"`
	RoleID         uuid.UUID      `json:"role_id" db:"role_id"`
	OrganizationID uuid.UUID      `json:"organization_id" db:"organization_id"`
	SiteID         *uuid.UUID     `json:"site_id,omitempty" db:"site_id"`
	Region         *string        `json:"region,omitempty" db:"region"`
	GrantedBy      *uuid.UUID     `json:"granted_by,omitempty" db:"granted_by"`
	GrantedAt      time.Time      `json:"granted_at" db:"granted_at"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty" db:"expires_at"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	Metadata       map[string]any `json:"metadata,omitempty" db:"metadata"`
}

// Expired reports whether the assignment has lapsed at the given instant.
func (a UserRoleAssignment) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && !a.ExpiresAt.After(now)
}

// CoversSite reports whether the assignment scope includes the given site.
func (a UserRoleAssignment) CoversSite(siteID *uuid.UUID) bool {
	if a.SiteID == nil {
		return true
	}
	return siteID != nil && *a.SiteID == *siteID
}

// PermissionOverride grants a single (resource, action) outside any role.
type PermissionOverride struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	UserID         uuid.UUID    `json:"user_id" db:"user_id"`
	OrganizationID uuid.UUID    `json:"organization_id" db:"organization_id"`
	SiteID         *uuid.UUID   `json:"site_id,omitempty" db:"site_id"`
	Resource       ResourceType `json:"resource" db:"resource"`
	ResourceID     *string      `json:"resource_id,omitempty" db:"resource_id"`
	Action         Action       `json:"action" db:"action"`
	GrantedBy      uuid.UUID    `json:"granted_by" db:"granted_by"`
	Reason         string       `json:"reason" db:"reason"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// Expired reports whether the override has lapsed at the given instant.
func (o PermissionOverride) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !o.ExpiresAt.After(now)
}

// Matches reports whether the override applies to the check context.
func (o PermissionOverride) Matches(c CheckContext) bool {
	if o.Resource != c.Resource || o.Action != c.Action {
		return false
	}
	if o.OrganizationID != c.OrganizationID {
		return false
	}
	if o.SiteID != nil && (c.SiteID == nil || *o.SiteID != *c.SiteID) {
		return false
	}
	if o.ResourceID != nil && *o.ResourceID != c.ResourceID {
		return false
	}
	return true
}

// DelegationScope selects how much of the delegator's authority transfers.
type DelegationScope string

const (
	ScopeFull    DelegationScope = "full"
	ScopePartial DelegationScope = "partial"
)

// IsValid checks if the scope is a known enumeration member
func (s DelegationScope) IsValid() bool {
	return s == ScopeFull || s == ScopePartial
}

// Delegation is a time-boxed transfer of authority between two users.
// A full delegation transfers whatever the delegator is entitled to at check
// time; a partial delegation transfers exactly the enumerated map.
type Delegation struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	DelegatorUserID uuid.UUID       `json:"delegator_user_id" db:"delegator_user_id"`
	DelegateUserID  uuid.UUID       `json:"delegate_user_id" db:"delegate_user_id"`
	DelegatorRoleID uuid.UUID       `json:"delegator_role_id" db:"delegator_role_id"`
	Scope           DelegationScope `json:"scope" db:"scope"`
	Permissions     PermissionMap   `json:"permissions,omitempty" db:"permissions"`
	Reason          string          `json:"reason" db:"reason"`
	StartsAt        time.Time       `json:"starts_at" db:"starts_at"`
	EndsAt          *time.Time      `json:"ends_at,omitempty" db:"ends_at"`
	IsActive        bool            `json:"is_active" db:"is_active"`
	ApprovedBy      *uuid.UUID      `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// WithinWindow reports whether now falls inside [StartsAt, EndsAt).
func (d Delegation) WithinWindow(now time.Time) bool {
	if now.Before(d.StartsAt) {
		return false
	}
	return d.EndsAt == nil || d.EndsAt.After(now)
}

// SuperAdmin is an allowlist entry that bypasses all scoped evaluation.
type SuperAdmin struct {
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	GrantedBy *uuid.UUID `json:"granted_by,omitempty" db:"granted_by"`
	GrantedAt time.Time  `json:"granted_at" db:"granted_at"`
	Reason    *string    `json:"reason,omitempty" db:"reason"`
}

// ============================================================================
// DECISIONS
// ============================================================================

// DecisionSource identifies which grant mechanism produced an allow.
type DecisionSource string

const (
	SourceSuperAdmin DecisionSource = "super_admin"
	SourceRole       DecisionSource = "role"
	SourceOverride   DecisionSource = "override"
	SourceDelegation DecisionSource = "delegation"
	SourceNone       DecisionSource = "none"
)

// CheckContext carries one authorization question.
type CheckContext struct {
	UserID         uuid.UUID    `json:"user_id"`
	Resource       ResourceType `json:"resource"`
	Action         Action       `json:"action"`
	OrganizationID uuid.UUID    `json:"organization_id"`
	SiteID         *uuid.UUID   `json:"site_id,omitempty"`
	ResourceID     string       `json:"resource_id,omitempty"`
}

// Decision is the outcome of a permission check, with provenance.
type Decision struct {
	Allowed   bool           `json:"allowed"`
	Source    DecisionSource `json:"source"`
	RoleID    *uuid.UUID     `json:"role_id,omitempty"`
	RoleName  RoleName       `json:"role_name,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// Deny is the fail-closed zero outcome.
func Deny() Decision {
	return Decision{Allowed: false, Source: SourceNone}
}

// ============================================================================
// REQUEST DTOs
// ============================================================================

// GrantRoleRequest represents a request to bind a role to a user.
// Role accepts canonical and legacy names; legacy names are translated
// before anything is written.
type GrantRoleRequest struct {
	UserID         uuid.UUID  `json:"user_id" validate:"required"`
	Role           string     `json:"role" validate:"required,max=100"`
	OrganizationID uuid.UUID  `json:"organization_id" validate:"required"`
	SiteID         *uuid.UUID `json:"site_id,omitempty"`
	Region         *string    `json:"region,omitempty" validate:"omitempty,max=100"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// GrantOverrideRequest represents a request for an exception grant.
type GrantOverrideRequest struct {
	UserID         uuid.UUID    `json:"user_id" validate:"required"`
	OrganizationID uuid.UUID    `json:"organization_id" validate:"required"`
	SiteID         *uuid.UUID   `json:"site_id,omitempty"`
	Resource       ResourceType `json:"resource" validate:"required"`
	Action         Action       `json:"action" validate:"required"`
	ResourceID     *string      `json:"resource_id,omitempty" validate:"omitempty,max=200"`
	Reason         string       `json:"reason" validate:"required,min=3,max=500"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty"`
}

// CreateDelegationRequest represents a request to delegate authority.
// StartsAt defaults to now when omitted. Permissions is required for
// partial scope and must be absent for full scope.
type CreateDelegationRequest struct {
	DelegatorUserID uuid.UUID       `json:"delegator_user_id" validate:"required"`
	DelegateUserID  uuid.UUID       `json:"delegate_user_id" validate:"required"`
	DelegatorRoleID uuid.UUID       `json:"delegator_role_id" validate:"required"`
	Scope           DelegationScope `json:"scope" validate:"required"`
	Permissions     PermissionMap   `json:"permissions,omitempty"`
	Reason          string          `json:"reason" validate:"required,min=3,max=500"`
	StartsAt        *time.Time      `json:"starts_at,omitempty"`
	EndsAt          *time.Time      `json:"ends_at,omitempty"`
}

// UsersByRoleFilter narrows administrative assignment listings.
type UsersByRoleFilter struct {
	OrganizationID uuid.UUID
	Role           string
	SiteID         *uuid.UUID
}

// ============================================================================
// ACCESS PROFILE
// ============================================================================

// AssignmentWithRole pairs an assignment with its catalog role.
type AssignmentWithRole struct {
	UserRoleAssignment
	Role Role `json:"role"`
}

// AccessProfile aggregates everything a user currently holds.
type AccessProfile struct {
	UserID       uuid.UUID            `json:"user_id"`
	IsSuperAdmin bool                 `json:"is_super_admin"`
	Roles        []AssignmentWithRole `json:"roles"`
	Overrides    []PermissionOverride `json:"overrides"`
	Delegations  []Delegation         `json:"delegations"`
	HighestRole  *Role                `json:"highest_role,omitempty"`
}
