package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-esg/meridian/internal/audit"
	"github.com/meridian-esg/meridian/internal/shared"
)

var (
	ErrSelfDelegation     = errors.New("delegator and delegate are the same user")
	ErrDelegatorLacksRole = errors.New("delegator does not hold the delegated role")
)

// Repository bundles the stores the service administers.
type Repository interface {
	AssignmentStore
	OverrideStore
	DelegationStore
	SuperAdminRegistry
}

// AuditRecorder receives grant lifecycle events. Recording is best effort;
// failures are logged and never block the grant itself.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// DecisionMetrics observes resolved permission checks.
type DecisionMetrics interface {
	ObserveDecision(source string, allowed bool, elapsed time.Duration)
}

// Service owns grant administration and fronts the resolver.
type Service struct {
	catalog  *Catalog
	repo     Repository
	resolver *Resolver
	audit    AuditRecorder
	metrics  DecisionMetrics
	logger   *slog.Logger
	clock    func() time.Time
}

func NewService(catalog *Catalog, repo Repository, resolver *Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:  catalog,
		repo:     repo,
		resolver: resolver,
		logger:   logger,
		clock:    time.Now,
	}
}

// SetAuditRecorder injects the audit trail sink.
func (s *Service) SetAuditRecorder(recorder AuditRecorder) {
	s.audit = recorder
}

// SetMetrics injects the decision metrics sink.
func (s *Service) SetMetrics(metrics DecisionMetrics) {
	s.metrics = metrics
}

// Check answers one authorization question. It never returns an error; any
// internal failure resolves to a deny. The outcome and its source are
// forwarded to the audit trail so every allow and deny stays reconstructable.
func (s *Service) Check(ctx context.Context, c CheckContext) Decision {
	started := time.Now()
	decision := s.resolver.Check(ctx, c)
	if s.metrics != nil {
		s.metrics.ObserveDecision(string(decision.Source), decision.Allowed, time.Since(started))
	}
	s.logger.DebugContext(ctx, "permission check",
		"user_id", c.UserID,
		"resource", c.Resource,
		"action", c.Action,
		"allowed", decision.Allowed,
		"source", decision.Source,
	)
	detail := map[string]any{
		"resource": string(c.Resource),
		"action":   string(c.Action),
		"allowed":  decision.Allowed,
		"source":   string(decision.Source),
	}
	if c.SiteID != nil {
		detail["site_id"] = c.SiteID.String()
	}
	s.recordChange(ctx, c.UserID, "access.check", "permission_check", c.ResourceID, &c.OrganizationID, detail)
	return decision
}

// GrantRole binds a role to a user. Legacy role names are translated to
// canonical ones before anything is written.
func (s *Service) GrantRole(ctx context.Context, actor uuid.UUID, req GrantRoleRequest) (UserRoleAssignment, error) {
	name, err := MapLegacyRole(req.Role)
	if err != nil {
		return UserRoleAssignment{}, err
	}
	role, err := s.catalog.GetByName(name)
	if err != nil {
		return UserRoleAssignment{}, err
	}

	now := s.clock().UTC()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return UserRoleAssignment{}, fmt.Errorf("%w: expires_at must be in the future", shared.ErrValidation)
	}

	assignment := UserRoleAssignment{
		ID:             uuid.New(),
		UserID:         req.UserID,
		RoleID:         role.ID,
		OrganizationID: req.OrganizationID,
		SiteID:         req.SiteID,
		Region:         req.Region,
		GrantedBy:      &actor,
		GrantedAt:      now,
		ExpiresAt:      req.ExpiresAt,
		IsActive:       true,
	}
	if err := s.repo.InsertAssignment(ctx, assignment); err != nil {
		return UserRoleAssignment{}, fmt.Errorf("insert assignment: %w", err)
	}

	s.recordChange(ctx, actor, "access.role.granted", "role_assignment", assignment.ID.String(), &req.OrganizationID, map[string]any{
		"user_id": req.UserID.String(),
		"role":    string(role.Name),
	})
	return assignment, nil
}

// RevokeRole deactivates an assignment. Revoking one that is already
// inactive succeeds; an unknown id does not.
func (s *Service) RevokeRole(ctx context.Context, actor uuid.UUID, assignmentID uuid.UUID) error {
	if err := s.repo.DeactivateAssignment(ctx, assignmentID); err != nil {
		return err
	}
	s.recordChange(ctx, actor, "access.role.revoked", "role_assignment", assignmentID.String(), nil, nil)
	return nil
}

// GrantPermissionOverride grants a single concrete (resource, action) outside
// any role. Wildcards are rejected; exceptions are always explicit.
func (s *Service) GrantPermissionOverride(ctx context.Context, actor uuid.UUID, req GrantOverrideRequest) (PermissionOverride, error) {
	if !req.Resource.IsValid() || req.Resource == ResourceAll {
		return PermissionOverride{}, fmt.Errorf("%w: resource must name a single resource type", shared.ErrValidation)
	}
	if !req.Action.IsValid() || req.Action == ActionAll {
		return PermissionOverride{}, fmt.Errorf("%w: action must name a single action", shared.ErrValidation)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return PermissionOverride{}, fmt.Errorf("%w: reason is required", shared.ErrValidation)
	}

	now := s.clock().UTC()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return PermissionOverride{}, fmt.Errorf("%w: expires_at must be in the future", shared.ErrValidation)
	}

	override := PermissionOverride{
		ID:             uuid.New(),
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		SiteID:         req.SiteID,
		Resource:       req.Resource,
		ResourceID:     req.ResourceID,
		Action:         req.Action,
		GrantedBy:      actor,
		Reason:         reason,
		ExpiresAt:      req.ExpiresAt,
		CreatedAt:      now,
	}
	if err := s.repo.InsertOverride(ctx, override); err != nil {
		return PermissionOverride{}, fmt.Errorf("insert override: %w", err)
	}

	s.recordChange(ctx, actor, "access.override.granted", "permission_override", override.ID.String(), &req.OrganizationID, map[string]any{
		"user_id":  req.UserID.String(),
		"resource": string(req.Resource),
		"action":   string(req.Action),
		"reason":   reason,
	})
	return override, nil
}

// CreateDelegation records a time-boxed transfer of authority. The delegator
// must currently hold the delegated role; the delegation itself stays live
// resolved, so later changes to the delegator flow through full delegations.
func (s *Service) CreateDelegation(ctx context.Context, actor uuid.UUID, req CreateDelegationRequest) (Delegation, error) {
	if req.DelegatorUserID == req.DelegateUserID {
		return Delegation{}, ErrSelfDelegation
	}
	if !req.Scope.IsValid() {
		return Delegation{}, fmt.Errorf("%w: scope must be full or partial", shared.ErrValidation)
	}
	switch req.Scope {
	case ScopePartial:
		if len(req.Permissions) == 0 {
			return Delegation{}, fmt.Errorf("%w: partial delegation requires a permission map", shared.ErrValidation)
		}
		if err := req.Permissions.Validate(); err != nil {
			return Delegation{}, err
		}
	case ScopeFull:
		if len(req.Permissions) != 0 {
			return Delegation{}, fmt.Errorf("%w: full delegation does not take a permission map", shared.ErrValidation)
		}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return Delegation{}, fmt.Errorf("%w: reason is required", shared.ErrValidation)
	}

	now := s.clock().UTC()
	startsAt := now
	if req.StartsAt != nil {
		startsAt = req.StartsAt.UTC()
	}
	if req.EndsAt != nil {
		if !req.EndsAt.After(startsAt) {
			return Delegation{}, fmt.Errorf("%w: ends_at must be after starts_at", shared.ErrValidation)
		}
		if !req.EndsAt.After(now) {
			return Delegation{}, fmt.Errorf("%w: ends_at must be in the future", shared.ErrValidation)
		}
	}

	if _, err := s.catalog.Get(req.DelegatorRoleID); err != nil {
		return Delegation{}, err
	}
	held, err := s.delegatorHoldsRole(ctx, req.DelegatorUserID, req.DelegatorRoleID, now)
	if err != nil {
		return Delegation{}, fmt.Errorf("verify delegator role: %w", err)
	}
	if !held {
		return Delegation{}, ErrDelegatorLacksRole
	}

	delegation := Delegation{
		ID:              uuid.New(),
		DelegatorUserID: req.DelegatorUserID,
		DelegateUserID:  req.DelegateUserID,
		DelegatorRoleID: req.DelegatorRoleID,
		Scope:           req.Scope,
		Permissions:     req.Permissions,
		Reason:          reason,
		StartsAt:        startsAt,
		EndsAt:          req.EndsAt,
		IsActive:        true,
		CreatedAt:       now,
	}
	if err := s.repo.InsertDelegation(ctx, delegation); err != nil {
		return Delegation{}, fmt.Errorf("insert delegation: %w", err)
	}

	s.recordChange(ctx, actor, "access.delegation.created", "delegation", delegation.ID.String(), nil, map[string]any{
		"delegator_user_id": req.DelegatorUserID.String(),
		"delegate_user_id":  req.DelegateUserID.String(),
		"scope":             string(req.Scope),
		"reason":            reason,
	})
	return delegation, nil
}

func (s *Service) delegatorHoldsRole(ctx context.Context, userID, roleID uuid.UUID, now time.Time) (bool, error) {
	assignments, err := s.repo.ListActiveAssignments(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, a := range assignments {
		if a.RoleID == roleID && a.IsActive && !a.Expired(now) {
			return true, nil
		}
	}
	return false, nil
}

// GetUsersByRole lists active assignments in an organization, optionally
// narrowed to one role or one site.
func (s *Service) GetUsersByRole(ctx context.Context, filter UsersByRoleFilter) ([]AssignmentWithRole, error) {
	var roleID *uuid.UUID
	if filter.Role != "" {
		name, err := MapLegacyRole(filter.Role)
		if err != nil {
			return nil, err
		}
		role, err := s.catalog.GetByName(name)
		if err != nil {
			return nil, err
		}
		roleID = &role.ID
	}

	assignments, err := s.repo.ListAssignments(ctx, filter.OrganizationID, roleID, filter.SiteID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	out := make([]AssignmentWithRole, 0, len(assignments))
	for _, a := range assignments {
		role, err := s.catalog.Get(a.RoleID)
		if err != nil {
			return nil, err
		}
		out = append(out, AssignmentWithRole{UserRoleAssignment: a, Role: role})
	}
	return out, nil
}

// IsSuperAdmin reports whether the user is on the platform allowlist.
func (s *Service) IsSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.repo.IsSuperAdmin(ctx, userID)
}

// AvailableRoles returns the role catalog ordered by hierarchy level.
func (s *Service) AvailableRoles() []Role {
	return s.catalog.List()
}

// GetUserAccessProfile aggregates everything a user currently holds.
func (s *Service) GetUserAccessProfile(ctx context.Context, userID uuid.UUID) (AccessProfile, error) {
	now := s.clock().UTC()

	isSuperAdmin, err := s.repo.IsSuperAdmin(ctx, userID)
	if err != nil {
		return AccessProfile{}, fmt.Errorf("super admin lookup: %w", err)
	}

	assignments, err := s.repo.ListActiveAssignments(ctx, userID)
	if err != nil {
		return AccessProfile{}, fmt.Errorf("list assignments: %w", err)
	}
	roles := make([]AssignmentWithRole, 0, len(assignments))
	var highest *Role
	for _, a := range assignments {
		if !a.IsActive || a.Expired(now) {
			continue
		}
		role, err := s.catalog.Get(a.RoleID)
		if err != nil {
			return AccessProfile{}, err
		}
		roles = append(roles, AssignmentWithRole{UserRoleAssignment: a, Role: role})
		if highest == nil || role.Level.Rank() < highest.Level.Rank() {
			r := role
			highest = &r
		}
	}

	allOverrides, err := s.repo.ListActiveOverrides(ctx, userID)
	if err != nil {
		return AccessProfile{}, fmt.Errorf("list overrides: %w", err)
	}
	overrides := make([]PermissionOverride, 0, len(allOverrides))
	for _, o := range allOverrides {
		if o.Expired(now) {
			continue
		}
		overrides = append(overrides, o)
	}

	allDelegations, err := s.repo.ListActiveDelegations(ctx, userID)
	if err != nil {
		return AccessProfile{}, fmt.Errorf("list delegations: %w", err)
	}
	delegations := make([]Delegation, 0, len(allDelegations))
	for _, d := range allDelegations {
		if !d.IsActive || !d.WithinWindow(now) {
			continue
		}
		delegations = append(delegations, d)
	}

	return AccessProfile{
		UserID:       userID,
		IsSuperAdmin: isSuperAdmin,
		Roles:        roles,
		Overrides:    overrides,
		Delegations:  delegations,
		HighestRole:  highest,
	}, nil
}

func (s *Service) recordChange(ctx context.Context, actor uuid.UUID, action, entity, entityID string, orgID *uuid.UUID, detail map[string]any) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		Actor:          actor,
		Action:         action,
		Entity:         entity,
		EntityID:       entityID,
		OrganizationID: orgID,
		Detail:         detail,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "audit record failed",
			"action", action,
			"entity", entity,
			"entity_id", entityID,
			"error", err,
		)
	}
}
