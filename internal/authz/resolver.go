package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// maxDelegationDepth caps full-delegation recursion. Chains deeper than this
// deny the delegated branch instead of walking further.
const maxDelegationDepth = 5

// Resolver composes the grant sources into a single authorization decision.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	catalog     RoleCatalog
	assignments AssignmentStore
	overrides   OverrideStore
	delegations DelegationStore
	superAdmins SuperAdminRegistry
	logger      *slog.Logger
	clock       func() time.Time
}

// NewResolver wires a resolver with its stores.
func NewResolver(
	catalog RoleCatalog,
	assignments AssignmentStore,
	overrides OverrideStore,
	delegations DelegationStore,
	superAdmins SuperAdminRegistry,
	logger *slog.Logger,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		catalog:     catalog,
		assignments: assignments,
		overrides:   overrides,
		delegations: delegations,
		superAdmins: superAdmins,
		logger:      logger,
		clock:       time.Now,
	}
}

// Check answers one authorization question. It never returns an error: any
// store failure resolves to a deny, logged here but indistinguishable from a
// plain deny for the caller. Evaluation order fixes provenance: super_admin,
// then role, then override, then delegation.
func (r *Resolver) Check(ctx context.Context, c CheckContext) Decision {
	visited := map[uuid.UUID]struct{}{c.UserID: {}}
	decision, err := r.resolve(ctx, c, visited, 0)
	if err != nil {
		r.logger.Error("permission check failed closed",
			slog.String("user_id", c.UserID.String()),
			slog.String("resource", string(c.Resource)),
			slog.String("action", string(c.Action)),
			slog.String("organization_id", c.OrganizationID.String()),
			slog.Any("error", err),
		)
		return Deny()
	}
	return decision
}

func (r *Resolver) resolve(ctx context.Context, c CheckContext, visited map[uuid.UUID]struct{}, depth int) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	now := r.clock()

	isSuper, err := r.superAdmins.IsSuperAdmin(ctx, c.UserID)
	if err != nil {
		return Decision{}, fmt.Errorf("super admin lookup: %w", err)
	}
	if isSuper {
		return Decision{Allowed: true, Source: SourceSuperAdmin}, nil
	}

	assignments, err := r.assignments.ListActiveAssignments(ctx, c.UserID)
	if err != nil {
		return Decision{}, fmt.Errorf("assignment lookup: %w", err)
	}
	for _, a := range assignments {
		if !a.IsActive || a.Expired(now) {
			continue
		}
		if a.OrganizationID != c.OrganizationID || !a.CoversSite(c.SiteID) {
			continue
		}
		role, err := r.catalog.Get(a.RoleID)
		if err != nil {
			return Decision{}, fmt.Errorf("role lookup: %w", err)
		}
		if role.Permissions.Allows(c.Resource, c.Action) {
			roleID := a.RoleID
			return Decision{
				Allowed:   true,
				Source:    SourceRole,
				RoleID:    &roleID,
				RoleName:  role.Name,
				ExpiresAt: a.ExpiresAt,
			}, nil
		}
	}

	overrides, err := r.overrides.ListActiveOverrides(ctx, c.UserID)
	if err != nil {
		return Decision{}, fmt.Errorf("override lookup: %w", err)
	}
	for _, o := range overrides {
		if o.Expired(now) {
			continue
		}
		if o.Matches(c) {
			return Decision{Allowed: true, Source: SourceOverride, ExpiresAt: o.ExpiresAt}, nil
		}
	}

	delegations, err := r.delegations.ListActiveDelegations(ctx, c.UserID)
	if err != nil {
		return Decision{}, fmt.Errorf("delegation lookup: %w", err)
	}
	for _, d := range delegations {
		if !d.IsActive || !d.WithinWindow(now) {
			continue
		}
		switch d.Scope {
		case ScopePartial:
			// Partial scope transfers exactly the enumerated map, however
			// broad the delegator's own entitlement is.
			if d.Permissions.Allows(c.Resource, c.Action) {
				return Decision{Allowed: true, Source: SourceDelegation, ExpiresAt: d.EndsAt}, nil
			}
		case ScopeFull:
			// Full scope re-resolves the delegator live so grants made after
			// the delegation was created flow through to the delegate.
			if depth >= maxDelegationDepth {
				r.logger.Warn("delegation chain exceeds depth cap",
					slog.String("delegation_id", d.ID.String()),
					slog.String("delegate_user_id", d.DelegateUserID.String()),
				)
				continue
			}
			if _, seen := visited[d.DelegatorUserID]; seen {
				continue
			}
			visited[d.DelegatorUserID] = struct{}{}
			sub := c
			sub.UserID = d.DelegatorUserID
			subDecision, err := r.resolve(ctx, sub, visited, depth+1)
			if err != nil {
				return Decision{}, err
			}
			if subDecision.Allowed {
				return Decision{Allowed: true, Source: SourceDelegation, ExpiresAt: d.EndsAt}, nil
			}
		}
	}

	return Deny(), nil
}
