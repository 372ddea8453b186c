package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-esg/meridian/internal/shared"
)

// Store provides PostgreSQL backed persistence for every grant entity.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var (
	_ AssignmentStore    = (*Store)(nil)
	_ OverrideStore      = (*Store)(nil)
	_ DelegationStore    = (*Store)(nil)
	_ SuperAdminRegistry = (*Store)(nil)
)

// EnsureCatalog upserts the built-in role definitions so grant rows can
// reference them with referential integrity. The in-memory catalog remains
// the source of authority for permission tables.
func (s *Store) EnsureCatalog(ctx context.Context, roles []Role) error {
	for _, role := range roles {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO roles (id, name, display_name, description, level, permissions, is_system, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				display_name = EXCLUDED.display_name,
				description = EXCLUDED.description,
				level = EXCLUDED.level,
				permissions = EXCLUDED.permissions,
				is_system = EXCLUDED.is_system,
				updated_at = now()`,
			role.ID, role.Name, role.DisplayName, role.Description, role.Level, role.Permissions, role.IsSystem)
		if err != nil {
			return fmt.Errorf("authz: ensure catalog role %s: %w", role.Name, err)
		}
	}
	return nil
}

// ============================================================================
// ASSIGNMENTS
// ============================================================================

const assignmentColumns = `id, user_id, role_id, organization_id, site_id, region, granted_by, granted_at, expires_at, is_active, metadata`

// InsertAssignment persists a new role binding.
func (s *Store) InsertAssignment(ctx context.Context, a UserRoleAssignment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_role_assignments
			(`+assignmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.UserID, a.RoleID, a.OrganizationID, a.SiteID, a.Region,
		a.GrantedBy, a.GrantedAt, a.ExpiresAt, a.IsActive, a.Metadata)
	return err
}

// DeactivateAssignment flips is_active off. Re-revoking an already inactive
// assignment succeeds; an unknown ID does not.
func (s *Store) DeactivateAssignment(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE user_role_assignments SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListActiveAssignments returns the live, unexpired bindings of one user.
func (s *Store) ListActiveAssignments(ctx context.Context, userID uuid.UUID) ([]UserRoleAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM user_role_assignments
		WHERE user_id = $1 AND is_active
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY granted_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanAssignments(rows)
}

// ListAssignments returns live bindings in an organization, optionally
// narrowed by role and site. A site filter still includes org-wide rows:
// a null-site assignment covers every site.
func (s *Store) ListAssignments(ctx context.Context, orgID uuid.UUID, roleID *uuid.UUID, siteID *uuid.UUID) ([]UserRoleAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM user_role_assignments
		WHERE organization_id = $1 AND is_active
		  AND (expires_at IS NULL OR expires_at > now())
		  AND ($2::uuid IS NULL OR role_id = $2)
		  AND ($3::uuid IS NULL OR site_id = $3 OR site_id IS NULL)
		ORDER BY granted_at DESC`, orgID, roleID, siteID)
	if err != nil {
		return nil, err
	}
	return scanAssignments(rows)
}

func scanAssignments(rows pgx.Rows) ([]UserRoleAssignment, error) {
	defer rows.Close()
	var out []UserRoleAssignment
	for rows.Next() {
		var a UserRoleAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleID, &a.OrganizationID, &a.SiteID, &a.Region,
			&a.GrantedBy, &a.GrantedAt, &a.ExpiresAt, &a.IsActive, &a.Metadata); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ============================================================================
// OVERRIDES
// ============================================================================

const overrideColumns = `id, user_id, organization_id, site_id, resource, resource_id, action, granted_by, reason, expires_at, created_at`

// InsertOverride persists a new exception grant.
func (s *Store) InsertOverride(ctx context.Context, o PermissionOverride) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO permission_overrides
			(`+overrideColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.UserID, o.OrganizationID, o.SiteID, o.Resource, o.ResourceID,
		o.Action, o.GrantedBy, o.Reason, o.ExpiresAt, o.CreatedAt)
	return err
}

// ListActiveOverrides returns the unexpired exception grants of one user.
func (s *Store) ListActiveOverrides(ctx context.Context, userID uuid.UUID) ([]PermissionOverride, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+overrideColumns+`
		FROM permission_overrides
		WHERE user_id = $1
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PermissionOverride
	for rows.Next() {
		var o PermissionOverride
		if err := rows.Scan(&o.ID, &o.UserID, &o.OrganizationID, &o.SiteID, &o.Resource, &o.ResourceID,
			&o.Action, &o.GrantedBy, &o.Reason, &o.ExpiresAt, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ============================================================================
// DELEGATIONS
// ============================================================================

const delegationColumns = `id, delegator_user_id, delegate_user_id, delegator_role_id, scope, permissions, reason, starts_at, ends_at, is_active, approved_by, approved_at, created_at`

// InsertDelegation persists a new authority transfer.
func (s *Store) InsertDelegation(ctx context.Context, d Delegation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delegations
			(`+delegationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.DelegatorUserID, d.DelegateUserID, d.DelegatorRoleID, d.Scope, d.Permissions,
		d.Reason, d.StartsAt, d.EndsAt, d.IsActive, d.ApprovedBy, d.ApprovedAt, d.CreatedAt)
	return err
}

// ListActiveDelegations returns live delegations received by one user whose
// window contains the database clock's now.
func (s *Store) ListActiveDelegations(ctx context.Context, delegateID uuid.UUID) ([]Delegation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+delegationColumns+`
		FROM delegations
		WHERE delegate_user_id = $1 AND is_active
		  AND starts_at <= now()
		  AND (ends_at IS NULL OR ends_at > now())
		ORDER BY created_at DESC`, delegateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Delegation
	for rows.Next() {
		var d Delegation
		if err := rows.Scan(&d.ID, &d.DelegatorUserID, &d.DelegateUserID, &d.DelegatorRoleID, &d.Scope, &d.Permissions,
			&d.Reason, &d.StartsAt, &d.EndsAt, &d.IsActive, &d.ApprovedBy, &d.ApprovedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ============================================================================
// SUPER ADMINS
// ============================================================================

// IsSuperAdmin reports allowlist membership.
func (s *Store) IsSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM super_admins WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ============================================================================
// MAINTENANCE & REVIEW
// ============================================================================

// DeactivateExpiredAssignments flips is_active off on naturally expired rows.
// Evaluation never depends on this; it keeps administrative listings tidy.
func (s *Store) DeactivateExpiredAssignments(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE user_role_assignments
		SET is_active = FALSE
		WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeactivateExpiredDelegations flips is_active off on delegations whose
// window has closed.
func (s *Store) DeactivateExpiredDelegations(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE delegations
		SET is_active = FALSE
		WHERE is_active AND ends_at IS NOT NULL AND ends_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListOrganizationIDs returns the IDs of every active organization.
func (s *Store) ListOrganizationIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM organizations WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SummarizeOrganizationAccess aggregates live grant counts and role tallies
// for one organization.
func (s *Store) SummarizeOrganizationAccess(ctx context.Context, orgID uuid.UUID) (OrgAccessSummary, error) {
	summary := OrgAccessSummary{OrganizationID: orgID}

	err := s.pool.QueryRow(ctx, `SELECT name FROM organizations WHERE id = $1`, orgID).Scan(&summary.OrganizationName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrgAccessSummary{}, shared.ErrNotFound
		}
		return OrgAccessSummary{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT a.role_id, r.name, COUNT(*)
		FROM user_role_assignments a
		JOIN roles r ON r.id = a.role_id
		WHERE a.organization_id = $1 AND a.is_active
		  AND (a.expires_at IS NULL OR a.expires_at > now())
		GROUP BY a.role_id, r.name
		ORDER BY r.name`, orgID)
	if err != nil {
		return OrgAccessSummary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var tally RoleTally
		if err := rows.Scan(&tally.RoleID, &tally.RoleName, &tally.Count); err != nil {
			return OrgAccessSummary{}, err
		}
		summary.Assignments = append(summary.Assignments, tally)
	}
	if err := rows.Err(); err != nil {
		return OrgAccessSummary{}, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT user_id)
		FROM user_role_assignments
		WHERE organization_id = $1 AND is_active
		  AND (expires_at IS NULL OR expires_at > now())`, orgID).Scan(&summary.DistinctUsers)
	if err != nil {
		return OrgAccessSummary{}, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM permission_overrides
		WHERE organization_id = $1
		  AND (expires_at IS NULL OR expires_at > now())`, orgID).Scan(&summary.ActiveOverrides)
	if err != nil {
		return OrgAccessSummary{}, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM delegations d
		WHERE d.is_active AND d.starts_at <= now()
		  AND (d.ends_at IS NULL OR d.ends_at > now())
		  AND EXISTS (
			SELECT 1 FROM user_role_assignments a
			WHERE a.user_id = d.delegate_user_id
			  AND a.organization_id = $1 AND a.is_active
		  )`, orgID).Scan(&summary.ActiveDelegations)
	if err != nil {
		return OrgAccessSummary{}, err
	}

	return summary, nil
}

// InsertAccessReviewSnapshot stores a generated summary.
func (s *Store) InsertAccessReviewSnapshot(ctx context.Context, snap AccessReviewSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO access_review_snapshots (id, organization_id, generated_at, summary)
		VALUES ($1, $2, $3, $4)`,
		snap.ID, snap.OrganizationID, snap.GeneratedAt, snap.Summary)
	return err
}

// LatestAccessReviewSnapshot returns the most recent summary for an organization.
func (s *Store) LatestAccessReviewSnapshot(ctx context.Context, orgID uuid.UUID) (AccessReviewSnapshot, error) {
	var snap AccessReviewSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT id, organization_id, generated_at, summary
		FROM access_review_snapshots
		WHERE organization_id = $1
		ORDER BY generated_at DESC
		LIMIT 1`, orgID).Scan(&snap.ID, &snap.OrganizationID, &snap.GeneratedAt, &snap.Summary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessReviewSnapshot{}, shared.ErrNotFound
		}
		return AccessReviewSnapshot{}, err
	}
	return snap, nil
}
