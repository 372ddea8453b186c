package orgs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-esg/meridian/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const orgColumns = `id, name, industry, country, is_active, created_at, updated_at`

// InsertOrganization persists a new tenant.
func (r *PGRepository) InsertOrganization(ctx context.Context, o Organization) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO organizations (`+orgColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.Name, o.Industry, o.Country, o.IsActive, o.CreatedAt, o.UpdatedAt)
	return err
}

// FindOrganization fetches one tenant.
func (r *PGRepository) FindOrganization(ctx context.Context, id uuid.UUID) (Organization, error) {
	var o Organization
	err := r.pool.QueryRow(ctx, `
		SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.Industry, &o.Country, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, shared.ErrNotFound
		}
		return Organization{}, err
	}
	return o, nil
}

// ListOrganizations returns all active tenants.
func (r *PGRepository) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orgColumns+` FROM organizations WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Industry, &o.Country, &o.IsActive, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateOrganization rewrites the mutable tenant fields.
func (r *PGRepository) UpdateOrganization(ctx context.Context, o Organization) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE organizations
		SET name = $2, industry = $3, country = $4, updated_at = now()
		WHERE id = $1`, o.ID, o.Name, o.Industry, o.Country)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const siteColumns = `id, organization_id, name, region, address, is_active, created_at, updated_at`

// InsertSite persists a new site.
func (r *PGRepository) InsertSite(ctx context.Context, s Site) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sites (`+siteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.OrganizationID, s.Name, s.Region, s.Address, s.IsActive, s.CreatedAt, s.UpdatedAt)
	return err
}

// FindSite fetches one site.
func (r *PGRepository) FindSite(ctx context.Context, id uuid.UUID) (Site, error) {
	var s Site
	err := r.pool.QueryRow(ctx, `
		SELECT `+siteColumns+` FROM sites WHERE id = $1`, id).
		Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Region, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Site{}, shared.ErrNotFound
		}
		return Site{}, err
	}
	return s, nil
}

// ListSites returns the active sites of one tenant.
func (r *PGRepository) ListSites(ctx context.Context, orgID uuid.UUID) ([]Site, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+siteColumns+` FROM sites
		WHERE organization_id = $1 AND is_active
		ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Site
	for rows.Next() {
		var s Site
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Region, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateSite rewrites the mutable site fields.
func (r *PGRepository) UpdateSite(ctx context.Context, s Site) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sites
		SET name = $2, region = $3, address = $4, updated_at = now()
		WHERE id = $1`, s.ID, s.Name, s.Region, s.Address)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeactivateSite flips is_active off.
func (r *PGRepository) DeactivateSite(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sites SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
