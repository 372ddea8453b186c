package orgs

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines data access for organizations and sites.
type Repository interface {
	InsertOrganization(ctx context.Context, org Organization) error
	FindOrganization(ctx context.Context, id uuid.UUID) (Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
	UpdateOrganization(ctx context.Context, org Organization) error

	InsertSite(ctx context.Context, site Site) error
	FindSite(ctx context.Context, id uuid.UUID) (Site, error)
	ListSites(ctx context.Context, orgID uuid.UUID) ([]Site, error)
	UpdateSite(ctx context.Context, site Site) error
	DeactivateSite(ctx context.Context, id uuid.UUID) error
}
