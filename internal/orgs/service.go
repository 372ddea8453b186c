package orgs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-esg/meridian/internal/shared"
)

// Service handles organization and site business logic.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateOrganization registers a new tenant.
func (s *Service) CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Organization{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	now := s.now().UTC()
	org := Organization{
		ID:        uuid.New(),
		Name:      name,
		Industry:  strings.TrimSpace(req.Industry),
		Country:   strings.ToUpper(strings.TrimSpace(req.Country)),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertOrganization(ctx, org); err != nil {
		return Organization{}, fmt.Errorf("insert organization: %w", err)
	}
	return org, nil
}

// GetOrganization returns one tenant.
func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error) {
	return s.repo.FindOrganization(ctx, id)
}

// ListOrganizations returns all active tenants.
func (s *Service) ListOrganizations(ctx context.Context) ([]Organization, error) {
	return s.repo.ListOrganizations(ctx)
}

// UpdateOrganization rewrites the mutable fields of one tenant.
func (s *Service) UpdateOrganization(ctx context.Context, id uuid.UUID, req UpdateOrganizationRequest) (Organization, error) {
	org, err := s.repo.FindOrganization(ctx, id)
	if err != nil {
		return Organization{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Organization{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	org.Name = name
	org.Industry = strings.TrimSpace(req.Industry)
	org.Country = strings.ToUpper(strings.TrimSpace(req.Country))
	org.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateOrganization(ctx, org); err != nil {
		return Organization{}, err
	}
	return org, nil
}

// CreateSite registers a new site under a tenant. The tenant must exist
// and be active.
func (s *Service) CreateSite(ctx context.Context, orgID uuid.UUID, req CreateSiteRequest) (Site, error) {
	org, err := s.repo.FindOrganization(ctx, orgID)
	if err != nil {
		return Site{}, err
	}
	if !org.IsActive {
		return Site{}, fmt.Errorf("%w: organization is inactive", shared.ErrValidation)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Site{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	now := s.now().UTC()
	site := Site{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		Region:         strings.TrimSpace(req.Region),
		Address:        strings.TrimSpace(req.Address),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertSite(ctx, site); err != nil {
		return Site{}, fmt.Errorf("insert site: %w", err)
	}
	return site, nil
}

// ListSites returns the active sites of one tenant.
func (s *Service) ListSites(ctx context.Context, orgID uuid.UUID) ([]Site, error) {
	return s.repo.ListSites(ctx, orgID)
}

// UpdateSite rewrites the mutable fields of one site. The site must belong
// to the addressed organization.
func (s *Service) UpdateSite(ctx context.Context, orgID, siteID uuid.UUID, req UpdateSiteRequest) (Site, error) {
	site, err := s.repo.FindSite(ctx, siteID)
	if err != nil {
		return Site{}, err
	}
	if site.OrganizationID != orgID {
		return Site{}, shared.ErrNotFound
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Site{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	site.Name = name
	site.Region = strings.TrimSpace(req.Region)
	site.Address = strings.TrimSpace(req.Address)
	site.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateSite(ctx, site); err != nil {
		return Site{}, err
	}
	return site, nil
}

// DeactivateSite disables one site of the addressed organization.
func (s *Service) DeactivateSite(ctx context.Context, orgID, siteID uuid.UUID) error {
	site, err := s.repo.FindSite(ctx, siteID)
	if err != nil {
		return err
	}
	if site.OrganizationID != orgID {
		return shared.ErrNotFound
	}
	return s.repo.DeactivateSite(ctx, siteID)
}
