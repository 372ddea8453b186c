package orgs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-esg/meridian/internal/shared"
)

type fakeRepo struct {
	orgs  map[uuid.UUID]Organization
	sites map[uuid.UUID]Site
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orgs: map[uuid.UUID]Organization{}, sites: map[uuid.UUID]Site{}}
}

func (f *fakeRepo) InsertOrganization(_ context.Context, o Organization) error {
	f.orgs[o.ID] = o
	return nil
}

func (f *fakeRepo) FindOrganization(_ context.Context, id uuid.UUID) (Organization, error) {
	o, ok := f.orgs[id]
	if !ok {
		return Organization{}, shared.ErrNotFound
	}
	return o, nil
}

func (f *fakeRepo) ListOrganizations(_ context.Context) ([]Organization, error) {
	out := make([]Organization, 0, len(f.orgs))
	for _, o := range f.orgs {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeRepo) UpdateOrganization(_ context.Context, o Organization) error {
	if _, ok := f.orgs[o.ID]; !ok {
		return shared.ErrNotFound
	}
	f.orgs[o.ID] = o
	return nil
}

func (f *fakeRepo) InsertSite(_ context.Context, s Site) error {
	f.sites[s.ID] = s
	return nil
}

func (f *fakeRepo) FindSite(_ context.Context, id uuid.UUID) (Site, error) {
	s, ok := f.sites[id]
	if !ok {
		return Site{}, shared.ErrNotFound
	}
	return s, nil
}

func (f *fakeRepo) ListSites(_ context.Context, orgID uuid.UUID) ([]Site, error) {
	var out []Site
	for _, s := range f.sites {
		if s.OrganizationID == orgID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateSite(_ context.Context, s Site) error {
	if _, ok := f.sites[s.ID]; !ok {
		return shared.ErrNotFound
	}
	f.sites[s.ID] = s
	return nil
}

func (f *fakeRepo) DeactivateSite(_ context.Context, id uuid.UUID) error {
	s, ok := f.sites[id]
	if !ok {
		return shared.ErrNotFound
	}
	s.IsActive = false
	f.sites[id] = s
	return nil
}

func TestCreateOrganizationNormalizesFields(t *testing.T) {
	svc := NewService(newFakeRepo())

	org, err := svc.CreateOrganization(context.Background(), CreateOrganizationRequest{
		Name:    "  Acme Renewables ",
		Country: "pt",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Renewables", org.Name)
	assert.Equal(t, "PT", org.Country)
	assert.True(t, org.IsActive)
}

func TestCreateSiteRequiresActiveOrganization(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	org, err := svc.CreateOrganization(context.Background(), CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	site, err := svc.CreateSite(context.Background(), org.ID, CreateSiteRequest{Name: "Lisbon HQ", Region: "south"})
	require.NoError(t, err)
	assert.Equal(t, org.ID, site.OrganizationID)

	// Unknown org denies the create.
	_, err = svc.CreateSite(context.Background(), uuid.New(), CreateSiteRequest{Name: "Orphan"})
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	// Inactive org too.
	inactive := org
	inactive.IsActive = false
	repo.orgs[org.ID] = inactive
	_, err = svc.CreateSite(context.Background(), org.ID, CreateSiteRequest{Name: "Late"})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestSiteOperationsScopedToOrganization(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	org, err := svc.CreateOrganization(context.Background(), CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	other, err := svc.CreateOrganization(context.Background(), CreateOrganizationRequest{Name: "Rival"})
	require.NoError(t, err)

	site, err := svc.CreateSite(context.Background(), org.ID, CreateSiteRequest{Name: "Lisbon HQ"})
	require.NoError(t, err)

	// Addressing the site through another org is a 404, not a cross-tenant edit.
	_, err = svc.UpdateSite(context.Background(), other.ID, site.ID, UpdateSiteRequest{Name: "Hijack"})
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	err = svc.DeactivateSite(context.Background(), other.ID, site.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	require.NoError(t, svc.DeactivateSite(context.Background(), org.ID, site.ID))
	sites, err := svc.ListSites(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Empty(t, sites)
}
