package orgs

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant: a company reporting sustainability data.
type Organization struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Industry  string    `json:"industry,omitempty" db:"industry"`
	Country   string    `json:"country,omitempty" db:"country"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Site is one reporting location (building, plant, facility) inside an
// organization. Region feeds assignment scoping.
type Site struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Region         string    `json:"region,omitempty" db:"region"`
	Address        string    `json:"address,omitempty" db:"address"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// CreateOrganizationRequest carries the fields for a new tenant.
type CreateOrganizationRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Industry string `json:"industry" validate:"omitempty,max=100"`
	Country  string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
}

// UpdateOrganizationRequest carries mutable tenant fields.
type UpdateOrganizationRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Industry string `json:"industry" validate:"omitempty,max=100"`
	Country  string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
}

// CreateSiteRequest carries the fields for a new site.
type CreateSiteRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=200"`
	Region  string `json:"region" validate:"omitempty,max=100"`
	Address string `json:"address" validate:"omitempty,max=500"`
}

// UpdateSiteRequest carries mutable site fields.
type UpdateSiteRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=200"`
	Region  string `json:"region" validate:"omitempty,max=100"`
	Address string `json:"address" validate:"omitempty,max=500"`
}
