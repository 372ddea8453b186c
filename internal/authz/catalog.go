package authz

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrRoleNotFound indicates a role reference that does not resolve via the catalog.
var ErrRoleNotFound = errors.New("role not found")

// roleNamespace seeds deterministic role IDs so every process and the
// database agree on catalog identity without coordination.
var roleNamespace = uuid.MustParse("7c9e2f5a-1b64-4c8e-9d3a-5f0b8a21c6de")

// catalogRevision marks the last time the built-in definition set changed.
var catalogRevision = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// RoleID derives the deterministic catalog ID for a role name.
func RoleID(name RoleName) uuid.UUID {
	return uuid.NewSHA1(roleNamespace, []byte(name))
}

// Catalog is the immutable in-process role directory. It is built once at
// startup and safe for concurrent reads.
type Catalog struct {
	byID   map[uuid.UUID]Role
	byName map[RoleName]Role
	sorted []Role
}

// NewCatalog builds the catalog from the built-in definition set.
func NewCatalog() *Catalog {
	roles := builtinRoles()
	c := &Catalog{
		byID:   make(map[uuid.UUID]Role, len(roles)),
		byName: make(map[RoleName]Role, len(roles)),
		sorted: make([]Role, len(roles)),
	}
	copy(c.sorted, roles)
	sort.SliceStable(c.sorted, func(i, j int) bool {
		if a, b := c.sorted[i].Level.Rank(), c.sorted[j].Level.Rank(); a != b {
			return a < b
		}
		return c.sorted[i].Name < c.sorted[j].Name
	})
	for _, role := range c.sorted {
		c.byID[role.ID] = role
		c.byName[role.Name] = role
	}
	return c
}

// Get returns the role for an ID.
func (c *Catalog) Get(id uuid.UUID) (Role, error) {
	role, ok := c.byID[id]
	if !ok {
		return Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, id)
	}
	return role, nil
}

// GetByName returns the role for a canonical name.
func (c *Catalog) GetByName(name RoleName) (Role, error) {
	role, ok := c.byName[name]
	if !ok {
		return Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}
	return role, nil
}

// List returns all roles ordered by level then name.
func (c *Catalog) List() []Role {
	out := make([]Role, len(c.sorted))
	copy(out, c.sorted)
	return out
}

func builtinRoles() []Role {
	def := func(name RoleName, display, desc string, level RoleLevel, perms PermissionMap) Role {
		return Role{
			ID:          RoleID(name),
			Name:        name,
			DisplayName: display,
			Description: desc,
			Level:       level,
			Permissions: perms,
			IsSystem:    true,
			CreatedAt:   catalogRevision,
			UpdatedAt:   catalogRevision,
		}
	}

	return []Role{
		def(RolePlatformAdmin, "Platform Admin",
			"Unscoped administration across the whole platform.",
			LevelPlatform, PermissionMap{
				ResourceAll: {ActionAll},
			}),
		def(RolePlatformSupport, "Platform Support",
			"Read access across organizations for support staff.",
			LevelPlatform, PermissionMap{
				ResourceAll: {ActionRead},
			}),
		def(RoleOrganizationOwner, "Organization Owner",
			"Full control of one organization, its sites and its people.",
			LevelOrganization, PermissionMap{
				ResourceOrganizations: {ActionRead, ActionUpdate},
				ResourceSites:         {ActionAll},
				ResourceUsers:         {ActionAll},
				ResourceRoles:         {ActionRead, ActionAssign},
				ResourceEmissions:     {ActionAll},
				ResourceReports:       {ActionAll},
				ResourceTargets:       {ActionAll},
				ResourceAudit:         {ActionRead, ActionExport},
				ResourceSettings:      {ActionAll},
			}),
		def(RoleOrganizationManager, "Organization Manager",
			"Day-to-day management of an organization's sustainability program.",
			LevelOrganization, PermissionMap{
				ResourceOrganizations: {ActionRead},
				ResourceSites:         {ActionRead, ActionUpdate},
				ResourceUsers:         {ActionCreate, ActionRead, ActionUpdate},
				ResourceRoles:         {ActionRead},
				ResourceEmissions:     {ActionAll},
				ResourceReports:       {ActionCreate, ActionRead, ActionUpdate, ActionExport},
				ResourceTargets:       {ActionRead, ActionUpdate},
				ResourceAudit:         {ActionRead},
			}),
		def(RoleRegionalManager, "Regional Manager",
			"Oversees the sites of one region, approves their submissions.",
			LevelRegional, PermissionMap{
				ResourceOrganizations: {ActionRead},
				ResourceSites:         {ActionRead, ActionUpdate},
				ResourceUsers:         {ActionRead},
				ResourceEmissions:     {ActionCreate, ActionRead, ActionUpdate, ActionApprove},
				ResourceReports:       {ActionRead, ActionExport},
				ResourceTargets:       {ActionRead},
			}),
		def(RoleSiteManager, "Site Manager",
			"Runs a single site and its data collection.",
			LevelSite, PermissionMap{
				ResourceSites:     {ActionRead, ActionUpdate},
				ResourceUsers:     {ActionRead},
				ResourceEmissions: {ActionCreate, ActionRead, ActionUpdate},
				ResourceReports:   {ActionCreate, ActionRead},
				ResourceTargets:   {ActionRead},
			}),
		def(RoleSiteOperator, "Site Operator",
			"Records readings and meter data for a single site.",
			LevelSite, PermissionMap{
				ResourceSites:     {ActionRead},
				ResourceEmissions: {ActionCreate, ActionRead},
				ResourceReports:   {ActionRead},
			}),
		def(RoleAnalyst, "Analyst",
			"External consultant analyzing and exporting reported data.",
			LevelExternal, PermissionMap{
				ResourceSites:     {ActionRead},
				ResourceEmissions: {ActionRead},
				ResourceReports:   {ActionRead, ActionExport},
				ResourceTargets:   {ActionRead},
			}),
		def(RoleAuditor, "Auditor",
			"External assurance reviewer with audit-trail access.",
			LevelExternal, PermissionMap{
				ResourceOrganizations: {ActionRead},
				ResourceSites:         {ActionRead},
				ResourceEmissions:     {ActionRead},
				ResourceReports:       {ActionRead},
				ResourceAudit:         {ActionRead, ActionExport},
			}),
		def(RoleViewer, "Viewer",
			"Read-only visibility of sites and published reports.",
			LevelExternal, PermissionMap{
				ResourceSites:     {ActionRead},
				ResourceEmissions: {ActionRead},
				ResourceReports:   {ActionRead},
			}),
	}
}
