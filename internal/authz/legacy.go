package authz

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// ErrUnknownLegacyRole indicates a role name with no canonical translation.
var ErrUnknownLegacyRole = errors.New("unknown legacy role")

// legacyRoles translates every historical role identifier to its canonical
// replacement. The flat owner/admin/member/viewer set comes from the first
// product iteration; the rest accumulated through renames since.
var legacyRoles = map[string]RoleName{
	"owner":  RoleOrganizationOwner,
	"admin":  RoleOrganizationManager,
	"member": RoleSiteOperator,

	"account_owner":          RoleOrganizationOwner,
	"org_admin":              RoleOrganizationManager,
	"organization_admin":     RoleOrganizationManager,
	"sustainability_manager": RoleOrganizationManager,
	"sustainability_lead":    RoleOrganizationManager,
	"region_manager":         RoleRegionalManager,
	"facility_manager":       RoleSiteManager,
	"building_manager":       RoleSiteManager,
	"facility_operator":      RoleSiteOperator,
	"data_entry":             RoleSiteOperator,
	"operator":               RoleSiteOperator,
	"consultant":             RoleAnalyst,
	"external_auditor":       RoleAuditor,
	"read_only":              RoleViewer,
	"guest":                  RoleViewer,
	"superadmin":             RolePlatformAdmin,
	"super_admin":            RolePlatformAdmin,
}

var canonicalRoleNames = func() map[RoleName]struct{} {
	set := make(map[RoleName]struct{})
	for _, role := range builtinRoles() {
		set[role.Name] = struct{}{}
	}
	return set
}()

// NormalizeRoleName lowercases via Unicode case folding and squashes
// separators so historical spellings like "Site-Manager" compare equal.
func NormalizeRoleName(name string) string {
	folded := cases.Fold().String(strings.TrimSpace(name))
	folded = strings.ReplaceAll(folded, "-", "_")
	folded = strings.ReplaceAll(folded, " ", "_")
	return folded
}

// MapLegacyRole translates a historical role identifier to its canonical
// RoleName. Canonical names pass through unchanged. Unmapped input is an
// error, never a silent default.
func MapLegacyRole(name string) (RoleName, error) {
	normalized := NormalizeRoleName(name)
	if normalized == "" {
		return "", fmt.Errorf("%w: empty role name", ErrUnknownLegacyRole)
	}
	if canonical, ok := legacyRoles[normalized]; ok {
		return canonical, nil
	}
	if _, ok := canonicalRoleNames[RoleName(normalized)]; ok {
		return RoleName(normalized), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLegacyRole, name)
}
