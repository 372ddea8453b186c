package report

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-esg/meridian/internal/authz"
)

func TestReviewHTMLRendersSummary(t *testing.T) {
	orgID := uuid.New()
	snap := authz.AccessReviewSnapshot{
		ID:             uuid.New(),
		OrganizationID: orgID,
		GeneratedAt:    time.Date(2026, time.February, 2, 6, 0, 0, 0, time.UTC),
		Summary: authz.OrgAccessSummary{
			OrganizationID:   orgID,
			OrganizationName: "Verdant Holdings",
			DistinctUsers:    12,
			Assignments: []authz.RoleTally{
				{RoleID: authz.RoleID(authz.RoleAuditor), RoleName: authz.RoleAuditor, Count: 2},
				{RoleID: authz.RoleID(authz.RoleViewer), RoleName: authz.RoleViewer, Count: 9},
			},
			ActiveOverrides:   1,
			ActiveDelegations: 3,
		},
	}

	html, err := ReviewHTML(snap)
	require.NoError(t, err)
	require.Contains(t, html, "Verdant Holdings")
	require.Contains(t, html, "auditor")
	require.Contains(t, html, "viewer")
	require.Contains(t, html, "Mon, 02 Feb 2026 06:00:00 UTC")
	require.Contains(t, html, "<strong>12</strong> users with access")
	require.Contains(t, html, "<strong>3</strong> active delegations")
}

func TestReviewHTMLFallbacks(t *testing.T) {
	orgID := uuid.New()
	snap := authz.AccessReviewSnapshot{
		OrganizationID: orgID,
		GeneratedAt:    time.Now(),
	}

	html, err := ReviewHTML(snap)
	require.NoError(t, err)
	// Without a stored name the organization id doubles as the title.
	require.Contains(t, html, "Access Review — "+orgID.String())
	require.Contains(t, html, "No active role assignments")
}
