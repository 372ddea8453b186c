package authz

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newAccessRouter(svc *Service) http.Handler {
	handler := NewHandler(nil, svc)
	r := chi.NewRouter()
	handler.MountRoutes(r, Middleware{Service: svc})
	return r
}

func postJSON(t *testing.T, router http.Handler, user *uuid.UUID, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = asPrincipal(req, *user)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCheckRequiresPrincipal(t *testing.T) {
	router := newAccessRouter(newTestService(newMemoryStores()))

	rr := postJSON(t, router, nil, "/check", checkRequest{
		Resource:       ResourceSites,
		Action:         ActionRead,
		OrganizationID: uuid.New(),
	})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCheckSelf(t *testing.T) {
	stores := newMemoryStores()
	router := newAccessRouter(newTestService(stores))
	org := uuid.New()
	user := uuid.New()
	assign(stores, user, org, RoleViewer, nil, nil)

	rr := postJSON(t, router, &user, "/check", checkRequest{
		Resource:       ResourceSites,
		Action:         ActionRead,
		OrganizationID: org,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var decision Decision
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decision))
	require.True(t, decision.Allowed)
	require.Equal(t, SourceRole, decision.Source)
	require.Equal(t, RoleViewer, decision.RoleName)

	// Viewers cannot write, and the denial arrives as a 200 with a
	// negative decision rather than an HTTP error.
	rr = postJSON(t, router, &user, "/check", checkRequest{
		Resource:       ResourceSites,
		Action:         ActionUpdate,
		OrganizationID: org,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decision))
	require.False(t, decision.Allowed)
}

func TestCheckRejectsUnknownResource(t *testing.T) {
	router := newAccessRouter(newTestService(newMemoryStores()))
	user := uuid.New()

	rr := postJSON(t, router, &user, "/check", map[string]any{
		"resource":        "spaceships",
		"action":          "read",
		"organization_id": uuid.NewString(),
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckOnBehalfOfAnotherUser(t *testing.T) {
	stores := newMemoryStores()
	router := newAccessRouter(newTestService(stores))
	org := uuid.New()
	owner := uuid.New()
	subject := uuid.New()
	assign(stores, owner, org, RoleOrganizationOwner, nil, nil)
	assign(stores, subject, org, RoleAuditor, nil, nil)

	ask := checkRequest{
		UserID:         &subject,
		Resource:       ResourceAudit,
		Action:         ActionExport,
		OrganizationID: org,
	}

	// A plain member may not probe someone else's access.
	bystander := uuid.New()
	assign(stores, bystander, org, RoleViewer, nil, nil)
	rr := postJSON(t, router, &bystander, "/check", ask)
	require.Equal(t, http.StatusForbidden, rr.Code)

	// The owner holds users:read and gets the subject's decision back.
	rr = postJSON(t, router, &owner, "/check", ask)
	require.Equal(t, http.StatusOK, rr.Code)
	var decision Decision
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decision))
	require.True(t, decision.Allowed)
	require.Equal(t, RoleAuditor, decision.RoleName)
}

func TestListRolesEndpoint(t *testing.T) {
	router := newAccessRouter(newTestService(newMemoryStores()))

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = asPrincipal(httptest.NewRequest(http.MethodGet, "/roles", nil), uuid.New())
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var payload struct {
		Roles []Role `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Len(t, payload.Roles, 10)
}

func TestOwnProfileEndpoint(t *testing.T) {
	stores := newMemoryStores()
	router := newAccessRouter(newTestService(stores))
	org := uuid.New()
	user := uuid.New()
	assign(stores, user, org, RoleAnalyst, nil, nil)

	req := asPrincipal(httptest.NewRequest(http.MethodGet, "/profile", nil), user)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var profile AccessProfile
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &profile))
	require.Equal(t, user, profile.UserID)
	require.Len(t, profile.Roles, 1)
	require.Equal(t, RoleAnalyst, profile.Roles[0].Role.Name)
}

func TestGrantRoleEndpoint(t *testing.T) {
	stores := newMemoryStores()
	router := newAccessRouter(newTestService(stores))
	org := uuid.New()
	owner := uuid.New()
	target := uuid.New()
	assign(stores, owner, org, RoleOrganizationOwner, nil, nil)

	grant := GrantRoleRequest{
		UserID:         target,
		Role:           "sustainability_manager",
		OrganizationID: org,
	}

	// The grant route sits behind roles:assign, so a viewer bounces.
	viewer := uuid.New()
	assign(stores, viewer, org, RoleViewer, nil, nil)
	rr := postJSON(t, router, &viewer, "/assignments?organization_id="+org.String(), grant)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = postJSON(t, router, &owner, "/assignments?organization_id="+org.String(), grant)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created UserRoleAssignment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, target, created.UserID)
	require.Equal(t, RoleID(RoleOrganizationManager), created.RoleID)
	require.NotNil(t, created.GrantedBy)
	require.Equal(t, owner, *created.GrantedBy)

	grant.Role = "head_of_everything"
	rr = postJSON(t, router, &owner, "/assignments?organization_id="+org.String(), grant)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRevokeRoleEndpoint(t *testing.T) {
	stores := newMemoryStores()
	router := newAccessRouter(newTestService(stores))
	org := uuid.New()
	owner := uuid.New()
	assign(stores, owner, org, RoleOrganizationOwner, nil, nil)
	victim := assign(stores, uuid.New(), org, RoleViewer, nil, nil)

	req := asPrincipal(httptest.NewRequest(http.MethodDelete, "/assignments/not-a-uuid?organization_id="+org.String(), nil), owner)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req = asPrincipal(httptest.NewRequest(http.MethodDelete, "/assignments/"+victim.ID.String()+"?organization_id="+org.String(), nil), owner)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.False(t, stores.assignments[victim.UserID][0].IsActive)
}

func TestGrantOverrideEndpoint(t *testing.T) {
	stores := newMemoryStores()
	router := newAccessRouter(newTestService(stores))
	org := uuid.New()
	owner := uuid.New()
	target := uuid.New()
	assign(stores, owner, org, RoleOrganizationOwner, nil, nil)

	rr := postJSON(t, router, &owner, "/overrides?organization_id="+org.String(), GrantOverrideRequest{
		UserID:         target,
		OrganizationID: org,
		Resource:       ResourceReports,
		Action:         ActionExport,
		Reason:         "quarterly disclosure deadline",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var created PermissionOverride
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, target, created.UserID)
	require.Len(t, stores.overrides[target], 1)

	// Wildcards are a role-catalog privilege, not an override one.
	rr = postJSON(t, router, &owner, "/overrides?organization_id="+org.String(), GrantOverrideRequest{
		UserID:         target,
		OrganizationID: org,
		Resource:       ResourceAll,
		Action:         ActionExport,
		Reason:         "blanket access",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateDelegationSelfService(t *testing.T) {
	stores := newMemoryStores()
	router := newAccessRouter(newTestService(stores))
	org := uuid.New()
	delegator := uuid.New()
	delegate := uuid.New()
	held := assign(stores, delegator, org, RoleSiteManager, nil, nil)

	// Delegating your own role needs no administrative permission.
	rr := postJSON(t, router, &delegator, "/delegations", CreateDelegationRequest{
		DelegatorUserID: delegator,
		DelegateUserID:  delegate,
		DelegatorRoleID: held.RoleID,
		Scope:           ScopeFull,
		Reason:          "parental leave cover",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, stores.delegations[delegate], 1)
}

func TestCreateDelegationOnBehalfRequiresAssign(t *testing.T) {
	stores := newMemoryStores()
	router := newAccessRouter(newTestService(stores))
	org := uuid.New()
	delegator := uuid.New()
	delegate := uuid.New()
	held := assign(stores, delegator, org, RoleSiteManager, nil, nil)

	req := CreateDelegationRequest{
		DelegatorUserID: delegator,
		DelegateUserID:  delegate,
		DelegatorRoleID: held.RoleID,
		Scope:           ScopeFull,
		Reason:          "incident response handover",
	}

	intruder := uuid.New()
	rr := postJSON(t, router, &intruder, "/delegations?organization_id="+org.String(), req)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Empty(t, stores.delegations[delegate])

	owner := uuid.New()
	assign(stores, owner, org, RoleOrganizationOwner, nil, nil)
	rr = postJSON(t, router, &owner, "/delegations?organization_id="+org.String(), req)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, stores.delegations[delegate], 1)
}
