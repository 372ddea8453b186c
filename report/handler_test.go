package report

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-esg/meridian/internal/authz"
	"github.com/meridian-esg/meridian/internal/shared"
)

// allowlistRepo satisfies authz.Repository with an empty grant surface so
// only super-admins pass the guard.
type allowlistRepo struct {
	admins map[uuid.UUID]bool
}

func (a *allowlistRepo) InsertAssignment(ctx context.Context, _ authz.UserRoleAssignment) error {
	return nil
}
func (a *allowlistRepo) DeactivateAssignment(ctx context.Context, _ uuid.UUID) error { return nil }
func (a *allowlistRepo) ListActiveAssignments(ctx context.Context, _ uuid.UUID) ([]authz.UserRoleAssignment, error) {
	return nil, nil
}
func (a *allowlistRepo) ListAssignments(ctx context.Context, _ uuid.UUID, _ *uuid.UUID, _ *uuid.UUID) ([]authz.UserRoleAssignment, error) {
	return nil, nil
}
func (a *allowlistRepo) InsertOverride(ctx context.Context, _ authz.PermissionOverride) error {
	return nil
}
func (a *allowlistRepo) ListActiveOverrides(ctx context.Context, _ uuid.UUID) ([]authz.PermissionOverride, error) {
	return nil, nil
}
func (a *allowlistRepo) InsertDelegation(ctx context.Context, _ authz.Delegation) error { return nil }
func (a *allowlistRepo) ListActiveDelegations(ctx context.Context, _ uuid.UUID) ([]authz.Delegation, error) {
	return nil, nil
}
func (a *allowlistRepo) IsSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	return a.admins[userID], nil
}

type fakeSnapshotStore struct {
	snapshots map[uuid.UUID]authz.AccessReviewSnapshot
}

func (f *fakeSnapshotStore) LatestAccessReviewSnapshot(ctx context.Context, orgID uuid.UUID) (authz.AccessReviewSnapshot, error) {
	snap, ok := f.snapshots[orgID]
	if !ok {
		return authz.AccessReviewSnapshot{}, shared.ErrNotFound
	}
	return snap, nil
}

type fakeRenderer struct {
	pingErr error
	renders int
	fail    bool
}

func (f *fakeRenderer) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeRenderer) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	f.renders++
	if f.fail {
		return nil, errors.New("gotenberg down")
	}
	return []byte("%PDF-1.7 " + html[:20]), nil
}

func newReportRouter(renderer HTMLRenderer, store SnapshotStore, admin uuid.UUID) http.Handler {
	repo := &allowlistRepo{admins: map[uuid.UUID]bool{admin: true}}
	resolver := authz.NewResolver(authz.NewCatalog(), repo, repo, repo, repo, nil)
	svc := authz.NewService(authz.NewCatalog(), repo, resolver, nil)
	r := chi.NewRouter()
	NewHandler(renderer, store, nil).MountRoutes(r, authz.Middleware{Service: svc})
	return r
}

func get(router http.Handler, target string, user *uuid.UUID) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if user != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), &shared.Principal{UserID: *user}))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestPingReportsGotenbergHealth(t *testing.T) {
	admin := uuid.New()
	renderer := &fakeRenderer{}
	router := newReportRouter(renderer, &fakeSnapshotStore{}, admin)

	rr := get(router, "/ping", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	renderer.pingErr = errors.New("unreachable")
	rr = get(router, "/ping", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAccessReviewExportRequiresPermission(t *testing.T) {
	admin := uuid.New()
	orgID := uuid.New()
	store := &fakeSnapshotStore{snapshots: map[uuid.UUID]authz.AccessReviewSnapshot{
		orgID: {OrganizationID: orgID, GeneratedAt: time.Now()},
	}}
	router := newReportRouter(&fakeRenderer{}, store, admin)

	rr := get(router, "/access-review/"+orgID.String()+".pdf", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	outsider := uuid.New()
	rr = get(router, "/access-review/"+orgID.String()+".pdf", &outsider)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAccessReviewExportServesPDF(t *testing.T) {
	admin := uuid.New()
	orgID := uuid.New()
	store := &fakeSnapshotStore{snapshots: map[uuid.UUID]authz.AccessReviewSnapshot{
		orgID: {
			OrganizationID: orgID,
			GeneratedAt:    time.Date(2026, time.February, 2, 6, 0, 0, 0, time.UTC),
			Summary:        authz.OrgAccessSummary{OrganizationID: orgID, OrganizationName: "Verdant Holdings"},
		},
	}}
	renderer := &fakeRenderer{}
	router := newReportRouter(renderer, store, admin)

	rr := get(router, "/access-review/"+orgID.String()+".pdf", &admin)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), orgID.String())
	require.Equal(t, 1, renderer.renders)
}

func TestAccessReviewExportMapsErrors(t *testing.T) {
	admin := uuid.New()
	router := newReportRouter(&fakeRenderer{}, &fakeSnapshotStore{}, admin)

	rr := get(router, "/access-review/not-a-uuid.pdf", &admin)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = get(router, "/access-review/"+uuid.NewString()+".pdf", &admin)
	require.Equal(t, http.StatusNotFound, rr.Code)

	orgID := uuid.New()
	store := &fakeSnapshotStore{snapshots: map[uuid.UUID]authz.AccessReviewSnapshot{
		orgID: {OrganizationID: orgID, GeneratedAt: time.Now()},
	}}
	router = newReportRouter(&fakeRenderer{fail: true}, store, admin)
	rr = get(router, "/access-review/"+orgID.String()+".pdf", &admin)
	require.Equal(t, http.StatusBadGateway, rr.Code)
}
