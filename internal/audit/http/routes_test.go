package audithttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-esg/meridian/internal/authz"
)

// The handler is mounted under /audit by the application router; its own
// patterns must be relative so the endpoints land at /audit, not /audit/audit.
func TestMountRoutesUnderAuditPrefix(t *testing.T) {
	handler := newAuditHandler(t, &stubTimelineService{}, stubExporter{})

	r := chi.NewRouter()
	r.Route("/audit", func(r chi.Router) {
		handler.MountRoutes(r, authz.Middleware{})
	})

	// Without a principal the guard answers 401; a 404 would mean the
	// route was registered at the wrong path.
	for _, target := range []string{"/audit", "/audit/export.csv"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", target, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/audit/audit", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("doubled path: expected 404, got %d", rr.Code)
	}
}
