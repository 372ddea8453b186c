package audithttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/meridian-esg/meridian/internal/audit"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, nil
}

type stubExporter struct {
	csv []byte
}

func (s stubExporter) WriteCSV(rows []audit.TimelineRow) ([]byte, error) {
	if s.csv != nil {
		return s.csv, nil
	}
	return audit.CSVExporter{}.WriteCSV(rows)
}

func newAuditHandler(t *testing.T, service *stubTimelineService, exporter Exporter) *Handler {
	t.Helper()
	handler := NewHandler(nil, service, exporter)
	handler.now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }
	return handler
}

func TestTimelineReturnsRows(t *testing.T) {
	rows := []audit.TimelineRow{{
		At:     time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		Actor:  "auditor@example.com",
		Action: "access.role.granted",
		Entity: "role_assignment",
	}}
	service := &stubTimelineService{result: audit.Result{Rows: rows, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}}
	handler := newAuditHandler(t, service, stubExporter{})

	req := httptest.NewRequest(http.MethodGet, "/audit?from=2026-03-01&to=2026-03-15", nil)
	rr := httptest.NewRecorder()
	handler.handleTimeline(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "auditor@example.com") {
		t.Fatalf("expected actor in response: %s", rr.Body.String())
	}
	if service.lastFilters.From.Format("2006-01-02") != "2026-03-01" {
		t.Fatalf("unexpected from filter: %+v", service.lastFilters)
	}
	// The requested to day stays inside the exclusive upper bound.
	if service.lastFilters.To.Format("2006-01-02") != "2026-03-16" {
		t.Fatalf("unexpected to filter: %+v", service.lastFilters)
	}
}

func TestTimelineRejectsBadRange(t *testing.T) {
	handler := newAuditHandler(t, &stubTimelineService{}, stubExporter{})

	for _, target := range []string{
		"/audit?from=2026-03-20&to=2026-03-01",
		"/audit?from=2025-01-01&to=2026-03-15",
		"/audit?page=zero",
		"/audit?organization_id=not-a-uuid",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rr := httptest.NewRecorder()
		handler.handleTimeline(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
	}
}

func TestExportCSV(t *testing.T) {
	rows := []audit.TimelineRow{{Actor: "auditor@example.com"}}
	service := &stubTimelineService{exportRows: rows}
	handler := newAuditHandler(t, service, stubExporter{})

	req := httptest.NewRequest(http.MethodGet, "/audit/export.csv?from=2026-03-01&to=2026-03-05", nil)
	rr := httptest.NewRecorder()
	handler.handleExport(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ctype := rr.Header().Get("Content-Type"); !strings.Contains(ctype, "text/csv") {
		t.Fatalf("unexpected content-type: %s", ctype)
	}
	if !strings.Contains(rr.Body.String(), "auditor@example.com") {
		t.Fatalf("expected actor in csv: %s", rr.Body.String())
	}
}
