package report

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-esg/meridian/internal/authz"
	"github.com/meridian-esg/meridian/internal/platform/httpx"
	"github.com/meridian-esg/meridian/internal/shared"
)

// SnapshotStore fetches the latest stored access review for an organization.
type SnapshotStore interface {
	LatestAccessReviewSnapshot(ctx context.Context, orgID uuid.UUID) (authz.AccessReviewSnapshot, error)
}

// HTMLRenderer converts rendered HTML into a PDF document.
type HTMLRenderer interface {
	Ping(ctx context.Context) error
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Handler manages report endpoints.
type Handler struct {
	renderer HTMLRenderer
	store    SnapshotStore
	logger   *slog.Logger
	flight   singleflight.Group
}

// NewHandler creates a report handler.
func NewHandler(renderer HTMLRenderer, store SnapshotStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{renderer: renderer, store: store, logger: logger}
}

// MountRoutes registers report routes. The PDF export requires the reports
// export permission in the addressed organization.
func (h *Handler) MountRoutes(r chi.Router, guard authz.Middleware) {
	r.Get("/ping", h.ping)
	// PDF renders are expensive; cap them per caller.
	limiter := httprate.Limit(6, time.Minute, httprate.WithKeyFuncs(exportKey))
	r.With(guard.Require(authz.ResourceReports, authz.ActionExport), limiter).
		Get("/access-review/{orgID}.pdf", h.accessReview)
}

func exportKey(r *http.Request) (string, error) {
	if principal := shared.PrincipalFromContext(r.Context()); principal != nil {
		return "user:" + principal.UserID.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.renderer.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// accessReview serves the latest review snapshot as a PDF. Concurrent
// requests for the same snapshot share one render.
func (h *Handler) accessReview(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed organization id")
		return
	}

	snap, err := h.store.LatestAccessReviewSnapshot(r.Context(), orgID)
	if err != nil {
		h.logger.Error("load access review", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	key := orgID.String() + "@" + snap.GeneratedAt.UTC().Format(http.TimeFormat)
	pdf, err := h.renderPDF(r.Context(), key, snap)
	if err != nil {
		h.logger.Error("render access review pdf", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename=access-review-`+orgID.String()+`.pdf`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) renderPDF(ctx context.Context, key string, snap authz.AccessReviewSnapshot) ([]byte, error) {
	resultCh := h.flight.DoChan(key, func() (any, error) {
		html, err := ReviewHTML(snap)
		if err != nil {
			return nil, err
		}
		return h.renderer.RenderHTML(ctx, html)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}
