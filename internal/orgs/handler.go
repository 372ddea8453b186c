package orgs

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-esg/meridian/internal/authz"
	"github.com/meridian-esg/meridian/internal/platform/httpx"
)

// Handler serves the organization and site directory API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the directory routes. Site routes live under their
// organization so the permission guard picks the org scope from the URL.
func (h *Handler) MountRoutes(r chi.Router, guard authz.Middleware) {
	r.With(guard.Require(authz.ResourceOrganizations, authz.ActionCreate)).Post("/", h.createOrg)
	r.With(guard.Require(authz.ResourceOrganizations, authz.ActionRead)).Get("/", h.listOrgs)

	r.Route("/{orgID}", func(r chi.Router) {
		r.With(guard.Require(authz.ResourceOrganizations, authz.ActionRead)).Get("/", h.getOrg)
		r.With(guard.Require(authz.ResourceOrganizations, authz.ActionUpdate)).Put("/", h.updateOrg)

		r.Route("/sites", func(r chi.Router) {
			r.With(guard.Require(authz.ResourceSites, authz.ActionCreate)).Post("/", h.createSite)
			r.With(guard.Require(authz.ResourceSites, authz.ActionRead)).Get("/", h.listSites)
			r.With(guard.Require(authz.ResourceSites, authz.ActionUpdate)).Put("/{siteID}", h.updateSite)
			r.With(guard.Require(authz.ResourceSites, authz.ActionDelete)).Delete("/{siteID}", h.deactivateSite)
		})
	})
}

func (h *Handler) createOrg(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	org, err := h.service.CreateOrganization(r.Context(), req)
	if err != nil {
		h.logger.Error("create organization", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, org)
}

func (h *Handler) listOrgs(w http.ResponseWriter, r *http.Request) {
	orgsList, err := h.service.ListOrganizations(r.Context())
	if err != nil {
		h.logger.Error("list organizations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"organizations": orgsList})
}

func (h *Handler) getOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	org, err := h.service.GetOrganization(r.Context(), orgID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

func (h *Handler) updateOrg(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	var req UpdateOrganizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	org, err := h.service.UpdateOrganization(r.Context(), orgID, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, org)
}

func (h *Handler) createSite(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	var req CreateSiteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	site, err := h.service.CreateSite(r.Context(), orgID, req)
	if err != nil {
		h.logger.Error("create site", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, site)
}

func (h *Handler) listSites(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	sites, err := h.service.ListSites(r.Context(), orgID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sites": sites})
}

func (h *Handler) updateSite(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	siteID, err := uuid.Parse(chi.URLParam(r, "siteID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed site id")
		return
	}
	var req UpdateSiteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	site, err := h.service.UpdateSite(r.Context(), orgID, siteID, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, site)
}

func (h *Handler) deactivateSite(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.orgID(w, r)
	if !ok {
		return
	}
	siteID, err := uuid.Parse(chi.URLParam(r, "siteID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed site id")
		return
	}
	if err := h.service.DeactivateSite(r.Context(), orgID, siteID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) orgID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "orgID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed organization id")
		return uuid.Nil, false
	}
	return id, true
}
