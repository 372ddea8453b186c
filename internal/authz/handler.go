package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-esg/meridian/internal/platform/httpx"
	"github.com/meridian-esg/meridian/internal/shared"
)

// Handler serves the access-control administration API.
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

// MountRoutes registers the access administration endpoints. Everything
// here requires an authenticated principal; grant mutations additionally
// require the roles assign permission in the target organization.
func (h *Handler) MountRoutes(r chi.Router, guard Middleware) {
	r.Post("/check", h.check)
	r.Get("/profile", h.ownProfile)
	r.Get("/roles", h.listRoles)

	r.Group(func(r chi.Router) {
		r.Use(guard.Require(ResourceUsers, ActionRead))
		r.Get("/profile/{userID}", h.profile)
	})
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(ResourceRoles, ActionRead))
		r.Get("/assignments", h.usersByRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(ResourceRoles, ActionAssign))
		r.Post("/assignments", h.grantRole)
		r.Delete("/assignments/{assignmentID}", h.revokeRole)
		r.Post("/overrides", h.grantOverride)
	})
	r.Post("/delegations", h.createDelegation)
}

type checkRequest struct {
	UserID         *uuid.UUID   `json:"user_id,omitempty"`
	Resource       ResourceType `json:"resource" validate:"required"`
	Action         Action       `json:"action" validate:"required"`
	OrganizationID uuid.UUID    `json:"organization_id" validate:"required"`
	SiteID         *uuid.UUID   `json:"site_id,omitempty"`
	ResourceID     string       `json:"resource_id,omitempty"`
}

// check answers one authorization question. Principals may always ask
// about themselves; asking about another user requires the users read
// permission in the addressed organization.
func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if !req.Resource.IsValid() || !req.Action.IsValid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown resource or action")
		return
	}

	subject := principal.UserID
	if req.UserID != nil && *req.UserID != principal.UserID {
		gatekeeper := h.service.Check(r.Context(), CheckContext{
			UserID:         principal.UserID,
			Resource:       ResourceUsers,
			Action:         ActionRead,
			OrganizationID: req.OrganizationID,
		})
		if !gatekeeper.Allowed {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "permission denied")
			return
		}
		subject = *req.UserID
	}

	decision := h.service.Check(r.Context(), CheckContext{
		UserID:         subject,
		Resource:       req.Resource,
		Action:         req.Action,
		OrganizationID: req.OrganizationID,
		SiteID:         req.SiteID,
		ResourceID:     req.ResourceID,
	})
	httpx.JSON(w, http.StatusOK, decision)
}

func (h *Handler) ownProfile(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	h.writeProfile(w, r, principal.UserID)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed user id")
		return
	}
	h.writeProfile(w, r, userID)
}

func (h *Handler) writeProfile(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	profile, err := h.service.GetUserAccessProfile(r.Context(), userID)
	if err != nil {
		h.logger.Error("access profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	if shared.PrincipalFromContext(r.Context()) == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": h.service.AvailableRoles()})
}

func (h *Handler) usersByRole(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.URL.Query().Get("organization_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "organization_id is required")
		return
	}
	filter := UsersByRoleFilter{
		OrganizationID: orgID,
		Role:           r.URL.Query().Get("role"),
	}
	if v := r.URL.Query().Get("site_id"); v != "" {
		siteID, err := uuid.Parse(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed site id")
			return
		}
		filter.SiteID = &siteID
	}
	assignments, err := h.service.GetUsersByRole(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, "users by role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (h *Handler) grantRole(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	var req GrantRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	assignment, err := h.service.GrantRole(r.Context(), principal.UserID, req)
	if err != nil {
		h.respondServiceError(w, "grant role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, assignment)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	assignmentID, err := uuid.Parse(chi.URLParam(r, "assignmentID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed assignment id")
		return
	}
	if err := h.service.RevokeRole(r.Context(), principal.UserID, assignmentID); err != nil {
		h.respondServiceError(w, "revoke role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) grantOverride(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	var req GrantOverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	override, err := h.service.GrantPermissionOverride(r.Context(), principal.UserID, req)
	if err != nil {
		h.respondServiceError(w, "grant override", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, override)
}

// createDelegation lets a principal hand over their own authority. Creating
// a delegation on behalf of another user requires the roles assign
// permission (checked via the resolver, so super-admins qualify too).
func (h *Handler) createDelegation(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	var req CreateDelegationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.DelegatorUserID != principal.UserID {
		orgID, _, err := scopeFromRequest(r)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed scope identifier")
			return
		}
		decision := h.service.Check(r.Context(), CheckContext{
			UserID:         principal.UserID,
			Resource:       ResourceRoles,
			Action:         ActionAssign,
			OrganizationID: orgID,
		})
		if !decision.Allowed {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "cannot delegate another user's authority")
			return
		}
	}
	delegation, err := h.service.CreateDelegation(r.Context(), principal.UserID, req)
	if err != nil {
		h.respondServiceError(w, "create delegation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, delegation)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case isValidationError(err):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func isValidationError(err error) bool {
	if err == nil {
		return false
	}
	for _, candidate := range []error{shared.ErrValidation, ErrRoleNotFound, ErrUnknownLegacyRole, ErrSelfDelegation, ErrDelegatorLacksRole} {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}
