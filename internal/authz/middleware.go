package authz

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-esg/meridian/internal/platform/httpx"
	"github.com/meridian-esg/meridian/internal/shared"
)

// Middleware wires permission checks for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require guards a route with one (resource, action) permission. Requests
// without a principal get 401; denied principals get 403. Organization scope
// is read from the orgID route param or the organization_id query parameter;
// site scope from the site_id query parameter. Routes with neither carry the
// nil organization, which only the super-admin allowlist can pass.
func (m Middleware) Require(resource ResourceType, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}

			orgID, siteID, err := scopeFromRequest(r)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed scope identifier")
				return
			}

			decision := m.Service.Check(r.Context(), CheckContext{
				UserID:         principal.UserID,
				Resource:       resource,
				Action:         action,
				OrganizationID: orgID,
				SiteID:         siteID,
			})
			if !decision.Allowed {
				if m.Logger != nil {
					m.Logger.Info("request denied",
						slog.String("user_id", principal.UserID.String()),
						slog.String("resource", string(resource)),
						slog.String("action", string(action)),
						slog.String("organization_id", orgID.String()),
					)
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func scopeFromRequest(r *http.Request) (uuid.UUID, *uuid.UUID, error) {
	var orgID uuid.UUID
	raw := chi.URLParam(r, "orgID")
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("organization_id"))
	}
	if raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, nil, err
		}
		orgID = parsed
	}

	var siteID *uuid.UUID
	if raw := strings.TrimSpace(r.URL.Query().Get("site_id")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, nil, err
		}
		siteID = &parsed
	}
	return orgID, siteID, nil
}
