package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/meridian-esg/meridian/internal/authz"
	"github.com/meridian-esg/meridian/internal/shared"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes registers the audit timeline and CSV export endpoints.
// Reading the trail and exporting it are separate permissions.
func (h *Handler) MountRoutes(r chi.Router, guard authz.Middleware) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(guard.Require(authz.ResourceAudit, authz.ActionRead))
		gr.Get("/", h.handleTimeline)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(guard.Require(authz.ResourceAudit, authz.ActionExport), limiter)
		gr.Get("/export.csv", h.handleExport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if principal := shared.PrincipalFromContext(r.Context()); principal != nil {
		return "user:" + principal.UserID.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
