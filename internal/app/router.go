package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	audithttp "github.com/meridian-esg/meridian/internal/audit/http"
	"github.com/meridian-esg/meridian/internal/auth"
	"github.com/meridian-esg/meridian/internal/authz"
	"github.com/meridian-esg/meridian/internal/observability"
	"github.com/meridian-esg/meridian/internal/orgs"
	"github.com/meridian-esg/meridian/internal/users"
	"github.com/meridian-esg/meridian/jobs"
	"github.com/meridian-esg/meridian/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Pool          *pgxpool.Pool
	Redis         *redis.Client
	AuthService   *auth.Service
	AuthHandler   *auth.Handler
	AccessHandler *authz.Handler
	Guard         authz.Middleware
	UsersHandler  *users.Handler
	OrgsHandler   *orgs.Handler
	AuditHandler  *audithttp.Handler
	ReportHandler *report.Handler
	JobHandler    *jobs.Handler
	Metrics       *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := readiness(ctx, params.Pool, params.Redis); err != nil {
			params.Logger.Warn("readiness", slog.Any("error", err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.AuthService != nil {
			r.Use(auth.Middleware(params.AuthService, params.Logger))
		}

		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.AccessHandler != nil {
			r.Route("/access", func(r chi.Router) {
				params.AccessHandler.MountRoutes(r, params.Guard)
			})
		}
		if params.OrgsHandler != nil {
			r.Route("/orgs", func(r chi.Router) {
				params.OrgsHandler.MountRoutes(r, params.Guard)
			})
		}
		if params.UsersHandler != nil {
			r.Route("/users", func(r chi.Router) {
				params.UsersHandler.MountRoutes(r, params.Guard)
			})
		}
		if params.AuditHandler != nil {
			r.Route("/audit", func(r chi.Router) {
				params.AuditHandler.MountRoutes(r, params.Guard)
			})
		}
		if params.ReportHandler != nil {
			r.Route("/reports", func(r chi.Router) {
				params.ReportHandler.MountRoutes(r, params.Guard)
			})
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

func readiness(ctx context.Context, pool *pgxpool.Pool, rdb *redis.Client) error {
	if pool != nil {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
	}
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}
