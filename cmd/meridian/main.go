package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-esg/meridian/cmd/meridian/cli"
	audithttp "github.com/meridian-esg/meridian/internal/audit/http"
	"github.com/meridian-esg/meridian/internal/app"
	"github.com/meridian-esg/meridian/internal/audit"
	"github.com/meridian-esg/meridian/internal/auth"
	"github.com/meridian-esg/meridian/internal/authz"
	"github.com/meridian-esg/meridian/internal/observability"
	"github.com/meridian-esg/meridian/internal/orgs"
	"github.com/meridian-esg/meridian/internal/platform/cache"
	"github.com/meridian-esg/meridian/internal/platform/db"
	"github.com/meridian-esg/meridian/internal/users"
	"github.com/meridian-esg/meridian/jobs"
	"github.com/meridian-esg/meridian/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(os.Args[2:]); err != nil {
			slog.Default().Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Tokens live in redis, so the API cannot come up without it.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalog := authz.NewCatalog()
	authzStore := authz.NewStore(pool)
	if err := authzStore.EnsureCatalog(ctx, catalog.List()); err != nil {
		logger.Error("ensure role catalog", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	auditStore := audit.NewStore(pool)
	auditService := audit.NewService(auditStore)

	resolver := authz.NewResolver(catalog, authzStore, authzStore, authzStore, authzStore, logger)
	authzService := authz.NewService(catalog, authzStore, resolver, logger)
	authzService.SetAuditRecorder(auditService)
	authzService.SetMetrics(metrics)
	guard := authz.Middleware{Service: authzService, Logger: logger}

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	orgsRepo := orgs.NewRepository(pool)
	orgsService := orgs.NewService(orgsRepo)
	orgsHandler := orgs.NewHandler(logger, orgsService)

	tokenStore := auth.NewTokenStore(redisClient, cfg.TokenSecret, cfg.TokenTTL)
	authService := auth.NewService(usersService, tokenStore)
	authHandler := auth.NewHandler(logger, authService)

	auditHandler := audithttp.NewHandler(logger, auditService, audit.CSVExporter{})
	accessHandler := authz.NewHandler(logger, authzService)

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportHandler := report.NewHandler(reportClient, authzStore, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Pool:          pool,
		Redis:         redisClient,
		AuthService:   authService,
		AuthHandler:   authHandler,
		AccessHandler: accessHandler,
		Guard:         guard,
		UsersHandler:  usersHandler,
		OrgsHandler:   orgsHandler,
		AuditHandler:  auditHandler,
		ReportHandler: reportHandler,
		JobHandler:    jobHandler,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobsCommand handles `meridian jobs <run|stats> [name]` without starting
// the HTTP server.
func runJobsCommand(args []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		_ = jobsCLI.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if len(args) == 0 {
		return fmt.Errorf("usage: meridian jobs <run|stats> [task]")
	}
	switch args[0] {
	case "run":
		if len(args) < 2 {
			return fmt.Errorf("usage: meridian jobs run <%s|%s>", jobs.TaskAuthzExpirySweep, jobs.TaskAuthzAccessReview)
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return fmt.Errorf("unknown jobs subcommand %q", args[0])
	}
}
