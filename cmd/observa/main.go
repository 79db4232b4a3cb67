package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/observa-edu/observa/internal/access"
	"github.com/observa-edu/observa/internal/app"
	"github.com/observa-edu/observa/internal/audit"
	audithttp "github.com/observa-edu/observa/internal/audit/http"
	"github.com/observa-edu/observa/internal/auth"
	"github.com/observa-edu/observa/internal/hierarchy"
	"github.com/observa-edu/observa/internal/menu"
	"github.com/observa-edu/observa/internal/observability"
	"github.com/observa-edu/observa/internal/pages"
	"github.com/observa-edu/observa/internal/permissions"
	"github.com/observa-edu/observa/internal/platform/cache"
	"github.com/observa-edu/observa/internal/platform/db"
	"github.com/observa-edu/observa/internal/roles"
	"github.com/observa-edu/observa/internal/session"
	"github.com/observa-edu/observa/internal/shared"
	"github.com/observa-edu/observa/internal/users"
	"github.com/observa-edu/observa/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MinConns: cfg.PGMinConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	landing := menu.DefaultLanding()
	if cfg.LandingPathsFile != "" {
		landing, err = menu.LoadLanding(cfg.LandingPathsFile)
		if err != nil {
			logger.Error("load landing paths", slog.String("file", cfg.LandingPathsFile), slog.Any("error", err))
			os.Exit(1)
		}
	}

	metrics := observability.NewMetrics()
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	auditRepo := audit.NewRepository(dbpool)
	writerOpts := []audit.WriterOption{audit.WithFailureCounter(metrics)}
	if cfg.AuditRedelivery {
		jobClient := jobs.NewClient(redisOpts)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		writerOpts = append(writerOpts, audit.WithRedelivery(jobClient))
	}
	auditWriter := audit.NewWriter(auditRepo, logger, writerOpts...)

	userRepo := users.NewRepository(dbpool)
	sessionStore := session.NewRedisStore(redisClient, userRepo, cfg.SessionTTL, cfg.SessionExpiredGrace)

	permissionsRepo := permissions.NewRepository(dbpool)
	resolver := permissions.NewResolver(permissionsRepo, logger)
	permissionsService := permissions.NewService(permissionsRepo, resolver, auditWriter, idempotencyStore, userRepo, logger)

	hierarchyRepo := hierarchy.NewRepository(dbpool)
	scopeResolver := hierarchy.NewResolver(hierarchyRepo, logger)
	hierarchyService := hierarchy.NewService(hierarchyRepo, scopeResolver, resolver, userRepo, auditWriter, logger)

	facade := access.NewFacade(sessionStore, resolver, scopeResolver, logger, metrics)
	guard := access.Middleware{
		Facade:     facade,
		CSRF:       csrfManager,
		CookieName: cfg.SessionCookie,
		Logger:     logger,
	}

	menuRepo := menu.NewRepository(dbpool)
	composer := menu.NewComposer(menuRepo, resolver, landing, logger)
	menuService := menu.NewService(menuRepo, auditWriter, logger)

	authService := auth.NewService(auth.NewBcryptVerifier(auth.NewRepository(dbpool)), sessionStore, csrfManager, logger)
	rolesService := roles.NewService(roles.NewRepository(dbpool), auditWriter, logger)
	pagesService := pages.NewService(pages.NewRepository(dbpool), auditWriter, logger)
	usersService := users.NewService(userRepo, sessionStore)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Access:             guard,
		Metrics:            metrics,
		AuthHandler:        auth.NewHandler(logger, authService, auth.CookieConfig{Name: cfg.SessionCookie, Secure: cfg.IsProduction()}, cfg.LoginLimitPerMinute),
		PermissionsHandler: permissions.NewHandler(logger, permissionsService, guard),
		HierarchyHandler:   hierarchy.NewHandler(logger, hierarchyService),
		MenuHandler:        menu.NewHandler(logger, composer, menuService, permissionsService, guard),
		AuditHandler:       audithttp.NewHandler(logger, audit.NewService(auditRepo, logger), guard),
		RolesHandler:       roles.NewHandler(logger, rolesService, guard),
		PagesHandler:       pages.NewHandler(logger, pagesService, guard),
		UsersHandler:       users.NewHandler(logger, usersService, guard),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Ready: func(r *http.Request) error {
			if err := dbpool.Ping(r.Context()); err != nil {
				return err
			}
			return redisClient.Ping(r.Context()).Err()
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
