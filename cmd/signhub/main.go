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
	"golang.org/x/sync/errgroup"

	"github.com/signhub/signhub/internal/app"
	"github.com/signhub/signhub/internal/auth"
	"github.com/signhub/signhub/internal/content"
	"github.com/signhub/signhub/internal/fonts"
	"github.com/signhub/signhub/internal/groups"
	"github.com/signhub/signhub/internal/observability"
	"github.com/signhub/signhub/internal/permissions"
	"github.com/signhub/signhub/internal/platform/cache"
	"github.com/signhub/signhub/internal/platform/db"
	"github.com/signhub/signhub/internal/rbac"
	"github.com/signhub/signhub/internal/shared"
	"github.com/signhub/signhub/internal/twofactor"
	"github.com/signhub/signhub/internal/users"
	"github.com/signhub/signhub/jobs"
)

const shutdownTimeout = 10 * time.Second

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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("signhub", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{ApplicationName: "signhub"})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := cfg.Redis().Asynq()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "signhub_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)

	twoFactor := twofactor.NewService(twofactor.Config{
		Issuer:        cfg.Issuer(),
		QRCodeBaseURL: cfg.QuickChartURL,
		MailFrom:      cfg.SMTPFrom,
	}, metrics)

	authService := auth.NewService(auth.NewRepository(dbpool), metrics)
	authHandler := auth.NewHandler(logger, authService, twoFactor, jobClient, sessionManager, csrfManager)

	usersService := users.NewService(users.NewRepository(dbpool), authService, twoFactor, users.Defaults{
		UserTypeID: cfg.DefaultUserType,
		GroupName:  cfg.DefaultUserGroup,
	}, logger)
	groupsService := groups.NewService(groups.NewRepository(dbpool), logger)

	contentRepo := content.NewRepository(dbpool)
	permissionsService := permissions.NewService(
		permissions.NewRegistry(contentRepo.Providers()),
		permissions.NewStore(dbpool),
		contentRepo,
		jobClient,
		auditLogger,
		logger,
		metrics,
	)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		RBACMiddleware:     rbac.Middleware{Loader: rbac.NewService(dbpool), Logger: logger},
		AuthHandler:        authHandler,
		UsersHandler:       users.NewHandler(logger, usersService),
		GroupsHandler:      groups.NewHandler(logger, groupsService),
		PermissionsHandler: permissions.NewHandler(logger, permissionsService),
		FontsHandler:       fonts.NewHandler(logger, fonts.NewCache(redisClient, cfg.FontCacheTTL), contentRepo),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
