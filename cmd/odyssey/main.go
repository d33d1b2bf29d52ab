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
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-rbac/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-rbac/internal/app"
	"github.com/odyssey-erp/odyssey-rbac/internal/auth"
	"github.com/odyssey-erp/odyssey-rbac/internal/menu"
	"github.com/odyssey-erp/odyssey-rbac/internal/observability"
	"github.com/odyssey-erp/odyssey-rbac/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/roles"
	"github.com/odyssey-erp/odyssey-rbac/internal/token"
	"github.com/odyssey-erp/odyssey-rbac/internal/users"
	"github.com/odyssey-erp/odyssey-rbac/jobs"
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

	if args := os.Args[1:]; cli.IsCommand(args) {
		code := runCommand(ctx, cfg, args)
		stop()
		os.Exit(code)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, menu cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	issuer, err := token.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTTTL, token.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		logger.Error("init token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	auditSink := jobs.NewAuditPublisher(jobClient)

	metrics := observability.NewMetrics()
	principals := rbac.NewPrincipalRepository(dbpool)
	rbacMiddleware := rbac.Middleware{
		Tokens:     issuer,
		Principals: principals,
		Logger:     logger,
		Observer:   metrics,
	}

	authService := auth.NewService(auth.NewRepository(dbpool), principals, issuer, auditSink, logger)
	authHandler := auth.NewHandler(logger, authService)

	usersService := users.NewService(users.NewRepository(dbpool), auditSink, logger)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	rolesService := roles.NewService(roles.NewRepository(dbpool), auditSink, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware)

	permissionService := rbac.NewPermissionService(rbac.NewPermissionRepository(dbpool), auditSink, logger)
	permissionsHandler := rbac.NewPermissionsHandler(logger, permissionService, rbacMiddleware)

	menuService := menu.NewService(menu.NewRepository(dbpool), menu.NewCache(redisClient, cfg.MenuCacheTTL), auditSink, logger)
	menuHandler := menu.NewHandler(logger, menuService, rbacMiddleware)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		MenuHandler:        menuHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Duration("token_ttl", issuer.TTL()))
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

func runCommand(ctx context.Context, cfg *app.Config, args []string) int {
	return cli.Run(ctx, args, cli.Deps{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Principals: func(ctx context.Context) (rbac.PrincipalLoader, func(), error) {
			pool, err := db.New(ctx, cfg.PGDSN)
			if err != nil {
				return nil, nil, err
			}
			return rbac.NewPrincipalRepository(pool), pool.Close, nil
		},
		Jobs: func() (*cli.JobsCLI, error) {
			return cli.NewJobsCLI(cfg.RedisAddr)
		},
	})
}
