package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/sessiongate/auth-gateway/internal/api/http"
	"github.com/sessiongate/auth-gateway/internal/api/http/handlers"
	"github.com/sessiongate/auth-gateway/internal/auth"
	"github.com/sessiongate/auth-gateway/internal/config"
	"github.com/sessiongate/auth-gateway/internal/events"
	"github.com/sessiongate/auth-gateway/internal/notify"
	"github.com/sessiongate/auth-gateway/internal/observability"
	"github.com/sessiongate/auth-gateway/internal/persistence"
	"github.com/sessiongate/auth-gateway/internal/repository"
	"github.com/sessiongate/auth-gateway/internal/service"
	"github.com/sessiongate/auth-gateway/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.Configured() {
		if err := persistence.RunMigrations(ctx, pg.Pool, persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	checks := map[string]handlers.Pinger{}
	var (
		userRepo  repository.UserRepository
		resetRepo repository.PasswordResetRepository
	)
	if pg.Configured() {
		userRepo = repository.NewUserRepository(pg.Pool)
		resetRepo = repository.NewPasswordResetRepository(pg.Pool)
		checks["postgres"] = pg
	} else {
		userRepo = repository.NewMemoryUserRepository()
		resetRepo = repository.NewMemoryPasswordResetRepository()
	}

	var sessionRepo repository.SessionRepository
	switch store := cfg.Session.Store; {
	case store == config.SessionStoreRedis:
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		sessionRepo = repository.NewRedisSessionRepository(rdb.Client, cfg.Session.RedisPrefix)
		checks["redis"] = rdb
	case store == config.SessionStorePostgres && pg.Configured():
		sessionRepo = repository.NewSessionRepository(pg.Pool)
	default:
		if store != config.SessionStoreMemory {
			logger.Warn("session store unavailable; using memory", zap.String("requested", store))
		}
		sessionRepo = repository.NewMemorySessionRepository()
	}

	tokens, err := auth.NewTokenManager(cfg.Auth)
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	dispatcher := events.NewInMemoryDispatcher()

	emailSender := notify.NewEmailSender(cfg.Notification.ResendAPIKey, cfg.Notification.EmailFrom, cfg.App.PublicURL, logger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, emailSender))

	sessionService := service.NewSessionService(service.SessionDependencies{
		UserRepo:    userRepo,
		SessionRepo: sessionRepo,
		Tokens:      tokens,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:          userRepo,
		Sessions:          sessionService,
		PasswordResetRepo: resetRepo,
		PasswordResetTTL:  cfg.Auth.PasswordResetTTL(),
		Hasher:            hasher,
		Dispatcher:        dispatcher,
		Logger:            logger,
	})
	userService := service.NewUserService(userRepo, sessionService, hasher, logger)

	if cfg.Auth.HasBootstrapAdmin() {
		if _, err := authService.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminUsername, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword); err != nil {
			logger.Fatal("failed to ensure bootstrap admin", zap.Error(err))
		}
	}

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env != "development",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, checks),
		Auth:   handlers.NewAuthHandler(authService, sessionService),
		Me:     handlers.NewMeHandler(authService),
		Users:  handlers.NewUsersHandler(userService),
		Gate:   auth.NewGate(tokens),
	})

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.App.Addr()), zap.String("session_store", cfg.Session.Store))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
