package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/rbac-console/internal/handler"
	"github.com/noah-isme/rbac-console/internal/models"
	"github.com/noah-isme/rbac-console/internal/repository"
	"github.com/noah-isme/rbac-console/internal/router"
	"github.com/noah-isme/rbac-console/internal/service"
	"github.com/noah-isme/rbac-console/pkg/cache"
	"github.com/noah-isme/rbac-console/pkg/config"
	"github.com/noah-isme/rbac-console/pkg/database"
	"github.com/noah-isme/rbac-console/pkg/jobs"
	"github.com/noah-isme/rbac-console/pkg/logger"
	"github.com/noah-isme/rbac-console/pkg/observability"
)

// @title RBAC Console API Gateway
// @version 1.0.0
// @description Authentication, user directory and reports for the RBAC admin console
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const cacheNamespace = "rbac-console"

// directoryRepository is satisfied by both the Postgres and the in-memory user
// repositories.
type directoryRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	RoleStatusCounts(ctx context.Context) ([]models.RoleStatusCount, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	flushSentry, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flushSentry()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	readiness := map[string]handler.ReadinessCheck{}

	var repo directoryRepository
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logr.Warn("using in-memory user directory, data is lost on restart")
		repo = repository.NewMemoryUserRepository()
	default:
		db, err := openPostgres(ctx, cfg)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close()
		readiness["database"] = db.PingContext
		repo = repository.NewUserRepository(db)
	}

	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(client, logr).WithNamespace(cacheNamespace)
			defer cacheRepo.Close()
			readiness["redis"] = cacheRepo.Ping
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Users.CacheTTL, logr, cfg.Users.CacheEnabled)
		}
	}

	auditQueue := service.NewAuditQueue(repo, logr, jobs.QueueConfig{Workers: 2, MaxRetries: 3, RetryDelay: 500 * time.Millisecond})
	auditQueue.Start(ctx)

	validate := validator.New()
	authSvc := service.NewAuthService(repo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	}).WithMetrics(metrics).WithAuditRecorder(auditQueue)
	userSvc := service.NewUserService(repo, validate, logr, cacheSvc, service.UserServiceConfig{
		MaxPageSize: cfg.Users.MaxPageSize,
		CacheTTL:    cfg.Users.CacheTTL,
	}).WithAuditRecorder(auditQueue)
	reportSvc := service.NewReportService(repo, cacheSvc, logr, cfg.Users.CacheTTL)

	if cfg.Users.SeedDefaults {
		seeded, err := userSvc.SeedDefaults(ctx)
		if err != nil {
			logr.Fatal("failed to seed default users", zap.Error(err))
		}
		if seeded > 0 {
			logr.Info("seeded default users", zap.Int("count", seeded))
		}
	}

	engine := router.New(router.Dependencies{
		Config:    cfg,
		Logger:    logr,
		Auth:      authSvc,
		Users:     userSvc,
		Reports:   reportSvc,
		Metrics:   metrics,
		Readiness: readiness,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("failed to shutdown server", zap.Error(err))
		}
	}()

	logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env), zap.String("db_driver", cfg.Database.Driver))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Fatal("server failed", zap.Error(err))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := auditQueue.Close(drainCtx); err != nil {
		logr.Error("failed to drain audit queue", zap.Error(err))
	}
	logr.Info("server stopped")
}

func openPostgres(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return db, nil
}
