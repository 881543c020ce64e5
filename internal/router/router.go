// Package router assembles the gin engine of the API gateway.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/rbac-console/api/swagger"
	"github.com/noah-isme/rbac-console/internal/handler"
	"github.com/noah-isme/rbac-console/internal/middleware"
	"github.com/noah-isme/rbac-console/internal/permission"
	"github.com/noah-isme/rbac-console/internal/service"
	"github.com/noah-isme/rbac-console/pkg/config"
	"github.com/noah-isme/rbac-console/pkg/logger"
	corsmiddleware "github.com/noah-isme/rbac-console/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/rbac-console/pkg/middleware/requestid"
)

// Dependencies are the services the gateway routes dispatch to.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Auth      *service.AuthService
	Users     *service.UserService
	Reports   *service.ReportService
	Metrics   *service.MetricsService
	Readiness map[string]handler.ReadinessCheck
}

// New builds the gateway engine.
func New(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{Env: config.EnvDevelopment}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics, "/metrics"))

	metricsHandler := handler.NewMetricsHandler(deps.Metrics, deps.Readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.Auth)
	userHandler := handler.NewUserHandler(deps.Users)
	reportHandler := handler.NewReportHandler(deps.Reports)

	r.POST("/auth/login", authHandler.Login)

	secured := r.Group("/", middleware.JWT(deps.Auth))
	secured.GET("/users/me", authHandler.Me)

	users := secured.Group("/users", middleware.RequireCapabilities(permission.CanAccessUsers))
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.POST("", middleware.RequireCapabilities(permission.CanCreateUsers), userHandler.Create)
	users.PUT("/:id", middleware.RequireCapabilities(permission.CanEditUsers), userHandler.Update)
	users.DELETE("/:id", middleware.RequireCapabilities(permission.CanDeleteUsers), userHandler.Delete)

	reports := secured.Group("/reports", middleware.RequireCapabilities(permission.CanAccessReports, permission.CanViewAllReports))
	reports.GET("/summary", reportHandler.Summary)

	return r
}
