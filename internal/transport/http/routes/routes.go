package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/transport/http/handlers"
	"github.com/arklim/social-platform-accounts/internal/transport/http/middleware"
	"github.com/arklim/social-platform-accounts/internal/usecase"
)

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Accounts *usecase.AccountService
	Metrics  *middleware.HTTPMetrics
	Database DatabaseChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Config.App.Env != "production" {
		r.Use(middleware.CORS([]string{"*"}))
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Config.JWT.Secret)

	healthOptions := make([]handlers.HealthOption, 0, 1)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	accountHandler := handlers.NewAccountHandler(deps.Accounts)

	api := r.Group("/api")
	{
		api.POST("/register", accountHandler.Register)
		api.GET("/activate", accountHandler.Activate)
		api.GET("/authenticate", middleware.OptionalAuth(deps.Config.JWT.Secret), accountHandler.Authenticate)

		accountGroup := api.Group("/account")
		{
			accountGroup.GET("", authMiddleware, accountHandler.GetAccount)
			accountGroup.POST("", authMiddleware, accountHandler.SaveAccount)
			accountGroup.POST("/change-password", authMiddleware, accountHandler.ChangePassword)
			accountGroup.POST("/reset-password/init", accountHandler.RequestPasswordReset)
			accountGroup.POST("/reset-password/finish", accountHandler.FinishPasswordReset)
		}
	}

	return r
}
