package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"krishilink/api/internal/api/handlers"
	"krishilink/api/internal/api/middleware"
	"krishilink/api/internal/auth"
	"krishilink/api/internal/config"
	"krishilink/api/internal/services"
)

// Services bundles what the public API handlers call into.
type Services struct {
	Crops     services.ICropService
	Interests services.IInterestService
	Users     services.IUserService
}

// SetupRouter configures and returns the main Gin engine. ctx bounds the
// rate limiter's background cleanup.
func SetupRouter(ctx context.Context, cfg *config.Config, logger *zap.Logger, verifier auth.TokenVerifier, svc Services) *gin.Engine {
	r := gin.New()

	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg, logger)

	// Order matters: the request id must exist before anything logs.
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigin))

	cropHandler := handlers.NewCropHandler(svc.Crops, logger)
	interestHandler := handlers.NewInterestHandler(svc.Interests, logger)
	userHandler := handlers.NewUserHandler(svc.Users, logger)

	// Public routes are limited per IP.
	public := r.Group("/")
	public.Use(rateLimiter.Limit())
	{
		public.GET("/", func(c *gin.Context) {
			c.String(http.StatusOK, cfg.AppName+" server is running")
		})
		public.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		public.GET("/users", userHandler.List)
		public.GET("/users/:email", userHandler.GetByEmail)
		public.POST("/users", userHandler.Login)

		public.GET("/products", cropHandler.ListByUnit)
		public.GET("/products/:id", cropHandler.GetByID)
		public.GET("/latest-products", cropHandler.Latest)
		public.GET("/all-products", cropHandler.ListAll)
		public.GET("/search", cropHandler.Search)
	}

	// Authenticated routes are limited per user, so the limiter runs after
	// auth. Ownership is checked by the services.
	authRequired := r.Group("/")
	authRequired.Use(middleware.AuthMiddleware(verifier, logger), rateLimiter.Limit())
	{
		authRequired.POST("/products", cropHandler.Create)
		authRequired.PUT("/products/:id", cropHandler.Update)
		authRequired.DELETE("/products/:id", cropHandler.Delete)
		authRequired.POST("/products/:id/image-upload-url", cropHandler.ImageUploadURL)
		authRequired.GET("/my-posted", cropHandler.MyPosted)

		authRequired.POST("/products/:id/interests", interestHandler.Create)
		authRequired.PATCH("/products/:id/interests/:interestId", interestHandler.Transition)
		authRequired.GET("/my-interests", interestHandler.MyInterests)
	}

	adminRequired := r.Group("/")
	adminRequired.Use(middleware.AuthMiddleware(verifier, logger), rateLimiter.Limit(), middleware.AdminMiddleware(svc.Users, logger))
	{
		adminRequired.PATCH("/users/:id/role", userHandler.UpdateRole)
		adminRequired.DELETE("/users/:id", userHandler.Delete)
	}

	return r
}

// SetupServiceRouter configures the operator API served on its own port.
func SetupServiceRouter(emails handlers.MockEmailStore, shutdownChan chan<- struct{}, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(logger), gin.Recovery())

	serviceApiHandler := handlers.NewServiceApiHandler(emails, shutdownChan, logger)
	r.POST("/api", serviceApiHandler.HandleRequest)
	return r
}
