// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/maxreshetnik/portfolio/internal/config"
	"github.com/maxreshetnik/portfolio/internal/domain/cart"
	"github.com/maxreshetnik/portfolio/internal/domain/catalog"
	"github.com/maxreshetnik/portfolio/internal/domain/order"
	"github.com/maxreshetnik/portfolio/internal/domain/user"
	"github.com/maxreshetnik/portfolio/internal/interfaces/http/handlers"
	"github.com/maxreshetnik/portfolio/internal/interfaces/http/middleware"
)

// SetupRoutes wires repositories, services and handlers and registers
// every API route group under the given router group.
func SetupRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config) {
	logger := newLogger(cfg)

	// Repositories
	specRepo := catalog.NewSpecificationRepository(db)
	productRepo := catalog.NewProductRepository(db)
	categoryRepo := catalog.NewCategoryRepository(db)
	rateRepo := catalog.NewRateRepository(db)
	searchRepo := catalog.NewSearchRepository(db)
	orderRepo := order.NewRepository(db)

	// Services
	catalogService := catalog.NewService(specRepo, productRepo, categoryRepo, rateRepo, searchRepo, redisClient, logger)
	orderService := order.NewService(orderRepo, specRepo, logger)
	cartService := cart.NewService(orderRepo, specRepo, productRepo, logger)
	userService := user.NewService(db, cfg)

	// Handlers
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(orderService)
	authHandler := handlers.NewAuthHandler(userService)

	setupAuthRoutes(rg, authHandler, cfg)
	setupCatalogRoutes(rg, catalogHandler, cfg)
	setupCartRoutes(rg, cartHandler, cfg)
	setupOrderRoutes(rg, orderHandler, cfg)
	setupAdminRoutes(rg, orderHandler, catalogHandler, cfg)
}

// newLogger builds the shared service logger from the logging config.
func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// setupAuthRoutes sets up authentication and account routes
func setupAuthRoutes(rg *gin.RouterGroup, authHandler *handlers.AuthHandler, cfg *config.Config) {
	auth := rg.Group("/auth")
	{
		// Public auth endpoints
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)

		// Protected account endpoints
		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.GET("/profile", authHandler.GetProfile)
			protected.PUT("/profile", authHandler.UpdateProfile)
			protected.PUT("/password", authHandler.ChangePassword)
			protected.DELETE("/account", authHandler.DeactivateAccount)
		}
	}
}

// setupCatalogRoutes sets up catalog browsing and search routes
func setupCatalogRoutes(rg *gin.RouterGroup, catalogHandler *handlers.CatalogHandler, cfg *config.Config) {
	cat := rg.Group("/catalog")
	cat.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		cat.GET("/categories", catalogHandler.GetCategories)
		cat.GET("/categories/:id/items", catalogHandler.GetCategoryItems)
		cat.GET("/new", catalogHandler.GetNewArrivals)
		cat.GET("/popular", catalogHandler.GetPopular)
		cat.GET("/items/:id", catalogHandler.GetItem)
		cat.GET("/search", catalogHandler.Search)

		// Rating requires a signed-in user
		protected := cat.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.POST("/rates", catalogHandler.RateProduct)
		}
	}
}

// setupCartRoutes sets up shopping cart routes
func setupCartRoutes(rg *gin.RouterGroup, cartHandler *handlers.CartHandler, cfg *config.Config) {
	cartGroup := rg.Group("/cart")
	cartGroup.Use(middleware.AuthMiddleware(cfg))
	{
		cartGroup.GET("", cartHandler.GetCart)
		cartGroup.POST("/items", cartHandler.AddItem)
		cartGroup.DELETE("/items/:id", cartHandler.RemoveItem)
		cartGroup.DELETE("", cartHandler.Clear)
	}
}

// setupOrderRoutes sets up order routes
func setupOrderRoutes(rg *gin.RouterGroup, orderHandler *handlers.OrderHandler, cfg *config.Config) {
	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(cfg))
	{
		orders.POST("", orderHandler.PlaceOrder)
		orders.GET("", orderHandler.ListOrders)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.PUT("/:id/cancel", orderHandler.CancelOrder)
		orders.PUT("/:id/confirm", orderHandler.ConfirmOrder)
		orders.DELETE("/:id", orderHandler.DeleteOrder)
	}
}

// setupAdminRoutes sets up admin order and catalog management routes
func setupAdminRoutes(rg *gin.RouterGroup, orderHandler *handlers.OrderHandler, catalogHandler *handlers.CatalogHandler, cfg *config.Config) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg))
	admin.Use(middleware.AdminMiddleware())
	{
		admin.PUT("/orders/:id/status", orderHandler.UpdateOrderStatus)
		admin.DELETE("/orders/:id", orderHandler.DeleteOrder)
		admin.DELETE("/catalog/cache", catalogHandler.InvalidateCategoryCache)
	}
}
