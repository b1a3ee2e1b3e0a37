// Package server wires services and handlers into the HTTP router.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"stocktrail/internal/config"
	_ "stocktrail/internal/docs" // Import swagger docs
	"stocktrail/internal/handlers"
	"stocktrail/internal/mailer"
	"stocktrail/internal/middleware"
	"stocktrail/internal/services"
	"stocktrail/internal/validator"
)

// Deps are the shared resources the router is built from.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Notifier *mailer.Notifier
	Tokens   *middleware.TokenIssuer
}

// New builds the API router.
func New(d Deps) *gin.Engine {
	validator.Register()

	db := d.DB
	userService := services.NewUserService(db, d.Notifier, d.Config.OTPTTL)
	categoryService := services.NewCategoryService(db)
	inventoryService := services.NewInventoryService(db, d.Notifier, d.Config.LowStockThreshold)
	historyService := services.NewHistoryService(db)
	goalService := services.NewGoalService(db, historyService)
	auditService := services.NewAuditService(db)

	authHandler := handlers.NewAuthHandler(userService, auditService, d.Tokens)
	categoryHandler := handlers.NewCategoryHandler(categoryService, auditService)
	inventoryHandler := handlers.NewInventoryHandler(inventoryService, auditService)
	historyHandler := handlers.NewHistoryHandler(historyService, auditService)
	goalHandler := handlers.NewGoalHandler(goalService, auditService)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(d.Config.CORSOrigin))
	router.NoRoute(middleware.NotFound())
	router.NoMethod(middleware.MethodNotAllowed())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/verify", authHandler.VerifyOTP)
	auth.POST("/resend-otp", authHandler.ResendOTP)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(d.Tokens.AuthMiddleware())

	protected.POST("/auth/logout", authHandler.Logout)

	profile := protected.Group("/profile")
	profile.GET("", authHandler.GetProfile)
	profile.PUT("/password", authHandler.ChangePassword)
	profile.POST("/password/otp", authHandler.RequestPasswordChangeOTP)
	profile.POST("/password/otp/confirm", authHandler.ChangePasswordWithOTP)
	profile.POST("/delete", authHandler.RequestAccountDeletion)
	profile.POST("/delete/confirm", authHandler.ConfirmAccountDeletion)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	inventory := protected.Group("/inventory")
	inventory.GET("", inventoryHandler.GetProducts)
	inventory.POST("", inventoryHandler.CreateProduct)
	inventory.POST("/bulk", inventoryHandler.BulkCreateProducts)
	inventory.GET("/:id", inventoryHandler.GetProduct)
	inventory.PUT("/:id", inventoryHandler.UpdateProduct)
	inventory.DELETE("/:id", inventoryHandler.DeleteProduct)
	inventory.POST("/:id/adjust", inventoryHandler.AdjustQuantity)
	inventory.PUT("/:id/history", inventoryHandler.RenameHistory)
	inventory.GET("/:id/stock", inventoryHandler.StockAt)

	protected.GET("/history", historyHandler.GetHistory)

	analytics := protected.Group("/analytics")
	analytics.GET("/daily", historyHandler.GetDailySummary)
	analytics.GET("/monthly", historyHandler.GetMonthlySummary)
	analytics.GET("/summary", historyHandler.GetSummary)
	analytics.GET("/top-selling", historyHandler.GetTopSelling)
	analytics.GET("/table", historyHandler.GetTable)
	analytics.GET("/table/export", historyHandler.ExportTable)
	analytics.GET("/weekly", historyHandler.GetWeekly)
	analytics.GET("/dashboard", historyHandler.GetDashboard)

	goals := protected.Group("/goals")
	goals.POST("", goalHandler.SetGoal)
	goals.GET("", goalHandler.GetGoal)
	goals.PUT("", goalHandler.UpdateGoal)
	goals.GET("/progress", goalHandler.GetGoalProgress)

	return router
}
