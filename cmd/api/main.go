package main

import (
	"fmt"
	"os"

	"stocktrail/internal/config"
	"stocktrail/internal/database"
	"stocktrail/internal/logger"
	"stocktrail/internal/mailer"
	"stocktrail/internal/middleware"
	"stocktrail/internal/server"
)

// @title           Stocktrail API
// @version         1.0
// @description     Stocktrail tracks a shop's inventory through an append-only history of stock movements and reports sales, profit and goal progress over time.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	router := server.New(server.Deps{
		Config:   cfg,
		DB:       dbManager.DB(),
		Notifier: mailer.NewNotifier(mailer.NewSender(cfg, logger.Named("mailer")), cfg.OTPTTL),
		Tokens:   middleware.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpirationDur),
	})

	log.Infof("Starting Stocktrail server on port %s", cfg.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", cfg.Port)
	return router.Run(":" + cfg.Port)
}
