package main

import (
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/omarwaleed-dev/souqra-backend-go/config"
	"github.com/omarwaleed-dev/souqra-backend-go/database"
	"github.com/omarwaleed-dev/souqra-backend-go/handlers"
	"github.com/omarwaleed-dev/souqra-backend-go/reconcile"
	"github.com/omarwaleed-dev/souqra-backend-go/routes"
)

func main() {
	// Load environment variables
	config.LoadEnv()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	// Initialize Echo
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Connect to MongoDB
	if err := database.ConnectDB(); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Wire the reconciliation engine behind the product mutation route.
	store := reconcile.NewMongoStore(database.Client, database.DB)
	handlers.Reconciler = reconcile.NewEngine(store, logger)

	// Setup routes
	routes.SetupRoutes(e)

	// Start the server
	port := config.GetEnv("PORT", "3000")
	logger.Info("Server starting", zap.String("port", port))
	e.Logger.Fatal(e.Start(":" + port))
}
