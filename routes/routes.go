package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omarwaleed-dev/souqra-backend-go/handlers"
	customMiddleware "github.com/omarwaleed-dev/souqra-backend-go/middleware"
)

func SetupRoutes(e *echo.Echo) {
	// Public routes
	e.POST("/login", handlers.LoginAdmin)
	e.GET("/products", handlers.GetProducts)
	e.GET("/products/:id", handlers.GetProduct)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Authenticated API routes
	api := e.Group("/api")
	api.Use(customMiddleware.AuthMiddleware)

	// Cart routes
	api.GET("/cart", handlers.GetCart)
	api.POST("/cart", handlers.AddToCart)
	api.PUT("/cart/quantity", handlers.UpdateCartItemQuantity)
	api.DELETE("/cart/:productId", handlers.RemoveFromCart)
	api.DELETE("/cart", handlers.ClearCart)

	// Admin product routes; PUT runs the cart reconciliation engine.
	admin := api.Group("/products", customMiddleware.RequireAdmin)
	admin.POST("", handlers.CreateProduct)
	admin.PUT("/:id", handlers.UpdateProduct)
}
