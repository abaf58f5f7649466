package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/omarwaleed-dev/souqra-backend-go/database"
	"github.com/omarwaleed-dev/souqra-backend-go/middleware"
	"github.com/omarwaleed-dev/souqra-backend-go/models"
)

// LoginAdmin issues the bearer token the product mutation routes require.
func LoginAdmin(c echo.Context) error {
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&credentials); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	var admin models.Admin
	err := database.DB.Collection("admins").FindOne(
		c.Request().Context(),
		bson.M{"email": credentials.Email},
	).Decode(&admin)

	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(credentials.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	}

	token, err := middleware.GenerateToken(admin.ID, "admin")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate token"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"admin": admin,
		"token": token,
	})
}
