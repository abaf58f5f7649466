package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/omarwaleed-dev/souqra-backend-go/database"
	"github.com/omarwaleed-dev/souqra-backend-go/models"
)

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

// AddToCart copies the current effective price into the cart item. The
// snapshot drifts from the live product until a reconciliation patches it.
func AddToCart(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var req cartItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.Quantity <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Quantity must be positive"})
	}

	productID, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid product ID"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var product models.Product
	err = database.DB.Collection("products").FindOne(ctx, bson.M{"_id": productID}).Decode(&product)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Product not found"})
	}

	price, stock, selErr := resolveSelection(&product, req.Size, req.Color)
	if selErr != "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": selErr})
	}
	if stock != nil && req.Quantity > *stock {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Requested quantity exceeds stock"})
	}

	carts := database.DB.Collection("carts")
	var cart models.Cart
	err = carts.FindOne(ctx, bson.M{"userId": userID}).Decode(&cart)
	if err == mongo.ErrNoDocuments {
		cart = models.Cart{
			ID:        primitive.NewObjectID(),
			UserID:    userID,
			CreatedAt: time.Now(),
		}
	} else if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch cart"})
	}

	// Same selection already in the cart merges quantities.
	merged := false
	for i := range cart.CartItems {
		it := &cart.CartItems[i]
		if it.Product == productID && strings.EqualFold(it.Size, req.Size) && strings.EqualFold(it.Color, req.Color) {
			it.Quantity += req.Quantity
			if stock != nil && it.Quantity > *stock {
				it.Quantity = *stock
			}
			it.Price = price
			it.IsAvailable = true
			merged = true
			break
		}
	}
	if !merged {
		cart.CartItems = append(cart.CartItems, models.CartItem{
			Product:     productID,
			Size:        req.Size,
			Color:       req.Color,
			Price:       price,
			Quantity:    req.Quantity,
			IsAvailable: true,
		})
	}

	cart.RecomputeTotal()
	cart.UpdatedAt = time.Now()

	_, err = carts.ReplaceOne(ctx, bson.M{"userId": userID}, cart, options.Replace().SetUpsert(true))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update cart"})
	}

	return c.JSON(http.StatusOK, cart)
}

// GetCart retrieves the user's cart
func GetCart(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var cart models.Cart
	err := database.DB.Collection("carts").FindOne(ctx, bson.M{"userId": userID}).Decode(&cart)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Cart not found"})
	}

	return c.JSON(http.StatusOK, cart)
}

// UpdateCartItemQuantity updates the quantity of an item in the cart
func UpdateCartItemQuantity(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	var req cartItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.Quantity <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Quantity must be positive"})
	}

	productID, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid product ID"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	carts := database.DB.Collection("carts")
	var cart models.Cart
	if err := carts.FindOne(ctx, bson.M{"userId": userID}).Decode(&cart); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Cart not found"})
	}

	found := false
	for i := range cart.CartItems {
		it := &cart.CartItems[i]
		if it.Product == productID && strings.EqualFold(it.Size, req.Size) && strings.EqualFold(it.Color, req.Color) {
			if !it.IsAvailable {
				return c.JSON(http.StatusConflict, map[string]string{"error": "Item is no longer available"})
			}
			it.Quantity = req.Quantity
			found = true
			break
		}
	}
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Item not found in cart"})
	}

	cart.RecomputeTotal()
	cart.UpdatedAt = time.Now()

	if _, err := carts.ReplaceOne(ctx, bson.M{"_id": cart.ID}, cart); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update cart"})
	}

	return c.JSON(http.StatusOK, cart)
}

// RemoveFromCart removes an item from the cart
func RemoveFromCart(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)
	productID, err := primitive.ObjectIDFromHex(c.Param("productId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid product ID"})
	}
	size := c.QueryParam("size")
	color := c.QueryParam("color")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	carts := database.DB.Collection("carts")
	var cart models.Cart
	if err := carts.FindOne(ctx, bson.M{"userId": userID}).Decode(&cart); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Cart not found"})
	}

	kept := cart.CartItems[:0]
	removed := false
	for _, it := range cart.CartItems {
		if it.Product == productID && strings.EqualFold(it.Size, size) && strings.EqualFold(it.Color, color) {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	if !removed {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Item not found in cart"})
	}
	cart.CartItems = kept

	cart.RecomputeTotal()
	cart.UpdatedAt = time.Now()

	if _, err := carts.ReplaceOne(ctx, bson.M{"_id": cart.ID}, cart); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update cart"})
	}

	return c.JSON(http.StatusOK, cart)
}

// ClearCart deletes the user's cart document entirely.
func ClearCart(c echo.Context) error {
	userID := c.Get("userID").(primitive.ObjectID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := database.DB.Collection("carts").DeleteOne(ctx, bson.M{"userId": userID})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to clear cart"})
	}
	if res.DeletedCount == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Cart not found"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Cart cleared"})
}

// resolveSelection maps a size/color selection onto the product's current
// shape and returns the effective price and stock authority for it.
func resolveSelection(p *models.Product, size, color string) (float64, *int, string) {
	if p.SizesIsExist {
		if size == "" {
			return 0, nil, "Size is required for this product"
		}
		sv := p.FindSize(size)
		if sv == nil {
			return 0, nil, "Size " + size + " does not exist"
		}
		if len(sv.Colors) > 0 {
			if color == "" {
				return 0, nil, "Color is required for size " + sv.Size
			}
			cs := models.FindColor(sv.Colors, color)
			if cs == nil {
				return 0, nil, "Color " + color + " does not exist for size " + sv.Size
			}
			q := cs.Quantity
			return sv.EffectivePrice(), &q, ""
		}
		if color != "" {
			return 0, nil, "Size " + sv.Size + " has no colors"
		}
		return sv.EffectivePrice(), sv.Quantity, ""
	}

	if size != "" {
		return 0, nil, "Product has no sizes"
	}
	if len(p.Colors) > 0 {
		if color == "" {
			return 0, nil, "Color is required for this product"
		}
		cs := models.FindColor(p.Colors, color)
		if cs == nil {
			return 0, nil, "Color " + color + " does not exist"
		}
		q := cs.Quantity
		return p.EffectivePrice(), &q, ""
	}
	if color != "" {
		return 0, nil, "Product has no colors"
	}
	return p.EffectivePrice(), p.Quantity, ""
}
