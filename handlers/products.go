package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/omarwaleed-dev/souqra-backend-go/database"
	"github.com/omarwaleed-dev/souqra-backend-go/models"
	"github.com/omarwaleed-dev/souqra-backend-go/reconcile"
)

// Reconciler is wired in main after the database connects.
var Reconciler *reconcile.Engine

var validate = validator.New()

func GetProduct(c echo.Context) error {
	objID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid product ID"})
	}

	var product models.Product
	err = database.DB.Collection("products").FindOne(c.Request().Context(), bson.M{"_id": objID}).Decode(&product)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Product not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch product"})
	}

	return c.JSON(http.StatusOK, product)
}

func GetProducts(c echo.Context) error {
	var products []models.Product
	collection := database.DB.Collection("products")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, err.Error())
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var product models.Product
		cursor.Decode(&product)
		products = append(products, product)
	}

	return c.JSON(http.StatusOK, products)
}

func CreateProduct(c echo.Context) error {
	var product models.Product
	if err := c.Bind(&product); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if fieldErrs := validateProductShape(&product); len(fieldErrs) > 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"errors": fieldErrs})
	}

	product.ID = primitive.NewObjectID()
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := database.DB.Collection("products").InsertOne(ctx, product)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create product"})
	}

	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct is the controller of the reconciliation engine: it shapes
// the mutation descriptor and maps engine failures onto the HTTP contract.
func UpdateProduct(c echo.Context) error {
	objID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid product ID"})
	}

	var d reconcile.MutationDescriptor
	if err := c.Bind(&d); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	if err := validate.Struct(&d); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"errors": validatorFieldMap(err)})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	updated, err := Reconciler.Apply(ctx, objID, &d)
	if err != nil {
		var fieldErrs reconcile.FieldErrors
		if errors.As(err, &fieldErrs) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{"errors": fieldErrs})
		}
		if errors.Is(err, reconcile.ErrProductNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Product not found"})
		}
		var consistency *reconcile.ConsistencyError
		if errors.As(err, &consistency) {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": consistency.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Changes reverted: " + err.Error()})
	}

	return c.JSON(http.StatusOK, updated)
}

func validatorFieldMap(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["general"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		out[field] = "failed " + fe.Tag() + " validation"
	}
	return out
}

// validateProductShape enforces the structural invariants of a new product:
// one mode only, positive prices, discount below price, unique names, and
// colors as the sole stock authority when present.
func validateProductShape(p *models.Product) map[string]string {
	errs := map[string]string{}

	if p.Name == "" {
		errs["name"] = "name is required"
	}

	if p.SizesIsExist {
		if p.Price != 0 || p.PriceAfterDiscount != nil || p.Quantity != nil || len(p.Colors) > 0 {
			errs["sizesIsExist"] = "a sized product must not carry top-level price, quantity or colors"
		}
		if len(p.Sizes) == 0 {
			errs["sizes"] = "a sized product requires at least one size"
		}
		seen := map[string]bool{}
		for _, sv := range p.Sizes {
			lower := strings.ToLower(sv.Size)
			if sv.Size == "" {
				errs["sizes"] = "size name is required"
			} else if seen[lower] {
				errs["sizes"] = "size name " + sv.Size + " is duplicated"
			}
			seen[lower] = true
			if sv.Price <= 0 {
				errs["sizes."+sv.Size+".price"] = "price must be greater than zero"
			}
			if sv.PriceAfterDiscount != nil && *sv.PriceAfterDiscount >= sv.Price {
				errs["sizes."+sv.Size+".priceAfterDiscount"] = "discounted price must be strictly below price"
			}
			if sv.Quantity != nil && len(sv.Colors) > 0 {
				errs["sizes."+sv.Size+".quantity"] = "colors are the stock authority; remove the flat quantity"
			}
			if msg := checkColorList(sv.Colors); msg != "" {
				errs["sizes."+sv.Size+".colors"] = msg
			}
		}
	} else {
		if len(p.Sizes) > 0 {
			errs["sizes"] = "a flat product must not carry sizes"
		}
		if p.Price <= 0 {
			errs["price"] = "price must be greater than zero"
		}
		if p.PriceAfterDiscount != nil && *p.PriceAfterDiscount >= p.Price {
			errs["priceAfterDiscount"] = "discounted price must be strictly below price"
		}
		if p.Quantity != nil && len(p.Colors) > 0 {
			errs["quantity"] = "colors are the stock authority; remove the flat quantity"
		}
		if msg := checkColorList(p.Colors); msg != "" {
			errs["colors"] = msg
		}
	}

	return errs
}

func checkColorList(colors []models.ColorStock) string {
	seen := map[string]bool{}
	for _, cs := range colors {
		if cs.Color == "" {
			return "color name is required"
		}
		lower := strings.ToLower(cs.Color)
		if seen[lower] {
			return "color name " + cs.Color + " is duplicated"
		}
		seen[lower] = true
		if cs.Quantity < 0 {
			return "color " + cs.Color + " has a negative quantity"
		}
	}
	return ""
}
