package reconcile

import (
	"context"

	"github.com/omarwaleed-dev/souqra-backend-go/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the persistence surface the engine needs. Write methods report
// how many documents the store actually modified; the engine compares that
// against its own accounting and aborts on a mismatch.
type Store interface {
	FindProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	SaveProduct(ctx context.Context, p *models.Product) error

	// CartsReferencing returns every cart holding at least one item of the
	// product, in a stable order.
	CartsReferencing(ctx context.Context, productID primitive.ObjectID) ([]models.Cart, error)

	ReplaceCartItems(ctx context.Context, cartID primitive.ObjectID, items []models.CartItem) (int64, error)

	// SetCartTotals writes the recomputed total and clears any applied
	// coupon discount.
	SetCartTotals(ctx context.Context, cartID primitive.ObjectID, total float64) (int64, error)

	// InTransaction runs fn inside one multi-document transaction. An error
	// from fn aborts every write issued within it.
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
