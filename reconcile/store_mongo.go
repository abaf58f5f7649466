package reconcile

import (
	"context"
	"time"

	"github.com/omarwaleed-dev/souqra-backend-go/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists products and carts in MongoDB. Inside InTransaction
// every method call picks up the session bound to the context, so the whole
// reconciliation rides one transaction.
type MongoStore struct {
	client   *mongo.Client
	products *mongo.Collection
	carts    *mongo.Collection
}

func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:   client,
		products: db.Collection("products"),
		carts:    db.Collection("carts"),
	}
}

func (s *MongoStore) FindProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var p models.Product
	err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) SaveProduct(ctx context.Context, p *models.Product) error {
	_, err := s.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	return err
}

func (s *MongoStore) CartsReferencing(ctx context.Context, productID primitive.ObjectID) ([]models.Cart, error) {
	cursor, err := s.carts.Find(ctx,
		bson.M{"cartItems.product": productID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var carts []models.Cart
	if err := cursor.All(ctx, &carts); err != nil {
		return nil, err
	}
	return carts, nil
}

func (s *MongoStore) ReplaceCartItems(ctx context.Context, cartID primitive.ObjectID, items []models.CartItem) (int64, error) {
	res, err := s.carts.UpdateOne(ctx,
		bson.M{"_id": cartID},
		bson.M{"$set": bson.M{"cartItems": items, "updatedAt": time.Now()}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) SetCartTotals(ctx context.Context, cartID primitive.ObjectID, total float64) (int64, error) {
	res, err := s.carts.UpdateOne(ctx,
		bson.M{"_id": cartID},
		bson.M{
			"$set":   bson.M{"totalCartPrice": total, "updatedAt": time.Now()},
			"$unset": bson.M{"totalPriceAfterDiscount": ""},
		})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}
