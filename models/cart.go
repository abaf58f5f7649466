package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem holds a denormalized snapshot of a product/size/color selection.
// Price and Quantity are copied at add time and drift from the live product
// until the reconciliation engine patches them.
type CartItem struct {
	Product     primitive.ObjectID `bson:"product" json:"product"`
	Size        string             `bson:"size,omitempty" json:"size,omitempty"`
	Color       string             `bson:"color,omitempty" json:"color,omitempty"`
	Price       float64            `bson:"price" json:"price"`
	Quantity    int                `bson:"quantity" json:"quantity"`
	IsAvailable bool               `bson:"isAvailable" json:"isAvailable"`
}

// Cart is one document per user.
type Cart struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID                  primitive.ObjectID `bson:"userId" json:"userId"`
	CartItems               []CartItem         `bson:"cartItems" json:"cartItems"`
	TotalCartPrice          float64            `bson:"totalCartPrice" json:"totalCartPrice"`
	TotalPriceAfterDiscount *float64           `bson:"totalPriceAfterDiscount,omitempty" json:"totalPriceAfterDiscount,omitempty"`
	CreatedAt               time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt               time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RecomputeTotal restores the cart invariant: totalCartPrice is the sum of
// quantity*price over available items, and any coupon discount is cleared
// because the contents changed.
func (c *Cart) RecomputeTotal() {
	var total float64
	for _, item := range c.CartItems {
		if !item.IsAvailable {
			continue
		}
		total += float64(item.Quantity) * item.Price
	}
	c.TotalCartPrice = total
	c.TotalPriceAfterDiscount = nil
}
