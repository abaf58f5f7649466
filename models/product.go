package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ColorStock is one purchasable color of a product or size, with its own stock.
type ColorStock struct {
	Color    string `bson:"color" json:"color"`
	Quantity int    `bson:"quantity" json:"quantity"`
}

// SizeVariant is one size of a sized product. When Colors is non-empty the
// color quantities are the stock authority and Quantity stays unset.
type SizeVariant struct {
	Size               string       `bson:"size" json:"size"`
	Price              float64      `bson:"price" json:"price"`
	PriceAfterDiscount *float64     `bson:"priceAfterDiscount,omitempty" json:"priceAfterDiscount,omitempty"`
	Quantity           *int         `bson:"quantity,omitempty" json:"quantity,omitempty"`
	Colors             []ColorStock `bson:"colors,omitempty" json:"colors,omitempty"`
}

// Product is either flat (top-level price/quantity/colors) or sized
// (per-size price/quantity/colors), selected by SizesIsExist.
type Product struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string             `bson:"name" json:"name"`
	Description        string             `bson:"description,omitempty" json:"description,omitempty"`
	SizesIsExist       bool               `bson:"sizesIsExist" json:"sizesIsExist"`
	Price              float64            `bson:"price,omitempty" json:"price,omitempty"`
	PriceAfterDiscount *float64           `bson:"priceAfterDiscount,omitempty" json:"priceAfterDiscount,omitempty"`
	Quantity           *int               `bson:"quantity,omitempty" json:"quantity,omitempty"`
	Colors             []ColorStock       `bson:"colors,omitempty" json:"colors,omitempty"`
	Sizes              []SizeVariant      `bson:"sizes,omitempty" json:"sizes,omitempty"`
	Images             []string           `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// EffectivePrice is the price a cart item snapshots: the discounted price
// when present, the base price otherwise.
func (s SizeVariant) EffectivePrice() float64 {
	if s.PriceAfterDiscount != nil {
		return *s.PriceAfterDiscount
	}
	return s.Price
}

func (p *Product) EffectivePrice() float64 {
	if p.PriceAfterDiscount != nil {
		return *p.PriceAfterDiscount
	}
	return p.Price
}

// FindSize matches a size by name, case-insensitively. Returns nil when absent.
func (p *Product) FindSize(name string) *SizeVariant {
	for i := range p.Sizes {
		if strings.EqualFold(p.Sizes[i].Size, name) {
			return &p.Sizes[i]
		}
	}
	return nil
}

// FindColor matches a color in a list by name, case-insensitively.
func FindColor(colors []ColorStock, name string) *ColorStock {
	for i := range colors {
		if strings.EqualFold(colors[i].Color, name) {
			return &colors[i]
		}
	}
	return nil
}

// Clone returns a deep copy; the reconciliation engine mutates the copy and
// only persists it once every cart patch has been accepted.
func (p *Product) Clone() *Product {
	cp := *p
	cp.Colors = append([]ColorStock(nil), p.Colors...)
	cp.Images = append([]string(nil), p.Images...)
	if p.Quantity != nil {
		q := *p.Quantity
		cp.Quantity = &q
	}
	if p.PriceAfterDiscount != nil {
		d := *p.PriceAfterDiscount
		cp.PriceAfterDiscount = &d
	}
	cp.Sizes = make([]SizeVariant, len(p.Sizes))
	for i, s := range p.Sizes {
		cs := s
		cs.Colors = append([]ColorStock(nil), s.Colors...)
		if s.Quantity != nil {
			q := *s.Quantity
			cs.Quantity = &q
		}
		if s.PriceAfterDiscount != nil {
			d := *s.PriceAfterDiscount
			cs.PriceAfterDiscount = &d
		}
		cp.Sizes[i] = cs
	}
	return &cp
}
