// Package reconcile implements the product-to-cart consistency protocol:
// admin mutations to a product's sizes, colors, prices and quantities are
// validated, applied to the product, and propagated to every cart document
// holding a stale denormalized snapshot of the old state, all inside one
// multi-document transaction.
package reconcile

// NewColor adds a color with its stock to a product or size.
type NewColor struct {
	Color    string `json:"color" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// ColorUpdate renames a color and/or changes its stock. Fields left nil are
// untouched; sending a value equal to the stored one is rejected.
type ColorUpdate struct {
	Color    string  `json:"color" validate:"required"`
	NewColor *string `json:"newColor,omitempty"`
	Quantity *int    `json:"quantity,omitempty" validate:"omitempty,gte=0"`
}

// NewSize adds a size variant. Quantity and Colors are mutually exclusive:
// when colors are present they are the sole stock authority.
type NewSize struct {
	Size               string     `json:"size" validate:"required"`
	Price              float64    `json:"price" validate:"gt=0"`
	PriceAfterDiscount *float64   `json:"priceAfterDiscount,omitempty" validate:"omitempty,gt=0"`
	Quantity           *int       `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Colors             []NewColor `json:"colors,omitempty" validate:"dive"`
}

// SizeUpdate patches one existing size: rename, price change, stock change
// and nested color operations.
type SizeUpdate struct {
	Size               string        `json:"size" validate:"required"`
	NewSize            *string       `json:"newSize,omitempty"`
	Price              *float64      `json:"price,omitempty" validate:"omitempty,gt=0"`
	PriceAfterDiscount *float64      `json:"priceAfterDiscount,omitempty" validate:"omitempty,gt=0"`
	Quantity           *int          `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	AddColors          []NewColor    `json:"addColors,omitempty" validate:"dive"`
	UpdateColors       []ColorUpdate `json:"updateColors,omitempty" validate:"dive"`
	DeleteColors       []string      `json:"deleteColors,omitempty"`
}

// MutationDescriptor is the body of a product mutation request.
// SizesIsExist names the TARGET mode: when it differs from the stored
// product's mode the request is a destructive mode conversion. Size
// operations are only legal when it is true, the flat scalar/color fields
// only when it is false.
type MutationDescriptor struct {
	SizesIsExist bool `json:"sizesIsExist"`

	AddSizes    []NewSize    `json:"addSizes,omitempty" validate:"dive"`
	UpdateSizes []SizeUpdate `json:"updateSizes,omitempty" validate:"dive"`
	DeleteSizes []string     `json:"deleteSizes,omitempty"`

	Price              *float64      `json:"price,omitempty" validate:"omitempty,gt=0"`
	PriceAfterDiscount *float64      `json:"priceAfterDiscount,omitempty" validate:"omitempty,gt=0"`
	Quantity           *int          `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	AddColors          []NewColor    `json:"addColors,omitempty" validate:"dive"`
	UpdateColors       []ColorUpdate `json:"updateColors,omitempty" validate:"dive"`
	DeleteColors       []string      `json:"deleteColors,omitempty"`
}

func (d *MutationDescriptor) hasSizeOps() bool {
	return len(d.AddSizes) > 0 || len(d.UpdateSizes) > 0 || len(d.DeleteSizes) > 0
}

func (d *MutationDescriptor) hasFlatOps() bool {
	return d.Price != nil || d.PriceAfterDiscount != nil || d.Quantity != nil ||
		len(d.AddColors) > 0 || len(d.UpdateColors) > 0 || len(d.DeleteColors) > 0
}

// Empty reports a descriptor carrying no operation at all.
func (d *MutationDescriptor) Empty() bool {
	return !d.hasSizeOps() && !d.hasFlatOps()
}

// changed reports whether an update op actually changes anything.
func (u *SizeUpdate) changed() bool {
	return u.NewSize != nil || u.Price != nil || u.PriceAfterDiscount != nil ||
		u.Quantity != nil || len(u.AddColors) > 0 || len(u.UpdateColors) > 0 ||
		len(u.DeleteColors) > 0
}

func (u *ColorUpdate) changed() bool {
	return u.NewColor != nil || u.Quantity != nil
}
