package reconcile

import (
	"strings"
	"time"

	"github.com/omarwaleed-dev/souqra-backend-go/models"
)

// ApplyMutation applies a validated descriptor to a copy of the product and
// returns the copy. Color operations run before a size's (or the flat
// product's) own quantity field is considered: a populated color list is the
// sole stock authority and unsets the flat quantity.
func ApplyMutation(p *models.Product, d *MutationDescriptor) *models.Product {
	np := p.Clone()

	if d.SizesIsExist != p.SizesIsExist {
		if d.SizesIsExist {
			convertToSized(np, d)
		} else {
			convertToFlat(np, d)
		}
		np.UpdatedAt = time.Now()
		return np
	}

	if d.SizesIsExist {
		applySizeOps(np, d)
	} else {
		applyFlatOps(np, d)
	}
	np.UpdatedAt = time.Now()
	return np
}

// convertToSized wipes the flat representation entirely. No merge semantics:
// the added sizes are the whole new representation.
func convertToSized(np *models.Product, d *MutationDescriptor) {
	np.SizesIsExist = true
	np.Price = 0
	np.PriceAfterDiscount = nil
	np.Quantity = nil
	np.Colors = nil
	np.Sizes = nil
	for i := range d.AddSizes {
		np.Sizes = append(np.Sizes, newSizeVariant(&d.AddSizes[i]))
	}
}

// convertToFlat wipes sizes[] entirely and installs the flat fields.
func convertToFlat(np *models.Product, d *MutationDescriptor) {
	np.SizesIsExist = false
	np.Sizes = nil
	np.Price = *d.Price
	np.PriceAfterDiscount = d.PriceAfterDiscount
	np.Colors = nil
	for _, nc := range d.AddColors {
		np.Colors = append(np.Colors, models.ColorStock{Color: nc.Color, Quantity: nc.Quantity})
	}
	if len(np.Colors) > 0 {
		np.Quantity = nil
	} else {
		np.Quantity = d.Quantity
	}
}

func applySizeOps(np *models.Product, d *MutationDescriptor) {
	for _, name := range d.DeleteSizes {
		for i := range np.Sizes {
			if strings.EqualFold(np.Sizes[i].Size, name) {
				np.Sizes = append(np.Sizes[:i], np.Sizes[i+1:]...)
				break
			}
		}
	}

	for i := range d.UpdateSizes {
		u := &d.UpdateSizes[i]
		sv := np.FindSize(u.Size)
		if sv == nil {
			continue
		}
		if u.Price != nil {
			sv.Price = *u.Price
		}
		if u.PriceAfterDiscount != nil {
			sv.PriceAfterDiscount = u.PriceAfterDiscount
		}
		sv.Colors = applyColorOps(sv.Colors, u.AddColors, u.UpdateColors, u.DeleteColors)
		if len(sv.Colors) > 0 {
			sv.Quantity = nil
		} else if u.Quantity != nil {
			sv.Quantity = u.Quantity
		}
		if u.NewSize != nil {
			sv.Size = *u.NewSize
		}
	}

	for i := range d.AddSizes {
		np.Sizes = append(np.Sizes, newSizeVariant(&d.AddSizes[i]))
	}
}

func applyFlatOps(np *models.Product, d *MutationDescriptor) {
	if d.Price != nil {
		np.Price = *d.Price
	}
	if d.PriceAfterDiscount != nil {
		np.PriceAfterDiscount = d.PriceAfterDiscount
	}
	np.Colors = applyColorOps(np.Colors, d.AddColors, d.UpdateColors, d.DeleteColors)
	if len(np.Colors) > 0 {
		np.Quantity = nil
	} else if d.Quantity != nil {
		np.Quantity = d.Quantity
	}
}

func applyColorOps(colors []models.ColorStock, adds []NewColor, updates []ColorUpdate, deletes []string) []models.ColorStock {
	for _, name := range deletes {
		for i := range colors {
			if strings.EqualFold(colors[i].Color, name) {
				colors = append(colors[:i], colors[i+1:]...)
				break
			}
		}
	}
	for i := range updates {
		u := &updates[i]
		cs := models.FindColor(colors, u.Color)
		if cs == nil {
			continue
		}
		if u.Quantity != nil {
			cs.Quantity = *u.Quantity
		}
		if u.NewColor != nil {
			cs.Color = *u.NewColor
		}
	}
	for _, nc := range adds {
		colors = append(colors, models.ColorStock{Color: nc.Color, Quantity: nc.Quantity})
	}
	return colors
}

func newSizeVariant(ns *NewSize) models.SizeVariant {
	sv := models.SizeVariant{
		Size:               ns.Size,
		Price:              ns.Price,
		PriceAfterDiscount: ns.PriceAfterDiscount,
	}
	for _, nc := range ns.Colors {
		sv.Colors = append(sv.Colors, models.ColorStock{Color: nc.Color, Quantity: nc.Quantity})
	}
	if len(sv.Colors) == 0 {
		sv.Quantity = ns.Quantity
	}
	return sv
}
