package reconcile

import (
	"fmt"
	"strings"

	"github.com/omarwaleed-dev/souqra-backend-go/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// itemPatch is one cart-item rule: which items it touches and how. apply
// reports whether the item actually changed, so untouched carts never enter
// the expected-update accounting.
type itemPatch struct {
	match func(*models.CartItem) bool
	apply func(*models.CartItem) bool
}

// opGroup is one accounting unit of the reconciliation: all patches caused
// by a single size/color operation. The label names the operation in
// rollback errors.
type opGroup struct {
	label   string
	patches []itemPatch
}

// BuildPlan turns a validated descriptor into the ordered patch plan for
// cart items referencing the product. Groups run in the fixed phase order
// deletions -> updates -> additions; mode conversions retire the old
// representation first and then treat the new one as additions.
func BuildPlan(old, next *models.Product, d *MutationDescriptor) []opGroup {
	b := planBuilder{pid: old.ID}

	switch {
	case d.SizesIsExist && !old.SizesIsExist:
		b.convertToSized(next, d)
	case !d.SizesIsExist && old.SizesIsExist:
		b.convertToFlat(next, d)
	case d.SizesIsExist:
		b.sizeOps(old, next, d)
	default:
		b.flatOps(old, next, d)
	}
	return b.groups
}

type planBuilder struct {
	pid    primitive.ObjectID
	groups []opGroup
}

func (b *planBuilder) add(label string, patches ...itemPatch) {
	b.groups = append(b.groups, opGroup{label: label, patches: patches})
}

// ---- matchers ----

func (b *planBuilder) matchSize(size string) func(*models.CartItem) bool {
	pid := b.pid
	return func(it *models.CartItem) bool {
		return it.Product == pid && strings.EqualFold(it.Size, size)
	}
}

func (b *planBuilder) matchSizeColor(size, color string) func(*models.CartItem) bool {
	pid := b.pid
	return func(it *models.CartItem) bool {
		return it.Product == pid && strings.EqualFold(it.Size, size) && strings.EqualFold(it.Color, color)
	}
}

func (b *planBuilder) matchAnySized() func(*models.CartItem) bool {
	pid := b.pid
	return func(it *models.CartItem) bool {
		return it.Product == pid && it.Size != ""
	}
}

// ---- patch actions ----

func markUnavailable(it *models.CartItem) bool {
	if !it.IsAvailable {
		return false
	}
	it.IsAvailable = false
	return true
}

// reactivate makes a matching item purchasable again: availability restored,
// quantity clamped to the new stock (nil stock = no clamp), snapshot price
// refreshed to the new effective price.
func reactivate(price float64, stock *int) func(*models.CartItem) bool {
	return func(it *models.CartItem) bool {
		changed := false
		if !it.IsAvailable {
			it.IsAvailable = true
			changed = true
		}
		if stock != nil && it.Quantity > *stock {
			it.Quantity = *stock
			changed = true
		}
		if it.Price != price {
			it.Price = price
			changed = true
		}
		return changed
	}
}

// clampQty reduces held quantity to the new stock; it never raises it and
// never touches unavailable items.
func clampQty(stock int) func(*models.CartItem) bool {
	return func(it *models.CartItem) bool {
		if !it.IsAvailable || it.Quantity <= stock {
			return false
		}
		it.Quantity = stock
		return true
	}
}

func setPrice(price float64) func(*models.CartItem) bool {
	return func(it *models.CartItem) bool {
		if !it.IsAvailable || it.Price == price {
			return false
		}
		it.Price = price
		return true
	}
}

// resolveStock maps a cart item's color selection onto the new stock of a
// size. Items whose selection no longer resolves (color gone, or color set
// on a colorless size) cannot be reactivated.
func resolveStock(sv *models.SizeVariant, color string) (*int, bool) {
	if len(sv.Colors) > 0 {
		cs := models.FindColor(sv.Colors, color)
		if color == "" || cs == nil {
			return nil, false
		}
		q := cs.Quantity
		return &q, true
	}
	if color != "" {
		return nil, false
	}
	return sv.Quantity, true
}

func resolveFlatStock(p *models.Product, color string) (*int, bool) {
	if len(p.Colors) > 0 {
		cs := models.FindColor(p.Colors, color)
		if color == "" || cs == nil {
			return nil, false
		}
		q := cs.Quantity
		return &q, true
	}
	if color != "" {
		return nil, false
	}
	return p.Quantity, true
}

// reactivateForSize reactivates items naming a size that (re)appeared,
// clamped per item color against the new variant.
func (b *planBuilder) reactivateForSize(sv *models.SizeVariant) itemPatch {
	match := b.matchSize(sv.Size)
	variant := *sv
	return itemPatch{
		match: match,
		apply: func(it *models.CartItem) bool {
			stock, ok := resolveStock(&variant, it.Color)
			if !ok {
				return false
			}
			return reactivate(variant.EffectivePrice(), stock)(it)
		},
	}
}

// ---- sized-mode plan ----

func (b *planBuilder) sizeOps(old, next *models.Product, d *MutationDescriptor) {
	// Phase 1: deletions.
	for _, name := range d.DeleteSizes {
		b.add(fmt.Sprintf("deleting size %q", name),
			itemPatch{match: b.matchSize(name), apply: markUnavailable})
	}

	// Phase 2: updates, in request order.
	for i := range d.UpdateSizes {
		u := &d.UpdateSizes[i]
		oldName := u.Size
		newName := oldName
		if u.NewSize != nil {
			newName = *u.NewSize
		}
		newSv := next.FindSize(newName)
		if newSv == nil {
			continue
		}

		for _, color := range u.DeleteColors {
			b.add(fmt.Sprintf("deleting color %q of size %q", color, oldName),
				itemPatch{match: b.matchSizeColor(oldName, color), apply: markUnavailable})
		}

		for j := range u.UpdateColors {
			cu := &u.UpdateColors[j]
			if cu.NewColor != nil {
				target := models.FindColor(newSv.Colors, *cu.NewColor)
				var stock *int
				if target != nil {
					q := target.Quantity
					stock = &q
				}
				b.add(fmt.Sprintf("renaming color %q to %q of size %q", cu.Color, *cu.NewColor, oldName),
					itemPatch{match: b.matchSizeColor(oldName, cu.Color), apply: markUnavailable},
					itemPatch{match: b.matchSizeColor(oldName, *cu.NewColor), apply: reactivate(newSv.EffectivePrice(), stock)})
			} else if cu.Quantity != nil {
				b.add(fmt.Sprintf("updating stock of color %q of size %q", cu.Color, oldName),
					itemPatch{match: b.matchSizeColor(oldName, cu.Color), apply: clampQty(*cu.Quantity)})
			}
		}

		if u.NewSize != nil {
			b.add(fmt.Sprintf("renaming size %q to %q", oldName, newName),
				itemPatch{match: b.matchSize(oldName), apply: markUnavailable},
				b.reactivateForSize(newSv))
		}

		if u.Price != nil || u.PriceAfterDiscount != nil {
			b.add(fmt.Sprintf("updating price of size %q", oldName),
				itemPatch{match: b.matchSize(newName), apply: setPrice(newSv.EffectivePrice())})
		}

		if u.Quantity != nil && len(newSv.Colors) == 0 {
			b.add(fmt.Sprintf("updating stock of size %q", oldName),
				itemPatch{match: b.matchSize(newName), apply: clampQty(*u.Quantity)})
		}

		if len(u.AddColors) > 0 {
			// Colors become the stock authority of the size; a colorless
			// selection no longer resolves.
			if oldSv := old.FindSize(oldName); oldSv != nil && len(oldSv.Colors) == 0 {
				b.add(fmt.Sprintf("adding colors to size %q: retiring colorless selections", oldName),
					itemPatch{match: b.matchSizeColor(newName, ""), apply: markUnavailable})
			}
			for j := range u.AddColors {
				nc := &u.AddColors[j]
				cs := models.FindColor(newSv.Colors, nc.Color)
				if cs == nil {
					continue
				}
				q := cs.Quantity
				b.add(fmt.Sprintf("adding color %q to size %q", nc.Color, oldName),
					itemPatch{match: b.matchSizeColor(newName, nc.Color), apply: reactivate(newSv.EffectivePrice(), &q)})
			}
		}
	}

	// Phase 3: additions.
	for i := range d.AddSizes {
		ns := &d.AddSizes[i]
		sv := next.FindSize(ns.Size)
		if sv == nil {
			continue
		}
		b.add(fmt.Sprintf("adding size %q", ns.Size), b.reactivateForSize(sv))
	}
}

// ---- flat-mode plan ----

func (b *planBuilder) flatOps(old, next *models.Product, d *MutationDescriptor) {
	for _, color := range d.DeleteColors {
		b.add(fmt.Sprintf("deleting color %q", color),
			itemPatch{match: b.matchSizeColor("", color), apply: markUnavailable})
	}

	for i := range d.UpdateColors {
		cu := &d.UpdateColors[i]
		if cu.NewColor != nil {
			target := models.FindColor(next.Colors, *cu.NewColor)
			var stock *int
			if target != nil {
				q := target.Quantity
				stock = &q
			}
			b.add(fmt.Sprintf("renaming color %q to %q", cu.Color, *cu.NewColor),
				itemPatch{match: b.matchSizeColor("", cu.Color), apply: markUnavailable},
				itemPatch{match: b.matchSizeColor("", *cu.NewColor), apply: reactivate(next.EffectivePrice(), stock)})
		} else if cu.Quantity != nil {
			b.add(fmt.Sprintf("updating stock of color %q", cu.Color),
				itemPatch{match: b.matchSizeColor("", cu.Color), apply: clampQty(*cu.Quantity)})
		}
	}

	if d.Price != nil || d.PriceAfterDiscount != nil {
		b.add("updating price",
			itemPatch{match: b.matchSize(""), apply: setPrice(next.EffectivePrice())})
	}

	if d.Quantity != nil && len(next.Colors) == 0 {
		b.add("updating stock",
			itemPatch{match: b.matchSizeColor("", ""), apply: clampQty(*d.Quantity)})
	}

	if len(d.AddColors) > 0 && len(old.Colors) == 0 {
		// Colors become the stock authority; a colorless selection no
		// longer resolves.
		b.add("adding colors: retiring colorless selections",
			itemPatch{match: b.matchSizeColor("", ""), apply: markUnavailable})
	}
	for i := range d.AddColors {
		nc := &d.AddColors[i]
		cs := models.FindColor(next.Colors, nc.Color)
		if cs == nil {
			continue
		}
		q := cs.Quantity
		stock := &q
		b.add(fmt.Sprintf("adding color %q", nc.Color),
			itemPatch{match: b.matchSizeColor("", nc.Color), apply: reactivate(next.EffectivePrice(), stock)})
	}
}

// ---- mode conversions ----

func (b *planBuilder) convertToSized(next *models.Product, d *MutationDescriptor) {
	b.add("converting to sized: retiring flat selections",
		itemPatch{match: b.matchSize(""), apply: markUnavailable})

	for i := range d.AddSizes {
		ns := &d.AddSizes[i]
		sv := next.FindSize(ns.Size)
		if sv == nil {
			continue
		}
		b.add(fmt.Sprintf("adding size %q", ns.Size), b.reactivateForSize(sv))
	}
}

func (b *planBuilder) convertToFlat(next *models.Product, d *MutationDescriptor) {
	b.add("converting to flat: retiring sized selections",
		itemPatch{match: b.matchAnySized(), apply: markUnavailable})

	flat := next
	b.add("installing flat stock", itemPatch{
		match: b.matchSize(""),
		apply: func(it *models.CartItem) bool {
			stock, ok := resolveFlatStock(flat, it.Color)
			if !ok {
				return markUnavailable(it)
			}
			return reactivate(flat.EffectivePrice(), stock)(it)
		},
	})
}
