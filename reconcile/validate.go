package reconcile

import (
	"strings"

	"github.com/omarwaleed-dev/souqra-backend-go/models"
)

// Validate checks a mutation descriptor against the current product state.
// It returns FieldErrors on any violation; the engine opens no transaction
// when validation fails. Validation of one size or color stops at its first
// structural conflict, remaining sizes are still checked.
func Validate(p *models.Product, d *MutationDescriptor) error {
	fe := FieldErrors{}

	if d.Empty() {
		fe.add("general", "request contains no changes")
		return fe
	}

	// Mode consistency: the flag gates which field families are legal.
	if d.SizesIsExist && d.hasFlatOps() {
		fe.add("sizesIsExist", "price, quantity and top-level color fields are not allowed on a sized product")
	}
	if !d.SizesIsExist && d.hasSizeOps() {
		fe.add("sizesIsExist", "size operations require sizesIsExist to be true")
	}
	if len(fe) > 0 {
		return fe
	}

	switch {
	case d.SizesIsExist && !p.SizesIsExist:
		validateConvertToSized(fe, d)
	case !d.SizesIsExist && p.SizesIsExist:
		validateConvertToFlat(fe, d)
	case d.SizesIsExist:
		validateSizeOps(fe, p, d)
	default:
		validateFlatOps(fe, p, d)
	}

	if len(fe) > 0 {
		return fe
	}
	return nil
}

func validateConvertToSized(fe FieldErrors, d *MutationDescriptor) {
	if len(d.UpdateSizes) > 0 || len(d.DeleteSizes) > 0 {
		fe.add("updateSizes", "a flat product has no sizes to update or delete; converting to sized accepts addSizes only")
		return
	}
	if len(d.AddSizes) == 0 {
		fe.add("addSizes", "converting to sized requires at least one size")
		return
	}
	validateAddedSizes(fe, d.AddSizes, nil)
}

func validateConvertToFlat(fe FieldErrors, d *MutationDescriptor) {
	if len(d.UpdateColors) > 0 || len(d.DeleteColors) > 0 {
		fe.add("updateColors", "a sized product has no top-level colors; converting to flat accepts addColors only")
		return
	}
	if d.Price == nil {
		fe.add("price", "converting to flat requires a price")
		return
	}
	if *d.Price <= 0 {
		fe.add("price", "price must be greater than zero")
		return
	}
	if d.PriceAfterDiscount != nil && *d.PriceAfterDiscount >= *d.Price {
		fe.add("priceAfterDiscount", "discounted price %g must be strictly below price %g", *d.PriceAfterDiscount, *d.Price)
		return
	}
	if d.Quantity != nil && *d.Quantity < 0 {
		fe.add("quantity", "quantity must not be negative")
		return
	}
	if d.Quantity != nil && len(d.AddColors) > 0 {
		fe.add("quantity", "colors are the stock authority; a flat quantity cannot be combined with colors")
		return
	}
	if d.Quantity == nil && len(d.AddColors) == 0 {
		fe.add("quantity", "converting to flat requires a quantity or a color list")
		return
	}
	validateNewColors(fe, "addColors", nil, d.AddColors)
}

func validateSizeOps(fe FieldErrors, p *models.Product, d *MutationDescriptor) {
	deleted := map[string]bool{}
	for _, name := range d.DeleteSizes {
		key := strings.ToLower(name)
		if deleted[key] {
			fe.add("deleteSizes", "size %q listed twice", name)
			continue
		}
		deleted[key] = true
		if p.FindSize(name) == nil {
			fe.add("deleteSizes", "size %q does not exist", name)
		}
	}

	// Names occupied after this request: current names minus deletes, plus
	// rename targets and additions. Used to reject collisions.
	taken := map[string]bool{}
	for _, sv := range p.Sizes {
		if !deleted[strings.ToLower(sv.Size)] {
			taken[strings.ToLower(sv.Size)] = true
		}
	}

	seenUpdates := map[string]bool{}
	for i := range d.UpdateSizes {
		u := &d.UpdateSizes[i]
		key := "updateSizes." + u.Size
		lower := strings.ToLower(u.Size)
		if seenUpdates[lower] {
			fe.add(key, "size %q updated twice in one request", u.Size)
			continue
		}
		seenUpdates[lower] = true
		if deleted[lower] {
			fe.add(key, "size %q is deleted in the same request", u.Size)
			continue
		}
		sv := p.FindSize(u.Size)
		if sv == nil {
			fe.add(key, "size %q does not exist", u.Size)
			continue
		}
		validateSizeUpdate(fe, key, sv, u, taken)
	}

	validateAddedSizes(fe, d.AddSizes, taken)
}

// validateSizeUpdate checks one update op and stops at its first conflict.
func validateSizeUpdate(fe FieldErrors, key string, sv *models.SizeVariant, u *SizeUpdate, taken map[string]bool) {
	if !u.changed() {
		fe.add(key, "update changes nothing; omit unchanged sizes")
		return
	}

	if u.NewSize != nil {
		if strings.EqualFold(*u.NewSize, sv.Size) {
			fe.add(key+".newSize", "size name is unchanged")
			return
		}
		lower := strings.ToLower(*u.NewSize)
		if taken[lower] {
			fe.add(key+".newSize", "size name %q is already in use", *u.NewSize)
			return
		}
		delete(taken, strings.ToLower(sv.Size))
		taken[lower] = true
	}

	if !validatePriceChange(fe, key, sv.Price, sv.PriceAfterDiscount, u.Price, u.PriceAfterDiscount) {
		return
	}

	if u.Quantity != nil && sv.Quantity != nil && *u.Quantity == *sv.Quantity &&
		len(u.AddColors) == 0 && len(u.UpdateColors) == 0 && len(u.DeleteColors) == 0 {
		fe.add(key+".quantity", "quantity is unchanged")
		return
	}

	validateColorOps(fe, key, sv.Colors, u.AddColors, u.UpdateColors, u.DeleteColors, u.Quantity)
}

func validateAddedSizes(fe FieldErrors, adds []NewSize, taken map[string]bool) {
	if taken == nil {
		taken = map[string]bool{}
	}
	for i := range adds {
		ns := &adds[i]
		key := "addSizes." + ns.Size
		lower := strings.ToLower(ns.Size)
		if taken[lower] {
			fe.add(key, "size name %q is already in use", ns.Size)
			continue
		}
		taken[lower] = true
		if ns.Price <= 0 {
			fe.add(key+".price", "price must be greater than zero")
			continue
		}
		if ns.PriceAfterDiscount != nil && *ns.PriceAfterDiscount >= ns.Price {
			fe.add(key+".priceAfterDiscount", "discounted price %g must be strictly below price %g", *ns.PriceAfterDiscount, ns.Price)
			continue
		}
		if ns.Quantity != nil && len(ns.Colors) > 0 {
			fe.add(key+".quantity", "colors are the stock authority; a flat quantity cannot be combined with colors")
			continue
		}
		if ns.Quantity != nil && *ns.Quantity < 0 {
			fe.add(key+".quantity", "quantity must not be negative")
			continue
		}
		validateNewColors(fe, key+".colors", nil, ns.Colors)
	}
}

func validateFlatOps(fe FieldErrors, p *models.Product, d *MutationDescriptor) {
	if !validatePriceChange(fe, "flat", p.Price, p.PriceAfterDiscount, d.Price, d.PriceAfterDiscount) {
		return
	}
	if d.Quantity != nil && p.Quantity != nil && *d.Quantity == *p.Quantity &&
		len(d.AddColors) == 0 && len(d.UpdateColors) == 0 && len(d.DeleteColors) == 0 &&
		d.Price == nil && d.PriceAfterDiscount == nil {
		fe.add("quantity", "quantity is unchanged")
		return
	}
	validateColorOps(fe, "colors", p.Colors, d.AddColors, d.UpdateColors, d.DeleteColors, d.Quantity)
}

// validatePriceChange enforces the price/discount numeric rules shared by
// flat products and size variants. The field keys are prefixed so the error
// names the size it belongs to. Returns false when a violation was recorded.
func validatePriceChange(fe FieldErrors, key string, curPrice float64, curPAD, newPrice, newPAD *float64) bool {
	priceKey, padKey := "price", "priceAfterDiscount"
	if key != "flat" {
		priceKey, padKey = key+".price", key+".priceAfterDiscount"
	}

	if newPrice != nil {
		if *newPrice <= 0 {
			fe.add(priceKey, "price must be greater than zero")
			return false
		}
		if *newPrice == curPrice {
			fe.add(priceKey, "price is unchanged")
			return false
		}
	}
	if newPAD != nil {
		if *newPAD <= 0 {
			fe.add(padKey, "discounted price must be greater than zero")
			return false
		}
		if curPAD != nil && *newPAD == *curPAD {
			fe.add(padKey, "discounted price is unchanged")
			return false
		}
	}

	effPrice := curPrice
	if newPrice != nil {
		effPrice = *newPrice
	}
	effPAD := curPAD
	if newPAD != nil {
		effPAD = newPAD
	}
	if effPAD != nil && *effPAD >= effPrice {
		if newPAD == nil {
			// The stored discount would no longer be below the new price;
			// the caller has to resolve the ambiguity in the same request.
			fe.add(priceKey, "price %g conflicts with the stored discounted price %g; update priceAfterDiscount as well", effPrice, *effPAD)
		} else {
			fe.add(padKey, "discounted price %g must be strictly below price %g", *effPAD, effPrice)
		}
		return false
	}
	return true
}

// validateColorOps checks the color operations of one scope (a size, or the
// flat product) together with that scope's flat quantity field.
func validateColorOps(fe FieldErrors, key string, existing []models.ColorStock, adds []NewColor, updates []ColorUpdate, deletes []string, flatQty *int) {
	if flatQty != nil && *flatQty < 0 {
		fe.add(key+".quantity", "quantity must not be negative")
		return
	}
	if flatQty != nil && (len(adds) > 0 || len(updates) > 0) {
		fe.add(key+".quantity", "colors are the stock authority; a flat quantity cannot be combined with color operations")
		return
	}

	deleted := map[string]bool{}
	for _, name := range deletes {
		lower := strings.ToLower(name)
		if deleted[lower] {
			fe.add(key+".deleteColors", "color %q listed twice", name)
			return
		}
		deleted[lower] = true
		if models.FindColor(existing, name) == nil {
			fe.add(key+".deleteColors", "color %q does not exist", name)
			return
		}
	}

	remaining := 0
	for _, cs := range existing {
		if !deleted[strings.ToLower(cs.Color)] {
			remaining++
		}
	}
	if len(existing) > 0 && remaining == 0 && len(adds) == 0 && flatQty == nil {
		fe.add(key+".quantity", "deleting every color requires a replacement quantity in the same request")
		return
	}
	if flatQty != nil && remaining > 0 {
		fe.add(key+".quantity", "colors still exist; delete them before setting a flat quantity")
		return
	}

	taken := map[string]bool{}
	for _, cs := range existing {
		if !deleted[strings.ToLower(cs.Color)] {
			taken[strings.ToLower(cs.Color)] = true
		}
	}

	seenUpdates := map[string]bool{}
	for i := range updates {
		u := &updates[i]
		lower := strings.ToLower(u.Color)
		if seenUpdates[lower] {
			fe.add(key+".updateColors", "color %q updated twice in one request", u.Color)
			return
		}
		seenUpdates[lower] = true
		if deleted[lower] {
			fe.add(key+".updateColors", "color %q is deleted in the same request", u.Color)
			return
		}
		cur := models.FindColor(existing, u.Color)
		if cur == nil {
			fe.add(key+".updateColors", "color %q does not exist", u.Color)
			return
		}
		if !u.changed() {
			fe.add(key+".updateColors", "update of color %q changes nothing", u.Color)
			return
		}
		if u.Quantity != nil && *u.Quantity < 0 {
			fe.add(key+".updateColors", "quantity of color %q must not be negative", u.Color)
			return
		}
		if u.Quantity != nil && u.NewColor == nil && *u.Quantity == cur.Quantity {
			fe.add(key+".updateColors", "quantity of color %q is unchanged", u.Color)
			return
		}
		if u.NewColor != nil {
			if strings.EqualFold(*u.NewColor, u.Color) {
				fe.add(key+".updateColors", "color name %q is unchanged", u.Color)
				return
			}
			newLower := strings.ToLower(*u.NewColor)
			if taken[newLower] {
				fe.add(key+".updateColors", "color name %q is already in use", *u.NewColor)
				return
			}
			delete(taken, lower)
			taken[newLower] = true
		}
	}

	validateNewColors(fe, key+".addColors", taken, adds)
}

func validateNewColors(fe FieldErrors, key string, taken map[string]bool, adds []NewColor) {
	if taken == nil {
		taken = map[string]bool{}
	}
	for i := range adds {
		nc := &adds[i]
		lower := strings.ToLower(nc.Color)
		if taken[lower] {
			fe.add(key, "color name %q is already in use", nc.Color)
			return
		}
		taken[lower] = true
		if nc.Quantity < 0 {
			fe.add(key, "quantity of color %q must not be negative", nc.Color)
			return
		}
	}
}
