package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/omarwaleed-dev/souqra-backend-go/models"
	"github.com/omarwaleed-dev/souqra-backend-go/reconcile"
)

// fakeStore keeps products and carts in memory and mimics the transactional
// contract: writes issued inside InTransaction are discarded when the
// callback errors.
type fakeStore struct {
	product *models.Product
	carts   []models.Cart

	txnCalls     int
	replaceCalls int

	// failReplaceAt makes the Nth ReplaceCartItems call fail (1-based).
	failReplaceAt int
	// misreportReplace applies the next write but reports zero modified
	// documents, as a raced store would.
	misreportReplace bool

	snapProduct *models.Product
	snapCarts   []models.Cart
}

func cloneCarts(carts []models.Cart) []models.Cart {
	out := make([]models.Cart, len(carts))
	for i, c := range carts {
		cc := c
		cc.CartItems = append([]models.CartItem(nil), c.CartItems...)
		if c.TotalPriceAfterDiscount != nil {
			v := *c.TotalPriceAfterDiscount
			cc.TotalPriceAfterDiscount = &v
		}
		out[i] = cc
	}
	return out
}

func (s *fakeStore) FindProduct(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	if s.product == nil || s.product.ID != id {
		return nil, reconcile.ErrProductNotFound
	}
	return s.product.Clone(), nil
}

func (s *fakeStore) SaveProduct(_ context.Context, p *models.Product) error {
	s.product = p.Clone()
	return nil
}

func (s *fakeStore) CartsReferencing(_ context.Context, productID primitive.ObjectID) ([]models.Cart, error) {
	var out []models.Cart
	for _, c := range s.carts {
		for _, it := range c.CartItems {
			if it.Product == productID {
				out = append(out, c)
				break
			}
		}
	}
	return cloneCarts(out), nil
}

func (s *fakeStore) ReplaceCartItems(_ context.Context, cartID primitive.ObjectID, items []models.CartItem) (int64, error) {
	s.replaceCalls++
	if s.failReplaceAt > 0 && s.replaceCalls == s.failReplaceAt {
		return 0, errors.New("connection reset")
	}
	for i := range s.carts {
		if s.carts[i].ID == cartID {
			s.carts[i].CartItems = append([]models.CartItem(nil), items...)
			if s.misreportReplace {
				s.misreportReplace = false
				return 0, nil
			}
			return 1, nil
		}
	}
	return 0, nil
}

func (s *fakeStore) SetCartTotals(_ context.Context, cartID primitive.ObjectID, total float64) (int64, error) {
	for i := range s.carts {
		if s.carts[i].ID == cartID {
			s.carts[i].TotalCartPrice = total
			s.carts[i].TotalPriceAfterDiscount = nil
			return 1, nil
		}
	}
	return 0, nil
}

func (s *fakeStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txnCalls++
	s.snapProduct = s.product.Clone()
	s.snapCarts = cloneCarts(s.carts)
	if err := fn(ctx); err != nil {
		s.product = s.snapProduct
		s.carts = s.snapCarts
		return err
	}
	return nil
}

func newCart(items ...models.CartItem) models.Cart {
	c := models.Cart{
		ID:        primitive.NewObjectID(),
		UserID:    primitive.NewObjectID(),
		CartItems: items,
	}
	c.RecomputeTotal()
	return c
}

func availableItem(product primitive.ObjectID, size, color string, price float64, qty int) models.CartItem {
	return models.CartItem{Product: product, Size: size, Color: color, Price: price, Quantity: qty, IsAvailable: true}
}

func unavailableItem(product primitive.ObjectID, size, color string, price float64, qty int) models.CartItem {
	return models.CartItem{Product: product, Size: size, Color: color, Price: price, Quantity: qty}
}

func assertTotalsInvariant(t *testing.T, carts []models.Cart) {
	t.Helper()
	for _, c := range carts {
		var want float64
		for _, it := range c.CartItems {
			if it.IsAvailable {
				want += float64(it.Quantity) * it.Price
			}
		}
		assert.Equal(t, want, c.TotalCartPrice, "cart %s total out of sync", c.ID.Hex())

		// recomputing again must not move the total
		again := c
		again.CartItems = append([]models.CartItem(nil), c.CartItems...)
		again.RecomputeTotal()
		assert.Equal(t, c.TotalCartPrice, again.TotalCartPrice)
	}
}

func TestEngine_ReduceQuantityClamps(t *testing.T) {
	p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
	store := &fakeStore{
		product: p,
		carts:   []models.Cart{newCart(availableItem(p.ID, "M", "", 20, 8))},
	}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{
		SizesIsExist: true,
		UpdateSizes:  []reconcile.SizeUpdate{{Size: "M", Quantity: ip(5)}},
	}
	updated, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)

	require.NotNil(t, updated.FindSize("M").Quantity)
	assert.Equal(t, 5, *updated.FindSize("M").Quantity)

	item := store.carts[0].CartItems[0]
	assert.True(t, item.IsAvailable)
	assert.Equal(t, 5, item.Quantity)
	assert.Equal(t, 20.0, item.Price)
	assert.Equal(t, 100.0, store.carts[0].TotalCartPrice)
	assertTotalsInvariant(t, store.carts)
}

func TestEngine_QuantityNeverRaised(t *testing.T) {
	p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
	store := &fakeStore{
		product: p,
		carts:   []models.Cart{newCart(availableItem(p.ID, "M", "", 20, 2))},
	}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{
		SizesIsExist: true,
		UpdateSizes:  []reconcile.SizeUpdate{{Size: "M", Quantity: ip(50)}},
	}
	_, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)

	assert.Equal(t, 2, store.carts[0].CartItems[0].Quantity)
}

func TestEngine_DeleteSizeMarksUnavailable(t *testing.T) {
	p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
	store := &fakeStore{
		product: p,
		carts:   []models.Cart{newCart(availableItem(p.ID, "M", "", 20, 8))},
	}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{SizesIsExist: true, DeleteSizes: []string{"M"}}
	updated, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)
	assert.Empty(t, updated.Sizes)

	item := store.carts[0].CartItems[0]
	assert.False(t, item.IsAvailable)
	assert.Equal(t, 8, item.Quantity, "quantity preserved for potential restock")
	assert.Equal(t, 20.0, item.Price, "price preserved for potential restock")
	assert.Equal(t, 0.0, store.carts[0].TotalCartPrice)
	assertTotalsInvariant(t, store.carts)
}

func TestEngine_DeleteFlatColorMarksUnavailable(t *testing.T) {
	p := flatProduct(10, nil, models.ColorStock{Color: "#ff0000", Quantity: 3})
	store := &fakeStore{
		product: p,
		carts:   []models.Cart{newCart(availableItem(p.ID, "", "#ff0000", 10, 3))},
	}
	engine := reconcile.NewEngine(store, nil)

	// deleting the only color requires a replacement flat quantity
	d := &reconcile.MutationDescriptor{DeleteColors: []string{"#ff0000"}, Quantity: ip(5)}
	updated, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)
	assert.Empty(t, updated.Colors)

	item := store.carts[0].CartItems[0]
	assert.False(t, item.IsAvailable)
	assert.Equal(t, 0.0, store.carts[0].TotalCartPrice)
	assertTotalsInvariant(t, store.carts)
}

func TestEngine_RenameSizeSwapsAvailability(t *testing.T) {
	p := sizedProduct(models.SizeVariant{Size: "A", Price: 20, Quantity: ip(10)})
	cart := newCart(
		availableItem(p.ID, "A", "", 20, 8),
		unavailableItem(p.ID, "B", "", 18, 9),
	)
	store := &fakeStore{product: p, carts: []models.Cart{cart}}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{
		SizesIsExist: true,
		UpdateSizes:  []reconcile.SizeUpdate{{Size: "A", NewSize: sp("B")}},
	}
	updated, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)
	require.NotNil(t, updated.FindSize("B"))
	assert.Nil(t, updated.FindSize("A"))

	items := store.carts[0].CartItems
	assert.False(t, items[0].IsAvailable, "old name no longer resolves")
	assert.True(t, items[1].IsAvailable, "pre-existing item under the new name reactivates")
	assert.Equal(t, 9, items[1].Quantity, "within new stock, no clamp")
	assert.Equal(t, 20.0, items[1].Price, "snapshot refreshed on reactivation")
	assertTotalsInvariant(t, store.carts)
}

func TestEngine_PriceChangeMigratesSnapshots(t *testing.T) {
	p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
	store := &fakeStore{
		product: p,
		carts: []models.Cart{
			newCart(availableItem(p.ID, "M", "", 20, 2)),
			newCart(unavailableItem(p.ID, "M", "", 20, 4)),
		},
	}
	engine := reconcile.NewEngine(store, nil)

	// priceAfterDiscount takes precedence over price
	d := &reconcile.MutationDescriptor{
		SizesIsExist: true,
		UpdateSizes:  []reconcile.SizeUpdate{{Size: "M", Price: fp(30), PriceAfterDiscount: fp(25)}},
	}
	_, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)

	assert.Equal(t, 25.0, store.carts[0].CartItems[0].Price)
	assert.Equal(t, 50.0, store.carts[0].TotalCartPrice)
	assert.Equal(t, 20.0, store.carts[1].CartItems[0].Price, "unavailable items keep their snapshot")
	assertTotalsInvariant(t, store.carts)
}

func TestEngine_AddSizeReactivates(t *testing.T) {
	p := sizedProduct(models.SizeVariant{Size: "S", Price: 15, Quantity: ip(3)})
	store := &fakeStore{
		product: p,
		carts:   []models.Cart{newCart(unavailableItem(p.ID, "M", "", 20, 8))},
	}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{
		SizesIsExist: true,
		AddSizes:     []reconcile.NewSize{{Size: "M", Price: 18, Quantity: ip(5)}},
	}
	_, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)

	item := store.carts[0].CartItems[0]
	assert.True(t, item.IsAvailable)
	assert.Equal(t, 5, item.Quantity, "clamped to the new stock")
	assert.Equal(t, 18.0, item.Price, "snapshot refreshed to the new price")
	assert.Equal(t, 90.0, store.carts[0].TotalCartPrice)
	assertTotalsInvariant(t, store.carts)
}

func TestEngine_ColorQuantityClamp(t *testing.T) {
	p := sizedProduct(models.SizeVariant{
		Size:  "M",
		Price: 20,
		Colors: []models.ColorStock{
			{Color: "red", Quantity: 10},
			{Color: "blue", Quantity: 10},
		},
	})
	store := &fakeStore{
		product: p,
		carts: []models.Cart{newCart(
			availableItem(p.ID, "M", "red", 20, 7),
			availableItem(p.ID, "M", "blue", 20, 7),
		)},
	}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{
		SizesIsExist: true,
		UpdateSizes: []reconcile.SizeUpdate{{
			Size:         "M",
			UpdateColors: []reconcile.ColorUpdate{{Color: "red", Quantity: ip(4)}},
		}},
	}
	_, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)

	items := store.carts[0].CartItems
	assert.Equal(t, 4, items[0].Quantity)
	assert.Equal(t, 7, items[1].Quantity, "other colors untouched")
	assertTotalsInvariant(t, store.carts)
}

func TestEngine_AddColorToSizeReactivates(t *testing.T) {
	p := sizedProduct(models.SizeVariant{
		Size:   "M",
		Price:  20,
		Colors: []models.ColorStock{{Color: "blue", Quantity: 5}},
	})
	store := &fakeStore{
		product: p,
		carts:   []models.Cart{newCart(unavailableItem(p.ID, "M", "red", 20, 8))},
	}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{
		SizesIsExist: true,
		UpdateSizes: []reconcile.SizeUpdate{{
			Size:      "M",
			AddColors: []reconcile.NewColor{{Color: "red", Quantity: 4}},
		}},
	}
	updated, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)
	require.NotNil(t, models.FindColor(updated.FindSize("M").Colors, "red"))

	item := store.carts[0].CartItems[0]
	assert.True(t, item.IsAvailable, "pre-existing item naming the added color reactivates")
	assert.Equal(t, 4, item.Quantity, "clamped to the new color stock")
	assert.Equal(t, 20.0, item.Price)
	assert.Equal(t, 80.0, store.carts[0].TotalCartPrice)
	assertTotalsInvariant(t, store.carts)
}

func TestEngine_AddColorRetiresColorlessSelections(t *testing.T) {
	p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
	cart := newCart(
		availableItem(p.ID, "M", "", 20, 3),
		unavailableItem(p.ID, "M", "red", 20, 8),
	)
	store := &fakeStore{product: p, carts: []models.Cart{cart}}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{
		SizesIsExist: true,
		UpdateSizes: []reconcile.SizeUpdate{{
			Size:      "M",
			AddColors: []reconcile.NewColor{{Color: "red", Quantity: 4}},
		}},
	}
	updated, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)
	assert.Nil(t, updated.FindSize("M").Quantity, "colors take over as stock authority")

	items := store.carts[0].CartItems
	assert.False(t, items[0].IsAvailable, "colorless selection no longer resolves")
	assert.True(t, items[1].IsAvailable)
	assert.Equal(t, 4, items[1].Quantity)
	assert.Equal(t, 80.0, store.carts[0].TotalCartPrice)
	assertTotalsInvariant(t, store.carts)
}

func TestEngine_FlatAddColorRetiresColorlessSelections(t *testing.T) {
	p := flatProduct(10, ip(6))
	store := &fakeStore{
		product: p,
		carts:   []models.Cart{newCart(availableItem(p.ID, "", "", 10, 5))},
	}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{AddColors: []reconcile.NewColor{{Color: "red", Quantity: 4}}}
	updated, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)
	assert.Nil(t, updated.Quantity)

	item := store.carts[0].CartItems[0]
	assert.False(t, item.IsAvailable, "colorless selection no longer resolves")
	assert.Equal(t, 0.0, store.carts[0].TotalCartPrice)
	assertTotalsInvariant(t, store.carts)
}

func TestEngine_ModeSwitchToFlat(t *testing.T) {
	p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
	cart := newCart(
		availableItem(p.ID, "M", "", 20, 8),
		unavailableItem(p.ID, "", "", 9, 3),
	)
	store := &fakeStore{product: p, carts: []models.Cart{cart}}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{Price: fp(15), Quantity: ip(5)}
	updated, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)
	assert.False(t, updated.SizesIsExist)

	items := store.carts[0].CartItems
	assert.False(t, items[0].IsAvailable, "sized selections retired")
	assert.True(t, items[1].IsAvailable, "flat-era selection reactivated")
	assert.Equal(t, 3, items[1].Quantity)
	assert.Equal(t, 15.0, items[1].Price)
	assert.Equal(t, 45.0, store.carts[0].TotalCartPrice)
	assertTotalsInvariant(t, store.carts)
}

func TestEngine_OtherProductsUntouched(t *testing.T) {
	p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
	other := primitive.NewObjectID()
	cart := newCart(
		availableItem(p.ID, "M", "", 20, 8),
		availableItem(other, "M", "", 99, 1),
	)
	store := &fakeStore{product: p, carts: []models.Cart{cart}}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{SizesIsExist: true, DeleteSizes: []string{"M"}}
	_, err := engine.Apply(context.Background(), p.ID, d)
	require.NoError(t, err)

	items := store.carts[0].CartItems
	assert.False(t, items[0].IsAvailable)
	assert.True(t, items[1].IsAvailable, "same size name on another product is untouched")
	assert.Equal(t, 99.0, store.carts[0].TotalCartPrice)
}

func TestEngine_AtomicityOnFault(t *testing.T) {
	p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
	store := &fakeStore{
		product: p,
		carts: []models.Cart{
			newCart(availableItem(p.ID, "M", "", 20, 8)),
			newCart(availableItem(p.ID, "M", "", 20, 6)),
		},
		failReplaceAt: 2,
	}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{
		SizesIsExist: true,
		UpdateSizes:  []reconcile.SizeUpdate{{Size: "M", Quantity: ip(5)}},
	}
	_, err := engine.Apply(context.Background(), p.ID, d)
	require.Error(t, err)

	// the first cart was patched before the fault; nothing may survive
	assert.Equal(t, 8, store.carts[0].CartItems[0].Quantity)
	assert.Equal(t, 6, store.carts[1].CartItems[0].Quantity)
	assert.Equal(t, 10, *store.product.FindSize("M").Quantity, "product unchanged after rollback")
}

func TestEngine_ConsistencyMismatchAborts(t *testing.T) {
	p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
	store := &fakeStore{
		product:          p,
		carts:            []models.Cart{newCart(availableItem(p.ID, "M", "", 20, 8))},
		misreportReplace: true,
	}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{
		SizesIsExist: true,
		UpdateSizes:  []reconcile.SizeUpdate{{Size: "M", Quantity: ip(5)}},
	}
	_, err := engine.Apply(context.Background(), p.ID, d)
	require.Error(t, err)

	var ce *reconcile.ConsistencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Expected)
	assert.Equal(t, 0, ce.Modified)
	assert.Contains(t, ce.Error(), "changes reverted")

	assert.Equal(t, 8, store.carts[0].CartItems[0].Quantity, "patch rolled back")
	assert.Equal(t, 10, *store.product.FindSize("M").Quantity)
}

func TestEngine_ValidationOpensNoTransaction(t *testing.T) {
	p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
	store := &fakeStore{product: p}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{SizesIsExist: true, DeleteSizes: []string{"XXL"}}
	_, err := engine.Apply(context.Background(), p.ID, d)

	var fe reconcile.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, store.txnCalls, "validation failures never open a transaction")
}

func TestEngine_ProductNotFound(t *testing.T) {
	store := &fakeStore{product: sizedProduct()}
	engine := reconcile.NewEngine(store, nil)

	d := &reconcile.MutationDescriptor{SizesIsExist: true, DeleteSizes: []string{"M"}}
	_, err := engine.Apply(context.Background(), primitive.NewObjectID(), d)
	assert.ErrorIs(t, err, reconcile.ErrProductNotFound)
}
