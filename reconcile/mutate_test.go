package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarwaleed-dev/souqra-backend-go/models"
	"github.com/omarwaleed-dev/souqra-backend-go/reconcile"
)

func TestApplyMutation_SizeOps(t *testing.T) {
	t.Run("delete_size", func(t *testing.T) {
		p := sizedProduct(
			models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)},
			models.SizeVariant{Size: "L", Price: 22, Quantity: ip(4)},
		)
		d := &reconcile.MutationDescriptor{SizesIsExist: true, DeleteSizes: []string{"m"}}
		np := reconcile.ApplyMutation(p, d)

		require.Len(t, np.Sizes, 1)
		assert.Equal(t, "L", np.Sizes[0].Size)
		// the source product is untouched
		assert.Len(t, p.Sizes, 2)
	})

	t.Run("update_price_and_rename", func(t *testing.T) {
		p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
		d := &reconcile.MutationDescriptor{
			SizesIsExist: true,
			UpdateSizes:  []reconcile.SizeUpdate{{Size: "m", NewSize: sp("Medium"), Price: fp(25)}},
		}
		np := reconcile.ApplyMutation(p, d)

		require.Len(t, np.Sizes, 1)
		assert.Equal(t, "Medium", np.Sizes[0].Size)
		assert.Equal(t, 25.0, np.Sizes[0].Price)
		require.NotNil(t, np.Sizes[0].Quantity)
		assert.Equal(t, 10, *np.Sizes[0].Quantity)
	})

	t.Run("adding_colors_unsets_flat_quantity", func(t *testing.T) {
		p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
		d := &reconcile.MutationDescriptor{
			SizesIsExist: true,
			UpdateSizes: []reconcile.SizeUpdate{{
				Size:      "M",
				AddColors: []reconcile.NewColor{{Color: "red", Quantity: 3}},
			}},
		}
		np := reconcile.ApplyMutation(p, d)

		require.Len(t, np.Sizes, 1)
		assert.Nil(t, np.Sizes[0].Quantity)
		require.Len(t, np.Sizes[0].Colors, 1)
		assert.Equal(t, "red", np.Sizes[0].Colors[0].Color)
	})

	t.Run("deleting_all_colors_installs_replacement_quantity", func(t *testing.T) {
		p := sizedProduct(models.SizeVariant{
			Size:  "M",
			Price: 20,
			Colors: []models.ColorStock{
				{Color: "red", Quantity: 3},
				{Color: "blue", Quantity: 2},
			},
		})
		d := &reconcile.MutationDescriptor{
			SizesIsExist: true,
			UpdateSizes: []reconcile.SizeUpdate{{
				Size:         "M",
				Quantity:     ip(7),
				DeleteColors: []string{"red", "blue"},
			}},
		}
		np := reconcile.ApplyMutation(p, d)

		require.Len(t, np.Sizes, 1)
		assert.Empty(t, np.Sizes[0].Colors)
		require.NotNil(t, np.Sizes[0].Quantity)
		assert.Equal(t, 7, *np.Sizes[0].Quantity)
	})

	t.Run("add_size", func(t *testing.T) {
		p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
		d := &reconcile.MutationDescriptor{
			SizesIsExist: true,
			AddSizes: []reconcile.NewSize{{
				Size:   "L",
				Price:  22,
				Colors: []reconcile.NewColor{{Color: "red", Quantity: 2}},
			}},
		}
		np := reconcile.ApplyMutation(p, d)

		require.Len(t, np.Sizes, 2)
		added := np.FindSize("L")
		require.NotNil(t, added)
		assert.Nil(t, added.Quantity)
		require.Len(t, added.Colors, 1)
	})
}

func TestApplyMutation_FlatOps(t *testing.T) {
	t.Run("color_rename_and_stock", func(t *testing.T) {
		p := flatProduct(10, nil,
			models.ColorStock{Color: "#ff0000", Quantity: 3},
			models.ColorStock{Color: "#00ff00", Quantity: 1},
		)
		d := &reconcile.MutationDescriptor{
			DeleteColors: []string{"#00ff00"},
			UpdateColors: []reconcile.ColorUpdate{{Color: "#FF0000", NewColor: sp("#cc0000"), Quantity: ip(5)}},
		}
		np := reconcile.ApplyMutation(p, d)

		require.Len(t, np.Colors, 1)
		assert.Equal(t, "#cc0000", np.Colors[0].Color)
		assert.Equal(t, 5, np.Colors[0].Quantity)
	})

	t.Run("discount_takes_effect", func(t *testing.T) {
		p := flatProduct(10, ip(5))
		d := &reconcile.MutationDescriptor{PriceAfterDiscount: fp(8)}
		np := reconcile.ApplyMutation(p, d)

		assert.Equal(t, 8.0, np.EffectivePrice())
		assert.Equal(t, 10.0, np.Price)
	})
}

func TestApplyMutation_ModeSwitch(t *testing.T) {
	t.Run("flat_to_sized_wipes_flat_fields", func(t *testing.T) {
		p := flatProduct(10, ip(5), models.ColorStock{Color: "red", Quantity: 2})
		d := &reconcile.MutationDescriptor{
			SizesIsExist: true,
			AddSizes:     []reconcile.NewSize{{Size: "M", Price: 20, Quantity: ip(10)}},
		}
		np := reconcile.ApplyMutation(p, d)

		assert.True(t, np.SizesIsExist)
		assert.Zero(t, np.Price)
		assert.Nil(t, np.Quantity)
		assert.Empty(t, np.Colors)
		require.Len(t, np.Sizes, 1)
	})

	t.Run("sized_to_flat_wipes_sizes", func(t *testing.T) {
		p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
		d := &reconcile.MutationDescriptor{Price: fp(15), Quantity: ip(5)}
		np := reconcile.ApplyMutation(p, d)

		assert.False(t, np.SizesIsExist)
		assert.Empty(t, np.Sizes)
		assert.Equal(t, 15.0, np.Price)
		require.NotNil(t, np.Quantity)
		assert.Equal(t, 5, *np.Quantity)
	})

	t.Run("sized_to_flat_with_colors_has_no_flat_quantity", func(t *testing.T) {
		p := sizedProduct(models.SizeVariant{Size: "M", Price: 20, Quantity: ip(10)})
		d := &reconcile.MutationDescriptor{
			Price:     fp(15),
			AddColors: []reconcile.NewColor{{Color: "red", Quantity: 4}},
		}
		np := reconcile.ApplyMutation(p, d)

		assert.Nil(t, np.Quantity)
		require.Len(t, np.Colors, 1)
	})
}
