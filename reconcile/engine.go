package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/omarwaleed-dev/souqra-backend-go/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Engine applies product mutations and reconciles every cart referencing
// the product, all-or-nothing.
type Engine struct {
	store Store
	log   *zap.Logger
}

func NewEngine(store Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, log: log}
}

// Apply validates the descriptor against the current product, then runs the
// mutation and every cart patch inside one transaction. On success it
// returns the updated product; on any failure nothing is persisted.
//
// Validation happens before the transaction opens: a rejected request never
// touches the store.
func (e *Engine) Apply(ctx context.Context, productID primitive.ObjectID, d *MutationDescriptor) (*models.Product, error) {
	start := time.Now()

	current, err := e.store.FindProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := Validate(current, d); err != nil {
		reconcileRuns.WithLabelValues("rejected").Inc()
		return nil, err
	}

	var (
		updated *models.Product
		patched int
	)
	err = e.store.InTransaction(ctx, func(txCtx context.Context) error {
		// Re-read inside the transaction so the plan is computed against
		// the state the transaction actually isolates.
		p, err := e.store.FindProduct(txCtx, productID)
		if err != nil {
			return err
		}
		next := ApplyMutation(p, d)
		plan := BuildPlan(p, next, d)

		carts, err := e.store.CartsReferencing(txCtx, productID)
		if err != nil {
			return err
		}

		oldTotals := make([]float64, len(carts))
		hadDiscount := make([]bool, len(carts))
		for i := range carts {
			oldTotals[i] = carts[i].TotalCartPrice
			hadDiscount[i] = carts[i].TotalPriceAfterDiscount != nil
		}

		touched := make([]bool, len(carts))
		for _, group := range plan {
			var changed []int
			for i := range carts {
				if applyGroup(&carts[i], group) {
					changed = append(changed, i)
				}
			}
			modified := 0
			for _, i := range changed {
				n, err := e.store.ReplaceCartItems(txCtx, carts[i].ID, carts[i].CartItems)
				if err != nil {
					return fmt.Errorf("%s: %w", group.label, err)
				}
				modified += int(n)
				touched[i] = true
			}
			if modified != len(changed) {
				return &ConsistencyError{Phase: group.label, Expected: len(changed), Modified: modified}
			}
			if len(changed) > 0 {
				e.log.Debug("reconcile phase applied",
					zap.String("phase", group.label),
					zap.Int("carts", len(changed)))
			}
		}

		// Final pass: restore the total invariant on every touched cart.
		expected, modified := 0, 0
		for i := range carts {
			if !touched[i] {
				continue
			}
			carts[i].RecomputeTotal()
			if carts[i].TotalCartPrice == oldTotals[i] && !hadDiscount[i] {
				// Items changed but the sum did not (e.g. an unavailable
				// item was patched); skip the write so the modified-count
				// check stays meaningful.
				continue
			}
			n, err := e.store.SetCartTotals(txCtx, carts[i].ID, carts[i].TotalCartPrice)
			if err != nil {
				return fmt.Errorf("recomputing cart totals: %w", err)
			}
			expected++
			modified += int(n)
		}
		if modified != expected {
			return &ConsistencyError{Phase: "recomputing cart totals", Expected: expected, Modified: modified}
		}

		if err := e.store.SaveProduct(txCtx, next); err != nil {
			return err
		}

		updated = next
		for i := range touched {
			if touched[i] {
				patched++
			}
		}
		return nil
	})
	if err != nil {
		reconcileRuns.WithLabelValues("aborted").Inc()
		e.log.Warn("reconciliation aborted",
			zap.String("product", productID.Hex()),
			zap.Error(err))
		return nil, err
	}

	reconcileRuns.WithLabelValues("committed").Inc()
	reconcileCartsPatched.Add(float64(patched))
	reconcileDuration.Observe(time.Since(start).Seconds())
	e.log.Info("reconciliation committed",
		zap.String("product", productID.Hex()),
		zap.Int("cartsPatched", patched),
		zap.Duration("took", time.Since(start)))
	return updated, nil
}

// applyGroup runs one operation group over a cart and reports whether any
// item changed.
func applyGroup(cart *models.Cart, group opGroup) bool {
	changed := false
	for _, patch := range group.patches {
		for i := range cart.CartItems {
			it := &cart.CartItems[i]
			if !patch.match(it) {
				continue
			}
			if patch.apply(it) {
				changed = true
			}
		}
	}
	return changed
}
