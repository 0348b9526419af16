package repository_test

import (
	"context"
	"errors"
	"testing"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/events"
	"ecommerce-api/internal/repository"
	"ecommerce-api/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestCheckout_ConcurrentAddItem races item additions against checkout of the
// same cart on Postgres. Each add must end up in the order, fail because the
// cart closed, or land in the user's next active cart; a checked-out cart
// never keeps items.
func TestCheckout_ConcurrentAddItem(t *testing.T) {
	db := repository.IntegrationDB()
	logger := zap.NewNop()
	tx := repository.NewTxManager(db)
	carts := repository.NewCartRepository(db)
	cartService := service.NewCartService(carts, repository.NewProductRepository(db), tx, logger)
	checkout := service.NewCheckoutService(tx, events.NewLogPublisher(logger), logger)

	category := repository.CreateTestCategory(t)
	const adders = 8
	products := make([]*domain.Product, adders+1)
	for i := range products {
		products[i] = repository.CreateTestProduct(t, category.ID, "3.00")
	}

	for round := 0; round < 10; round++ {
		ctx := context.Background()
		user := repository.CreateTestUser(t)
		principal := domain.Principal{UserID: user.ID, Role: domain.RoleUser}

		_, err := cartService.AddItem(ctx, principal, products[0].ID, 1)
		require.NoError(t, err)
		cart, err := carts.FindActiveByUser(ctx, user.ID)
		require.NoError(t, err)

		addErrs := make([]error, adders)
		var order *domain.Order
		var checkoutErr error

		start := make(chan struct{})
		done := make(chan struct{}, adders+1)
		for i := 0; i < adders; i++ {
			go func(i int) {
				defer func() { done <- struct{}{} }()
				<-start
				_, addErrs[i] = cartService.AddItem(ctx, principal, products[i+1].ID, 1)
			}(i)
		}
		go func() {
			defer func() { done <- struct{}{} }()
			<-start
			order, checkoutErr = checkout.Checkout(ctx, principal, cart.ID)
		}()
		close(start)
		for i := 0; i < adders+1; i++ {
			<-done
		}

		require.NoError(t, checkoutErr, "round %d", round)

		ordered := map[uuid.UUID]bool{}
		for _, line := range order.Items {
			ordered[line.ProductID] = true
		}
		pending := map[uuid.UUID]bool{}
		if next, err := carts.FindActiveByUser(ctx, user.ID); err == nil {
			items, err := carts.ListItems(ctx, next.ID)
			require.NoError(t, err)
			for _, item := range items {
				pending[item.ProductID] = true
			}
		} else {
			require.ErrorIs(t, err, repository.ErrCartNotFound)
		}

		assert.True(t, ordered[products[0].ID], "round %d: seed item missing from order", round)
		for i, addErr := range addErrs {
			id := products[i+1].ID
			if addErr != nil {
				var state *domain.InvalidStateError
				assert.True(t, errors.As(addErr, &state), "round %d: unexpected error %v", round, addErr)
				assert.False(t, ordered[id] || pending[id], "round %d: failed add was stored", round)
				continue
			}
			assert.True(t, ordered[id] != pending[id],
				"round %d: product %s ordered=%v pending=%v", round, id, ordered[id], pending[id])
		}

		var leftover int
		err = db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM cart_items ci
			JOIN carts c ON c.id = ci.cart_id
			WHERE c.user_id = $1 AND c.status = 'checked_out'`, user.ID).Scan(&leftover)
		require.NoError(t, err)
		assert.Zero(t, leftover, "round %d: checked-out cart kept items", round)
	}
}
