package service

import (
	"context"
	"errors"
	"testing"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/events"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutService_Checkout(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	user := customer()
	a := fx.product(t, "Alpha", "10.00")
	b := fx.product(t, "Beta", "5.50")

	_, err := fx.carts.AddItem(ctx, user, a.ID, 2)
	require.NoError(t, err)
	_, err = fx.carts.AddItem(ctx, user, b.ID, 1)
	require.NoError(t, err)

	cart, err := fx.carts.GetOrCreateActiveCart(ctx, user.UserID)
	require.NoError(t, err)

	order, err := fx.checkout.Checkout(ctx, user, cart.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, user.UserID, order.UserID)
	assert.Equal(t, "25.50", order.Total.StringFixed(2))
	assert.False(t, order.CheckedOutAt.IsZero())
	require.Len(t, order.Items, 2)

	quantities := map[uuid.UUID]int{}
	for _, item := range order.Items {
		quantities[item.ProductID] = item.Quantity
		assert.Equal(t, order.ID, item.OrderID)
	}
	assert.Equal(t, 2, quantities[a.ID])
	assert.Equal(t, 1, quantities[b.ID])

	closed, err := fx.carts.GetCart(ctx, user, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CartStatusCheckedOut, closed.Status)
	assert.Empty(t, closed.Items)

	stored, err := fx.orders.GetOrder(ctx, user, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(stored.ItemsTotal()))

	assert.Equal(t, []events.Type{events.OrderPlaced}, fx.publisher.Types())
}

func TestCheckoutService_SnapshotsPrices(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	user := customer()
	product := fx.product(t, "Clock", "20.00")

	_, err := fx.carts.AddItem(ctx, user, product.ID, 1)
	require.NoError(t, err)
	cart, err := fx.carts.GetOrCreateActiveCart(ctx, user.UserID)
	require.NoError(t, err)

	// The cart is priced at checkout time, not when the item was added
	newPrice := decimal.RequireFromString("17.99")
	_, err = fx.catalog.UpdateProduct(ctx, product.Slug, ProductPatch{Price: &newPrice})
	require.NoError(t, err)

	order, err := fx.checkout.Checkout(ctx, user, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, "17.99", order.Total.StringFixed(2))

	later := decimal.RequireFromString("99.00")
	_, err = fx.catalog.UpdateProduct(ctx, product.Slug, ProductPatch{Price: &later})
	require.NoError(t, err)

	stored, err := fx.orders.GetOrder(ctx, user, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "17.99", stored.Total.StringFixed(2))
	assert.Equal(t, "17.99", stored.Items[0].UnitPrice.StringFixed(2))
}

func TestCheckoutService_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("missing cart", func(t *testing.T) {
		fx := newFixture(t)
		var nf *domain.NotFoundError
		_, err := fx.checkout.Checkout(ctx, customer(), uuid.New())
		assert.True(t, errors.As(err, &nf))
	})

	t.Run("empty cart", func(t *testing.T) {
		fx := newFixture(t)
		user := customer()
		cart, err := fx.carts.GetOrCreateActiveCart(ctx, user.UserID)
		require.NoError(t, err)

		var empty *domain.EmptyCartError
		_, err = fx.checkout.Checkout(ctx, user, cart.ID)
		assert.True(t, errors.As(err, &empty))
		assert.Equal(t, 0, fx.store.OrderCount())

		again, err := fx.carts.GetCart(ctx, user, cart.ID)
		require.NoError(t, err)
		assert.True(t, again.IsActive())
	})

	t.Run("not the owner", func(t *testing.T) {
		fx := newFixture(t)
		owner := customer()
		product := fx.product(t, "Chair", "40.00")
		_, err := fx.carts.AddItem(ctx, owner, product.ID, 1)
		require.NoError(t, err)
		cart, err := fx.carts.GetOrCreateActiveCart(ctx, owner.UserID)
		require.NoError(t, err)

		var authz *domain.AuthorizationError
		_, err = fx.checkout.Checkout(ctx, customer(), cart.ID)
		assert.True(t, errors.As(err, &authz))
		_, err = fx.checkout.Checkout(ctx, staff(), cart.ID)
		assert.True(t, errors.As(err, &authz))

		assert.Equal(t, 0, fx.store.OrderCount())
		unchanged, err := fx.carts.GetCart(ctx, owner, cart.ID)
		require.NoError(t, err)
		assert.True(t, unchanged.IsActive())
		assert.Len(t, unchanged.Items, 1)
		assert.Empty(t, fx.publisher.Types())
	})

	t.Run("already checked out", func(t *testing.T) {
		fx := newFixture(t)
		user := customer()
		order := fx.placeOrder(t, user)

		carts, err := fx.carts.ListCarts(ctx, user)
		require.NoError(t, err)
		require.Len(t, carts, 1)

		var state *domain.InvalidStateError
		_, err = fx.checkout.Checkout(ctx, user, carts[0].ID)
		require.True(t, errors.As(err, &state))
		assert.Equal(t, "cart not active", state.Message)

		orders, err := fx.orders.MyOrders(ctx, user)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, order.ID, orders[0].ID)
	})
}

func TestCheckoutService_RollsBackOnFailure(t *testing.T) {
	for _, op := range []string{"orders.create", "carts.clear_items", "carts.update_status"} {
		t.Run(op, func(t *testing.T) {
			fx := newFixture(t)
			ctx := context.Background()
			user := customer()
			product := fx.product(t, "Desk", "150.00")

			_, err := fx.carts.AddItem(ctx, user, product.ID, 2)
			require.NoError(t, err)
			cart, err := fx.carts.GetOrCreateActiveCart(ctx, user.UserID)
			require.NoError(t, err)

			boom := errors.New("boom")
			fx.store.FailOn(op, boom)

			_, err = fx.checkout.Checkout(ctx, user, cart.ID)
			require.ErrorIs(t, err, boom)

			assert.Equal(t, 0, fx.store.OrderCount())
			after, err := fx.carts.GetCart(ctx, user, cart.ID)
			require.NoError(t, err)
			assert.True(t, after.IsActive())
			require.Len(t, after.Items, 1)
			assert.Equal(t, 2, after.Items[0].Quantity)
			assert.Empty(t, fx.publisher.Types())
		})
	}
}

func TestCheckoutService_PublishFailureDoesNotFailCheckout(t *testing.T) {
	fx := newFixture(t)
	fx.publisher.err = errors.New("broker unavailable")

	order := fx.placeOrder(t, customer())
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, 1, fx.store.OrderCount())
}

func TestCheckoutService_ConcurrentAddAndCheckout(t *testing.T) {
	for run := 0; run < 20; run++ {
		fx := newFixture(t)
		ctx := context.Background()
		user := customer()
		a := fx.product(t, "Anchor", "3.00")
		b := fx.product(t, "Buoy", "4.00")

		_, err := fx.carts.AddItem(ctx, user, a.ID, 1)
		require.NoError(t, err)
		cart, err := fx.carts.GetOrCreateActiveCart(ctx, user.UserID)
		require.NoError(t, err)

		var (
			order    *domain.Order
			addErr   error
			checkErr error
		)
		waitGroupRun(2, func(i int) {
			if i == 0 {
				order, checkErr = fx.checkout.Checkout(ctx, user, cart.ID)
				return
			}
			_, addErr = fx.carts.AddItem(ctx, user, b.ID, 1)
		})
		require.NoError(t, checkErr)

		if addErr != nil {
			var state *domain.InvalidStateError
			require.True(t, errors.As(addErr, &state), "unexpected error %v", addErr)
			continue
		}

		// A successful add lands either in the order or in a fresh cart,
		// never in both and never lost
		placed := 0
		for _, item := range order.Items {
			if item.ProductID == b.ID {
				placed += item.Quantity
			}
		}
		active, err := fx.carts.GetOrCreateActiveCart(ctx, user.UserID)
		require.NoError(t, err)
		pending := 0
		for _, item := range active.Items {
			if item.ProductID == b.ID {
				pending += item.Quantity
			}
		}
		assert.Equal(t, 1, placed+pending)
		assert.True(t, order.Total.Equal(order.ItemsTotal()))
	}
}

// Feature: ecommerce-api, Property 12: Checkout conserves cart lines and empties the cart
func TestProperty_CheckoutConservesLines(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every cart line becomes one order line with the same quantity", prop.ForAll(
		func(quantities []int) bool {
			fx := newFixture(t)
			ctx := context.Background()
			user := customer()

			want := map[uuid.UUID]int{}
			for _, q := range quantities {
				product := fx.product(t, "Line "+uuid.NewString()[:8], "2.50")
				if _, err := fx.carts.AddItem(ctx, user, product.ID, q); err != nil {
					return false
				}
				want[product.ID] = q
			}

			cart, err := fx.carts.GetOrCreateActiveCart(ctx, user.UserID)
			if err != nil {
				return false
			}
			order, err := fx.checkout.Checkout(ctx, user, cart.ID)
			if err != nil {
				t.Logf("FAIL: checkout: %v", err)
				return false
			}

			if len(order.Items) != len(want) {
				return false
			}
			for _, item := range order.Items {
				if want[item.ProductID] != item.Quantity {
					return false
				}
			}

			closed, err := fx.carts.GetCart(ctx, user, cart.ID)
			if err != nil {
				return false
			}
			return closed.Status == domain.CartStatusCheckedOut &&
				len(closed.Items) == 0 &&
				order.Total.Equal(order.ItemsTotal())
		},
		gen.SliceOfN(4, gen.IntRange(1, 20)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
