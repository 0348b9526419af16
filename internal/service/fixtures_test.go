package service

import (
	"context"
	"sync"
	"testing"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/events"
	"ecommerce-api/internal/repository/repositorytest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingPublisher keeps every published event in memory
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store     *repositorytest.Store
	publisher *recordingPublisher
	carts     CartService
	checkout  CheckoutService
	orders    OrderService
	catalog   CatalogService
	category  *domain.Category
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithMode(t, false)
}

func newFixtureWithMode(t *testing.T, strict bool) *fixture {
	t.Helper()

	store := repositorytest.NewStore()
	publisher := &recordingPublisher{}
	logger := zap.NewNop()

	fx := &fixture{
		store:     store,
		publisher: publisher,
		carts:     NewCartService(store.Carts(), store.Products(), store, logger),
		checkout:  NewCheckoutService(store, publisher, logger),
		orders:    NewOrderService(store.Orders(), store, publisher, strict, logger),
		catalog:   NewCatalogService(store.Categories(), store.Products()),
	}

	category, err := fx.catalog.CreateCategory(context.Background(), CategoryInput{Name: "Books"})
	require.NoError(t, err)
	fx.category = category
	return fx
}

func (fx *fixture) product(t *testing.T, name, price string) *domain.Product {
	t.Helper()
	product, err := fx.catalog.CreateProduct(context.Background(), ProductInput{
		CategoryID: fx.category.ID,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      10,
	})
	require.NoError(t, err)
	return product
}

func customer() domain.Principal {
	return domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
}

func staff() domain.Principal {
	return domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin}
}

// placeOrder fills the principal's cart with one unit of a fresh product and
// checks it out
func (fx *fixture) placeOrder(t *testing.T, principal domain.Principal) *domain.Order {
	t.Helper()
	ctx := context.Background()

	product := fx.product(t, "Item "+uuid.NewString()[:8], "10.00")
	_, err := fx.carts.AddItem(ctx, principal, product.ID, 1)
	require.NoError(t, err)

	cart, err := fx.carts.GetOrCreateActiveCart(ctx, principal.UserID)
	require.NoError(t, err)

	order, err := fx.checkout.Checkout(ctx, principal, cart.ID)
	require.NoError(t, err)
	return order
}

func waitGroupRun(n int, fn func(i int)) {
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
}
