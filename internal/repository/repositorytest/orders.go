package repositorytest

import (
	"context"
	"sort"
	"strings"
	"time"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/repository"

	"github.com/google/uuid"
)

type cartRepo struct{ view }

func (r *cartRepo) GetOrCreateActive(_ context.Context, userID uuid.UUID) (*domain.Cart, error) {
	defer r.lock()()
	if err := r.fail("carts.get_or_create_active"); err != nil {
		return nil, err
	}
	if c := r.s.activeCart(userID); c != nil {
		return cloneCart(c), nil
	}
	now := time.Now()
	c := &domain.Cart{ID: uuid.New(), UserID: userID, Status: domain.CartStatusActive, CreatedAt: now, UpdatedAt: now}
	r.s.carts[c.ID] = c
	return cloneCart(c), nil
}

func (s *Store) activeCart(userID uuid.UUID) *domain.Cart {
	for _, c := range s.carts {
		if c.UserID == userID && c.Status == domain.CartStatusActive {
			return c
		}
	}
	return nil
}

func (r *cartRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Cart, error) {
	defer r.lock()()
	if c, ok := r.s.carts[id]; ok {
		return cloneCart(c), nil
	}
	return nil, repository.ErrCartNotFound
}

// FindByIDForUpdate has nothing extra to lock: transactions already hold the
// store mutex.
func (r *cartRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	return r.FindByID(ctx, id)
}

func (r *cartRepo) FindActiveByUser(_ context.Context, userID uuid.UUID) (*domain.Cart, error) {
	defer r.lock()()
	if c := r.s.activeCart(userID); c != nil {
		return cloneCart(c), nil
	}
	return nil, repository.ErrCartNotFound
}

func (r *cartRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.Cart, error) {
	defer r.lock()()
	out := []*domain.Cart{}
	for _, c := range r.s.carts {
		if c.UserID == userID {
			out = append(out, cloneCart(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *cartRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.CartStatus) error {
	defer r.lock()()
	if err := r.fail("carts.update_status"); err != nil {
		return err
	}
	c, ok := r.s.carts[id]
	if !ok {
		return repository.ErrCartNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

func (r *cartRepo) ListItems(_ context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	defer r.lock()()
	out := []domain.CartItem{}
	for _, item := range r.s.items {
		if item.CartID == cartID {
			out = append(out, r.s.pricedItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// pricedItem joins the item with the current catalog row
func (s *Store) pricedItem(item *domain.CartItem) domain.CartItem {
	out := *item
	if p, ok := s.products[item.ProductID]; ok {
		out.ProductName = p.Name
		out.UnitPrice = p.Price
	}
	return out
}

func (r *cartRepo) FindItem(_ context.Context, itemID uuid.UUID) (*domain.CartItem, error) {
	defer r.lock()()
	item, ok := r.s.items[itemID]
	if !ok {
		return nil, repository.ErrCartItemNotFound
	}
	priced := r.s.pricedItem(item)
	return &priced, nil
}

func (r *cartRepo) UpsertItem(_ context.Context, cartID, productID uuid.UUID, quantity int) (*domain.CartItem, error) {
	defer r.lock()()
	if err := r.fail("carts.upsert_item"); err != nil {
		return nil, err
	}
	if _, ok := r.s.products[productID]; !ok {
		return nil, repository.ErrProductNotFound
	}
	now := time.Now()
	for _, item := range r.s.items {
		if item.CartID == cartID && item.ProductID == productID {
			if item.Quantity+quantity > domain.MaxItemQuantity {
				return nil, repository.ErrCartItemQuantityLimit
			}
			item.Quantity += quantity
			item.UpdatedAt = now
			priced := r.s.pricedItem(item)
			return &priced, nil
		}
	}
	item := &domain.CartItem{
		ID:        uuid.New(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.items[item.ID] = item
	priced := r.s.pricedItem(item)
	return &priced, nil
}

func (r *cartRepo) UpdateItemQuantity(_ context.Context, itemID uuid.UUID, quantity int) error {
	defer r.lock()()
	item, ok := r.s.items[itemID]
	if !ok {
		return repository.ErrCartItemNotFound
	}
	item.Quantity = quantity
	item.UpdatedAt = time.Now()
	return nil
}

func (r *cartRepo) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.s.items[itemID]; !ok {
		return repository.ErrCartItemNotFound
	}
	delete(r.s.items, itemID)
	return nil
}

func (r *cartRepo) ClearItems(_ context.Context, cartID uuid.UUID) error {
	defer r.lock()()
	if err := r.fail("carts.clear_items"); err != nil {
		return err
	}
	for id, item := range r.s.items {
		if item.CartID == cartID {
			delete(r.s.items, id)
		}
	}
	return nil
}

type orderRepo struct{ view }

func (r *orderRepo) Create(_ context.Context, order *domain.Order) error {
	defer r.lock()()
	if err := r.fail("orders.create"); err != nil {
		return err
	}
	r.s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	defer r.lock()()
	if o, ok := r.s.orders[id]; ok {
		return cloneOrder(o), nil
	}
	return nil, repository.ErrOrderNotFound
}

func (r *orderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *orderRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	defer r.lock()()
	return r.s.listOrders(func(o *domain.Order) bool { return o.UserID == userID }), nil
}

func (r *orderRepo) List(_ context.Context) ([]*domain.Order, error) {
	defer r.lock()()
	return r.s.listOrders(func(*domain.Order) bool { return true }), nil
}

func (s *Store) listOrders(keep func(*domain.Order) bool) []*domain.Order {
	out := []*domain.Order{}
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *orderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus) (time.Time, error) {
	defer r.lock()()
	if err := r.fail("orders.update_status"); err != nil {
		return time.Time{}, err
	}
	o, ok := r.s.orders[id]
	if !ok {
		return time.Time{}, repository.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return o.UpdatedAt, nil
}

// OrderCount reports how many orders exist
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// ActiveCartCount reports how many active carts userID owns
func (s *Store) ActiveCartCount(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.carts {
		if c.UserID == userID && c.Status == domain.CartStatusActive {
			n++
		}
	}
	return n
}
