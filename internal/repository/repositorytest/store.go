// Package repositorytest provides an in-memory implementation of the
// repository interfaces for service and transport tests.
package repositorytest

import (
	"context"
	"sync"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/repository"

	"github.com/google/uuid"
)

// Store holds every table in memory behind one mutex. A transaction holds the
// mutex for its whole callback, which makes WithinTx serializable, and restores
// a snapshot when the callback fails.
type Store struct {
	mu sync.Mutex

	categories map[uuid.UUID]*domain.Category
	products   map[uuid.UUID]*domain.Product
	carts      map[uuid.UUID]*domain.Cart
	items      map[uuid.UUID]*domain.CartItem
	orders     map[uuid.UUID]*domain.Order
	users      map[uuid.UUID]*domain.User
	tokens     map[string]*domain.RefreshToken

	failures map[string]error
}

func NewStore() *Store {
	return &Store{
		categories: map[uuid.UUID]*domain.Category{},
		products:   map[uuid.UUID]*domain.Product{},
		carts:      map[uuid.UUID]*domain.Cart{},
		items:      map[uuid.UUID]*domain.CartItem{},
		orders:     map[uuid.UUID]*domain.Order{},
		users:      map[uuid.UUID]*domain.User{},
		tokens:     map[string]*domain.RefreshToken{},
		failures:   map[string]error{},
	}
}

// FailOn makes every later call of op (for example "orders.create") return err
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// view binds repositories to the store. Inside WithinTx the mutex is already
// held, so locked views skip locking.
type view struct {
	s      *Store
	locked bool
}

func (v view) lock() func() {
	if v.locked {
		return func() {}
	}
	v.s.mu.Lock()
	return v.s.mu.Unlock
}

func (v view) fail(op string) error {
	return v.s.failures[op]
}

func (s *Store) Categories() repository.CategoryRepository {
	return &categoryRepo{view{s: s}}
}

func (s *Store) Products() repository.ProductRepository {
	return &productRepo{view{s: s}}
}

func (s *Store) Carts() repository.CartRepository {
	return &cartRepo{view{s: s}}
}

func (s *Store) Orders() repository.OrderRepository {
	return &orderRepo{view{s: s}}
}

func (s *Store) Users() repository.UserRepository {
	return &userRepo{view{s: s}}
}

func (s *Store) RefreshTokens() repository.RefreshTokenRepository {
	return &tokenRepo{view{s: s}}
}

func (s *Store) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := s.snapshot()
	v := view{s: s, locked: true}
	repos := repository.Repositories{
		Products: &productRepo{v},
		Carts:    &cartRepo{v},
		Orders:   &orderRepo{v},
	}

	if err := fn(repos); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	products map[uuid.UUID]*domain.Product
	carts    map[uuid.UUID]*domain.Cart
	items    map[uuid.UUID]*domain.CartItem
	orders   map[uuid.UUID]*domain.Order
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		products: cloneMap(s.products, cloneProduct),
		carts:    cloneMap(s.carts, cloneCart),
		items:    cloneMap(s.items, cloneItem),
		orders:   cloneMap(s.orders, cloneOrder),
	}
}

func (s *Store) restore(snap snapshot) {
	s.products = snap.products
	s.carts = snap.carts
	s.items = snap.items
	s.orders = snap.orders
}

func cloneMap[K comparable, V any](m map[K]*V, clone func(*V) *V) map[K]*V {
	out := make(map[K]*V, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	return &c
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = nil
	return &out
}

func cloneItem(i *domain.CartItem) *domain.CartItem {
	c := *i
	return &c
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

func cloneCategory(c *domain.Category) *domain.Category {
	out := *c
	return &out
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}
