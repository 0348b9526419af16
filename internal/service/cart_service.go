package service

import (
	"context"
	"fmt"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var errCartNotActive = domain.NewInvalidStateError("cart not active")

// CartService owns the per-user active cart and its line items
type CartService interface {
	// GetOrCreateActiveCart returns the user's active cart with items, creating
	// it on first use
	GetOrCreateActiveCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	// AddItem merges quantity into the caller's active cart
	AddItem(ctx context.Context, principal domain.Principal, productID uuid.UUID, quantity int) (*domain.CartItem, error)
	UpdateItem(ctx context.Context, principal domain.Principal, itemID uuid.UUID, quantity int) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, principal domain.Principal, itemID uuid.UUID) error
	ListItems(ctx context.Context, principal domain.Principal) ([]domain.CartItem, error)
	GetItem(ctx context.Context, principal domain.Principal, itemID uuid.UUID) (*domain.CartItem, error)
	ListCarts(ctx context.Context, principal domain.Principal) ([]*domain.Cart, error)
	GetCart(ctx context.Context, principal domain.Principal, cartID uuid.UUID) (*domain.Cart, error)
}

// ComputeTotal is the authoritative cart total: the sum of item subtotals at
// current catalog prices
func ComputeTotal(cart *domain.Cart) decimal.Decimal {
	return cart.Total()
}

func validateQuantity(quantity int) error {
	if quantity <= 0 {
		return domain.NewValidationError("quantity", "quantity must be a positive integer")
	}
	if quantity > domain.MaxItemQuantity {
		return quantityLimitError()
	}
	return nil
}

func quantityLimitError() error {
	return domain.NewValidationError("quantity", fmt.Sprintf("quantity must not exceed %d", domain.MaxItemQuantity))
}

type cartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	tx       repository.TxManager
	logger   *zap.Logger
}

// NewCartService creates a new instance of CartService. products is used for
// availability checks and may be cached.
func NewCartService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	tx repository.TxManager,
	logger *zap.Logger,
) CartService {
	return &cartService{
		carts:    carts,
		products: products,
		tx:       tx,
		logger:   logger,
	}
}

func (s *cartService) GetOrCreateActiveCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.carts.GetOrCreateActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active cart: %w", err)
	}
	if err := s.loadItems(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *cartService) AddItem(ctx context.Context, principal domain.Principal, productID uuid.UUID, quantity int) (*domain.CartItem, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if !product.Available {
		return nil, domain.NewValidationError("product", "product is not available")
	}

	cart, err := s.carts.GetOrCreateActive(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active cart: %w", err)
	}

	var item *domain.CartItem
	err = s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		// A checkout that won the row lock has already closed this cart
		locked, err := repos.Carts.FindByIDForUpdate(ctx, cart.ID)
		if err != nil {
			return translateRepoError(err)
		}
		if !locked.IsActive() {
			return errCartNotActive
		}

		item, err = repos.Carts.UpsertItem(ctx, locked.ID, product.ID, quantity)
		return translateRepoError(err)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("cart item added",
		zap.String("cart_id", cart.ID.String()),
		zap.String("product_id", product.ID.String()),
		zap.Int("quantity", item.Quantity),
	)
	return item, nil
}

func (s *cartService) UpdateItem(ctx context.Context, principal domain.Principal, itemID uuid.UUID, quantity int) (*domain.CartItem, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	var item *domain.CartItem
	err := s.mutateItem(ctx, principal, itemID, func(repos repository.Repositories) error {
		if err := repos.Carts.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
			return translateRepoError(err)
		}
		var err error
		item, err = repos.Carts.FindItem(ctx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *cartService) RemoveItem(ctx context.Context, principal domain.Principal, itemID uuid.UUID) error {
	return s.mutateItem(ctx, principal, itemID, func(repos repository.Repositories) error {
		return translateRepoError(repos.Carts.DeleteItem(ctx, itemID))
	})
}

// mutateItem runs fn once the item is known to sit in one of the caller's
// carts and that cart, locked for the transaction, is still active
func (s *cartService) mutateItem(ctx context.Context, principal domain.Principal, itemID uuid.UUID, fn func(repository.Repositories) error) error {
	return s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		item, err := repos.Carts.FindItem(ctx, itemID)
		if err != nil {
			return translateRepoError(err)
		}

		cart, err := repos.Carts.FindByIDForUpdate(ctx, item.CartID)
		if err != nil {
			return translateRepoError(err)
		}
		if !principal.Owns(cart.UserID) {
			return domain.NewNotFoundError("cart item")
		}
		if !cart.IsActive() {
			return errCartNotActive
		}

		return fn(repos)
	})
}

func (s *cartService) ListItems(ctx context.Context, principal domain.Principal) ([]domain.CartItem, error) {
	cart, err := s.GetOrCreateActiveCart(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	return cart.Items, nil
}

func (s *cartService) GetItem(ctx context.Context, principal domain.Principal, itemID uuid.UUID) (*domain.CartItem, error) {
	item, err := s.carts.FindItem(ctx, itemID)
	if err != nil {
		return nil, translateRepoError(err)
	}

	cart, err := s.carts.FindByID(ctx, item.CartID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if !principal.Owns(cart.UserID) || !cart.IsActive() {
		return nil, domain.NewNotFoundError("cart item")
	}
	return item, nil
}

func (s *cartService) ListCarts(ctx context.Context, principal domain.Principal) ([]*domain.Cart, error) {
	carts, err := s.carts.ListByUser(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}
	for _, cart := range carts {
		if err := s.loadItems(ctx, cart); err != nil {
			return nil, err
		}
	}
	return carts, nil
}

func (s *cartService) GetCart(ctx context.Context, principal domain.Principal, cartID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if !principal.Owns(cart.UserID) {
		return nil, domain.NewNotFoundError("cart")
	}
	if err := s.loadItems(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *cartService) loadItems(ctx context.Context, cart *domain.Cart) error {
	items, err := s.carts.ListItems(ctx, cart.ID)
	if err != nil {
		return fmt.Errorf("failed to load cart items: %w", err)
	}
	cart.Items = items
	return nil
}
