package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ecommerce-api/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	// ErrCartItemQuantityLimit is returned when a merge would push a line past
	// domain.MaxItemQuantity
	ErrCartItemQuantityLimit = errors.New("cart item quantity exceeds the limit")
)

const cartItemProductConstraint = "fk_cart_items_product"

// CartRepository defines the interface for cart and cart item data access
type CartRepository interface {
	// GetOrCreateActive returns the user's active cart, inserting one when none
	// exists. Concurrent callers for the same user always observe the same row.
	GetOrCreateActive(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Cart, error)
	// FindByIDForUpdate locks the cart row until the surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Cart, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Cart, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CartStatus) error

	ListItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error)
	FindItem(ctx context.Context, itemID uuid.UUID) (*domain.CartItem, error)
	// UpsertItem adds quantity to the (cart, product) line, creating it if absent
	UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) (*domain.CartItem, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

type cartRepository struct {
	db DBTX
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db DBTX) CartRepository {
	return &cartRepository{db: db}
}

const cartColumns = `id, user_id, status, created_at, updated_at`

func scanCart(row rowScanner) (*domain.Cart, error) {
	cart := &domain.Cart{}
	err := row.Scan(&cart.ID, &cart.UserID, &cart.Status, &cart.CreatedAt, &cart.UpdatedAt)
	return cart, err
}

func (r *cartRepository) GetOrCreateActive(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	now := time.Now()
	insert := `
		INSERT INTO carts (id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, 'active', $3, $3)
		ON CONFLICT (user_id) WHERE status = 'active' DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, uuid.New(), userID, now); err != nil {
		return nil, fmt.Errorf("failed to create active cart: %w", err)
	}

	return r.FindActiveByUser(ctx, userID)
}

func (r *cartRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	return r.findOne(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
}

func (r *cartRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	return r.findOne(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1 FOR UPDATE`, id)
}

func (r *cartRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	return r.findOne(ctx, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1 AND status = 'active'`, userID)
}

func (r *cartRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.Cart, error) {
	cart, err := scanCart(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}
	return cart, nil
}

func (r *cartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1 ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}
	defer rows.Close()

	carts := []*domain.Cart{}
	for rows.Next() {
		cart, err := scanCart(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart: %w", err)
		}
		carts = append(carts, cart)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating carts: %w", err)
	}

	return carts, nil
}

func (r *cartRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CartStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE carts SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update cart status: %w", err)
	}
	return expectOneRow(result, ErrCartNotFound)
}

const cartItemColumns = `ci.id, ci.cart_id, ci.product_id, p.name, p.price, ci.quantity, ci.created_at, ci.updated_at`

func scanCartItem(row rowScanner) (*domain.CartItem, error) {
	item := &domain.CartItem{}
	err := row.Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.ProductName,
		&item.UnitPrice,
		&item.Quantity,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

// ListItems returns the cart's lines priced at the current catalog price
func (r *cartRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	query := `
		SELECT ` + cartItemColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id
	`

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, *item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

func (r *cartRepository) FindItem(ctx context.Context, itemID uuid.UUID) (*domain.CartItem, error) {
	query := `
		SELECT ` + cartItemColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.id = $1
	`

	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}
	return item, nil
}

func (r *cartRepository) UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) (*domain.CartItem, error) {
	now := time.Now()
	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		WHERE cart_items.quantity + EXCLUDED.quantity <= $6
		RETURNING id
	`

	var itemID uuid.UUID
	err := r.db.QueryRowContext(ctx, query, uuid.New(), cartID, productID, quantity, now, domain.MaxItemQuantity).Scan(&itemID)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows), isNumericOutOfRange(err):
		// The conflict guard skipped the update
		return nil, ErrCartItemQuantityLimit
	case isForeignKeyViolation(err, cartItemProductConstraint):
		return nil, ErrProductNotFound
	default:
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	return r.FindItem(ctx, itemID)
}

func (r *cartRepository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $2, updated_at = $3 WHERE id = $1`,
		itemID, quantity, time.Now(),
	)
	if isNumericOutOfRange(err) {
		return ErrCartItemQuantityLimit
	}
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	return expectOneRow(result, ErrCartItemNotFound)
}

func (r *cartRepository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	return expectOneRow(result, ErrCartItemNotFound)
}

func (r *cartRepository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	return nil
}
