package service

import (
	"context"
	"time"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/events"
	"ecommerce-api/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutService turns an active cart into a pending order
type CheckoutService interface {
	Checkout(ctx context.Context, principal domain.Principal, cartID uuid.UUID) (*domain.Order, error)
}

type checkoutService struct {
	tx        repository.TxManager
	publisher events.Publisher
	logger    *zap.Logger
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(tx repository.TxManager, publisher events.Publisher, logger *zap.Logger) CheckoutService {
	return &checkoutService{
		tx:        tx,
		publisher: publisher,
		logger:    logger,
	}
}

// Checkout snapshots the cart's items at current catalog prices into a new
// order, empties the cart and marks it checked out. Either all of that
// happens or none of it does.
func (s *checkoutService) Checkout(ctx context.Context, principal domain.Principal, cartID uuid.UUID) (*domain.Order, error) {
	var order *domain.Order

	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		cart, err := repos.Carts.FindByIDForUpdate(ctx, cartID)
		if err != nil {
			return translateRepoError(err)
		}
		if !cart.IsActive() {
			return errCartNotActive
		}

		items, err := repos.Carts.ListItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return &domain.EmptyCartError{}
		}
		if !principal.Owns(cart.UserID) {
			return domain.NewAuthorizationError("only the cart owner can check out")
		}

		order = newOrderFromItems(cart.UserID, items, time.Now())

		if err := repos.Orders.Create(ctx, order); err != nil {
			return err
		}
		if err := repos.Carts.ClearItems(ctx, cart.ID); err != nil {
			return err
		}
		return repos.Carts.UpdateStatus(ctx, cart.ID, domain.CartStatusCheckedOut)
	})
	if err != nil {
		if !isDomainError(err) {
			s.logger.Error("checkout failed",
				zap.String("cart_id", cartID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("cart_id", cartID.String()),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)),
	)
	publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.OrderPlaced, order, ""))

	return order, nil
}

func newOrderFromItems(userID uuid.UUID, items []domain.CartItem, now time.Time) *domain.Order {
	order := &domain.Order{
		ID:           uuid.New(),
		UserID:       userID,
		Status:       domain.OrderStatusPending,
		Total:        decimal.Zero,
		Items:        make([]domain.OrderItem, 0, len(items)),
		CheckedOutAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for _, item := range items {
		line := domain.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			CreatedAt: now,
		}
		order.Items = append(order.Items, line)
		order.Total = order.Total.Add(line.Subtotal())
	}

	return order
}

// publish delivers event after the owning transaction has committed. The
// state change already happened, so failures are only logged.
func publish(ctx context.Context, publisher events.Publisher, logger *zap.Logger, event events.Event) {
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish order event",
			zap.String("type", string(event.Type)),
			zap.String("order_id", event.OrderID.String()),
			zap.Error(err),
		)
	}
}
