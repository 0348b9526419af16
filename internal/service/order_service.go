package service

import (
	"context"
	"fmt"
	"strings"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/events"
	"ecommerce-api/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService manages orders after checkout. Orders are never created or
// replaced directly.
type OrderService interface {
	// ListOrders returns every order for staff and the caller's own otherwise
	ListOrders(ctx context.Context, principal domain.Principal) ([]*domain.Order, error)
	MyOrders(ctx context.Context, principal domain.Principal) ([]*domain.Order, error)
	GetOrder(ctx context.Context, principal domain.Principal, orderID uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, principal domain.Principal, orderID uuid.UUID, status string) (*domain.Order, error)
	Cancel(ctx context.Context, principal domain.Principal, orderID uuid.UUID) (*domain.Order, error)
	Create(ctx context.Context, principal domain.Principal) error
	Replace(ctx context.Context, principal domain.Principal, orderID uuid.UUID) error
}

type orderService struct {
	orders    repository.OrderRepository
	tx        repository.TxManager
	publisher events.Publisher
	strict    bool
	logger    *zap.Logger
}

// NewOrderService creates a new instance of OrderService. With strict set,
// UpdateStatus only accepts moves allowed by the order state machine.
func NewOrderService(
	orders repository.OrderRepository,
	tx repository.TxManager,
	publisher events.Publisher,
	strict bool,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orders:    orders,
		tx:        tx,
		publisher: publisher,
		strict:    strict,
		logger:    logger,
	}
}

func (s *orderService) ListOrders(ctx context.Context, principal domain.Principal) ([]*domain.Order, error) {
	if !principal.IsStaff() {
		return s.MyOrders(ctx, principal)
	}
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *orderService) MyOrders(ctx context.Context, principal domain.Principal) ([]*domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *orderService) GetOrder(ctx context.Context, principal domain.Principal, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if !principal.IsStaff() && !principal.Owns(order.UserID) {
		return nil, domain.NewNotFoundError("order")
	}
	return order, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, principal domain.Principal, orderID uuid.UUID, status string) (*domain.Order, error) {
	if strings.TrimSpace(status) == "" {
		return nil, domain.NewValidationError("status", "status is required")
	}
	if !principal.IsStaff() {
		return nil, domain.NewAuthorizationError("only staff can change order status")
	}
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	order, previous, err := s.transition(ctx, orderID, func(order *domain.Order) (bool, error) {
		if order.Status == next {
			return false, nil
		}
		if s.strict && !order.Status.CanTransitionTo(next) {
			return false, domain.NewInvalidStateError("cannot move order from %s to %s", order.Status, next)
		}
		order.Status = next
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if previous != "" {
		s.logger.Info("order status changed",
			zap.String("order_id", order.ID.String()),
			zap.String("from", previous.String()),
			zap.String("to", order.Status.String()),
		)
		publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.OrderStatusChanged, order, previous))
	}
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, principal domain.Principal, orderID uuid.UUID) (*domain.Order, error) {
	order, previous, err := s.transition(ctx, orderID, func(order *domain.Order) (bool, error) {
		if !principal.Owns(order.UserID) {
			return false, domain.NewAuthorizationError("only the order owner can cancel it")
		}
		switch {
		case order.IsCancelled():
			return false, nil
		case order.Status.IsTerminal():
			return false, domain.NewInvalidStateError("cannot cancel a %s order", order.Status)
		}
		order.Status = domain.OrderStatusCancelled
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if previous != "" {
		s.logger.Info("order cancelled",
			zap.String("order_id", order.ID.String()),
			zap.String("from", previous.String()),
		)
		publish(ctx, s.publisher, s.logger, events.NewOrderEvent(events.OrderCancelled, order, previous))
	}
	return order, nil
}

// transition locks the order and lets apply mutate its status. When apply
// reports a change the new status is persisted and the prior status returned;
// otherwise previous is empty and the order is returned untouched.
func (s *orderService) transition(
	ctx context.Context,
	orderID uuid.UUID,
	apply func(order *domain.Order) (bool, error),
) (order *domain.Order, previous domain.OrderStatus, err error) {
	err = s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		order, err = repos.Orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return translateRepoError(err)
		}

		current := order.Status
		changed, err := apply(order)
		if err != nil || !changed {
			return err
		}

		updatedAt, err := repos.Orders.UpdateStatus(ctx, order.ID, order.Status)
		if err != nil {
			return translateRepoError(err)
		}
		order.UpdatedAt = updatedAt
		previous = current
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return order, previous, nil
}

func (s *orderService) Create(context.Context, domain.Principal) error {
	return &domain.MethodNotAllowedError{Message: "orders are created by checking out a cart"}
}

func (s *orderService) Replace(context.Context, domain.Principal, uuid.UUID) error {
	return &domain.MethodNotAllowedError{Message: "orders cannot be replaced"}
}
