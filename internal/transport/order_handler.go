package transport

import (
	"net/http"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/middleware"
	"ecommerce-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderStatusRequest is the staff status update payload. Status is checked by
// the service so that a missing value is reported before authorization.
type OrderStatusRequest struct {
	Status string `json:"status"`
}

// OrderHandler serves the order endpoints. Orders only come into existence
// through checkout, so create, replace and delete answer 405.
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListOrders)
		r.Post("/", h.CreateOrder)
		r.Get("/my-orders", h.MyOrders)
		r.Get("/{id}", h.GetOrder)
		r.Patch("/{id}", h.UpdateStatus)
		r.Put("/{id}", h.ReplaceOrder)
		r.Delete("/{id}", h.DeleteOrder)
		r.Post("/{id}/cancel", h.CancelOrder)
	})
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), principal)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *OrderHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}

	orders, err := h.orders.MyOrders(r.Context(), principal)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := idParam(w, r, "order")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), principal, orderID)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toOrderResponse(order))
}

// UpdateStatus lets staff move an order to a new status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := idParam(w, r, "order")
	if !ok {
		return
	}

	var req OrderStatusRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), principal, orderID, req.Status)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toOrderResponse(order))
}

// CancelOrder cancels the caller's own order. Repeating it is a no-op.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := idParam(w, r, "order")
	if !ok {
		return
	}

	order, err := h.orders.Cancel(r.Context(), principal, orderID)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	respondWithDomainError(w, r, h.logger, h.orders.Create(r.Context(), principal))
}

func (h *OrderHandler) ReplaceOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := idParam(w, r, "order")
	if !ok {
		return
	}
	respondWithDomainError(w, r, h.logger, h.orders.Replace(r.Context(), principal, orderID))
}

func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	respondWithDomainError(w, r, h.logger, &domain.MethodNotAllowedError{Message: "orders cannot be deleted"})
}
