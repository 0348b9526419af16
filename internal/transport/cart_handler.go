package transport

import (
	"net/http"

	"ecommerce-api/internal/middleware"
	"ecommerce-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddItemRequest adds a product to the caller's active cart. Quantity
// defaults to 1.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  *int   `json:"quantity" validate:"omitempty,max=10000"`
}

type UpdateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=10000"`
}

// CartHandler serves the cart, cart item and checkout endpoints. Every route
// requires authentication.
type CartHandler struct {
	carts    service.CartService
	checkout service.CheckoutService
	logger   *zap.Logger
}

func NewCartHandler(carts service.CartService, checkout service.CheckoutService, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, checkout: checkout, logger: logger}
}

func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListCarts)
		r.Get("/my-cart", h.MyCart)
		r.Get("/{id}", h.GetCart)
		r.Post("/{id}/checkout", h.Checkout)
	})

	r.Route("/api/cart-items", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListItems)
		r.Post("/", h.AddItem)
		r.Get("/{id}", h.GetItem)
		r.Put("/{id}", h.UpdateItem)
		r.Patch("/{id}", h.UpdateItem)
		r.Delete("/{id}", h.RemoveItem)
	})
}

func (h *CartHandler) ListCarts(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}

	carts, err := h.carts.ListCarts(r.Context(), principal)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	out := make([]CartResponse, 0, len(carts))
	for _, c := range carts {
		out = append(out, toCartResponse(c))
	}
	middleware.RespondWithJSON(w, http.StatusOK, out)
}

// MyCart returns the caller's active cart, creating it on first use
func (h *CartHandler) MyCart(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}

	cart, err := h.carts.GetOrCreateActiveCart(r.Context(), principal.UserID)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	cartID, ok := idParam(w, r, "cart")
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(r.Context(), principal, cartID)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toCartResponse(cart))
}

// Checkout converts the cart into a pending order
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	cartID, ok := idParam(w, r, "cart")
	if !ok {
		return
	}

	order, err := h.checkout.Checkout(r.Context(), principal, cartID)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *CartHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}

	items, err := h.carts.ListItems(r.Context(), principal)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toCartItemResponses(items))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}

	var req AddItemRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	productID, ok := uuidField(w, "product_id", req.ProductID)
	if !ok {
		return
	}

	item, err := h.carts.AddItem(r.Context(), principal, productID, quantity)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, toCartItemResponse(item))
}

func (h *CartHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	itemID, ok := idParam(w, r, "cart item")
	if !ok {
		return
	}

	item, err := h.carts.GetItem(r.Context(), principal, itemID)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toCartItemResponse(item))
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	itemID, ok := idParam(w, r, "cart item")
	if !ok {
		return
	}

	var req UpdateItemRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	item, err := h.carts.UpdateItem(r.Context(), principal, itemID, *req.Quantity)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toCartItemResponse(item))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}
	itemID, ok := idParam(w, r, "cart item")
	if !ok {
		return
	}

	if err := h.carts.RemoveItem(r.Context(), principal, itemID); err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
