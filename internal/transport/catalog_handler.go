package transport

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/middleware"
	"ecommerce-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"omitempty,slug,max=100"`
}

type CategoryPatchRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=100"`
	Slug *string `json:"slug" validate:"omitempty,slug,max=100"`
}

type ProductRequest struct {
	CategoryID  string `json:"category_id" validate:"required,uuid"`
	Name        string `json:"name" validate:"required,max=200"`
	Slug        string `json:"slug" validate:"omitempty,slug,max=200"`
	Description string `json:"description"`
	Price       string `json:"price" validate:"required,price"`
	Stock       int    `json:"stock" validate:"gte=0"`
	Available   *bool  `json:"available"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

type ProductPatchRequest struct {
	CategoryID  *string `json:"category_id" validate:"omitempty,uuid"`
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Slug        *string `json:"slug" validate:"omitempty,slug,max=200"`
	Description *string `json:"description"`
	Price       *string `json:"price" validate:"omitempty,price"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
	Available   *bool   `json:"available"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
}

// CatalogHandler serves categories and products. Reads are public, writes
// require a staff principal.
type CatalogHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

func NewCatalogHandler(catalog service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

func (h *CatalogHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	staffOnly := chi.Chain(authMiddleware, middleware.RequireAdmin(h.logger))

	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Get("/{slug}", h.GetCategory)
		r.Get("/{slug}/products", h.CategoryProducts)

		r.Group(func(r chi.Router) {
			r.Use(staffOnly...)
			r.Post("/", h.CreateCategory)
			r.Patch("/{slug}", h.UpdateCategory)
			r.Delete("/{slug}", h.DeleteCategory)
		})
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{slug}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(staffOnly...)
			r.Post("/", h.CreateProduct)
			r.Patch("/{slug}", h.UpdateProduct)
			r.Delete("/{slug}", h.DeleteProduct)
		})
	})
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	out := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	middleware.RespondWithJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.catalog.GetCategory(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toCategoryResponse(category))
}

func (h *CatalogHandler) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.CategoryProducts(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductResponses(products))
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), service.CategoryInput{Name: req.Name, Slug: req.Slug})
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Category created", zap.String("slug", category.Slug))
	middleware.RespondWithJSON(w, http.StatusCreated, toCategoryResponse(category))
}

func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryPatchRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	category, err := h.catalog.UpdateCategory(r.Context(), chi.URLParam(r, "slug"), service.CategoryPatch{
		Name: req.Name,
		Slug: req.Slug,
	})
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toCategoryResponse(category))
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := h.catalog.DeleteCategory(r.Context(), slug); err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Category deleted", zap.String("slug", slug))
	w.WriteHeader(http.StatusNoContent)
}

// ListProducts supports category, min_price, max_price, in_stock, search,
// ordering, page and page_size query parameters
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query, err := parseProductQuery(r.URL.Query())
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	page, err := h.catalog.ListProducts(r.Context(), query)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductPageResponse(page))
}

func parseProductQuery(values url.Values) (service.ProductQuery, error) {
	query := service.ProductQuery{
		Category: values.Get("category"),
		Search:   strings.TrimSpace(values.Get("search")),
		Ordering: values.Get("ordering"),
	}

	var err error
	if query.MinPrice, err = parseDecimalParam(values, "min_price"); err != nil {
		return query, err
	}
	if query.MaxPrice, err = parseDecimalParam(values, "max_price"); err != nil {
		return query, err
	}
	if query.Page, err = parseIntParam(values, "page"); err != nil {
		return query, err
	}
	if query.PageSize, err = parseIntParam(values, "page_size"); err != nil {
		return query, err
	}

	switch strings.ToLower(values.Get("in_stock")) {
	case "", "false", "0":
	case "true", "1":
		query.InStock = true
	default:
		return query, domain.NewValidationError("in_stock", "must be a boolean")
	}
	return query, nil
}

func parseDecimalParam(values url.Values, name string) (*decimal.Decimal, error) {
	raw := values.Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, domain.NewValidationError(name, "must be a number")
	}
	return &d, nil
}

func parseIntParam(values url.Values, name string) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return n, nil
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	categoryID, ok := uuidField(w, "category_id", req.CategoryID)
	if !ok {
		return
	}
	price, ok := priceField(w, "price", req.Price)
	if !ok {
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), service.ProductInput{
		CategoryID:  categoryID,
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Price:       price,
		Stock:       req.Stock,
		Available:   req.Available,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Product created", zap.String("slug", product.Slug), zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductPatchRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	patch := service.ProductPatch{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Stock:       req.Stock,
		Available:   req.Available,
		ImageURL:    req.ImageURL,
	}
	if req.CategoryID != nil {
		id, ok := uuidField(w, "category_id", *req.CategoryID)
		if !ok {
			return
		}
		patch.CategoryID = &id
	}
	if req.Price != nil {
		price, ok := priceField(w, "price", *req.Price)
		if !ok {
			return
		}
		patch.Price = &price
	}

	product, err := h.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "slug"), patch)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := h.catalog.DeleteProduct(r.Context(), slug); err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Product deleted", zap.String("slug", slug))
	w.WriteHeader(http.StatusNoContent)
}
