package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var (
	maxPrice     = decimal.New(1, 8) // DECIMAL(10, 2)
	slugInvalid  = regexp.MustCompile(`[^a-z0-9_\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
	slugPattern  = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

// Slugify folds name to a lowercase ASCII slug
func Slugify(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	ascii := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)

	slug := slugInvalid.ReplaceAllString(strings.ToLower(ascii), "")
	slug = slugCollapse.ReplaceAllString(strings.TrimSpace(slug), "-")
	return strings.Trim(slug, "-_")
}

// CategoryInput creates a category. Slug is derived from Name when empty.
type CategoryInput struct {
	Name string
	Slug string
}

// CategoryPatch holds the category fields to change
type CategoryPatch struct {
	Name *string
	Slug *string
}

// ProductInput creates a product. Available defaults to true.
type ProductInput struct {
	CategoryID  uuid.UUID
	Name        string
	Slug        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Available   *bool
	ImageURL    string
}

// ProductPatch holds the product fields to change. When Name changes and Slug
// is nil the slug is regenerated.
type ProductPatch struct {
	CategoryID  *uuid.UUID
	Name        *string
	Slug        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Available   *bool
	ImageURL    *string
}

// ProductQuery is the public product listing query
type ProductQuery struct {
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	InStock  bool
	Search   string
	// Ordering is one of price, created, updated, optionally prefixed with "-"
	Ordering string
	Page     int
	PageSize int
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Count    int               `json:"count"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Results  []*domain.Product `json:"results"`
}

// CatalogService is the read-mostly catalog store. Writes are staff-only and
// gated at the transport layer.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	GetCategory(ctx context.Context, slug string) (*domain.Category, error)
	CreateCategory(ctx context.Context, input CategoryInput) (*domain.Category, error)
	UpdateCategory(ctx context.Context, slug string, patch CategoryPatch) (*domain.Category, error)
	DeleteCategory(ctx context.Context, slug string) error
	CategoryProducts(ctx context.Context, slug string) ([]*domain.Product, error)

	ListProducts(ctx context.Context, query ProductQuery) (*ProductPage, error)
	GetProduct(ctx context.Context, slug string) (*domain.Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, slug string, patch ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, slug string) error
}

type catalogService struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(categories repository.CategoryRepository, products repository.ProductRepository) CatalogService {
	return &catalogService{categories: categories, products: products}
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *catalogService) GetCategory(ctx context.Context, slug string) (*domain.Category, error) {
	category, err := s.categories.FindBySlug(ctx, slug)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return category, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "name is required")
	}

	slug, err := resolveSlug(input.Slug, name)
	if err != nil {
		return nil, err
	}

	category := &domain.Category{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug,
		CreatedAt: time.Now(),
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, translateRepoError(err)
	}
	return category, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, slug string, patch CategoryPatch) (*domain.Category, error) {
	category, err := s.categories.FindBySlug(ctx, slug)
	if err != nil {
		return nil, translateRepoError(err)
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, domain.NewValidationError("name", "name is required")
		}
		category.Name = name
	}
	if patch.Slug != nil {
		if category.Slug, err = resolveSlug(*patch.Slug, category.Name); err != nil {
			return nil, err
		}
	}

	if err := s.categories.Update(ctx, category); err != nil {
		return nil, translateRepoError(err)
	}
	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, slug string) error {
	category, err := s.categories.FindBySlug(ctx, slug)
	if err != nil {
		return translateRepoError(err)
	}

	// The cascade removes these rows without passing through the product
	// repository, so cached copies are dropped by hand afterwards
	doomed, err := s.productsIn(ctx, category)
	if err != nil {
		return err
	}

	if err := s.categories.Delete(ctx, category.ID); err != nil {
		return translateRepoError(err)
	}

	if evictor, ok := s.products.(repository.ProductCacheEvictor); ok {
		evictor.Evict(ctx, doomed...)
	}
	return nil
}

func (s *catalogService) CategoryProducts(ctx context.Context, slug string) ([]*domain.Product, error) {
	category, err := s.categories.FindBySlug(ctx, slug)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return s.productsIn(ctx, category)
}

// productsIn lists every product of category, unpaginated like the category
// detail action it serves
func (s *catalogService) productsIn(ctx context.Context, category *domain.Category) ([]*domain.Product, error) {
	products, _, err := s.products.List(ctx, repository.ProductFilter{
		CategorySlug: category.Slug,
		PageSize:     1 << 30,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list category products: %w", err)
	}
	return products, nil
}

func (s *catalogService) ListProducts(ctx context.Context, query ProductQuery) (*ProductPage, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	sortBy, order := parseOrdering(query.Ordering)
	products, total, err := s.products.List(ctx, repository.ProductFilter{
		CategorySlug: strings.TrimSpace(query.Category),
		MinPrice:     query.MinPrice,
		MaxPrice:     query.MaxPrice,
		InStock:      query.InStock,
		Search:       query.Search,
		SortBy:       sortBy,
		SortOrder:    order,
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return &ProductPage{Count: total, Page: page, PageSize: pageSize, Results: products}, nil
}

// parseOrdering maps the public ordering names onto columns. Unknown names
// fall back to newest first.
func parseOrdering(ordering string) (string, repository.SortOrder) {
	order := repository.SortOrderAsc
	field := strings.TrimSpace(ordering)
	if strings.HasPrefix(field, "-") {
		order = repository.SortOrderDesc
		field = field[1:]
	}

	switch field {
	case "price":
		return "price", order
	case "created":
		return "created_at", order
	case "updated":
		return "updated_at", order
	}
	return "created_at", repository.SortOrderDesc
}

func (s *catalogService) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	product, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.NewValidationError("name", "name is required")
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if input.Stock < 0 {
		return nil, domain.NewValidationError("stock", "stock must not be negative")
	}

	slug, err := resolveSlug(input.Slug, name)
	if err != nil {
		return nil, err
	}

	available := true
	if input.Available != nil {
		available = *input.Available
	}

	now := time.Now()
	product := &domain.Product{
		ID:          uuid.New(),
		CategoryID:  input.CategoryID,
		Name:        name,
		Slug:        slug,
		Description: input.Description,
		Price:       input.Price,
		Stock:       input.Stock,
		Available:   available,
		ImageURL:    input.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, translateRepoError(err)
	}
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, slug string, patch ProductPatch) (*domain.Product, error) {
	product, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		return nil, translateRepoError(err)
	}

	if patch.CategoryID != nil {
		product.CategoryID = *patch.CategoryID
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, domain.NewValidationError("name", "name is required")
		}
		product.Name = name
	}
	switch {
	case patch.Slug != nil:
		if product.Slug, err = resolveSlug(*patch.Slug, product.Name); err != nil {
			return nil, err
		}
	case patch.Name != nil:
		if product.Slug, err = resolveSlug("", product.Name); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return nil, err
		}
		product.Price = *patch.Price
	}
	if patch.Stock != nil {
		if *patch.Stock < 0 {
			return nil, domain.NewValidationError("stock", "stock must not be negative")
		}
		product.Stock = *patch.Stock
	}
	if patch.Available != nil {
		product.Available = *patch.Available
	}
	if patch.ImageURL != nil {
		product.ImageURL = *patch.ImageURL
	}
	product.UpdatedAt = time.Now()

	if err := s.products.Update(ctx, product); err != nil {
		return nil, translateRepoError(err)
	}
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, slug string) error {
	product, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		return translateRepoError(err)
	}
	if err := s.products.Delete(ctx, product.ID); err != nil {
		return translateRepoError(err)
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return domain.NewValidationError("price", "price must not be negative")
	}
	if !price.Equal(price.Round(2)) {
		return domain.NewValidationError("price", "price must have at most 2 decimal places")
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return domain.NewValidationError("price", "price is too large")
	}
	return nil
}

// resolveSlug validates an explicit slug or derives one from name
func resolveSlug(slug, name string) (string, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = Slugify(name)
		if slug == "" {
			return "", domain.NewValidationError("slug", "cannot derive a slug from the name")
		}
		return slug, nil
	}
	if !slugPattern.MatchString(slug) {
		return "", domain.NewValidationError("slug", "slug may only contain lowercase letters, numbers, underscores and hyphens")
	}
	return slug, nil
}
