package repositorytest

import (
	"context"
	"sort"
	"strings"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/repository"

	"github.com/google/uuid"
)

type categoryRepo struct{ view }

func (r *categoryRepo) Create(_ context.Context, category *domain.Category) error {
	defer r.lock()()
	for _, c := range r.s.categories {
		if c.Slug == category.Slug {
			return repository.ErrCategorySlugTaken
		}
	}
	r.s.categories[category.ID] = cloneCategory(category)
	return nil
}

func (r *categoryRepo) Update(_ context.Context, category *domain.Category) error {
	defer r.lock()()
	if _, ok := r.s.categories[category.ID]; !ok {
		return repository.ErrCategoryNotFound
	}
	for _, c := range r.s.categories {
		if c.ID != category.ID && c.Slug == category.Slug {
			return repository.ErrCategorySlugTaken
		}
	}
	r.s.categories[category.ID] = cloneCategory(category)
	return nil
}

func (r *categoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.s.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	for pid, p := range r.s.products {
		if p.CategoryID != id {
			continue
		}
		if r.s.productOrdered(pid) {
			return repository.ErrCategoryOrdered
		}
	}
	for pid, p := range r.s.products {
		if p.CategoryID == id {
			r.s.deleteProduct(pid)
		}
	}
	delete(r.s.categories, id)
	return nil
}

func (r *categoryRepo) List(_ context.Context) ([]*domain.Category, error) {
	defer r.lock()()
	out := []*domain.Category{}
	for _, c := range r.s.categories {
		out = append(out, cloneCategory(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *categoryRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Category, error) {
	defer r.lock()()
	if c, ok := r.s.categories[id]; ok {
		return cloneCategory(c), nil
	}
	return nil, repository.ErrCategoryNotFound
}

func (r *categoryRepo) FindBySlug(_ context.Context, slug string) (*domain.Category, error) {
	defer r.lock()()
	for _, c := range r.s.categories {
		if c.Slug == slug {
			return cloneCategory(c), nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

type productRepo struct{ view }

func (r *productRepo) Create(_ context.Context, product *domain.Product) error {
	defer r.lock()()
	if err := r.checkWrite(product); err != nil {
		return err
	}
	r.s.products[product.ID] = cloneProduct(product)
	return nil
}

func (r *productRepo) Update(_ context.Context, product *domain.Product) error {
	defer r.lock()()
	if _, ok := r.s.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	if err := r.checkWrite(product); err != nil {
		return err
	}
	r.s.products[product.ID] = cloneProduct(product)
	return nil
}

func (r *productRepo) checkWrite(product *domain.Product) error {
	if _, ok := r.s.categories[product.CategoryID]; !ok {
		return repository.ErrProductCategoryGone
	}
	for _, p := range r.s.products {
		if p.ID != product.ID && p.Slug == product.Slug {
			return repository.ErrProductSlugTaken
		}
	}
	return nil
}

func (r *productRepo) Delete(_ context.Context, id uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.s.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	if r.s.productOrdered(id) {
		return repository.ErrProductOrdered
	}
	r.s.deleteProduct(id)
	return nil
}

func (r *productRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	defer r.lock()()
	if p, ok := r.s.products[id]; ok {
		return cloneProduct(p), nil
	}
	return nil, repository.ErrProductNotFound
}

func (r *productRepo) FindBySlug(_ context.Context, slug string) (*domain.Product, error) {
	defer r.lock()()
	for _, p := range r.s.products {
		if p.Slug == slug {
			return cloneProduct(p), nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (r *productRepo) List(_ context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	defer r.lock()()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := []*domain.Product{}
	for _, p := range r.s.products {
		if filter.CategorySlug != "" {
			c, ok := r.s.categories[p.CategoryID]
			if !ok || !strings.EqualFold(c.Slug, filter.CategorySlug) {
				continue
			}
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		if filter.InStock && p.Stock <= 0 {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		matched = append(matched, cloneProduct(p))
	}

	desc := filter.SortOrder != repository.SortOrderAsc
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var cmp int
		switch filter.SortBy {
		case "price":
			cmp = a.Price.Cmp(b.Price)
		case "name":
			cmp = strings.Compare(a.Name, b.Name)
		case "stock":
			cmp = a.Stock - b.Stock
		case "updated_at":
			cmp = a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		}
		if cmp == 0 {
			return strings.Compare(a.ID.String(), b.ID.String()) < 0
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) productOrdered(id uuid.UUID) bool {
	for _, o := range s.orders {
		for _, item := range o.Items {
			if item.ProductID == id {
				return true
			}
		}
	}
	return false
}

// deleteProduct mirrors ON DELETE CASCADE from cart_items
func (s *Store) deleteProduct(id uuid.UUID) {
	for itemID, item := range s.items {
		if item.ProductID == id {
			delete(s.items, itemID)
		}
	}
	delete(s.products, id)
}
