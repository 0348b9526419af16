package service

import (
	"errors"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/repository"
)

// translateRepoError maps repository sentinels to domain errors. Anything
// else passes through unchanged.
func translateRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrCategoryNotFound):
		return domain.NewNotFoundError("category")
	case errors.Is(err, repository.ErrProductNotFound):
		return domain.NewNotFoundError("product")
	case errors.Is(err, repository.ErrCartNotFound):
		return domain.NewNotFoundError("cart")
	case errors.Is(err, repository.ErrCartItemNotFound):
		return domain.NewNotFoundError("cart item")
	case errors.Is(err, repository.ErrOrderNotFound):
		return domain.NewNotFoundError("order")
	case errors.Is(err, repository.ErrCategorySlugTaken), errors.Is(err, repository.ErrProductSlugTaken):
		return &domain.ConflictError{Message: err.Error()}
	case errors.Is(err, repository.ErrCategoryOrdered), errors.Is(err, repository.ErrProductOrdered):
		return &domain.ConflictError{Message: err.Error()}
	case errors.Is(err, repository.ErrCartItemQuantityLimit):
		return quantityLimitError()
	case errors.Is(err, repository.ErrProductCategoryGone):
		return domain.NewValidationError("category", err.Error())
	}
	return err
}

// isDomainError reports whether err is one of the typed business errors
func isDomainError(err error) bool {
	var (
		validation *domain.ValidationError
		state      *domain.InvalidStateError
		empty      *domain.EmptyCartError
		authz      *domain.AuthorizationError
		notFound   *domain.NotFoundError
	)
	return errors.As(err, &validation) || errors.As(err, &state) || errors.As(err, &empty) ||
		errors.As(err, &authz) || errors.As(err, &notFound)
}
