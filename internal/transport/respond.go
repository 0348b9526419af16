package transport

import (
	"errors"
	"io"
	"net/http"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/middleware"
	"ecommerce-api/internal/repository"
	"ecommerce-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// respondWithDomainError maps service errors onto HTTP statuses. Anything it
// does not recognise is logged and reported as a 500 without details.
func respondWithDomainError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var (
		validation  *domain.ValidationError
		state       *domain.InvalidStateError
		empty       *domain.EmptyCartError
		authz       *domain.AuthorizationError
		notFound    *domain.NotFoundError
		notAllowed  *domain.MethodNotAllowedError
		conflict    *domain.ConflictError
		status      int
		message     string
		validations []middleware.ValidationError
	)

	switch {
	case errors.As(err, &validation):
		status, message = http.StatusBadRequest, validation.Error()
		if validation.Field != "" {
			validations = []middleware.ValidationError{{Field: validation.Field, Message: validation.Message}}
		}
	case errors.As(err, &state):
		status, message = http.StatusBadRequest, state.Error()
	case errors.As(err, &empty):
		status, message = http.StatusBadRequest, empty.Error()
	case errors.As(err, &authz):
		status, message = http.StatusForbidden, authz.Error()
	case errors.As(err, &notFound):
		status, message = http.StatusNotFound, notFound.Error()
	case errors.As(err, &notAllowed):
		status, message = http.StatusMethodNotAllowed, notAllowed.Error()
	case errors.As(err, &conflict):
		status, message = http.StatusConflict, conflict.Error()
	case errors.Is(err, repository.ErrUserAlreadyExists):
		status, message = http.StatusConflict, "user with this email already exists"
	case errors.Is(err, repository.ErrUsernameTaken):
		status, message = http.StatusConflict, "username already taken"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrInvalidToken):
		status, message = http.StatusUnauthorized, "invalid refresh token"
	case errors.Is(err, service.ErrTokenExpired):
		status, message = http.StatusUnauthorized, "refresh token expired"
	default:
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.Debug("Request rejected",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)

	if len(validations) > 0 {
		middleware.RespondWithErrorDetails(w, status, message, map[string]interface{}{
			"validation_errors": validations,
		})
		return
	}
	middleware.RespondWithError(w, status, message)
}

// decodeRequest decodes and validates the JSON body into v. It writes the
// error response itself and reports whether the handler may continue.
func decodeRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	err := middleware.DecodeAndValidate(r, v)
	if err == nil {
		return true
	}

	logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return false
	}
	if errors.Is(err, io.EOF) {
		middleware.RespondWithError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
	return false
}

// requirePrincipal returns the authenticated caller or writes a 401
func requirePrincipal(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (domain.Principal, bool) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		logger.Error("Principal not found in context", zap.String("path", r.URL.Path))
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
	}
	return principal, ok
}

// idParam parses the {id} URL parameter. Malformed ids cannot name an
// existing resource, so they are reported as not found.
func idParam(w http.ResponseWriter, r *http.Request, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, domain.NewNotFoundError(resource).Error())
		return uuid.Nil, false
	}
	return id, true
}

// uuidField parses a body field. The validator normally rejects bad values
// first; a miss still answers 400 rather than panicking.
func uuidField(w http.ResponseWriter, field, value string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: field, Message: field + " must be a valid UUID"},
		})
		return uuid.Nil, false
	}
	return id, true
}

// priceField parses a decimal body field, answering 400 when it is malformed
func priceField(w http.ResponseWriter, field, value string) (decimal.Decimal, bool) {
	price, err := decimal.NewFromString(value)
	if err != nil {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: field, Message: field + " must be a decimal number"},
		})
		return decimal.Zero, false
	}
	return price, true
}
