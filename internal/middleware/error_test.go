package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// statuses the API actually emits through the error envelope
var apiErrorStatuses = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusMethodNotAllowed,
	http.StatusConflict,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusServiceUnavailable,
}

func decodeEnvelope(w *httptest.ResponseRecorder) (ErrorDetail, bool) {
	if w.Header().Get("Content-Type") != "application/json" {
		return ErrorDetail{}, false
	}
	var response ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		return ErrorDetail{}, false
	}
	return response.Error, true
}

// Feature: ecommerce-api, Property 51: Errors have consistent structure
func TestProperty_ErrorsHaveConsistentStructure(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("envelope carries status text, message and RFC3339 timestamp", prop.ForAll(
		func(idx int, message string) bool {
			status := apiErrorStatuses[idx]
			w := httptest.NewRecorder()
			RespondWithError(w, status, message)

			detail, ok := decodeEnvelope(w)
			if !ok || w.Code != status {
				return false
			}
			_, err := time.Parse(time.RFC3339, detail.Timestamp)
			return err == nil &&
				detail.Code == http.StatusText(status) &&
				detail.Message == message &&
				detail.Details == nil
		},
		gen.IntRange(0, len(apiErrorStatuses)-1),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("details survive the round trip", prop.ForAll(
		func(key, value string) bool {
			w := httptest.NewRecorder()
			RespondWithErrorDetails(w, http.StatusConflict, "conflict", map[string]interface{}{key: value})

			detail, ok := decodeEnvelope(w)
			return ok && detail.Details[key] == value
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRespondWithValidationErrors(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithValidationErrors(w, []ValidationError{
		{Field: "quantity", Message: "quantity must be at least 1"},
		{Field: "product_id", Message: "product_id is required"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	detail, ok := decodeEnvelope(w)
	require.True(t, ok)
	assert.Equal(t, "Bad Request", detail.Code)
	assert.Equal(t, "validation failed", detail.Message)

	fields, ok := detail.Details["validation_errors"].([]interface{})
	require.True(t, ok, "validation_errors should be a list")
	require.Len(t, fields, 2)
	assert.Equal(t, "quantity", fields[0].(map[string]interface{})["field"])
}

func TestRespondWithJSON(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithJSON(w, http.StatusCreated, map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"pending"}`, w.Body.String())

	w = httptest.NewRecorder()
	RespondWithJSON(w, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestErrorHandlingMiddleware_RecoversPanics(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/cart/1/checkout", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	detail, ok := decodeEnvelope(w)
	require.True(t, ok)
	assert.Equal(t, "internal server error", detail.Message)
}

func TestErrorHandlingMiddleware_RepanicsOnAbort(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestFallbackHandlers(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowedHandler(w, httptest.NewRequest(http.MethodPut, "/api/orders/1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	detail, ok := decodeEnvelope(w)
	require.True(t, ok)
	assert.Equal(t, "Method Not Allowed", detail.Code)
	assert.Contains(t, detail.Message, "PUT")

	w = httptest.NewRecorder()
	NotFoundHandler(w, httptest.NewRequest(http.MethodGet, "/api/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	detail, ok = decodeEnvelope(w)
	require.True(t, ok)
	assert.Equal(t, "Not Found", detail.Code)
}
