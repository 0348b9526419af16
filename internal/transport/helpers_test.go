package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"ecommerce-api/internal/events"
	"ecommerce-api/internal/middleware"
	"ecommerce-api/internal/repository/repositorytest"
	"ecommerce-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

var userSeq atomic.Int64

// testAPI routes requests through every handler backed by an in-memory store
type testAPI struct {
	t      *testing.T
	store  *repositorytest.Store
	router chi.Router
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := zap.NewNop()
	store := repositorytest.NewStore()
	publisher := events.NewLogPublisher(logger)

	users := service.NewUserService(store.Users(), store.RefreshTokens(), testSecret, 0, 0)
	catalog := service.NewCatalogService(store.Categories(), store.Products())
	carts := service.NewCartService(store.Carts(), store.Products(), store, logger)
	checkout := service.NewCheckoutService(store, publisher, logger)
	orders := service.NewOrderService(store.Orders(), store, publisher, false, logger)

	router := chi.NewRouter()
	router.NotFound(middleware.NotFoundHandler)
	router.MethodNotAllowed(middleware.MethodNotAllowedHandler)

	auth := middleware.AuthMiddleware(testSecret, logger)
	NewUserHandler(users, logger).RegisterRoutes(router, auth)
	NewCatalogHandler(catalog, logger).RegisterRoutes(router, auth)
	NewCartHandler(carts, checkout, logger).RegisterRoutes(router, auth)
	NewOrderHandler(orders, logger).RegisterRoutes(router, auth)

	return &testAPI{t: t, store: store, router: router}
}

// do sends body as JSON. A nil body sends no payload; a string is sent raw.
func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// login registers a fresh user and returns its access token and id
func (a *testAPI) login() (string, uuid.UUID) {
	a.t.Helper()
	return a.loginAs(false)
}

func (a *testAPI) staffLogin() (string, uuid.UUID) {
	a.t.Helper()
	return a.loginAs(true)
}

func (a *testAPI) loginAs(staff bool) (string, uuid.UUID) {
	a.t.Helper()

	username := fmt.Sprintf("user%d", userSeq.Add(1))
	w := a.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "Secret123!",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	var profile UserProfile
	decodeJSON(a.t, w, &profile)
	id := uuid.MustParse(profile.ID)
	if staff {
		a.store.PromoteUser(id)
	}

	w = a.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: username, Password: "Secret123!"})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var resp LoginResponse
	decodeJSON(a.t, w, &resp)
	return resp.AccessToken, id
}

// seedProduct creates a category and a product through the staff API
func (a *testAPI) seedProduct(staffToken, name, price string) ProductResponse {
	a.t.Helper()

	categorySlug := "cat-" + uuid.NewString()[:8]
	w := a.do(http.MethodPost, "/api/categories", staffToken, CategoryRequest{Name: "Category", Slug: categorySlug})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var category CategoryResponse
	decodeJSON(a.t, w, &category)

	w = a.do(http.MethodPost, "/api/products", staffToken, ProductRequest{
		CategoryID: category.ID,
		Name:       name,
		Price:      price,
		Stock:      10,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var product ProductResponse
	decodeJSON(a.t, w, &product)
	return product
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// errorBody decodes the JSON error envelope
func errorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorDetail {
	t.Helper()
	var resp middleware.ErrorResponse
	decodeJSON(t, w, &resp)
	return resp.Error
}
