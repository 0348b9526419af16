package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ecommerce-api/internal/config"
	"ecommerce-api/internal/events"
	"ecommerce-api/internal/middleware"
	"ecommerce-api/internal/repository/repositorytest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: "0", Env: "development"},
		JWT:       config.JWTConfig{Secret: "server-test-secret", AccessExpiry: 15, RefreshExpiry: 7},
		RateLimit: config.RateLimitConfig{Requests: 1000, Window: time.Minute},
	}
}

func testDeps(store *repositorytest.Store) Dependencies {
	return Dependencies{
		Users:         store.Users(),
		RefreshTokens: store.RefreshTokens(),
		Categories:    store.Categories(),
		Products:      store.Products(),
		Carts:         store.Carts(),
		Orders:        store.Orders(),
		Tx:            store,
		Publisher:     events.NewLogPublisher(zap.NewNop()),
	}
}

func send(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:5555"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestRouter_Health(t *testing.T) {
	store := repositorytest.NewStore()
	router := NewRouter(testConfig(), zap.NewNop(), testDeps(store))
	assert.Equal(t, http.StatusOK, send(t, router, http.MethodGet, "/health", "", nil).Code)

	deps := testDeps(store)
	deps.Health = func() map[string]string { return map[string]string{"status": "down"} }
	router = NewRouter(testConfig(), zap.NewNop(), deps)
	assert.Equal(t, http.StatusServiceUnavailable, send(t, router, http.MethodGet, "/health", "", nil).Code)
}

func TestRouter_UnknownRoutesUseErrorEnvelope(t *testing.T) {
	router := NewRouter(testConfig(), zap.NewNop(), testDeps(repositorytest.NewStore()))

	for path, method := range map[string]string{
		"/api/nothing-here": http.MethodGet,
		"/api/categories":   http.MethodPut,
	} {
		w := send(t, router, method, path, "", nil)
		var resp middleware.ErrorResponse
		decode(t, w, &resp)
		assert.NotEmpty(t, resp.Error.Code, path)
		assert.NotEmpty(t, resp.Error.Timestamp, path)
		assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, w.Code, path)
	}
	assert.Equal(t, http.StatusMethodNotAllowed, send(t, router, http.MethodPut, "/api/categories", "", nil).Code)
}

func TestRouter_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Requests: 2, Window: time.Hour}
	deps := testDeps(repositorytest.NewStore())
	deps.Limiter = middleware.NewLocalLimiter(rateLimitConfig(cfg))
	router := NewRouter(cfg, zap.NewNop(), deps)

	assert.Equal(t, http.StatusOK, send(t, router, http.MethodGet, "/api/categories", "", nil).Code)
	assert.Equal(t, http.StatusOK, send(t, router, http.MethodGet, "/api/categories", "", nil).Code)
	w := send(t, router, http.MethodGet, "/api/categories", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := NewRouter(testConfig(), zap.NewNop(), testDeps(repositorytest.NewStore()))

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

// TestRouter_OrderFlow walks one customer from sign-up to a cancelled order
func TestRouter_OrderFlow(t *testing.T) {
	store := repositorytest.NewStore()
	router := NewRouter(testConfig(), zap.NewNop(), testDeps(store))

	register := func(username string) (token string) {
		w := send(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": username, "email": username + "@example.com", "password": "Secret123!",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var profile struct {
			ID string `json:"id"`
		}
		decode(t, w, &profile)
		if username == "admin" {
			promote(t, store, profile.ID)
		}

		w = send(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": username, "password": "Secret123!",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var tokens struct {
			AccessToken string `json:"access_token"`
		}
		decode(t, w, &tokens)
		return tokens.AccessToken
	}

	admin := register("admin")
	shopper := register("shopper")

	w := send(t, router, http.MethodPost, "/api/categories", admin, map[string]string{"name": "Tea"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var category struct {
		ID string `json:"id"`
	}
	decode(t, w, &category)

	w = send(t, router, http.MethodPost, "/api/products", admin, map[string]interface{}{
		"category_id": category.ID, "name": "Sencha", "price": "12.40", "stock": 20,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var product struct {
		ID string `json:"id"`
	}
	decode(t, w, &product)

	w = send(t, router, http.MethodPost, "/api/cart-items", shopper, map[string]interface{}{
		"product_id": product.ID, "quantity": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = send(t, router, http.MethodGet, "/api/cart/my-cart", shopper, nil)
	var cart struct {
		ID    string `json:"id"`
		Total string `json:"total"`
	}
	decode(t, w, &cart)
	assert.Equal(t, "24.80", cart.Total)

	w = send(t, router, http.MethodPost, "/api/cart/"+cart.ID+"/checkout", shopper, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Total  string `json:"total"`
	}
	decode(t, w, &order)
	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, "24.80", order.Total)

	w = send(t, router, http.MethodPatch, "/api/orders/"+order.ID, admin, map[string]string{"status": "processing"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = send(t, router, http.MethodPost, "/api/orders/"+order.ID+"/cancel", shopper, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &order)
	assert.Equal(t, "cancelled", order.Status)

	// Deleting an ordered product is refused
	w = send(t, router, http.MethodDelete, "/api/products/sencha", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func promote(t *testing.T, store *repositorytest.Store, id string) {
	t.Helper()
	userID, err := uuid.Parse(id)
	require.NoError(t, err)
	store.PromoteUser(userID)
}
