package transport

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// placeOrder checks out a one-line cart for token and returns the order
func (a *testAPI) placeOrder(token string, product ProductResponse) OrderResponse {
	a.t.Helper()

	w := a.do(http.MethodPost, "/api/cart-items", token, AddItemRequest{ProductID: product.ID})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/api/cart/my-cart", token, nil)
	var cart CartResponse
	decodeJSON(a.t, w, &cart)

	w = a.do(http.MethodPost, "/api/cart/"+cart.ID+"/checkout", token, nil)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var order OrderResponse
	decodeJSON(a.t, w, &order)
	return order
}

func TestOrders_Visibility(t *testing.T) {
	api := newTestAPI(t)
	staff, _ := api.staffLogin()
	product := api.seedProduct(staff, "Mug", "7.00")

	alice, _ := api.login()
	bob, _ := api.login()
	aliceOrder := api.placeOrder(alice, product)
	api.placeOrder(bob, product)

	list := func(token, path string) []OrderResponse {
		t.Helper()
		w := api.do(http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var orders []OrderResponse
		decodeJSON(t, w, &orders)
		return orders
	}

	assert.Len(t, list(alice, "/api/orders"), 1)
	assert.Len(t, list(alice, "/api/orders/my-orders"), 1)
	assert.Len(t, list(staff, "/api/orders"), 2)
	assert.Empty(t, list(staff, "/api/orders/my-orders"))

	path := "/api/orders/" + aliceOrder.ID
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, path, alice, nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, path, staff, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, path, bob, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, path, "", nil).Code)
}

func TestOrders_DisallowedVerbs(t *testing.T) {
	api := newTestAPI(t)
	staff, _ := api.staffLogin()
	order := api.placeOrder(staff, api.seedProduct(staff, "Kettle", "30.00"))
	path := "/api/orders/" + order.ID

	for _, c := range []struct{ method, path string }{
		{http.MethodPost, "/api/orders"},
		{http.MethodPut, path},
		{http.MethodDelete, path},
	} {
		w := api.do(c.method, c.path, staff, map[string]string{"status": "shipped"})
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, c.method)
		assert.Equal(t, "Method Not Allowed", errorBody(t, w).Code, c.method)
	}

	w := api.do(http.MethodGet, path, staff, nil)
	var current OrderResponse
	decodeJSON(t, w, &current)
	assert.Equal(t, "pending", current.Status)
}

func TestOrders_UpdateStatus(t *testing.T) {
	api := newTestAPI(t)
	staff, _ := api.staffLogin()
	customer, _ := api.login()
	order := api.placeOrder(customer, api.seedProduct(staff, "Teapot", "22.00"))
	path := "/api/orders/" + order.ID

	// Missing status is reported before the permission check
	w := api.do(http.MethodPatch, path, customer, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPatch, path, customer, OrderStatusRequest{Status: "shipped"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPatch, path, staff, OrderStatusRequest{Status: "teleported"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPatch, path, staff, OrderStatusRequest{Status: "shipped"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated OrderResponse
	decodeJSON(t, w, &updated)
	assert.Equal(t, "shipped", updated.Status)

	w = api.do(http.MethodPatch, "/api/orders/6f1c1d9e-8f55-4e0c-9b4a-2f7f5b8d1c11", staff, OrderStatusRequest{Status: "shipped"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrders_Cancel(t *testing.T) {
	api := newTestAPI(t)
	staff, _ := api.staffLogin()
	product := api.seedProduct(staff, "Vase", "15.00")
	customer, _ := api.login()
	order := api.placeOrder(customer, product)
	cancelPath := "/api/orders/" + order.ID + "/cancel"

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, cancelPath, staff, nil).Code)

	for i := 0; i < 2; i++ {
		w := api.do(http.MethodPost, cancelPath, customer, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var cancelled OrderResponse
		decodeJSON(t, w, &cancelled)
		assert.Equal(t, "cancelled", cancelled.Status)
	}

	delivered := api.placeOrder(customer, product)
	w := api.do(http.MethodPatch, "/api/orders/"+delivered.ID, staff, OrderStatusRequest{Status: "delivered"})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPost, "/api/orders/"+delivered.ID+"/cancel", customer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
