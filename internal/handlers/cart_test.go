package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/velmora/storefront/internal/models"
)

func TestGetCartEmptyShape(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("u@example.com", "password123", "user")

	rec, c := env.authedRequest(1, http.MethodGet, "/api/v1/cart", nil)
	require.NoError(t, env.C.GetCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	require.Equal(t, true, resp["success"])
	data := resp["data"].(map[string]interface{})
	require.Empty(t, data["items"])
	require.Equal(t, float64(0), data["total_amount"])
	require.Equal(t, float64(0), data["total_items"])
}

func TestAddToCartMergesLines(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("u@example.com", "password123", "user")
	p := env.createProduct("soap", 100, 10)

	for i := 0; i < 2; i++ {
		rec, c := env.authedRequest(1, http.MethodPost, "/api/v1/cart", map[string]interface{}{
			"product_id": p.ID,
			"quantity":   2,
		})
		require.NoError(t, env.C.AddToCart(c))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	var items []models.CartItem
	require.NoError(t, env.DB.Where("user_id = ?", 1).Find(&items).Error)
	require.Len(t, items, 1)
	require.Equal(t, 4, items[0].Quantity)
	require.Equal(t, float64(100), items[0].Price)
}

func TestAddToCartRejectsNonPositiveQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("u@example.com", "password123", "user")
	p := env.createProduct("soap", 100, 10)

	for _, qty := range []int{0, -3} {
		rec, c := env.authedRequest(1, http.MethodPost, "/api/v1/cart", map[string]interface{}{
			"product_id": p.ID,
			"quantity":   qty,
		})
		require.NoError(t, env.C.AddToCart(c))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	var count int64
	env.DB.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&count)
	require.Zero(t, count)
}

func TestAddToCartInsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("u@example.com", "password123", "user")
	p := env.createProduct("soap", 100, 1)

	rec, c := env.authedRequest(1, http.MethodPost, "/api/v1/cart", map[string]interface{}{
		"product_id": p.ID,
		"quantity":   2,
	})
	require.NoError(t, env.C.AddToCart(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	env.DB.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&count)
	require.Zero(t, count)
}

func TestAddToCartMergedQuantityExceedingStock(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("u@example.com", "password123", "user")
	p := env.createProduct("soap", 100, 3)

	_, c := env.authedRequest(1, http.MethodPost, "/api/v1/cart", map[string]interface{}{
		"product_id": p.ID, "quantity": 2,
	})
	require.NoError(t, env.C.AddToCart(c))

	rec, c := env.authedRequest(1, http.MethodPost, "/api/v1/cart", map[string]interface{}{
		"product_id": p.ID, "quantity": 2,
	})
	require.NoError(t, env.C.AddToCart(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var item models.CartItem
	require.NoError(t, env.DB.Where("user_id = ?", 1).First(&item).Error)
	require.Equal(t, 2, item.Quantity)
}

func TestAddToCartInactiveProduct(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("u@example.com", "password123", "user")
	p := env.createProduct("soap", 100, 10)
	require.NoError(t, env.DB.Model(p).Update("active", false).Error)

	rec, c := env.authedRequest(1, http.MethodPost, "/api/v1/cart", map[string]interface{}{
		"product_id": p.ID,
		"quantity":   1,
	})
	require.NoError(t, env.C.AddToCart(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateCartItemZeroRemoves(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("u@example.com", "password123", "user")
	p := env.createProduct("soap", 100, 10)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 3, Price: 100}).Error)

	rec, c := env.authedRequest(1, http.MethodPut, "/api/v1/cart", map[string]interface{}{
		"product_id": p.ID,
		"quantity":   0,
	})
	require.NoError(t, env.C.UpdateCartItem(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	env.DB.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&count)
	require.Zero(t, count)
}

func TestUpdateCartItemRevalidatesStock(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("u@example.com", "password123", "user")
	p := env.createProduct("soap", 100, 5)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 2, Price: 100}).Error)

	rec, c := env.authedRequest(1, http.MethodPut, "/api/v1/cart", map[string]interface{}{
		"product_id": p.ID,
		"quantity":   8,
	})
	require.NoError(t, env.C.UpdateCartItem(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var item models.CartItem
	require.NoError(t, env.DB.Where("user_id = ?", 1).First(&item).Error)
	require.Equal(t, 2, item.Quantity)
}

func TestUpdateCartItemAbsent(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("u@example.com", "password123", "user")

	rec, c := env.authedRequest(1, http.MethodPut, "/api/v1/cart", map[string]interface{}{
		"product_id": 42,
		"quantity":   1,
	})
	require.NoError(t, env.C.UpdateCartItem(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveCartItem(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("u@example.com", "password123", "user")
	p := env.createProduct("soap", 100, 10)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: 1, ProductID: p.ID, Quantity: 1, Price: 100}).Error)

	rec, c := env.authedRequest(1, http.MethodDelete, "/api/v1/cart/1", nil)
	c.SetParamNames("productId")
	c.SetParamValues("1")
	require.NoError(t, env.C.RemoveCartItem(c))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, c = env.authedRequest(1, http.MethodDelete, "/api/v1/cart/1", nil)
	c.SetParamNames("productId")
	c.SetParamValues("1")
	require.NoError(t, env.C.RemoveCartItem(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearCart(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("u@example.com", "password123", "user")
	p1 := env.createProduct("soap", 100, 10)
	p2 := env.createProduct("shampoo", 250, 10)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: 1, ProductID: p1.ID, Quantity: 1, Price: 100}).Error)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: 1, ProductID: p2.ID, Quantity: 2, Price: 250}).Error)

	rec, c := env.authedRequest(1, http.MethodDelete, "/api/v1/cart", nil)
	require.NoError(t, env.C.ClearCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	env.DB.Model(&models.CartItem{}).Where("user_id = ?", 1).Count(&count)
	require.Zero(t, count)
}
