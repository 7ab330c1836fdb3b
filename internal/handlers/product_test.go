package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/velmora/storefront/internal/models"
)

func TestCreateProductDerivesSlugAndDefaults(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/admin/products", map[string]interface{}{
		"name":  "Herbal Face Wash 200ml",
		"price": 299.0,
	})
	require.NoError(t, env.P.CreateProduct(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var prod models.Product
	require.NoError(t, env.DB.Where("slug = ?", "herbal-face-wash-200ml").First(&prod).Error)
	require.Equal(t, "uncategorized", prod.Category)
	require.Equal(t, 0, prod.Stock)
	require.NotNil(t, prod.Images)
	require.True(t, prod.Active)
}

func TestCreateProductRequiresName(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/admin/products", map[string]interface{}{
		"price": 100.0,
	})
	require.NoError(t, env.P.CreateProduct(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProductsFiltersInactive(t *testing.T) {
	env := newTestEnv(t)
	env.createProduct("soap", 100, 5)
	inactive := env.createProduct("shampoo", 200, 5)
	require.NoError(t, env.DB.Model(inactive).Update("active", false).Error)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/products", nil)
	require.NoError(t, env.P.GetProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	data := resp["data"].([]interface{})
	require.Len(t, data, 1)
	pagination := resp["pagination"].(map[string]interface{})
	require.Equal(t, float64(1), pagination["total"])
}

func TestGetProductsSearchAndSort(t *testing.T) {
	env := newTestEnv(t)
	env.createProduct("sandal soap", 80, 5)
	env.createProduct("neem soap", 120, 5)
	env.createProduct("toothpaste", 60, 5)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/products?search=soap&sortBy=price&sortOrder=asc", nil)
	require.NoError(t, env.P.GetProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	data := resp["data"].([]interface{})
	require.Len(t, data, 2)
	first := data[0].(map[string]interface{})
	require.Equal(t, "sandal soap", first["name"])
}

func TestGetProductBySlug(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("soap", 100, 5)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/products/"+p.Slug, nil)
	c.SetParamNames("slug")
	c.SetParamValues(p.Slug)
	require.NoError(t, env.P.GetProductBySlug(c))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, c = env.doJSONRequest(http.MethodGet, "/api/v1/products/nope", nil)
	c.SetParamNames("slug")
	c.SetParamValues("nope")
	require.NoError(t, env.P.GetProductBySlug(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteProductDeactivates(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("soap", 100, 5)

	rec, c := env.doJSONRequest(http.MethodDelete, "/api/v1/admin/products/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.P.DeleteProduct(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var prod models.Product
	require.NoError(t, env.DB.First(&prod, p.ID).Error)
	require.False(t, prod.Active)
}
