package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmora/storefront/internal/models"
	"github.com/velmora/storefront/internal/mykafka"
	"github.com/velmora/storefront/internal/service/search"
	"github.com/velmora/storefront/internal/util"
)

type ProductHandler struct {
	DB       *gorm.DB
	ES       *elasticsearch.Client
	Index    string
	Producer *mykafka.Producer
}

var sortColumns = map[string]string{
	"created_at": "created_at",
	"price":      "price",
	"name":       "name",
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, limit)

	q := h.DB.Model(&models.Product{}).Where("active = ?", true)

	if category := c.QueryParam("category"); category != "" {
		q = q.Where("category = ?", category)
	}
	if s := c.QueryParam("search"); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	sortBy := c.QueryParam("sortBy")
	column, ok := sortColumns[sortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if c.QueryParam("sortOrder") == "asc" {
		direction = "ASC"
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	var items []models.Product
	if err := q.Order(column + " " + direction).Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    items,
		"pagination": echo.Map{
			"page":  page,
			"limit": limit,
			"total": total,
			"pages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

func (h *ProductHandler) GetProductBySlug(c echo.Context) error {
	slug := c.Param("slug")

	var product models.Product
	if err := h.DB.Where("slug = ? AND active = ?", slug, true).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, http.StatusNotFound, "product not found")
		}
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	return respondOK(c, http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req struct {
		Name        string   `json:"name"`
		Slug        string   `json:"slug"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Brand       string   `json:"brand"`
		Price       float64  `json:"price"`
		Stock       int      `json:"stock"`
		Images      []string `json:"images"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" || req.Price < 0 || req.Stock < 0 {
		return respondError(c, http.StatusBadRequest, "name is required, price and stock must be non-negative")
	}

	// Lenient create: slug derived from the name, sparse input defaulted.
	if req.Slug == "" {
		req.Slug = util.Slugify(req.Name)
	}
	if req.Category == "" {
		req.Category = "uncategorized"
	}
	if req.Images == nil {
		req.Images = []string{}
	}

	prod := models.Product{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Category:    req.Category,
		Brand:       req.Brand,
		Price:       req.Price,
		Stock:       req.Stock,
		Images:      req.Images,
		Active:      true,
	}
	if err := h.DB.Create(&prod).Error; err != nil {
		return respondError(c, http.StatusBadRequest, "cannot create product: "+err.Error())
	}

	h.indexProduct(c, &prod)
	publish(c, h.Producer, "product_events", map[string]interface{}{
		"type":      "product_created",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return respondOK(c, http.StatusCreated, prod)
}

func (h *ProductHandler) PatchProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Name        *string   `json:"name"`
		Description *string   `json:"description"`
		Category    *string   `json:"category"`
		Brand       *string   `json:"brand"`
		Price       *float64  `json:"price"`
		Stock       *int      `json:"stock"`
		Images      *[]string `json:"images"`
		Active      *bool     `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		return respondError(c, http.StatusNotFound, "product not found")
	}

	if req.Name != nil {
		prod.Name = *req.Name
	}
	if req.Description != nil {
		prod.Description = *req.Description
	}
	if req.Category != nil {
		prod.Category = *req.Category
	}
	if req.Brand != nil {
		prod.Brand = *req.Brand
	}
	if req.Price != nil {
		prod.Price = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return respondError(c, http.StatusBadRequest, "stock must be non-negative")
		}
		prod.Stock = *req.Stock
	}
	if req.Images != nil {
		prod.Images = *req.Images
	}
	if req.Active != nil {
		prod.Active = *req.Active
	}

	if err := h.DB.Save(&prod).Error; err != nil {
		return respondError(c, http.StatusBadRequest, "cannot update product: "+err.Error())
	}

	h.indexProduct(c, &prod)
	publish(c, h.Producer, "product_events", map[string]interface{}{
		"type":      "product_updated",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return respondOK(c, http.StatusOK, prod)
}

// DeleteProduct deactivates instead of removing: carts and order snapshots
// keep referencing the row.
func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid id")
	}

	res := h.DB.Model(&models.Product{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}
	if res.RowsAffected == 0 {
		return respondError(c, http.StatusNotFound, "product not found")
	}

	if h.ES != nil {
		if err := search.DeleteProduct(c.Request().Context(), h.ES, h.Index, uint(id)); err != nil {
			c.Logger().Errorf("es delete error: %v", err)
		}
	}
	publish(c, h.Producer, "product_events", map[string]interface{}{
		"type":      "product_deleted",
		"productID": id,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *ProductHandler) indexProduct(c echo.Context, p *models.Product) {
	if h.ES == nil {
		return
	}
	if err := search.IndexProduct(c.Request().Context(), h.ES, h.Index, p); err != nil {
		c.Logger().Errorf("es index error: %v", err)
	}
}
