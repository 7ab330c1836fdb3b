package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmora/storefront/internal/models"
	"github.com/velmora/storefront/internal/mykafka"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

type cartLine struct {
	models.CartItem
	Product models.Product `json:"product"`
}

type cartView struct {
	Items       []cartLine `json:"items"`
	TotalAmount float64    `json:"total_amount"`
	TotalItems  int        `json:"total_items"`
}

// loadCart joins product rows into the cart lines. Totals use the captured
// line price, not the product's current one.
func (h *CartHandler) loadCart(userID uint) (*cartView, error) {
	var items []models.CartItem
	if err := h.DB.Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}

	view := &cartView{Items: []cartLine{}}
	for _, it := range items {
		var p models.Product
		if err := h.DB.First(&p, it.ProductID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		view.Items = append(view.Items, cartLine{CartItem: it, Product: p})
		view.TotalAmount += it.Price * float64(it.Quantity)
		view.TotalItems += it.Quantity
	}
	return view, nil
}

// GetCart answers the empty-cart shape rather than 404: "no cart" and "empty
// cart" are the same state.
func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	view, err := h.loadCart(userID)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}
	return respondOK(c, http.StatusOK, view)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	if req.ProductID == 0 {
		return respondError(c, http.StatusBadRequest, "product id is required")
	}
	if req.Quantity < 1 {
		return respondError(c, http.StatusBadRequest, "quantity must be at least 1")
	}

	var product models.Product
	if err := h.DB.Where("id = ? AND active = ?", req.ProductID, true).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, http.StatusNotFound, "product not found")
		}
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	var item models.CartItem
	tx := h.DB.Where("user_id = ? AND product_id = ?", userID, req.ProductID).First(&item)
	switch {
	case tx.Error == nil:
		// One line per product: re-adding sums quantities.
		if item.Quantity+req.Quantity > product.Stock {
			return respondError(c, http.StatusBadRequest, "insufficient stock")
		}
		item.Quantity += req.Quantity
		if err := h.DB.Save(&item).Error; err != nil {
			return respondError(c, http.StatusInternalServerError, "internal error")
		}
	case errors.Is(tx.Error, gorm.ErrRecordNotFound):
		if req.Quantity > product.Stock {
			return respondError(c, http.StatusBadRequest, "insufficient stock")
		}
		item = models.CartItem{
			UserID:    userID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			Price:     product.Price,
		}
		if err := h.DB.Create(&item).Error; err != nil {
			return respondError(c, http.StatusInternalServerError, "internal error")
		}
	default:
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	publish(c, h.Producer, "cart_events", map[string]interface{}{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  item.Quantity,
	})

	view, err := h.loadCart(userID)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}
	return respondMessage(c, http.StatusOK, view, "item added to cart")
}

// UpdateCartItem sets a line's quantity. Zero or less removes the line.
func (h *CartHandler) UpdateCartItem(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	if req.ProductID == 0 {
		return respondError(c, http.StatusBadRequest, "product id is required")
	}

	var item models.CartItem
	if err := h.DB.Where("user_id = ? AND product_id = ?", userID, req.ProductID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, http.StatusNotFound, "item not found in cart")
		}
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	if req.Quantity <= 0 {
		if err := h.DB.Delete(&item).Error; err != nil {
			return respondError(c, http.StatusInternalServerError, "internal error")
		}
	} else {
		// The update path re-validates stock the same way the add path does.
		var product models.Product
		if err := h.DB.First(&product, item.ProductID).Error; err != nil {
			return respondError(c, http.StatusInternalServerError, "internal error")
		}
		if req.Quantity > product.Stock {
			return respondError(c, http.StatusBadRequest, "insufficient stock")
		}
		item.Quantity = req.Quantity
		if err := h.DB.Save(&item).Error; err != nil {
			return respondError(c, http.StatusInternalServerError, "internal error")
		}
	}

	publish(c, h.Producer, "cart_events", map[string]interface{}{
		"type":      "cart_item_updated",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  req.Quantity,
	})

	view, err := h.loadCart(userID)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}
	return respondMessage(c, http.StatusOK, view, "cart updated")
}

func (h *CartHandler) RemoveCartItem(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	productID, err := strconv.Atoi(c.Param("productId"))
	if err != nil || productID <= 0 {
		return respondError(c, http.StatusBadRequest, "invalid product id")
	}

	res := h.DB.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.CartItem{})
	if res.Error != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}
	if res.RowsAffected == 0 {
		return respondError(c, http.StatusNotFound, "item not found in cart")
	}

	publish(c, h.Producer, "cart_events", map[string]interface{}{
		"type":      "cart_item_removed",
		"userID":    userID,
		"productID": productID,
	})

	view, err := h.loadCart(userID)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}
	return respondMessage(c, http.StatusOK, view, "item removed from cart")
}

// ClearCart empties the cart; clearing an already empty cart is fine.
func (h *CartHandler) ClearCart(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	if err := h.DB.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	publish(c, h.Producer, "cart_events", map[string]interface{}{
		"type":   "cart_cleared",
		"userID": userID,
	})

	return respondMessage(c, http.StatusOK, &cartView{Items: []cartLine{}}, "cart cleared")
}
