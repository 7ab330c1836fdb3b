package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmora/storefront/internal/models"
	"github.com/velmora/storefront/internal/mykafka"
	"github.com/velmora/storefront/internal/util"
)

type OrderHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	limit := parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, limit)

	var total int64
	if err := h.DB.Model(&models.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	var orders []models.Order
	if err := h.DB.Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    orders,
		"pagination": echo.Map{
			"page":  page,
			"limit": limit,
			"total": total,
			"pages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// GetOrder is owner-scoped: someone else's order id answers a plain 404.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("orderId"))
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid order id")
	}

	var order models.Order
	if err := h.DB.Preload("Items").
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, http.StatusNotFound, "order not found")
		}
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	return respondOK(c, http.StatusOK, order)
}

var nextStatus = map[string]string{
	models.OrderStatusPending:    models.OrderStatusProcessing,
	models.OrderStatusProcessing: models.OrderStatusShipped,
	models.OrderStatusShipped:    models.OrderStatusDelivered,
}

// UpdateOrderStatus advances fulfillment one step at a time; skipping ahead
// or moving backwards is rejected.
func (h *OrderHandler) UpdateOrderStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("orderId"))
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid order id")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}

	var order models.Order
	if err := h.DB.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, http.StatusNotFound, "order not found")
		}
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	if nextStatus[order.Status] != req.Status {
		return respondError(c, http.StatusBadRequest, "invalid status transition")
	}

	if err := h.DB.Model(&order).Update("status", req.Status).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}

	publish(c, h.Producer, "order_events", map[string]interface{}{
		"type":    "order_status_changed",
		"userID":  order.UserID,
		"orderID": order.ID,
		"status":  req.Status,
	})

	order.Status = req.Status
	return respondOK(c, http.StatusOK, order)
}
