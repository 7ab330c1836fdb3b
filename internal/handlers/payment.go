package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmora/storefront/internal/logging"
	"github.com/velmora/storefront/internal/models"
	"github.com/velmora/storefront/internal/mykafka"
	"github.com/velmora/storefront/internal/payment"
)

type PaymentHandler struct {
	DB        *gorm.DB
	Gateway   payment.Gateway
	KeyID     string
	KeySecret []byte
	Producer  *mykafka.Producer
}

var (
	errInsufficientStock = errors.New("insufficient stock")
	errAmountMismatch    = errors.New("amount mismatch")
	errOrderOwner        = errors.New("order belongs to another user")
)

// CreatePaymentOrder opens a checkout attempt: the cart is re-read server
// side, the total recomputed from current product prices, and a gateway order
// created for that amount. The shipping address travels in the gateway
// order's notes because no local pending-order record exists yet.
func (h *PaymentHandler) CreatePaymentOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment_create_order")

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ShippingAddress models.ShippingAddress `json:"shipping_address"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	if req.ShippingAddress.Line1 == "" || req.ShippingAddress.City == "" {
		return respondError(c, http.StatusBadRequest, "shipping address is required")
	}

	var items []models.CartItem
	if err := h.DB.Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "internal error")
	}
	if len(items) == 0 {
		return respondError(c, http.StatusBadRequest, "cart is empty")
	}

	var total float64
	for _, it := range items {
		var p models.Product
		if err := h.DB.Where("id = ? AND active = ?", it.ProductID, true).First(&p).Error; err != nil {
			return respondError(c, http.StatusBadRequest, "product no longer available")
		}
		total += p.Price * float64(it.Quantity)
	}
	if total <= 0 {
		return respondError(c, http.StatusBadRequest, "cart total must be positive")
	}

	addressJSON, err := json.Marshal(req.ShippingAddress)
	if err != nil {
		return respondError(c, http.StatusBadRequest, "invalid shipping address")
	}

	amountPaise := int64(math.Round(total * 100))
	receipt := "rcpt_" + uuid.NewString()

	gwOrder, err := h.Gateway.CreateOrder(amountPaise, "INR", receipt, map[string]string{
		"user_id":          fmt.Sprint(userID),
		"shipping_address": string(addressJSON),
	})
	if err != nil {
		l.Error("create_order_failed", "status", 502, "error", err)
		return respondError(c, http.StatusBadGateway, "error creating payment order")
	}

	l.Info("payment_order_created", "userID", userID, "providerOrderID", gwOrder.ID, "amount", amountPaise)
	return respondOK(c, http.StatusOK, echo.Map{
		"order_id": gwOrder.ID,
		"amount":   gwOrder.Amount,
		"currency": gwOrder.Currency,
		"key":      h.KeyID,
	})
}

// VerifyPayment settles a checkout attempt. The signature is recomputed
// locally; the shipping address is recovered from the gateway order; then in
// one transaction the order is created from the current cart with a stock
// re-check per line, and the cart emptied. A replayed callback finds the
// order created by the first delivery and returns it unchanged.
func (h *PaymentHandler) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment_verify")

	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req struct {
		OrderID   string `json:"razorpay_order_id"`
		PaymentID string `json:"razorpay_payment_id"`
		Signature string `json:"razorpay_signature"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "invalid body")
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return respondError(c, http.StatusBadRequest, "missing payment identifiers")
	}

	if !payment.VerifySignature(req.OrderID, req.PaymentID, req.Signature, h.KeySecret) {
		l.Warn("verify_failed", "status", 400, "reason", "invalid_signature", "providerOrderID", req.OrderID)
		return respondError(c, http.StatusBadRequest, "invalid payment signature")
	}

	gwOrder, err := h.Gateway.FetchOrder(req.OrderID)
	if err != nil {
		l.Error("verify_failed", "status", 502, "reason", "fetch_order", "error", err)
		return respondError(c, http.StatusBadGateway, "error verifying payment")
	}

	var shippingAddress models.ShippingAddress
	if err := json.Unmarshal([]byte(gwOrder.Notes["shipping_address"]), &shippingAddress); err != nil {
		l.Warn("verify_failed", "status", 400, "reason", "bad_address_notes")
		return respondError(c, http.StatusBadRequest, "invalid shipping address data")
	}

	var order models.Order
	replayed := false
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		// Idempotency: the provider order id is unique, so a second delivery
		// of the same callback settles on the first order.
		err := tx.Preload("Items").Where("provider_order_id = ?", req.OrderID).First(&order).Error
		if err == nil {
			if order.UserID != userID {
				return errOrderOwner
			}
			replayed = true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var items []models.CartItem
		if err := tx.Where("user_id = ?", userID).Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return gorm.ErrRecordNotFound
		}

		var total float64
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, it := range items {
			var p models.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				return err
			}

			// Decrement exactly once, atomically with order creation, only
			// when stock still covers the line. No clamping.
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", it.ProductID, it.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", it.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errInsufficientStock
			}

			total += p.Price * float64(it.Quantity)
			image := ""
			if len(p.Images) > 0 {
				image = p.Images[0]
			}
			orderItems = append(orderItems, models.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Price:     p.Price,
				Quantity:  it.Quantity,
				Image:     image,
			})
		}

		// The order must record what the customer actually paid. If a price
		// changed between intent creation and callback delivery the recomputed
		// total no longer matches the authorized amount, and the checkout is
		// rejected rather than persisted with a diverging total.
		if int64(math.Round(total*100)) != gwOrder.Amount {
			return errAmountMismatch
		}

		order = models.Order{
			UserID:            userID,
			Items:             orderItems,
			TotalAmount:       total,
			ShippingAddress:   shippingAddress,
			PaymentMethod:     "online",
			PaymentStatus:     models.PaymentStatusPaid,
			Status:            models.OrderStatusPending,
			ProviderOrderID:   req.OrderID,
			ProviderPaymentID: req.PaymentID,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})

	switch {
	case txErr == nil:
	case errors.Is(txErr, errInsufficientStock):
		l.Warn("verify_failed", "status", 400, "reason", "insufficient_stock", "providerOrderID", req.OrderID)
		return respondError(c, http.StatusBadRequest, "insufficient stock")
	case errors.Is(txErr, errAmountMismatch):
		l.Warn("verify_failed", "status", 400, "reason", "amount_mismatch", "providerOrderID", req.OrderID)
		return respondError(c, http.StatusBadRequest, "payment amount mismatch")
	case errors.Is(txErr, errOrderOwner):
		l.Warn("verify_failed", "status", 403, "reason", "owner_mismatch", "providerOrderID", req.OrderID)
		return respondError(c, http.StatusForbidden, "order belongs to another user")
	case errors.Is(txErr, gorm.ErrRecordNotFound):
		l.Warn("verify_failed", "status", 404, "reason", "cart_not_found", "providerOrderID", req.OrderID)
		return respondError(c, http.StatusNotFound, "cart not found")
	default:
		l.Error("verify_failed", "status", 500, "error", txErr)
		return respondError(c, http.StatusInternalServerError, "error verifying payment")
	}

	if !replayed {
		publish(c, h.Producer, "order_events", map[string]interface{}{
			"type":    "order_created",
			"userID":  userID,
			"orderID": order.ID,
			"total":   order.TotalAmount,
		})
	}

	l.Info("payment_verified", "userID", userID, "orderID", order.ID, "providerOrderID", req.OrderID)
	return respondMessage(c, http.StatusOK, echo.Map{"order_id": order.ID}, "payment verified successfully")
}
