package handlers

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/velmora/storefront/internal/mykafka"
)

// Every endpoint answers with the same envelope: success flag, payload under
// data, human-readable message.
func respondOK(c echo.Context, code int, data interface{}) error {
	return c.JSON(code, echo.Map{"success": true, "data": data})
}

func respondMessage(c echo.Context, code int, data interface{}, message string) error {
	return c.JSON(code, echo.Map{"success": true, "data": data, "message": message})
}

func respondError(c echo.Context, code int, message string) error {
	return c.JSON(code, echo.Map{"success": false, "message": message})
}

// currentUserID reads the id stored by the auto-refresh middleware.
func currentUserID(c echo.Context) (uint, error) {
	id, ok := c.Get("userID").(uint)
	if !ok || id == 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing auth")
	}
	return id, nil
}

// publish is fire-and-forget: event delivery never fails a request, and a nil
// producer (tests) is a no-op.
func publish(c echo.Context, p *mykafka.Producer, topic string, event map[string]interface{}) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	key := fmt.Sprint(event["userID"])
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}

// generateOTP returns a 6-digit code from crypto/rand.
func generateOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	}
	return fmt.Sprintf("%06d", n.Int64())
}
