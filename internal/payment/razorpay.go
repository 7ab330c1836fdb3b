package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// GatewayOrder is the subset of a provider-side order the checkout flow
// needs: the id handed to the client widget and the notes that carry the
// shipping address between create and verify.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Notes    map[string]string
}

// Gateway is the payment provider surface used by the handlers. The Razorpay
// SDK is not context-aware, so neither is this interface.
type Gateway interface {
	CreateOrder(amount int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)
	FetchOrder(id string) (*GatewayOrder, error)
}

type RazorpayGateway struct {
	client *razorpay.Client
	KeyID  string
}

func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{
		client: razorpay.NewClient(keyID, keySecret),
		KeyID:  keyID,
	}
}

func (g *RazorpayGateway) CreateOrder(amount int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error) {
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		n := make(map[string]interface{}, len(notes))
		for k, v := range notes {
			n[k] = v
		}
		data["notes"] = n
	}

	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay: create order: %w", err)
	}
	return orderFromBody(body)
}

func (g *RazorpayGateway) FetchOrder(id string) (*GatewayOrder, error) {
	body, err := g.client.Order.Fetch(id, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay: fetch order %s: %w", id, err)
	}
	return orderFromBody(body)
}

func orderFromBody(body map[string]interface{}) (*GatewayOrder, error) {
	id, ok := body["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("razorpay: response without order id")
	}
	o := &GatewayOrder{ID: id, Notes: map[string]string{}}
	if amount, ok := body["amount"].(float64); ok {
		o.Amount = int64(amount)
	}
	if currency, ok := body["currency"].(string); ok {
		o.Currency = currency
	}
	if notes, ok := body["notes"].(map[string]interface{}); ok {
		for k, v := range notes {
			if s, ok := v.(string); ok {
				o.Notes[k] = s
			}
		}
	}
	return o, nil
}

// VerifySignature recomputes the callback signature, HMAC-SHA256 over
// "orderID|paymentID" keyed with the gateway secret, and compares in
// constant time.
func VerifySignature(orderID, paymentID, signature string, secret []byte) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
