package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	secret := []byte("rzp_test_secret")

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte("order_1|pay_1"))
	sig := hex.EncodeToString(mac.Sum(nil))

	require.True(t, VerifySignature("order_1", "pay_1", sig, secret))
	require.False(t, VerifySignature("order_1", "pay_2", sig, secret))
	require.False(t, VerifySignature("order_2", "pay_1", sig, secret))
	require.False(t, VerifySignature("order_1", "pay_1", sig, []byte("other-secret")))
	require.False(t, VerifySignature("order_1", "pay_1", "", secret))
	require.False(t, VerifySignature("order_1", "pay_1", sig[:len(sig)-2], secret))
}

func TestOrderFromBody(t *testing.T) {
	o, err := orderFromBody(map[string]interface{}{
		"id":       "order_abc",
		"amount":   float64(25000),
		"currency": "INR",
		"notes": map[string]interface{}{
			"shipping_address": `{"city":"Testville"}`,
			"ignored":          42,
		},
	})
	require.NoError(t, err)
	require.Equal(t, "order_abc", o.ID)
	require.Equal(t, int64(25000), o.Amount)
	require.Equal(t, "INR", o.Currency)
	require.Equal(t, `{"city":"Testville"}`, o.Notes["shipping_address"])
	_, ok := o.Notes["ignored"]
	require.False(t, ok)

	_, err = orderFromBody(map[string]interface{}{"amount": float64(1)})
	require.Error(t, err)
}
