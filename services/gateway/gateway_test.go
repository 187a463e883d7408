package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"betabay-platform/pkg/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func sign(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "s3cr3t"
	sig := sign("order_1", "pay_1", secret)

	require.True(t, VerifySignature("order_1", "pay_1", sig, secret))
	require.False(t, VerifySignature("order_2", "pay_1", sig, secret))
	require.False(t, VerifySignature("order_1", "pay_2", sig, secret))
	require.False(t, VerifySignature("order_1", "pay_1", sig, "wrong"))
	require.False(t, VerifySignature("order_1", "pay_1", "deadbeef", secret))
}

func TestVerifySignatureRejectsEmptyInputs(t *testing.T) {
	secret := "s3cr3t"
	sig := sign("order_1", "pay_1", secret)

	require.False(t, VerifySignature("", "pay_1", sig, secret))
	require.False(t, VerifySignature("order_1", "", sig, secret))
	require.False(t, VerifySignature("order_1", "pay_1", "", secret))
	require.False(t, VerifySignature("order_1", "pay_1", sig, ""))
}

func TestNormalizeCredential(t *testing.T) {
	require.Equal(t, "abc", NormalizeCredential("abc"))
	require.Equal(t, "abc", NormalizeCredential("  abc\n"))
	require.Equal(t, "abc", NormalizeCredential(`"abc"`))
	require.Equal(t, "abc", NormalizeCredential(`'abc'`))
	require.Equal(t, "abc", NormalizeCredential(` "abc" `))
	// mismatched quotes are left alone
	require.Equal(t, `"abc'`, NormalizeCredential(`"abc'`))
	require.Equal(t, "", NormalizeCredential(""))
	require.Equal(t, `"`, NormalizeCredential(`"`))
}

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Gateway.BaseURL = srv.URL
	cfg.Gateway.KeyID = `"key_id"`
	cfg.Gateway.KeySecret = "key_secret\n"

	return NewClient(cfg)
}

func TestCreateOrder(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/orders", r.URL.Path)

		// credentials must arrive normalized
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key_id", user)
		require.Equal(t, "key_secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, float64(60000), body["amount"])
		require.Equal(t, "INR", body["currency"])

		notes, ok := body["notes"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "beta-reward-pool", notes["purpose"])

		json.NewEncoder(w).Encode(Order{
			ID:          "order_1",
			AmountMinor: 60000,
			Currency:    "INR",
			Status:      "created",
		})
	}))

	order, err := client.CreateOrder(context.Background(), CreateOrderInput{
		AmountMinor: 60000,
		Currency:    "INR",
		Receipt:     "pool-bt_1",
		Notes:       map[string]string{"purpose": "beta-reward-pool"},
	})
	require.NoError(t, err)
	require.Equal(t, "order_1", order.ID)
	require.Equal(t, int64(60000), order.AmountMinor)
}

func TestCapturePayment(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payments/pay_1/capture", r.URL.Path)

		json.NewEncoder(w).Encode(Payment{
			ID:          "pay_1",
			OrderID:     "order_1",
			AmountMinor: 60000,
			Currency:    "INR",
			Status:      PaymentCaptured,
			Captured:    true,
		})
	}))

	payment, err := client.CapturePayment(context.Background(), "pay_1", 60000, "INR")
	require.NoError(t, err)
	require.True(t, payment.Captured)
	require.Equal(t, PaymentCaptured, payment.Status)
}

func TestGatewayErrorStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))

	_, err := client.GetPayment(context.Background(), "pay_missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "payment gateway returned 400")
}
