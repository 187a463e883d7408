package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"betabay-platform/pkg/config"
	"betabay-platform/pkg/errutil"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Client talks to the payment gateway's REST API. The platform never moves
// money itself; every mutation here is an order or capture on the gateway
// side, and the gateway remains the source of truth for payment state.
type Client interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	CapturePayment(ctx context.Context, paymentID string, amountMinor int64, currency string) (*Payment, error)
}

var Module = fx.Module("gateway.client",
	fx.Provide(NewClient),
)

type restClient struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewClient(cfg *config.Config) Client {
	return &restClient{
		baseURL:   cfg.Gateway.BaseURL,
		keyID:     NormalizeCredential(cfg.Gateway.KeyID),
		keySecret: NormalizeCredential(cfg.Gateway.KeySecret),
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *restClient) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	body := map[string]any{
		"amount":   in.AmountMinor,
		"currency": in.Currency,
		"receipt":  in.Receipt,
		"notes":    in.Notes,
	}

	var order Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *restClient) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *restClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *restClient) CapturePayment(ctx context.Context, paymentID string, amountMinor int64, currency string) (*Payment, error) {
	body := map[string]any{
		"amount":   amountMinor,
		"currency": currency,
	}

	var payment Payment
	if err := c.do(ctx, http.MethodPost, "/v1/payments/"+paymentID+"/capture", body, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *restClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errutil.Internal("failed to encode gateway request", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errutil.Internal("failed to build gateway request", err)
	}

	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errutil.BadGateway("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		zap.L().Warn("gateway request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload),
		)
		return errutil.BadGateway(
			fmt.Sprintf("payment gateway returned %d", resp.StatusCode),
			nil,
		)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errutil.BadGateway("failed to decode gateway response", err)
		}
	}

	return nil
}
