package gateway

// Order is a payment-gateway order. Amounts are minor currency units.
type Order struct {
	ID          string            `json:"id"`
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Status      string            `json:"status"`
	Notes       map[string]string `json:"notes"`
}

// Payment is a gateway payment attempt against an order.
type Payment struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Captured    bool   `json:"captured"`
}

// Payment lifecycle states as reported by the gateway.
const (
	PaymentCreated    = "created"
	PaymentAuthorized = "authorized"
	PaymentCaptured   = "captured"
	PaymentFailed     = "failed"
)

// CreateOrderInput carries the parameters for a new gateway order. Notes are
// round-tripped verbatim by the gateway and are used to bind the order to the
// platform entity it funds.
type CreateOrderInput struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}
