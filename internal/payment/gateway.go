package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders.git/internal/customers"
	"github.com/ariefcatur/go-storefront-orders.git/internal/orders"
)

// Session hasil create transaksi di gateway; token diserahkan ke client
// untuk menyelesaikan pembayaran di sisi mereka.
type Session struct {
	Token       string
	RedirectURL string
	ExternalID  string
}

// GatewayError = kegagalan bicara dengan processor (transport, non-2xx,
// response cacat). Selalu compensable: orchestrator menghapus order yang
// baru dibuat. Beda dengan business failure.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string { return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err) }
func (e *GatewayError) Unwrap() error { return e.Err }

type Gateway struct {
	c   *resty.Client
	log *zap.Logger
}

func NewGateway(baseURL, serverKey string, timeout time.Duration, log *zap.Logger) *Gateway {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetBasicAuth(serverKey, "").
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{c: c, log: log}
}

type sessionResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// CreateSession kirim snapshot order penuh ke processor. Order number dipakai
// sebagai id transaksi di gateway; webhook nanti balik membawa id yang sama.
func (g *Gateway) CreateSession(ctx context.Context, o orders.Order, items []orders.OrderItem, cust customers.Customer) (Session, error) {
	itemDetails := make([]map[string]any, 0, len(items)+1)
	for _, it := range items {
		itemDetails = append(itemDetails, map[string]any{
			"id":       it.SKU,
			"price":    it.Price,
			"quantity": it.Qty,
		})
	}
	if o.ShippingCost > 0 {
		itemDetails = append(itemDetails, map[string]any{
			"id": "SHIPPING", "price": o.ShippingCost, "quantity": 1,
		})
	}
	if o.Discount > 0 {
		itemDetails = append(itemDetails, map[string]any{
			"id": "DISCOUNT", "price": -o.Discount, "quantity": 1,
		})
	}

	body := map[string]any{
		"transaction_details": map[string]any{
			"order_id":     o.Number,
			"gross_amount": o.Total,
		},
		"customer_details": map[string]any{
			"first_name": cust.Name,
			"email":      cust.Email,
			"phone":      cust.Phone,
			"shipping_address": map[string]any{
				"first_name":  o.RecipientName,
				"phone":       o.Phone,
				"address":     o.Address,
				"city":        o.City,
				"postal_code": o.PostalCode,
			},
		},
		"item_details": itemDetails,
	}

	resp, err := g.c.R().
		SetContext(ctx).
		SetBody(body).
		Post("/snap/v1/transactions")
	if err != nil {
		return Session{}, &GatewayError{Op: "create session", Err: err}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		g.log.Warn("gateway rejected session create",
			zap.Int("status", resp.StatusCode()),
			zap.String("order_number", o.Number),
			zap.ByteString("body", resp.Body()))
		return Session{}, &GatewayError{Op: "create session",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode())}
	}

	var out sessionResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return Session{}, &GatewayError{Op: "decode session response", Err: err}
	}
	if out.Token == "" {
		return Session{}, &GatewayError{Op: "decode session response",
			Err: fmt.Errorf("token missing in response")}
	}

	return Session{Token: out.Token, RedirectURL: out.RedirectURL, ExternalID: o.Number}, nil
}
