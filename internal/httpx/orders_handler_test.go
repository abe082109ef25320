package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders.git/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders.git/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders.git/internal/orders"
)

type stubCreator struct {
	res checkout.CreateOrderResult
	err error
	in  checkout.CreateOrderInput
}

func (s *stubCreator) CreateOrder(ctx context.Context, in checkout.CreateOrderInput) (checkout.CreateOrderResult, error) {
	s.in = in
	return s.res, s.err
}

type stubReader struct {
	order orders.Order
	items []orders.OrderItem
	err   error
}

func (s *stubReader) GetByID(ctx context.Context, id string) (orders.Order, []orders.OrderItem, error) {
	return s.order, s.items, s.err
}
func (s *stubReader) ListByCustomer(ctx context.Context, customerID string, status orders.Status, limit, offset int) ([]orders.Order, int, error) {
	return []orders.Order{s.order}, 1, nil
}

type stubMachine struct {
	order orders.Order
	err   error
}

func (s *stubMachine) Transition(ctx context.Context, orderID string, to orders.Status, in orders.TransitionInput) (orders.Order, error) {
	return s.order, s.err
}

func withCustomer(req *http.Request, id string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), ctxCustomerID, id))
}

func withOrderID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateOrderHandler_ValidationIs400(t *testing.T) {
	h := &OrdersHandler{
		Checkout: &stubCreator{err: checkout.ErrValidation},
		Log:      zap.NewNop(),
	}
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(`{}`)), "c1")
	rec := httptest.NewRecorder()

	h.createOrder(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "validation", body.Error.Kind)
}

func TestCreateOrderHandler_InsufficientStockMessageSurvives(t *testing.T) {
	serr := &inventory.InsufficientStockError{Items: []inventory.ShortItem{
		{SKU: "TSHIRT-M", Available: 1, Requested: 3},
	}}
	h := &OrdersHandler{Checkout: &stubCreator{err: serr}, Log: zap.NewNop()}
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(`{}`)), "c1")
	rec := httptest.NewRecorder()

	h.createOrder(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "insufficient_stock", body.Error.Kind)
	assert.Contains(t, body.Error.Message, "available=1 requested=3")
}

func TestCreateOrderHandler_Success(t *testing.T) {
	creator := &stubCreator{res: checkout.CreateOrderResult{
		Order:       orders.Order{ID: "o-1", Number: "ORD-1-aaaaaa", Total: 105000},
		IsManual:    true,
		RedirectURL: "/payment/manual/ORD-1-aaaaaa",
	}}
	h := &OrdersHandler{Checkout: creator, Log: zap.NewNop()}
	body := bytes.NewBufferString(`{
		"shippingAddressId": "a1",
		"shipping": {"courier": "JNE", "service": "REG", "cost": 15000},
		"items": [{"productId": "p1", "variantId": "v1", "quantity": 2, "price": 35000}],
		"voucherCode": "POTONG10K",
		"paymentMethod": "MANUAL"
	}`)
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/orders", body), "c1")
	rec := httptest.NewRecorder()

	h.createOrder(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	// body request nested (shipping:{courier,service,cost}) harus mendarat
	// di input checkout yang flat
	assert.Equal(t, "a1", creator.in.ShippingAddressID)
	assert.Equal(t, "JNE", creator.in.Courier)
	assert.Equal(t, "REG", creator.in.CourierService)
	assert.Equal(t, int64(15000), creator.in.ShippingCost)
	require.Len(t, creator.in.Items, 1)
	assert.Equal(t, "v1", creator.in.Items[0].VariantID)
	assert.Equal(t, "MANUAL", creator.in.PaymentMethod)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Order struct {
				ID          string `json:"id"`
				OrderNumber string `json:"orderNumber"`
			} `json:"order"`
			IsManual    bool   `json:"isManual"`
			RedirectURL string `json:"redirectUrl"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ORD-1-aaaaaa", resp.Data.Order.OrderNumber)
	assert.True(t, resp.Data.IsManual)
	assert.Equal(t, "/payment/manual/ORD-1-aaaaaa", resp.Data.RedirectURL)
}

func TestCreateOrderHandler_GatewayResponseCarriesPayment(t *testing.T) {
	creator := &stubCreator{res: checkout.CreateOrderResult{
		Order:       orders.Order{ID: "o-1", Number: "ORD-1-bbbbbb", Total: 105000},
		Token:       "snap-token",
		RedirectURL: "https://gw/pay/snap-token",
	}}
	h := &OrdersHandler{Checkout: creator, Log: zap.NewNop()}
	body := bytes.NewBufferString(`{"shippingAddressId":"a1","shipping":{"courier":"JNE","service":"REG","cost":15000},"paymentMethod":"GATEWAY"}`)
	req := withCustomer(httptest.NewRequest(http.MethodPost, "/orders", body), "c1")
	rec := httptest.NewRecorder()

	h.createOrder(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data struct {
			IsManual bool `json:"isManual"`
			Payment  *struct {
				Token string `json:"token"`
			} `json:"payment"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Data.IsManual)
	require.NotNil(t, resp.Data.Payment)
	assert.Equal(t, "snap-token", resp.Data.Payment.Token)
}

func TestGetOrderHandler_OtherCustomerIs404(t *testing.T) {
	h := &OrdersHandler{
		Reader: &stubReader{order: orders.Order{ID: "o-1", CustomerID: "c2"}},
		Log:    zap.NewNop(),
	}
	req := withOrderID(withCustomer(httptest.NewRequest(http.MethodGet, "/orders/o-1", nil), "c1"), "o-1")
	rec := httptest.NewRecorder()

	h.getOrder(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatusHandler_InvalidTransitionIs409(t *testing.T) {
	h := &OrdersHandler{
		Reader: &stubReader{order: orders.Order{ID: "o-1", CustomerID: "c1", Status: orders.StatusDelivered}},
		Machine: &stubMachine{err: &orders.InvalidTransitionError{
			From: orders.StatusDelivered, To: orders.StatusProcessing,
		}},
		Log: zap.NewNop(),
	}
	body := bytes.NewBufferString(`{"status":"PROCESSING"}`)
	req := withOrderID(withCustomer(httptest.NewRequest(http.MethodPatch, "/orders/o-1/status", body), "c1"), "o-1")
	rec := httptest.NewRecorder()

	h.updateStatus(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_transition", resp.Error.Kind)
}

func TestUpdateStatusHandler_UnknownStatusIs400(t *testing.T) {
	h := &OrdersHandler{Log: zap.NewNop()}
	body := bytes.NewBufferString(`{"status":"TELEPORTED"}`)
	req := withOrderID(withCustomer(httptest.NewRequest(http.MethodPatch, "/orders/o-1/status", body), "c1"), "o-1")
	rec := httptest.NewRecorder()

	h.updateStatus(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
