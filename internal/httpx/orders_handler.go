package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders.git/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders.git/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders.git/internal/orders"
	"github.com/ariefcatur/go-storefront-orders.git/internal/payment"
	"github.com/ariefcatur/go-storefront-orders.git/internal/redisx"
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, in checkout.CreateOrderInput) (checkout.CreateOrderResult, error)
}

type OrderTransitioner interface {
	Transition(ctx context.Context, orderID string, to orders.Status, in orders.TransitionInput) (orders.Order, error)
}

type OrderReader interface {
	GetByID(ctx context.Context, id string) (orders.Order, []orders.OrderItem, error)
	ListByCustomer(ctx context.Context, customerID string, status orders.Status, limit, offset int) ([]orders.Order, int, error)
}

type OrdersHandler struct {
	Checkout OrderCreator
	Reader   OrderReader
	Machine  OrderTransitioner
	Redis    *redis.Client
	Log      *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
}

type itemHintReq struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

type shippingReq struct {
	Courier string `json:"courier"`
	Service string `json:"service"`
	Cost    int64  `json:"cost"`
}

type createOrderReq struct {
	ShippingAddressID string        `json:"shippingAddressId"`
	Shipping          shippingReq   `json:"shipping"`
	Items             []itemHintReq `json:"items"`
	VoucherCode       string        `json:"voucherCode"`
	PaymentMethod     string        `json:"paymentMethod"`
}

type orderRef struct {
	ID     string `json:"id"`
	Number string `json:"orderNumber"`
	Total  int64  `json:"total"`
}

type paymentRef struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

type createOrderResp struct {
	Order       orderRef    `json:"order"`
	IsManual    bool        `json:"isManual"`
	RedirectURL string      `json:"redirectUrl,omitempty"`
	Payment     *paymentRef `json:"payment,omitempty"`
}

type orderView struct {
	ID             string          `json:"id"`
	Number         string          `json:"orderNumber"`
	RecipientName  string          `json:"recipientName"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	City           string          `json:"city"`
	Province       string          `json:"province"`
	PostalCode     string          `json:"postalCode"`
	Courier        string          `json:"courier"`
	CourierService string          `json:"courierService"`
	TrackingNumber string          `json:"trackingNumber,omitempty"`
	ShippingCost   int64           `json:"shippingCost"`
	Subtotal       int64           `json:"subtotal"`
	Discount       int64           `json:"discount"`
	Total          int64           `json:"total"`
	Status         string          `json:"status"`
	PaymentStatus  string          `json:"paymentStatus"`
	VoucherCode    string          `json:"voucherCode,omitempty"`
	CancelReason   string          `json:"cancelReason,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	ShippedAt      *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt    *time.Time      `json:"cancelledAt,omitempty"`
	Items          []orderItemView `json:"items,omitempty"`
}

type orderItemView struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	SKU       string `json:"sku"`
	Qty       int    `json:"qty"`
	Price     int64  `json:"price"`
}

func toOrderView(o orders.Order, items []orders.OrderItem) orderView {
	v := orderView{
		ID:             o.ID,
		Number:         o.Number,
		RecipientName:  o.RecipientName,
		Phone:          o.Phone,
		Address:        o.Address,
		City:           o.City,
		Province:       o.Province,
		PostalCode:     o.PostalCode,
		Courier:        o.Courier,
		CourierService: o.CourierService,
		TrackingNumber: o.TrackingNumber,
		ShippingCost:   o.ShippingCost,
		Subtotal:       o.Subtotal,
		Discount:       o.Discount,
		Total:          o.Total,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		VoucherCode:    o.VoucherCode,
		CancelReason:   o.CancelReason,
		CreatedAt:      o.CreatedAt,
		ShippedAt:      o.ShippedAt,
		DeliveredAt:    o.DeliveredAt,
		CancelledAt:    o.CancelledAt,
	}
	for _, it := range items {
		v.Items = append(v.Items, orderItemView{
			ProductID: it.ProductID, VariantID: it.VariantID,
			SKU: it.SKU, Qty: it.Qty, Price: it.Price,
		})
	}
	return v
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	in := checkout.CreateOrderInput{
		CustomerID:        CustomerID(ctx),
		ShippingAddressID: req.ShippingAddressID,
		Courier:           req.Shipping.Courier,
		CourierService:    req.Shipping.Service,
		ShippingCost:      req.Shipping.Cost,
		VoucherCode:       req.VoucherCode,
		PaymentMethod:     req.PaymentMethod,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, checkout.ItemHint{
			ProductID: it.ProductID, VariantID: it.VariantID,
			Quantity: it.Quantity, Price: it.Price,
		})
	}

	res, err := h.Checkout.CreateOrder(ctx, in)
	if err != nil {
		var ise *inventory.InsufficientStockError
		var gerr *payment.GatewayError
		switch {
		case errors.Is(err, checkout.ErrValidation):
			respondErr(w, http.StatusBadRequest, "validation", err.Error())
		case errors.As(err, &ise):
			// Pesan itemized apa adanya; client butuh tahu SKU mana yang kurang.
			respondErr(w, http.StatusBadRequest, "insufficient_stock", ise.Error())
		case errors.As(err, &gerr):
			h.Log.Error("checkout gateway failure", zap.Error(err))
			respondErr(w, http.StatusInternalServerError, "gateway", "payment gateway unavailable")
		default:
			h.Log.Error("checkout failed", zap.Error(err))
			respondErr(w, http.StatusInternalServerError, "internal", "checkout failed")
		}
		return
	}

	h.cacheStatus(ctx, res.Order)
	out := createOrderResp{
		Order:    orderRef{ID: res.Order.ID, Number: res.Order.Number, Total: res.Order.Total},
		IsManual: res.IsManual,
	}
	if res.IsManual {
		out.RedirectURL = res.RedirectURL
	} else {
		out.Payment = &paymentRef{Token: res.Token, RedirectURL: res.RedirectURL}
	}
	respondOK(w, http.StatusCreated, out)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status orders.Status
	if s := q.Get("status"); s != "" {
		if !orders.IsValidStatus(orders.Status(s)) {
			respondErr(w, http.StatusBadRequest, "bad_request", "unknown status filter")
			return
		}
		status = orders.Status(s)
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, total, err := h.Reader.ListByCustomer(ctx, CustomerID(ctx), status, limit, offset)
	if err != nil {
		h.Log.Error("list orders failed", zap.Error(err))
		respondErr(w, http.StatusInternalServerError, "internal", "list orders failed")
		return
	}

	views := make([]orderView, 0, len(list))
	for _, o := range list {
		views = append(views, toOrderView(o, nil))
	}
	respondOK(w, http.StatusOK, map[string]any{
		"orders": views,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, items, err := h.reader(ctx, w, orderID)
	if err != nil {
		return
	}
	h.cacheStatus(ctx, o)
	respondOK(w, http.StatusOK, toOrderView(o, items))
}

// reader: ambil + owner check; order milik customer lain = not found,
// bukan forbidden, supaya id order orang lain tidak bisa ditebak-tebak.
func (h *OrdersHandler) reader(ctx context.Context, w http.ResponseWriter, orderID string) (orders.Order, []orders.OrderItem, error) {
	o, items, err := h.Reader.GetByID(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) || (err == nil && o.CustomerID != CustomerID(ctx)) {
		respondErr(w, http.StatusNotFound, "not_found", "order not found")
		return orders.Order{}, nil, orders.ErrNotFound
	}
	if err != nil {
		h.Log.Error("get order failed", zap.String("order_id", orderID), zap.Error(err))
		respondErr(w, http.StatusInternalServerError, "internal", "get order failed")
		return orders.Order{}, nil, err
	}
	return o, items, nil
}

type updateStatusReq struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber"`
	Reason         string `json:"reason"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	to := orders.Status(req.Status)
	if !orders.IsValidStatus(to) {
		respondErr(w, http.StatusBadRequest, "bad_request", "unknown status "+req.Status)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Owner check dulu; transition tidak boleh bocor lintas customer.
	if _, _, err := h.reader(ctx, w, orderID); err != nil {
		return
	}

	o, err := h.Machine.Transition(ctx, orderID, to, orders.TransitionInput{
		TrackingNumber: req.TrackingNumber,
		Reason:         req.Reason,
	})
	if err != nil {
		var ite *orders.InvalidTransitionError
		if errors.As(err, &ite) {
			respondErr(w, http.StatusConflict, "invalid_transition", ite.Error())
			return
		}
		h.Log.Error("status transition failed", zap.String("order_id", orderID), zap.Error(err))
		respondErr(w, http.StatusInternalServerError, "internal", "status transition failed")
		return
	}

	h.cacheStatus(ctx, o)
	respondOK(w, http.StatusOK, toOrderView(o, nil))
}

// cacheStatus refresh order_status:{id}. Best effort; cache miss/lag tidak
// mengubah kebenaran di DB.
func (h *OrdersHandler) cacheStatus(ctx context.Context, o orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	b, _ := json.Marshal(map[string]string{
		"status":         string(o.Status),
		"payment_status": string(o.PaymentStatus),
	})
	if err := h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err(); err != nil {
		h.Log.Warn("status cache refresh failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}
