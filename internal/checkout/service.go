package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders.git/internal/cart"
	"github.com/ariefcatur/go-storefront-orders.git/internal/customers"
	"github.com/ariefcatur/go-storefront-orders.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders.git/internal/orders"
	"github.com/ariefcatur/go-storefront-orders.git/internal/payment"
	"github.com/ariefcatur/go-storefront-orders.git/internal/pricing"
	"github.com/ariefcatur/go-storefront-orders.git/internal/voucher"
)

const (
	MethodManual  = "MANUAL"
	MethodGateway = "GATEWAY"
)

// ErrValidation menandai input yang salah dari caller; HTTP layer -> 400.
var ErrValidation = errors.New("validation failed")

type CartStore interface {
	Get(ctx context.Context, customerID string) ([]cart.Item, error)
	Clear(ctx context.Context, customerID string) error
}

type CustomerDirectory interface {
	GetCustomer(ctx context.Context, id string) (customers.Customer, error)
	GetAddress(ctx context.Context, id, customerID string) (customers.Address, error)
}

type InventoryReader interface {
	VariantsByIDs(ctx context.Context, ids []string) (map[string]inventory.Variant, error)
	CheckAvailability(ctx context.Context, items []inventory.ItemDemand) error
}

type VoucherSource interface {
	FindByCode(ctx context.Context, code string) (voucher.Voucher, bool, error)
	Redeem(ctx context.Context, code string) (bool, error)
}

type OrderWriter interface {
	CreateWithItems(ctx context.Context, o *orders.Order, items []orders.OrderItem) error
	Delete(ctx context.Context, orderID string) error
}

type TransactionWriter interface {
	Create(ctx context.Context, t *payment.Transaction) error
}

type PaymentGateway interface {
	CreateSession(ctx context.Context, o orders.Order, items []orders.OrderItem, cust customers.Customer) (payment.Session, error)
}

// ItemHint: baris yang dilihat client saat submit, termasuk harga yang dia
// lihat. TIDAK dipercaya utk total; hanya dipakai sebagai consistency hint.
type ItemHint struct {
	ProductID string
	VariantID string
	Quantity  int
	Price     int64
}

type CreateOrderInput struct {
	CustomerID        string
	ShippingAddressID string
	Courier           string
	CourierService    string
	ShippingCost      int64
	Items             []ItemHint
	VoucherCode       string
	PaymentMethod     string
}

type CreateOrderResult struct {
	Order       orders.Order
	IsManual    bool
	RedirectURL string
	Token       string
}

// Service meng-orchestrate checkout: cart -> harga -> voucher -> alamat ->
// persist -> branch payment -> clear cart. Gagal di gateway -> compensating
// delete atas order yang baru dibuat.
type Service struct {
	Carts        CartStore
	Customers    CustomerDirectory
	Inventory    InventoryReader
	Vouchers     VoucherSource
	Orders       OrderWriter
	Transactions TransactionWriter
	Gateway      PaymentGateway
	Producer     orders.Publisher
	Log          *zap.Logger
	ServiceName  string
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	if in.PaymentMethod != MethodManual && in.PaymentMethod != MethodGateway {
		return CreateOrderResult{}, fmt.Errorf("%w: paymentMethod must be MANUAL or GATEWAY", ErrValidation)
	}
	if in.ShippingAddressID == "" {
		return CreateOrderResult{}, fmt.Errorf("%w: shippingAddressId is required", ErrValidation)
	}
	if in.Courier == "" || in.CourierService == "" {
		return CreateOrderResult{}, fmt.Errorf("%w: shipping courier and service are required", ErrValidation)
	}
	if in.ShippingCost < 0 {
		return CreateOrderResult{}, fmt.Errorf("%w: shipping cost cannot be negative", ErrValidation)
	}

	// 1. Cart server-side adalah sumber baris order, bukan body request.
	cartItems, err := s.Carts.Get(ctx, in.CustomerID)
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("read cart: %w", err)
	}
	if len(cartItems) == 0 {
		return CreateOrderResult{}, fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	cust, err := s.Customers.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return CreateOrderResult{}, err
	}
	addr, err := s.Customers.GetAddress(ctx, in.ShippingAddressID, in.CustomerID)
	if err != nil {
		if errors.Is(err, customers.ErrAddressNotFound) {
			return CreateOrderResult{}, fmt.Errorf("%w: shipping address not found", ErrValidation)
		}
		return CreateOrderResult{}, err
	}

	// 2. Recompute harga dari harga tersimpan saat ini + tier diskon customer.
	ids := make([]string, 0, len(cartItems))
	for _, it := range cartItems {
		ids = append(ids, it.VariantID)
	}
	variants, err := s.Inventory.VariantsByIDs(ctx, ids)
	if err != nil {
		return CreateOrderResult{}, err
	}

	lines := make([]pricing.Line, 0, len(cartItems))
	demands := make([]inventory.ItemDemand, 0, len(cartItems))
	for _, it := range cartItems {
		v, ok := variants[it.VariantID]
		if !ok {
			return CreateOrderResult{}, fmt.Errorf("%w: unknown variant %s", ErrValidation, it.VariantID)
		}
		if it.Qty <= 0 {
			return CreateOrderResult{}, fmt.Errorf("%w: invalid qty for %s", ErrValidation, v.SKU)
		}
		lines = append(lines, pricing.Line{
			ProductID: v.ProductID, VariantID: v.ID, SKU: v.SKU,
			Qty: it.Qty, BasePrice: v.Price,
		})
		demands = append(demands, inventory.ItemDemand{VariantID: v.ID, SKU: v.SKU, Qty: it.Qty})
	}
	quote := pricing.Compute(lines, cust.DiscountPct)
	s.logPriceHints(in.Items, quote)

	// 3. Voucher: invalid == tanpa voucher, diskon nol, checkout jalan terus.
	discount := int64(0)
	voucherCode := ""
	if in.VoucherCode != "" {
		v, found, err := s.Vouchers.FindByCode(ctx, in.VoucherCode)
		if err != nil {
			return CreateOrderResult{}, err
		}
		if found {
			res := voucher.Validate(v, s.now(), quote.Subtotal)
			if res.Valid {
				discount = res.Discount
				voucherCode = v.Code
			} else {
				s.Log.Info("voucher rejected, proceeding without discount",
					zap.String("code", in.VoucherCode),
					zap.String("reason", res.Reason))
			}
		}
	}

	total := quote.Subtotal + in.ShippingCost - discount

	// 4. Advisory check: fail fast dengan error itemized; tidak me-reserve.
	if err := s.Inventory.CheckAvailability(ctx, demands); err != nil {
		return CreateOrderResult{}, err
	}

	// 5. Persist order + item (harga beku) dalam satu unit logis.
	o := orders.Order{
		Number:     orders.NewNumber(),
		CustomerID: cust.ID,

		RecipientName: addr.RecipientName,
		Phone:         addr.Phone,
		Address:       addr.Address,
		City:          addr.City,
		Province:      addr.Province,
		PostalCode:    addr.PostalCode,

		Courier:        in.Courier,
		CourierService: in.CourierService,

		ShippingCost: in.ShippingCost,
		Subtotal:     quote.Subtotal,
		Discount:     discount,
		Total:        total,

		Status:        orders.StatusPending,
		PaymentStatus: orders.PaymentUnpaid,
		VoucherCode:   voucherCode,
		CreatedAt:     s.now(),
	}
	items := make([]orders.OrderItem, 0, len(quote.Lines))
	for _, l := range quote.Lines {
		items = append(items, orders.OrderItem{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			SKU:       l.SKU,
			Qty:       l.Qty,
			Price:     l.UnitPrice,
		})
	}
	if err := s.Orders.CreateWithItems(ctx, &o, items); err != nil {
		return CreateOrderResult{}, fmt.Errorf("persist order: %w", err)
	}

	// 6. Branch payment path.
	res := CreateOrderResult{Order: o}
	switch in.PaymentMethod {
	case MethodManual:
		tx := payment.Transaction{
			OrderID:     o.ID,
			ExternalID:  o.Number,
			GrossAmount: total,
			PaymentType: payment.TypeManualTransfer,
			Status:      payment.StatusPendingManual,
		}
		if err := s.Transactions.Create(ctx, &tx); err != nil {
			s.compensate(ctx, o.ID)
			return CreateOrderResult{}, fmt.Errorf("record manual transaction: %w", err)
		}
		res.IsManual = true
		res.RedirectURL = "/payment/manual/" + o.Number

	case MethodGateway:
		session, err := s.Gateway.CreateSession(ctx, o, items, cust)
		if err != nil {
			// Order orphan dengan payment session rusak tidak boleh tersisa.
			s.compensate(ctx, o.ID)
			return CreateOrderResult{}, err
		}
		tx := payment.Transaction{
			OrderID:     o.ID,
			ExternalID:  session.ExternalID,
			GrossAmount: total,
			PaymentType: "gateway",
			Status:      "pending",
			Token:       session.Token,
		}
		if err := s.Transactions.Create(ctx, &tx); err != nil {
			s.compensate(ctx, o.ID)
			return CreateOrderResult{}, fmt.Errorf("record gateway transaction: %w", err)
		}
		res.Token = session.Token
		res.RedirectURL = session.RedirectURL
	}

	// 7. Redemption dihitung sekarang, setelah order commit; bukan saat
	// validate, supaya checkout yang ditinggal tidak makan kuota.
	if discount > 0 {
		ok, err := s.Vouchers.Redeem(ctx, voucherCode)
		if err != nil || !ok {
			s.Log.Warn("voucher redemption failed after commit, keeping discount",
				zap.String("code", voucherCode),
				zap.String("order_id", o.ID),
				zap.Error(err))
		}
	}

	if err := s.Carts.Clear(ctx, in.CustomerID); err != nil {
		s.Log.Warn("cart clear failed", zap.String("customer_id", in.CustomerID), zap.Error(err))
	}

	s.publishCreated(o, res.IsManual)
	return res, nil
}

func (s *Service) compensate(ctx context.Context, orderID string) {
	if err := s.Orders.Delete(ctx, orderID); err != nil {
		s.Log.Error("compensating order delete failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

// logPriceHints: harga yang dilihat client cuma hint; kalau beda dengan
// harga hasil recompute, dicatat (bisa jadi tab lama / katalog berubah).
func (s *Service) logPriceHints(hints []ItemHint, quote pricing.Quote) {
	byVariant := make(map[string]int64, len(quote.Lines))
	for _, l := range quote.Lines {
		byVariant[l.VariantID] = l.UnitPrice
	}
	for _, h := range hints {
		if got, ok := byVariant[h.VariantID]; ok && h.Price != 0 && h.Price != got {
			s.Log.Warn("client price hint disagrees with computed price",
				zap.String("variant_id", h.VariantID),
				zap.Int64("client_price", h.Price),
				zap.Int64("computed_price", got))
		}
	}
}

func (s *Service) publishCreated(o orders.Order, isManual bool) {
	if s.Producer == nil {
		return
	}
	ev := orders.NewEnvelope(orders.EventOrderCreated, s.ServiceName, "", o.ID,
		kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:     o.ID,
			OrderNumber: o.Number,
			CustomerID:  o.CustomerID,
			Subtotal:    o.Subtotal,
			Discount:    o.Discount,
			Total:       o.Total,
			IsManual:    isManual,
		}))
	s.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
