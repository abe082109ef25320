package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders.git/internal/orders"
)

var ErrUnknownTransaction = errors.New("unknown gateway transaction")

// Metadata settlement yang ikut di webhook.
type Metadata struct {
	PaymentType    string
	SettlementTime *time.Time
	GrossAmount    int64
}

// MapExternalStatus menerjemahkan vocabulary gateway ke paymentStatus internal.
// Status yang tidak dikenal -> ok=false, diperlakukan sebagai business no-op.
func MapExternalStatus(s string) (orders.PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "settlement", "capture":
		return orders.PaymentPaid, true
	case "pending":
		return orders.PaymentUnpaid, true
	case "deny", "cancel":
		return orders.PaymentFailed, true
	case "expire":
		return orders.PaymentExpired, true
	default:
		return "", false
	}
}

type OrderStore interface {
	GetByID(ctx context.Context, id string) (orders.Order, []orders.OrderItem, error)
	// TransitionPaymentStatus: false kalau status sudah sama (redelivery).
	TransitionPaymentStatus(ctx context.Context, id string, to orders.PaymentStatus) (bool, error)
}

type TransactionStore interface {
	FindByExternalID(ctx context.Context, externalID string) (Transaction, bool, error)
	UpdateFromWebhook(ctx context.Context, id, status, paymentType string, settledAt *time.Time) error
}

type StockDecrementer interface {
	AtomicDecrement(ctx context.Context, variantID string, qty int) (inventory.DecrementResult, error)
}

// Applier: satu-satunya pintu masuk status eksternal. Idempoten terhadap
// duplicate/out-of-order delivery: efek samping digate oleh CAS
// "payment_status berubah", bukan oleh berapa kali webhook datang.
type Applier struct {
	Orders       OrderStore
	Transactions TransactionStore
	Ledger       StockDecrementer

	// Producer per topic; paid dan mismatch adalah stream terpisah.
	PaidProducer     orders.Publisher
	MismatchProducer orders.Publisher

	Log         *zap.Logger
	ServiceName string
}

func (a *Applier) Apply(ctx context.Context, externalID, externalStatus string, meta Metadata) error {
	mapped, ok := MapExternalStatus(externalStatus)
	if !ok {
		a.Log.Warn("unrecognized gateway status, ignoring",
			zap.String("external_id", externalID),
			zap.String("external_status", externalStatus))
		return nil
	}

	tx, found, err := a.Transactions.FindByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if !found {
		return ErrUnknownTransaction
	}

	o, items, err := a.Orders.GetByID(ctx, tx.OrderID)
	if err != nil {
		return err
	}

	// Transaction row selalu di-update dulu (settlement metadata terbaru menang),
	// walaupun paymentStatus ternyata tidak berubah.
	if err := a.Transactions.UpdateFromWebhook(ctx, tx.ID, externalStatus, meta.PaymentType, meta.SettlementTime); err != nil {
		return err
	}

	changed, err := a.Orders.TransitionPaymentStatus(ctx, o.ID, mapped)
	if err != nil {
		return err
	}
	if !changed {
		a.Log.Info("webhook redelivery, no-op",
			zap.String("order_id", o.ID),
			zap.String("status", string(mapped)))
		return nil
	}

	if mapped == orders.PaymentPaid {
		if o.Status == orders.StatusCancelled {
			// Settlement nyasar utk order yang sudah batal: uang tercatat
			// (paymentStatus PAID), tapi stok tidak dipotong. Order batal
			// tidak akan dikirim; sisanya urusan refund manual.
			a.Log.Warn("settlement for cancelled order, skipping stock deduction",
				zap.String("order_id", o.ID),
				zap.String("external_id", externalID))
			a.publishPaid(o, externalID, meta)
			return nil
		}
		a.deductStock(ctx, o, items)
		a.publishPaid(o, externalID, meta)
	}
	return nil
}

// deductStock jalan sekali per order, hanya pada transisi pertama ke PAID.
// CAS gagal (oversold) bukan fatal: payment sudah diambil, jadi ini warning
// operasional + event rekonsiliasi, bukan abort.
func (a *Applier) deductStock(ctx context.Context, o orders.Order, items []orders.OrderItem) {
	for _, it := range items {
		res, err := a.Ledger.AtomicDecrement(ctx, it.VariantID, it.Qty)
		if err != nil {
			a.Log.Error("stock decrement error",
				zap.String("order_id", o.ID),
				zap.String("variant_id", it.VariantID),
				zap.Error(err))
			continue
		}
		if !res.Success {
			a.Log.Warn("partial stock deduction: paid order could not fully decrement",
				zap.String("order_id", o.ID),
				zap.String("variant_id", it.VariantID),
				zap.String("sku", it.SKU),
				zap.Int("requested", it.Qty),
				zap.Int("available", res.OldStock))
			a.publishMismatch(o, it, res.OldStock)
		}
	}
}

func (a *Applier) publishPaid(o orders.Order, externalID string, meta Metadata) {
	if a.PaidProducer == nil {
		return
	}
	ev := orders.NewEnvelope(orders.EventOrderPaid, a.ServiceName, "", o.ID,
		kafkax.MustMarshal(orders.OrderPaidPayload{
			OrderID:     o.ID,
			OrderNumber: o.Number,
			ExternalID:  externalID,
			GrossAmount: meta.GrossAmount,
		}))
	a.PaidProducer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (a *Applier) publishMismatch(o orders.Order, it orders.OrderItem, available int) {
	if a.MismatchProducer == nil {
		return
	}
	ev := orders.NewEnvelope(orders.EventStockMismatch, a.ServiceName, "", o.ID,
		kafkax.MustMarshal(orders.StockMismatchPayload{
			OrderID:   o.ID,
			VariantID: it.VariantID,
			SKU:       it.SKU,
			Requested: it.Qty,
			Available: available,
		}))
	a.MismatchProducer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockMismatch)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
