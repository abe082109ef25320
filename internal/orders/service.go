package orders

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-storefront-orders.git/internal/kafka"
)

// Store adalah subset repo yang dibutuhkan state machine.
type Store interface {
	GetByID(ctx context.Context, id string) (Order, []OrderItem, error)
	SetStatus(ctx context.Context, id string, status Status) error
	MarkShipped(ctx context.Context, id string, at time.Time, trackingNumber string) error
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkCancelled(ctx context.Context, id string, at time.Time, reason string) error
}

type StockRestorer interface {
	Restore(ctx context.Context, variantID string, qty int) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type TransitionInput struct {
	TrackingNumber string // opsional, utk SHIPPED
	Reason         string // opsional, utk CANCELLED
}

// Service menjalankan state machine order beserta side effect per transisi.
// paymentStatus TIDAK diurus di sini; itu milik payment adapter.
type Service struct {
	Store       Store
	Ledger      StockRestorer
	Producer    Publisher
	Log         *zap.Logger
	ServiceName string
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Transition memvalidasi lewat tabel transisi lalu menjalankan side effect:
// SHIPPED stamp shippedAt + tracking, DELIVERED stamp deliveredAt,
// CANCELLED stamp cancelledAt + restore stok kalau order pernah PAID.
func (s *Service) Transition(ctx context.Context, orderID string, to Status, in TransitionInput) (Order, error) {
	o, items, err := s.Store.GetByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}

	if !CanTransition(o.Status, to) {
		return Order{}, &InvalidTransitionError{From: o.Status, To: to, Allowed: AllowedFrom(o.Status)}
	}

	at := s.now()
	switch to {
	case StatusProcessing:
		err = s.Store.SetStatus(ctx, orderID, StatusProcessing)
	case StatusShipped:
		err = s.Store.MarkShipped(ctx, orderID, at, in.TrackingNumber)
	case StatusDelivered:
		err = s.Store.MarkDelivered(ctx, orderID, at)
	case StatusCancelled:
		err = s.Store.MarkCancelled(ctx, orderID, at, in.Reason)
	default:
		// tabel transisi sudah menyaring; default tidak tercapai utk status valid
		err = s.Store.SetStatus(ctx, orderID, to)
	}
	if err != nil {
		return Order{}, err
	}

	restored := false
	if to == StatusCancelled && o.PaymentStatus == PaymentPaid {
		// Stok hanya pernah dipotong kalau order sempat PAID;
		// cancel order UNPAID tidak mengembalikan apa-apa.
		restored = true
		for _, it := range items {
			if rerr := s.Ledger.Restore(ctx, it.VariantID, it.Qty); rerr != nil {
				restored = false
				s.Log.Error("stock restore failed",
					zap.String("order_id", orderID),
					zap.String("variant_id", it.VariantID),
					zap.Int("qty", it.Qty),
					zap.Error(rerr))
			}
		}
	}

	if to == StatusCancelled && s.Producer != nil {
		ev := NewEnvelope(EventOrderCancelled, s.ServiceName, "", orderID,
			kafkax.MustMarshal(OrderCancelledPayload{
				OrderID:       orderID,
				OrderNumber:   o.Number,
				Reason:        in.Reason,
				StockRestored: restored,
			}))
		s.Producer.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderCancelled)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}

	o.Status = to
	switch to {
	case StatusShipped:
		o.ShippedAt = &at
		if in.TrackingNumber != "" {
			o.TrackingNumber = in.TrackingNumber
		}
	case StatusDelivered:
		o.DeliveredAt = &at
	case StatusCancelled:
		o.CancelledAt = &at
		o.CancelReason = in.Reason
	}
	return o, nil
}
