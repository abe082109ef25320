package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	order Order
	items []OrderItem

	setStatus  []Status
	shippedAt  *time.Time
	tracking   string
	delivered  *time.Time
	cancelled  *time.Time
	cancelWhy  string
	statusErrs error
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (Order, []OrderItem, error) {
	return f.order, f.items, nil
}
func (f *fakeStore) SetStatus(ctx context.Context, id string, status Status) error {
	f.setStatus = append(f.setStatus, status)
	return f.statusErrs
}
func (f *fakeStore) MarkShipped(ctx context.Context, id string, at time.Time, tracking string) error {
	f.shippedAt, f.tracking = &at, tracking
	return nil
}
func (f *fakeStore) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	f.delivered = &at
	return nil
}
func (f *fakeStore) MarkCancelled(ctx context.Context, id string, at time.Time, reason string) error {
	f.cancelled, f.cancelWhy = &at, reason
	return nil
}

type fakeRestorer struct {
	restored map[string]int
	failFor  map[string]error
}

func (f *fakeRestorer) Restore(ctx context.Context, variantID string, qty int) error {
	if err, ok := f.failFor[variantID]; ok {
		return err
	}
	if f.restored == nil {
		f.restored = map[string]int{}
	}
	f.restored[variantID] += qty
	return nil
}

type capturedEvent struct {
	key   []byte
	value []byte
}

type fakePublisher struct{ events []capturedEvent }

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	f.events = append(f.events, capturedEvent{key: key, value: value})
}

func newService(store *fakeStore, led *fakeRestorer, pub *fakePublisher) *Service {
	return &Service{
		Store:       store,
		Ledger:      led,
		Producer:    pub,
		Log:         zap.NewNop(),
		ServiceName: "test",
		Now:         func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func TestTransition_InvalidRejected(t *testing.T) {
	store := &fakeStore{order: Order{ID: "o1", Status: StatusDelivered}}
	svc := newService(store, &fakeRestorer{}, &fakePublisher{})

	_, err := svc.Transition(context.Background(), "o1", StatusProcessing, TransitionInput{})
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, StatusDelivered, ite.From)
	assert.Equal(t, StatusProcessing, ite.To)
	assert.Empty(t, store.setStatus)
}

func TestTransition_ShippedStampsTracking(t *testing.T) {
	store := &fakeStore{order: Order{ID: "o1", Status: StatusProcessing}}
	svc := newService(store, &fakeRestorer{}, &fakePublisher{})

	o, err := svc.Transition(context.Background(), "o1", StatusShipped, TransitionInput{TrackingNumber: "JNE-123"})
	require.NoError(t, err)
	require.NotNil(t, store.shippedAt)
	assert.Equal(t, "JNE-123", store.tracking)
	assert.Equal(t, "JNE-123", o.TrackingNumber)
	assert.NotNil(t, o.ShippedAt)
}

func TestTransition_CancelUnpaidRestoresNothing(t *testing.T) {
	// Scenario D (bagian 1): PENDING/UNPAID dibatalkan -> stok tidak berubah.
	store := &fakeStore{
		order: Order{ID: "o1", Status: StatusPending, PaymentStatus: PaymentUnpaid},
		items: []OrderItem{{VariantID: "v1", Qty: 2}},
	}
	led := &fakeRestorer{}
	svc := newService(store, led, &fakePublisher{})

	_, err := svc.Transition(context.Background(), "o1", StatusCancelled, TransitionInput{Reason: "customer request"})
	require.NoError(t, err)
	assert.Empty(t, led.restored)
	assert.Equal(t, "customer request", store.cancelWhy)
}

func TestTransition_CancelPaidRestoresOriginalQuantities(t *testing.T) {
	// Scenario D (bagian 2): PROCESSING/PAID dibatalkan -> restore persis qty awal.
	store := &fakeStore{
		order: Order{ID: "o1", Number: "ORD-1-abc", Status: StatusProcessing, PaymentStatus: PaymentPaid},
		items: []OrderItem{
			{VariantID: "v1", Qty: 2},
			{VariantID: "v2", Qty: 1},
		},
	}
	led := &fakeRestorer{}
	pub := &fakePublisher{}
	svc := newService(store, led, pub)

	_, err := svc.Transition(context.Background(), "o1", StatusCancelled, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"v1": 2, "v2": 1}, led.restored)
	require.Len(t, pub.events, 1)
	assert.Equal(t, []byte("o1"), pub.events[0].key)

	var env Envelope
	require.NoError(t, json.Unmarshal(pub.events[0].value, &env))
	var pl OrderCancelledPayload
	require.NoError(t, json.Unmarshal(env.Payload, &pl))
	assert.True(t, pl.StockRestored)
}

func TestTransition_CancelPaidRestoreFailureReportedInEvent(t *testing.T) {
	// Kalau salah satu Restore gagal, event tidak boleh mengklaim
	// stok sudah kembali; stock_restored harus false.
	store := &fakeStore{
		order: Order{ID: "o1", Number: "ORD-1-abc", Status: StatusProcessing, PaymentStatus: PaymentPaid},
		items: []OrderItem{
			{VariantID: "v1", Qty: 2},
			{VariantID: "v2", Qty: 1},
		},
	}
	led := &fakeRestorer{failFor: map[string]error{"v2": errors.New("redis down")}}
	pub := &fakePublisher{}
	svc := newService(store, led, pub)

	_, err := svc.Transition(context.Background(), "o1", StatusCancelled, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"v1": 2}, led.restored)

	require.Len(t, pub.events, 1)
	var env Envelope
	require.NoError(t, json.Unmarshal(pub.events[0].value, &env))
	var pl OrderCancelledPayload
	require.NoError(t, json.Unmarshal(env.Payload, &pl))
	assert.False(t, pl.StockRestored)
}
