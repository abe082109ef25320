package reconcile

import (
	"context"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ariefcatur/go-storefront-orders.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders.git/internal/orders"
)

type stubStocks struct {
	variants map[string]inventory.Variant
	calls    int
}

func (s *stubStocks) VariantsByIDs(ctx context.Context, ids []string) (map[string]inventory.Variant, error) {
	s.calls++
	return s.variants, nil
}

func mismatchMessage(t *testing.T) kafkago.Message {
	t.Helper()
	ev := orders.NewEnvelope(orders.EventStockMismatch, "api", "", "o-1",
		kafkax.MustMarshal(orders.StockMismatchPayload{
			OrderID: "o-1", VariantID: "v1", SKU: "TSHIRT-M", Requested: 2, Available: 1,
		}))
	return kafkago.Message{Value: kafkax.MustMarshal(ev)}
}

func TestHandleMismatch_EmitsAlert(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	stocks := &stubStocks{variants: map[string]inventory.Variant{
		"v1": {ID: "v1", SKU: "TSHIRT-M", Stock: 0},
	}}
	h := &Handler{Stocks: stocks, Log: zap.New(core), Service: "reconciler"}

	err := h.HandleMismatch(context.Background(), mismatchMessage(t))

	assert.NoError(t, err)
	entries := logs.FilterMessage("stock mismatch needs reconciliation").All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "o-1", fields["order_id"])
	assert.Equal(t, int64(0), fields["current_stock"])
}

func TestHandleMismatch_IgnoresOtherEventTypes(t *testing.T) {
	stocks := &stubStocks{}
	h := &Handler{Stocks: stocks, Log: zap.NewNop(), Service: "reconciler"}

	ev := orders.NewEnvelope(orders.EventOrderPaid, "api", "", "o-1",
		kafkax.MustMarshal(orders.OrderPaidPayload{OrderID: "o-1"}))
	err := h.HandleMismatch(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(ev)})

	assert.NoError(t, err)
	assert.Zero(t, stocks.calls)
}

func TestHandleMismatch_SkipsPoisonPill(t *testing.T) {
	h := &Handler{Stocks: &stubStocks{}, Log: zap.NewNop(), Service: "reconciler"}

	// return nil supaya offset tetap di-commit; retry tidak menolong
	err := h.HandleMismatch(context.Background(), kafkago.Message{Value: []byte("bukan json")})

	assert.NoError(t, err)
}
