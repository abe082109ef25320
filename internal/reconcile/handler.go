package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders.git/internal/orders"
	"github.com/ariefcatur/go-storefront-orders.git/internal/redisx"
)

type StockReader interface {
	VariantsByIDs(ctx context.Context, ids []string) (map[string]inventory.Variant, error)
}

// Handler mengolah event stock.mismatch: order sudah dibayar tapi stok
// tidak cukup saat settlement. Outputnya alert terstruktur buat ops,
// bukan koreksi otomatis; keputusan refund/restock tetap manusia.
type Handler struct {
	Stocks  StockReader
	Redis   *redis.Client
	Log     *zap.Logger
	Service string
}

func (h *Handler) HandleMismatch(ctx context.Context, m kafkago.Message) error {
	var ev orders.Envelope
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		// pesan korup di-skip + commit; retry tidak akan memperbaikinya
		h.Log.Warn("undecodable event, skipping", zap.Error(err))
		return nil
	}
	if ev.EventType != orders.EventStockMismatch {
		return nil
	}

	// Dedup per event id; at-least-once delivery -> alert jangan dobel.
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyDedup, h.Service, ev.EventID)
		fresh, err := redisx.SetIfAbsent(ctx, h.Redis, key, redisx.TTLDedup)
		if err == nil && !fresh {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.StockMismatchPayload](ev.Payload)
	if err != nil {
		h.Log.Warn("undecodable mismatch payload, skipping",
			zap.String("event_id", ev.EventID), zap.Error(err))
		return nil
	}

	currentStock := -1
	if variants, err := h.Stocks.VariantsByIDs(ctx, []string{p.VariantID}); err == nil {
		if v, ok := variants[p.VariantID]; ok {
			currentStock = v.Stock
		}
	} else {
		// tetap alert; stok terkini cuma pelengkap
		h.Log.Warn("current stock lookup failed", zap.String("variant_id", p.VariantID), zap.Error(err))
	}

	h.Log.Error("stock mismatch needs reconciliation",
		zap.String("event_id", ev.EventID),
		zap.String("order_id", p.OrderID),
		zap.String("variant_id", p.VariantID),
		zap.String("sku", p.SKU),
		zap.Int("requested", p.Requested),
		zap.Int("available_at_settlement", p.Available),
		zap.Int("current_stock", currentStock),
		zap.Time("occurred_at", ev.OccurredAt),
	)
	return nil
}
