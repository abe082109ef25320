package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
	EventStockMismatch  = "StockMismatch"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "storefront-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope: envelope v1 siap publish; payload harus sudah ter-marshal.
func NewEnvelope(eventType, producer, traceID, correlationID string, payload []byte) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

// ---- Payload tipe per event ----

type OrderCreatedPayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	CustomerID  string `json:"customer_id"`
	Subtotal    int64  `json:"subtotal"`
	Discount    int64  `json:"discount"`
	Total       int64  `json:"total"`
	IsManual    bool   `json:"is_manual"`
}

type OrderPaidPayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	ExternalID  string `json:"external_id"` // transaction id dari gateway
	GrossAmount int64  `json:"gross_amount"`
}

type OrderCancelledPayload struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	Reason        string `json:"reason,omitempty"`
	StockRestored bool   `json:"stock_restored"`
}

// StockMismatchPayload: payment sudah masuk tapi CAS decrement gagal
// (oversold edge case). Bahan rekonsiliasi manual, bukan abort.
type StockMismatchPayload struct {
	OrderID   string `json:"order_id"`
	VariantID string `json:"variant_id"`
	SKU       string `json:"sku,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}
