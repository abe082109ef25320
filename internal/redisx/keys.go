package redisx

import "time"

const (
	// Cart aktif per customer: cart:{customer_id} -> JSON array item
	KeyCart = "cart:%s"

	// Session lookup: session:{token} -> customer_id
	KeySession = "session:%s"

	// Cache status order: order_status:{order_id} -> {"status":"...","payment_status":"..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup notifikasi gateway: dedup:webhook:{external_id}:{status}
	// Fast-path saja; kebenaran tetap di DB (cek paymentStatus).
	KeyWebhookDedup = "dedup:webhook:%s:%s"

	// Dedup event consumer: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache  = 5 * time.Minute
	TTLWebhookDedup = 48 * time.Hour
	TTLDedup        = 48 * time.Hour
)
