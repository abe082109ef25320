package orders

import "time"

// Order adalah unit persistence + subjek state machine.
// Snapshot alamat di-denormalize: perubahan address book setelah checkout
// tidak boleh mengubah order yang sudah jadi.
// Invariant: Total == Subtotal + ShippingCost - Discount, selalu >= 0.
type Order struct {
	ID         string
	Number     string
	CustomerID string

	RecipientName string
	Phone         string
	Address       string
	City          string
	Province      string
	PostalCode    string

	Courier        string
	CourierService string
	TrackingNumber string

	ShippingCost int64
	Subtotal     int64
	Discount     int64
	Total        int64

	Status        Status
	PaymentStatus PaymentStatus
	VoucherCode   string
	CancelReason  string

	CreatedAt   time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// OrderItem immutable setelah dibuat; Price adalah harga yang benar-benar
// ditagih (frozen copy), tidak ikut berubah kalau harga katalog berubah.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	VariantID string
	SKU       string
	Qty       int
	Price     int64
}
