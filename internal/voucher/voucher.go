package voucher

import "time"

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

type Voucher struct {
	Code        string
	Type        DiscountType
	Value       int64
	MaxDiscount int64 // 0 = tanpa cap
	MinPurchase int64
	Quota       int
	Used        int
	ValidFrom   time.Time
	ValidUntil  time.Time
	Active      bool
}

// Result bukan error: voucher tidak valid diperlakukan sama dengan
// tanpa voucher (diskon nol), checkout tetap jalan.
type Result struct {
	Valid    bool
	Discount int64
	Reason   string
}

// Validate menjalankan aturan berurutan: aktif -> window -> kuota -> min purchase.
// Redemption (used+1) TIDAK terjadi di sini; dihitung saat order commit.
func Validate(v Voucher, now time.Time, subtotal int64) Result {
	if !v.Active {
		return Result{Reason: "voucher is not active"}
	}
	if now.Before(v.ValidFrom) || now.After(v.ValidUntil) {
		return Result{Reason: "voucher is outside its validity window"}
	}
	if v.Used >= v.Quota {
		return Result{Reason: "voucher quota exhausted"}
	}
	if subtotal < v.MinPurchase {
		return Result{Reason: "subtotal below minimum purchase"}
	}

	var discount int64
	switch v.Type {
	case DiscountPercentage:
		discount = subtotal * v.Value / 100
		if v.MaxDiscount > 0 && discount > v.MaxDiscount {
			discount = v.MaxDiscount
		}
	case DiscountFixed:
		discount = v.Value
	default:
		return Result{Reason: "unknown discount type"}
	}
	// Diskon tidak boleh melebihi subtotal
	if discount > subtotal {
		discount = subtotal
	}
	return Result{Valid: true, Discount: discount}
}
