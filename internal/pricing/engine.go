package pricing

import "math"

// Line adalah input per baris: harga dasar varian + jumlah.
type Line struct {
	ProductID string
	VariantID string
	SKU       string
	Qty       int
	BasePrice int64
}

// PricedLine membawa harga final yang sudah dihitung server-side.
// Harga ini yang dibekukan ke order item, bukan harga kiriman client.
type PricedLine struct {
	ProductID string
	VariantID string
	SKU       string
	Qty       int
	UnitPrice int64
}

type Quote struct {
	Lines    []PricedLine
	Subtotal int64
}

// UnitPrice menerapkan diskon tier customer (persen, 0 utk customer biasa),
// dibulatkan ke unit mata uang terkecil.
func UnitPrice(basePrice int64, discountPct float64) int64 {
	if discountPct <= 0 {
		return basePrice
	}
	if discountPct >= 100 {
		return 0
	}
	return int64(math.Round(float64(basePrice) * (1 - discountPct/100)))
}

// Compute menghitung ulang seluruh keranjang dari harga tersimpan saat ini.
func Compute(lines []Line, discountPct float64) Quote {
	q := Quote{Lines: make([]PricedLine, 0, len(lines))}
	for _, l := range lines {
		price := UnitPrice(l.BasePrice, discountPct)
		q.Lines = append(q.Lines, PricedLine{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			SKU:       l.SKU,
			Qty:       l.Qty,
			UnitPrice: price,
		})
		q.Subtotal += price * int64(l.Qty)
	}
	return q
}
