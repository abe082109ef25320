package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Variant adalah unit stok: satu SKU dari sebuah produk.
type Variant struct {
	ID        string
	ProductID string
	SKU       string
	Price     int64
	Stock     int
}

type ItemDemand struct {
	VariantID string
	SKU       string
	Qty       int
}

type DecrementResult struct {
	Success  bool
	OldStock int
	NewStock int
}

var ErrVariantNotFound = errors.New("variant not found")

// Ledger memegang counter stok per varian. Semua mutasi stok lewat sini.
type Ledger struct{ DB *pgxpool.Pool }

// VariantsByIDs baca harga + stok tersimpan saat ini (harga client tidak dipercaya).
func (l *Ledger) VariantsByIDs(ctx context.Context, ids []string) (map[string]Variant, error) {
	if len(ids) == 0 {
		return map[string]Variant{}, nil
	}
	rows, err := l.DB.Query(ctx, `
		SELECT id, product_id, sku, price, stock
		FROM product_variants WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Variant, len(ids))
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Price, &v.Stock); err != nil {
			return nil, err
		}
		out[v.ID] = v
	}
	return out, rows.Err()
}

// CheckAvailability cek advisory saja: tidak me-reserve stok, jadi race antara
// dua checkout utk unit terakhir memang mungkin. Otoritasnya ada di
// AtomicDecrement saat payment confirm.
func (l *Ledger) CheckAvailability(ctx context.Context, items []ItemDemand) error {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.VariantID)
	}
	variants, err := l.VariantsByIDs(ctx, ids)
	if err != nil {
		return err
	}

	var short []ShortItem
	for _, it := range items {
		v, ok := variants[it.VariantID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrVariantNotFound, it.VariantID)
		}
		if v.Stock < it.Qty {
			short = append(short, ShortItem{SKU: v.SKU, Available: v.Stock, Requested: it.Qty})
		}
	}
	if len(short) > 0 {
		return &InsufficientStockError{Items: short}
	}
	return nil
}

// AtomicDecrement: compare-and-swap satu statement. Kurangi stok N hanya jika
// stok saat write masih >= N; tidak ada window read-then-write dari aplikasi.
func (l *Ledger) AtomicDecrement(ctx context.Context, variantID string, qty int) (DecrementResult, error) {
	var newStock int
	err := l.DB.QueryRow(ctx, `
		UPDATE product_variants
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		RETURNING stock`, variantID, qty).Scan(&newStock)
	if err == nil {
		return DecrementResult{Success: true, OldStock: newStock + qty, NewStock: newStock}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return DecrementResult{}, err
	}

	// CAS gagal: stok kurang (atau varian hilang). Ambil stok utk diagnostik.
	var cur int
	err = l.DB.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id = $1`, variantID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return DecrementResult{}, fmt.Errorf("%w: %s", ErrVariantNotFound, variantID)
	}
	if err != nil {
		return DecrementResult{}, err
	}
	return DecrementResult{Success: false, OldStock: cur, NewStock: cur}, nil
}

// Restore: increment tanpa syarat, dipakai saat order CANCELLED setelah
// stoknya sempat dipotong.
func (l *Ledger) Restore(ctx context.Context, variantID string, qty int) error {
	ct, err := l.DB.Exec(ctx, `
		UPDATE product_variants SET stock = stock + $2 WHERE id = $1`, variantID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s", ErrVariantNotFound, variantID)
	}
	return nil
}
