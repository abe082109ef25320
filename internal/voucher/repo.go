package voucher

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// FindByCode: found=false kalau kode tidak ada (bukan error).
func (r *Repo) FindByCode(ctx context.Context, code string) (Voucher, bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Voucher{}, false, nil
	}

	var v Voucher
	err := r.DB.QueryRow(ctx, `
		SELECT code, discount_type, value, COALESCE(max_discount, 0), min_purchase,
		       quota, used, valid_from, valid_until, active
		FROM vouchers WHERE code = $1`, code).
		Scan(&v.Code, &v.Type, &v.Value, &v.MaxDiscount, &v.MinPurchase,
			&v.Quota, &v.Used, &v.ValidFrom, &v.ValidUntil, &v.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, false, nil
	}
	if err != nil {
		return Voucher{}, false, err
	}
	return v, true, nil
}

// Redeem menaikkan counter used dengan disiplin CAS yang sama seperti stok:
// satu statement, hanya sukses kalau kuota masih tersisa saat write.
// Dua checkout bersamaan di sisa kuota terakhir -> tepat satu yang dapat.
func (r *Repo) Redeem(ctx context.Context, code string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE vouchers SET used = used + 1
		WHERE code = $1 AND used < quota`, code)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
