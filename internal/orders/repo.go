package orders

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("order not found")

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `
	id, number, customer_id,
	recipient_name, phone, address, city, province, postal_code,
	courier, courier_service, COALESCE(tracking_number, ''),
	shipping_cost, subtotal, discount, total,
	status, payment_status, COALESCE(voucher_code, ''), COALESCE(cancel_reason, ''),
	created_at, shipped_at, delivered_at, cancelled_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID,
		&o.RecipientName, &o.Phone, &o.Address, &o.City, &o.Province, &o.PostalCode,
		&o.Courier, &o.CourierService, &o.TrackingNumber,
		&o.ShippingCost, &o.Subtotal, &o.Discount, &o.Total,
		&o.Status, &o.PaymentStatus, &o.VoucherCode, &o.CancelReason,
		&o.CreatedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// CreateWithItems: order + seluruh item dalam satu transaksi. Tidak boleh ada
// order setengah jadi yang kelihatan customer; gagal di tengah -> rollback semua.
func (r *Repo) CreateWithItems(ctx context.Context, o *Order, items []OrderItem) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(
			id, number, customer_id,
			recipient_name, phone, address, city, province, postal_code,
			courier, courier_service,
			shipping_cost, subtotal, discount, total,
			status, payment_status, voucher_code, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NULLIF($18,''),$19)`,
		o.ID, o.Number, o.CustomerID,
		o.RecipientName, o.Phone, o.Address, o.City, o.Province, o.PostalCode,
		o.Courier, o.CourierService,
		o.ShippingCost, o.Subtotal, o.Discount, o.Total,
		o.Status, o.PaymentStatus, o.VoucherCode, o.CreatedAt,
	)
	if err != nil {
		return err
	}

	for i := range items {
		it := &items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = o.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, variant_id, sku, qty, price)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.OrderID, it.ProductID, it.VariantID, it.SKU, it.Qty, it.Price,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Delete hanya dipakai compensating rollback orchestrator: order baru dibuat,
// gateway gagal, order dihapus lagi. Bukan API delete umum.
func (r *Repo) Delete(ctx context.Context, orderID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetByID(ctx context.Context, id string) (Order, []OrderItem, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, nil, err
	}
	items, err := r.itemsByOrder(ctx, id)
	if err != nil {
		return Order{}, nil, err
	}
	return o, items, nil
}

func (r *Repo) itemsByOrder(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, sku, qty, price
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.SKU, &it.Qty, &it.Price); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListByCustomer: listing paginated milik satu customer; status "" = semua.
func (r *Repo) ListByCustomer(ctx context.Context, customerID string, status Status, limit, offset int) ([]Order, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	args := []any{customerID}
	where := `customer_id = $1`
	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+where+
			` ORDER BY created_at DESC LIMIT `+strconv.Itoa(limit)+` OFFSET `+strconv.Itoa(offset),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *Repo) SetStatus(ctx context.Context, id string, status Status) error {
	return r.exec1(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
}

func (r *Repo) MarkShipped(ctx context.Context, id string, at time.Time, trackingNumber string) error {
	return r.exec1(ctx, `
		UPDATE orders SET status = $2, shipped_at = $3,
			tracking_number = COALESCE(NULLIF($4, ''), tracking_number)
		WHERE id = $1`, id, StatusShipped, at, trackingNumber)
}

func (r *Repo) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return r.exec1(ctx, `
		UPDATE orders SET status = $2, delivered_at = $3 WHERE id = $1`,
		id, StatusDelivered, at)
}

func (r *Repo) MarkCancelled(ctx context.Context, id string, at time.Time, reason string) error {
	return r.exec1(ctx, `
		UPDATE orders SET status = $2, cancelled_at = $3, cancel_reason = NULLIF($4, '')
		WHERE id = $1`, id, StatusCancelled, at, reason)
}

// TransitionPaymentStatus: CAS "last applied status". changed=false berarti
// status sudah sama (webhook redelivery) atau order sudah PAID dan event yang
// datang lebih rendah (out-of-order). PAID absorbing: notifikasi pending/deny
// yang terlambat tidak boleh menurunkan paymentStatus, karena regresi itu
// membuka jalan buat settlement replay memotong stok dua kali.
func (r *Repo) TransitionPaymentStatus(ctx context.Context, id string, to PaymentStatus) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status = $2
		WHERE id = $1
		  AND payment_status <> $2
		  AND (payment_status <> $3 OR $2 = $3)`, id, to, PaymentPaid)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) exec1(ctx context.Context, sql string, args ...any) error {
	ct, err := r.DB.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
