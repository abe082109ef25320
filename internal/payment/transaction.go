package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transaction: satu baris per payment attempt, 1:1 (logis) dengan order.
// Dibuat saat order dibuat; di-update (bukan di-replace) saat webhook masuk.
type Transaction struct {
	ID          string
	OrderID     string
	ExternalID  string // id transaksi di gateway; manual path pakai order number
	GrossAmount int64
	PaymentType string // manual_transfer | gateway label (bank_transfer, qris, ...)
	Status      string // vocabulary gateway: pending, settlement, deny, expire, ...
	Token       string // snap session token (gateway path)
	SettledAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	StatusPendingManual = "pending"
	TypeManualTransfer  = "manual_transfer"
)

type TransactionRepo struct{ DB *pgxpool.Pool }

func (r *TransactionRepo) Create(ctx context.Context, t *Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := r.DB.Exec(ctx, `
		INSERT INTO transactions(id, order_id, external_id, gross_amount, payment_type, status, token, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,$9)`,
		t.ID, t.OrderID, t.ExternalID, t.GrossAmount, t.PaymentType, t.Status, t.Token, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *TransactionRepo) FindByExternalID(ctx context.Context, externalID string) (Transaction, bool, error) {
	var t Transaction
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, external_id, gross_amount, payment_type, status,
		       COALESCE(token, ''), settled_at, created_at, updated_at
		FROM transactions WHERE external_id = $1`, externalID).
		Scan(&t.ID, &t.OrderID, &t.ExternalID, &t.GrossAmount, &t.PaymentType, &t.Status,
			&t.Token, &t.SettledAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	return t, true, nil
}

// UpdateFromWebhook menimpa status + metadata settlement di baris yang sama.
func (r *TransactionRepo) UpdateFromWebhook(ctx context.Context, id, status, paymentType string, settledAt *time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE transactions
		SET status = $2,
		    payment_type = COALESCE(NULLIF($3, ''), payment_type),
		    settled_at = COALESCE($4, settled_at),
		    updated_at = now()
		WHERE id = $1`, id, status, paymentType, settledAt)
	return err
}
