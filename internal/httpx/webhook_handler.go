package httpx

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders.git/internal/payment"
	"github.com/ariefcatur/go-storefront-orders.git/internal/redisx"
)

type NotificationApplier interface {
	Apply(ctx context.Context, externalID, externalStatus string, meta payment.Metadata) error
}

// Deduper: check dan mark terpisah. Mark hanya setelah apply sukses;
// kalau mark jalan duluan, retry gateway setelah kegagalan internal kita
// bakal di-short-circuit sebagai duplicate dan transisinya hilang.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// WebhookHandler menerima notifikasi server-to-server dari gateway.
// Kontrak penting: retry yang sama harus idempotent, dan business no-op
// (status tidak dikenal, transaksi tidak dikenal) dijawab 200 supaya
// gateway berhenti retry. 5xx hanya untuk kegagalan internal yang memang
// layak di-retry.
type WebhookHandler struct {
	Applier   NotificationApplier
	Dedup     Deduper
	ServerKey string
	Log       *zap.Logger
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/payments/notifications", h.handleNotification)
}

type gatewayNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	TransactionStatus string `json:"transaction_status"`
	PaymentType       string `json:"payment_type"`
	SettlementTime    string `json:"settlement_time"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

func (h *WebhookHandler) handleNotification(w http.ResponseWriter, r *http.Request) {
	var n gatewayNotification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		respondErr(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if n.OrderID == "" || n.TransactionStatus == "" {
		respondErr(w, http.StatusBadRequest, "bad_request", "order_id and transaction_status are required")
		return
	}
	if h.ServerKey != "" && !h.validSignature(n) {
		h.Log.Warn("webhook signature mismatch", zap.String("order_id", n.OrderID))
		respondErr(w, http.StatusForbidden, "forbidden", "signature mismatch")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Dedup fast-path; kebenaran tetap CAS paymentStatus di DB, jadi Redis
	// mati bukan masalah correctness.
	key := fmt.Sprintf(redisx.KeyWebhookDedup, n.OrderID, n.TransactionStatus)
	if h.Dedup != nil {
		if seen, err := h.Dedup.Seen(ctx, key); err == nil && seen {
			h.Log.Info("duplicate webhook short-circuited",
				zap.String("order_id", n.OrderID),
				zap.String("status", n.TransactionStatus))
			respondOK(w, http.StatusOK, map[string]string{"result": "duplicate"})
			return
		}
	}

	meta := payment.Metadata{
		PaymentType: n.PaymentType,
		GrossAmount: parseGross(n.GrossAmount),
	}
	if t, err := time.Parse("2006-01-02 15:04:05", n.SettlementTime); err == nil {
		meta.SettlementTime = &t
	}

	err := h.Applier.Apply(ctx, n.OrderID, n.TransactionStatus, meta)
	switch {
	case err == nil:
		h.markSeen(ctx, key, n.OrderID)
		respondOK(w, http.StatusOK, map[string]string{"result": "ok"})
	case errors.Is(err, payment.ErrUnknownTransaction):
		// Bisa notifikasi utk order dari environment lain; bukan error kita.
		// Tidak di-mark: kalau transaksinya muncul belakangan, retry boleh kena.
		h.Log.Warn("webhook for unknown transaction", zap.String("order_id", n.OrderID))
		respondOK(w, http.StatusOK, map[string]string{"result": "ignored"})
	default:
		// Tidak di-mark: 500 memancing retry gateway, dan retry itu harus
		// sampai ke Apply lagi, bukan mental di fast-path.
		h.Log.Error("webhook apply failed", zap.String("order_id", n.OrderID), zap.Error(err))
		respondErr(w, http.StatusInternalServerError, "internal", "failed to process notification")
	}
}

func (h *WebhookHandler) markSeen(ctx context.Context, key, orderID string) {
	if h.Dedup == nil {
		return
	}
	if err := h.Dedup.Mark(ctx, key); err != nil {
		h.Log.Warn("webhook dedup mark failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

// validSignature: sha512(order_id + status_code + gross_amount + server_key).
func (h *WebhookHandler) validSignature(n gatewayNotification) bool {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + h.ServerKey))
	return hex.EncodeToString(sum[:]) == n.SignatureKey
}

// parseGross: gateway kirim "105000.00" sebagai string.
func parseGross(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}
