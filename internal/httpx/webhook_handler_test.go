package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders.git/internal/payment"
)

type stubApplier struct {
	err   error
	calls []string
}

func (s *stubApplier) Apply(ctx context.Context, externalID, externalStatus string, meta payment.Metadata) error {
	s.calls = append(s.calls, externalID+"/"+externalStatus)
	return s.err
}

type fakeDeduper struct {
	seen   map[string]bool
	marked []string
}

func (f *fakeDeduper) Seen(ctx context.Context, key string) (bool, error) {
	return f.seen[key], nil
}

func (f *fakeDeduper) Mark(ctx context.Context, key string) error {
	f.marked = append(f.marked, key)
	return nil
}

func postNotification(t *testing.T, h *WebhookHandler, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/payments/notifications", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	h.handleNotification(rec, req)
	return rec
}

func TestWebhook_Settlement(t *testing.T) {
	ap := &stubApplier{}
	h := &WebhookHandler{Applier: ap, Log: zap.NewNop()}

	rec := postNotification(t, h, map[string]string{
		"order_id":           "ORD-1700000000000-abc123",
		"transaction_status": "settlement",
		"payment_type":       "bank_transfer",
		"gross_amount":       "105000.00",
		"settlement_time":    "2025-03-10 12:00:00",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ORD-1700000000000-abc123/settlement"}, ap.calls)
}

func TestWebhook_UnknownTransactionIsStill200(t *testing.T) {
	ap := &stubApplier{err: payment.ErrUnknownTransaction}
	h := &WebhookHandler{Applier: ap, Log: zap.NewNop()}

	rec := postNotification(t, h, map[string]string{
		"order_id":           "ORD-lain",
		"transaction_status": "settlement",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
}

func TestWebhook_InternalErrorIs500(t *testing.T) {
	ap := &stubApplier{err: context.DeadlineExceeded}
	h := &WebhookHandler{Applier: ap, Log: zap.NewNop()}

	rec := postNotification(t, h, map[string]string{
		"order_id":           "ORD-x",
		"transaction_status": "settlement",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhook_SuccessMarksDedup(t *testing.T) {
	ap := &stubApplier{}
	ded := &fakeDeduper{seen: map[string]bool{}}
	h := &WebhookHandler{Applier: ap, Dedup: ded, Log: zap.NewNop()}

	rec := postNotification(t, h, map[string]string{
		"order_id":           "ORD-x",
		"transaction_status": "settlement",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"dedup:webhook:ORD-x:settlement"}, ded.marked)
}

func TestWebhook_FailedApplyStaysRetryable(t *testing.T) {
	// Apply gagal -> 500 tanpa mark, supaya retry gateway berikutnya utk
	// (order, status) yang sama tidak mental di fast-path duplicate.
	ap := &stubApplier{err: context.DeadlineExceeded}
	ded := &fakeDeduper{seen: map[string]bool{}}
	h := &WebhookHandler{Applier: ap, Dedup: ded, Log: zap.NewNop()}

	rec := postNotification(t, h, map[string]string{
		"order_id":           "ORD-x",
		"transaction_status": "settlement",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, ded.marked)

	// retry setelah masalah internal beres -> Apply kena lagi dan sukses
	ap.err = nil
	rec = postNotification(t, h, map[string]string{
		"order_id":           "ORD-x",
		"transaction_status": "settlement",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, ap.calls, 2)
	assert.Equal(t, []string{"dedup:webhook:ORD-x:settlement"}, ded.marked)
}

func TestWebhook_DuplicateShortCircuits(t *testing.T) {
	ap := &stubApplier{}
	ded := &fakeDeduper{seen: map[string]bool{"dedup:webhook:ORD-x:settlement": true}}
	h := &WebhookHandler{Applier: ap, Dedup: ded, Log: zap.NewNop()}

	rec := postNotification(t, h, map[string]string{
		"order_id":           "ORD-x",
		"transaction_status": "settlement",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ap.calls)
}

func TestWebhook_MissingFields(t *testing.T) {
	ap := &stubApplier{}
	h := &WebhookHandler{Applier: ap, Log: zap.NewNop()}

	rec := postNotification(t, h, map[string]string{"transaction_status": "settlement"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ap.calls)
}

func TestWebhook_SignatureMismatch(t *testing.T) {
	ap := &stubApplier{}
	h := &WebhookHandler{Applier: ap, ServerKey: "rahasia", Log: zap.NewNop()}

	rec := postNotification(t, h, map[string]string{
		"order_id":           "ORD-x",
		"status_code":        "200",
		"transaction_status": "settlement",
		"gross_amount":       "105000.00",
		"signature_key":      "salah",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, ap.calls)
}

func TestParseGross(t *testing.T) {
	assert.Equal(t, int64(105000), parseGross("105000.00"))
	assert.Equal(t, int64(0), parseGross(""))
	assert.Equal(t, int64(0), parseGross("abc"))
}
