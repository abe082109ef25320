package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders.git/internal/redisx"
)

type ctxKey int

const ctxCustomerID ctxKey = iota

// CustomerID mengambil id customer hasil RequireSession dari context.
func CustomerID(ctx context.Context) string {
	id, _ := ctx.Value(ctxCustomerID).(string)
	return id
}

// RequireSession: Authorization Bearer token -> lookup session:{token} di
// Redis -> customer id masuk context. Token tidak dikenal -> 401.
func RequireSession(rdb *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			token = strings.TrimSpace(token)
			if token == "" {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			customerID, err := rdb.Get(r.Context(), fmt.Sprintf(redisx.KeySession, token)).Result()
			if err == redis.Nil || customerID == "" {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
				return
			}
			if err != nil {
				respondErr(w, http.StatusInternalServerError, "internal", "session lookup failed")
				return
			}
			ctx := context.WithValue(r.Context(), ctxCustomerID, customerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
