package orders

import (
	"crypto/rand"
	"fmt"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewNumber: ORD-<millisecond-timestamp>-<random base36>, unik global dan
// enak ditampilkan ke customer.
func NewNumber() string {
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), randBase36(6))
}

func randBase36(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = base36[int(b[i])%len(base36)]
	}
	return string(b)
}
