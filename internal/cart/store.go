package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders.git/internal/redisx"
)

type Item struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Qty       int    `json:"qty"`
}

// Store: keranjang aktif per customer di Redis. Isi keranjang ditulis oleh
// permukaan UI (di luar scope); core cuma baca saat checkout dan clear
// setelah order sukses.
type Store struct{ R *redis.Client }

func (s *Store) Get(ctx context.Context, customerID string) ([]Item, error) {
	raw, err := s.R.Get(ctx, fmt.Sprintf(redisx.KeyCart, customerID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return items, nil
}

func (s *Store) Clear(ctx context.Context, customerID string) error {
	return s.R.Del(ctx, fmt.Sprintf(redisx.KeyCart, customerID)).Err()
}
