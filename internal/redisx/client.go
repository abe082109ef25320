package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

// SetNX untuk dedup: true kalau key baru (belum pernah diproses).
func SetIfAbsent(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, "1", ttl).Result()
}

// Dedup utk alur yang butuh check dan mark TERPISAH: key baru boleh ditandai
// setelah prosesnya benar-benar sukses, supaya kegagalan di tengah tidak
// memblokir retry berikutnya.
type Dedup struct {
	R   *redis.Client
	TTL time.Duration
}

func (d *Dedup) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.R.Exists(ctx, key).Result()
	return n > 0, err
}

func (d *Dedup) Mark(ctx context.Context, key string) error {
	return d.R.Set(ctx, key, "1", d.TTL).Err()
}
