package suppliers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Source loads suppliers from the system of record.
type Source interface {
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
}

// Directory serves supplier lookups through a short-lived Redis cache.
// A nil redis client disables caching.
type Directory struct {
	source Source
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewDirectory constructs Directory.
func NewDirectory(source Source, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{source: source, client: client, ttl: ttl, logger: logger}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("suppliers:%d", id)
}

// Get returns the supplier. Cache failures fall through to the source.
func (d *Directory) Get(ctx context.Context, id int64) (Supplier, error) {
	if d.client != nil {
		raw, err := d.client.Get(ctx, cacheKey(id)).Bytes()
		switch {
		case err == nil:
			var s Supplier
			if jsonErr := json.Unmarshal(raw, &s); jsonErr == nil {
				return s, nil
			}
		case !errors.Is(err, redis.Nil):
			d.logger.Warn("supplier cache read", slog.Int64("supplier_id", id), slog.Any("error", err))
		}
	}
	s, err := d.source.GetSupplier(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	if d.client != nil {
		if raw, err := json.Marshal(s); err == nil {
			if err := d.client.Set(ctx, cacheKey(id), raw, d.ttl).Err(); err != nil {
				d.logger.Warn("supplier cache write", slog.Int64("supplier_id", id), slog.Any("error", err))
			}
		}
	}
	return s, nil
}

// Invalidate drops a cached supplier.
func (d *Directory) Invalidate(ctx context.Context, id int64) error {
	if d.client == nil {
		return nil
	}
	return d.client.Del(ctx, cacheKey(id)).Err()
}
