package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Store is a byte-oriented TTL key/value store. A miss is (nil, false, nil).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Fingerprint derives a stable cache key from the parts identifying a
// request.
func Fingerprint(namespace string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s:v1:%s", namespace, hex.EncodeToString(h.Sum(nil))[:32])
}

// ReadThrough serves values from a Store and loads them on a miss. Store
// failures degrade to calling the loader; they never fail the request.
type ReadThrough struct {
	store  Store
	logger *zap.Logger
}

func NewReadThrough(store Store, logger *zap.Logger) *ReadThrough {
	return &ReadThrough{store: store, logger: logger}
}

// GetOrLoad returns the cached value for key, or calls load and caches its
// result for ttl. Loader errors are returned and nothing is cached.
func GetOrLoad[T any](ctx context.Context, rt *ReadThrough, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T

	if raw, ok, err := rt.store.Get(ctx, key); err != nil {
		rt.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		rt.logger.Warn("dropping undecodable cache entry", zap.String("key", key))
		_ = rt.store.Delete(ctx, key)
	}

	v, err := load(ctx)
	if err != nil {
		return zero, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		rt.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return v, nil
	}
	if err := rt.store.Set(ctx, key, raw, ttl); err != nil {
		rt.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
