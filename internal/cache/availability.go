// Package cache holds the redis-backed read caches.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Availability caches the per-book copy counters under a short TTL. The
// circulation engine invalidates an entry whenever a transaction claims
// or releases one of the book's copies, so a cached read is never staler
// than the last commit. Every method is best effort: a nil redis client
// turns the cache off and the database stays the source of truth.
type Availability struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAvailability returns a cache over the given client. rdb may be nil.
func NewAvailability(rdb *redis.Client, ttl time.Duration) *Availability {
	return &Availability{rdb: rdb, ttl: ttl}
}

func availabilityKey(bookID uint64) string {
	return "avail:book:" + strconv.FormatUint(bookID, 10)
}

// Get returns the cached payload for a book, if present.
func (a *Availability) Get(ctx context.Context, bookID uint64) ([]byte, bool) {
	if a == nil || a.rdb == nil {
		return nil, false
	}
	bs, err := a.rdb.Get(ctx, availabilityKey(bookID)).Bytes()
	if err != nil {
		return nil, false
	}
	return bs, true
}

// Set stores a payload under the configured TTL.
func (a *Availability) Set(ctx context.Context, bookID uint64, payload []byte) {
	if a == nil || a.rdb == nil {
		return
	}
	_ = a.rdb.SetEx(ctx, availabilityKey(bookID), payload, a.ttl).Err()
}

// Invalidate drops the cached counters for a book. Runs after the owning
// transaction has committed, on a fresh short-lived context.
func (a *Availability) Invalidate(bookID uint64) {
	if a == nil || a.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = a.rdb.Del(ctx, availabilityKey(bookID)).Err()
}
