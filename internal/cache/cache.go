// Package cache stores computed room heat-maps between requests.
//
// Values are opaque byte slices keyed by string. Implementations must be safe
// for concurrent use. A miss is reported with ok=false and a nil error; errors
// are reserved for backend failures, which callers treat as misses.
//
// Besides values a Store keeps integer generation counters. Counters never
// expire, so every process sharing a backend sees the same sequence and can
// build generation-scoped value keys from it.
package cache

import (
	"context"
	"time"
)

// DefaultTTL bounds how long an entry survives without invalidation.
const DefaultTTL = 30 * time.Second

// Store is a TTL key/value cache.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Generation reports the counter stored under key, zero when absent.
	Generation(ctx context.Context, key string) (int64, error)
	// Bump increments the counter stored under key and returns the new value.
	Bump(ctx context.Context, key string) (int64, error)
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte) error         { return nil }
func (Noop) Delete(context.Context, string) error              { return nil }

func (Noop) Generation(context.Context, string) (int64, error) { return 0, nil }
func (Noop) Bump(context.Context, string) (int64, error)       { return 0, nil }
