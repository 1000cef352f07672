// Copyright 2025 Molt Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/molthq/molt/pkg/log"
)

const defaultQueryTTL = 10 * time.Minute

// CachedQuery wraps a database query with a redis read-through cache.
// A nil or failing cache degrades to the plain query.
type CachedQuery[T any] struct {
	cache     ICache
	keyFunc   func(params ...any) string
	queryFunc func(ctx context.Context) (T, error)
	ttl       time.Duration
	logPrefix string
}

// Option configures a CachedQuery.
type Option[T any] func(*CachedQuery[T])

// WithTTL overrides the cache entry lifetime.
func WithTTL[T any](ttl time.Duration) Option[T] {
	return func(cq *CachedQuery[T]) {
		cq.ttl = ttl
	}
}

// WithLogPrefix tags cache log lines.
func WithLogPrefix[T any](prefix string) Option[T] {
	return func(cq *CachedQuery[T]) {
		cq.logPrefix = prefix
	}
}

// NewCachedQuery builds a cached query. queryFunc may be nil when the
// instance is only used for Invalidate.
func NewCachedQuery[T any](
	cache ICache,
	keyFunc func(params ...any) string,
	queryFunc func(ctx context.Context) (T, error),
	opts ...Option[T],
) *CachedQuery[T] {
	cq := &CachedQuery[T]{
		cache:     cache,
		keyFunc:   keyFunc,
		queryFunc: queryFunc,
		ttl:       defaultQueryTTL,
	}
	for _, opt := range opts {
		opt(cq)
	}
	return cq
}

// Get returns the cached value for the key built from params, querying and
// populating the cache on a miss.
func (cq *CachedQuery[T]) Get(ctx context.Context, params ...any) (T, error) {
	var zero T
	if cq.cache == nil {
		return cq.queryFunc(ctx)
	}

	key := cq.keyFunc(params...)
	raw, err := cq.cache.Get(ctx, key).Result()
	if err == nil {
		var value T
		if uerr := sonic.UnmarshalString(raw, &value); uerr == nil {
			return value, nil
		}
		// Corrupt entry: drop it and re-query.
		_ = cq.cache.Del(ctx, key).Err()
	} else if err != redis.Nil {
		log.Debugw("cache read failed, falling back to query", "prefix", cq.logPrefix, "key", key, "err", err)
	}

	value, err := cq.queryFunc(ctx)
	if err != nil {
		return zero, err
	}

	if raw, merr := sonic.MarshalString(value); merr == nil {
		if serr := cq.cache.Set(ctx, key, raw, cq.ttl).Err(); serr != nil {
			log.Debugw("cache write failed", "prefix", cq.logPrefix, "key", key, "err", serr)
		}
	}
	return value, nil
}

// Invalidate removes the cache entry for the key built from params.
func (cq *CachedQuery[T]) Invalidate(ctx context.Context, params ...any) error {
	if cq.cache == nil {
		return nil
	}
	return cq.cache.Del(ctx, cq.keyFunc(params...)).Err()
}
