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
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeCache struct {
	data    map[string]string
	getErr  error
	setErr  error
	gets    int
	sets    int
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (f *fakeCache) Get(ctx context.Context, key string) *redis.StringCmd {
	f.gets++
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeCache) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.sets++
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCache) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.deletes++
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeCache) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	n := int64(0)
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeCache) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	return redis.NewIntResult(0, nil)
}

func (f *fakeCache) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return nil
}

type record struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

func TestCachedQueryMissThenHit(t *testing.T) {
	fc := newFakeCache()
	queries := 0
	cq := NewCachedQuery(
		fc,
		func(params ...any) string { return "record:" + params[0].(string) },
		func(ctx context.Context) (*record, error) {
			queries++
			return &record{Id: "r1", Name: "alpha"}, nil
		},
		WithTTL[*record](time.Minute),
	)

	got, err := cq.Get(context.Background(), "r1")
	if err != nil {
		t.Fatalf("first Get() failed: %v", err)
	}
	if got.Name != "alpha" {
		t.Fatalf("first Get() = %+v, want alpha", got)
	}
	if queries != 1 || fc.sets != 1 {
		t.Fatalf("expected one query and one cache write, got queries=%d sets=%d", queries, fc.sets)
	}

	got, err = cq.Get(context.Background(), "r1")
	if err != nil {
		t.Fatalf("second Get() failed: %v", err)
	}
	if got.Name != "alpha" {
		t.Fatalf("second Get() = %+v, want alpha", got)
	}
	if queries != 1 {
		t.Fatalf("second Get() should be served from cache, queries=%d", queries)
	}
}

func TestCachedQueryFallsBackOnCacheError(t *testing.T) {
	fc := newFakeCache()
	fc.getErr = errors.New("connection refused")
	cq := NewCachedQuery(
		fc,
		func(params ...any) string { return "k" },
		func(ctx context.Context) (*record, error) {
			return &record{Id: "r2"}, nil
		},
	)

	got, err := cq.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() should fall back to the query: %v", err)
	}
	if got.Id != "r2" {
		t.Fatalf("Get() = %+v, want r2", got)
	}
}

func TestCachedQueryDropsCorruptEntry(t *testing.T) {
	fc := newFakeCache()
	fc.data["k"] = "{not-json"
	queries := 0
	cq := NewCachedQuery(
		fc,
		func(params ...any) string { return "k" },
		func(ctx context.Context) (*record, error) {
			queries++
			return &record{Id: "r3"}, nil
		},
	)

	got, err := cq.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Id != "r3" || queries != 1 {
		t.Fatalf("corrupt entry should be re-queried, got=%+v queries=%d", got, queries)
	}
	if fc.deletes == 0 {
		t.Fatal("corrupt entry should be deleted")
	}
}

func TestCachedQueryQueryError(t *testing.T) {
	fc := newFakeCache()
	wantErr := errors.New("record not found")
	cq := NewCachedQuery(
		fc,
		func(params ...any) string { return "k" },
		func(ctx context.Context) (*record, error) {
			return nil, wantErr
		},
	)

	if _, err := cq.Get(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("Get() error = %v, want %v", err, wantErr)
	}
	if fc.sets != 0 {
		t.Fatal("failed query must not populate the cache")
	}
}

func TestCachedQueryInvalidate(t *testing.T) {
	fc := newFakeCache()
	fc.data["record:r1"] = `{"id":"r1","name":"alpha"}`
	cq := NewCachedQuery[*record](
		fc,
		func(params ...any) string { return "record:" + params[0].(string) },
		nil,
	)

	if err := cq.Invalidate(context.Background(), "r1"); err != nil {
		t.Fatalf("Invalidate() failed: %v", err)
	}
	if _, ok := fc.data["record:r1"]; ok {
		t.Fatal("Invalidate() should remove the entry")
	}
}

func TestCachedQueryNilCache(t *testing.T) {
	cq := NewCachedQuery[*record](
		nil,
		func(params ...any) string { return "k" },
		func(ctx context.Context) (*record, error) {
			return &record{Id: "r4"}, nil
		},
	)

	got, err := cq.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() with nil cache failed: %v", err)
	}
	if got.Id != "r4" {
		t.Fatalf("Get() = %+v, want r4", got)
	}
	if err := cq.Invalidate(context.Background()); err != nil {
		t.Fatalf("Invalidate() with nil cache failed: %v", err)
	}
}
