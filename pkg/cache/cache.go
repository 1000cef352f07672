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

	"github.com/google/wire"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ProviderSet is the Wire provider set for the cache package.
var ProviderSet = wire.NewSet(NewRedisCache)

// ICache is the subset of the redis client the repositories depend on.
// *redis.Client satisfies it.
type ICache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Redis holds redis connection configuration.
type Redis struct {
	Addr         string        `mapstructure:"addr"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// SetDefaults fills missing redis configuration values.
func (r *Redis) SetDefaults() {
	if r.Addr == "" {
		r.Addr = "127.0.0.1:6379"
	}
	if r.PoolSize <= 0 {
		r.PoolSize = 16
	}
	if r.MinIdleConns <= 0 {
		r.MinIdleConns = 2
	}
	if r.DialTimeout <= 0 {
		r.DialTimeout = 5 * time.Second
	}
	if r.ReadTimeout <= 0 {
		r.ReadTimeout = 3 * time.Second
	}
	if r.WriteTimeout <= 0 {
		r.WriteTimeout = 3 * time.Second
	}
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(conf *Redis) (ICache, func(), error) {
	conf.SetDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:         conf.Addr,
		Username:     conf.Username,
		Password:     conf.Password,
		DB:           conf.DB,
		PoolSize:     conf.PoolSize,
		MinIdleConns: conf.MinIdleConns,
		DialTimeout:  conf.DialTimeout,
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), conf.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nil, errors.Wrap(err, "connect redis")
	}

	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}
