/*
Copyright 2026 The Shardine Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package shardmeta

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedRegistry wraps a Registry with a short-lived lookup cache. Planning
// a single query can probe the same object address many times; the cache
// keeps those probes off the database.
type CachedRegistry struct {
	registry *Registry
	lookups  *cache.Cache
}

// NewCachedRegistry wraps the registry. Lookup results are kept for ttl.
func NewCachedRegistry(registry *Registry, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{
		registry: registry,
		lookups:  cache.New(ttl, 10*ttl),
	}
}

func cacheKey(addr ObjectAddress) string {
	return fmt.Sprintf("%d/%d/%d", addr.ClassID, addr.ObjectID, addr.SubID)
}

// IsDistributed reports whether the object is registered, consulting the
// cache first.
func (c *CachedRegistry) IsDistributed(ctx context.Context, addr ObjectAddress) (bool, error) {
	key := cacheKey(addr)
	if hit, ok := c.lookups.Get(key); ok {
		return hit.(bool), nil
	}
	distributed, err := c.registry.IsDistributed(ctx, addr)
	if err != nil {
		return false, err
	}
	c.lookups.SetDefault(key, distributed)
	return distributed, nil
}

// MarkDistributed registers the object and refreshes the cache entry.
func (c *CachedRegistry) MarkDistributed(ctx context.Context, addr ObjectAddress) error {
	if err := c.registry.MarkDistributed(ctx, addr); err != nil {
		return err
	}
	c.lookups.SetDefault(cacheKey(addr), true)
	return nil
}

// UnmarkDistributed removes the object's registration and invalidates the
// cache entry.
func (c *CachedRegistry) UnmarkDistributed(ctx context.Context, addr ObjectAddress) error {
	if err := c.registry.UnmarkDistributed(ctx, addr); err != nil {
		return err
	}
	c.lookups.Delete(cacheKey(addr))
	return nil
}
