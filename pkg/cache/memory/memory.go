/*
 * Copyright 2024 The Thumbcache Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package memory is the in-memory tier of thumbcache. It stores decoded
// image handles by reference, bypassing serialization, and keeps usage
// within its byte and object budgets by evicting least-recently-accessed
// entries synchronously on insert.
package memory

import (
	"sync"

	"github.com/lanternmedia/thumbcache/pkg/cache"
	"github.com/lanternmedia/thumbcache/pkg/cache/index"
	"github.com/lanternmedia/thumbcache/pkg/observability/logging"
)

const cacheType = "memory"

// Cache defines the thumbcache memory tier
type Cache struct {
	Name    string
	client  sync.Map
	index   *index.Index
	options index.Options
	log     *logging.Logger
}

// New returns a new memory tier with the provided budgets
func New(name string, o index.Options, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.ConsoleLogger("info")
	}
	return &Cache{Name: name, options: o, log: logger}
}

// Connect initializes the Cache
func (c *Cache) Connect() error {
	c.log.Info("memory tier setup", logging.Pairs{"name": c.Name,
		"maxSizeBytes": c.options.MaxSizeBytes, "maxSizeObjects": c.options.MaxSizeObjects})
	c.index = index.NewIndex(c.Name, cacheType, c.options, c.bulkRemove)
	return nil
}

// StoreReference places an object in the cache by reference using the
// specified key; the object's Size() is its accounted cost. Any eviction
// required to stay within budget completes before StoreReference returns.
func (c *Cache) StoreReference(cacheKey string, data cache.ReferenceObject) error {
	if cacheKey == "" {
		return cache.ErrKNF
	}
	cache.ObserveCacheOperation(c.Name, cacheType, "set", "none", float64(data.Size()))
	c.log.Debug("memory tier store", logging.Pairs{"key": cacheKey, "size": data.Size()})
	c.client.Store(cacheKey, data)
	c.index.UpdateObject(&index.Object{Key: cacheKey, Size: int64(data.Size())})
	return nil
}

// RetrieveReference looks for an object in cache and returns it, bumping
// its recency, or returns ErrKNF if not found
func (c *Cache) RetrieveReference(cacheKey string) (cache.ReferenceObject, error) {
	record, ok := c.client.Load(cacheKey)
	if !ok {
		c.log.Debug("memory tier miss", logging.Pairs{"key": cacheKey})
		return nil, cache.ObserveCacheMiss(c.Name, cacheType)
	}
	r := record.(cache.ReferenceObject)
	c.index.UpdateObjectAccessTime(cacheKey)
	cache.ObserveCacheOperation(c.Name, cacheType, "get", "hit", float64(r.Size()))
	return r, nil
}

// Remove removes an object from the cache
func (c *Cache) Remove(cacheKey string) {
	c.client.Delete(cacheKey)
	c.index.RemoveObject(cacheKey)
}

// Clear removes all objects from the cache
func (c *Cache) Clear() {
	c.client.Range(func(k, _ interface{}) bool {
		c.client.Delete(k)
		return true
	})
	c.index.Clear()
}

// Usage returns the current byte size and object count of the cache
func (c *Cache) Usage() (byteSize, objectCount int64) {
	return c.index.Usage()
}

// Close is a no-op for the memory tier
func (c *Cache) Close() error {
	return nil
}

// bulkRemove deletes values whose keys the index selected for eviction
func (c *Cache) bulkRemove(cacheKeys []string) {
	for _, k := range cacheKeys {
		c.client.Delete(k)
	}
}
