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

package cache

import (
	"github.com/lanternmedia/thumbcache/pkg/observability/metrics"
)

// ObserveCacheOperation increments counters for a cache operation
func ObserveCacheOperation(cacheName, cacheType, operation, status string, bytes float64) {
	metrics.CacheObjectOperations.WithLabelValues(cacheName, cacheType, operation, status).Inc()
	if bytes > 0 {
		metrics.CacheByteOperations.WithLabelValues(cacheName, cacheType, operation, status).Add(bytes)
	}
}

// ObserveCacheEvent increments the event counter for a cache event such as an eviction sweep
func ObserveCacheEvent(cacheName, cacheType, event, reason string) {
	metrics.CacheEvents.WithLabelValues(cacheName, cacheType, event, reason).Inc()
}

// ObserveCacheSizeChange adjusts the gauges for a cache's byte and object usage
func ObserveCacheSizeChange(cacheName, cacheType string, byteCount, objectCount int64) {
	metrics.CacheBytes.WithLabelValues(cacheName, cacheType).Set(float64(byteCount))
	metrics.CacheObjects.WithLabelValues(cacheName, cacheType).Set(float64(objectCount))
}

// ObserveCacheMiss records a cache miss for the given cache and returns ErrKNF
func ObserveCacheMiss(cacheName, cacheType string) error {
	ObserveCacheOperation(cacheName, cacheType, "get", "miss", 0)
	return ErrKNF
}
