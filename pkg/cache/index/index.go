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

// Package index defines the thumbcache memory tier index, which maintains
// size and recency metadata for cached objects and selects
// least-recently-accessed entries for eviction when the tier exceeds its
// configured budgets.
package index

import (
	"sort"
	"sync"
	"time"

	"github.com/lanternmedia/thumbcache/pkg/cache"
	"github.com/lanternmedia/thumbcache/pkg/observability/metrics"
)

// Options configures the size budgets enforced by an Index
type Options struct {
	// MaxSizeBytes indicates how large the cache can grow in bytes before
	// the Index evicts least-recently-accessed items
	MaxSizeBytes int64
	// MaxSizeBackoffBytes indicates how far below MaxSizeBytes the cache
	// size is brought during a byte-size-based eviction exercise
	MaxSizeBackoffBytes int64
	// MaxSizeObjects indicates how many objects the cache can hold before
	// the Index evicts least-recently-accessed items
	MaxSizeObjects int64
	// MaxSizeBackoffObjects indicates how far under MaxSizeObjects the
	// cache is brought during an object-count-based eviction exercise
	MaxSizeBackoffObjects int64
}

// Object contains metadata about an item in the Cache
type Object struct {
	// Key is the accessor of the Object in the Cache
	Key string
	// Size is the size of the Object in bytes
	Size int64
	// LastWrite is the time the object was last written
	LastWrite time.Time
	// LastAccess is the time the object was last accessed
	LastAccess time.Time
}

// Index maintains metadata about a Cache whose retention is enforced
// internally, such as the memory tier. Eviction is synchronous with
// insertion: UpdateObject does not return until usage is within budget,
// so callers never observe a transient over-budget state.
type Index struct {
	mtx sync.Mutex

	cacheSize   int64
	objectCount int64
	objects     map[string]*Object

	name           string
	cacheType      string
	options        Options
	bulkRemoveFunc func([]string)
}

// NewIndex returns a new Index based on the provided inputs. bulkRemoveFunc
// is called with the keys selected for eviction so the owning tier can
// delete the corresponding values.
func NewIndex(cacheName, cacheType string, o Options, bulkRemoveFunc func([]string)) *Index {
	idx := &Index{
		objects:        make(map[string]*Object),
		name:           cacheName,
		cacheType:      cacheType,
		options:        o,
		bulkRemoveFunc: bulkRemoveFunc,
	}
	metrics.CacheMaxBytes.WithLabelValues(cacheName, cacheType).Set(float64(o.MaxSizeBytes))
	metrics.CacheMaxObjects.WithLabelValues(cacheName, cacheType).Set(float64(o.MaxSizeObjects))
	return idx
}

// UpdateObject writes or updates the Index metadata for the provided Object
// and synchronously evicts least-recently-accessed entries as needed to
// keep the cache within its byte and object budgets
func (idx *Index) UpdateObject(obj *Object) {
	if obj.Key == "" {
		return
	}

	idx.mtx.Lock()
	now := time.Now()
	obj.LastAccess = now
	obj.LastWrite = now

	if o, ok := idx.objects[obj.Key]; ok {
		idx.cacheSize += obj.Size - o.Size
	} else {
		idx.cacheSize += obj.Size
		idx.objectCount++
	}
	idx.objects[obj.Key] = obj

	idx.enforceBudgets(obj.Key)
	cache.ObserveCacheSizeChange(idx.name, idx.cacheType, idx.cacheSize, idx.objectCount)
	idx.mtx.Unlock()
}

// UpdateObjectAccessTime updates the LastAccess for the object with the provided key
func (idx *Index) UpdateObjectAccessTime(key string) {
	idx.mtx.Lock()
	if o, ok := idx.objects[key]; ok {
		o.LastAccess = time.Now()
	}
	idx.mtx.Unlock()
}

// RemoveObject removes an Object's metadata from the Index
func (idx *Index) RemoveObject(key string) {
	idx.mtx.Lock()
	idx.removeNoLock(key)
	cache.ObserveCacheSizeChange(idx.name, idx.cacheType, idx.cacheSize, idx.objectCount)
	idx.mtx.Unlock()
}

// Clear removes all metadata from the Index
func (idx *Index) Clear() {
	idx.mtx.Lock()
	idx.objects = make(map[string]*Object)
	idx.cacheSize = 0
	idx.objectCount = 0
	cache.ObserveCacheSizeChange(idx.name, idx.cacheType, 0, 0)
	idx.mtx.Unlock()
}

// Usage returns the current byte size and object count of the indexed cache
func (idx *Index) Usage() (byteSize, objectCount int64) {
	idx.mtx.Lock()
	byteSize = idx.cacheSize
	objectCount = idx.objectCount
	idx.mtx.Unlock()
	return
}

func (idx *Index) removeNoLock(key string) {
	if o, ok := idx.objects[key]; ok {
		idx.cacheSize -= o.Size
		idx.objectCount--
		delete(idx.objects, key)
		cache.ObserveCacheOperation(idx.name, idx.cacheType, "del", "none", float64(o.Size))
	}
}

// enforceBudgets is called under lock after an insert. justInserted is
// exempt from selection; the policy evicts other entries first.
func (idx *Index) enforceBudgets(justInserted string) {
	overBytes := idx.options.MaxSizeBytes > 0 && idx.cacheSize > idx.options.MaxSizeBytes
	overObjects := idx.options.MaxSizeObjects > 0 && idx.objectCount > idx.options.MaxSizeObjects
	if !overBytes && !overObjects {
		return
	}

	var evictionType string
	if overBytes {
		evictionType = "size_bytes"
	} else {
		evictionType = "size_objects"
	}

	remainders := make(objectsAtime, 0, idx.objectCount)
	for _, o := range idx.objects {
		if o.Key == justInserted {
			continue
		}
		remainders = append(remainders, o)
	}
	sort.Sort(remainders)

	removals := make([]string, 0, len(remainders))

	if overBytes {
		bytesNeeded := idx.cacheSize - idx.options.MaxSizeBytes
		if idx.options.MaxSizeBytes > idx.options.MaxSizeBackoffBytes {
			bytesNeeded += idx.options.MaxSizeBackoffBytes
		}
		var bytesSelected int64
		for _, o := range remainders {
			if bytesSelected >= bytesNeeded {
				break
			}
			removals = append(removals, o.Key)
			bytesSelected += o.Size
		}
	}
	if overObjects {
		objectsNeeded := idx.objectCount - idx.options.MaxSizeObjects
		if idx.options.MaxSizeObjects > idx.options.MaxSizeBackoffObjects {
			objectsNeeded += idx.options.MaxSizeBackoffObjects
		}
		selected := make(map[string]bool, len(removals))
		for _, k := range removals {
			selected[k] = true
		}
		var objectsSelected int64
		objectsSelected = int64(len(removals))
		for _, o := range remainders {
			if objectsSelected >= objectsNeeded {
				break
			}
			if selected[o.Key] {
				continue
			}
			removals = append(removals, o.Key)
			objectsSelected++
		}
	}

	// a single object larger than the entire byte budget cannot be
	// retained; it is evicted along with the rest
	if overBytes {
		var bytesAfter int64 = idx.cacheSize
		for _, k := range removals {
			if o, ok := idx.objects[k]; ok {
				bytesAfter -= o.Size
			}
		}
		if bytesAfter > idx.options.MaxSizeBytes {
			removals = append(removals, justInserted)
		}
	}

	if len(removals) > 0 {
		cache.ObserveCacheEvent(idx.name, idx.cacheType, "eviction", evictionType)
		if idx.bulkRemoveFunc != nil {
			idx.bulkRemoveFunc(removals)
		}
		for _, k := range removals {
			idx.removeNoLock(k)
		}
	}
}

type objectsAtime []*Object

// Len returns the number of objects in the sortable collection
func (o objectsAtime) Len() int {
	return len(o)
}

// Less returns true if i was accessed before j
func (o objectsAtime) Less(i, j int) bool {
	return o[i].LastAccess.Before(o[j].LastAccess)
}

// Swap exchanges the objects at indexes i and j
func (o objectsAtime) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
}
