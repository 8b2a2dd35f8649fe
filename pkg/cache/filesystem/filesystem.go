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

// Package filesystem is the default persistent tier of thumbcache: a single
// directory of files, one per cache key, with no manifest. Entry presence,
// size and age are derived by directory enumeration. Writes are queued and
// performed asynchronously; filesystem errors are never fatal and downgrade
// the operation to a miss or no-op.
package filesystem

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/lanternmedia/thumbcache/pkg/cache"
	"github.com/lanternmedia/thumbcache/pkg/cache/key"
	"github.com/lanternmedia/thumbcache/pkg/locks"
	"github.com/lanternmedia/thumbcache/pkg/observability/logging"
)

const cacheType = "filesystem"

// sizeSweepFactor is the fraction of the byte budget a size sweep reduces
// usage to, leaving headroom so back-to-back writes do not thrash the sweep
const sizeSweepFactor = 0.8

// defaultWriteQueueDepth bounds the number of pending async writes
const defaultWriteQueueDepth = 64

// Options configures a filesystem tier
type Options struct {
	// CachePath is the directory holding the cache entries
	CachePath string
	// MaxSizeBytes is the byte budget enforced by size sweeps; 0 disables them
	MaxSizeBytes int64
	// MaxAge is the age beyond which entries are removed by the startup
	// sweep; 0 disables the sweep
	MaxAge time.Duration
	// WriteQueueDepth bounds the async write queue; writes beyond the bound
	// are dropped and logged
	WriteQueueDepth int
}

// Cache describes the filesystem tier
type Cache struct {
	Name    string
	Options Options

	locker locks.NamedLocker
	log    *logging.Logger

	writes    chan writeRequest
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type writeRequest struct {
	key  string
	data []byte
}

// New returns a new filesystem tier for the provided options
func New(name string, o Options, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.ConsoleLogger("info")
	}
	if o.WriteQueueDepth <= 0 {
		o.WriteQueueDepth = defaultWriteQueueDepth
	}
	return &Cache{
		Name:    name,
		Options: o,
		locker:  locks.NewNamedLocker(),
		log:     logger,
		writes:  make(chan writeRequest, o.WriteQueueDepth),
		closed:  make(chan struct{}),
	}
}

// Connect creates the cache directory, runs the age-based expiry sweep, and
// starts the async writer
func (c *Cache) Connect() error {
	c.log.Info("filesystem tier setup", logging.Pairs{"name": c.Name,
		"cachePath": c.Options.CachePath, "maxSizeBytes": c.Options.MaxSizeBytes})
	if err := makeDirectory(c.Options.CachePath); err != nil {
		return err
	}
	if c.Options.MaxAge > 0 {
		// age expiry is an O(n) directory scan, so it runs once per cold
		// start rather than on access
		c.SweepByAge(c.Options.MaxAge)
	}
	c.wg.Add(1)
	go c.writer()
	return nil
}

// Store queues the entry for an asynchronous durable write. A full queue
// drops the write; the entry is simply re-fetched on a later request.
func (c *Cache) Store(cacheKey string, data []byte) error {
	if cacheKey == "" {
		return errors.New("cacheKey required")
	}
	select {
	case c.writes <- writeRequest{key: cacheKey, data: data}:
	default:
		c.log.Warn("filesystem tier write queue full, dropping write",
			logging.Pairs{"key": cacheKey, "queueDepth": cap(c.writes)})
		cache.ObserveCacheEvent(c.Name, cacheType, "drop", "queue_full")
	}
	return nil
}

// writer performs queued writes until Close. Each completed write is
// followed by a size sweep so the tier is brought back under budget as soon
// as an overage can be observed.
func (c *Cache) writer() {
	defer c.wg.Done()
	for {
		select {
		case req := <-c.writes:
			if c.storeSync(req.key, req.data) == nil && c.Options.MaxSizeBytes > 0 {
				c.SweepBySize()
			}
		case <-c.closed:
			// drain anything already queued before exiting
			for {
				select {
				case req := <-c.writes:
					c.storeSync(req.key, req.data)
				default:
					return
				}
			}
		}
	}
}

func (c *Cache) storeSync(cacheKey string, data []byte) error {
	dataFile := key.Filename(c.Options.CachePath, cacheKey)

	nl, _ := c.locker.Acquire(cacheKey)
	err := os.WriteFile(dataFile, data, 0644)
	nl.Release()

	if err != nil {
		// non-fatal: the entry stays absent and is re-fetched next request
		c.log.Error("filesystem tier write failed", logging.Pairs{
			"key": cacheKey, "dataFile": dataFile, "detail": err.Error()})
		cache.ObserveCacheEvent(c.Name, cacheType, "error", "write")
		return errors.Wrap(err, "filesystem tier write")
	}
	c.log.Debug("filesystem tier store", logging.Pairs{"key": cacheKey, "dataFile": dataFile})
	cache.ObserveCacheOperation(c.Name, cacheType, "set", "none", float64(len(data)))
	return nil
}

// Retrieve looks for an object in the cache directory and returns it, or
// ErrKNF if absent. Unreadable or corrupt entries are treated as misses.
func (c *Cache) Retrieve(cacheKey string) ([]byte, error) {
	dataFile := key.Filename(c.Options.CachePath, cacheKey)

	nl, _ := c.locker.Acquire(cacheKey)
	data, err := os.ReadFile(dataFile)
	nl.Release()

	if err != nil {
		c.log.Debug("filesystem tier miss", logging.Pairs{"key": cacheKey, "dataFile": dataFile})
		return nil, cache.ObserveCacheMiss(c.Name, cacheType)
	}
	c.log.Debug("filesystem tier retrieve", logging.Pairs{"key": cacheKey, "dataFile": dataFile})
	cache.ObserveCacheOperation(c.Name, cacheType, "get", "hit", float64(len(data)))
	return data, nil
}

// Remove removes an object from the cache
func (c *Cache) Remove(cacheKey string) {
	nl, _ := c.locker.Acquire(cacheKey)
	if err := os.Remove(key.Filename(c.Options.CachePath, cacheKey)); err == nil {
		cache.ObserveCacheOperation(c.Name, cacheType, "del", "none", 0)
	}
	nl.Release()
}

// BulkRemove removes a list of objects from the cache
func (c *Cache) BulkRemove(cacheKeys []string) {
	for _, cacheKey := range cacheKeys {
		c.Remove(cacheKey)
	}
}

// Clear removes all entries from the cache directory, tolerating partial
// failures
func (c *Cache) Clear() error {
	entries, err := c.enumerate()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Remove(e.path); err != nil {
			c.log.Warn("filesystem tier clear skipped entry",
				logging.Pairs{"path": e.path, "detail": err.Error()})
		}
	}
	cache.ObserveCacheEvent(c.Name, cacheType, "clear", "none")
	return nil
}

// Usage enumerates the cache directory and returns its current byte size
// and entry count
func (c *Cache) Usage() (byteSize, objectCount int64) {
	entries, err := c.enumerate()
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		byteSize += e.size
	}
	return byteSize, int64(len(entries))
}

// SweepBySize enumerates the cache directory and, if usage exceeds the byte
// budget, deletes oldest-modified entries first until usage is at or below
// 80% of the budget.
//
// The enumerate-then-delete sequence is not atomic against the writer: an
// entry written mid-sweep can be observed and deleted immediately. That is
// accepted behavior, not a correctness bug; the entry is re-fetched on its
// next request.
func (c *Cache) SweepBySize() {
	if c.Options.MaxSizeBytes <= 0 {
		return
	}
	entries, err := c.enumerate()
	if err != nil {
		return
	}
	var total int64
	for _, e := range entries {
		total += e.size
	}
	if total <= c.Options.MaxSizeBytes {
		return
	}

	target := int64(float64(c.Options.MaxSizeBytes) * sizeSweepFactor)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.Before(entries[j].modTime)
	})

	c.log.Debug("filesystem tier byte budget exceeded, evicting oldest-modified entries",
		logging.Pairs{"usageBytes": total, "maxSizeBytes": c.Options.MaxSizeBytes, "targetBytes": target})
	cache.ObserveCacheEvent(c.Name, cacheType, "eviction", "size_bytes")

	for _, e := range entries {
		if total <= target {
			break
		}
		if err := os.Remove(e.path); err != nil {
			c.log.Warn("filesystem tier sweep skipped entry",
				logging.Pairs{"path": e.path, "detail": err.Error()})
			continue
		}
		total -= e.size
	}
	cache.ObserveCacheSizeChange(c.Name, cacheType, total, int64(len(entries)))
}

// SweepByAge deletes all entries whose modification time is older than
// maxAge, independent of size pressure
func (c *Cache) SweepByAge(maxAge time.Duration) {
	entries, err := c.enumerate()
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	var removed int
	for _, e := range entries {
		if e.modTime.After(cutoff) {
			continue
		}
		if err := os.Remove(e.path); err != nil {
			c.log.Warn("filesystem tier age sweep skipped entry",
				logging.Pairs{"path": e.path, "detail": err.Error()})
			continue
		}
		removed++
	}
	if removed > 0 {
		cache.ObserveCacheEvent(c.Name, cacheType, "eviction", "ttl")
		c.log.Info("filesystem tier age sweep complete",
			logging.Pairs{"removed": removed, "maxAge": maxAge})
	}
}

// Close stops the async writer after draining queued writes. It is safe to
// call more than once.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	c.wg.Wait()
	return nil
}

type dirEntry struct {
	path    string
	size    int64
	modTime time.Time
}

func (c *Cache) enumerate() ([]dirEntry, error) {
	des, err := os.ReadDir(c.Options.CachePath)
	if err != nil {
		c.log.Error("filesystem tier enumeration failed",
			logging.Pairs{"cachePath": c.Options.CachePath, "detail": err.Error()})
		return nil, errors.Wrap(err, "filesystem tier enumerate")
	}
	entries := make([]dirEntry, 0, len(des))
	for _, de := range des {
		if de.IsDir() || !key.IsEntry(de.Name()) {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, dirEntry{
			path:    filepath.Join(c.Options.CachePath, de.Name()),
			size:    fi.Size(),
			modTime: fi.ModTime(),
		})
	}
	return entries, nil
}

// writeable returns true if the path is writeable by the calling process
func writeable(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}

// makeDirectory creates the cache directory on the filesystem
func makeDirectory(path string) error {
	err := os.MkdirAll(path, 0755)
	if err != nil || !writeable(path) {
		return errors.Errorf("[%s] directory is not writeable by thumbcache: %v", path, err)
	}
	return nil
}
