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

// Package bbolt is an alternate persistent tier of thumbcache backed by a
// single bbolt file. A companion metadata bucket carries each entry's write
// time so the oldest-modified-first sweep semantics of the default
// filesystem tier apply here as well.
package bbolt

import (
	"encoding/binary"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/lanternmedia/thumbcache/pkg/cache"
	"github.com/lanternmedia/thumbcache/pkg/observability/logging"
)

const cacheType = "bbolt"

const sizeSweepFactor = 0.8

// Options configures a bbolt tier
type Options struct {
	// Filename is the path of the bbolt database file
	Filename string
	// Bucket is the name of the object bucket within the database
	Bucket string
	// MaxSizeBytes is the byte budget enforced by size sweeps; 0 disables them
	MaxSizeBytes int64
	// MaxAge is the age beyond which entries are removed by the startup
	// sweep; 0 disables the sweep
	MaxAge time.Duration
}

// Cache describes the bbolt tier
type Cache struct {
	Name    string
	Options Options

	dbh *bolt.DB
	log *logging.Logger
}

// New returns a new bbolt tier for the provided options
func New(name string, o Options, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.ConsoleLogger("info")
	}
	if o.Bucket == "" {
		o.Bucket = "thumbcache"
	}
	return &Cache{Name: name, Options: o, log: logger}
}

func (c *Cache) metaBucket() []byte {
	return []byte(c.Options.Bucket + ".meta")
}

// Connect opens the database, ensures the buckets exist, and runs the
// age-based expiry sweep
func (c *Cache) Connect() error {
	c.log.Info("bbolt tier setup", logging.Pairs{"name": c.Name, "cacheFile": c.Options.Filename})

	var err error
	c.dbh, err = bolt.Open(c.Options.Filename, 0644, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return err
	}

	err = c.dbh.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(c.Options.Bucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(c.metaBucket())
		return err
	})
	if err != nil {
		return err
	}

	if c.Options.MaxAge > 0 {
		c.SweepByAge(c.Options.MaxAge)
	}
	return nil
}

// Store places an object in the cache using the specified key, recording
// its write time in the metadata bucket, then runs a size sweep
func (c *Cache) Store(cacheKey string, data []byte) error {
	err := c.dbh.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(c.Options.Bucket)).Put([]byte(cacheKey), data); err != nil {
			return err
		}
		var meta [8]byte
		binary.BigEndian.PutUint64(meta[:], uint64(time.Now().UnixNano()))
		return tx.Bucket(c.metaBucket()).Put([]byte(cacheKey), meta[:])
	})
	if err != nil {
		c.log.Error("bbolt tier write failed", logging.Pairs{"key": cacheKey, "detail": err.Error()})
		cache.ObserveCacheEvent(c.Name, cacheType, "error", "write")
		return err
	}
	c.log.Debug("bbolt tier store", logging.Pairs{"key": cacheKey, "size": len(data)})
	cache.ObserveCacheOperation(c.Name, cacheType, "set", "none", float64(len(data)))
	if c.Options.MaxSizeBytes > 0 {
		c.SweepBySize()
	}
	return nil
}

// Retrieve looks for an object in cache and returns it, or ErrKNF if absent
func (c *Cache) Retrieve(cacheKey string) ([]byte, error) {
	var data []byte
	err := c.dbh.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(c.Options.Bucket)).Get([]byte(cacheKey))
		if v == nil {
			return cache.ErrKNF
		}
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		c.log.Debug("bbolt tier miss", logging.Pairs{"key": cacheKey})
		return nil, cache.ObserveCacheMiss(c.Name, cacheType)
	}
	cache.ObserveCacheOperation(c.Name, cacheType, "get", "hit", float64(len(data)))
	return data, nil
}

// Remove removes an object from the cache
func (c *Cache) Remove(cacheKey string) {
	c.dbh.Update(func(tx *bolt.Tx) error {
		tx.Bucket([]byte(c.Options.Bucket)).Delete([]byte(cacheKey))
		tx.Bucket(c.metaBucket()).Delete([]byte(cacheKey))
		return nil
	})
	cache.ObserveCacheOperation(c.Name, cacheType, "del", "none", 0)
}

// BulkRemove removes a list of objects from the cache
func (c *Cache) BulkRemove(cacheKeys []string) {
	c.dbh.Update(func(tx *bolt.Tx) error {
		ob := tx.Bucket([]byte(c.Options.Bucket))
		mb := tx.Bucket(c.metaBucket())
		for _, k := range cacheKeys {
			ob.Delete([]byte(k))
			mb.Delete([]byte(k))
			cache.ObserveCacheOperation(c.Name, cacheType, "del", "none", 0)
		}
		return nil
	})
}

// Clear removes all entries by recreating the buckets
func (c *Cache) Clear() error {
	err := c.dbh.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(c.Options.Bucket)); err != nil {
			return err
		}
		if err := tx.DeleteBucket(c.metaBucket()); err != nil {
			return err
		}
		if _, err := tx.CreateBucket([]byte(c.Options.Bucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket(c.metaBucket())
		return err
	})
	if err == nil {
		cache.ObserveCacheEvent(c.Name, cacheType, "clear", "none")
	}
	return err
}

// Usage returns the current byte size and entry count of the object bucket
func (c *Cache) Usage() (byteSize, objectCount int64) {
	c.dbh.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket([]byte(c.Options.Bucket)).Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			byteSize += int64(len(v))
			objectCount++
		}
		return nil
	})
	return
}

type metaEntry struct {
	key     string
	size    int64
	modTime time.Time
}

func (c *Cache) enumerate() []metaEntry {
	var entries []metaEntry
	c.dbh.View(func(tx *bolt.Tx) error {
		ob := tx.Bucket([]byte(c.Options.Bucket))
		cur := tx.Bucket(c.metaBucket()).Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if len(v) != 8 {
				continue
			}
			data := ob.Get(k)
			entries = append(entries, metaEntry{
				key:     string(k),
				size:    int64(len(data)),
				modTime: time.Unix(0, int64(binary.BigEndian.Uint64(v))),
			})
		}
		return nil
	})
	return entries
}

// SweepBySize deletes oldest-modified entries until usage is at or below
// 80% of the byte budget
func (c *Cache) SweepBySize() {
	entries := c.enumerate()
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
	removals := make([]string, 0, len(entries))
	for _, e := range entries {
		if total <= target {
			break
		}
		removals = append(removals, e.key)
		total -= e.size
	}
	if len(removals) > 0 {
		cache.ObserveCacheEvent(c.Name, cacheType, "eviction", "size_bytes")
		c.BulkRemove(removals)
	}
}

// SweepByAge deletes all entries whose write time is older than maxAge
func (c *Cache) SweepByAge(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	var removals []string
	for _, e := range c.enumerate() {
		if e.modTime.Before(cutoff) {
			removals = append(removals, e.key)
		}
	}
	if len(removals) > 0 {
		cache.ObserveCacheEvent(c.Name, cacheType, "eviction", "ttl")
		c.BulkRemove(removals)
		c.log.Info("bbolt tier age sweep complete",
			logging.Pairs{"removed": len(removals), "maxAge": maxAge})
	}
}

// Close closes the database
func (c *Cache) Close() error {
	return c.dbh.Close()
}
