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

// Package badger is an alternate persistent tier of thumbcache backed by a
// BadgerDB store. Age expiry is delegated to Badger's native entry TTL and
// space reclamation to its value log garbage collector, so this tier has no
// sweep of its own.
package badger

import (
	"time"

	"github.com/dgraph-io/badger"

	"github.com/lanternmedia/thumbcache/pkg/cache"
	"github.com/lanternmedia/thumbcache/pkg/observability/logging"
)

const cacheType = "badger"

// gcDiscardRatio is the value log garbage collection threshold
const gcDiscardRatio = 0.5

// Options configures a badger tier
type Options struct {
	// Directory is the badger database directory
	Directory string
	// ValueDirectory is the badger value log directory; defaults to Directory
	ValueDirectory string
	// MaxAge is applied as the TTL of every stored entry; 0 stores without TTL
	MaxAge time.Duration
	// GCInterval sets how often the value log garbage collector runs;
	// 0 disables it
	GCInterval time.Duration
}

// Cache describes the badger tier
type Cache struct {
	Name    string
	Options Options

	dbh    *badger.DB
	log    *logging.Logger
	closed chan struct{}
}

// New returns a new badger tier for the provided options
func New(name string, o Options, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.ConsoleLogger("info")
	}
	if o.ValueDirectory == "" {
		o.ValueDirectory = o.Directory
	}
	return &Cache{Name: name, Options: o, log: logger, closed: make(chan struct{})}
}

// Connect opens the configured Badger key-value store and starts the
// garbage collection loop
func (c *Cache) Connect() error {
	c.log.Info("badger tier setup", logging.Pairs{"name": c.Name, "cacheDir": c.Options.Directory})

	opts := badger.DefaultOptions(c.Options.Directory)
	opts.ValueDir = c.Options.ValueDirectory
	opts.Logger = nil

	var err error
	c.dbh, err = badger.Open(opts)
	if err != nil {
		return err
	}

	if c.Options.GCInterval > 0 {
		go c.gc()
	}
	return nil
}

// Store places the data into the cache using the provided key; the tier's
// MaxAge is applied as the entry TTL
func (c *Cache) Store(cacheKey string, data []byte) error {
	c.log.Debug("badger tier store", logging.Pairs{"key": cacheKey, "size": len(data)})
	err := c.dbh.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(cacheKey), data)
		if c.Options.MaxAge > 0 {
			e = e.WithTTL(c.Options.MaxAge)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		cache.ObserveCacheEvent(c.Name, cacheType, "error", "write")
		return err
	}
	cache.ObserveCacheOperation(c.Name, cacheType, "set", "none", float64(len(data)))
	return nil
}

// Retrieve gets data from the cache using the provided key, or ErrKNF if
// absent or expired
func (c *Cache) Retrieve(cacheKey string) ([]byte, error) {
	var data []byte
	err := c.dbh.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKey))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		c.log.Debug("badger tier miss", logging.Pairs{"key": cacheKey})
		return nil, cache.ObserveCacheMiss(c.Name, cacheType)
	}
	cache.ObserveCacheOperation(c.Name, cacheType, "get", "hit", float64(len(data)))
	return data, nil
}

// Remove removes an object from the cache, if present
func (c *Cache) Remove(cacheKey string) {
	c.dbh.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(cacheKey))
	})
	cache.ObserveCacheOperation(c.Name, cacheType, "del", "none", 0)
}

// BulkRemove removes a list of objects from the cache
func (c *Cache) BulkRemove(cacheKeys []string) {
	c.dbh.Update(func(txn *badger.Txn) error {
		for _, k := range cacheKeys {
			if err := txn.Delete([]byte(k)); err != nil {
				return err
			}
			cache.ObserveCacheOperation(c.Name, cacheType, "del", "none", 0)
		}
		return nil
	})
}

// Clear drops all entries from the store
func (c *Cache) Clear() error {
	err := c.dbh.DropAll()
	if err == nil {
		cache.ObserveCacheEvent(c.Name, cacheType, "clear", "none")
	}
	return err
}

// Usage iterates the store and returns its approximate byte size and entry
// count
func (c *Cache) Usage() (byteSize, objectCount int64) {
	c.dbh.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			byteSize += it.Item().EstimatedSize()
			objectCount++
		}
		return nil
	})
	return
}

// gc periodically runs the value log garbage collector until Close
func (c *Cache) gc() {
	t := time.NewTicker(c.Options.GCInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			// returns an error when there was nothing to collect; ignore it
			c.dbh.RunValueLogGC(gcDiscardRatio)
		case <-c.closed:
			return
		}
	}
}

// Close closes the store
func (c *Cache) Close() error {
	close(c.closed)
	return c.dbh.Close()
}
