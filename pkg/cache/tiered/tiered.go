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

// Package tiered composes the memory and persistent tiers into the image
// cache facade: lookups check memory then disk, promoting disk hits into
// memory; stores write to memory synchronously and to disk asynchronously.
package tiered

import (
	"sync"

	"github.com/lanternmedia/thumbcache/pkg/cache"
	"github.com/lanternmedia/thumbcache/pkg/cache/key"
	"github.com/lanternmedia/thumbcache/pkg/cache/memory"
	"github.com/lanternmedia/thumbcache/pkg/media"
	"github.com/lanternmedia/thumbcache/pkg/observability/logging"
)

// Stats describes the current usage of both tiers
type Stats struct {
	MemoryByteSize    int64 `yaml:"memory_byte_size"`
	MemoryEntryCount  int64 `yaml:"memory_entry_count"`
	PersistByteSize   int64 `yaml:"persist_byte_size"`
	PersistEntryCount int64 `yaml:"persist_entry_count"`
}

// Cache is the two-tier image cache facade
type Cache struct {
	Name string

	mem  *memory.Cache
	disk cache.Client
	log  *logging.Logger

	// pending tracks in-flight async persistent writes so Close can drain
	pending sync.WaitGroup
}

// New returns a new facade over the provided tiers
func New(name string, mem *memory.Cache, disk cache.Client, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.ConsoleLogger("info")
	}
	return &Cache{Name: name, mem: mem, disk: disk, log: logger}
}

// Connect initializes both tiers
func (c *Cache) Connect() error {
	if err := c.mem.Connect(); err != nil {
		return err
	}
	return c.disk.Connect()
}

// Lookup derives the cache key for the identifier and returns the cached
// image: from memory when present, otherwise decoded from the persistent
// tier and promoted into memory. Returns ErrKNF when neither tier holds a
// usable entry.
func (c *Cache) Lookup(identifier string) (*media.Image, error) {
	k := key.Checksum(identifier)

	if r, err := c.mem.RetrieveReference(k); err == nil {
		return r.(*media.Image), nil
	}

	data, err := c.disk.Retrieve(k)
	if err != nil {
		return nil, cache.ErrKNF
	}

	img, err := media.Decode(data)
	if err != nil {
		// a corrupt persistent entry is a miss; drop it so the next
		// request re-fetches
		c.log.Warn("persistent tier entry not decodable, removing",
			logging.Pairs{"key": k, "size": len(data)})
		c.disk.Remove(k)
		return nil, cache.ErrKNF
	}

	// read-through promotion
	c.mem.StoreReference(k, img)
	return img, nil
}

// Store derives the cache key for the identifier, inserts the image into
// the memory tier immediately, and queues its encoded bytes for the
// persistent tier. Persistent durability is eventual; completion is
// observed only by a later sweep or lookup, never by the caller.
func (c *Cache) Store(identifier string, img *media.Image) {
	k := key.Checksum(identifier)
	c.mem.StoreReference(k, img)

	encoded := img.Encoded()
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		if err := c.disk.Store(k, encoded); err != nil {
			// non-fatal; the entry lives on in memory and is re-fetched
			// after it ages out
			c.log.Warn("persistent tier store failed",
				logging.Pairs{"key": k, "detail": err.Error()})
		}
	}()
}

// Remove removes the identifier's entry from both tiers
func (c *Cache) Remove(identifier string) {
	k := key.Checksum(identifier)
	c.mem.Remove(k)
	c.disk.Remove(k)
}

// Clear empties both tiers
func (c *Cache) Clear() error {
	c.mem.Clear()
	return c.disk.Clear()
}

// Stats reports the current usage of both tiers. Persistent usage is
// measured lazily by the provider and may trail queued writes.
func (c *Cache) Stats() Stats {
	var s Stats
	s.MemoryByteSize, s.MemoryEntryCount = c.mem.Usage()
	s.PersistByteSize, s.PersistEntryCount = c.disk.Usage()
	return s
}

// Close drains pending persistent writes and closes both tiers
func (c *Cache) Close() error {
	c.pending.Wait()
	c.mem.Close()
	return c.disk.Close()
}
