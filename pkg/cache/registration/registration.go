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

// Package registration maps the cache configuration to concrete tier
// providers
package registration

import (
	"fmt"
	"time"

	"github.com/lanternmedia/thumbcache/pkg/cache"
	"github.com/lanternmedia/thumbcache/pkg/cache/badger"
	"github.com/lanternmedia/thumbcache/pkg/cache/bbolt"
	"github.com/lanternmedia/thumbcache/pkg/cache/filesystem"
	"github.com/lanternmedia/thumbcache/pkg/cache/index"
	"github.com/lanternmedia/thumbcache/pkg/cache/memory"
	"github.com/lanternmedia/thumbcache/pkg/config"
	"github.com/lanternmedia/thumbcache/pkg/observability/logging"
)

// persistent tier provider names
const (
	ptFilesystem = "filesystem"
	ptBBolt      = "bbolt"
	ptBadger     = "badger"
)

// NewMemoryTier returns the memory tier for the provided configuration
func NewMemoryTier(name string, cfg *config.CacheConfig, logger *logging.Logger) *memory.Cache {
	return memory.New(name, index.Options{
		MaxSizeBytes:          cfg.Memory.MaxSizeBytes,
		MaxSizeBackoffBytes:   cfg.Memory.MaxSizeBackoffBytes,
		MaxSizeObjects:        cfg.Memory.MaxSizeObjects,
		MaxSizeBackoffObjects: cfg.Memory.MaxSizeBackoffObjects,
	}, logger)
}

// NewPersistentTier returns the persistent tier provider named by the
// provided configuration
func NewPersistentTier(name string, cfg *config.CacheConfig, logger *logging.Logger) (cache.Client, error) {
	switch cfg.ProviderType {
	case ptFilesystem, "":
		return filesystem.New(name, filesystem.Options{
			CachePath:       cfg.Filesystem.CachePath,
			MaxSizeBytes:    cfg.Filesystem.MaxSizeBytes,
			MaxAge:          cfg.MaxAge,
			WriteQueueDepth: cfg.Filesystem.WriteQueueDepth,
		}, logger), nil
	case ptBBolt:
		return bbolt.New(name, bbolt.Options{
			Filename:     cfg.BBolt.Filename,
			Bucket:       cfg.BBolt.Bucket,
			MaxSizeBytes: cfg.BBolt.MaxSizeBytes,
			MaxAge:       cfg.MaxAge,
		}, logger), nil
	case ptBadger:
		return badger.New(name, badger.Options{
			Directory:      cfg.Badger.Directory,
			ValueDirectory: cfg.Badger.ValueDirectory,
			MaxAge:         cfg.MaxAge,
			GCInterval:     time.Duration(cfg.Badger.GCIntervalSecs) * time.Second,
		}, logger), nil
	}
	return nil, fmt.Errorf("invalid cache provider name: %s", cfg.ProviderType)
}
