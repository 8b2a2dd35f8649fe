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

// Package cache defines the thumbcache tier interfaces and provides
// general cache functionality
package cache

import "errors"

// ErrKNF represents the error "key not found in cache"
var ErrKNF = errors.New("key not found in cache")

// Client is the interface for the supported persistent tier providers.
// When making new providers, Retrieve() must return ErrKNF on cache miss.
type Client interface {
	Connect() error
	Store(cacheKey string, data []byte) error
	Retrieve(cacheKey string) ([]byte, error)
	Remove(cacheKey string)
	BulkRemove(cacheKeys []string)
	Clear() error
	Usage() (byteSize, objectCount int64)
	Close() error
}

// ReferenceObject defines an interface for a cache object possessing the
// ability to report the approximate byte size of its members, to assist
// with cache size management
type ReferenceObject interface {
	Size() int
}
