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

// Package key derives cache keys and filesystem-safe entry names from
// resource identifiers. Keys are a fixed-width content hash of the full
// identifier rather than a character substitution, so two distinct
// identifiers can never map to the same on-disk name.
package key

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// extension is appended to the key to form the on-disk entry name
const extension = ".data"

// Checksum returns the cache key for the provided resource identifier:
// the lowercase hex SHA-256 digest of the identifier. It is deterministic
// across process restarts and never fails; malformed identifiers still
// produce a usable key and fail downstream at fetch time instead.
func Checksum(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])
}

// Filename maps a cache key to its entry path under the provided directory
func Filename(dir, cacheKey string) string {
	return filepath.Join(dir, cacheKey+extension)
}

// IsEntry reports whether the provided directory entry name was produced
// by Filename
func IsEntry(name string) bool {
	return filepath.Ext(name) == extension
}
