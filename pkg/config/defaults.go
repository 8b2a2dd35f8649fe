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

package config

const (
	defaultFrontendPort      = 8480
	defaultOriginTimeoutSecs = 30

	defaultCacheProvider = "filesystem"

	// persistent entries older than 7 days are removed by the startup sweep
	defaultMaxAgeSecs = 7 * 24 * 60 * 60

	// the memory tier budget is sized for a screenful of decoded thumbnails
	// on a constrained device
	defaultMemoryMaxSizeBytes   = 64 * 1024 * 1024
	defaultMemoryMaxSizeObjects = 256

	defaultDiskMaxSizeBytes = 256 * 1024 * 1024
	defaultCachePath        = "/tmp/thumbcache"

	defaultBBoltFile       = "thumbcache.db"
	defaultBBoltBucket     = "thumbcache"
	defaultBadgerDirectory = "/tmp/thumbcache-badger"

	defaultLogLevel        = "info"
	defaultTracingExporter = "none"
)
