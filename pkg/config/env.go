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

import (
	"os"
	"strconv"
)

// environment variables that override config file values
const (
	evLogLevel   = "THUMBCACHE_LOG_LEVEL"
	evListenPort = "THUMBCACHE_LISTEN_PORT"
	evCachePath  = "THUMBCACHE_CACHE_PATH"
	evProvider   = "THUMBCACHE_CACHE_PROVIDER"
)

// loadEnvVars overlays environment variables onto the configuration
func (c *Config) loadEnvVars() {
	if v := os.Getenv(evLogLevel); v != "" {
		c.Logging.LogLevel = v
	}
	if v := os.Getenv(evListenPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Frontend.ListenPort = p
		}
	}
	if v := os.Getenv(evCachePath); v != "" {
		c.Cache.Filesystem.CachePath = v
	}
	if v := os.Getenv(evProvider); v != "" {
		c.Cache.ProviderType = v
	}
}
