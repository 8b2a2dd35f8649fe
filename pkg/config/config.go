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

// Package config provides thumbcache configuration abilities, including
// parsing configuration files, command line parameters and environment
// variables, as well as default values and state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the running configuration for thumbcache
type Config struct {
	// Main is the main subsection of the running configuration
	Main *MainConfig `yaml:"main"`
	// Frontend is the HTTP server subsection of the running configuration
	Frontend *FrontendConfig `yaml:"frontend"`
	// Cache is the two-tier cache subsection of the running configuration
	Cache *CacheConfig `yaml:"cache"`
	// Logging is the logging subsection of the running configuration
	Logging *LoggingConfig `yaml:"logging"`
	// Metrics is the metrics subsection of the running configuration
	Metrics *MetricsConfig `yaml:"metrics"`
	// Tracing is the tracing subsection of the running configuration
	Tracing *TracingConfig `yaml:"tracing"`
}

// MainConfig is a collection of general configuration values
type MainConfig struct {
	// InstanceID distinguishes multiple instances sharing a configuration
	InstanceID int `yaml:"instance_id"`
	// ConfigFilePath indicates the path to the loaded configuration file
	ConfigFilePath string `yaml:"-"`
}

// FrontendConfig is a collection of configurations for the HTTP frontend
type FrontendConfig struct {
	// ListenAddress is the address the frontend listens on; all addresses when empty
	ListenAddress string `yaml:"listen_address"`
	// ListenPort is the port the frontend listens on
	ListenPort int `yaml:"listen_port"`
	// OriginTimeoutSecs is the per-fetch timeout for origin requests
	OriginTimeoutSecs int `yaml:"origin_timeout_secs"`

	// OriginTimeout is the duration representation of OriginTimeoutSecs
	OriginTimeout time.Duration `yaml:"-"`
}

// CacheConfig is a collection of configurations for the two-tier cache
type CacheConfig struct {
	// ProviderType names the persistent tier provider:
	// "filesystem" (default), "bbolt" or "badger"
	ProviderType string `yaml:"provider"`
	// MaxAgeSecs is the age beyond which persistent entries are expired by
	// the startup sweep
	MaxAgeSecs int `yaml:"max_age_secs"`
	// Memory provides options for the memory tier
	Memory MemoryCacheConfig `yaml:"memory"`
	// Filesystem provides options for the filesystem persistent tier
	Filesystem FilesystemCacheConfig `yaml:"filesystem"`
	// BBolt provides options for the bbolt persistent tier
	BBolt BBoltCacheConfig `yaml:"bbolt"`
	// Badger provides options for the badger persistent tier
	Badger BadgerCacheConfig `yaml:"badger"`

	// MaxAge is the duration representation of MaxAgeSecs
	MaxAge time.Duration `yaml:"-"`
}

// MemoryCacheConfig is a collection of configurations for the memory tier
type MemoryCacheConfig struct {
	// MaxSizeBytes is the decoded-pixel byte budget of the memory tier
	MaxSizeBytes int64 `yaml:"max_size_bytes"`
	// MaxSizeBackoffBytes is how far below MaxSizeBytes a byte-based
	// eviction exercise brings the tier
	MaxSizeBackoffBytes int64 `yaml:"max_size_backoff_bytes"`
	// MaxSizeObjects is the entry-count cap of the memory tier
	MaxSizeObjects int64 `yaml:"max_size_objects"`
	// MaxSizeBackoffObjects is how far under MaxSizeObjects a count-based
	// eviction exercise brings the tier
	MaxSizeBackoffObjects int64 `yaml:"max_size_backoff_objects"`
}

// FilesystemCacheConfig is a collection of configurations for the
// filesystem persistent tier
type FilesystemCacheConfig struct {
	// CachePath is the directory holding the cache entries
	CachePath string `yaml:"cache_path"`
	// MaxSizeBytes is the encoded byte budget enforced by size sweeps
	MaxSizeBytes int64 `yaml:"max_size_bytes"`
	// WriteQueueDepth bounds the async write queue
	WriteQueueDepth int `yaml:"write_queue_depth"`
}

// BBoltCacheConfig is a collection of configurations for the bbolt
// persistent tier
type BBoltCacheConfig struct {
	// Filename is the path of the bbolt database file
	Filename string `yaml:"filename"`
	// Bucket is the name of the object bucket within the database
	Bucket string `yaml:"bucket"`
	// MaxSizeBytes is the encoded byte budget enforced by size sweeps
	MaxSizeBytes int64 `yaml:"max_size_bytes"`
}

// BadgerCacheConfig is a collection of configurations for the badger
// persistent tier
type BadgerCacheConfig struct {
	// Directory is the badger database directory
	Directory string `yaml:"directory"`
	// ValueDirectory is the badger value log directory; defaults to Directory
	ValueDirectory string `yaml:"value_directory"`
	// GCIntervalSecs sets how often the value log garbage collector runs
	GCIntervalSecs int `yaml:"gc_interval_secs"`
}

// LoggingConfig is a collection of logging configurations
type LoggingConfig struct {
	// LogFile provides the filepath to the instance's logfile; stdout when empty
	LogFile string `yaml:"log_file"`
	// LogLevel provides the most granular level (e.g., "debug") to log
	LogLevel string `yaml:"log_level"`
}

// MetricsConfig is a collection of metrics configurations
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint on the frontend listener
	Enabled bool `yaml:"enabled"`
}

// TracingConfig is a collection of tracing configurations
type TracingConfig struct {
	// Exporter names the span exporter: "none" (default) or "stdout"
	Exporter string `yaml:"exporter"`
	// SampleRate is the fraction of traces to sample; 1 samples everything
	SampleRate float64 `yaml:"sample_rate"`
}

// NewConfig returns a Config with default values
func NewConfig() *Config {
	return &Config{
		Main: &MainConfig{},
		Frontend: &FrontendConfig{
			ListenPort:        defaultFrontendPort,
			OriginTimeoutSecs: defaultOriginTimeoutSecs,
		},
		Cache: &CacheConfig{
			ProviderType: defaultCacheProvider,
			MaxAgeSecs:   defaultMaxAgeSecs,
			Memory: MemoryCacheConfig{
				MaxSizeBytes:   defaultMemoryMaxSizeBytes,
				MaxSizeObjects: defaultMemoryMaxSizeObjects,
			},
			Filesystem: FilesystemCacheConfig{
				CachePath:    defaultCachePath,
				MaxSizeBytes: defaultDiskMaxSizeBytes,
			},
			BBolt: BBoltCacheConfig{
				Filename:     defaultBBoltFile,
				Bucket:       defaultBBoltBucket,
				MaxSizeBytes: defaultDiskMaxSizeBytes,
			},
			Badger: BadgerCacheConfig{
				Directory: defaultBadgerDirectory,
			},
		},
		Logging: &LoggingConfig{
			LogLevel: defaultLogLevel,
		},
		Metrics: &MetricsConfig{
			Enabled: true,
		},
		Tracing: &TracingConfig{
			Exporter:   defaultTracingExporter,
			SampleRate: 1,
		},
	}
}

// loadFile loads application configuration from the yaml file at path
func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("could not parse config file %s: %v", path, err)
	}
	c.Main.ConfigFilePath = path
	return nil
}

// setDerivedValues populates the synthetic duration fields from their
// integer-second yaml representations
func (c *Config) setDerivedValues() {
	c.Cache.MaxAge = time.Duration(c.Cache.MaxAgeSecs) * time.Second
	c.Frontend.OriginTimeout = time.Duration(c.Frontend.OriginTimeoutSecs) * time.Second
}
