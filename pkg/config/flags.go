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
	"flag"
	"io"
)

// flags is a collection of command line flags that thumbcache loads
type flags struct {
	printVersion bool
	configPath   string
	logLevel     string
	listenPort   int
	cachePath    string
	provider     string
}

func parseFlags(applicationName string, args []string) (*flags, error) {
	fl := &flags{}
	fs := flag.NewFlagSet(applicationName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&fl.printVersion, "version", false,
		"prints the thumbcache version")
	fs.StringVar(&fl.configPath, "config", "",
		"path to the thumbcache config file")
	fs.StringVar(&fl.logLevel, "log-level", "",
		"level of logging to use (debug, info, warn, error)")
	fs.IntVar(&fl.listenPort, "port", 0,
		"port the frontend listens on")
	fs.StringVar(&fl.cachePath, "cache-path", "",
		"directory for the filesystem persistent tier")
	fs.StringVar(&fl.provider, "provider", "",
		"persistent tier provider (filesystem, bbolt, badger)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fl, nil
}

// applyFlags overlays command line flags onto the configuration; flags take
// precedence over both the config file and environment variables
func (c *Config) applyFlags(fl *flags) {
	if fl.logLevel != "" {
		c.Logging.LogLevel = fl.logLevel
	}
	if fl.listenPort > 0 {
		c.Frontend.ListenPort = fl.listenPort
	}
	if fl.cachePath != "" {
		c.Cache.Filesystem.CachePath = fl.cachePath
	}
	if fl.provider != "" {
		c.Cache.ProviderType = fl.provider
	}
}
