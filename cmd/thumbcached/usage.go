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

package main

import "fmt"

const usageText = `
thumbcached Usage:

 Print Version Info:
  thumbcached -version

 Using a configuration file:
  thumbcached -config /path/to/file.yaml [-log-level debug|info|warn|error] [-port 8480]

 Using defaults with overrides:
  thumbcached -cache-path /var/cache/thumbcache -port 8080 -log-level debug

 Using an alternate persistent tier:
  thumbcached -provider bbolt

------

 Serve images through the cache:
   GET http://localhost:8480/image?url=https://img.example.com/poster.jpg

 Inspect tier usage:
   GET http://localhost:8480/stats

thumbcached listens on port 8480 by default. Set in a config file, or override using -port.

Default log level is info. Set in a config file, or override with -log-level.
`

// printUsage prints the usage text to the console
func printUsage() {
	fmt.Print(usageText)
}
