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
	"errors"
	"fmt"
)

// ErrPrintedVersion indicates the -version flag was provided and handled
var ErrPrintedVersion = errors.New("version was printed")

// Load returns the Application Configuration, starting with a default
// configuration, then overriding with any provided config file, then
// environment variables, and finally command line parameters
func Load(applicationName, applicationVersion string, args []string) (*Config, error) {
	c := NewConfig()
	fl, err := parseFlags(applicationName, args)
	if err != nil {
		return nil, err
	}
	if fl.printVersion {
		fmt.Println(applicationVersion)
		return nil, ErrPrintedVersion
	}

	if fl.configPath != "" {
		if err := c.loadFile(fl.configPath); err != nil {
			return nil, err
		}
	}

	c.loadEnvVars()
	c.applyFlags(fl)
	c.setDerivedValues()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.Frontend.ListenPort < 0 || c.Frontend.ListenPort > 65535 {
		return fmt.Errorf("invalid listen port: %d", c.Frontend.ListenPort)
	}
	switch c.Cache.ProviderType {
	case "filesystem", "bbolt", "badger":
	default:
		return fmt.Errorf("invalid cache provider name: %s", c.Cache.ProviderType)
	}
	if c.Cache.Memory.MaxSizeBytes <= 0 {
		return errors.New("memory tier byte budget must be positive")
	}
	if c.Cache.Memory.MaxSizeObjects <= 0 {
		return errors.New("memory tier object cap must be positive")
	}
	return nil
}
