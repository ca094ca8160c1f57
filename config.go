//
// Copyright 2024 The mongo-change-streams-tail Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// TomlConfig is the optional configuration file for the tail command.
// Flags take precedence over values loaded from the file.
type TomlConfig struct {
	MongoDB MongoDBConfig `toml:"mongodb"`
}

type MongoDBConfig struct {
	URI                   string `toml:"uri"`
	Database              string `toml:"database"`
	Collection            string `toml:"collection"`
	ConnectTimeoutSeconds int    `toml:"connectTimeoutSeconds"`
}

func LoadTomlConfig(path string) (*TomlConfig, error) {
	var config TomlConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode TOML config from %s: %w", path, err)
	}

	return validateAndSetDefaults(&config)
}

func LoadTomlConfigFromString(configString string) (*TomlConfig, error) {
	var config TomlConfig
	if _, err := toml.Decode(configString, &config); err != nil {
		return nil, fmt.Errorf("failed to decode TOML config string: %w", err)
	}

	return validateAndSetDefaults(&config)
}

func validateAndSetDefaults(config *TomlConfig) (*TomlConfig, error) {
	if config.MongoDB.ConnectTimeoutSeconds == 0 {
		config.MongoDB.ConnectTimeoutSeconds = 10 // Default: 10 seconds
	}

	if config.MongoDB.ConnectTimeoutSeconds < 0 {
		return nil, fmt.Errorf("connectTimeoutSeconds must be a positive integer")
	}

	if config.MongoDB.Collection != "" && config.MongoDB.Database == "" {
		return nil, fmt.Errorf("a collection requires a database")
	}

	return config, nil
}
