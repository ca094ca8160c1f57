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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTomlConfigFromString(t *testing.T) {
	config, err := LoadTomlConfigFromString(`
[mongodb]
uri = "mongodb://localhost:27017"
database = "app"
collection = "events"
connectTimeoutSeconds = 30
`)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017", config.MongoDB.URI)
	assert.Equal(t, "app", config.MongoDB.Database)
	assert.Equal(t, "events", config.MongoDB.Collection)
	assert.Equal(t, 30, config.MongoDB.ConnectTimeoutSeconds)
}

func TestLoadTomlConfigDefaults(t *testing.T) {
	config, err := LoadTomlConfigFromString(`
[mongodb]
uri = "mongodb://localhost:27017"
`)
	require.NoError(t, err)
	assert.Equal(t, 10, config.MongoDB.ConnectTimeoutSeconds)
}

func TestLoadTomlConfigRejectsInvalidValues(t *testing.T) {
	_, err := LoadTomlConfigFromString(`
[mongodb]
uri = "mongodb://localhost:27017"
collection = "events"
`)
	assert.Error(t, err, "collection without database must fail")

	_, err = LoadTomlConfigFromString(`
[mongodb]
uri = "mongodb://localhost:27017"
connectTimeoutSeconds = -1
`)
	assert.Error(t, err)
}
