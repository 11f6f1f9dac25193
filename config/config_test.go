// Copyright 2026 cinematch Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	viper.Reset()
	config, err := LoadConfig("config.toml.template")
	assert.NoError(t, err)

	// [database]
	assert.Equal(t, "sqlite://cinematch.db", config.Database.DataStore)
	assert.Equal(t, "sqlite://cinematch.db", config.Database.StatsStore)
	assert.Empty(t, config.Database.TablePrefix)
	// [server]
	assert.Empty(t, config.Server.APIKey)
	assert.Equal(t, "127.0.0.1", config.Server.HttpHost)
	assert.Equal(t, 8087, config.Server.HttpPort)
	assert.Equal(t, 10, config.Server.DefaultN)
	// [recommend]
	assert.Equal(t, 100, config.Recommend.CacheSize)
	assert.Equal(t, time.Minute, config.Recommend.FlushInterval)
	assert.Equal(t, 180*24*time.Hour, config.Recommend.PopularWindow)
}

func TestEnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("CINEMATCH_DATA_STORE", "mysql://root@tcp(127.0.0.1:3306)/cinematch")
	t.Setenv("CINEMATCH_SERVER_API_KEY", "19260817")
	t.Setenv("CINEMATCH_SERVER_HTTP_PORT", "9000")
	t.Setenv("CINEMATCH_RECOMMEND_FLUSH_INTERVAL", "10s")
	config, err := LoadConfig("config.toml.template")
	assert.NoError(t, err)
	assert.Equal(t, "mysql://root@tcp(127.0.0.1:3306)/cinematch", config.Database.DataStore)
	assert.Equal(t, "19260817", config.Server.APIKey)
	assert.Equal(t, 9000, config.Server.HttpPort)
	assert.Equal(t, 10*time.Second, config.Recommend.FlushInterval)
}

func TestValidate(t *testing.T) {
	assert.Panics(t, func() {
		config := GetDefaultConfig()
		config.Database.DataStore = "unknown://"
		config.validate()
	})
	assert.Panics(t, func() {
		config := GetDefaultConfig()
		config.Server.HttpPort = 0
		config.validate()
	})
	assert.Panics(t, func() {
		config := GetDefaultConfig()
		config.Recommend.FlushInterval = -time.Second
		config.validate()
	})
	assert.NotPanics(t, func() {
		GetDefaultConfig().validate()
	})
}
