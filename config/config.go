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
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration for the catalog server.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Recommend RecommendConfig `mapstructure:"recommend"`
}

// DatabaseConfig is the configuration for the databases.
type DatabaseConfig struct {
	DataStore   string `mapstructure:"data_store"`   // database for catalog data
	StatsStore  string `mapstructure:"stats_store"`  // database for rating statistics
	TablePrefix string `mapstructure:"table_prefix"` // table prefix
}

// ServerConfig is the configuration for the HTTP server.
type ServerConfig struct {
	APIKey   string `mapstructure:"api_key"`   // secret key for RESTful APIs
	HttpHost string `mapstructure:"http_host"` // HTTP host
	HttpPort int    `mapstructure:"http_port"` // HTTP port
	DefaultN int    `mapstructure:"default_n"` // default number of returned entries
}

// RecommendConfig is the configuration for recommendations.
type RecommendConfig struct {
	CacheSize     int           `mapstructure:"cache_size"`     // number of popular films kept
	FlushInterval time.Duration `mapstructure:"flush_interval"` // interval for persisting rating statistics
	PopularWindow time.Duration `mapstructure:"popular_window"` // time window of popular films
}

// GetDefaultConfig returns a default configuration.
func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore:  "sqlite://cinematch.db",
			StatsStore: "sqlite://cinematch.db",
		},
		Server: ServerConfig{
			HttpHost: "127.0.0.1",
			HttpPort: 8087,
			DefaultN: 10,
		},
		Recommend: RecommendConfig{
			CacheSize:     100,
			FlushInterval: time.Minute,
			PopularWindow: 180 * 24 * time.Hour,
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [database]
	viper.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	viper.SetDefault("database.stats_store", defaultConfig.Database.StatsStore)
	viper.SetDefault("database.table_prefix", defaultConfig.Database.TablePrefix)
	// [server]
	viper.SetDefault("server.http_host", defaultConfig.Server.HttpHost)
	viper.SetDefault("server.http_port", defaultConfig.Server.HttpPort)
	viper.SetDefault("server.default_n", defaultConfig.Server.DefaultN)
	// [recommend]
	viper.SetDefault("recommend.cache_size", defaultConfig.Recommend.CacheSize)
	viper.SetDefault("recommend.flush_interval", defaultConfig.Recommend.FlushInterval)
	viper.SetDefault("recommend.popular_window", defaultConfig.Recommend.PopularWindow)
}

type configBinding struct {
	key string
	env string
}

// LoadConfig loads configuration from a toml file. Environment variables
// override values from the file.
func LoadConfig(path string) (*Config, error) {
	setDefault()

	// bind environment variables
	bindings := []configBinding{
		{"database.data_store", "CINEMATCH_DATA_STORE"},
		{"database.stats_store", "CINEMATCH_STATS_STORE"},
		{"database.table_prefix", "CINEMATCH_TABLE_PREFIX"},
		{"server.api_key", "CINEMATCH_SERVER_API_KEY"},
		{"server.http_host", "CINEMATCH_SERVER_HTTP_HOST"},
		{"server.http_port", "CINEMATCH_SERVER_HTTP_PORT"},
		{"recommend.cache_size", "CINEMATCH_RECOMMEND_CACHE_SIZE"},
		{"recommend.flush_interval", "CINEMATCH_RECOMMEND_FLUSH_INTERVAL"},
		{"recommend.popular_window", "CINEMATCH_RECOMMEND_POPULAR_WINDOW"},
	}
	for _, binding := range bindings {
		if err := viper.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// load config file
	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// unmarshal config file
	var conf Config
	if err := viper.Unmarshal(&conf, viper.DecodeHook(
		mapstructure.StringToTimeDurationHookFunc())); err != nil {
		return nil, errors.Trace(err)
	}
	conf.validate()
	return &conf, nil
}

// validate panics on invalid configuration the way a malformed flag would:
// there is no sensible way to continue from a broken config file.
func (config *Config) validate() {
	validateNotEmpty("database.data_store", config.Database.DataStore)
	validateNotEmpty("database.stats_store", config.Database.StatsStore)
	validateStorePrefix("database.data_store", config.Database.DataStore)
	validateStorePrefix("database.stats_store", config.Database.StatsStore)
	validateNotEmpty("server.http_host", config.Server.HttpHost)
	validatePositive("server.http_port", config.Server.HttpPort)
	validatePositive("server.default_n", config.Server.DefaultN)
	validatePositive("recommend.cache_size", config.Recommend.CacheSize)
	validateNotNegativeDuration("recommend.flush_interval", config.Recommend.FlushInterval)
	validateNotNegativeDuration("recommend.popular_window", config.Recommend.PopularWindow)
}

func storePrefixes() []string {
	return []string{"mysql://", "postgres://", "postgresql://", "sqlite://"}
}

func validateStorePrefix(name, val string) {
	for _, prefix := range storePrefixes() {
		if strings.HasPrefix(val, prefix) {
			return
		}
	}
	panicValidation(name, "must start with one of "+strings.Join(storePrefixes(), ", ")+", but the current value is "+val)
}
