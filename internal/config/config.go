// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/courtroom/store/plugin"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "courtroom.config"

const (
	DefaultStorePlugin     = "memory"
	DefaultShutdownTimeout = 30 * time.Second
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// RunMode represents the operational mode of the service
type RunMode string

const (
	RunModeServe RunMode = "serve" // Ground truth from the video platform API (default)
	RunModeDev   RunMode = "dev"   // Ground truth from a local fixtures file
)

// Valid returns true if the RunMode is a known valid mode
func (m RunMode) Valid() bool {
	switch m {
	case RunModeServe, RunModeDev, "":
		return true
	default:
		return false
	}
}

func (m RunMode) IsDevMode() bool {
	return m == RunModeDev
}

// tempConfig is the file layout. The config section is optional, and
// without it the whole file is the main config
type tempConfig struct {
	Config yaml.Node      `yaml:"config,omitempty"`
	Store  map[string]any `yaml:"store,omitempty"`
}

type Config struct {
	BindAddr          string        `yaml:"bindAddr"          split_words:"true"`
	StorePlugin       string        `yaml:"storePlugin"       envconfig:"COURTROOM_STORE_PLUGIN"`
	UpstreamUrl       string        `yaml:"upstreamUrl"       split_words:"true"`
	UpstreamToken     string        `yaml:"upstreamToken"     split_words:"true"`
	FixturesPath      string        `yaml:"fixturesPath"      split_words:"true"`
	RunMode           RunMode       `yaml:"runMode"           envconfig:"COURTROOM_RUN_MODE"`
	AllowedOrigins    []string      `yaml:"allowedOrigins"    split_words:"true"`
	Port              uint          `yaml:"port"`
	MetricsPort       uint          `yaml:"metricsPort"       split_words:"true"`
	DispatchQueueSize int           `yaml:"dispatchQueueSize" split_words:"true"`
	ConferenceTtl     time.Duration `yaml:"conferenceTtl"     split_words:"true"`
	InvitationTtl     time.Duration `yaml:"invitationTtl"     split_words:"true"`
	RoomLockTtl       time.Duration `yaml:"roomLockTtl"       split_words:"true"`
	LayoutTtl         time.Duration `yaml:"layoutTtl"         split_words:"true"`
	UserProfileTtl    time.Duration `yaml:"userProfileTtl"    split_words:"true"`
	TestCallTtl       time.Duration `yaml:"testCallTtl"       split_words:"true"`
	UpstreamTimeout   time.Duration `yaml:"upstreamTimeout"   split_words:"true"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"   split_words:"true"`
	Tracing           bool          `yaml:"tracing"`
	TracingStdout     bool          `yaml:"tracingStdout"     split_words:"true"`
}

func defaultConfig() *Config {
	return &Config{
		BindAddr:          "0.0.0.0",
		Port:              8080,
		MetricsPort:       9108,
		StorePlugin:       DefaultStorePlugin,
		RunMode:           RunModeServe,
		DispatchQueueSize: 64,
		ConferenceTtl:     4 * time.Hour,
		InvitationTtl:     150 * time.Second,
		RoomLockTtl:       15 * time.Second,
		LayoutTtl:         4 * time.Hour,
		UserProfileTtl:    30 * time.Minute,
		TestCallTtl:       time.Hour,
		UpstreamTimeout:   30 * time.Second,
		ShutdownTimeout:   DefaultShutdownTimeout,
	}
}

var globalConfig = defaultConfig()

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.courtroom/courtroom.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".courtroom", "courtroom.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/courtroom/courtroom.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/courtroom/courtroom.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		// First unmarshal into temp config to handle the store section
		var tempCfg tempConfig
		err = yaml.Unmarshal(buf, &tempCfg)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}

		if !tempCfg.Config.IsZero() {
			// Overlay config section values onto existing defaults
			if err := tempCfg.Config.Decode(globalConfig); err != nil {
				return nil, fmt.Errorf("error parsing config section: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(buf, globalConfig); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}

		if tempCfg.Store != nil {
			if err := processStoreConfig(tempCfg.Store); err != nil {
				return nil, err
			}
		}
	}
	// Process environment variables
	err := envconfig.Process("courtroom", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	// Process plugin environment variables
	err = plugin.ProcessEnvVars()
	if err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}

	// Validate and default RunMode
	if !globalConfig.RunMode.Valid() {
		return nil, fmt.Errorf(
			"invalid runMode: %q (must be 'serve' or 'dev')",
			globalConfig.RunMode,
		)
	}
	if globalConfig.RunMode == "" {
		globalConfig.RunMode = RunModeServe
	}
	return globalConfig, nil
}

// processStoreConfig handles the store section:
//
//	store:
//	  plugin: badger
//	  badger:
//	    data-dir: /var/lib/courtroom
func processStoreConfig(section map[string]any) error {
	if pluginVal, exists := section["plugin"]; exists {
		if pluginName, ok := pluginVal.(string); ok {
			globalConfig.StorePlugin = pluginName
		}
		delete(section, "plugin")
	}
	pluginConfig := make(map[string]map[string]any)
	for k, v := range section {
		switch val := v.(type) {
		case map[string]any:
			pluginConfig[k] = val
		case map[any]any:
			// Convert map[any]any to map[string]any
			stringAnyMap := make(map[string]any)
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			pluginConfig[k] = stringAnyMap
		default:
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping store config entry %q: expected map, got %T\n",
				k,
				v,
			)
		}
	}
	if len(pluginConfig) == 0 {
		return nil
	}
	if err := plugin.ProcessConfig(pluginConfig); err != nil {
		return fmt.Errorf("error processing store plugin config: %w", err)
	}
	return nil
}

func GetConfig() *Config {
	return globalConfig
}
