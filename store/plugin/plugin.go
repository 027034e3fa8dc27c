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

package plugin

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/courtroom/store"
	"github.com/spf13/pflag"
)

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = iota
	PluginOptionTypeBool
	PluginOptionTypeInt
	PluginOptionTypeUint
	PluginOptionTypeDuration
)

// PluginOption describes a single tunable exposed by a store plugin
type PluginOption struct {
	DefaultValue any
	Dest         any
	Name         string
	Description  string
	Type         PluginOptionType
}

// PluginEntry describes a registered store plugin
type PluginEntry struct {
	NewFromOptionsFunc func() (store.Store, error)
	Name               string
	Description        string
	Options            []PluginOption
}

var (
	pluginEntries      []PluginEntry
	pluginEntriesMutex sync.RWMutex
)

// EnvPrefix is the prefix used when reading plugin options from the environment
const EnvPrefix = "COURTROOM_STORE"

// Register adds a plugin entry to the registry. Registering the same name
// twice replaces the earlier entry
func Register(entry PluginEntry) {
	pluginEntriesMutex.Lock()
	defer pluginEntriesMutex.Unlock()
	for i := range pluginEntries {
		if pluginEntries[i].Name == entry.Name {
			pluginEntries[i] = entry
			return
		}
	}
	pluginEntries = append(pluginEntries, entry)
}

// GetPlugins returns a copy of all registered plugin entries
func GetPlugins() []PluginEntry {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	ret := make([]PluginEntry, len(pluginEntries))
	copy(ret, pluginEntries)
	return ret
}

func getPlugin(name string) (PluginEntry, bool) {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for _, p := range pluginEntries {
		if p.Name == name {
			return p, true
		}
	}
	return PluginEntry{}, false
}

// New constructs a store from the named plugin using its current options
func New(name string) (store.Store, error) {
	p, ok := getPlugin(name)
	if !ok {
		return nil, fmt.Errorf("store plugin '%s' not found", name)
	}
	s, err := p.NewFromOptionsFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to start store plugin '%s': %w", name, err)
	}
	return s, nil
}

func flagName(pluginName, optionName string) string {
	return "store-" + pluginName + "-" + optionName
}

func envName(pluginName, optionName string) string {
	return strings.ToUpper(
		strings.ReplaceAll(
			EnvPrefix+"_"+pluginName+"_"+optionName,
			"-",
			"_",
		),
	)
}

// PopulateCmdlineOptions adds a flag for every plugin option to the given flag set
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	for _, p := range GetPlugins() {
		for _, opt := range p.Options {
			name := flagName(p.Name, opt.Name)
			desc := fmt.Sprintf("%s (%s store)", opt.Description, p.Name)
			switch opt.Type {
			case PluginOptionTypeString:
				dest, ok := opt.Dest.(*string)
				if !ok {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(string)
				fs.StringVar(dest, name, def, desc)
			case PluginOptionTypeBool:
				dest, ok := opt.Dest.(*bool)
				if !ok {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(bool)
				fs.BoolVar(dest, name, def, desc)
			case PluginOptionTypeInt:
				dest, ok := opt.Dest.(*int)
				if !ok {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(int)
				fs.IntVar(dest, name, def, desc)
			case PluginOptionTypeUint:
				dest, ok := opt.Dest.(*uint64)
				if !ok {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(uint64)
				fs.Uint64Var(dest, name, def, desc)
			case PluginOptionTypeDuration:
				dest, ok := opt.Dest.(*time.Duration)
				if !ok {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(time.Duration)
				fs.DurationVar(dest, name, def, desc)
			default:
				return fmt.Errorf(
					"unknown plugin option type %d for option %s",
					opt.Type,
					name,
				)
			}
		}
	}
	return nil
}

// ProcessEnvVars applies any COURTROOM_STORE_<PLUGIN>_<OPTION> environment
// variables to the registered plugin options
func ProcessEnvVars() error {
	for _, p := range GetPlugins() {
		for _, opt := range p.Options {
			val, ok := os.LookupEnv(envName(p.Name, opt.Name))
			if !ok {
				continue
			}
			if err := SetPluginOption(p.Name, opt.Name, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessConfig applies option values from a config file section keyed by
// plugin name and then option name
func ProcessConfig(cfg map[string]map[string]any) error {
	for pluginName, opts := range cfg {
		if _, ok := getPlugin(pluginName); !ok {
			return fmt.Errorf("store plugin '%s' not found", pluginName)
		}
		for optName, val := range opts {
			if err := SetPluginOption(pluginName, optName, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetPluginOption sets the value of a named option for a plugin. String
// values are parsed into the option's type. Unknown options are ignored.
// It must be called before the plugin is instantiated
func SetPluginOption(pluginName string, optionName string, value any) error {
	p, ok := getPlugin(pluginName)
	if !ok {
		return fmt.Errorf("store plugin '%s' not found", pluginName)
	}
	for _, opt := range p.Options {
		if opt.Name != optionName {
			continue
		}
		if opt.Dest == nil {
			return fmt.Errorf("nil destination for option %s", optionName)
		}
		return assignOption(opt, value)
	}
	return nil
}

func assignOption(opt PluginOption, value any) error {
	strVal, isStr := value.(string)
	switch opt.Type {
	case PluginOptionTypeString:
		dest, ok := opt.Dest.(*string)
		if !ok || !isStr {
			return fmt.Errorf("invalid type for option %s: expected string", opt.Name)
		}
		*dest = strVal
	case PluginOptionTypeBool:
		dest, ok := opt.Dest.(*bool)
		if !ok {
			return fmt.Errorf("invalid destination type for option %s: expected *bool", opt.Name)
		}
		switch v := value.(type) {
		case bool:
			*dest = v
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for option %s: %w", opt.Name, err)
			}
			*dest = b
		default:
			return fmt.Errorf("invalid type for option %s: expected bool", opt.Name)
		}
	case PluginOptionTypeInt:
		dest, ok := opt.Dest.(*int)
		if !ok {
			return fmt.Errorf("invalid destination type for option %s: expected *int", opt.Name)
		}
		switch v := value.(type) {
		case int:
			*dest = v
		case string:
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for option %s: %w", opt.Name, err)
			}
			*dest = i
		default:
			return fmt.Errorf("invalid type for option %s: expected int", opt.Name)
		}
	case PluginOptionTypeUint:
		dest, ok := opt.Dest.(*uint64)
		if !ok {
			return fmt.Errorf("invalid destination type for option %s: expected *uint64", opt.Name)
		}
		switch v := value.(type) {
		case uint64:
			*dest = v
		case int:
			if v < 0 {
				return fmt.Errorf("invalid value for option %s: negative int", opt.Name)
			}
			*dest = uint64(v)
		case string:
			u, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for option %s: %w", opt.Name, err)
			}
			*dest = u
		default:
			return fmt.Errorf("invalid type for option %s: expected uint64 or int", opt.Name)
		}
	case PluginOptionTypeDuration:
		dest, ok := opt.Dest.(*time.Duration)
		if !ok {
			return fmt.Errorf("invalid destination type for option %s: expected *time.Duration", opt.Name)
		}
		switch v := value.(type) {
		case time.Duration:
			*dest = v
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for option %s: %w", opt.Name, err)
			}
			*dest = d
		default:
			return fmt.Errorf("invalid type for option %s: expected duration", opt.Name)
		}
	default:
		return fmt.Errorf(
			"unknown plugin option type %d for option %s",
			opt.Type,
			opt.Name,
		)
	}
	return nil
}
