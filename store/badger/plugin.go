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

package badger

import (
	"sync"
	"time"

	"github.com/blinklabs-io/courtroom/store"
	"github.com/blinklabs-io/courtroom/store/plugin"
)

const DefaultGcInterval = 5 * time.Minute

var (
	cmdlineOptions struct {
		dataDir    string
		gcEnabled  bool
		gcInterval time.Duration
	}
	cmdlineOptionsMutex sync.RWMutex
)

func initCmdlineOptions() {
	cmdlineOptionsMutex.Lock()
	defer cmdlineOptionsMutex.Unlock()
	cmdlineOptions.dataDir = ".courtroom"
	cmdlineOptions.gcEnabled = true
	cmdlineOptions.gcInterval = DefaultGcInterval
}

// Register plugin
func init() {
	initCmdlineOptions()
	plugin.Register(
		plugin.PluginEntry{
			Name:               "badger",
			Description:        "BadgerDB local key-value store with native TTL",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "data-dir",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Data directory for badger storage, empty for in-memory",
					DefaultValue: ".courtroom",
					Dest:         &(cmdlineOptions.dataDir),
				},
				{
					Name:         "gc",
					Type:         plugin.PluginOptionTypeBool,
					Description:  "Enable value log garbage collection",
					DefaultValue: true,
					Dest:         &(cmdlineOptions.gcEnabled),
				},
				{
					Name:         "gc-interval",
					Type:         plugin.PluginOptionTypeDuration,
					Description:  "Value log garbage collection interval",
					DefaultValue: DefaultGcInterval,
					Dest:         &(cmdlineOptions.gcInterval),
				},
			},
		},
	)
}

func NewFromCmdlineOptions() (store.Store, error) {
	cmdlineOptionsMutex.RLock()
	opts := []StoreBadgerOptionFunc{
		WithDataDir(cmdlineOptions.dataDir),
		WithGc(cmdlineOptions.gcEnabled),
		WithGcInterval(cmdlineOptions.gcInterval),
	}
	cmdlineOptionsMutex.RUnlock()
	return New(opts...)
}
