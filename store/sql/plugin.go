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

package sql

import (
	"sync"
	"time"

	"github.com/blinklabs-io/courtroom/store"
	"github.com/blinklabs-io/courtroom/store/plugin"
)

const DefaultPurgeInterval = time.Minute

var (
	cmdlineOptions struct {
		dialect       string
		dsn           string
		dataDir       string
		purgeInterval time.Duration
	}
	cmdlineOptionsMutex sync.RWMutex
)

func initCmdlineOptions() {
	cmdlineOptionsMutex.Lock()
	defer cmdlineOptionsMutex.Unlock()
	cmdlineOptions.dialect = DialectSqlite
	cmdlineOptions.dataDir = ".courtroom"
	cmdlineOptions.purgeInterval = DefaultPurgeInterval
}

// Register plugin
func init() {
	initCmdlineOptions()
	plugin.Register(
		plugin.PluginEntry{
			Name:               "sql",
			Description:        "SQL table via gorm (sqlite, postgres, mysql), shareable between instances",
			NewFromOptionsFunc: NewFromCmdlineOptions,
			Options: []plugin.PluginOption{
				{
					Name:         "dialect",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Database dialect: sqlite, postgres or mysql",
					DefaultValue: DialectSqlite,
					Dest:         &(cmdlineOptions.dialect),
				},
				{
					Name:         "dsn",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Data source name",
					DefaultValue: "",
					Dest:         &(cmdlineOptions.dsn),
				},
				{
					Name:         "data-dir",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Data directory for the sqlite database file",
					DefaultValue: ".courtroom",
					Dest:         &(cmdlineOptions.dataDir),
				},
				{
					Name:         "purge-interval",
					Type:         plugin.PluginOptionTypeDuration,
					Description:  "Interval between purges of expired rows",
					DefaultValue: DefaultPurgeInterval,
					Dest:         &(cmdlineOptions.purgeInterval),
				},
			},
		},
	)
}

func NewFromCmdlineOptions() (store.Store, error) {
	cmdlineOptionsMutex.RLock()
	opts := []StoreSqlOptionFunc{
		WithDialect(cmdlineOptions.dialect),
		WithDsn(cmdlineOptions.dsn),
		WithDataDir(cmdlineOptions.dataDir),
		WithPurgeInterval(cmdlineOptions.purgeInterval),
	}
	cmdlineOptionsMutex.RUnlock()
	return New(opts...)
}
