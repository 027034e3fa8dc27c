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
	"log/slog"
	"time"
)

type StoreSqlOptionFunc func(*StoreSql)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) StoreSqlOptionFunc {
	return func(s *StoreSql) {
		s.logger = logger
	}
}

// WithDialect specifies the database dialect: sqlite, postgres or mysql
func WithDialect(dialect string) StoreSqlOptionFunc {
	return func(s *StoreSql) {
		s.dialect = dialect
	}
}

// WithDsn specifies the data source name. Required for postgres and mysql
func WithDsn(dsn string) StoreSqlOptionFunc {
	return func(s *StoreSql) {
		s.dsn = dsn
	}
}

// WithDataDir specifies the directory for the sqlite database file. An
// empty value with no DSN uses a shared in-memory database
func WithDataDir(dataDir string) StoreSqlOptionFunc {
	return func(s *StoreSql) {
		s.dataDir = dataDir
	}
}

// WithPurgeInterval specifies how often expired rows are deleted. Zero disables the purge loop
func WithPurgeInterval(interval time.Duration) StoreSqlOptionFunc {
	return func(s *StoreSql) {
		s.purgeInterval = interval
	}
}

// WithClock overrides the time source used to compute and evaluate expiry
func WithClock(now func() time.Time) StoreSqlOptionFunc {
	return func(s *StoreSql) {
		s.now = now
	}
}
