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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blinklabs-io/courtroom/store"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const (
	DialectSqlite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMysql    = "mysql"
)

// CacheEntry is the row layout for cached values. Expiry is evaluated by
// the application clock so all instances sharing a database agree on it
type CacheEntry struct {
	ExpiresAt *time.Time `gorm:"index"`
	Key       string     `gorm:"column:cache_key;primaryKey;size:191"`
	Value     []byte
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}

// StoreSql keeps cache entries in a SQL database through gorm. Pointing
// several instances at one postgres or mysql database shares the cache
// between them
type StoreSql struct {
	db            *gorm.DB
	logger        *slog.Logger
	now           func() time.Time
	purgeStopCh   chan struct{}
	dialect       string
	dsn           string
	dataDir       string
	purgeWg       sync.WaitGroup
	purgeInterval time.Duration
	closeOnce     sync.Once
}

// New opens the configured database and creates the cache table
func New(opts ...StoreSqlOptionFunc) (*StoreSql, error) {
	s := &StoreSql{
		dialect:       DialectSqlite,
		now:           time.Now,
		purgeInterval: DefaultPurgeInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	dialector, err := s.dialector()
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(
		dialector,
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&CacheEntry{}); err != nil {
		return nil, err
	}
	s.db = db
	if s.purgeInterval > 0 {
		s.purgeStopCh = make(chan struct{})
		s.purgeWg.Add(1)
		go s.purgeLoop()
	}
	return s, nil
}

func (s *StoreSql) dialector() (gorm.Dialector, error) {
	switch s.dialect {
	case DialectSqlite, "":
		if s.dsn != "" {
			return sqlite.Open(s.dsn), nil
		}
		if s.dataDir == "" {
			// cache=shared allows multiple connections to share the same in-memory database
			return sqlite.Open("file::memory:?cache=shared"), nil
		}
		if _, err := os.Stat(s.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(s.dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		return sqlite.Open(
			fmt.Sprintf(
				"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
				filepath.Join(s.dataDir, "cache.sqlite"),
			),
		), nil
	case DialectPostgres:
		if s.dsn == "" {
			return nil, errors.New("postgres dialect requires a dsn")
		}
		return postgres.Open(s.dsn), nil
	case DialectMysql:
		if s.dsn == "" {
			return nil, errors.New("mysql dialect requires a dsn")
		}
		return mysql.Open(s.dsn), nil
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s", s.dialect)
	}
}

func (s *StoreSql) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entry CacheEntry
	result := s.db.WithContext(ctx).
		Where("cache_key = ?", key).
		Where("expires_at IS NULL OR expires_at > ?", s.now().UTC()).
		Limit(1).
		Find(&entry)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, store.ErrKeyNotFound
	}
	return entry.Value, nil
}

func (s *StoreSql) Set(
	ctx context.Context,
	key string,
	value []byte,
	ttl time.Duration,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry := CacheEntry{
		Key:   key,
		Value: value,
	}
	if ttl > 0 {
		expiresAt := s.now().UTC().Add(ttl)
		entry.ExpiresAt = &expiresAt
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
		}).
		Create(&entry)
	return result.Error
}

func (s *StoreSql) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Where("cache_key = ?", key).
		Delete(&CacheEntry{})
	return result.Error
}

// PurgeExpired removes expired rows and returns how many were deleted
func (s *StoreSql) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now().UTC()).
		Delete(&CacheEntry{})
	return result.RowsAffected, result.Error
}

func (s *StoreSql) purgeLoop() {
	defer s.purgeWg.Done()
	ticker := time.NewTicker(s.purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			count, err := s.PurgeExpired(context.Background())
			if err != nil {
				s.logger.Warn(
					"failed to purge expired cache entries",
					"component", "store",
					"error", err,
				)
				continue
			}
			if count > 0 {
				s.logger.Debug(
					fmt.Sprintf("purged %d expired cache entries", count),
					"component", "store",
				)
			}
		case <-s.purgeStopCh:
			return
		}
	}
}

// Close stops the purge loop and closes the database connection
func (s *StoreSql) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.purgeStopCh != nil {
			close(s.purgeStopCh)
			s.purgeWg.Wait()
		}
		sqlDB, dbErr := s.db.DB()
		if dbErr != nil {
			err = dbErr
			return
		}
		err = sqlDB.Close()
	})
	return err
}

// DB returns the underlying gorm handle
func (s *StoreSql) DB() *gorm.DB {
	return s.db
}
