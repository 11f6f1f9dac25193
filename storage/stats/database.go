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

// Package stats persists the pairwise statistics of the rating predictor:
// the diff matrix (mean rating difference between two films over users who
// rated both) and the freq matrix (count of those users). Matrices are
// written as whole snapshots so readers never observe a partial write;
// incremental updates live in memory and are flushed by the recommender.
package stats

import (
	"context"
	"database/sql"
	"strings"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cinematch-io/cinematch/storage"
)

var ErrNoDatabase = errors.NotAssignedf("database")

// FilmPair is an ordered pair of distinct films, the key of both matrices.
// (a,b) and (b,a) are separate entries: freq is symmetric between them and
// diff is antisymmetric.
type FilmPair struct {
	FilmA int64
	FilmB int64
}

type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error
	// SaveDiff replaces the whole diff matrix in one transaction.
	SaveDiff(ctx context.Context, diff map[FilmPair]float64) error
	// SaveFreq replaces the whole freq matrix in one transaction.
	SaveFreq(ctx context.Context, freq map[FilmPair]int) error
	LoadDiff(ctx context.Context) (map[FilmPair]float64, error)
	LoadFreq(ctx context.Context) (map[FilmPair]int, error)
}

// Open a connection to a pair statistics store.
func Open(path, tablePrefix string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		database := new(SQLDatabase)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = sql.Open("mysql", name); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = sql.Open("postgres", path); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = sql.Open("sqlite", name); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
