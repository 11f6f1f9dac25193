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

package stats

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/cinematch-io/cinematch/storage"
)

// SQLDatabase persists the pair matrices in a relational database.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
}

// Init tables and indices.
func (d *SQLDatabase) Init() error {
	type FilmDiff struct {
		FilmA int64   `gorm:"column:film_a;primaryKey"`
		FilmB int64   `gorm:"column:film_b;primaryKey"`
		Diff  float64 `gorm:"column:diff;not null"`
	}
	type FilmFreq struct {
		FilmA int64 `gorm:"column:film_a;primaryKey"`
		FilmB int64 `gorm:"column:film_b;primaryKey"`
		Freq  int   `gorm:"column:freq;not null"`
	}
	return errors.Trace(d.gormDB.AutoMigrate(FilmDiff{}, FilmFreq{}))
}

func (d *SQLDatabase) Ping() error {
	return d.client.Ping()
}

// Close the database connection.
func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

// Purge empties both matrices.
func (d *SQLDatabase) Purge() error {
	for _, table := range []string{d.FilmDiffTable(), d.FilmFreqTable()} {
		if err := d.gormDB.Exec("DELETE FROM " + table).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

const insertBatchSize = 1000

// SaveDiff replaces the whole diff matrix. The delete and every insert share
// one transaction so a concurrent reader sees either the old or the new
// matrix, never a mixture.
func (d *SQLDatabase) SaveDiff(ctx context.Context, diff map[FilmPair]float64) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM " + d.FilmDiffTable()).Error; err != nil {
			return errors.Trace(err)
		}
		rows := make([]map[string]any, 0, insertBatchSize)
		flush := func() error {
			if len(rows) == 0 {
				return nil
			}
			if err := tx.Table(d.FilmDiffTable()).Create(rows).Error; err != nil {
				return errors.Trace(err)
			}
			rows = rows[:0]
			return nil
		}
		for pair, value := range diff {
			rows = append(rows, map[string]any{"film_a": pair.FilmA, "film_b": pair.FilmB, "diff": value})
			if len(rows) == insertBatchSize {
				if err := flush(); err != nil {
					return errors.Trace(err)
				}
			}
		}
		return errors.Trace(flush())
	}))
}

// SaveFreq replaces the whole freq matrix.
func (d *SQLDatabase) SaveFreq(ctx context.Context, freq map[FilmPair]int) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM " + d.FilmFreqTable()).Error; err != nil {
			return errors.Trace(err)
		}
		rows := make([]map[string]any, 0, insertBatchSize)
		flush := func() error {
			if len(rows) == 0 {
				return nil
			}
			if err := tx.Table(d.FilmFreqTable()).Create(rows).Error; err != nil {
				return errors.Trace(err)
			}
			rows = rows[:0]
			return nil
		}
		for pair, count := range freq {
			rows = append(rows, map[string]any{"film_a": pair.FilmA, "film_b": pair.FilmB, "freq": count})
			if len(rows) == insertBatchSize {
				if err := flush(); err != nil {
					return errors.Trace(err)
				}
			}
		}
		return errors.Trace(flush())
	}))
}

func (d *SQLDatabase) LoadDiff(ctx context.Context) (map[FilmPair]float64, error) {
	result, err := d.gormDB.WithContext(ctx).Table(d.FilmDiffTable()).
		Select("film_a, film_b, diff").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer result.Close()
	diff := make(map[FilmPair]float64)
	for result.Next() {
		var pair FilmPair
		var value float64
		if err = result.Scan(&pair.FilmA, &pair.FilmB, &value); err != nil {
			return nil, errors.Trace(err)
		}
		diff[pair] = value
	}
	return diff, nil
}

func (d *SQLDatabase) LoadFreq(ctx context.Context) (map[FilmPair]int, error) {
	result, err := d.gormDB.WithContext(ctx).Table(d.FilmFreqTable()).
		Select("film_a, film_b, freq").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer result.Close()
	freq := make(map[FilmPair]int)
	for result.Next() {
		var pair FilmPair
		var count int
		if err = result.Scan(&pair.FilmA, &pair.FilmB, &count); err != nil {
			return nil, errors.Trace(err)
		}
		freq[pair] = count
	}
	return freq, nil
}
