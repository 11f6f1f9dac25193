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
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type SQLiteTestSuite struct {
	suite.Suite
	Database
}

func (suite *SQLiteTestSuite) SetupSuite() {
	var err error
	path := fmt.Sprintf("sqlite://%s/stats.db", suite.T().TempDir())
	suite.Database, err = Open(path, "cm_")
	suite.NoError(err)
	err = suite.Database.Init()
	suite.NoError(err)
}

func (suite *SQLiteTestSuite) TearDownSuite() {
	suite.NoError(suite.Database.Close())
}

func (suite *SQLiteTestSuite) SetupTest() {
	err := suite.Database.Purge()
	suite.NoError(err)
}

func (suite *SQLiteTestSuite) TestDiff() {
	ctx := context.Background()
	diff, err := suite.Database.LoadDiff(ctx)
	suite.NoError(err)
	suite.Empty(diff)
	err = suite.Database.SaveDiff(ctx, map[FilmPair]float64{
		{FilmA: 1, FilmB: 2}: 1.5,
		{FilmA: 2, FilmB: 1}: -1.5,
		{FilmA: 1, FilmB: 3}: 0.25,
	})
	suite.NoError(err)
	diff, err = suite.Database.LoadDiff(ctx)
	suite.NoError(err)
	suite.Equal(map[FilmPair]float64{
		{FilmA: 1, FilmB: 2}: 1.5,
		{FilmA: 2, FilmB: 1}: -1.5,
		{FilmA: 1, FilmB: 3}: 0.25,
	}, diff)
	// a save replaces the whole matrix
	err = suite.Database.SaveDiff(ctx, map[FilmPair]float64{
		{FilmA: 1, FilmB: 2}: 2.0,
	})
	suite.NoError(err)
	diff, err = suite.Database.LoadDiff(ctx)
	suite.NoError(err)
	suite.Equal(map[FilmPair]float64{{FilmA: 1, FilmB: 2}: 2.0}, diff)
	err = suite.Database.SaveDiff(ctx, nil)
	suite.NoError(err)
	diff, err = suite.Database.LoadDiff(ctx)
	suite.NoError(err)
	suite.Empty(diff)
}

func (suite *SQLiteTestSuite) TestFreq() {
	ctx := context.Background()
	freq, err := suite.Database.LoadFreq(ctx)
	suite.NoError(err)
	suite.Empty(freq)
	err = suite.Database.SaveFreq(ctx, map[FilmPair]int{
		{FilmA: 1, FilmB: 2}: 3,
		{FilmA: 2, FilmB: 1}: 3,
	})
	suite.NoError(err)
	freq, err = suite.Database.LoadFreq(ctx)
	suite.NoError(err)
	suite.Equal(map[FilmPair]int{
		{FilmA: 1, FilmB: 2}: 3,
		{FilmA: 2, FilmB: 1}: 3,
	}, freq)
	err = suite.Database.SaveFreq(ctx, map[FilmPair]int{{FilmA: 1, FilmB: 2}: 4})
	suite.NoError(err)
	freq, err = suite.Database.LoadFreq(ctx)
	suite.NoError(err)
	suite.Equal(map[FilmPair]int{{FilmA: 1, FilmB: 2}: 4}, freq)
}

func (suite *SQLiteTestSuite) TestPurge() {
	ctx := context.Background()
	err := suite.Database.SaveDiff(ctx, map[FilmPair]float64{{FilmA: 1, FilmB: 2}: 1.0})
	suite.NoError(err)
	err = suite.Database.SaveFreq(ctx, map[FilmPair]int{{FilmA: 1, FilmB: 2}: 1})
	suite.NoError(err)
	suite.NoError(suite.Database.Purge())
	diff, err := suite.Database.LoadDiff(ctx)
	suite.NoError(err)
	suite.Empty(diff)
	freq, err := suite.Database.LoadFreq(ctx)
	suite.NoError(err)
	suite.Empty(freq)
}

func TestSQLite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}
