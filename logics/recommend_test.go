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

package logics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinematch-io/cinematch/storage/data"
	"github.com/cinematch-io/cinematch/storage/stats"
)

type recommenderTestSuite struct {
	dataClient  data.Database
	statsClient stats.Database
}

func newRecommenderTestSuite(t *testing.T) *recommenderTestSuite {
	dataClient, err := data.Open(fmt.Sprintf("sqlite://%s/data.db", t.TempDir()), "")
	require.NoError(t, err)
	require.NoError(t, dataClient.Init())
	statsClient, err := stats.Open(fmt.Sprintf("sqlite://%s/stats.db", t.TempDir()), "")
	require.NoError(t, err)
	require.NoError(t, statsClient.Init())
	t.Cleanup(func() {
		assert.NoError(t, dataClient.Close())
		assert.NoError(t, statsClient.Close())
	})
	return &recommenderTestSuite{dataClient: dataClient, statsClient: statsClient}
}

func (s *recommenderTestSuite) insertUser(t *testing.T, login string) int64 {
	userId, err := s.dataClient.InsertUser(context.Background(), data.User{
		Email: login + "@example.com",
		Login: login,
		Name:  login,
	})
	require.NoError(t, err)
	return userId
}

func (s *recommenderTestSuite) insertFilm(t *testing.T, name string) int64 {
	filmId, err := s.dataClient.InsertFilm(context.Background(), data.Film{
		Name:        name,
		ReleaseDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:    120,
		MpaId:       1,
	})
	require.NoError(t, err)
	return filmId
}

func (s *recommenderTestSuite) rate(t *testing.T, recommender *Recommender, userId, filmId int64, value float64) {
	ctx := context.Background()
	oldValue, err := s.dataClient.InsertRating(ctx, data.Rating{
		UserId:    userId,
		FilmId:    filmId,
		Value:     value,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, recommender.OnRatingChanged(ctx, userId, filmId, oldValue, &value))
}

func TestRecommender(t *testing.T) {
	ctx := context.Background()
	suite := newRecommenderTestSuite(t)
	alice := suite.insertUser(t, "alice")
	bob := suite.insertUser(t, "bob")
	film1 := suite.insertFilm(t, "film1")
	film2 := suite.insertFilm(t, "film2")

	recommender := NewRecommender(suite.dataClient, suite.statsClient, time.Minute)
	require.NoError(t, recommender.Start(ctx))
	defer func() {
		assert.NoError(t, recommender.Stop(ctx))
	}()

	suite.rate(t, recommender, alice, film1, 10)
	suite.rate(t, recommender, alice, film2, 9)
	suite.rate(t, recommender, bob, film2, 8)

	recommended, err := recommender.Recommend(ctx, bob, 10)
	require.NoError(t, err)
	require.Len(t, recommended, 1)
	assert.Equal(t, film1, recommended[0].FilmId)
	assert.Equal(t, "film1", recommended[0].Name)
	assert.InDelta(t, 9.0, recommended[0].Score, 1e-9)

	// Removing the rating takes the evidence away again.
	deleted, err := suite.dataClient.DeleteRating(ctx, alice, film2)
	require.NoError(t, err)
	require.NoError(t, recommender.OnRatingChanged(ctx, alice, film2, &deleted, nil))
	recommended, err = recommender.Recommend(ctx, bob, 10)
	require.NoError(t, err)
	assert.Empty(t, recommended)
}

func TestRecommender_SkipsDeletedFilms(t *testing.T) {
	ctx := context.Background()
	suite := newRecommenderTestSuite(t)
	alice := suite.insertUser(t, "alice")
	bob := suite.insertUser(t, "bob")
	film1 := suite.insertFilm(t, "film1")
	film2 := suite.insertFilm(t, "film2")

	recommender := NewRecommender(suite.dataClient, suite.statsClient, time.Minute)
	require.NoError(t, recommender.Start(ctx))
	defer func() {
		assert.NoError(t, recommender.Stop(ctx))
	}()

	suite.rate(t, recommender, alice, film1, 10)
	suite.rate(t, recommender, alice, film2, 9)
	suite.rate(t, recommender, bob, film2, 8)
	require.NoError(t, suite.dataClient.DeleteFilm(ctx, film1))

	recommended, err := recommender.Recommend(ctx, bob, 10)
	require.NoError(t, err)
	assert.Empty(t, recommended)
}

func TestRecommender_RestoreFromStats(t *testing.T) {
	ctx := context.Background()
	suite := newRecommenderTestSuite(t)
	alice := suite.insertUser(t, "alice")
	bob := suite.insertUser(t, "bob")
	film1 := suite.insertFilm(t, "film1")
	film2 := suite.insertFilm(t, "film2")

	recommender := NewRecommender(suite.dataClient, suite.statsClient, time.Minute)
	require.NoError(t, recommender.Start(ctx))
	suite.rate(t, recommender, alice, film1, 10)
	suite.rate(t, recommender, alice, film2, 9)
	suite.rate(t, recommender, bob, film2, 8)
	require.NoError(t, recommender.Stop(ctx))

	// A replacement recommender whose ratings store is broken restores the
	// matrices persisted by its predecessor.
	restored := NewRecommender(data.NoDatabase{}, suite.statsClient, time.Minute)
	require.NoError(t, restored.Start(ctx))
	defer func() {
		assert.NoError(t, restored.Stop(ctx))
	}()
	diff, err := suite.statsClient.LoadDiff(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, diff)
	restoredDiff, restoredFreq := restored.slopeOne.Snapshot()
	assert.NotEmpty(t, restoredDiff)
	assert.NotEmpty(t, restoredFreq)
}
