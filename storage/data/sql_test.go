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

package data

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) SetupTest() {
	err := suite.Database.Purge()
	suite.NoError(err)
}

func (suite *baseTestSuite) insertUser(name string) int64 {
	userId, err := suite.Database.InsertUser(context.Background(), User{
		Email:    name + "@example.com",
		Login:    name,
		Name:     name,
		Birthday: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	suite.NoError(err)
	return userId
}

func (suite *baseTestSuite) insertFilm(name string) int64 {
	filmId, err := suite.Database.InsertFilm(context.Background(), Film{
		Name:        name,
		Description: "about " + name,
		ReleaseDate: time.Date(2001, 5, 18, 0, 0, 0, 0, time.UTC),
		Duration:    120,
		MpaId:       2,
	})
	suite.NoError(err)
	return filmId
}

func (suite *baseTestSuite) TestUsers() {
	ctx := context.Background()
	// insert
	userId, err := suite.Database.InsertUser(ctx, User{
		Email:    "ada@example.com",
		Login:    "ada",
		Name:     "Ada",
		Birthday: time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
	})
	suite.NoError(err)
	suite.Positive(userId)
	// get
	user, err := suite.Database.GetUser(ctx, userId)
	suite.NoError(err)
	suite.Equal("ada@example.com", user.Email)
	suite.Equal("ada", user.Login)
	suite.Equal("Ada", user.Name)
	// modify
	err = suite.Database.ModifyUser(ctx, userId, UserPatch{
		Email: lo.ToPtr("countess@example.com"),
		Name:  lo.ToPtr("Ada Lovelace"),
	})
	suite.NoError(err)
	user, err = suite.Database.GetUser(ctx, userId)
	suite.NoError(err)
	suite.Equal("countess@example.com", user.Email)
	suite.Equal("ada", user.Login)
	suite.Equal("Ada Lovelace", user.Name)
	// empty patch is a no-op
	err = suite.Database.ModifyUser(ctx, userId, UserPatch{})
	suite.NoError(err)
	// delete
	err = suite.Database.DeleteUser(ctx, userId)
	suite.NoError(err)
	_, err = suite.Database.GetUser(ctx, userId)
	suite.Equal(ErrUserNotExist, errors.Cause(err))
}

func (suite *baseTestSuite) TestGetUsers() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		suite.insertUser(fmt.Sprintf("user_%d", i))
	}
	logins := make([]string, 0, 5)
	cursor := ""
	for {
		var users []User
		var err error
		cursor, users, err = suite.Database.GetUsers(ctx, cursor, 2)
		suite.NoError(err)
		for _, user := range users {
			logins = append(logins, user.Login)
		}
		if cursor == "" {
			break
		}
	}
	suite.Equal([]string{"user_0", "user_1", "user_2", "user_3", "user_4"}, logins)
	// an empty page is a valid request
	_, users, err := suite.Database.GetUsers(ctx, "", 0)
	suite.NoError(err)
	suite.Empty(users)
	_, users, err = suite.Database.GetUsers(ctx, "", -1)
	suite.NoError(err)
	suite.Empty(users)
}

func (suite *baseTestSuite) TestDeleteUserCascades() {
	ctx := context.Background()
	alice := suite.insertUser("alice")
	bob := suite.insertUser("bob")
	filmId := suite.insertFilm("Memento")
	_, err := suite.Database.InsertRating(ctx, Rating{UserId: alice, FilmId: filmId, Value: 8, Timestamp: time.Now()})
	suite.NoError(err)
	suite.NoError(suite.Database.InsertFriend(ctx, alice, bob))
	suite.NoError(suite.Database.InsertFriend(ctx, bob, alice))
	suite.NoError(suite.Database.InsertFeedEvent(ctx, FeedEvent{
		Timestamp: time.Now(), UserId: alice, EventType: FeedEventRating, Operation: FeedOperationAdd, EntityId: filmId,
	}))
	reviewId, err := suite.Database.InsertReview(ctx, Review{UserId: alice, FilmId: filmId, Content: "tense", IsPositive: true})
	suite.NoError(err)
	suite.NoError(suite.Database.InsertReviewVote(ctx, reviewId, alice, true))

	suite.NoError(suite.Database.DeleteUser(ctx, alice))
	_, err = suite.Database.GetRating(ctx, alice, filmId)
	suite.Equal(ErrRatingNotExist, errors.Cause(err))
	friends, err := suite.Database.GetFriends(ctx, bob)
	suite.NoError(err)
	suite.Empty(friends)
	feed, err := suite.Database.GetFeed(ctx, bob, 0)
	suite.NoError(err)
	suite.Empty(feed)
	_, err = suite.Database.GetReview(ctx, reviewId)
	suite.Equal(ErrReviewNotExist, errors.Cause(err))
}

func (suite *baseTestSuite) TestFilms() {
	ctx := context.Background()
	// foreign dictionaries are validated on insert
	_, err := suite.Database.InsertFilm(ctx, Film{Name: "Nope", MpaId: 99})
	suite.Equal(ErrMpaNotExist, errors.Cause(err))
	_, err = suite.Database.InsertFilm(ctx, Film{Name: "Nope", MpaId: 1, Genres: []Genre{{GenreId: 99}}})
	suite.Equal(ErrGenreNotExist, errors.Cause(err))
	// insert
	filmId, err := suite.Database.InsertFilm(ctx, Film{
		Name:        "The Prestige",
		Description: "rival magicians",
		ReleaseDate: time.Date(2006, 10, 20, 0, 0, 0, 0, time.UTC),
		Duration:    130,
		MpaId:       3,
		Genres:      []Genre{{GenreId: 2}, {GenreId: 4}, {GenreId: 2}},
	})
	suite.NoError(err)
	suite.Positive(filmId)
	// get, duplicate genres collapse
	film, err := suite.Database.GetFilm(ctx, filmId)
	suite.NoError(err)
	suite.Equal("The Prestige", film.Name)
	suite.Equal(130, film.Duration)
	suite.Equal(int64(3), film.MpaId)
	suite.Equal([]Genre{{GenreId: 2, Name: "Drama"}, {GenreId: 4, Name: "Thriller"}}, film.Genres)
	// modify
	err = suite.Database.ModifyFilm(ctx, filmId, FilmPatch{
		Duration: lo.ToPtr(131),
		Genres:   []Genre{{GenreId: 4}},
	})
	suite.NoError(err)
	film, err = suite.Database.GetFilm(ctx, filmId)
	suite.NoError(err)
	suite.Equal(131, film.Duration)
	suite.Equal([]Genre{{GenreId: 4, Name: "Thriller"}}, film.Genres)
	// patching to an unknown MPA fails
	err = suite.Database.ModifyFilm(ctx, filmId, FilmPatch{MpaId: lo.ToPtr(int64(99))})
	suite.Equal(ErrMpaNotExist, errors.Cause(err))
	// delete
	err = suite.Database.DeleteFilm(ctx, filmId)
	suite.NoError(err)
	_, err = suite.Database.GetFilm(ctx, filmId)
	suite.Equal(ErrFilmNotExist, errors.Cause(err))
}

func (suite *baseTestSuite) TestGetFilms() {
	ctx := context.Background()
	filmIds := make([]int64, 0, 5)
	for i := 0; i < 5; i++ {
		filmIds = append(filmIds, suite.insertFilm(fmt.Sprintf("film_%d", i)))
	}
	names := make([]string, 0, 5)
	cursor := ""
	for {
		var films []Film
		var err error
		cursor, films, err = suite.Database.GetFilms(ctx, cursor, 3)
		suite.NoError(err)
		for _, film := range films {
			names = append(names, film.Name)
		}
		if cursor == "" {
			break
		}
	}
	suite.Equal([]string{"film_0", "film_1", "film_2", "film_3", "film_4"}, names)
	// batch get skips unknown ids
	films, err := suite.Database.BatchGetFilms(ctx, []int64{filmIds[0], filmIds[2], filmIds[4] + 1})
	suite.NoError(err)
	suite.ElementsMatch([]string{"film_0", "film_2"}, lo.Map(films, func(f Film, _ int) string { return f.Name }))
	films, err = suite.Database.BatchGetFilms(ctx, nil)
	suite.NoError(err)
	suite.Empty(films)
}

func (suite *baseTestSuite) TestDictionaries() {
	ctx := context.Background()
	genres, err := suite.Database.GetGenres(ctx)
	suite.NoError(err)
	suite.Equal(6, len(genres))
	genre, err := suite.Database.GetGenre(ctx, 1)
	suite.NoError(err)
	suite.Equal("Comedy", genre.Name)
	_, err = suite.Database.GetGenre(ctx, 99)
	suite.Equal(ErrGenreNotExist, errors.Cause(err))

	mpas, err := suite.Database.GetMpas(ctx)
	suite.NoError(err)
	suite.Equal(5, len(mpas))
	mpa, err := suite.Database.GetMpa(ctx, 5)
	suite.NoError(err)
	suite.Equal("NC-17", mpa.Name)
	_, err = suite.Database.GetMpa(ctx, 99)
	suite.Equal(ErrMpaNotExist, errors.Cause(err))
}

func (suite *baseTestSuite) TestDirectors() {
	ctx := context.Background()
	nolanId, err := suite.Database.InsertDirector(ctx, Director{Name: "Christopher Nolan"})
	suite.NoError(err)
	suite.Positive(nolanId)
	director, err := suite.Database.GetDirector(ctx, nolanId)
	suite.NoError(err)
	suite.Equal("Christopher Nolan", director.Name)
	_, err = suite.Database.InsertDirector(ctx, Director{Name: "Denis Villeneuve"})
	suite.NoError(err)
	directors, err := suite.Database.GetDirectors(ctx)
	suite.NoError(err)
	suite.Equal(2, len(directors))

	filmId, err := suite.Database.InsertFilm(ctx, Film{
		Name: "Inception", MpaId: 3, Directors: []Director{{DirectorId: nolanId}},
	})
	suite.NoError(err)
	film, err := suite.Database.GetFilm(ctx, filmId)
	suite.NoError(err)
	suite.Equal([]Director{{DirectorId: nolanId, Name: "Christopher Nolan"}}, film.Directors)
	// deleting a director detaches it from films
	err = suite.Database.DeleteDirector(ctx, nolanId)
	suite.NoError(err)
	_, err = suite.Database.GetDirector(ctx, nolanId)
	suite.Equal(ErrDirectorNotExist, errors.Cause(err))
	film, err = suite.Database.GetFilm(ctx, filmId)
	suite.NoError(err)
	suite.Empty(film.Directors)
}

func (suite *baseTestSuite) TestRatings() {
	ctx := context.Background()
	alice := suite.insertUser("alice")
	bob := suite.insertUser("bob")
	film1 := suite.insertFilm("film_1")
	film2 := suite.insertFilm("film_2")
	// first insert has no previous value
	previous, err := suite.Database.InsertRating(ctx, Rating{UserId: alice, FilmId: film1, Value: 8, Timestamp: time.Now()})
	suite.NoError(err)
	suite.Nil(previous)
	// second insert replaces and returns the previous value
	previous, err = suite.Database.InsertRating(ctx, Rating{UserId: alice, FilmId: film1, Value: 9, Timestamp: time.Now()})
	suite.NoError(err)
	if suite.NotNil(previous) {
		suite.Equal(8.0, *previous)
	}
	rating, err := suite.Database.GetRating(ctx, alice, film1)
	suite.NoError(err)
	suite.Equal(9.0, rating.Value)
	_, err = suite.Database.InsertRating(ctx, Rating{UserId: alice, FilmId: film2, Value: 6, Timestamp: time.Now()})
	suite.NoError(err)
	_, err = suite.Database.InsertRating(ctx, Rating{UserId: bob, FilmId: film1, Value: 7, Timestamp: time.Now()})
	suite.NoError(err)

	ratings, err := suite.Database.GetUserRatings(ctx, alice)
	suite.NoError(err)
	suite.Equal([]int64{film1, film2}, lo.Map(ratings, func(r Rating, _ int) int64 { return r.FilmId }))
	ratings, err = suite.Database.GetFilmRatings(ctx, film1)
	suite.NoError(err)
	suite.Equal([]int64{alice, bob}, lo.Map(ratings, func(r Rating, _ int) int64 { return r.UserId }))
	count, err := suite.Database.CountRatings(ctx)
	suite.NoError(err)
	suite.Equal(3, count)
	// delete returns the removed value
	value, err := suite.Database.DeleteRating(ctx, alice, film1)
	suite.NoError(err)
	suite.Equal(9.0, value)
	_, err = suite.Database.DeleteRating(ctx, alice, film1)
	suite.Equal(ErrRatingNotExist, errors.Cause(err))
	_, err = suite.Database.GetRating(ctx, alice, film1)
	suite.Equal(ErrRatingNotExist, errors.Cause(err))
}

func (suite *baseTestSuite) TestGetRatings() {
	ctx := context.Background()
	alice := suite.insertUser("alice")
	bob := suite.insertUser("bob")
	for i, filmId := range []int64{suite.insertFilm("a"), suite.insertFilm("b"), suite.insertFilm("c")} {
		_, err := suite.Database.InsertRating(ctx, Rating{UserId: alice, FilmId: filmId, Value: float64(i + 1), Timestamp: time.Now()})
		suite.NoError(err)
		_, err = suite.Database.InsertRating(ctx, Rating{UserId: bob, FilmId: filmId, Value: float64(i + 1), Timestamp: time.Now()})
		suite.NoError(err)
	}
	collected := make([]Rating, 0, 6)
	cursor := ""
	for {
		var ratings []Rating
		var err error
		cursor, ratings, err = suite.Database.GetRatings(ctx, cursor, 4)
		suite.NoError(err)
		collected = append(collected, ratings...)
		if cursor == "" {
			break
		}
	}
	suite.Equal(6, len(collected))
	suite.Equal(alice, collected[0].UserId)
	suite.Equal(bob, collected[5].UserId)
	_, _, err := suite.Database.GetRatings(ctx, "garbage", 4)
	suite.Error(err)
}

func (suite *baseTestSuite) TestFriends() {
	ctx := context.Background()
	alice := suite.insertUser("alice")
	bob := suite.insertUser("bob")
	carol := suite.insertUser("carol")
	// friendship is one-directional
	suite.NoError(suite.Database.InsertFriend(ctx, alice, bob))
	suite.NoError(suite.Database.InsertFriend(ctx, alice, bob))
	friends, err := suite.Database.GetFriends(ctx, alice)
	suite.NoError(err)
	suite.Equal([]int64{bob}, lo.Map(friends, func(u User, _ int) int64 { return u.UserId }))
	friends, err = suite.Database.GetFriends(ctx, bob)
	suite.NoError(err)
	suite.Empty(friends)
	// common friends
	suite.NoError(suite.Database.InsertFriend(ctx, alice, carol))
	suite.NoError(suite.Database.InsertFriend(ctx, bob, carol))
	common, err := suite.Database.GetCommonFriends(ctx, alice, bob)
	suite.NoError(err)
	suite.Equal([]int64{carol}, lo.Map(common, func(u User, _ int) int64 { return u.UserId }))
	// delete
	suite.NoError(suite.Database.DeleteFriend(ctx, alice, bob))
	friends, err = suite.Database.GetFriends(ctx, alice)
	suite.NoError(err)
	suite.Equal([]int64{carol}, lo.Map(friends, func(u User, _ int) int64 { return u.UserId }))
}

func (suite *baseTestSuite) TestFeed() {
	ctx := context.Background()
	alice := suite.insertUser("alice")
	bob := suite.insertUser("bob")
	carol := suite.insertUser("carol")
	suite.NoError(suite.Database.InsertFriend(ctx, alice, bob))
	for i, event := range []FeedEvent{
		{UserId: bob, EventType: FeedEventRating, Operation: FeedOperationAdd, EntityId: 1},
		{UserId: carol, EventType: FeedEventReview, Operation: FeedOperationAdd, EntityId: 2},
		{UserId: bob, EventType: FeedEventFriend, Operation: FeedOperationRemove, EntityId: 3},
		{UserId: alice, EventType: FeedEventRating, Operation: FeedOperationUpdate, EntityId: 4},
	} {
		event.Timestamp = time.Date(2024, 3, 1, 10, i, 0, 0, time.UTC)
		suite.NoError(suite.Database.InsertFeedEvent(ctx, event))
	}
	// only events from friends, newest first
	feed, err := suite.Database.GetFeed(ctx, alice, 0)
	suite.NoError(err)
	suite.Equal([]int64{3, 1}, lo.Map(feed, func(e FeedEvent, _ int) int64 { return e.EntityId }))
	suite.Equal(bob, feed[0].UserId)
	suite.Equal(FeedEventFriend, feed[0].EventType)
	suite.Equal(FeedOperationRemove, feed[0].Operation)
	// truncated feed
	feed, err = suite.Database.GetFeed(ctx, alice, 1)
	suite.NoError(err)
	suite.Equal([]int64{3}, lo.Map(feed, func(e FeedEvent, _ int) int64 { return e.EntityId }))
	// no friends, no feed
	feed, err = suite.Database.GetFeed(ctx, carol, 0)
	suite.NoError(err)
	suite.Empty(feed)
}

func (suite *baseTestSuite) TestReviews() {
	ctx := context.Background()
	alice := suite.insertUser("alice")
	bob := suite.insertUser("bob")
	carol := suite.insertUser("carol")
	film1 := suite.insertFilm("film_1")
	film2 := suite.insertFilm("film_2")
	first, err := suite.Database.InsertReview(ctx, Review{UserId: alice, FilmId: film1, Content: "gripping", IsPositive: true})
	suite.NoError(err)
	second, err := suite.Database.InsertReview(ctx, Review{UserId: bob, FilmId: film1, Content: "overrated", IsPositive: false})
	suite.NoError(err)
	third, err := suite.Database.InsertReview(ctx, Review{UserId: carol, FilmId: film2, Content: "fine", IsPositive: true})
	suite.NoError(err)
	// a review nobody voted on sits at zero
	review, err := suite.Database.GetReview(ctx, third)
	suite.NoError(err)
	suite.Equal(0, review.Useful)
	// votes drive usefulness
	suite.NoError(suite.Database.InsertReviewVote(ctx, second, alice, true))
	suite.NoError(suite.Database.InsertReviewVote(ctx, second, carol, true))
	suite.NoError(suite.Database.InsertReviewVote(ctx, first, bob, false))
	review, err = suite.Database.GetReview(ctx, second)
	suite.NoError(err)
	suite.Equal(2, review.Useful)
	review, err = suite.Database.GetReview(ctx, first)
	suite.NoError(err)
	suite.Equal(-1, review.Useful)
	// a repeated vote replaces, a removed vote is forgotten
	suite.NoError(suite.Database.InsertReviewVote(ctx, second, alice, false))
	review, err = suite.Database.GetReview(ctx, second)
	suite.NoError(err)
	suite.Equal(0, review.Useful)
	suite.NoError(suite.Database.DeleteReviewVote(ctx, first, bob))
	review, err = suite.Database.GetReview(ctx, first)
	suite.NoError(err)
	suite.Equal(0, review.Useful)
	// most useful first
	suite.NoError(suite.Database.InsertReviewVote(ctx, second, bob, true))
	suite.NoError(suite.Database.InsertReviewVote(ctx, second, alice, true))
	reviews, err := suite.Database.GetReviews(ctx, &film1, 0)
	suite.NoError(err)
	suite.Equal([]int64{second, first}, lo.Map(reviews, func(r Review, _ int) int64 { return r.ReviewId }))
	reviews, err = suite.Database.GetReviews(ctx, nil, 0)
	suite.NoError(err)
	suite.Equal(3, len(reviews))
	reviews, err = suite.Database.GetReviews(ctx, nil, 1)
	suite.NoError(err)
	suite.Equal([]int64{second}, lo.Map(reviews, func(r Review, _ int) int64 { return r.ReviewId }))
	// update
	err = suite.Database.UpdateReview(ctx, Review{ReviewId: third, Content: "actually great", IsPositive: true})
	suite.NoError(err)
	review, err = suite.Database.GetReview(ctx, third)
	suite.NoError(err)
	suite.Equal("actually great", review.Content)
	err = suite.Database.UpdateReview(ctx, Review{ReviewId: third + 100, Content: "ghost"})
	suite.Equal(ErrReviewNotExist, errors.Cause(err))
	// delete drops the votes as well
	suite.NoError(suite.Database.DeleteReview(ctx, second))
	_, err = suite.Database.GetReview(ctx, second)
	suite.Equal(ErrReviewNotExist, errors.Cause(err))
}

func (suite *baseTestSuite) TestPurge() {
	ctx := context.Background()
	alice := suite.insertUser("alice")
	filmId := suite.insertFilm("film_1")
	_, err := suite.Database.InsertRating(ctx, Rating{UserId: alice, FilmId: filmId, Value: 7, Timestamp: time.Now()})
	suite.NoError(err)
	suite.NoError(suite.Database.Purge())
	_, users, err := suite.Database.GetUsers(ctx, "", 10)
	suite.NoError(err)
	suite.Empty(users)
	count, err := suite.Database.CountRatings(ctx)
	suite.NoError(err)
	suite.Zero(count)
	// dictionaries are reseeded
	genres, err := suite.Database.GetGenres(ctx)
	suite.NoError(err)
	suite.Equal(6, len(genres))
}

type SQLiteTestSuite struct {
	baseTestSuite
}

func (suite *SQLiteTestSuite) SetupSuite() {
	var err error
	path := fmt.Sprintf("sqlite://%s/data.db", suite.T().TempDir())
	suite.Database, err = Open(path, "cm_")
	suite.NoError(err)
	err = suite.Database.Init()
	suite.NoError(err)
}

func (suite *SQLiteTestSuite) TearDownSuite() {
	suite.NoError(suite.Database.Close())
}

func TestSQLite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}
