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
	"database/sql"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cinematch-io/cinematch/storage"
)

var (
	ErrUserNotExist     = errors.NotFoundf("user")
	ErrFilmNotExist     = errors.NotFoundf("film")
	ErrGenreNotExist    = errors.NotFoundf("genre")
	ErrMpaNotExist      = errors.NotFoundf("mpa")
	ErrDirectorNotExist = errors.NotFoundf("director")
	ErrRatingNotExist   = errors.NotFoundf("rating")
	ErrReviewNotExist   = errors.NotFoundf("review")
	ErrNoDatabase       = errors.NotAssignedf("database")
)

// Rating values are bounded to a ten-point scale.
const (
	MinRatingValue = 1
	MaxRatingValue = 10
)

// User stores meta data about a user.
type User struct {
	UserId   int64  `json:"UserId"`
	Email    string `json:"Email"`
	Login    string `json:"Login"`
	Name     string `json:"Name"`
	Birthday time.Time
}

// UserPatch is the modification on a user.
type UserPatch struct {
	Email    *string
	Login    *string
	Name     *string
	Birthday *time.Time
}

// Mpa is a Motion Picture Association age rating.
type Mpa struct {
	MpaId int64
	Name  string
}

// Genre is a film genre.
type Genre struct {
	GenreId int64
	Name    string
}

// Director stores meta data about a director.
type Director struct {
	DirectorId int64
	Name       string
}

// Film stores meta data about a film.
type Film struct {
	FilmId      int64
	Name        string
	Description string
	ReleaseDate time.Time
	Duration    int
	MpaId       int64
	Genres      []Genre    `gorm:"-"`
	Directors   []Director `gorm:"-"`
}

// FilmPatch is the modification on a film. Nil fields are left untouched,
// non-nil Genres and Directors replace the film's associations.
type FilmPatch struct {
	Name        *string
	Description *string
	ReleaseDate *time.Time
	Duration    *int
	MpaId       *int64
	Genres      []Genre
	Directors   []Director
}

// Rating is a single (user, film, value) fact. At most one rating exists per
// (user, film); inserting again replaces the previous value.
type Rating struct {
	UserId    int64
	FilmId    int64
	Value     float64
	Timestamp time.Time
}

// Feed event types and operations.
const (
	FeedEventFriend = "FRIEND"
	FeedEventRating = "RATING"
	FeedEventReview = "REVIEW"

	FeedOperationAdd    = "ADD"
	FeedOperationRemove = "REMOVE"
	FeedOperationUpdate = "UPDATE"
)

// FeedEvent is one entry of a user's activity feed.
type FeedEvent struct {
	EventId   int64
	Timestamp time.Time
	UserId    int64
	EventType string
	Operation string
	EntityId  int64
}

// Review is a user's review of a film. Useful is derived from review votes
// (likes minus dislikes) and is read-only.
type Review struct {
	ReviewId   int64
	UserId     int64
	FilmId     int64
	Content    string
	IsPositive bool
	Useful     int
}

type Database interface {
	Init() error
	Ping() error
	Close() error
	Optimize() error
	Purge() error

	InsertUser(ctx context.Context, user User) (int64, error)
	GetUser(ctx context.Context, userId int64) (User, error)
	ModifyUser(ctx context.Context, userId int64, patch UserPatch) error
	DeleteUser(ctx context.Context, userId int64) error
	GetUsers(ctx context.Context, cursor string, n int) (string, []User, error)

	InsertFilm(ctx context.Context, film Film) (int64, error)
	GetFilm(ctx context.Context, filmId int64) (Film, error)
	ModifyFilm(ctx context.Context, filmId int64, patch FilmPatch) error
	DeleteFilm(ctx context.Context, filmId int64) error
	GetFilms(ctx context.Context, cursor string, n int) (string, []Film, error)
	BatchGetFilms(ctx context.Context, filmIds []int64) ([]Film, error)

	GetGenres(ctx context.Context) ([]Genre, error)
	GetGenre(ctx context.Context, genreId int64) (Genre, error)
	GetMpas(ctx context.Context) ([]Mpa, error)
	GetMpa(ctx context.Context, mpaId int64) (Mpa, error)

	InsertDirector(ctx context.Context, director Director) (int64, error)
	GetDirector(ctx context.Context, directorId int64) (Director, error)
	GetDirectors(ctx context.Context) ([]Director, error)
	DeleteDirector(ctx context.Context, directorId int64) error

	InsertRating(ctx context.Context, rating Rating) (*float64, error)
	DeleteRating(ctx context.Context, userId, filmId int64) (float64, error)
	GetRating(ctx context.Context, userId, filmId int64) (Rating, error)
	GetUserRatings(ctx context.Context, userId int64) ([]Rating, error)
	GetFilmRatings(ctx context.Context, filmId int64) ([]Rating, error)
	GetRatings(ctx context.Context, cursor string, n int) (string, []Rating, error)
	CountRatings(ctx context.Context) (int, error)

	InsertFriend(ctx context.Context, userId, friendId int64) error
	DeleteFriend(ctx context.Context, userId, friendId int64) error
	GetFriends(ctx context.Context, userId int64) ([]User, error)
	GetCommonFriends(ctx context.Context, userId, otherId int64) ([]User, error)

	InsertFeedEvent(ctx context.Context, event FeedEvent) error
	GetFeed(ctx context.Context, userId int64, n int) ([]FeedEvent, error)

	InsertReview(ctx context.Context, review Review) (int64, error)
	UpdateReview(ctx context.Context, review Review) error
	DeleteReview(ctx context.Context, reviewId int64) error
	GetReview(ctx context.Context, reviewId int64) (Review, error)
	GetReviews(ctx context.Context, filmId *int64, n int) ([]Review, error)
	InsertReviewVote(ctx context.Context, reviewId, userId int64, like bool) error
	DeleteReviewVote(ctx context.Context, reviewId, userId int64) error
}

// Open a connection to a database.
func Open(path, tablePrefix string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		// probe isolation variable name
		isolationVarName, err := storage.ProbeMySQLIsolationVariableName(name)
		if err != nil {
			return nil, errors.Trace(err)
		}
		// append parameters
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"sql_mode":       "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
			isolationVarName: "'READ-UNCOMMITTED'",
			"parseTime":      "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLDatabase)
		database.driver = MySQL
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
		database.driver = Postgres
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
		// append parameters
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		database.driver = SQLite
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
