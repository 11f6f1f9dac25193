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
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	_ "modernc.org/sqlite"

	"github.com/cinematch-io/cinematch/base/log"
	"github.com/cinematch-io/cinematch/storage"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLDatabase uses a relational database as data storage.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

// Init tables and indices.
func (d *SQLDatabase) Init() error {
	type Users struct {
		UserId   int64     `gorm:"column:user_id;primaryKey;autoIncrement"`
		Email    string    `gorm:"column:email;type:varchar(256) not null;uniqueIndex"`
		Login    string    `gorm:"column:login;type:varchar(256) not null"`
		Name     string    `gorm:"column:name;type:varchar(256) not null"`
		Birthday time.Time `gorm:"column:birthday;not null"`
	}
	type Films struct {
		FilmId      int64     `gorm:"column:film_id;primaryKey;autoIncrement"`
		Name        string    `gorm:"column:name;type:varchar(256) not null"`
		Description string    `gorm:"column:description;type:text not null"`
		ReleaseDate time.Time `gorm:"column:release_date;not null"`
		Duration    int       `gorm:"column:duration;not null"`
		MpaId       int64     `gorm:"column:mpa_id;not null"`
	}
	type Genres struct {
		GenreId int64  `gorm:"column:genre_id;primaryKey;autoIncrement"`
		Name    string `gorm:"column:name;type:varchar(256) not null"`
	}
	type Mpa struct {
		MpaId int64  `gorm:"column:mpa_id;primaryKey;autoIncrement"`
		Name  string `gorm:"column:name;type:varchar(256) not null"`
	}
	type Directors struct {
		DirectorId int64  `gorm:"column:director_id;primaryKey;autoIncrement"`
		Name       string `gorm:"column:name;type:varchar(256) not null"`
	}
	type FilmGenres struct {
		FilmId  int64 `gorm:"column:film_id;primaryKey"`
		GenreId int64 `gorm:"column:genre_id;primaryKey"`
	}
	type FilmDirectors struct {
		FilmId     int64 `gorm:"column:film_id;primaryKey"`
		DirectorId int64 `gorm:"column:director_id;primaryKey"`
	}
	type Ratings struct {
		UserId    int64     `gorm:"column:user_id;primaryKey"`
		FilmId    int64     `gorm:"column:film_id;primaryKey;index:film_id"`
		Value     float64   `gorm:"column:value;not null"`
		Timestamp time.Time `gorm:"column:time_stamp;not null"`
	}
	type Friends struct {
		UserId   int64 `gorm:"column:user_id;primaryKey"`
		FriendId int64 `gorm:"column:friend_id;primaryKey"`
	}
	type Feed struct {
		EventId   int64     `gorm:"column:event_id;primaryKey;autoIncrement"`
		Timestamp time.Time `gorm:"column:time_stamp;not null"`
		UserId    int64     `gorm:"column:user_id;index:feed_user_id"`
		EventType string    `gorm:"column:event_type;type:varchar(16) not null"`
		Operation string    `gorm:"column:operation;type:varchar(16) not null"`
		EntityId  int64     `gorm:"column:entity_id;not null"`
	}
	type Reviews struct {
		ReviewId   int64  `gorm:"column:review_id;primaryKey;autoIncrement"`
		UserId     int64  `gorm:"column:user_id;not null"`
		FilmId     int64  `gorm:"column:film_id;not null;index:review_film_id"`
		Content    string `gorm:"column:content;type:text not null"`
		IsPositive bool   `gorm:"column:is_positive;not null"`
	}
	type ReviewVotes struct {
		ReviewId int64 `gorm:"column:review_id;primaryKey"`
		UserId   int64 `gorm:"column:user_id;primaryKey"`
		IsLike   bool  `gorm:"column:is_like;not null"`
	}
	tx := d.gormDB
	if d.driver == MySQL {
		tx = tx.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	if err := tx.AutoMigrate(Users{}, Films{}, Genres{}, Mpa{}, Directors{},
		FilmGenres{}, FilmDirectors{}, Ratings{}, Friends{}, Feed{}, Reviews{}, ReviewVotes{}); err != nil {
		return errors.Trace(err)
	}
	if d.driver == MySQL {
		// change settings
		if _, err := d.client.Exec("SET SESSION sql_mode=\"" +
			"ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO," +
			"NO_ENGINE_SUBSTITUTION\""); err != nil {
			return errors.Trace(err)
		}
		// disable lock
		if _, err := d.client.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ UNCOMMITTED"); err != nil {
			return errors.Trace(err)
		}
	}
	return d.seedDictionaries()
}

// seedDictionaries inserts the default MPA ratings and genres.
func (d *SQLDatabase) seedDictionaries() error {
	mpa := []Mpa{
		{MpaId: 1, Name: "G"},
		{MpaId: 2, Name: "PG"},
		{MpaId: 3, Name: "PG-13"},
		{MpaId: 4, Name: "R"},
		{MpaId: 5, Name: "NC-17"},
	}
	if err := d.gormDB.Table(d.MpaTable()).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&mpa).Error; err != nil {
		return errors.Trace(err)
	}
	genres := []Genre{
		{GenreId: 1, Name: "Comedy"},
		{GenreId: 2, Name: "Drama"},
		{GenreId: 3, Name: "Cartoon"},
		{GenreId: 4, Name: "Thriller"},
		{GenreId: 5, Name: "Documentary"},
		{GenreId: 6, Name: "Action"},
	}
	if err := d.gormDB.Table(d.GenresTable()).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&genres).Error; err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (d *SQLDatabase) Ping() error {
	return d.client.Ping()
}

// Close the database connection.
func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

func (d *SQLDatabase) Optimize() error {
	return nil
}

// Purge empties every table.
func (d *SQLDatabase) Purge() error {
	tables := []string{
		d.ReviewVotesTable(), d.ReviewsTable(), d.FeedTable(), d.FriendsTable(),
		d.RatingsTable(), d.FilmDirectorsTable(), d.FilmGenresTable(),
		d.FilmsTable(), d.UsersTable(), d.DirectorsTable(),
	}
	for _, table := range tables {
		if err := d.gormDB.Exec("DELETE FROM " + table).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return d.seedDictionaries()
}

/* Users */

func (d *SQLDatabase) InsertUser(ctx context.Context, user User) (int64, error) {
	row := map[string]any{
		"email":    user.Email,
		"login":    user.Login,
		"name":     user.Name,
		"birthday": user.Birthday,
	}
	if user.UserId > 0 {
		row["user_id"] = user.UserId
	}
	result := d.gormDB.WithContext(ctx).Table(d.UsersTable()).Create(row)
	if result.Error != nil {
		return 0, errors.Trace(result.Error)
	}
	if user.UserId > 0 {
		return user.UserId, nil
	}
	var userId int64
	if err := d.gormDB.WithContext(ctx).Table(d.UsersTable()).
		Select("user_id").Where("email = ?", user.Email).
		Row().Scan(&userId); err != nil {
		return 0, errors.Trace(err)
	}
	return userId, nil
}

func (d *SQLDatabase) GetUser(ctx context.Context, userId int64) (User, error) {
	var user User
	err := d.gormDB.WithContext(ctx).Table(d.UsersTable()).
		Select("user_id, email, login, name, birthday").
		Where("user_id = ?", userId).Take(&user).Error
	if err == gorm.ErrRecordNotFound {
		return User{}, errors.Annotate(ErrUserNotExist, strconv.FormatInt(userId, 10))
	} else if err != nil {
		return User{}, errors.Trace(err)
	}
	return user, nil
}

func (d *SQLDatabase) ModifyUser(ctx context.Context, userId int64, patch UserPatch) error {
	updates := make(map[string]any)
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}
	if patch.Login != nil {
		updates["login"] = *patch.Login
	}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Birthday != nil {
		updates["birthday"] = *patch.Birthday
	}
	if len(updates) == 0 {
		log.Logger().Debug("empty user patch")
		return nil
	}
	return errors.Trace(d.gormDB.WithContext(ctx).Table(d.UsersTable()).
		Where("user_id = ?", userId).Updates(updates).Error)
}

func (d *SQLDatabase) DeleteUser(ctx context.Context, userId int64) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM "+d.UsersTable()+" WHERE user_id = ?", userId).Error; err != nil {
			return errors.Trace(err)
		}
		if err := tx.Exec("DELETE FROM "+d.RatingsTable()+" WHERE user_id = ?", userId).Error; err != nil {
			return errors.Trace(err)
		}
		if err := tx.Exec("DELETE FROM "+d.FriendsTable()+" WHERE user_id = ? OR friend_id = ?", userId, userId).Error; err != nil {
			return errors.Trace(err)
		}
		if err := tx.Exec("DELETE FROM "+d.FeedTable()+" WHERE user_id = ?", userId).Error; err != nil {
			return errors.Trace(err)
		}
		if err := tx.Exec("DELETE FROM "+d.ReviewVotesTable()+" WHERE user_id = ?", userId).Error; err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Exec("DELETE FROM "+d.ReviewsTable()+" WHERE user_id = ?", userId).Error)
	}))
}

func (d *SQLDatabase) GetUsers(ctx context.Context, cursor string, n int) (string, []User, error) {
	var cursorId int64
	if cursor != "" {
		var err error
		if cursorId, err = strconv.ParseInt(cursor, 10, 64); err != nil {
			return "", nil, errors.Trace(err)
		}
	}
	users := make([]User, 0, max(n, 0))
	err := d.gormDB.WithContext(ctx).Table(d.UsersTable()).
		Select("user_id, email, login, name, birthday").
		Where("user_id >= ?", cursorId).
		Order("user_id").Limit(n + 1).Find(&users).Error
	if err != nil {
		return "", nil, errors.Trace(err)
	}
	if len(users) > 0 && len(users) == n+1 {
		return strconv.FormatInt(users[len(users)-1].UserId, 10), users[:len(users)-1], nil
	}
	return "", users, nil
}

/* Films */

func (d *SQLDatabase) InsertFilm(ctx context.Context, film Film) (int64, error) {
	// validate associations
	if _, err := d.GetMpa(ctx, film.MpaId); err != nil {
		return 0, errors.Trace(err)
	}
	for _, genre := range film.Genres {
		if _, err := d.GetGenre(ctx, genre.GenreId); err != nil {
			return 0, errors.Trace(err)
		}
	}
	var filmId int64
	err := d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := map[string]any{
			"name":         film.Name,
			"description":  film.Description,
			"release_date": film.ReleaseDate,
			"duration":     film.Duration,
			"mpa_id":       film.MpaId,
		}
		if film.FilmId > 0 {
			row["film_id"] = film.FilmId
		}
		if err := tx.Table(d.FilmsTable()).Create(row).Error; err != nil {
			return errors.Trace(err)
		}
		if film.FilmId > 0 {
			filmId = film.FilmId
		} else {
			if err := tx.Table(d.FilmsTable()).Select("max(film_id)").Row().Scan(&filmId); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(d.replaceFilmAssociations(tx, filmId, film.Genres, film.Directors))
	})
	if err != nil {
		return 0, errors.Trace(err)
	}
	return filmId, nil
}

func (d *SQLDatabase) replaceFilmAssociations(tx *gorm.DB, filmId int64, genres []Genre, directors []Director) error {
	if err := tx.Exec("DELETE FROM "+d.FilmGenresTable()+" WHERE film_id = ?", filmId).Error; err != nil {
		return errors.Trace(err)
	}
	if err := tx.Exec("DELETE FROM "+d.FilmDirectorsTable()+" WHERE film_id = ?", filmId).Error; err != nil {
		return errors.Trace(err)
	}
	// duplicate associations in the request collapse to one row
	for _, genreId := range mapset.NewSet(lo.Map(genres, func(g Genre, _ int) int64 { return g.GenreId })...).ToSlice() {
		if err := tx.Table(d.FilmGenresTable()).Create(map[string]any{
			"film_id": filmId, "genre_id": genreId,
		}).Error; err != nil {
			return errors.Trace(err)
		}
	}
	for _, directorId := range mapset.NewSet(lo.Map(directors, func(dir Director, _ int) int64 { return dir.DirectorId })...).ToSlice() {
		if err := tx.Table(d.FilmDirectorsTable()).Create(map[string]any{
			"film_id": filmId, "director_id": directorId,
		}).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (d *SQLDatabase) GetFilm(ctx context.Context, filmId int64) (Film, error) {
	var film Film
	err := d.gormDB.WithContext(ctx).Table(d.FilmsTable()).
		Select("film_id, name, description, release_date, duration, mpa_id").
		Where("film_id = ?", filmId).Take(&film).Error
	if err == gorm.ErrRecordNotFound {
		return Film{}, errors.Annotate(ErrFilmNotExist, strconv.FormatInt(filmId, 10))
	} else if err != nil {
		return Film{}, errors.Trace(err)
	}
	films, err := d.loadFilmAssociations(ctx, []Film{film})
	if err != nil {
		return Film{}, errors.Trace(err)
	}
	return films[0], nil
}

func (d *SQLDatabase) loadFilmAssociations(ctx context.Context, films []Film) ([]Film, error) {
	if len(films) == 0 {
		return films, nil
	}
	filmIds := lo.Map(films, func(f Film, _ int) int64 { return f.FilmId })
	var genreRows []struct {
		FilmId  int64
		GenreId int64
		Name    string
	}
	err := d.gormDB.WithContext(ctx).Table(d.FilmGenresTable()+" AS fg").
		Select("fg.film_id, g.genre_id, g.name").
		Joins("JOIN "+d.GenresTable()+" AS g ON g.genre_id = fg.genre_id").
		Where("fg.film_id IN ?", filmIds).
		Order("fg.film_id, g.genre_id").Find(&genreRows).Error
	if err != nil {
		return nil, errors.Trace(err)
	}
	var directorRows []struct {
		FilmId     int64
		DirectorId int64
		Name       string
	}
	err = d.gormDB.WithContext(ctx).Table(d.FilmDirectorsTable()+" AS fd").
		Select("fd.film_id, dir.director_id, dir.name").
		Joins("JOIN "+d.DirectorsTable()+" AS dir ON dir.director_id = fd.director_id").
		Where("fd.film_id IN ?", filmIds).
		Order("fd.film_id, dir.director_id").Find(&directorRows).Error
	if err != nil {
		return nil, errors.Trace(err)
	}
	genres := make(map[int64][]Genre)
	for _, row := range genreRows {
		genres[row.FilmId] = append(genres[row.FilmId], Genre{GenreId: row.GenreId, Name: row.Name})
	}
	directors := make(map[int64][]Director)
	for _, row := range directorRows {
		directors[row.FilmId] = append(directors[row.FilmId], Director{DirectorId: row.DirectorId, Name: row.Name})
	}
	for i := range films {
		films[i].Genres = genres[films[i].FilmId]
		films[i].Directors = directors[films[i].FilmId]
	}
	return films, nil
}

func (d *SQLDatabase) ModifyFilm(ctx context.Context, filmId int64, patch FilmPatch) error {
	updates := make(map[string]any)
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.ReleaseDate != nil {
		updates["release_date"] = *patch.ReleaseDate
	}
	if patch.Duration != nil {
		updates["duration"] = *patch.Duration
	}
	if patch.MpaId != nil {
		if _, err := d.GetMpa(ctx, *patch.MpaId); err != nil {
			return errors.Trace(err)
		}
		updates["mpa_id"] = *patch.MpaId
	}
	if len(updates) == 0 && patch.Genres == nil && patch.Directors == nil {
		log.Logger().Debug("empty film patch")
		return nil
	}
	return errors.Trace(d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Table(d.FilmsTable()).Where("film_id = ?", filmId).Updates(updates).Error; err != nil {
				return errors.Trace(err)
			}
		}
		if patch.Genres != nil || patch.Directors != nil {
			current, err := d.GetFilm(ctx, filmId)
			if err != nil {
				return errors.Trace(err)
			}
			genres := current.Genres
			if patch.Genres != nil {
				genres = patch.Genres
			}
			directors := current.Directors
			if patch.Directors != nil {
				directors = patch.Directors
			}
			return errors.Trace(d.replaceFilmAssociations(tx, filmId, genres, directors))
		}
		return nil
	}))
}

func (d *SQLDatabase) DeleteFilm(ctx context.Context, filmId int64) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{d.FilmsTable(), d.FilmGenresTable(), d.FilmDirectorsTable(), d.RatingsTable(), d.ReviewsTable()} {
			if err := tx.Exec("DELETE FROM "+table+" WHERE film_id = ?", filmId).Error; err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}))
}

func (d *SQLDatabase) GetFilms(ctx context.Context, cursor string, n int) (string, []Film, error) {
	var cursorId int64
	if cursor != "" {
		var err error
		if cursorId, err = strconv.ParseInt(cursor, 10, 64); err != nil {
			return "", nil, errors.Trace(err)
		}
	}
	films := make([]Film, 0, max(n, 0))
	err := d.gormDB.WithContext(ctx).Table(d.FilmsTable()).
		Select("film_id, name, description, release_date, duration, mpa_id").
		Where("film_id >= ?", cursorId).
		Order("film_id").Limit(n + 1).Find(&films).Error
	if err != nil {
		return "", nil, errors.Trace(err)
	}
	var nextCursor string
	if len(films) > 0 && len(films) == n+1 {
		nextCursor = strconv.FormatInt(films[len(films)-1].FilmId, 10)
		films = films[:len(films)-1]
	}
	films, err = d.loadFilmAssociations(ctx, films)
	if err != nil {
		return "", nil, errors.Trace(err)
	}
	return nextCursor, films, nil
}

func (d *SQLDatabase) BatchGetFilms(ctx context.Context, filmIds []int64) ([]Film, error) {
	if len(filmIds) == 0 {
		return nil, nil
	}
	films := make([]Film, 0, len(filmIds))
	err := d.gormDB.WithContext(ctx).Table(d.FilmsTable()).
		Select("film_id, name, description, release_date, duration, mpa_id").
		Where("film_id IN ?", filmIds).Find(&films).Error
	if err != nil {
		return nil, errors.Trace(err)
	}
	return d.loadFilmAssociations(ctx, films)
}

/* Dictionaries */

func (d *SQLDatabase) GetGenres(ctx context.Context) ([]Genre, error) {
	var genres []Genre
	err := d.gormDB.WithContext(ctx).Table(d.GenresTable()).
		Select("genre_id, name").Order("genre_id").Find(&genres).Error
	return genres, errors.Trace(err)
}

func (d *SQLDatabase) GetGenre(ctx context.Context, genreId int64) (Genre, error) {
	var genre Genre
	err := d.gormDB.WithContext(ctx).Table(d.GenresTable()).
		Select("genre_id, name").Where("genre_id = ?", genreId).Take(&genre).Error
	if err == gorm.ErrRecordNotFound {
		return Genre{}, errors.Annotate(ErrGenreNotExist, strconv.FormatInt(genreId, 10))
	}
	return genre, errors.Trace(err)
}

func (d *SQLDatabase) GetMpas(ctx context.Context) ([]Mpa, error) {
	var mpa []Mpa
	err := d.gormDB.WithContext(ctx).Table(d.MpaTable()).
		Select("mpa_id, name").Order("mpa_id").Find(&mpa).Error
	return mpa, errors.Trace(err)
}

func (d *SQLDatabase) GetMpa(ctx context.Context, mpaId int64) (Mpa, error) {
	var mpa Mpa
	err := d.gormDB.WithContext(ctx).Table(d.MpaTable()).
		Select("mpa_id, name").Where("mpa_id = ?", mpaId).Take(&mpa).Error
	if err == gorm.ErrRecordNotFound {
		return Mpa{}, errors.Annotate(ErrMpaNotExist, strconv.FormatInt(mpaId, 10))
	}
	return mpa, errors.Trace(err)
}

func (d *SQLDatabase) InsertDirector(ctx context.Context, director Director) (int64, error) {
	row := map[string]any{"name": director.Name}
	if director.DirectorId > 0 {
		row["director_id"] = director.DirectorId
	}
	if err := d.gormDB.WithContext(ctx).Table(d.DirectorsTable()).Create(row).Error; err != nil {
		return 0, errors.Trace(err)
	}
	if director.DirectorId > 0 {
		return director.DirectorId, nil
	}
	var directorId int64
	if err := d.gormDB.WithContext(ctx).Table(d.DirectorsTable()).
		Select("max(director_id)").Row().Scan(&directorId); err != nil {
		return 0, errors.Trace(err)
	}
	return directorId, nil
}

func (d *SQLDatabase) GetDirector(ctx context.Context, directorId int64) (Director, error) {
	var director Director
	err := d.gormDB.WithContext(ctx).Table(d.DirectorsTable()).
		Select("director_id, name").Where("director_id = ?", directorId).Take(&director).Error
	if err == gorm.ErrRecordNotFound {
		return Director{}, errors.Annotate(ErrDirectorNotExist, strconv.FormatInt(directorId, 10))
	}
	return director, errors.Trace(err)
}

func (d *SQLDatabase) GetDirectors(ctx context.Context) ([]Director, error) {
	var directors []Director
	err := d.gormDB.WithContext(ctx).Table(d.DirectorsTable()).
		Select("director_id, name").Order("director_id").Find(&directors).Error
	return directors, errors.Trace(err)
}

func (d *SQLDatabase) DeleteDirector(ctx context.Context, directorId int64) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM "+d.DirectorsTable()+" WHERE director_id = ?", directorId).Error; err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Exec("DELETE FROM "+d.FilmDirectorsTable()+" WHERE director_id = ?", directorId).Error)
	}))
}

/* Ratings */

func (d *SQLDatabase) InsertRating(ctx context.Context, rating Rating) (*float64, error) {
	var previous *float64
	err := d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var value float64
		err := tx.Table(d.RatingsTable()).Select("value").
			Where("user_id = ? AND film_id = ?", rating.UserId, rating.FilmId).
			Row().Scan(&value)
		if err == nil {
			previous = &value
		} else if err != sql.ErrNoRows {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Table(d.RatingsTable()).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "film_id"}},
			DoUpdates: clause.Assignments(map[string]any{"value": rating.Value, "time_stamp": rating.Timestamp}),
		}).Create(map[string]any{
			"user_id":    rating.UserId,
			"film_id":    rating.FilmId,
			"value":      rating.Value,
			"time_stamp": rating.Timestamp,
		}).Error)
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return previous, nil
}

func (d *SQLDatabase) DeleteRating(ctx context.Context, userId, filmId int64) (float64, error) {
	var value float64
	err := d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Table(d.RatingsTable()).Select("value").
			Where("user_id = ? AND film_id = ?", userId, filmId).
			Row().Scan(&value)
		if err == sql.ErrNoRows {
			return errors.Annotatef(ErrRatingNotExist, "user %d film %d", userId, filmId)
		} else if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Exec("DELETE FROM "+d.RatingsTable()+" WHERE user_id = ? AND film_id = ?", userId, filmId).Error)
	})
	if err != nil {
		return 0, errors.Trace(err)
	}
	return value, nil
}

func (d *SQLDatabase) GetRating(ctx context.Context, userId, filmId int64) (Rating, error) {
	var rating Rating
	err := d.gormDB.WithContext(ctx).Table(d.RatingsTable()).
		Select("user_id, film_id, value, time_stamp AS timestamp").
		Where("user_id = ? AND film_id = ?", userId, filmId).Take(&rating).Error
	if err == gorm.ErrRecordNotFound {
		return Rating{}, errors.Annotatef(ErrRatingNotExist, "user %d film %d", userId, filmId)
	}
	return rating, errors.Trace(err)
}

func (d *SQLDatabase) GetUserRatings(ctx context.Context, userId int64) ([]Rating, error) {
	var ratings []Rating
	err := d.gormDB.WithContext(ctx).Table(d.RatingsTable()).
		Select("user_id, film_id, value, time_stamp AS timestamp").
		Where("user_id = ?", userId).Order("film_id").Find(&ratings).Error
	return ratings, errors.Trace(err)
}

func (d *SQLDatabase) GetFilmRatings(ctx context.Context, filmId int64) ([]Rating, error) {
	var ratings []Rating
	err := d.gormDB.WithContext(ctx).Table(d.RatingsTable()).
		Select("user_id, film_id, value, time_stamp AS timestamp").
		Where("film_id = ?", filmId).Order("user_id").Find(&ratings).Error
	return ratings, errors.Trace(err)
}

func (d *SQLDatabase) GetRatings(ctx context.Context, cursor string, n int) (string, []Rating, error) {
	var cursorUser, cursorFilm int64
	if cursor != "" {
		user, film, found := strings.Cut(cursor, ":")
		if !found {
			return "", nil, errors.NotValidf("cursor %q", cursor)
		}
		var err error
		if cursorUser, err = strconv.ParseInt(user, 10, 64); err != nil {
			return "", nil, errors.Trace(err)
		}
		if cursorFilm, err = strconv.ParseInt(film, 10, 64); err != nil {
			return "", nil, errors.Trace(err)
		}
	}
	ratings := make([]Rating, 0, max(n, 0))
	err := d.gormDB.WithContext(ctx).Table(d.RatingsTable()).
		Select("user_id, film_id, value, time_stamp AS timestamp").
		Where("user_id > ? OR (user_id = ? AND film_id >= ?)", cursorUser, cursorUser, cursorFilm).
		Order("user_id, film_id").Limit(n + 1).Find(&ratings).Error
	if err != nil {
		return "", nil, errors.Trace(err)
	}
	if len(ratings) > 0 && len(ratings) == n+1 {
		last := ratings[len(ratings)-1]
		return strconv.FormatInt(last.UserId, 10) + ":" + strconv.FormatInt(last.FilmId, 10), ratings[:len(ratings)-1], nil
	}
	return "", ratings, nil
}

func (d *SQLDatabase) CountRatings(ctx context.Context) (int, error) {
	var count int64
	err := d.gormDB.WithContext(ctx).Table(d.RatingsTable()).Count(&count).Error
	return int(count), errors.Trace(err)
}

/* Friends */

func (d *SQLDatabase) InsertFriend(ctx context.Context, userId, friendId int64) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Table(d.FriendsTable()).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(map[string]any{"user_id": userId, "friend_id": friendId}).Error)
}

func (d *SQLDatabase) DeleteFriend(ctx context.Context, userId, friendId int64) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Exec("DELETE FROM "+d.FriendsTable()+" WHERE user_id = ? AND friend_id = ?", userId, friendId).Error)
}

func (d *SQLDatabase) GetFriends(ctx context.Context, userId int64) ([]User, error) {
	var users []User
	err := d.gormDB.WithContext(ctx).Table(d.FriendsTable()+" AS f").
		Select("u.user_id, u.email, u.login, u.name, u.birthday").
		Joins("JOIN "+d.UsersTable()+" AS u ON u.user_id = f.friend_id").
		Where("f.user_id = ?", userId).
		Order("u.user_id").Find(&users).Error
	return users, errors.Trace(err)
}

func (d *SQLDatabase) GetCommonFriends(ctx context.Context, userId, otherId int64) ([]User, error) {
	mine, err := d.GetFriends(ctx, userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	theirs, err := d.GetFriends(ctx, otherId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	theirIds := mapset.NewSet(lo.Map(theirs, func(u User, _ int) int64 { return u.UserId })...)
	return lo.Filter(mine, func(u User, _ int) bool {
		return theirIds.Contains(u.UserId)
	}), nil
}

/* Feed */

func (d *SQLDatabase) InsertFeedEvent(ctx context.Context, event FeedEvent) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Table(d.FeedTable()).Create(map[string]any{
		"time_stamp": event.Timestamp,
		"user_id":    event.UserId,
		"event_type": event.EventType,
		"operation":  event.Operation,
		"entity_id":  event.EntityId,
	}).Error)
}

// GetFeed returns the latest events produced by the user's friends.
func (d *SQLDatabase) GetFeed(ctx context.Context, userId int64, n int) ([]FeedEvent, error) {
	var events []FeedEvent
	tx := d.gormDB.WithContext(ctx).Table(d.FeedTable()+" AS e").
		Select("e.event_id, e.time_stamp AS timestamp, e.user_id, e.event_type, e.operation, e.entity_id").
		Joins("JOIN "+d.FriendsTable()+" AS f ON f.friend_id = e.user_id").
		Where("f.user_id = ?", userId).Order("e.event_id DESC")
	if n > 0 {
		tx = tx.Limit(n)
	}
	err := tx.Find(&events).Error
	return events, errors.Trace(err)
}

/* Reviews */

func (d *SQLDatabase) InsertReview(ctx context.Context, review Review) (int64, error) {
	if err := d.gormDB.WithContext(ctx).Table(d.ReviewsTable()).Create(map[string]any{
		"user_id":     review.UserId,
		"film_id":     review.FilmId,
		"content":     review.Content,
		"is_positive": review.IsPositive,
	}).Error; err != nil {
		return 0, errors.Trace(err)
	}
	var reviewId int64
	if err := d.gormDB.WithContext(ctx).Table(d.ReviewsTable()).
		Select("max(review_id)").Row().Scan(&reviewId); err != nil {
		return 0, errors.Trace(err)
	}
	return reviewId, nil
}

func (d *SQLDatabase) UpdateReview(ctx context.Context, review Review) error {
	result := d.gormDB.WithContext(ctx).Table(d.ReviewsTable()).
		Where("review_id = ?", review.ReviewId).
		Updates(map[string]any{"content": review.Content, "is_positive": review.IsPositive})
	if result.Error != nil {
		return errors.Trace(result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Annotate(ErrReviewNotExist, strconv.FormatInt(review.ReviewId, 10))
	}
	return nil
}

func (d *SQLDatabase) DeleteReview(ctx context.Context, reviewId int64) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM "+d.ReviewsTable()+" WHERE review_id = ?", reviewId).Error; err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Exec("DELETE FROM "+d.ReviewVotesTable()+" WHERE review_id = ?", reviewId).Error)
	}))
}

// Reviews without votes join a single NULL vote row, which must count as
// zero rather than falling into the dislike branch.
const usefulExpr = "COALESCE(SUM(CASE WHEN v.is_like IS NULL THEN 0 WHEN v.is_like THEN 1 ELSE -1 END), 0)"

func (d *SQLDatabase) GetReview(ctx context.Context, reviewId int64) (Review, error) {
	var review Review
	err := d.gormDB.WithContext(ctx).Table(d.ReviewsTable()+" AS r").
		Select("r.review_id, r.user_id, r.film_id, r.content, r.is_positive, "+usefulExpr+" AS useful").
		Joins("LEFT JOIN "+d.ReviewVotesTable()+" AS v ON v.review_id = r.review_id").
		Where("r.review_id = ?", reviewId).
		Group("r.review_id, r.user_id, r.film_id, r.content, r.is_positive").
		Take(&review).Error
	if err == gorm.ErrRecordNotFound {
		return Review{}, errors.Annotate(ErrReviewNotExist, strconv.FormatInt(reviewId, 10))
	}
	return review, errors.Trace(err)
}

func (d *SQLDatabase) GetReviews(ctx context.Context, filmId *int64, n int) ([]Review, error) {
	tx := d.gormDB.WithContext(ctx).Table(d.ReviewsTable()+" AS r").
		Select("r.review_id, r.user_id, r.film_id, r.content, r.is_positive, "+usefulExpr+" AS useful").
		Joins("LEFT JOIN " + d.ReviewVotesTable() + " AS v ON v.review_id = r.review_id").
		Group("r.review_id, r.user_id, r.film_id, r.content, r.is_positive").
		Order("useful DESC, r.review_id")
	if filmId != nil {
		tx = tx.Where("r.film_id = ?", *filmId)
	}
	if n > 0 {
		tx = tx.Limit(n)
	}
	var reviews []Review
	err := tx.Find(&reviews).Error
	return reviews, errors.Trace(err)
}

func (d *SQLDatabase) InsertReviewVote(ctx context.Context, reviewId, userId int64, like bool) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Table(d.ReviewVotesTable()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "review_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"is_like": like}),
		}).
		Create(map[string]any{"review_id": reviewId, "user_id": userId, "is_like": like}).Error)
}

func (d *SQLDatabase) DeleteReviewVote(ctx context.Context, reviewId, userId int64) error {
	return errors.Trace(d.gormDB.WithContext(ctx).Exec("DELETE FROM "+d.ReviewVotesTable()+" WHERE review_id = ? AND user_id = ?", reviewId, userId).Error)
}
