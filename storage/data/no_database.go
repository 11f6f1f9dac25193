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

import "context"

// NoDatabase means no database used for the data store.
type NoDatabase struct{}

func (NoDatabase) Init() error     { return ErrNoDatabase }
func (NoDatabase) Ping() error     { return ErrNoDatabase }
func (NoDatabase) Close() error    { return ErrNoDatabase }
func (NoDatabase) Optimize() error { return ErrNoDatabase }
func (NoDatabase) Purge() error    { return ErrNoDatabase }

func (NoDatabase) InsertUser(context.Context, User) (int64, error) { return 0, ErrNoDatabase }
func (NoDatabase) GetUser(context.Context, int64) (User, error)    { return User{}, ErrNoDatabase }
func (NoDatabase) ModifyUser(context.Context, int64, UserPatch) error {
	return ErrNoDatabase
}
func (NoDatabase) DeleteUser(context.Context, int64) error { return ErrNoDatabase }
func (NoDatabase) GetUsers(context.Context, string, int) (string, []User, error) {
	return "", nil, ErrNoDatabase
}

func (NoDatabase) InsertFilm(context.Context, Film) (int64, error) { return 0, ErrNoDatabase }
func (NoDatabase) GetFilm(context.Context, int64) (Film, error)    { return Film{}, ErrNoDatabase }
func (NoDatabase) ModifyFilm(context.Context, int64, FilmPatch) error {
	return ErrNoDatabase
}
func (NoDatabase) DeleteFilm(context.Context, int64) error { return ErrNoDatabase }
func (NoDatabase) GetFilms(context.Context, string, int) (string, []Film, error) {
	return "", nil, ErrNoDatabase
}
func (NoDatabase) BatchGetFilms(context.Context, []int64) ([]Film, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetGenres(context.Context) ([]Genre, error)      { return nil, ErrNoDatabase }
func (NoDatabase) GetGenre(context.Context, int64) (Genre, error)  { return Genre{}, ErrNoDatabase }
func (NoDatabase) GetMpas(context.Context) ([]Mpa, error)          { return nil, ErrNoDatabase }
func (NoDatabase) GetMpa(context.Context, int64) (Mpa, error)      { return Mpa{}, ErrNoDatabase }

func (NoDatabase) InsertDirector(context.Context, Director) (int64, error) {
	return 0, ErrNoDatabase
}
func (NoDatabase) GetDirector(context.Context, int64) (Director, error) {
	return Director{}, ErrNoDatabase
}
func (NoDatabase) GetDirectors(context.Context) ([]Director, error) { return nil, ErrNoDatabase }
func (NoDatabase) DeleteDirector(context.Context, int64) error      { return ErrNoDatabase }

func (NoDatabase) InsertRating(context.Context, Rating) (*float64, error) {
	return nil, ErrNoDatabase
}
func (NoDatabase) DeleteRating(context.Context, int64, int64) (float64, error) {
	return 0, ErrNoDatabase
}
func (NoDatabase) GetRating(context.Context, int64, int64) (Rating, error) {
	return Rating{}, ErrNoDatabase
}
func (NoDatabase) GetUserRatings(context.Context, int64) ([]Rating, error) {
	return nil, ErrNoDatabase
}
func (NoDatabase) GetFilmRatings(context.Context, int64) ([]Rating, error) {
	return nil, ErrNoDatabase
}
func (NoDatabase) GetRatings(context.Context, string, int) (string, []Rating, error) {
	return "", nil, ErrNoDatabase
}
func (NoDatabase) CountRatings(context.Context) (int, error) { return 0, ErrNoDatabase }

func (NoDatabase) InsertFriend(context.Context, int64, int64) error { return ErrNoDatabase }
func (NoDatabase) DeleteFriend(context.Context, int64, int64) error { return ErrNoDatabase }
func (NoDatabase) GetFriends(context.Context, int64) ([]User, error) {
	return nil, ErrNoDatabase
}
func (NoDatabase) GetCommonFriends(context.Context, int64, int64) ([]User, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) InsertFeedEvent(context.Context, FeedEvent) error { return ErrNoDatabase }
func (NoDatabase) GetFeed(context.Context, int64, int) ([]FeedEvent, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) InsertReview(context.Context, Review) (int64, error) { return 0, ErrNoDatabase }
func (NoDatabase) UpdateReview(context.Context, Review) error          { return ErrNoDatabase }
func (NoDatabase) DeleteReview(context.Context, int64) error           { return ErrNoDatabase }
func (NoDatabase) GetReview(context.Context, int64) (Review, error) {
	return Review{}, ErrNoDatabase
}
func (NoDatabase) GetReviews(context.Context, *int64, int) ([]Review, error) {
	return nil, ErrNoDatabase
}
func (NoDatabase) InsertReviewVote(context.Context, int64, int64, bool) error {
	return ErrNoDatabase
}
func (NoDatabase) DeleteReviewVote(context.Context, int64, int64) error { return ErrNoDatabase }
