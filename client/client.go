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

// Package client is a Go client for the cinematch REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cinematch-io/cinematch/storage/data"
)

// CinematchClient talks to a cinematch server.
type CinematchClient struct {
	entryPoint string
	apiKey     string
	httpClient http.Client
}

func NewCinematchClient(entryPoint, apiKey string) *CinematchClient {
	return &CinematchClient{
		entryPoint: entryPoint,
		apiKey:     apiKey,
	}
}

func request[Response, Body any](ctx context.Context, c *CinematchClient, method, url string, body Body) (result Response, err error) {
	bodyByte, err := json.Marshal(body)
	if err != nil {
		return result, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyByte))
	if err != nil {
		return result, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, err
	}
	if resp.StatusCode != http.StatusOK {
		return result, ErrorMessage(buf)
	}
	if err = json.Unmarshal(buf, &result); err != nil {
		return result, err
	}
	return result, nil
}

/* Users */

func (c *CinematchClient) InsertUser(ctx context.Context, user data.User) (Identified, error) {
	return request[Identified](ctx, c, http.MethodPost, c.entryPoint+"/api/user", user)
}

func (c *CinematchClient) GetUser(ctx context.Context, userId int64) (data.User, error) {
	return request[data.User, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/user/%d", c.entryPoint, userId), nil)
}

func (c *CinematchClient) UpdateUser(ctx context.Context, userId int64, patch data.UserPatch) (Success, error) {
	return request[Success](ctx, c, http.MethodPatch, fmt.Sprintf("%s/api/user/%d", c.entryPoint, userId), patch)
}

func (c *CinematchClient) DeleteUser(ctx context.Context, userId int64) (Success, error) {
	return request[Success, any](ctx, c, http.MethodDelete, fmt.Sprintf("%s/api/user/%d", c.entryPoint, userId), nil)
}

func (c *CinematchClient) GetUsers(ctx context.Context, cursor string, n int) (UserIterator, error) {
	return request[UserIterator, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/users?cursor=%s&n=%d", c.entryPoint, cursor, n), nil)
}

/* Friends */

func (c *CinematchClient) AddFriend(ctx context.Context, userId, friendId int64) (Success, error) {
	return request[Success, any](ctx, c, http.MethodPut, fmt.Sprintf("%s/api/user/%d/friend/%d", c.entryPoint, userId, friendId), nil)
}

func (c *CinematchClient) RemoveFriend(ctx context.Context, userId, friendId int64) (Success, error) {
	return request[Success, any](ctx, c, http.MethodDelete, fmt.Sprintf("%s/api/user/%d/friend/%d", c.entryPoint, userId, friendId), nil)
}

func (c *CinematchClient) GetFriends(ctx context.Context, userId int64) ([]data.User, error) {
	return request[[]data.User, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/user/%d/friends", c.entryPoint, userId), nil)
}

func (c *CinematchClient) GetCommonFriends(ctx context.Context, userId, otherId int64) ([]data.User, error) {
	return request[[]data.User, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/user/%d/friends/common/%d", c.entryPoint, userId, otherId), nil)
}

/* Films */

func (c *CinematchClient) InsertFilm(ctx context.Context, film data.Film) (Identified, error) {
	return request[Identified](ctx, c, http.MethodPost, c.entryPoint+"/api/film", film)
}

func (c *CinematchClient) GetFilm(ctx context.Context, filmId int64) (data.Film, error) {
	return request[data.Film, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/film/%d", c.entryPoint, filmId), nil)
}

func (c *CinematchClient) UpdateFilm(ctx context.Context, filmId int64, patch data.FilmPatch) (Success, error) {
	return request[Success](ctx, c, http.MethodPatch, fmt.Sprintf("%s/api/film/%d", c.entryPoint, filmId), patch)
}

func (c *CinematchClient) DeleteFilm(ctx context.Context, filmId int64) (Success, error) {
	return request[Success, any](ctx, c, http.MethodDelete, fmt.Sprintf("%s/api/film/%d", c.entryPoint, filmId), nil)
}

func (c *CinematchClient) GetFilms(ctx context.Context, cursor string, n int) (FilmIterator, error) {
	return request[FilmIterator, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/films?cursor=%s&n=%d", c.entryPoint, cursor, n), nil)
}

func (c *CinematchClient) GetPopularFilms(ctx context.Context, n int) ([]data.Film, error) {
	return request[[]data.Film, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/films/popular?n=%d", c.entryPoint, n), nil)
}

/* Dictionaries */

func (c *CinematchClient) GetGenres(ctx context.Context) ([]data.Genre, error) {
	return request[[]data.Genre, any](ctx, c, http.MethodGet, c.entryPoint+"/api/genres", nil)
}

func (c *CinematchClient) GetGenre(ctx context.Context, genreId int64) (data.Genre, error) {
	return request[data.Genre, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/genre/%d", c.entryPoint, genreId), nil)
}

func (c *CinematchClient) GetMpas(ctx context.Context) ([]data.Mpa, error) {
	return request[[]data.Mpa, any](ctx, c, http.MethodGet, c.entryPoint+"/api/mpa", nil)
}

func (c *CinematchClient) GetMpa(ctx context.Context, mpaId int64) (data.Mpa, error) {
	return request[data.Mpa, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/mpa/%d", c.entryPoint, mpaId), nil)
}

func (c *CinematchClient) InsertDirector(ctx context.Context, director data.Director) (Identified, error) {
	return request[Identified](ctx, c, http.MethodPost, c.entryPoint+"/api/director", director)
}

func (c *CinematchClient) GetDirector(ctx context.Context, directorId int64) (data.Director, error) {
	return request[data.Director, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/director/%d", c.entryPoint, directorId), nil)
}

func (c *CinematchClient) GetDirectors(ctx context.Context) ([]data.Director, error) {
	return request[[]data.Director, any](ctx, c, http.MethodGet, c.entryPoint+"/api/directors", nil)
}

func (c *CinematchClient) DeleteDirector(ctx context.Context, directorId int64) (Success, error) {
	return request[Success, any](ctx, c, http.MethodDelete, fmt.Sprintf("%s/api/director/%d", c.entryPoint, directorId), nil)
}

/* Ratings */

func (c *CinematchClient) InsertRating(ctx context.Context, userId, filmId int64, value float64) (Success, error) {
	return request[Success, any](ctx, c, http.MethodPut, fmt.Sprintf("%s/api/film/%d/rating/%d?value=%v", c.entryPoint, filmId, userId, value), nil)
}

func (c *CinematchClient) DeleteRating(ctx context.Context, userId, filmId int64) (Success, error) {
	return request[Success, any](ctx, c, http.MethodDelete, fmt.Sprintf("%s/api/film/%d/rating/%d", c.entryPoint, filmId, userId), nil)
}

func (c *CinematchClient) GetUserRatings(ctx context.Context, userId int64) ([]data.Rating, error) {
	return request[[]data.Rating, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/user/%d/ratings", c.entryPoint, userId), nil)
}

/* Recommendations */

func (c *CinematchClient) GetRecommend(ctx context.Context, userId int64, n int) ([]RecommendedFilm, error) {
	return request[[]RecommendedFilm, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/user/%d/recommendations?n=%d", c.entryPoint, userId, n), nil)
}

/* Reviews */

func (c *CinematchClient) InsertReview(ctx context.Context, review data.Review) (Identified, error) {
	return request[Identified](ctx, c, http.MethodPost, c.entryPoint+"/api/review", review)
}

func (c *CinematchClient) UpdateReview(ctx context.Context, review data.Review) (Success, error) {
	return request[Success](ctx, c, http.MethodPut, c.entryPoint+"/api/review", review)
}

func (c *CinematchClient) DeleteReview(ctx context.Context, reviewId int64) (Success, error) {
	return request[Success, any](ctx, c, http.MethodDelete, fmt.Sprintf("%s/api/review/%d", c.entryPoint, reviewId), nil)
}

func (c *CinematchClient) GetReview(ctx context.Context, reviewId int64) (data.Review, error) {
	return request[data.Review, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/review/%d", c.entryPoint, reviewId), nil)
}

// GetReviews lists reviews, most useful first. A zero filmId lists reviews of
// every film.
func (c *CinematchClient) GetReviews(ctx context.Context, filmId int64, n int) ([]data.Review, error) {
	url := fmt.Sprintf("%s/api/reviews?n=%d", c.entryPoint, n)
	if filmId > 0 {
		url += fmt.Sprintf("&film-id=%d", filmId)
	}
	return request[[]data.Review, any](ctx, c, http.MethodGet, url, nil)
}

func (c *CinematchClient) LikeReview(ctx context.Context, reviewId, userId int64) (Success, error) {
	return request[Success, any](ctx, c, http.MethodPut, fmt.Sprintf("%s/api/review/%d/like/%d", c.entryPoint, reviewId, userId), nil)
}

func (c *CinematchClient) DislikeReview(ctx context.Context, reviewId, userId int64) (Success, error) {
	return request[Success, any](ctx, c, http.MethodPut, fmt.Sprintf("%s/api/review/%d/dislike/%d", c.entryPoint, reviewId, userId), nil)
}

func (c *CinematchClient) RemoveReviewVote(ctx context.Context, reviewId, userId int64) (Success, error) {
	return request[Success, any](ctx, c, http.MethodDelete, fmt.Sprintf("%s/api/review/%d/like/%d", c.entryPoint, reviewId, userId), nil)
}

/* Feed */

func (c *CinematchClient) GetFeed(ctx context.Context, userId int64, n int) ([]data.FeedEvent, error) {
	return request[[]data.FeedEvent, any](ctx, c, http.MethodGet, fmt.Sprintf("%s/api/user/%d/feed?n=%d", c.entryPoint, userId, n), nil)
}

/* Health */

func (c *CinematchClient) HealthCheck(ctx context.Context) (HealthStatus, error) {
	return request[HealthStatus, any](ctx, c, http.MethodGet, c.entryPoint+"/api/health", nil)
}
