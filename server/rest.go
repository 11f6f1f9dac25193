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

package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cinematch-io/cinematch/base/log"
	"github.com/cinematch-io/cinematch/config"
	"github.com/cinematch-io/cinematch/logics"
	"github.com/cinematch-io/cinematch/storage/data"
)

// RestServer implements a REST-ful API server.
type RestServer struct {
	DataClient  data.Database
	Recommender *logics.Recommender
	Config      *config.Config
	HttpHost    string
	HttpPort    int
	WebService  *restful.WebService
}

// StartHttpServer starts the REST-ful API server.
func (s *RestServer) StartHttpServer() {
	// register restful APIs
	s.CreateWebService()
	restful.DefaultContainer.Add(s.WebService)
	// register openapi spec
	specConfig := restfulspec.Config{
		WebServices: restful.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}
	restful.DefaultContainer.Add(restfulspec.NewOpenAPIService(specConfig))
	// register prometheus
	http.Handle("/metrics", promhttp.Handler())

	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s:%d", s.HttpHost, s.HttpPort)))
	log.Logger().Fatal("failed to start http server",
		zap.Error(http.ListenAndServe(fmt.Sprintf("%s:%d", s.HttpHost, s.HttpPort), nil)))
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	responseTime := time.Since(start)
	RestAPIRequestTotal.WithLabelValues(req.Request.Method, strconv.Itoa(resp.StatusCode())).Inc()
	if req.Request.URL.Path != "/api/health" {
		log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
			zap.Int("status_code", resp.StatusCode()),
			zap.Duration("response_time", responseTime))
	}
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(LogFilter)

	/* Users */

	ws.Route(ws.POST("/user").To(s.insertUser).
		Doc("Insert a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads(data.User{}).
		Writes(Identified{}))
	ws.Route(ws.GET("/user/{user-id}").To(s.getUser).
		Doc("Get a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Writes(data.User{}))
	ws.Route(ws.PATCH("/user/{user-id}").To(s.modifyUser).
		Doc("Modify a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Reads(data.UserPatch{}).
		Writes(Success{}))
	ws.Route(ws.DELETE("/user/{user-id}").To(s.deleteUser).
		Doc("Delete a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Writes(Success{}))
	ws.Route(ws.GET("/users").To(s.getUsers).
		Doc("Get users.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.QueryParameter("n", "number of returned users").DataType("integer")).
		Param(ws.QueryParameter("cursor", "cursor for next page").DataType("string")).
		Writes(UserIterator{}))

	/* Friends */

	ws.Route(ws.PUT("/user/{user-id}/friend/{friend-id}").To(s.insertFriend).
		Doc("Add a friend to a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"friend"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.PathParameter("friend-id", "identifier of the friend").DataType("integer")).
		Writes(Success{}))
	ws.Route(ws.DELETE("/user/{user-id}/friend/{friend-id}").To(s.deleteFriend).
		Doc("Remove a friend from a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"friend"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.PathParameter("friend-id", "identifier of the friend").DataType("integer")).
		Writes(Success{}))
	ws.Route(ws.GET("/user/{user-id}/friends").To(s.getFriends).
		Doc("Get friends of a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"friend"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Writes([]data.User{}))
	ws.Route(ws.GET("/user/{user-id}/friends/common/{other-id}").To(s.getCommonFriends).
		Doc("Get friends shared by two users.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"friend"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.PathParameter("other-id", "identifier of the other user").DataType("integer")).
		Writes([]data.User{}))

	/* Films */

	ws.Route(ws.POST("/film").To(s.insertFilm).
		Doc("Insert a film.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"film"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads(data.Film{}).
		Writes(Identified{}))
	ws.Route(ws.GET("/film/{film-id}").To(s.getFilm).
		Doc("Get a film.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"film"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("film-id", "identifier of the film").DataType("integer")).
		Writes(data.Film{}))
	ws.Route(ws.PATCH("/film/{film-id}").To(s.modifyFilm).
		Doc("Modify a film.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"film"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("film-id", "identifier of the film").DataType("integer")).
		Reads(data.FilmPatch{}).
		Writes(Success{}))
	ws.Route(ws.DELETE("/film/{film-id}").To(s.deleteFilm).
		Doc("Delete a film.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"film"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("film-id", "identifier of the film").DataType("integer")).
		Writes(Success{}))
	ws.Route(ws.GET("/films").To(s.getFilms).
		Doc("Get films.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"film"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.QueryParameter("n", "number of returned films").DataType("integer")).
		Param(ws.QueryParameter("cursor", "cursor for next page").DataType("string")).
		Writes(FilmIterator{}))
	ws.Route(ws.GET("/films/popular").To(s.getPopular).
		Doc("Get popular films.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"film"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.QueryParameter("n", "number of returned films").DataType("integer")).
		Writes([]data.Film{}))

	/* Dictionaries */

	ws.Route(ws.GET("/genres").To(s.getGenres).
		Doc("Get all genres.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"dictionary"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Writes([]data.Genre{}))
	ws.Route(ws.GET("/genre/{genre-id}").To(s.getGenre).
		Doc("Get a genre.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"dictionary"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("genre-id", "identifier of the genre").DataType("integer")).
		Writes(data.Genre{}))
	ws.Route(ws.GET("/mpa").To(s.getMpas).
		Doc("Get all MPA ratings.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"dictionary"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Writes([]data.Mpa{}))
	ws.Route(ws.GET("/mpa/{mpa-id}").To(s.getMpa).
		Doc("Get a MPA rating.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"dictionary"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("mpa-id", "identifier of the MPA rating").DataType("integer")).
		Writes(data.Mpa{}))
	ws.Route(ws.POST("/director").To(s.insertDirector).
		Doc("Insert a director.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"dictionary"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads(data.Director{}).
		Writes(Identified{}))
	ws.Route(ws.GET("/director/{director-id}").To(s.getDirector).
		Doc("Get a director.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"dictionary"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("director-id", "identifier of the director").DataType("integer")).
		Writes(data.Director{}))
	ws.Route(ws.GET("/directors").To(s.getDirectors).
		Doc("Get all directors.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"dictionary"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Writes([]data.Director{}))
	ws.Route(ws.DELETE("/director/{director-id}").To(s.deleteDirector).
		Doc("Delete a director.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"dictionary"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("director-id", "identifier of the director").DataType("integer")).
		Writes(Success{}))

	/* Ratings */

	ws.Route(ws.PUT("/film/{film-id}/rating/{user-id}").To(s.insertRating).
		Doc("Rate a film. Rating again replaces the previous value.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"rating"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("film-id", "identifier of the film").DataType("integer")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("value", "rating value between 1 and 10").DataType("number")).
		Writes(Success{}))
	ws.Route(ws.DELETE("/film/{film-id}/rating/{user-id}").To(s.deleteRating).
		Doc("Remove a user's rating of a film.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"rating"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("film-id", "identifier of the film").DataType("integer")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Writes(Success{}))
	ws.Route(ws.GET("/user/{user-id}/ratings").To(s.getUserRatings).
		Doc("Get all ratings of a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"rating"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Writes([]data.Rating{}))

	/* Recommendations */

	ws.Route(ws.GET("/user/{user-id}/recommendations").To(s.getRecommend).
		Doc("Get recommended films for a user, best first.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned films").DataType("integer")).
		Writes([]logics.RecommendedFilm{}))

	/* Reviews */

	ws.Route(ws.POST("/review").To(s.insertReview).
		Doc("Insert a review.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"review"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads(data.Review{}).
		Writes(Identified{}))
	ws.Route(ws.PUT("/review").To(s.updateReview).
		Doc("Update a review.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"review"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Reads(data.Review{}).
		Writes(Success{}))
	ws.Route(ws.DELETE("/review/{review-id}").To(s.deleteReview).
		Doc("Delete a review.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"review"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("review-id", "identifier of the review").DataType("integer")).
		Writes(Success{}))
	ws.Route(ws.GET("/review/{review-id}").To(s.getReview).
		Doc("Get a review.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"review"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("review-id", "identifier of the review").DataType("integer")).
		Writes(data.Review{}))
	ws.Route(ws.GET("/reviews").To(s.getReviews).
		Doc("Get reviews, most useful first.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"review"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.QueryParameter("film-id", "identifier of the film").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned reviews").DataType("integer")).
		Writes([]data.Review{}))
	ws.Route(ws.PUT("/review/{review-id}/like/{user-id}").To(s.likeReview).
		Doc("Like a review.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"review"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("review-id", "identifier of the review").DataType("integer")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Writes(Success{}))
	ws.Route(ws.PUT("/review/{review-id}/dislike/{user-id}").To(s.dislikeReview).
		Doc("Dislike a review.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"review"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("review-id", "identifier of the review").DataType("integer")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Writes(Success{}))
	ws.Route(ws.DELETE("/review/{review-id}/like/{user-id}").To(s.deleteReviewVote).
		Doc("Remove a user's vote on a review.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"review"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("review-id", "identifier of the review").DataType("integer")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Writes(Success{}))

	/* Feed */

	ws.Route(ws.GET("/user/{user-id}/feed").To(s.getFeed).
		Doc("Get the activity feed of a user's friends.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"feed"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned events").DataType("integer")).
		Writes([]data.FeedEvent{}))

	/* Health */

	ws.Route(ws.GET("/health").To(s.getHealth).
		Doc("Probe the health of the server and its databases.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(HealthStatus{}))
}

// ParseInt parses integers from the query parameter.
func ParseInt(request *restful.Request, name string, fallback int) (value int, err error) {
	valueString := request.QueryParameter(name)
	value, err = strconv.Atoi(valueString)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

func parsePathId(request *restful.Request, name string) (int64, error) {
	return strconv.ParseInt(request.PathParameter(name), 10, 64)
}

// Success is the returned data structure for write operations.
type Success struct {
	RowAffected int
}

// Identified is the returned data structure for insert operations.
type Identified struct {
	Id int64
}

// HealthStatus is the returned data structure for the health probe.
type HealthStatus struct {
	Ready bool
}

// UserIterator is the iterator for users.
type UserIterator struct {
	Cursor string
	Users  []data.User
}

// FilmIterator is the iterator for films.
type FilmIterator struct {
	Cursor string
	Films  []data.Film
}

/* Users */

func (s *RestServer) insertUser(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	var user data.User
	if err := request.ReadEntity(&user); err != nil {
		BadRequest(response, err)
		return
	}
	userId, err := s.DataClient.InsertUser(ctx, user)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, Identified{Id: userId})
}

func (s *RestServer) getUser(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	user, err := s.DataClient.GetUser(ctx, userId)
	if err != nil {
		if errors.Cause(err) == data.ErrUserNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	Ok(response, user)
}

func (s *RestServer) modifyUser(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	var patch data.UserPatch
	if err = request.ReadEntity(&patch); err != nil {
		BadRequest(response, err)
		return
	}
	if !s.checkUsers(ctx, response, userId) {
		return
	}
	if err = s.DataClient.ModifyUser(ctx, userId, patch); err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, Success{RowAffected: 1})
}

func (s *RestServer) deleteUser(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	if !s.checkUsers(ctx, response, userId) {
		return
	}
	if err = s.DataClient.DeleteUser(ctx, userId); err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, Success{RowAffected: 1})
}

func (s *RestServer) getUsers(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	cursor := request.QueryParameter("cursor")
	n, err := ParseInt(request, "n", s.Config.Server.DefaultN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	cursor, users, err := s.DataClient.GetUsers(ctx, cursor, n)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, UserIterator{Cursor: cursor, Users: users})
}

/* Friends */

// checkUsers verifies every listed user exists, replying 404 on the first
// missing one.
func (s *RestServer) checkUsers(ctx context.Context, response *restful.Response, userIds ...int64) bool {
	for _, userId := range userIds {
		if _, err := s.DataClient.GetUser(ctx, userId); err != nil {
			if errors.Cause(err) == data.ErrUserNotExist {
				PageNotFound(response, err)
			} else {
				InternalServerError(response, err)
			}
			return false
		}
	}
	return true
}

func (s *RestServer) insertFriend(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	friendId, err := parsePathId(request, "friend-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	if userId == friendId {
		BadRequest(response, errors.NotValidf("befriending oneself"))
		return
	}
	if !s.checkUsers(ctx, response, userId, friendId) {
		return
	}
	if err = s.DataClient.InsertFriend(ctx, userId, friendId); err != nil {
		InternalServerError(response, err)
		return
	}
	s.appendFeed(ctx, data.FeedEvent{
		UserId:    userId,
		EventType: data.FeedEventFriend,
		Operation: data.FeedOperationAdd,
		EntityId:  friendId,
	})
	Ok(response, Success{RowAffected: 1})
}

func (s *RestServer) deleteFriend(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	friendId, err := parsePathId(request, "friend-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	if !s.checkUsers(ctx, response, userId, friendId) {
		return
	}
	if err = s.DataClient.DeleteFriend(ctx, userId, friendId); err != nil {
		InternalServerError(response, err)
		return
	}
	s.appendFeed(ctx, data.FeedEvent{
		UserId:    userId,
		EventType: data.FeedEventFriend,
		Operation: data.FeedOperationRemove,
		EntityId:  friendId,
	})
	Ok(response, Success{RowAffected: 1})
}

func (s *RestServer) getFriends(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	if !s.checkUsers(ctx, response, userId) {
		return
	}
	friends, err := s.DataClient.GetFriends(ctx, userId)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, friends)
}

func (s *RestServer) getCommonFriends(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	otherId, err := parsePathId(request, "other-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	if !s.checkUsers(ctx, response, userId, otherId) {
		return
	}
	friends, err := s.DataClient.GetCommonFriends(ctx, userId, otherId)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, friends)
}

/* Films */

func (s *RestServer) insertFilm(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	var film data.Film
	if err := request.ReadEntity(&film); err != nil {
		BadRequest(response, err)
		return
	}
	filmId, err := s.DataClient.InsertFilm(ctx, film)
	if err != nil {
		switch errors.Cause(err) {
		case data.ErrMpaNotExist, data.ErrGenreNotExist, data.ErrDirectorNotExist:
			PageNotFound(response, err)
		default:
			InternalServerError(response, err)
		}
		return
	}
	Ok(response, Identified{Id: filmId})
}

func (s *RestServer) getFilm(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	filmId, err := parsePathId(request, "film-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	film, err := s.DataClient.GetFilm(ctx, filmId)
	if err != nil {
		if errors.Cause(err) == data.ErrFilmNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	Ok(response, film)
}

func (s *RestServer) modifyFilm(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	filmId, err := parsePathId(request, "film-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	var patch data.FilmPatch
	if err = request.ReadEntity(&patch); err != nil {
		BadRequest(response, err)
		return
	}
	if _, err = s.DataClient.GetFilm(ctx, filmId); err != nil {
		if errors.Cause(err) == data.ErrFilmNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	if err = s.DataClient.ModifyFilm(ctx, filmId, patch); err != nil {
		switch errors.Cause(err) {
		case data.ErrFilmNotExist, data.ErrMpaNotExist, data.ErrGenreNotExist, data.ErrDirectorNotExist:
			PageNotFound(response, err)
		default:
			InternalServerError(response, err)
		}
		return
	}
	Ok(response, Success{RowAffected: 1})
}

func (s *RestServer) deleteFilm(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	filmId, err := parsePathId(request, "film-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	if _, err = s.DataClient.GetFilm(ctx, filmId); err != nil {
		if errors.Cause(err) == data.ErrFilmNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	if err = s.DataClient.DeleteFilm(ctx, filmId); err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, Success{RowAffected: 1})
}

func (s *RestServer) getFilms(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	cursor := request.QueryParameter("cursor")
	n, err := ParseInt(request, "n", s.Config.Server.DefaultN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	cursor, films, err := s.DataClient.GetFilms(ctx, cursor, n)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, FilmIterator{Cursor: cursor, Films: films})
}

// getPopular ranks films by the number of ratings received inside the
// configured time window.
func (s *RestServer) getPopular(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	defer MeasureTime(GetPopularSeconds)()
	ctx := request.Request.Context()
	n, err := ParseInt(request, "n", s.Config.Server.DefaultN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	popular := logics.NewPopular(s.Config.Recommend.PopularWindow, n, time.Now())
	cursor := ""
	for {
		var films []data.Film
		cursor, films, err = s.DataClient.GetFilms(ctx, cursor, s.Config.Recommend.CacheSize)
		if err != nil {
			InternalServerError(response, err)
			return
		}
		for _, film := range films {
			ratings, err := s.DataClient.GetFilmRatings(ctx, film.FilmId)
			if err != nil {
				InternalServerError(response, err)
				return
			}
			popular.Push(film, ratings)
		}
		if cursor == "" {
			break
		}
	}
	scores := popular.PopAll()
	filmIds := make([]int64, len(scores))
	for i, score := range scores {
		filmIds[i] = score.FilmId
	}
	films, err := s.DataClient.BatchGetFilms(ctx, filmIds)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	byId := make(map[int64]data.Film, len(films))
	for _, film := range films {
		byId[film.FilmId] = film
	}
	results := make([]data.Film, 0, len(scores))
	for _, score := range scores {
		if film, exist := byId[score.FilmId]; exist {
			results = append(results, film)
		}
	}
	Ok(response, results)
}

/* Dictionaries */

func (s *RestServer) getGenres(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	genres, err := s.DataClient.GetGenres(request.Request.Context())
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, genres)
}

func (s *RestServer) getGenre(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	genreId, err := parsePathId(request, "genre-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	genre, err := s.DataClient.GetGenre(request.Request.Context(), genreId)
	if err != nil {
		if errors.Cause(err) == data.ErrGenreNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	Ok(response, genre)
}

func (s *RestServer) getMpas(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	mpas, err := s.DataClient.GetMpas(request.Request.Context())
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, mpas)
}

func (s *RestServer) getMpa(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	mpaId, err := parsePathId(request, "mpa-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	mpa, err := s.DataClient.GetMpa(request.Request.Context(), mpaId)
	if err != nil {
		if errors.Cause(err) == data.ErrMpaNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	Ok(response, mpa)
}

func (s *RestServer) insertDirector(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	var director data.Director
	if err := request.ReadEntity(&director); err != nil {
		BadRequest(response, err)
		return
	}
	directorId, err := s.DataClient.InsertDirector(request.Request.Context(), director)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, Identified{Id: directorId})
}

func (s *RestServer) getDirector(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	directorId, err := parsePathId(request, "director-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	director, err := s.DataClient.GetDirector(request.Request.Context(), directorId)
	if err != nil {
		if errors.Cause(err) == data.ErrDirectorNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	Ok(response, director)
}

func (s *RestServer) getDirectors(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	directors, err := s.DataClient.GetDirectors(request.Request.Context())
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, directors)
}

func (s *RestServer) deleteDirector(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	directorId, err := parsePathId(request, "director-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	if err = s.DataClient.DeleteDirector(request.Request.Context(), directorId); err != nil {
		if errors.Cause(err) == data.ErrDirectorNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	Ok(response, Success{RowAffected: 1})
}

/* Ratings */

func (s *RestServer) insertRating(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	defer MeasureTime(UpdateRatingSeconds)()
	ctx := request.Request.Context()
	filmId, err := parsePathId(request, "film-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	value, err := strconv.ParseFloat(request.QueryParameter("value"), 64)
	if err != nil {
		BadRequest(response, err)
		return
	}
	if value < data.MinRatingValue || value > data.MaxRatingValue {
		BadRequest(response, errors.NotValidf("rating value %v", value))
		return
	}
	if !s.checkUsers(ctx, response, userId) {
		return
	}
	if _, err = s.DataClient.GetFilm(ctx, filmId); err != nil {
		if errors.Cause(err) == data.ErrFilmNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	oldValue, err := s.DataClient.InsertRating(ctx, data.Rating{
		UserId:    userId,
		FilmId:    filmId,
		Value:     value,
		Timestamp: time.Now(),
	})
	if err != nil {
		InternalServerError(response, err)
		return
	}
	operation := data.FeedOperationAdd
	if oldValue != nil {
		operation = data.FeedOperationUpdate
	}
	s.appendFeed(ctx, data.FeedEvent{
		UserId:    userId,
		EventType: data.FeedEventRating,
		Operation: operation,
		EntityId:  filmId,
	})
	if err = s.Recommender.OnRatingChanged(ctx, userId, filmId, oldValue, &value); err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, Success{RowAffected: 1})
}

func (s *RestServer) deleteRating(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	defer MeasureTime(UpdateRatingSeconds)()
	ctx := request.Request.Context()
	filmId, err := parsePathId(request, "film-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	oldValue, err := s.DataClient.DeleteRating(ctx, userId, filmId)
	if err != nil {
		if errors.Cause(err) == data.ErrRatingNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	s.appendFeed(ctx, data.FeedEvent{
		UserId:    userId,
		EventType: data.FeedEventRating,
		Operation: data.FeedOperationRemove,
		EntityId:  filmId,
	})
	if err = s.Recommender.OnRatingChanged(ctx, userId, filmId, &oldValue, nil); err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, Success{RowAffected: 1})
}

func (s *RestServer) getUserRatings(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	if !s.checkUsers(ctx, response, userId) {
		return
	}
	ratings, err := s.DataClient.GetUserRatings(ctx, userId)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, ratings)
}

/* Recommendations */

func (s *RestServer) getRecommend(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	defer MeasureTime(GetRecommendSeconds)()
	ctx := request.Request.Context()
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	n, err := ParseInt(request, "n", s.Config.Server.DefaultN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	if !s.checkUsers(ctx, response, userId) {
		return
	}
	films, err := s.Recommender.Recommend(ctx, userId, n)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, films)
}

/* Reviews */

func (s *RestServer) insertReview(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	var review data.Review
	if err := request.ReadEntity(&review); err != nil {
		BadRequest(response, err)
		return
	}
	if !s.checkUsers(ctx, response, review.UserId) {
		return
	}
	if _, err := s.DataClient.GetFilm(ctx, review.FilmId); err != nil {
		if errors.Cause(err) == data.ErrFilmNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	reviewId, err := s.DataClient.InsertReview(ctx, review)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	s.appendFeed(ctx, data.FeedEvent{
		UserId:    review.UserId,
		EventType: data.FeedEventReview,
		Operation: data.FeedOperationAdd,
		EntityId:  reviewId,
	})
	Ok(response, Identified{Id: reviewId})
}

func (s *RestServer) updateReview(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	var review data.Review
	if err := request.ReadEntity(&review); err != nil {
		BadRequest(response, err)
		return
	}
	// the feed event belongs to the review's author, not the caller
	existing, err := s.DataClient.GetReview(ctx, review.ReviewId)
	if err != nil {
		if errors.Cause(err) == data.ErrReviewNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	if err = s.DataClient.UpdateReview(ctx, review); err != nil {
		InternalServerError(response, err)
		return
	}
	s.appendFeed(ctx, data.FeedEvent{
		UserId:    existing.UserId,
		EventType: data.FeedEventReview,
		Operation: data.FeedOperationUpdate,
		EntityId:  review.ReviewId,
	})
	Ok(response, Success{RowAffected: 1})
}

func (s *RestServer) deleteReview(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	reviewId, err := parsePathId(request, "review-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	review, err := s.DataClient.GetReview(ctx, reviewId)
	if err != nil {
		if errors.Cause(err) == data.ErrReviewNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	if err = s.DataClient.DeleteReview(ctx, reviewId); err != nil {
		InternalServerError(response, err)
		return
	}
	s.appendFeed(ctx, data.FeedEvent{
		UserId:    review.UserId,
		EventType: data.FeedEventReview,
		Operation: data.FeedOperationRemove,
		EntityId:  reviewId,
	})
	Ok(response, Success{RowAffected: 1})
}

func (s *RestServer) getReview(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	reviewId, err := parsePathId(request, "review-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	review, err := s.DataClient.GetReview(request.Request.Context(), reviewId)
	if err != nil {
		if errors.Cause(err) == data.ErrReviewNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	Ok(response, review)
}

func (s *RestServer) getReviews(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	n, err := ParseInt(request, "n", s.Config.Server.DefaultN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	var filmId *int64
	if filmIdString := request.QueryParameter("film-id"); filmIdString != "" {
		id, err := strconv.ParseInt(filmIdString, 10, 64)
		if err != nil {
			BadRequest(response, err)
			return
		}
		filmId = &id
	}
	reviews, err := s.DataClient.GetReviews(ctx, filmId, n)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, reviews)
}

func (s *RestServer) voteReview(request *restful.Request, response *restful.Response, like bool) {
	ctx := request.Request.Context()
	reviewId, err := parsePathId(request, "review-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	if !s.checkUsers(ctx, response, userId) {
		return
	}
	if _, err = s.DataClient.GetReview(ctx, reviewId); err != nil {
		if errors.Cause(err) == data.ErrReviewNotExist {
			PageNotFound(response, err)
		} else {
			InternalServerError(response, err)
		}
		return
	}
	if err = s.DataClient.InsertReviewVote(ctx, reviewId, userId, like); err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, Success{RowAffected: 1})
}

func (s *RestServer) likeReview(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	s.voteReview(request, response, true)
}

func (s *RestServer) dislikeReview(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	s.voteReview(request, response, false)
}

func (s *RestServer) deleteReviewVote(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	reviewId, err := parsePathId(request, "review-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	if err = s.DataClient.DeleteReviewVote(ctx, reviewId, userId); err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, Success{RowAffected: 1})
}

/* Feed */

func (s *RestServer) getFeed(request *restful.Request, response *restful.Response) {
	if !s.auth(request, response) {
		return
	}
	ctx := request.Request.Context()
	userId, err := parsePathId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	n, err := ParseInt(request, "n", s.Config.Server.DefaultN)
	if err != nil {
		BadRequest(response, err)
		return
	}
	if !s.checkUsers(ctx, response, userId) {
		return
	}
	events, err := s.DataClient.GetFeed(ctx, userId, n)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, events)
}

/* Health */

func (s *RestServer) getHealth(_ *restful.Request, response *restful.Response) {
	if err := s.DataClient.Ping(); err != nil {
		InternalServerError(response, err)
		return
	}
	Ok(response, HealthStatus{Ready: true})
}

// appendFeed records an event on a user's activity feed. Feed writes never
// fail the request that produced them.
func (s *RestServer) appendFeed(ctx context.Context, event data.FeedEvent) {
	event.Timestamp = time.Now()
	if err := s.DataClient.InsertFeedEvent(ctx, event); err != nil {
		log.Logger().Error("failed to append feed event",
			zap.Int64("user_id", event.UserId),
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}

// MeasureTime returns a function that observes the elapsed time since the
// call on the given histogram.
func MeasureTime(histogram prometheus.Histogram) func() {
	start := time.Now()
	return func() {
		histogram.Observe(time.Since(start).Seconds())
	}
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.Logger().Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns an internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.Logger().Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteError(http.StatusNotFound, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content interface{}) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.Logger().Error("failed to write json", zap.Error(err))
	}
}

func (s *RestServer) auth(request *restful.Request, response *restful.Response) bool {
	if s.Config.Server.APIKey == "" {
		return true
	}
	apikey := request.HeaderParameter("X-API-Key")
	if apikey == s.Config.Server.APIKey {
		return true
	}
	log.Logger().Error("unauthorized", zap.String("X-API-Key", apikey))
	if err := response.WriteError(http.StatusUnauthorized, errors.Unauthorizedf("invalid api key")); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
	return false
}
