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

package client

import "github.com/cinematch-io/cinematch/storage/data"

// ErrorMessage is the raw body of a non-200 response.
type ErrorMessage string

func (e ErrorMessage) Error() string {
	return string(e)
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

// UserIterator is one page of users.
type UserIterator struct {
	Cursor string
	Users  []data.User
}

// FilmIterator is one page of films.
type FilmIterator struct {
	Cursor string
	Films  []data.Film
}

// RecommendedFilm is a film with its predicted rating.
type RecommendedFilm struct {
	data.Film
	Score float64 `json:"score"`
}
