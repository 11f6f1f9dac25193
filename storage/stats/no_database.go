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

import "context"

// NoDatabase means no database used for the pair statistics store.
type NoDatabase struct{}

func (NoDatabase) Init() error  { return ErrNoDatabase }
func (NoDatabase) Ping() error  { return ErrNoDatabase }
func (NoDatabase) Close() error { return ErrNoDatabase }
func (NoDatabase) Purge() error { return ErrNoDatabase }

func (NoDatabase) SaveDiff(context.Context, map[FilmPair]float64) error { return ErrNoDatabase }
func (NoDatabase) SaveFreq(context.Context, map[FilmPair]int) error     { return ErrNoDatabase }
func (NoDatabase) LoadDiff(context.Context) (map[FilmPair]float64, error) {
	return nil, ErrNoDatabase
}
func (NoDatabase) LoadFreq(context.Context) (map[FilmPair]int, error) {
	return nil, ErrNoDatabase
}
