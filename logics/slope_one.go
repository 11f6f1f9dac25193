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
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cinematch-io/cinematch/base/log"
	"github.com/cinematch-io/cinematch/storage/data"
	"github.com/cinematch-io/cinematch/storage/stats"
)

// RatingsSource is the durable store of (user, film, value) facts consumed by
// the rating predictor. Satisfied by data.Database.
type RatingsSource interface {
	GetRatings(ctx context.Context, cursor string, n int) (string, []data.Rating, error)
	GetUserRatings(ctx context.Context, userId int64) ([]data.Rating, error)
}

// Score is a film with its predicted rating.
type Score struct {
	FilmId int64   `json:"FilmId"`
	Score  float64 `json:"Score"`
}

// pairStat accumulates one ordered film pair (a,b): Freq counts the users who
// rated both films, Sum is the running sum of rating(b)-rating(a) over those
// users. Keeping the raw sum instead of the mean makes adding and removing
// samples exact; the mean is only computed at read time.
type pairStat struct {
	Sum  float64
	Freq int
}

func (p *pairStat) mean() float64 {
	return p.Sum / float64(p.Freq)
}

const fitBatchSize = 10000

// SlopeOne is a weighted Slope One rating predictor [1]. It owns the pairwise
// statistics over all co-rated film pairs: for each ordered pair (a,b) the
// mean difference between the ratings of b and those of a, and the number of
// users who rated both. All access goes through one RWMutex: the full rebuild
// and incremental updates take the write lock, predictions the read lock.
//
// [1] Lemire, Daniel, and Anna Maclachlan. "Slope one predictors
// for online rating-based collaborative filtering." Proceedings
// of the 2005 SIAM International Conference on Data Mining.
// Society for Industrial and Applied Mathematics, 2005.
type SlopeOne struct {
	mu     sync.RWMutex
	source RatingsSource
	pairs  map[int64]map[int64]*pairStat
}

func NewSlopeOne(source RatingsSource) *SlopeOne {
	return &SlopeOne{
		source: source,
		pairs:  make(map[int64]map[int64]*pairStat),
	}
}

// Fit rebuilds both matrices from the complete rating history and swaps them
// in atomically. An empty history yields empty matrices, not an error.
func (s *SlopeOne) Fit(ctx context.Context) error {
	// group ratings by user
	byUser := make(map[int64][]data.Rating)
	cursor := ""
	for {
		var ratings []data.Rating
		var err error
		cursor, ratings, err = s.source.GetRatings(ctx, cursor, fitBatchSize)
		if err != nil {
			return errors.Trace(err)
		}
		for _, rating := range ratings {
			byUser[rating.UserId] = append(byUser[rating.UserId], rating)
		}
		if cursor == "" {
			break
		}
	}
	// accumulate all ordered pairs among each user's rated films
	pairs := make(map[int64]map[int64]*pairStat)
	for _, ratings := range byUser {
		for i := range ratings {
			for j := range ratings {
				if i == j {
					continue
				}
				addSample(pairs, ratings[i].FilmId, ratings[j].FilmId, ratings[j].Value-ratings[i].Value)
			}
		}
	}
	s.mu.Lock()
	s.pairs = pairs
	s.mu.Unlock()
	return nil
}

func addSample(pairs map[int64]map[int64]*pairStat, a, b int64, sample float64) {
	partners, exist := pairs[a]
	if !exist {
		partners = make(map[int64]*pairStat)
		pairs[a] = partners
	}
	stat, exist := partners[b]
	if !exist {
		stat = new(pairStat)
		partners[b] = stat
	}
	stat.Sum += sample
	stat.Freq++
}

// removeSample folds one sample out of the ordered pair (a,b). A pair whose
// frequency would underflow indicates an update for a rating that was never
// added; the sample is dropped instead of corrupting the matrix.
func (s *SlopeOne) removeSample(a, b int64, sample float64) {
	stat := s.pairs[a][b]
	if stat == nil || stat.Freq == 0 {
		log.Logger().Error("pair frequency underflow, dropping sample",
			zap.Int64("film_a", a), zap.Int64("film_b", b))
		return
	}
	stat.Sum -= sample
	stat.Freq--
	if stat.Freq == 0 {
		delete(s.pairs[a], b)
		if len(s.pairs[a]) == 0 {
			delete(s.pairs, a)
		}
	}
}

// UpdateRating folds one rating change into the matrices. A nil oldValue
// means the user had not rated the film before, a nil newValue means the
// rating was removed; both non-nil means the value changed. The user's other
// ratings are fetched before the write lock is taken so no I/O happens inside
// the critical section.
func (s *SlopeOne) UpdateRating(ctx context.Context, userId, filmId int64, oldValue, newValue *float64) error {
	if oldValue == nil && newValue == nil {
		return errors.NotValidf("rating update with neither old nor new value")
	}
	ratings, err := s.source.GetUserRatings(ctx, userId)
	if err != nil {
		return errors.Trace(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range ratings {
		if other.FilmId == filmId {
			continue
		}
		if oldValue != nil {
			s.removeSample(filmId, other.FilmId, other.Value-*oldValue)
			s.removeSample(other.FilmId, filmId, *oldValue-other.Value)
		}
		if newValue != nil {
			addSample(s.pairs, filmId, other.FilmId, other.Value-*newValue)
			addSample(s.pairs, other.FilmId, filmId, *newValue-other.Value)
		}
	}
	return nil
}

// Predict returns the user's predicted ratings for films they have not rated,
// best first. Each film f the user rated with value v contributes the
// prediction v+diff[f][c] for every candidate c co-rated with f, weighted by
// freq[f][c]; candidates without any co-rating evidence are excluded rather
// than scored zero. Ties are broken by ascending film id so the output is
// deterministic. A non-positive n returns every scored candidate.
func (s *SlopeOne) Predict(ctx context.Context, userId int64, n int) ([]Score, error) {
	ratings, err := s.source.GetUserRatings(ctx, userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(ratings) == 0 {
		return nil, nil
	}
	rated := mapset.NewSet[int64]()
	for _, rating := range ratings {
		rated.Add(rating.FilmId)
	}
	type accumulator struct {
		weighted float64
		weight   int
	}
	accumulators := make(map[int64]*accumulator)
	s.mu.RLock()
	for _, rating := range ratings {
		for candidate, stat := range s.pairs[rating.FilmId] {
			if stat.Freq == 0 || rated.Contains(candidate) {
				continue
			}
			acc, exist := accumulators[candidate]
			if !exist {
				acc = new(accumulator)
				accumulators[candidate] = acc
			}
			acc.weighted += float64(stat.Freq) * (rating.Value + stat.mean())
			acc.weight += stat.Freq
		}
	}
	s.mu.RUnlock()
	scores := make([]Score, 0, len(accumulators))
	for filmId, acc := range accumulators {
		scores = append(scores, Score{FilmId: filmId, Score: acc.weighted / float64(acc.weight)})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].FilmId < scores[j].FilmId
	})
	if n > 0 && len(scores) > n {
		scores = scores[:n]
	}
	return scores, nil
}

// Snapshot exports both matrices for persistence.
func (s *SlopeOne) Snapshot() (map[stats.FilmPair]float64, map[stats.FilmPair]int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	diff := make(map[stats.FilmPair]float64)
	freq := make(map[stats.FilmPair]int)
	for a, partners := range s.pairs {
		for b, stat := range partners {
			if stat.Freq == 0 {
				continue
			}
			pair := stats.FilmPair{FilmA: a, FilmB: b}
			diff[pair] = stat.mean()
			freq[pair] = stat.Freq
		}
	}
	return diff, freq
}

// Restore replaces the matrices with a persisted snapshot.
func (s *SlopeOne) Restore(diff map[stats.FilmPair]float64, freq map[stats.FilmPair]int) {
	pairs := make(map[int64]map[int64]*pairStat)
	for pair, count := range freq {
		if count <= 0 {
			continue
		}
		partners, exist := pairs[pair.FilmA]
		if !exist {
			partners = make(map[int64]*pairStat)
			pairs[pair.FilmA] = partners
		}
		partners[pair.FilmB] = &pairStat{Sum: diff[pair] * float64(count), Freq: count}
	}
	s.mu.Lock()
	s.pairs = pairs
	s.mu.Unlock()
}
