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
	"sync"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/cinematch-io/cinematch/base/log"
	"github.com/cinematch-io/cinematch/storage/data"
	"github.com/cinematch-io/cinematch/storage/stats"
)

// RecommendedFilm is a catalog film annotated with its predicted rating.
type RecommendedFilm struct {
	data.Film
	Score float64 `json:"score"`
}

// Recommender owns the rating predictor: it fits the model at startup,
// applies rating changes as they happen and periodically persists the
// pairwise statistics to the stats store.
type Recommender struct {
	dataClient    data.Database
	statsClient   stats.Database
	slopeOne      *SlopeOne
	flushInterval time.Duration

	mu      sync.Mutex
	dirty   bool
	done    chan struct{}
	stopped chan struct{}
}

func NewRecommender(dataClient data.Database, statsClient stats.Database, flushInterval time.Duration) *Recommender {
	return &Recommender{
		dataClient:    dataClient,
		statsClient:   statsClient,
		slopeOne:      NewSlopeOne(dataClient),
		flushInterval: flushInterval,
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// Start fits the model from the ratings store. If fitting fails, the
// previously persisted statistics are restored instead; if that fails too,
// the recommender starts empty and answers with no predictions until
// ratings arrive.
func (r *Recommender) Start(ctx context.Context) error {
	startTime := time.Now()
	if err := r.slopeOne.Fit(ctx); err != nil {
		log.Logger().Error("failed to fit rating predictor, falling back to persisted statistics",
			zap.Error(err))
		diff, loadErr := r.statsClient.LoadDiff(ctx)
		if loadErr != nil {
			log.Logger().Warn("failed to load persisted statistics, starting empty",
				zap.Error(loadErr))
			go r.loop()
			return nil
		}
		freq, loadErr := r.statsClient.LoadFreq(ctx)
		if loadErr != nil {
			log.Logger().Warn("failed to load persisted statistics, starting empty",
				zap.Error(loadErr))
			go r.loop()
			return nil
		}
		r.slopeOne.Restore(diff, freq)
		log.Logger().Info("restored rating predictor from persisted statistics",
			zap.Int("num_pairs", len(diff)))
		go r.loop()
		return nil
	}
	if err := r.flush(ctx); err != nil {
		log.Logger().Error("failed to persist rating statistics", zap.Error(err))
	}
	log.Logger().Info("fitted rating predictor",
		zap.Duration("used_time", time.Since(startTime)))
	go r.loop()
	return nil
}

// OnRatingChanged applies a single rating mutation to the model. Exactly
// the rating values that changed must be passed: oldValue is nil for a new
// rating, newValue is nil for a removed rating.
func (r *Recommender) OnRatingChanged(ctx context.Context, userId, filmId int64, oldValue, newValue *float64) error {
	if err := r.slopeOne.UpdateRating(ctx, userId, filmId, oldValue, newValue); err != nil {
		return errors.Trace(err)
	}
	if r.flushInterval <= 0 {
		return errors.Trace(r.flush(ctx))
	}
	r.mu.Lock()
	r.dirty = true
	r.mu.Unlock()
	return nil
}

// Recommend returns up to n films the user has not rated, ordered by
// predicted rating, hydrated from the catalog. Films deleted since the
// prediction are skipped.
func (r *Recommender) Recommend(ctx context.Context, userId int64, n int) ([]RecommendedFilm, error) {
	scores, err := r.slopeOne.Predict(ctx, userId, n)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(scores) == 0 {
		return []RecommendedFilm{}, nil
	}
	filmIds := make([]int64, len(scores))
	for i, score := range scores {
		filmIds[i] = score.FilmId
	}
	films, err := r.dataClient.BatchGetFilms(ctx, filmIds)
	if err != nil {
		return nil, errors.Trace(err)
	}
	byId := make(map[int64]data.Film, len(films))
	for _, film := range films {
		byId[film.FilmId] = film
	}
	recommended := make([]RecommendedFilm, 0, len(scores))
	for _, score := range scores {
		film, exist := byId[score.FilmId]
		if !exist {
			continue
		}
		recommended = append(recommended, RecommendedFilm{Film: film, Score: score.Score})
	}
	return recommended, nil
}

// Stop terminates the flush loop and persists the statistics one last time.
func (r *Recommender) Stop(ctx context.Context) error {
	close(r.done)
	<-r.stopped
	return errors.Trace(r.flush(ctx))
}

func (r *Recommender) loop() {
	defer close(r.stopped)
	if r.flushInterval <= 0 {
		<-r.done
		return
	}
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.mu.Lock()
			dirty := r.dirty
			r.dirty = false
			r.mu.Unlock()
			if !dirty {
				continue
			}
			if err := r.flush(context.Background()); err != nil {
				log.Logger().Error("failed to persist rating statistics", zap.Error(err))
			}
		}
	}
}

func (r *Recommender) flush(ctx context.Context) error {
	diff, freq := r.slopeOne.Snapshot()
	if err := r.statsClient.SaveDiff(ctx, diff); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(r.statsClient.SaveFreq(ctx, freq))
}
