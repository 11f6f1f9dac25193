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
	"sort"
	"sync"
	"time"

	"github.com/cinematch-io/cinematch/base/heap"
	"github.com/cinematch-io/cinematch/storage/data"
)

// Popular ranks films by the number of ratings received inside a time window.
// A zero window counts the whole history.
type Popular struct {
	sync.Mutex
	window    time.Duration
	timestamp time.Time
	filter    *heap.TopKFilter[int64, float64]
}

func NewPopular(window time.Duration, n int, timestamp time.Time) *Popular {
	return &Popular{
		window:    window,
		timestamp: timestamp,
		filter:    heap.NewTopKFilter[int64, float64](n),
	}
}

func (p *Popular) Push(film data.Film, ratings []data.Rating) {
	var count int
	for _, rating := range ratings {
		if p.window > 0 && rating.Timestamp.Before(p.timestamp.Add(-p.window)) {
			continue
		}
		count++
	}
	if count == 0 {
		return
	}
	p.Lock()
	defer p.Unlock()
	p.filter.Push(film.FilmId, float64(count))
}

func (p *Popular) PopAll() []Score {
	p.Lock()
	defer p.Unlock()
	filmIds, counts := p.filter.PopAll()
	scores := make([]Score, len(filmIds))
	for i, filmId := range filmIds {
		scores[i] = Score{FilmId: filmId, Score: counts[i]}
	}
	// ties between equally rated films resolve to the lower id
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].FilmId < scores[j].FilmId
	})
	return scores
}

func (p *Popular) Timestamp() time.Time {
	return p.timestamp
}
