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

package heap

import (
	"container/heap"
	"sort"

	"golang.org/x/exp/constraints"
)

type Elem[T any, W constraints.Ordered] struct {
	Value  T
	Weight W
}

type _heap[T any, W constraints.Ordered] struct {
	elems []Elem[T, W]
}

func (e *_heap[T, W]) Len() int {
	return len(e.elems)
}

func (e *_heap[T, W]) Less(i, j int) bool {
	return e.elems[i].Weight < e.elems[j].Weight
}

func (e *_heap[T, W]) Swap(i, j int) {
	e.elems[i], e.elems[j] = e.elems[j], e.elems[i]
}

func (e *_heap[T, W]) Push(x interface{}) {
	it := x.(Elem[T, W])
	e.elems = append(e.elems, it)
}

func (e *_heap[T, W]) Pop() interface{} {
	old := e.elems
	item := e.elems[len(old)-1]
	e.elems = old[0 : len(old)-1]
	return item
}

// TopKFilter keeps the K elements with the largest weights. It is backed by a
// min-heap so pushing N elements costs O(N*log(K)).
type TopKFilter[T any, W constraints.Ordered] struct {
	_heap[T, W]
	k int
}

// NewTopKFilter creates a top-K filter. A non-positive k keeps every element.
func NewTopKFilter[T any, W constraints.Ordered](k int) *TopKFilter[T, W] {
	return &TopKFilter[T, W]{k: k}
}

// Push inserts a new element into the filter.
func (f *TopKFilter[T, W]) Push(value T, weight W) {
	heap.Push(&f._heap, Elem[T, W]{Value: value, Weight: weight})
	if f.k > 0 && f._heap.Len() > f.k {
		heap.Pop(&f._heap)
	}
}

// PopAll returns the kept elements ordered by weight from the largest to the
// smallest and empties the filter.
func (f *TopKFilter[T, W]) PopAll() ([]T, []W) {
	sort.Sort(sort.Reverse(&f._heap))
	values := make([]T, 0, f._heap.Len())
	weights := make([]W, 0, f._heap.Len())
	for _, elem := range f.elems {
		values = append(values, elem.Value)
		weights = append(weights, elem.Weight)
	}
	f.elems = nil
	return values, weights
}
