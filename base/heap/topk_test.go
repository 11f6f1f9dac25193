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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKFilter(t *testing.T) {
	filter := NewTopKFilter[int64, float64](3)
	for i := 0; i < 10; i++ {
		filter.Push(int64(i), float64(i))
	}
	values, weights := filter.PopAll()
	assert.Equal(t, []int64{9, 8, 7}, values)
	assert.Equal(t, []float64{9, 8, 7}, weights)
	// the filter is empty after PopAll
	values, _ = filter.PopAll()
	assert.Empty(t, values)
}

func TestTopKFilterUnlimited(t *testing.T) {
	filter := NewTopKFilter[string, int](0)
	filter.Push("a", 1)
	filter.Push("b", 3)
	filter.Push("c", 2)
	values, weights := filter.PopAll()
	assert.Equal(t, []string{"b", "c", "a"}, values)
	assert.Equal(t, []int{3, 2, 1}, weights)
}
