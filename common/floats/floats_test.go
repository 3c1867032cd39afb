// Copyright 2022 gorse Project Authors
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

package floats

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestMul(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}
	Mul(a, b)
	assert.Equal(t, []float32{5, 12, 21, 32}, a)
	assert.Panics(t, func() { Mul([]float32{1}, nil) })
}

func TestSum(t *testing.T) {
	assert.Equal(t, float32(10), Sum([]float32{1, 2, 3, 4}))
	assert.Zero(t, Sum(nil))
}

func TestHasNaN(t *testing.T) {
	assert.False(t, HasNaN([]float32{1, 2}))
	assert.True(t, HasNaN([]float32{1, math32.NaN()}))
	assert.True(t, HasNaN([]float32{math32.Inf(1)}))
}

func TestFromColumnMajor(t *testing.T) {
	// 2 x 3 matrix [[1 2 3] [4 5 6]] written column after column
	data := []float32{1, 4, 2, 5, 3, 6}
	m := FromColumnMajor(2, 3, data)
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, m)
	assert.Panics(t, func() { FromColumnMajor(2, 2, data) })
}

func TestTranspose(t *testing.T) {
	m := [][]float32{{1, 2, 3}, {4, 5, 6}}
	assert.Equal(t, [][]float32{{1, 4}, {2, 5}, {3, 6}}, Transpose(m))
	assert.Equal(t, [][]float32{}, Transpose(nil))
	assert.Panics(t, func() { Transpose([][]float32{{1, 2}, {3}}) })
}
