// Copyright 2026 gorse Project Authors
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

// FromColumnMajor rebuilds a rows x cols matrix from a buffer written column
// after column, i.e. element (i, j) is stored at data[j*rows+i]. The result is
// row-major: ret[i][j] is element (i, j).
func FromColumnMajor(rows, cols int, data []float32) [][]float32 {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		panic("floats: buffer length does not match shape")
	}
	ret := make([][]float32, rows)
	for i := range ret {
		ret[i] = make([]float32, cols)
		for j := 0; j < cols; j++ {
			ret[i][j] = data[j*rows+i]
		}
	}
	return ret
}

// Transpose returns a new cols x rows matrix.
func Transpose(m [][]float32) [][]float32 {
	if len(m) == 0 {
		return [][]float32{}
	}
	cols := len(m[0])
	ret := make([][]float32, cols)
	for j := range ret {
		ret[j] = make([]float32, len(m))
		for i := range m {
			if len(m[i]) != cols {
				panic("floats: ragged matrix")
			}
			ret[j][i] = m[i][j]
		}
	}
	return ret
}
