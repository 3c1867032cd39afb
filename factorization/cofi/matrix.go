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

package cofi

// FloatMatrix is a dense matrix of 32-bit floats stored column after column:
// element (i, j) lives at Data[j*Rows+i].
type FloatMatrix struct {
	Rows    int
	Columns int
	Data    []float32
}

// NewFloatMatrix creates a zero matrix.
func NewFloatMatrix(rows, columns int) *FloatMatrix {
	return &FloatMatrix{
		Rows:    rows,
		Columns: columns,
		Data:    make([]float32, rows*columns),
	}
}

func (m *FloatMatrix) Get(i, j int) float32 {
	return m.Data[j*m.Rows+i]
}

func (m *FloatMatrix) Put(i, j int, v float32) {
	m.Data[j*m.Rows+i] = v
}

// ToArray returns the underlying column-major buffer.
func (m *FloatMatrix) ToArray() []float32 {
	return m.Data
}
