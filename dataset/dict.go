// Copyright 2025 gorse Project Authors
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

package dataset

// Dict maps raw categorical values of one feature column to dense indices. Indices
// start at 1 and are assigned in first-seen order, so encoding the same values in
// the same order always yields the same dictionary. Values must be comparable.
type Dict struct {
	vi map[any]int32
	iv []any
}

func NewDict() *Dict {
	return &Dict{vi: map[any]int32{}}
}

// Count returns the number of distinct values.
func (d *Dict) Count() int {
	if d == nil {
		return 0
	}
	return len(d.iv)
}

// Encode returns the index of a value, allocating Count()+1 on first occurrence.
func (d *Dict) Encode(v any) int32 {
	if i, ok := d.vi[v]; ok {
		return i
	}
	d.iv = append(d.iv, v)
	i := int32(len(d.iv))
	d.vi[v] = i
	return i
}

// Index looks up a value without allocating.
func (d *Dict) Index(v any) (int32, bool) {
	if d == nil {
		return 0, false
	}
	i, ok := d.vi[v]
	return i, ok
}

// Value returns the raw value of an index.
func (d *Dict) Value(i int32) (any, bool) {
	if d == nil || i < 1 || int(i) > len(d.iv) {
		return nil, false
	}
	return d.iv[i-1], true
}

// ToMap returns a copy of the value to index mapping.
func (d *Dict) ToMap() map[any]int32 {
	m := make(map[any]int32, len(d.vi))
	for k, v := range d.vi {
		m[k] = v
	}
	return m
}
