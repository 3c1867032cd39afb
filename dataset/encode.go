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

package dataset

import (
	"slices"

	"github.com/gorse-io/tensorcofi/base/log"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Encoded is the numeric form of a table consumed by factorization engines.
type Encoded struct {
	// Columns are the declared feature columns, user side first.
	Columns     []string
	UserColumns []string
	ItemColumns []string
	// Matrix has one row per interaction and one 1-based index per column.
	Matrix [][]int32
	// UserIndices maps a raw user to the indices of the user side columns.
	UserIndices map[any][]int32
	// ItemIndices maps a raw item to the indices of the item side columns.
	ItemIndices map[any][]int32
	// Dicts holds one dictionary per column.
	Dicts map[string]*Dict
	// Conflicts counts rows whose entity index list differs from the one
	// stored by an earlier row of the same entity.
	Conflicts int
}

// Encode converts a table into the dense index encoding. Rows are processed in
// order so that the result is reproducible. A column may be declared on both
// sides. When an entity appears in several rows, the index list of the last row
// is kept.
func Encode(table *Table, userColumns, itemColumns []string) (*Encoded, error) {
	if len(userColumns) == 0 || len(itemColumns) == 0 {
		return nil, errors.NotValidf("empty feature columns")
	}
	for _, c := range []string{UserColumn, ItemColumn} {
		if !table.HasColumn(c) {
			return nil, errors.NotFoundf("column %s", c)
		}
	}
	columns := slices.Concat(userColumns, itemColumns)
	for _, c := range columns {
		if !table.HasColumn(c) {
			return nil, errors.NotFoundf("column %s", c)
		}
	}
	enc := &Encoded{
		Columns:     columns,
		UserColumns: userColumns,
		ItemColumns: itemColumns,
		Matrix:      make([][]int32, table.Count()),
		UserIndices: make(map[any][]int32),
		ItemIndices: make(map[any][]int32),
		Dicts:       make(map[string]*Dict, len(columns)),
	}
	for _, c := range columns {
		if _, exist := enc.Dicts[c]; !exist {
			enc.Dicts[c] = NewDict()
		}
	}
	for row := 0; row < table.Count(); row++ {
		encoded := make([]int32, len(columns))
		userIdx := make([]int32, 0, len(userColumns))
		itemIdx := make([]int32, 0, len(itemColumns))
		for i, c := range columns {
			// a column declared twice shares one dictionary
			index := enc.Dicts[c].Encode(table.Get(row, c))
			encoded[i] = index
			if i < len(userColumns) {
				userIdx = append(userIdx, index)
			} else {
				itemIdx = append(itemIdx, index)
			}
		}
		enc.Matrix[row] = encoded
		user, item := table.Get(row, UserColumn), table.Get(row, ItemColumn)
		if prev, exist := enc.UserIndices[user]; exist && !slices.Equal(prev, userIdx) {
			enc.Conflicts++
		}
		if prev, exist := enc.ItemIndices[item]; exist && !slices.Equal(prev, itemIdx) {
			enc.Conflicts++
		}
		enc.UserIndices[user] = userIdx
		enc.ItemIndices[item] = itemIdx
	}
	if enc.Conflicts > 0 {
		log.Logger().Debug("entity index lists overwritten by later rows",
			zap.Int("conflicts", enc.Conflicts))
	}
	return enc, nil
}

// Cardinalities returns the number of distinct values of each declared column.
func (enc *Encoded) Cardinalities() []int {
	return lo.Map(enc.Columns, func(c string, _ int) int {
		return enc.Dicts[c].Count()
	})
}

// Column returns the indices of one declared column position.
func (enc *Encoded) Column(position int) []int32 {
	return lo.Map(enc.Matrix, func(row []int32, _ int) int32 {
		return row[position]
	})
}

// Count returns the number of encoded rows.
func (enc *Encoded) Count() int {
	return len(enc.Matrix)
}
