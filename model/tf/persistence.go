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

package tf

import (
	"io"
	"slices"

	"github.com/gorse-io/tensorcofi/base/encoding"
	"github.com/gorse-io/tensorcofi/factorization"
	"github.com/gorse-io/tensorcofi/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

const modelMagic = "TensorCoFi"

// header describes the layout of a marshaled model.
type header struct {
	UserColumns []string
	ItemColumns []string
	Dim         int
}

// entity is one entry of an entity index list. Keys of types other than the
// builtin ones must be registered with gob.Register.
type entity struct {
	Key     any
	Indices []int32
}

func toEntities(m map[any][]int32) []entity {
	return lo.MapToSlice(m, func(k any, v []int32) entity {
		return entity{Key: k, Indices: v}
	})
}

func fromEntities(entities []entity) map[any][]int32 {
	return lo.SliceToMap(entities, func(e entity) (any, []int32) {
		return e.Key, e.Indices
	})
}

// checkEntities verifies that every index list has one index per column and
// that each index has a factor.
func checkEntities(kind string, entities []entity, columns []string, store *FactorStore) error {
	for _, e := range entities {
		if len(e.Indices) != len(columns) {
			return errors.NotValidf("%s %v with %d indices for %d columns", kind, e.Key, len(e.Indices), len(columns))
		}
		for i, index := range e.Indices {
			if _, ok := store.Vector(columns[i], index); !ok {
				return errors.NotValidf("index %d of column %s for %s %v", index, columns[i], kind, e.Key)
			}
		}
	}
	return nil
}

// Marshal model into byte stream.
func (tc *TensorCoFi) Marshal(w io.Writer) error {
	tc.mu.RLock()
	state := tc.state
	tc.mu.RUnlock()
	if state == nil {
		return ErrNotFitted
	}
	// write params
	if err := encoding.WriteGob(w, tc.Params); err != nil {
		return errors.Trace(err)
	}
	// write columns
	if err := encoding.WriteGob(w, header{
		UserColumns: tc.userColumns,
		ItemColumns: tc.itemColumns,
		Dim:         state.store.Dim(),
	}); err != nil {
		return errors.Trace(err)
	}
	// write entity index lists
	if err := encoding.WriteGob(w, toEntities(state.userIndices)); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, toEntities(state.itemIndices)); err != nil {
		return errors.Trace(err)
	}
	// write factors
	for _, column := range state.store.Columns() {
		m, _ := state.store.GetFactor(column)
		if err := encoding.WriteMatrix(w, m); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Unmarshal model from byte stream. The engine of the model is kept.
func (tc *TensorCoFi) Unmarshal(r io.Reader) error {
	// read params
	var p model.Params
	if err := encoding.ReadGob(r, &p); err != nil {
		return errors.Trace(err)
	}
	// read columns
	var h header
	if err := encoding.ReadGob(r, &h); err != nil {
		return errors.Trace(err)
	}
	// read entity index lists
	var users, items []entity
	if err := encoding.ReadGob(r, &users); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.ReadGob(r, &items); err != nil {
		return errors.Trace(err)
	}
	// read factors
	columns := slices.Concat(h.UserColumns, h.ItemColumns)
	factors := make(map[string]factorization.FactorMatrix)
	for _, column := range lo.Uniq(columns) {
		m, err := encoding.ReadMatrix(r)
		if err != nil {
			return errors.Trace(err)
		}
		factors[column] = m
	}
	cardinalities := lo.Map(columns, func(c string, _ int) int {
		return len(factors[c])
	})
	store, err := NewFactorStore(columns, cardinalities, h.Dim, factors)
	if err != nil {
		return errors.Trace(err)
	}
	if err = checkEntities("user", users, h.UserColumns, store); err != nil {
		return errors.Trace(err)
	}
	if err = checkEntities("item", items, h.ItemColumns, store); err != nil {
		return errors.Trace(err)
	}
	userColumns, itemColumns := tc.userColumns, tc.itemColumns
	tc.userColumns, tc.itemColumns = h.UserColumns, h.ItemColumns
	if err = tc.checkColumns(); err != nil {
		tc.userColumns, tc.itemColumns = userColumns, itemColumns
		return errors.Trace(err)
	}
	tc.SetParams(p)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.state = &fitted{
		columns:     columns,
		userIndices: fromEntities(users),
		itemIndices: fromEntities(items),
		store:       store,
	}
	return nil
}

// MarshalModel writes a fitted model with a leading type tag.
func MarshalModel(w io.Writer, m *TensorCoFi) error {
	if err := encoding.WriteString(w, modelMagic); err != nil {
		return errors.Trace(err)
	}
	return m.Marshal(w)
}

// UnmarshalModel reads a model written by MarshalModel. The model uses the
// embedded engine.
func UnmarshalModel(r io.Reader) (*TensorCoFi, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if name != modelMagic {
		return nil, errors.NotValidf("model type %s", name)
	}
	m, err := NewTensorCoFi(nil, nil, nil, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = m.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}
