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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/tensorcofi/common/floats"
	"github.com/gorse-io/tensorcofi/factorization"
	"github.com/samber/lo"
)

// FactorStore keeps the factor matrix of every declared column. It is built
// once per fit from a complete engine result and never modified afterwards.
type FactorStore struct {
	dim     int
	columns []string
	factors map[string]factorization.FactorMatrix
}

// NewFactorStore validates an engine result against the declared columns and
// their cardinalities. Factors of undeclared columns are dropped.
func NewFactorStore(columns []string, cardinalities []int, dim int, factors map[string]factorization.FactorMatrix) (*FactorStore, error) {
	if len(columns) != len(cardinalities) {
		return nil, factorization.NewMalformedOutputError("%d cardinalities for %d columns", len(cardinalities), len(columns))
	}
	missing := mapset.NewSet(columns...).Difference(mapset.NewSetFromMapKeys(factors))
	if missing.Cardinality() > 0 {
		return nil, factorization.NewMalformedOutputError("missing factors of columns %v", missing.ToSlice())
	}
	store := &FactorStore{
		dim:     dim,
		columns: lo.Uniq(columns),
		factors: make(map[string]factorization.FactorMatrix, len(columns)),
	}
	for i, column := range columns {
		m := factors[column]
		if len(m) != cardinalities[i] {
			return nil, factorization.NewMalformedOutputError("column %s: got %d rows, want %d", column, len(m), cardinalities[i])
		}
		for j, row := range m {
			if len(row) != dim {
				return nil, factorization.NewMalformedOutputError("column %s: row %d has %d values, want %d", column, j+1, len(row), dim)
			}
			if floats.HasNaN(row) {
				return nil, factorization.NewMalformedOutputError("column %s: row %d is not finite", column, j+1)
			}
		}
		store.factors[column] = m
	}
	return store, nil
}

// GetFactor returns the factor matrix of a column.
func (s *FactorStore) GetFactor(column string) (factorization.FactorMatrix, bool) {
	m, ok := s.factors[column]
	return m, ok
}

// Vector returns the latent vector of a 1-based index.
func (s *FactorStore) Vector(column string, index int32) ([]float32, bool) {
	m, ok := s.factors[column]
	if !ok || index < 1 || int(index) > len(m) {
		return nil, false
	}
	return m[index-1], true
}

// Columns returns the distinct stored columns in declaration order.
func (s *FactorStore) Columns() []string {
	return s.columns
}

func (s *FactorStore) Dim() int {
	return s.dim
}
