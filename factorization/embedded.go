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

package factorization

import (
	"context"
	"time"

	"github.com/gorse-io/tensorcofi/common/floats"
	"github.com/gorse-io/tensorcofi/dataset"
	"github.com/gorse-io/tensorcofi/factorization/cofi"
	"github.com/juju/errors"
)

// MaxEmbeddedCardinality is the largest number of distinct values per column
// the embedded engine accepts. Indices are carried as float32, which holds
// integers exactly up to 2^24.
const MaxEmbeddedCardinality = 1 << 24

// EmbeddedEngine runs the TensorCoFi trainer in the current process. Every
// declared column gets a factor matrix.
type EmbeddedEngine struct {
	// Jobs is the number of workers solving one column.
	Jobs int
}

func NewEmbeddedEngine(jobs int) *EmbeddedEngine {
	return &EmbeddedEngine{Jobs: jobs}
}

func (e *EmbeddedEngine) Name() string {
	return EmbeddedName
}

func (e *EmbeddedEngine) Train(ctx context.Context, data *dataset.Encoded, params Hyperparameters, cardinalities []int) (factors map[string]FactorMatrix, err error) {
	ctx, span := startSpan(ctx, EmbeddedName, data, params)
	defer func(start time.Time) { finish(span, EmbeddedName, start, err) }(time.Now())
	if len(cardinalities) != len(data.Columns) {
		return nil, errors.NotValidf("%d cardinalities for %d columns", len(cardinalities), len(data.Columns))
	}
	for i, n := range cardinalities {
		if n > MaxEmbeddedCardinality {
			return nil, errors.NotValidf("cardinality %d of column %s above %d", n, data.Columns[i], MaxEmbeddedCardinality)
		}
	}

	cells := cofi.NewFloatMatrix(data.Count(), len(data.Columns))
	for i, row := range data.Matrix {
		for j, index := range row {
			cells.Put(i, j, float32(index))
		}
	}
	trainer := cofi.NewTensorCoFi(params.Dim, params.Iterations,
		float64(params.Regularization), float64(params.ConfidenceScale), cardinalities,
		cofi.WithSeed(params.RandomState), cofi.WithJobs(e.Jobs))
	if err = trainer.Train(ctx, cells); err != nil {
		return nil, errors.Trace(err)
	}

	model := trainer.GetModel()
	if len(model) != len(data.Columns) {
		return nil, NewMalformedOutputError("%d matrices for %d columns", len(model), len(data.Columns))
	}
	factors = make(map[string]FactorMatrix, len(data.Columns))
	for i, column := range data.Columns {
		// engine matrices are dim x n column-major
		m := model[i]
		if m.Rows != params.Dim || m.Columns != cardinalities[i] || len(m.ToArray()) != m.Rows*m.Columns {
			return nil, NewMalformedOutputError("column %s: got %dx%d matrix, want %dx%d",
				column, m.Rows, m.Columns, params.Dim, cardinalities[i])
		}
		factors[column] = floats.Transpose(floats.FromColumnMajor(m.Rows, m.Columns, m.ToArray()))
	}
	return factors, nil
}
