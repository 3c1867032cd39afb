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

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gorse-io/tensorcofi/base"
	"github.com/gorse-io/tensorcofi/base/log"
	"github.com/gorse-io/tensorcofi/base/progress"
	"github.com/gorse-io/tensorcofi/common/parallel"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// TensorCoFi factorizes an implicit-feedback tensor with N categorical modes.
// Every row of the training matrix is an observed cell whose confidence is
// 1 + alpha. The prediction for a cell is the sum of the element-wise product
// of the latent vectors of its coordinates. Each mode is updated in turn by
// solving one regularized least squares problem per index:
//
//	x = (G + alpha * sum v v^T + lambda I)^{-1} (1 + alpha) sum v
//
// where G is the element-wise product of M_k M_k^T over the other modes and v
// is the element-wise product of the other modes' latent vectors of a cell.
//
// Hyper-parameters:
//
//	dim        - The number of latent factors.
//	iterations - The number of passes over all modes.
//	lambda     - The regularization strength.
//	alpha      - The confidence scale of observed cells.
type TensorCoFi struct {
	dim        int
	iterations int
	lambda     float64
	alpha      float64
	dims       []int
	seed       int64
	jobs       int
	// factors[k] is dim x dims[k], one column per index
	factors []*mat.Dense
}

type Option func(*TensorCoFi)

// WithSeed sets the seed of initial factors.
func WithSeed(seed int64) Option {
	return func(t *TensorCoFi) {
		t.seed = seed
	}
}

// WithJobs sets the number of workers solving one mode.
func WithJobs(jobs int) Option {
	return func(t *TensorCoFi) {
		t.jobs = jobs
	}
}

// NewTensorCoFi creates a trainer. dims holds the number of distinct indices of
// each mode.
func NewTensorCoFi(dim, iterations int, lambda, alpha float64, dims []int, opts ...Option) *TensorCoFi {
	t := &TensorCoFi{
		dim:        dim,
		iterations: iterations,
		lambda:     lambda,
		alpha:      alpha,
		dims:       dims,
		jobs:       1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train fits the factors. data has one row per observed cell and one column per
// mode; values are 1-based indices.
func (t *TensorCoFi) Train(ctx context.Context, data *FloatMatrix) error {
	if t.dim <= 0 || t.iterations < 0 || t.lambda < 0 || t.alpha < 0 {
		return errors.NotValidf("hyper-parameters dim=%v iterations=%v lambda=%v alpha=%v",
			t.dim, t.iterations, t.lambda, t.alpha)
	}
	if data.Columns != len(t.dims) {
		return errors.NotValidf("%d columns for %d modes", data.Columns, len(t.dims))
	}
	cells, buckets, err := t.decode(data)
	if err != nil {
		return errors.Trace(err)
	}
	// initialize factors
	rng := base.NewRandomGenerator(t.seed)
	t.factors = make([]*mat.Dense, len(t.dims))
	for k, n := range t.dims {
		if n == 0 {
			return errors.NotValidf("empty mode %d", k)
		}
		t.factors[k] = mat.NewDense(t.dim, n, rng.UniformVector64(t.dim*n, 0, 1))
	}
	log.Logger().Info("fit tensor cofi",
		zap.Int("n_cells", data.Rows),
		zap.Ints("dims", t.dims),
		zap.Int("dim", t.dim),
		zap.Int("iterations", t.iterations),
		zap.Float64("lambda", t.lambda),
		zap.Float64("alpha", t.alpha))
	_, span := progress.Start(ctx, "TensorCoFi", t.iterations)
	for it := 1; it <= t.iterations; it++ {
		start := time.Now()
		for k := range t.dims {
			if err = t.updateMode(ctx, k, cells, buckets[k]); err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
		}
		span.Add(1)
		log.Logger().Debug(fmt.Sprintf("fit tensor cofi %v/%v", it, t.iterations),
			zap.String("fit_time", time.Since(start).String()))
	}
	span.End()
	return nil
}

// decode converts cells to 0-based indices and groups cells by index of each mode.
func (t *TensorCoFi) decode(data *FloatMatrix) ([][]int, [][][]int, error) {
	cells := make([][]int, data.Rows)
	buckets := make([][][]int, len(t.dims))
	for k, n := range t.dims {
		buckets[k] = make([][]int, n)
	}
	for i := 0; i < data.Rows; i++ {
		cells[i] = make([]int, data.Columns)
		for k := 0; k < data.Columns; k++ {
			v := float64(data.Get(i, k))
			if v != math.Trunc(v) || v < 1 || int(v) > t.dims[k] {
				return nil, nil, errors.NotValidf("index %v at (%d, %d)", v, i, k)
			}
			cells[i][k] = int(v) - 1
			buckets[k][cells[i][k]] = append(buckets[k][cells[i][k]], i)
		}
	}
	return cells, buckets, nil
}

func (t *TensorCoFi) updateMode(ctx context.Context, k int, cells [][]int, bucket [][]int) error {
	// G <- element-wise product of M_j M_j^T for j != k
	gram := mat.NewDense(t.dim, t.dim, nil)
	for i := 0; i < t.dim; i++ {
		for j := 0; j < t.dim; j++ {
			gram.Set(i, j, 1)
		}
	}
	tmp := mat.NewDense(t.dim, t.dim, nil)
	for j := range t.factors {
		if j != k {
			tmp.Mul(t.factors[j], t.factors[j].T())
			gram.MulElem(gram, tmp)
		}
	}
	// buffers per worker
	jobs := max(t.jobs, 1)
	a := make([]*mat.Dense, jobs)
	b := make([]*mat.VecDense, jobs)
	x := make([]*mat.VecDense, jobs)
	v := make([][]float64, jobs)
	for w := 0; w < jobs; w++ {
		a[w] = mat.NewDense(t.dim, t.dim, nil)
		b[w] = mat.NewVecDense(t.dim, nil)
		x[w] = mat.NewVecDense(t.dim, nil)
		v[w] = make([]float64, t.dim)
	}
	return parallel.Parallel(ctx, len(bucket), jobs, func(workerId, index int) error {
		a[workerId].Copy(gram)
		b[workerId].Zero()
		for _, cell := range bucket[index] {
			// v <- element-wise product of the other modes' factors
			for f := range v[workerId] {
				v[workerId][f] = 1
			}
			for j, e := range cells[cell] {
				if j != k {
					for f := range v[workerId] {
						v[workerId][f] *= t.factors[j].At(f, e)
					}
				}
			}
			vec := mat.NewVecDense(t.dim, v[workerId])
			// A += alpha v v^T, b += (1 + alpha) v
			a[workerId].RankOne(a[workerId], t.alpha, vec, vec)
			b[workerId].AddScaledVec(b[workerId], 1+t.alpha, vec)
		}
		for f := 0; f < t.dim; f++ {
			a[workerId].Set(f, f, a[workerId].At(f, f)+t.lambda)
		}
		if err := x[workerId].SolveVec(a[workerId], b[workerId]); err != nil {
			// ill-conditioned systems still yield a solution
			var cond mat.Condition
			if !errors.As(err, &cond) || math.IsInf(float64(cond), 0) {
				return errors.Annotatef(err, "failed to solve mode %d index %d", k, index+1)
			}
		}
		for f := 0; f < t.dim; f++ {
			t.factors[k].Set(f, index, x[workerId].AtVec(f))
		}
		return nil
	})
}

// GetModel returns one dim x dims[k] matrix per mode in column-major order, so
// the latent vector of index i of mode k is the i-th column.
func (t *TensorCoFi) GetModel() []*FloatMatrix {
	model := make([]*FloatMatrix, len(t.factors))
	for k, factor := range t.factors {
		rows, cols := factor.Dims()
		m := NewFloatMatrix(rows, cols)
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				m.Put(i, j, float32(factor.At(i, j)))
			}
		}
		model[k] = m
	}
	return model
}
