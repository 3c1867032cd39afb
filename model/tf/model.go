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
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/c-bata/goptuna"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/tensorcofi/base/log"
	"github.com/gorse-io/tensorcofi/common/floats"
	"github.com/gorse-io/tensorcofi/dataset"
	"github.com/gorse-io/tensorcofi/factorization"
	"github.com/gorse-io/tensorcofi/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ErrNotFitted is returned when scoring a model without fitted factors.
const ErrNotFitted = errors.ConstError("model not fitted")

const (
	defaultDim             = 20
	defaultIterations      = 5
	defaultRegularization  = 0.05
	defaultConfidenceScale = 40
)

var tracer = otel.Tracer("github.com/gorse-io/tensorcofi/model/tf")

var paramDetails = map[model.ParamName]model.ParamDetail{
	model.Dim:             {Min: 10, Max: 20, Step: 2, Default: defaultDim},
	model.Iterations:      {Min: 1, Max: 10, Step: 2, Default: defaultIterations},
	model.Regularization:  {Min: 0.1, Max: 1.0, Step: 0.1, Default: defaultRegularization},
	model.ConfidenceScale: {Min: 30, Max: 50, Step: 5, Default: defaultConfidenceScale},
}

// fitted is the state produced by one successful fit.
type fitted struct {
	columns     []string
	userIndices map[any][]int32
	itemIndices map[any][]int32
	store       *FactorStore
}

// TensorCoFi scores (user, item) pairs by the element-wise product of the
// latent vectors of all declared columns, summed over factors. Columns are
// declared once as a user side list followed by an item side list.
//
// Hyper-parameters:
//
//	Dim             - The number of latent factors. Default is 20.
//	Iterations      - The number of training passes. Default is 5.
//	Regularization  - The regularization strength. Default is 0.05.
//	ConfidenceScale - The confidence scale of observed pairs. Default is 40.
//	RandomState     - The seed of initial factors. Default is 0.
type TensorCoFi struct {
	model.BaseModel
	// hyper-parameters
	dim             int
	iterations      int
	regularization  float32
	confidenceScale float32
	// declared columns
	userColumns []string
	itemColumns []string
	engine      factorization.Engine

	mu    sync.RWMutex
	state *fitted
}

// NewTensorCoFi creates a model. A nil engine means the embedded engine with a
// single worker. Empty column lists fall back to the user and item columns.
// The subprocess engine only supports the user and item columns.
func NewTensorCoFi(params model.Params, engine factorization.Engine, userColumns, itemColumns []string) (*TensorCoFi, error) {
	if engine == nil {
		engine = factorization.NewEmbeddedEngine(1)
	}
	if len(userColumns) == 0 {
		userColumns = []string{dataset.UserColumn}
	}
	if len(itemColumns) == 0 {
		itemColumns = []string{dataset.ItemColumn}
	}
	tc := &TensorCoFi{
		userColumns: slices.Clone(userColumns),
		itemColumns: slices.Clone(itemColumns),
		engine:      engine,
	}
	if err := tc.checkColumns(); err != nil {
		return nil, errors.Trace(err)
	}
	tc.SetParams(params)
	return tc, nil
}

func (tc *TensorCoFi) checkColumns() error {
	if tc.engine.Name() != factorization.SubprocessName {
		return nil
	}
	auxiliary := mapset.NewSet(tc.userColumns...).
		Union(mapset.NewSet(tc.itemColumns...)).
		Difference(mapset.NewSet(dataset.UserColumn, dataset.ItemColumn))
	if auxiliary.Cardinality() > 0 {
		return errors.NotSupportedf("auxiliary columns %v with subprocess engine", auxiliary.ToSlice())
	}
	if !slices.Equal(tc.userColumns, []string{dataset.UserColumn}) || !slices.Equal(tc.itemColumns, []string{dataset.ItemColumn}) {
		return errors.NotSupportedf("columns %v, %v with subprocess engine", tc.userColumns, tc.itemColumns)
	}
	return nil
}

// SetParams sets hyper-parameters. Missing ones take default values.
func (tc *TensorCoFi) SetParams(params model.Params) {
	if params == nil {
		params = model.Params{}
	}
	tc.BaseModel.SetParams(params)
	tc.dim = tc.Params.GetInt(model.Dim, defaultDim)
	tc.iterations = tc.Params.GetInt(model.Iterations, defaultIterations)
	tc.regularization = tc.Params.GetFloat32(model.Regularization, defaultRegularization)
	tc.confidenceScale = tc.Params.GetFloat32(model.ConfidenceScale, defaultConfidenceScale)
}

// ParamDetails returns the sweep range and default of each hyper-parameter.
func (tc *TensorCoFi) ParamDetails() map[model.ParamName]model.ParamDetail {
	return paramDetails
}

func (tc *TensorCoFi) GetParamsGrid() model.ParamsGrid {
	grid := make(model.ParamsGrid, len(paramDetails))
	for name, detail := range paramDetails {
		values := detail.Values()
		switch name {
		case model.Dim, model.Iterations:
			grid[name] = lo.Map(values, func(v float64, _ int) interface{} { return int(v) })
		default:
			grid[name] = lo.Map(values, func(v float64, _ int) interface{} { return v })
		}
	}
	return grid
}

// SuggestParams draws hyper-parameters from their sweep ranges.
func (tc *TensorCoFi) SuggestParams(trial goptuna.Trial) model.Params {
	suggested := make(model.Params)
	for _, name := range []model.ParamName{model.Dim, model.Iterations, model.Regularization, model.ConfidenceScale} {
		detail := paramDetails[name]
		values := detail.Values()
		suggested[name] = lo.Must(trial.SuggestDiscreteFloat(string(name), values[0], values[len(values)-1], detail.Step))
	}
	return tc.GetParams().Overwrite(suggested)
}

// GetName returns the name of the model with its hyper-parameters.
func (tc *TensorCoFi) GetName() string {
	name := "TensorCoFi"
	if tc.engine.Name() == factorization.SubprocessName {
		name = "TensorCoFiByFile"
	}
	return fmt.Sprintf("%s (dim=%v,iter=%v,lambda=%v,alpha=%v)",
		name, tc.dim, tc.iterations, tc.regularization, tc.confidenceScale)
}

// Hyperparameters returns the hyper-parameters passed to the engine.
func (tc *TensorCoFi) Hyperparameters() factorization.Hyperparameters {
	return factorization.Hyperparameters{
		Dim:             tc.dim,
		Iterations:      tc.iterations,
		Regularization:  tc.regularization,
		ConfidenceScale: tc.confidenceScale,
		RandomState:     tc.GetRandomState(),
	}
}

// Columns returns the declared columns, user side first.
func (tc *TensorCoFi) Columns() (userColumns, itemColumns []string) {
	return tc.userColumns, tc.itemColumns
}

// Fit encodes the table, trains the engine and replaces the fitted state. On
// failure the previous state is dropped and the model cannot score.
func (tc *TensorCoFi) Fit(ctx context.Context, table *dataset.Table) error {
	ctx, span := tracer.Start(ctx, "Fit")
	defer span.End()
	span.SetAttributes(attribute.String("model", tc.GetName()))
	start := time.Now()
	log.Logger().Info("fit model",
		zap.String("model", tc.GetName()),
		zap.String("engine", tc.engine.Name()),
		zap.Int("n_rows", table.Count()),
		zap.Strings("user_columns", tc.userColumns),
		zap.Strings("item_columns", tc.itemColumns))
	state, err := tc.fit(ctx, table)
	tc.mu.Lock()
	tc.state = state
	tc.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Logger().Error("failed to fit model", zap.String("model", tc.GetName()), zap.Error(err))
		return errors.Trace(err)
	}
	log.Logger().Info("fit model complete",
		zap.String("model", tc.GetName()),
		zap.Int("n_users", len(state.userIndices)),
		zap.Int("n_items", len(state.itemIndices)),
		zap.String("fit_time", time.Since(start).String()))
	return nil
}

func (tc *TensorCoFi) fit(ctx context.Context, table *dataset.Table) (*fitted, error) {
	if err := tc.checkColumns(); err != nil {
		return nil, errors.Trace(err)
	}
	enc, err := dataset.Encode(table, tc.userColumns, tc.itemColumns)
	if err != nil {
		return nil, errors.Trace(err)
	}
	cardinalities := enc.Cardinalities()
	factors, err := tc.engine.Train(ctx, enc, tc.Hyperparameters(), cardinalities)
	if err != nil {
		return nil, errors.Trace(err)
	}
	store, err := NewFactorStore(enc.Columns, cardinalities, tc.dim, factors)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &fitted{
		columns:     enc.Columns,
		userIndices: enc.UserIndices,
		itemIndices: enc.ItemIndices,
		store:       store,
	}, nil
}

// GetScore returns the score of a (user, item) pair. Users and items unseen in
// the latest fit yield an error satisfying errors.Is(err, errors.NotFound).
func (tc *TensorCoFi) GetScore(user, item any) (float32, error) {
	tc.mu.RLock()
	state := tc.state
	tc.mu.RUnlock()
	if state == nil {
		return 0, ErrNotFitted
	}
	if !dataset.Comparable(user) {
		return 0, errors.NotValidf("user of type %T", user)
	}
	if !dataset.Comparable(item) {
		return 0, errors.NotValidf("item of type %T", item)
	}
	userIndices, ok := state.userIndices[user]
	if !ok {
		return 0, errors.NotFoundf("user %v", user)
	}
	itemIndices, ok := state.itemIndices[item]
	if !ok {
		return 0, errors.NotFoundf("item %v", item)
	}
	indices := slices.Concat(userIndices, itemIndices)
	if len(indices) != len(state.columns) {
		return 0, errors.NotValidf("%d indices for %d columns", len(indices), len(state.columns))
	}
	var product []float32
	for i, column := range state.columns {
		vector, ok := state.store.Vector(column, indices[i])
		if !ok {
			return 0, errors.NotFoundf("index %d of column %s", indices[i], column)
		}
		if product == nil {
			product = slices.Clone(vector)
		} else {
			floats.Mul(product, vector)
		}
	}
	return floats.Sum(product), nil
}

// GetFactorStore returns the factors of the latest fit.
func (tc *TensorCoFi) GetFactorStore() (*FactorStore, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if tc.state == nil {
		return nil, false
	}
	return tc.state.store, true
}

// Clear drops fitted factors.
func (tc *TensorCoFi) Clear() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.state = nil
}

// Invalid returns true if the model cannot score.
func (tc *TensorCoFi) Invalid() bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.state == nil
}
