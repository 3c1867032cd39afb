// Copyright 2020 gorse Project Authors
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

package model

import (
	"encoding/json"
	"math"
	"reflect"

	"github.com/gorse-io/tensorcofi/base/log"
	"go.uber.org/zap"
)

/* ParamName */

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names
const (
	Dim             ParamName = "Dim"             // dimension of latent factors
	Iterations      ParamName = "Iterations"      // number of optimization passes
	Regularization  ParamName = "Regularization"  // regularization strength (lambda)
	ConfidenceScale ParamName = "ConfidenceScale" // confidence scale of observed interactions (alpha)
	RandomState     ParamName = "RandomState"     // random state (seed)
)

// Params stores hyper-parameters for an model. It is a map between strings
// (names) and interface{}s (values). For example, hyper-parameters for
// TensorCoFi is given by:
//
//	model.Params{
//		model.Dim:             20,
//		model.Iterations:      5,
//		model.Regularization:  0.05,
//		model.ConfidenceScale: 40,
//	}
type Params map[ParamName]interface{}

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params)
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

// GetInt gets a integer parameter by name. Returns _default if not exists or type doesn't match.
// Integral floats are accepted since sweeps suggest float values.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		case int32:
			return int(val)
		case int64:
			return int(val)
		case float64:
			if val == math.Trunc(val) {
				return int(val)
			}
			log.Logger().Error("expect integral value", zap.String("param", string(name)), zap.Float64("value", val))
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "int"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetInt64 gets a int64 parameter by name. Returns _default if not exists or type doesn't match. The
// type will be converted if given int.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "int64"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// GetFloat32 gets a float parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetFloat32(name ParamName, _default float32) float32 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float32:
			return val
		case float64:
			return float32(val)
		case int:
			return float32(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "float32"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

// Overwrite returns a new Params with values of params taking precedence.
func (parameters Params) Overwrite(params Params) Params {
	merged := make(Params)
	for k, v := range parameters {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

func (parameters Params) ToString() string {
	b, err := json.Marshal(parameters)
	if err != nil {
		log.Logger().Error("failed to marshal params", zap.Error(err))
		return ""
	}
	return string(b)
}

// ParamDetail describes the sweep range of a hyper-parameter.
type ParamDetail struct {
	Min     float64
	Max     float64
	Step    float64
	Default float64
}

// Values enumerates Min, Min+Step, ... up to Max.
func (detail ParamDetail) Values() []float64 {
	if detail.Step <= 0 || detail.Max < detail.Min {
		return []float64{detail.Default}
	}
	var values []float64
	n := int(math.Floor((detail.Max-detail.Min)/detail.Step + 1e-9))
	for i := 0; i <= n; i++ {
		// round away accumulated binary error, e.g. 0.1 * 3
		values = append(values, math.Round((detail.Min+float64(i)*detail.Step)*1e9)/1e9)
	}
	return values
}

// ParamsGrid contains candidate for grid search.
type ParamsGrid map[ParamName][]interface{}

// NumCombinations returns the number of parameter combinations.
func (grid ParamsGrid) NumCombinations() int {
	count := 1
	for _, values := range grid {
		count *= len(values)
	}
	return count
}
