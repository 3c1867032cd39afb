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

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/tensorcofi/base/log"
	"github.com/gorse-io/tensorcofi/dataset"
	"github.com/gorse-io/tensorcofi/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Objective evaluates a fitted model. Larger is better.
type Objective func(ctx context.Context, m *TensorCoFi) (float64, error)

// ModelCreator creates an unfitted model for one trial.
type ModelCreator func() (*TensorCoFi, error)

// SearchResult is the best trial of a search.
type SearchResult struct {
	Name   string
	Params model.Params
	Score  float64
	Trials int
}

// ModelSearch fits one model per trial and keeps the best one.
type ModelSearch struct {
	ctx       context.Context
	creator   ModelCreator
	trainSet  *dataset.Table
	objective Objective
	result    SearchResult
}

func NewModelSearch(ctx context.Context, creator ModelCreator, trainSet *dataset.Table, objective Objective) *ModelSearch {
	return &ModelSearch{
		ctx:       ctx,
		creator:   creator,
		trainSet:  trainSet,
		objective: objective,
	}
}

func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	m, err := ms.creator()
	if err != nil {
		return 0, errors.Trace(err)
	}
	m.SetParams(m.SuggestParams(trial))
	if err = m.Fit(ms.ctx, ms.trainSet); err != nil {
		return 0, errors.Trace(err)
	}
	score, err := ms.objective(ms.ctx, m)
	if err != nil {
		return 0, errors.Trace(err)
	}
	ms.result.Trials++
	log.Logger().Info("search trial complete",
		zap.String("model", m.GetName()),
		zap.Float64("score", score))
	if ms.result.Params == nil || score > ms.result.Score {
		ms.result.Name = m.GetName()
		ms.result.Params = m.GetParams().Copy()
		ms.result.Score = score
	}
	return score, nil
}

func (ms *ModelSearch) Result() SearchResult {
	return ms.result
}

// Search runs n trials with the TPE sampler.
func Search(ms *ModelSearch, n int) (SearchResult, error) {
	study, err := goptuna.CreateStudy("TensorCoFi",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMaximize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return SearchResult{}, errors.Trace(err)
	}
	if err = study.Optimize(ms.Objective, n); err != nil {
		return SearchResult{}, errors.Trace(err)
	}
	return ms.Result(), nil
}

// MeanScore returns an objective computing the mean score of the (user, item)
// pairs of a held-out table. Pairs with users or items unseen in training are
// skipped.
func MeanScore(testSet *dataset.Table) Objective {
	return func(ctx context.Context, m *TensorCoFi) (float64, error) {
		var (
			sum   float64
			count int
		)
		for row := 0; row < testSet.Count(); row++ {
			if err := ctx.Err(); err != nil {
				return 0, errors.Trace(err)
			}
			score, err := m.GetScore(testSet.Get(row, dataset.UserColumn), testSet.Get(row, dataset.ItemColumn))
			if errors.Is(err, errors.NotFound) {
				continue
			} else if err != nil {
				return 0, errors.Trace(err)
			}
			sum += float64(score)
			count++
		}
		if count == 0 {
			return 0, nil
		}
		return sum / float64(count), nil
	}
}
