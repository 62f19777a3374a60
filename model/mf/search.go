// Copyright 2024 gorse Project Authors
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

package mf

import (
	"context"
	"sort"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/gorse-rating/base/log"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type ModelCreator func() Model

// SearchResult is the best trial of a search.
type SearchResult struct {
	Type   string
	Params model.Params
	Score  Score
}

// ModelSearch is a goptuna objective minimizing RMSE on the validation set.
type ModelSearch struct {
	modelCreators map[string]ModelCreator
	modelTypes    []string
	params        model.Params
	trainSet      *dataset.Dataset
	testSet       *dataset.Dataset
	config        *FitConfig
	result        SearchResult
	// OnTrial is called after every finished trial.
	OnTrial func(modelType string, score Score)
}

// NewModelSearch creates a search. Suggested hyper-parameters overwrite params.
func NewModelSearch(models map[string]ModelCreator, params model.Params, trainSet, testSet *dataset.Dataset, config *FitConfig) *ModelSearch {
	modelTypes := lo.Keys(models)
	sort.Strings(modelTypes)
	return &ModelSearch{
		modelCreators: models,
		modelTypes:    modelTypes,
		params:        params,
		trainSet:      trainSet,
		testSet:       testSet,
		config:        config,
	}
}

func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	if len(ms.modelCreators) == 0 {
		return 0, errors.New("no model to search")
	}
	modelType, err := trial.SuggestCategorical("Model", ms.modelTypes)
	if err != nil {
		return 0, errors.Trace(err)
	}
	m := ms.modelCreators[modelType]()
	m.SetParams(ms.params.Overwrite(m.SuggestParams(trial)))
	if err = m.Fit(context.Background(), ms.trainSet, ms.config); err != nil {
		return 0, errors.Trace(err)
	}
	score, err := Evaluate(m, ms.testSet)
	if err != nil {
		return 0, errors.Trace(err)
	}
	log.Logger().Info("search trial complete",
		zap.String("model", modelType),
		zap.Any("params", m.GetParams()),
		zap.Float32("rmse", score.RMSE))
	if score.BetterThan(ms.result.Score) {
		ms.result = SearchResult{
			Type:   modelType,
			Params: m.GetParams(),
			Score:  score,
		}
	}
	if ms.OnTrial != nil {
		ms.OnTrial(modelType, score)
	}
	return float64(score.RMSE), nil
}

func (ms *ModelSearch) Result() SearchResult {
	return ms.result
}

// Search runs a TPE study for numTrials trials and returns the best trial.
func (ms *ModelSearch) Search(numTrials int) (SearchResult, error) {
	study, err := goptuna.CreateStudy("gorse-rating",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return SearchResult{}, errors.Trace(err)
	}
	if err = study.Optimize(ms.Objective, numTrials); err != nil {
		return SearchResult{}, errors.Trace(err)
	}
	return ms.result, nil
}
