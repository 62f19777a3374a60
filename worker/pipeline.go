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

package worker

import (
	"bufio"
	"context"
	"os"
	"time"

	"github.com/gorse-io/gorse-rating/base/log"
	"github.com/gorse-io/gorse-rating/config"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/logics"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/gorse-io/gorse-rating/model/mf"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Report of a pipeline run.
type Report struct {
	TrainCount     int
	TestCount      int
	Users          int
	Items          int
	TestVariance   float32
	Score          mf.Score
	Recommendation *logics.Recommendation
}

type Pipeline struct {
	Config *config.Config
	// NewModel creates the model to fit. The model type in config is used if nil.
	NewModel func(params model.Params) mf.Model
}

func (p *Pipeline) newModel() (mf.Model, error) {
	params := p.Config.Model.GetParams()
	if p.NewModel != nil {
		return p.NewModel(params), nil
	}
	return mf.NewModel(p.Config.Model.Type, params)
}

// Run loads ratings, fits a model on the train set, evaluates it on the test set
// and decides the configured recommendation. The first failed stage aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	// load ratings
	trainRatings, err := dataset.LoadRatings(p.Config.Data.TrainPath)
	if err != nil {
		return nil, errors.Annotate(err, "load train set")
	}
	testRatings, err := dataset.LoadRatings(p.Config.Data.TestPath)
	if err != nil {
		return nil, errors.Annotate(err, "load test set")
	}

	// encode ratings
	trainSet := dataset.Encode(trainRatings)
	log.Logger().Info("encode ratings",
		zap.Int("n_ratings", trainSet.Count()),
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()))

	// fit model
	m, err := p.newModel()
	if err != nil {
		return nil, errors.Annotate(err, "create model")
	}
	if err = m.Fit(ctx, trainSet, p.Config.Model.GetFitConfig()); err != nil {
		return nil, errors.Annotate(err, "fit model")
	}
	if p.Config.Model.Path != "" {
		if err = SaveModel(p.Config.Model.Path, m); err != nil {
			return nil, errors.Annotate(err, "save model")
		}
	}

	// evaluate model
	testSet := dataset.EncodeWith(testRatings, m.GetUserIndex(), m.GetItemIndex())
	score, err := mf.Evaluate(m, testSet)
	if err != nil {
		return nil, errors.Annotate(err, "evaluate model")
	}
	testVariance := testSet.LabelVariance()
	log.Logger().Info("evaluate model",
		zap.String("model", mf.GetModelName(m)),
		zap.Int("n_scored", score.Count),
		zap.Float32("label_variance", testVariance),
		zap.Float32("rmse", score.RMSE),
		zap.Float32("r2", score.R2))

	// recommend
	recommender := logics.NewRecommender(m, p.Config.Predict.Threshold)
	recommendation, err := recommender.Recommend(p.Config.Predict.UserId, p.Config.Predict.ItemId)
	if err != nil {
		return nil, errors.Annotate(err, "recommend")
	}
	log.Logger().Info("complete pipeline",
		zap.String("duration", time.Since(start).String()))
	return &Report{
		TrainCount:     trainSet.Count(),
		TestCount:      testSet.Count(),
		Users:          trainSet.CountUsers(),
		Items:          trainSet.CountItems(),
		TestVariance:   testVariance,
		Score:          score,
		Recommendation: recommendation,
	}, nil
}

// Tune searches hyper-parameters of every model type on a random split of the train set.
func (p *Pipeline) Tune(onTrial func(modelType string, score mf.Score)) (mf.SearchResult, error) {
	ratings, err := dataset.LoadRatings(p.Config.Data.TrainPath)
	if err != nil {
		return mf.SearchResult{}, errors.Annotate(err, "load train set")
	}
	trainSet, validateSet := dataset.Encode(ratings).Split(p.Config.Tune.ValidationRatio, p.Config.Model.RandomState)
	log.Logger().Info("search hyper-parameters",
		zap.Int("n_trials", p.Config.Tune.Trials),
		zap.Int("n_train", trainSet.Count()),
		zap.Int("n_validate", validateSet.Count()))
	search := mf.NewModelSearch(map[string]mf.ModelCreator{
		"svd": func() mf.Model {
			return mf.NewSVD(nil)
		},
		"baseline": func() mf.Model {
			return mf.NewBaseline(nil)
		},
	}, p.Config.Model.GetParams(), trainSet, validateSet, mf.NewFitConfig().SetVerbose(0))
	search.OnTrial = onTrial
	result, err := search.Search(p.Config.Tune.Trials)
	if err != nil {
		return mf.SearchResult{}, errors.Annotate(err, "search hyper-parameters")
	}
	return result, nil
}

// SaveModel writes a model with its type name to a file.
func SaveModel(path string, m mf.Model) error {
	if m.Invalid() {
		return errors.NotValidf("model without weights")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	w := bufio.NewWriter(f)
	if err = mf.MarshalModel(w, m); err != nil {
		_ = f.Close()
		return errors.Trace(err)
	}
	if err = w.Flush(); err != nil {
		_ = f.Close()
		return errors.Trace(err)
	}
	log.Logger().Info("save model", zap.String("path", path))
	return errors.Trace(f.Close())
}

// LoadModel reads a model written by SaveModel.
func LoadModel(path string) (mf.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	m, err := mf.UnmarshalModel(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Annotatef(err, "failed to load model from %s", path)
	}
	return m, nil
}
