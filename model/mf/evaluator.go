// Copyright 2021 gorse Project Authors
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
	"github.com/chewxy/math32"
	"github.com/gorse-io/gorse-rating/base"
	"github.com/gorse-io/gorse-rating/base/log"
	"github.com/gorse-io/gorse-rating/common/floats"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Score of a rating model on a test set. R2 is NaN if all test labels are identical.
type Score struct {
	RMSE  float32
	R2    float32
	Count int
}

func (score Score) BetterThan(s Score) bool {
	if s.Count == 0 {
		return true
	}
	return score.RMSE < s.RMSE
}

// Evaluate scores a model on a test set encoded with the encoders of the model.
// Ratings of users or items without training are skipped.
func Evaluate(m Model, testSet *dataset.Dataset) (Score, error) {
	if testSet == nil || testSet.Count() == 0 {
		return Score{}, errors.WithType(errors.NotValidf("empty test set"), base.ErrEvaluation)
	}
	if m.Invalid() {
		return Score{}, errors.WithType(errors.NotValidf("model without weights"), base.ErrEvaluation)
	}
	if testSet.GetUserDict() != m.GetUserIndex() || testSet.GetItemDict() != m.GetItemIndex() {
		return Score{}, errors.WithType(errors.NotValidf("test set not encoded by model encoders"), base.ErrEvaluation)
	}
	predictions := make([]float32, 0, testSet.Count())
	labels := make([]float32, 0, testSet.Count())
	for i := 0; i < testSet.Count(); i++ {
		userIndex, itemIndex, label := testSet.Get(i)
		if !m.IsUserPredictable(userIndex) || !m.IsItemPredictable(itemIndex) {
			continue
		}
		predictions = append(predictions, m.InternalPredict(userIndex, itemIndex))
		labels = append(labels, label)
	}
	if skipped := testSet.Count() - len(labels); skipped > 0 {
		log.Logger().Warn("skip ratings of unknown users or items",
			zap.Int("skipped", skipped),
			zap.Int("total", testSet.Count()))
	}
	if len(labels) == 0 {
		return Score{}, errors.WithType(errors.NotValidf("no rating in test set can be scored"), base.ErrEvaluation)
	}
	return Score{
		RMSE:  RMSE(predictions, labels),
		R2:    RSquared(predictions, labels),
		Count: len(labels),
	}, nil
}

// RMSE is the root mean squared error between predictions and labels.
func RMSE(predictions, labels []float32) float32 {
	if len(predictions) != len(labels) {
		panic("mf: predictions and labels lengths do not match")
	}
	if len(labels) == 0 {
		return math32.NaN()
	}
	var sum float32
	for i := range labels {
		sum += (predictions[i] - labels[i]) * (predictions[i] - labels[i])
	}
	return math32.Sqrt(sum / float32(len(labels)))
}

// RSquared is the coefficient of determination 1 - SS_res / SS_tot.
// It returns NaN if SS_tot is zero.
func RSquared(predictions, labels []float32) float32 {
	if len(predictions) != len(labels) {
		panic("mf: predictions and labels lengths do not match")
	}
	mean := floats.Mean(labels)
	var ssRes, ssTot float32
	for i := range labels {
		ssRes += (labels[i] - predictions[i]) * (labels[i] - predictions[i])
		ssTot += (labels[i] - mean) * (labels[i] - mean)
	}
	if ssTot == 0 || math32.IsNaN(ssTot) {
		return math32.NaN()
	}
	return 1 - ssRes/ssTot
}
