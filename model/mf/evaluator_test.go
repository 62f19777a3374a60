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
	"context"
	"testing"

	"github.com/chewxy/math32"
	"github.com/gorse-io/gorse-rating/base"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fitMeanPredictor(t *testing.T, ratings []dataset.Rating) Model {
	m := NewBaseline(model.Params{model.Lr: 0, model.NEpochs: 1})
	require.NoError(t, m.Fit(context.Background(), dataset.Encode(ratings), nil))
	return m
}

func TestEvaluate(t *testing.T) {
	m := fitMeanPredictor(t, []dataset.Rating{
		{UserId: "1", ItemId: "1", Label: 5},
		{UserId: "1", ItemId: "2", Label: 3},
		{UserId: "2", ItemId: "1", Label: 4},
	})
	testSet := dataset.EncodeWith([]dataset.Rating{
		{UserId: "1", ItemId: "1", Label: 5},
	}, m.GetUserIndex(), m.GetItemIndex())
	score, err := Evaluate(m, testSet)
	assert.NoError(t, err)
	assert.Equal(t, 1, score.Count)
	assert.Equal(t, float32(1), score.RMSE)
	// a single test rating has no variance
	assert.True(t, math32.IsNaN(score.R2))
}

func TestEvaluate_SkipUnknown(t *testing.T) {
	m := fitMeanPredictor(t, []dataset.Rating{
		{UserId: "1", ItemId: "1", Label: 5},
		{UserId: "1", ItemId: "2", Label: 3},
		{UserId: "2", ItemId: "1", Label: 4},
	})
	testSet := dataset.EncodeWith([]dataset.Rating{
		{UserId: "1", ItemId: "1", Label: 5},
		{UserId: "2", ItemId: "2", Label: 2},
		{UserId: "3", ItemId: "1", Label: 1},
		{UserId: "1", ItemId: "9", Label: 1},
	}, m.GetUserIndex(), m.GetItemIndex())
	score, err := Evaluate(m, testSet)
	assert.NoError(t, err)
	assert.Equal(t, 2, score.Count)
	assert.InDelta(t, math32.Sqrt(2.5), score.RMSE, 1e-6)
	// mean label 3.5, predictions 4: 1 - (1 + 4) / (2.25 + 2.25)
	assert.InDelta(t, float32(1-5/4.5), score.R2, 1e-6)
}

func TestEvaluate_Error(t *testing.T) {
	m := fitMeanPredictor(t, []dataset.Rating{{UserId: "1", ItemId: "1", Label: 5}})
	// empty test set
	_, err := Evaluate(m, dataset.EncodeWith(nil, m.GetUserIndex(), m.GetItemIndex()))
	assert.True(t, errors.Is(err, base.ErrEvaluation))
	// no rating can be scored
	_, err = Evaluate(m, dataset.EncodeWith([]dataset.Rating{{UserId: "2", ItemId: "1", Label: 5}},
		m.GetUserIndex(), m.GetItemIndex()))
	assert.True(t, errors.Is(err, base.ErrEvaluation))
	// foreign encoders
	_, err = Evaluate(m, dataset.Encode([]dataset.Rating{{UserId: "1", ItemId: "1", Label: 5}}))
	assert.True(t, errors.Is(err, base.ErrEvaluation))
	// untrained model
	_, err = Evaluate(NewSVD(nil), dataset.Encode([]dataset.Rating{{UserId: "1", ItemId: "1", Label: 5}}))
	assert.True(t, errors.Is(err, base.ErrEvaluation))
}

func TestRMSE(t *testing.T) {
	assert.Equal(t, float32(0), RMSE([]float32{1, 2, 3}, []float32{1, 2, 3}))
	assert.Equal(t, float32(1), RMSE([]float32{2, 3, 4}, []float32{1, 2, 3}))
	assert.True(t, math32.IsNaN(RMSE(nil, nil)))
	assert.Panics(t, func() { RMSE([]float32{1}, nil) })
}

func TestRSquared(t *testing.T) {
	assert.Equal(t, float32(1), RSquared([]float32{1, 2, 3}, []float32{1, 2, 3}))
	assert.Equal(t, float32(0.5), RSquared([]float32{1, 2, 4}, []float32{1, 2, 3}))
	assert.Equal(t, float32(0), RSquared([]float32{2, 2, 2}, []float32{1, 2, 3}))
	// identical labels
	assert.True(t, math32.IsNaN(RSquared([]float32{4, 4}, []float32{4, 4})))
	assert.True(t, math32.IsNaN(RSquared(nil, nil)))
}
