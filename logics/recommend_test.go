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

package logics

import (
	"context"
	"testing"

	"github.com/gorse-io/gorse-rating/base"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/gorse-io/gorse-rating/model/mf"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type RecommenderTestSuite struct {
	suite.Suite
	recommender *Recommender
}

func (suite *RecommenderTestSuite) SetupTest() {
	// the baseline without learning rate predicts the mean rating
	m := mf.NewBaseline(model.Params{model.Lr: 0, model.NEpochs: 1})
	err := m.Fit(context.Background(), dataset.Encode([]dataset.Rating{
		{UserId: "1", ItemId: "1", Label: 5},
		{UserId: "1", ItemId: "2", Label: 3},
		{UserId: "2", ItemId: "1", Label: 4},
		{UserId: "6", ItemId: "10", Label: 4},
	}), nil)
	suite.NoError(err)
	suite.recommender = NewRecommender(m, DefaultThreshold)
}

func (suite *RecommenderTestSuite) TestPredict() {
	score, err := suite.recommender.Predict("1", "2")
	suite.NoError(err)
	suite.Equal(float32(4), score)
	// identifiers are canonicalized
	score, err = suite.recommender.Predict("6.0", " 10")
	suite.NoError(err)
	suite.Equal(float32(4), score)
}

func (suite *RecommenderTestSuite) TestPredictUnknown() {
	_, err := suite.recommender.Predict("3", "1")
	suite.True(errors.Is(err, base.ErrEncoding))
	suite.True(errors.Is(err, errors.NotFound))
	_, err = suite.recommender.Predict("1", "99")
	suite.True(errors.Is(err, base.ErrEncoding))
	suite.True(errors.Is(err, errors.NotFound))
	_, err = suite.recommender.Predict("abc", "1")
	suite.True(errors.Is(err, base.ErrEncoding))
}

func (suite *RecommenderTestSuite) TestRecommend() {
	recommendation, err := suite.recommender.Recommend("6.0", "10")
	suite.NoError(err)
	suite.Equal(&Recommendation{UserId: "6", ItemId: "10", Score: 4, Recommended: true}, recommendation)
	suite.Equal("Movie 10 is recommended for user 6", recommendation.String())
	// higher threshold
	recommendation, err = NewRecommender(suite.recommender.model, 4).Recommend("1", "1")
	suite.NoError(err)
	suite.False(recommendation.Recommended)
	suite.Equal("Movie 1 is not recommended for user 1", recommendation.String())
	// unknown user
	recommendation, err = suite.recommender.Recommend("7", "10")
	suite.True(errors.Is(err, base.ErrEncoding))
	suite.Nil(recommendation)
}

func (suite *RecommenderTestSuite) TestUntrainedModel() {
	_, err := NewRecommender(mf.NewSVD(nil), DefaultThreshold).Predict("1", "1")
	suite.True(errors.Is(err, base.ErrEncoding))
}

func TestRecommender(t *testing.T) {
	suite.Run(t, new(RecommenderTestSuite))
}

func TestIsRecommended(t *testing.T) {
	assert.False(t, IsRecommended(3.5, DefaultThreshold))
	assert.True(t, IsRecommended(3.56, DefaultThreshold))
	assert.False(t, IsRecommended(3.54, DefaultThreshold))
	assert.False(t, IsRecommended(3.45, DefaultThreshold))
	assert.True(t, IsRecommended(3.55, DefaultThreshold))
	assert.True(t, IsRecommended(5, DefaultThreshold))
	assert.False(t, IsRecommended(-1, DefaultThreshold))
}
