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
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gorse-io/gorse-rating/base"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model/mf"
	"github.com/juju/errors"
)

// DefaultThreshold is the rounded score an item must exceed to be recommended.
const DefaultThreshold = 3.5

type Recommendation struct {
	UserId      string
	ItemId      string
	Score       float32
	Recommended bool
}

func (r *Recommendation) String() string {
	if r.Recommended {
		return fmt.Sprintf("Movie %s is recommended for user %s", r.ItemId, r.UserId)
	}
	return fmt.Sprintf("Movie %s is not recommended for user %s", r.ItemId, r.UserId)
}

// Recommender decides whether an item should be recommended to a user by the predicted rating.
type Recommender struct {
	model     mf.Model
	threshold float32
}

func NewRecommender(m mf.Model, threshold float32) *Recommender {
	return &Recommender{
		model:     m,
		threshold: threshold,
	}
}

// Predict the rating of an item given by a user. Both identifiers must have
// ratings in the train set of the model.
func (r *Recommender) Predict(userId, itemId string) (float32, error) {
	if r.model == nil || r.model.Invalid() {
		return 0, errors.WithType(errors.NotValidf("model without weights"), base.ErrEncoding)
	}
	userIndex, err := r.resolve(userId, "user", r.model.GetUserIndex(), r.model.IsUserPredictable)
	if err != nil {
		return 0, errors.Trace(err)
	}
	itemIndex, err := r.resolve(itemId, "item", r.model.GetItemIndex(), r.model.IsItemPredictable)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return r.model.InternalPredict(userIndex, itemIndex), nil
}

func (r *Recommender) resolve(id, kind string, dict *dataset.FreqDict, predictable func(int32) bool) (int32, error) {
	canonical, err := dataset.CanonicalId(id)
	if err != nil {
		return -1, errors.WithType(errors.Annotatef(err, "%s %q", kind, id), base.ErrEncoding)
	}
	index := dict.Id(canonical)
	if index < 0 {
		return -1, errors.WithType(errors.NotFoundf("%s %s", kind, canonical), base.ErrEncoding)
	}
	if !predictable(index) {
		return -1, errors.WithType(errors.NotFoundf("ratings of %s %s", kind, canonical), base.ErrEncoding)
	}
	return index, nil
}

// Recommend predicts the rating and recommends the item if the rating rounded
// to one decimal place is greater than the threshold.
func (r *Recommender) Recommend(userId, itemId string) (*Recommendation, error) {
	score, err := r.Predict(userId, itemId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	// identifiers are valid after Predict
	userId, _ = dataset.CanonicalId(userId)
	itemId, _ = dataset.CanonicalId(itemId)
	return &Recommendation{
		UserId:      userId,
		ItemId:      itemId,
		Score:       score,
		Recommended: IsRecommended(score, r.threshold),
	}, nil
}

// IsRecommended rounds score half away from zero to one decimal place and
// compares it with threshold strictly.
func IsRecommended(score, threshold float32) bool {
	return math32.Round(score*10)/10 > threshold
}
