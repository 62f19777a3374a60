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

package mf

import (
	"context"
	"fmt"
	"io"

	"github.com/c-bata/goptuna"
	"github.com/chewxy/math32"
	"github.com/gorse-io/gorse-rating/base/encoding"
	"github.com/gorse-io/gorse-rating/base/log"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Baseline predicts the baseline estimate for given user and item.
//
//	\hat{r}_{ui} = b_{ui} = μ + b_u + b_i
//
// If user u is unknown, then the bias b_u is assumed to be zero. The same
// applies for item i with b_i. With a zero learning rate it predicts the
// mean rating of the train set.
type Baseline struct {
	BaseMatrixFactorization
	UserBias   []float32 // b_u
	ItemBias   []float32 // b_i
	GlobalBias float32   // mu
	reg        float32
	lr         float32
	nEpochs    int
}

// NewBaseline creates a baseline model. Parameters:
//
//	Reg     - The regularization parameter of the cost function that is
//	          optimized. Default is 0.02.
//	Lr      - The learning rate of SGD. Default is 0.005.
//	NEpochs - The number of iteration of the SGD procedure. Default is 20.
func NewBaseline(params model.Params) *Baseline {
	baseline := new(Baseline)
	baseline.SetParams(params)
	return baseline
}

func (baseline *Baseline) SetParams(params model.Params) {
	baseline.BaseMatrixFactorization.SetParams(params)
	baseline.reg = baseline.Params.GetFloat32(model.Reg, 0.02)
	baseline.lr = baseline.Params.GetFloat32(model.Lr, 0.005)
	baseline.nEpochs = baseline.Params.GetInt(model.NEpochs, 20)
}

func (baseline *Baseline) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.Lr:  lo.Must(trial.SuggestLogFloat(string(model.Lr), 0.001, 0.05)),
		model.Reg: lo.Must(trial.SuggestLogFloat(string(model.Reg), 0.001, 0.1)),
	}
}

func (baseline *Baseline) Invalid() bool {
	return baseline == nil ||
		baseline.UserBias == nil ||
		baseline.ItemBias == nil
}

func (baseline *Baseline) Clear() {
	baseline.BaseMatrixFactorization.clear()
	baseline.UserBias = nil
	baseline.ItemBias = nil
	baseline.GlobalBias = 0
}

func (baseline *Baseline) InternalPredict(userIndex, itemIndex int32) float32 {
	ret := baseline.GlobalBias
	if userIndex >= 0 && int(userIndex) < len(baseline.UserBias) {
		ret += baseline.UserBias[userIndex]
	}
	if itemIndex >= 0 && int(itemIndex) < len(baseline.ItemBias) {
		ret += baseline.ItemBias[itemIndex]
	}
	return ret
}

func (baseline *Baseline) Fit(ctx context.Context, trainSet *dataset.Dataset, config *FitConfig) error {
	if config == nil {
		config = NewFitConfig()
	}
	if err := validateTrainSet(trainSet); err != nil {
		return errors.Trace(err)
	}
	if err := validatePositive(model.NEpochs, baseline.nEpochs); err != nil {
		return errors.Trace(err)
	}
	if err := validateNotNegative(model.Lr, baseline.lr); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("fit baseline",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Any("params", baseline.GetParams()))
	baseline.Init(trainSet)
	// Initialize parameters
	baseline.GlobalBias = trainSet.GlobalMean()
	baseline.UserBias = make([]float32, trainSet.CountUsers())
	baseline.ItemBias = make([]float32, trainSet.CountItems())
	// Stochastic Gradient Descent
	for epoch := 1; epoch <= baseline.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		var cost float32
		for i := 0; i < trainSet.Count(); i++ {
			userIndex, itemIndex, rating := trainSet.Get(i)
			userBias := baseline.UserBias[userIndex]
			itemBias := baseline.ItemBias[itemIndex]
			// Compute gradient
			diff := baseline.InternalPredict(userIndex, itemIndex) - rating
			cost += diff * diff
			gradGlobalBias := diff
			gradUserBias := diff + baseline.reg*userBias
			gradItemBias := diff + baseline.reg*itemBias
			// Update parameters
			baseline.GlobalBias -= baseline.lr * gradGlobalBias
			baseline.UserBias[userIndex] -= baseline.lr * gradUserBias
			baseline.ItemBias[itemIndex] -= baseline.lr * gradItemBias
		}
		if config.Verbose > 0 && epoch%config.Verbose == 0 {
			log.Logger().Info(fmt.Sprintf("fit baseline %v/%v", epoch, baseline.nEpochs),
				zap.Float32("rmse", math32.Sqrt(cost/float32(trainSet.Count()))))
		}
	}
	return nil
}

func (baseline *Baseline) Marshal(w io.Writer) error {
	if err := baseline.BaseMatrixFactorization.marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := writeFloat32(w, baseline.GlobalBias); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteVector(w, baseline.UserBias); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteVector(w, baseline.ItemBias)
}

func (baseline *Baseline) Unmarshal(r io.Reader) error {
	var err error
	if err = baseline.BaseMatrixFactorization.unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	baseline.SetParams(baseline.Params)
	if baseline.GlobalBias, err = readFloat32(r); err != nil {
		return errors.Trace(err)
	}
	if baseline.UserBias, err = encoding.ReadVector(r); err != nil {
		return errors.Trace(err)
	}
	if baseline.ItemBias, err = encoding.ReadVector(r); err != nil {
		return errors.Trace(err)
	}
	if err = validateLength("user bias", len(baseline.UserBias), baseline.UserIndex.Count()); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(validateLength("item bias", len(baseline.ItemBias), baseline.ItemIndex.Count()))
}
