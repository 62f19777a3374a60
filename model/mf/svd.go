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
	"time"

	"github.com/c-bata/goptuna"
	"github.com/chewxy/math32"
	"github.com/gorse-io/gorse-rating/base/encoding"
	"github.com/gorse-io/gorse-rating/base/log"
	"github.com/gorse-io/gorse-rating/common/floats"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SVD algorithm, as popularized by Simon Funk during the
// Netflix Prize. The prediction \hat{r}_{ui} is set as:
//
//	\hat{r}_{ui} = μ + b_u + b_i + q_i^Tp_u
//
// If user u is unknown, then the bias b_u and the factors p_u are
// assumed to be zero. The same applies for item i with b_i and q_i.
type SVD struct {
	BaseMatrixFactorization
	// Model parameters
	UserFactor [][]float32 // p_u
	ItemFactor [][]float32 // q_i
	UserBias   []float32   // b_u
	ItemBias   []float32   // b_i
	GlobalBias float32     // mu
	// Hyper parameters
	useBias    bool
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	initMean   float32
	initStdDev float32
}

// NewSVD creates a SVD model. Params:
//
//	UseBias    - Add biases in SVD model. Default is true.
//	Reg        - The regularization parameter of the cost function that is
//	             optimized. Default is 0.02.
//	Lr         - The learning rate of SGD. Default is 0.005.
//	NFactors   - The number of latent factors. Default is 100.
//	NEpochs    - The number of iteration of the SGD procedure. Default is 20.
//	InitMean   - The mean of initial random latent factors. Default is 0.
//	InitStdDev - The standard deviation of initial random latent factors. Default is 0.1.
func NewSVD(params model.Params) *SVD {
	svd := new(SVD)
	svd.SetParams(params)
	return svd
}

func (svd *SVD) SetParams(params model.Params) {
	svd.BaseMatrixFactorization.SetParams(params)
	svd.useBias = svd.Params.GetBool(model.UseBias, true)
	svd.nFactors = svd.Params.GetInt(model.NFactors, 100)
	svd.nEpochs = svd.Params.GetInt(model.NEpochs, 20)
	svd.lr = svd.Params.GetFloat32(model.Lr, 0.005)
	svd.reg = svd.Params.GetFloat32(model.Reg, 0.02)
	svd.initMean = svd.Params.GetFloat32(model.InitMean, 0)
	svd.initStdDev = svd.Params.GetFloat32(model.InitStdDev, 0.1)
}

func (svd *SVD) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NFactors:   lo.Must(trial.SuggestInt(string(model.NFactors), 8, 128)),
		model.Lr:         lo.Must(trial.SuggestLogFloat(string(model.Lr), 0.001, 0.05)),
		model.Reg:        lo.Must(trial.SuggestLogFloat(string(model.Reg), 0.001, 0.1)),
		model.InitStdDev: lo.Must(trial.SuggestLogFloat(string(model.InitStdDev), 0.01, 0.5)),
	}
}

func (svd *SVD) Invalid() bool {
	return svd == nil ||
		svd.UserFactor == nil ||
		svd.ItemFactor == nil
}

func (svd *SVD) Clear() {
	svd.BaseMatrixFactorization.clear()
	svd.UserFactor = nil
	svd.ItemFactor = nil
	svd.UserBias = nil
	svd.ItemBias = nil
	svd.GlobalBias = 0
}

func (svd *SVD) InternalPredict(userIndex, itemIndex int32) float32 {
	ret := svd.GlobalBias
	// + b_u
	if userIndex >= 0 && int(userIndex) < len(svd.UserBias) {
		ret += svd.UserBias[userIndex]
	}
	// + b_i
	if itemIndex >= 0 && int(itemIndex) < len(svd.ItemBias) {
		ret += svd.ItemBias[itemIndex]
	}
	// + q_i^Tp_u
	if userIndex >= 0 && int(userIndex) < len(svd.UserFactor) &&
		itemIndex >= 0 && int(itemIndex) < len(svd.ItemFactor) {
		ret += floats.Dot(svd.UserFactor[userIndex], svd.ItemFactor[itemIndex])
	}
	return ret
}

func (svd *SVD) Fit(ctx context.Context, trainSet *dataset.Dataset, config *FitConfig) error {
	if config == nil {
		config = NewFitConfig()
	}
	if err := validateTrainSet(trainSet); err != nil {
		return errors.Trace(err)
	}
	if err := validatePositive(model.NFactors, svd.nFactors); err != nil {
		return errors.Trace(err)
	}
	if err := validatePositive(model.NEpochs, svd.nEpochs); err != nil {
		return errors.Trace(err)
	}
	if err := validateNotNegative(model.Lr, svd.lr); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("fit svd",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Any("params", svd.GetParams()))
	svd.Init(trainSet)
	// Initialize parameters
	rng := svd.GetRandomGenerator()
	svd.UserBias = make([]float32, trainSet.CountUsers())
	svd.ItemBias = make([]float32, trainSet.CountItems())
	svd.GlobalBias = 0
	if svd.useBias {
		svd.GlobalBias = trainSet.GlobalMean()
	}
	svd.UserFactor = rng.NormalMatrix(trainSet.CountUsers(), svd.nFactors, svd.initMean, svd.initStdDev)
	svd.ItemFactor = rng.NormalMatrix(trainSet.CountItems(), svd.nFactors, svd.initMean, svd.initStdDev)
	// Create buffers
	userFactor := make([]float32, svd.nFactors)
	grad := make([]float32, svd.nFactors)
	// Optimize
	start := time.Now()
	for epoch := 1; epoch <= svd.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		var cost float32
		for _, i := range rng.Perm(trainSet.Count()) {
			userIndex, itemIndex, rating := trainSet.Get(i)
			// Compute error: e_{ui} = r - \hat r
			diff := rating - svd.InternalPredict(userIndex, itemIndex)
			cost += diff * diff
			if svd.useBias {
				// Update global bias
				svd.GlobalBias += svd.lr * diff
				// Update user bias: b_u <- b_u + \gamma (e_{ui} - \lambda b_u)
				svd.UserBias[userIndex] += svd.lr * (diff - svd.reg*svd.UserBias[userIndex])
				// Update item bias: b_i <- b_i + \gamma (e_{ui} - \lambda b_i)
				svd.ItemBias[itemIndex] += svd.lr * (diff - svd.reg*svd.ItemBias[itemIndex])
			}
			// Update user latent factor: p_u <- p_u + \gamma (e_{ui} q_i - \lambda p_u)
			copy(userFactor, svd.UserFactor[userIndex])
			floats.MulConstTo(svd.ItemFactor[itemIndex], diff, grad)
			floats.MulConstAdd(userFactor, -svd.reg, grad)
			floats.MulConstAdd(grad, svd.lr, svd.UserFactor[userIndex])
			// Update item latent factor: q_i <- q_i + \gamma (e_{ui} p_u - \lambda q_i)
			floats.MulConstTo(userFactor, diff, grad)
			floats.MulConstAdd(svd.ItemFactor[itemIndex], -svd.reg, grad)
			floats.MulConstAdd(grad, svd.lr, svd.ItemFactor[itemIndex])
		}
		if config.Verbose > 0 && epoch%config.Verbose == 0 {
			log.Logger().Info(fmt.Sprintf("fit svd %v/%v", epoch, svd.nEpochs),
				zap.Float32("rmse", math32.Sqrt(cost/float32(trainSet.Count()))))
		}
	}
	log.Logger().Info("fit svd complete",
		zap.String("duration", time.Since(start).String()))
	return nil
}

func (svd *SVD) Marshal(w io.Writer) error {
	if err := svd.BaseMatrixFactorization.marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := writeFloat32(w, svd.GlobalBias); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteVector(w, svd.UserBias); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteVector(w, svd.ItemBias); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, svd.UserFactor); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteMatrix(w, svd.ItemFactor)
}

func (svd *SVD) Unmarshal(r io.Reader) error {
	var err error
	if err = svd.BaseMatrixFactorization.unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	svd.SetParams(svd.Params)
	if svd.GlobalBias, err = readFloat32(r); err != nil {
		return errors.Trace(err)
	}
	if svd.UserBias, err = encoding.ReadVector(r); err != nil {
		return errors.Trace(err)
	}
	if svd.ItemBias, err = encoding.ReadVector(r); err != nil {
		return errors.Trace(err)
	}
	if svd.UserFactor, err = encoding.ReadMatrix(r); err != nil {
		return errors.Trace(err)
	}
	if svd.ItemFactor, err = encoding.ReadMatrix(r); err != nil {
		return errors.Trace(err)
	}
	// check shapes against encoders
	numUsers, numItems := svd.UserIndex.Count(), svd.ItemIndex.Count()
	for _, err = range []error{
		validateLength("user bias", len(svd.UserBias), numUsers),
		validateLength("item bias", len(svd.ItemBias), numItems),
		validateLength("user factor", len(svd.UserFactor), numUsers),
		validateLength("item factor", len(svd.ItemFactor), numItems),
	} {
		if err != nil {
			return errors.Trace(err)
		}
	}
	for _, factors := range [][][]float32{svd.UserFactor, svd.ItemFactor} {
		if len(factors) > 0 && len(factors[0]) != svd.nFactors {
			return errors.NotValidf("factor size %d, expected %d", len(factors[0]), svd.nFactors)
		}
	}
	return nil
}
