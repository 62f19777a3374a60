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
	"encoding/binary"
	"io"
	"reflect"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/gorse-rating/base"
	"github.com/gorse-io/gorse-rating/base/encoding"
	"github.com/gorse-io/gorse-rating/dataset"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/juju/errors"
)

type FitConfig struct {
	// Verbose logs training loss every Verbose epochs. Zero disables it.
	Verbose int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Verbose: 1,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

// Model predicts the rating a user would give to an item.
type Model interface {
	model.Model
	// Fit the model on an encoded train set.
	Fit(ctx context.Context, trainSet *dataset.Dataset, config *FitConfig) error
	// InternalPredict predicts rating given by a user index and a item index.
	InternalPredict(userIndex, itemIndex int32) float32
	// GetUserIndex returns user index.
	GetUserIndex() *dataset.FreqDict
	// GetItemIndex returns item index.
	GetItemIndex() *dataset.FreqDict
	// IsUserPredictable returns false if user has no rating and its parameters never be trained.
	IsUserPredictable(userIndex int32) bool
	// IsItemPredictable returns false if item has no rating and its parameters never be trained.
	IsItemPredictable(itemIndex int32) bool
	// Marshal model into byte stream.
	Marshal(w io.Writer) error
	// Unmarshal model from byte stream.
	Unmarshal(r io.Reader) error
}

// BaseMatrixFactorization holds what every rating model shares: hyper-parameters,
// the encoders built from the train set and which indices received training.
type BaseMatrixFactorization struct {
	model.BaseModel
	UserIndex       *dataset.FreqDict
	ItemIndex       *dataset.FreqDict
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
}

func (baseModel *BaseMatrixFactorization) Init(trainSet *dataset.Dataset) {
	baseModel.UserIndex = trainSet.GetUserDict()
	baseModel.ItemIndex = trainSet.GetItemDict()
	// set user trained flags
	baseModel.UserPredictable = bitset.New(uint(baseModel.UserIndex.Count()))
	for userIndex, count := range trainSet.CountUserRatings() {
		if count > 0 {
			baseModel.UserPredictable.Set(uint(userIndex))
		}
	}
	// set item trained flags
	baseModel.ItemPredictable = bitset.New(uint(baseModel.ItemIndex.Count()))
	for itemIndex, count := range trainSet.CountItemRatings() {
		if count > 0 {
			baseModel.ItemPredictable.Set(uint(itemIndex))
		}
	}
}

func (baseModel *BaseMatrixFactorization) GetUserIndex() *dataset.FreqDict {
	return baseModel.UserIndex
}

func (baseModel *BaseMatrixFactorization) GetItemIndex() *dataset.FreqDict {
	return baseModel.ItemIndex
}

// IsUserPredictable returns false if user has no rating and its parameters never be trained.
func (baseModel *BaseMatrixFactorization) IsUserPredictable(userIndex int32) bool {
	if baseModel.UserIndex == nil || userIndex >= baseModel.UserIndex.Count() || userIndex < 0 {
		return false
	}
	return baseModel.UserPredictable.Test(uint(userIndex))
}

// IsItemPredictable returns false if item has no rating and its parameters never be trained.
func (baseModel *BaseMatrixFactorization) IsItemPredictable(itemIndex int32) bool {
	if baseModel.ItemIndex == nil || itemIndex >= baseModel.ItemIndex.Count() || itemIndex < 0 {
		return false
	}
	return baseModel.ItemPredictable.Test(uint(itemIndex))
}

func (baseModel *BaseMatrixFactorization) marshal(w io.Writer) error {
	// write params
	if err := encoding.WriteGob(w, baseModel.Params.Copy()); err != nil {
		return errors.Trace(err)
	}
	// write encoders
	if err := encoding.WriteStrings(w, baseModel.UserIndex.ToList()); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteStrings(w, baseModel.ItemIndex.ToList()); err != nil {
		return errors.Trace(err)
	}
	// write trained flags
	for _, flags := range []*bitset.BitSet{baseModel.UserPredictable, baseModel.ItemPredictable} {
		data, err := flags.MarshalBinary()
		if err != nil {
			return errors.Trace(err)
		}
		if err = encoding.WriteBytes(w, data); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (baseModel *BaseMatrixFactorization) unmarshal(r io.Reader) error {
	// read params
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	baseModel.SetParams(params)
	// read encoders
	userIds, err := encoding.ReadStrings(r)
	if err != nil {
		return errors.Trace(err)
	}
	baseModel.UserIndex = dataset.NewFreqDictFromStrings(userIds)
	itemIds, err := encoding.ReadStrings(r)
	if err != nil {
		return errors.Trace(err)
	}
	baseModel.ItemIndex = dataset.NewFreqDictFromStrings(itemIds)
	// read trained flags
	baseModel.UserPredictable = new(bitset.BitSet)
	baseModel.ItemPredictable = new(bitset.BitSet)
	for _, flags := range []*bitset.BitSet{baseModel.UserPredictable, baseModel.ItemPredictable} {
		data, err := encoding.ReadBytes(r)
		if err != nil {
			return errors.Trace(err)
		}
		if err = flags.UnmarshalBinary(data); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (baseModel *BaseMatrixFactorization) clear() {
	baseModel.UserIndex = nil
	baseModel.ItemIndex = nil
	baseModel.UserPredictable = nil
	baseModel.ItemPredictable = nil
}

// validateTrainSet checks that every rating in the train set is resolvable.
func validateTrainSet(trainSet *dataset.Dataset) error {
	if trainSet == nil || trainSet.Count() == 0 {
		return errors.WithType(errors.NotValidf("empty train set"), base.ErrTraining)
	}
	for i := 0; i < trainSet.Count(); i++ {
		userIndex, itemIndex, _ := trainSet.Get(i)
		if userIndex < 0 || itemIndex < 0 {
			return errors.WithType(errors.NotValidf("rating %d without user or item index", i), base.ErrTraining)
		}
	}
	return nil
}

func validatePositive(name model.ParamName, value int) error {
	if value <= 0 {
		return errors.WithType(errors.NotValidf("%s = %d", name, value), base.ErrTraining)
	}
	return nil
}

func validateNotNegative(name model.ParamName, value float32) error {
	if value < 0 {
		return errors.WithType(errors.NotValidf("%s = %v", name, value), base.ErrTraining)
	}
	return nil
}

// validateLength checks a decoded weight length against the size of its encoder.
func validateLength(name string, length int, expected int32) error {
	if length != int(expected) {
		return errors.NotValidf("%s length %d, expected %d", name, length, expected)
	}
	return nil
}

func writeFloat32(w io.Writer, v float32) error {
	return errors.Trace(binary.Write(w, binary.LittleEndian, v))
}

func readFloat32(r io.Reader) (float32, error) {
	var v float32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, errors.Trace(err)
}

func GetModelName(m Model) string {
	switch m.(type) {
	case *SVD:
		return "svd"
	case *Baseline:
		return "baseline"
	default:
		return reflect.TypeOf(m).String()
	}
}

// NewModel creates a model by name.
func NewModel(name string, params model.Params) (Model, error) {
	switch name {
	case "svd":
		return NewSVD(params), nil
	case "baseline":
		return NewBaseline(params), nil
	}
	return nil, errors.NotSupportedf("model %v", name)
}

func MarshalModel(w io.Writer, m Model) error {
	if m.Invalid() {
		return errors.NotValidf("model without weights")
	}
	if err := encoding.WriteString(w, GetModelName(m)); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func UnmarshalModel(r io.Reader) (Model, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	m, err := NewModel(name, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = m.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}
