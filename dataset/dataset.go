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

package dataset

import (
	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/gorse-rating/base"
	"github.com/gorse-io/gorse-rating/common/floats"
)

// Dataset holds encoded ratings. Users and items are dense indices into the
// user and item dicts. An index of -1 marks an identifier the dicts do not know.
type Dataset struct {
	users    []int32
	items    []int32
	labels   []float32
	userDict *FreqDict
	itemDict *FreqDict
}

// Encode builds user and item dicts from ratings in order of first appearance
// and substitutes identifiers with indices.
func Encode(ratings []Rating) *Dataset {
	return encode(ratings, NewFreqDict(), NewFreqDict(), true)
}

// EncodeWith encodes ratings by existing dicts. Unseen identifiers are encoded as -1.
func EncodeWith(ratings []Rating, userDict, itemDict *FreqDict) *Dataset {
	return encode(ratings, userDict, itemDict, false)
}

func encode(ratings []Rating, userDict, itemDict *FreqDict, grow bool) *Dataset {
	d := &Dataset{
		users:    make([]int32, len(ratings)),
		items:    make([]int32, len(ratings)),
		labels:   make([]float32, len(ratings)),
		userDict: userDict,
		itemDict: itemDict,
	}
	for i, rating := range ratings {
		if grow {
			d.users[i] = userDict.Add(rating.UserId)
			d.items[i] = itemDict.Add(rating.ItemId)
		} else {
			d.users[i] = userDict.Id(rating.UserId)
			d.items[i] = itemDict.Id(rating.ItemId)
		}
		d.labels[i] = rating.Label
	}
	return d
}

// Count returns the number of ratings.
func (d *Dataset) Count() int {
	return len(d.labels)
}

func (d *Dataset) CountUsers() int {
	return int(d.userDict.Count())
}

func (d *Dataset) CountItems() int {
	return int(d.itemDict.Count())
}

// Get returns the i-th rating.
func (d *Dataset) Get(i int) (int32, int32, float32) {
	return d.users[i], d.items[i], d.labels[i]
}

func (d *Dataset) GetUserDict() *FreqDict {
	return d.userDict
}

func (d *Dataset) GetItemDict() *FreqDict {
	return d.itemDict
}

// GlobalMean returns the mean label, or NaN for an empty dataset.
func (d *Dataset) GlobalMean() float32 {
	return floats.Mean(d.labels)
}

// LabelVariance returns the population variance of labels, or NaN for an empty dataset.
func (d *Dataset) LabelVariance() float32 {
	stdDev := floats.StdDev(d.labels)
	return stdDev * stdDev
}

// CountUserRatings returns the number of ratings per user index.
func (d *Dataset) CountUserRatings() []int {
	counts := make([]int, d.userDict.Count())
	for _, u := range d.users {
		if u >= 0 {
			counts[u]++
		}
	}
	return counts
}

// CountItemRatings returns the number of ratings per item index.
func (d *Dataset) CountItemRatings() []int {
	counts := make([]int, d.itemDict.Count())
	for _, i := range d.items {
		if i >= 0 {
			counts[i]++
		}
	}
	return counts
}

// Split draws round(ratio * Count()) ratings at random as the validation set.
// Both halves share the dicts of the original dataset.
func (d *Dataset) Split(ratio float32, seed int64) (*Dataset, *Dataset) {
	rng := base.NewRandomGenerator(seed)
	numVal := int(math32.Round(ratio * float32(d.Count())))
	valIndices := mapset.NewSet(rng.Sample(0, d.Count(), numVal)...)
	trainSet := &Dataset{userDict: d.userDict, itemDict: d.itemDict}
	valSet := &Dataset{userDict: d.userDict, itemDict: d.itemDict}
	for i := range d.labels {
		if valIndices.Contains(i) {
			valSet.append(d.users[i], d.items[i], d.labels[i])
		} else {
			trainSet.append(d.users[i], d.items[i], d.labels[i])
		}
	}
	return trainSet, valSet
}

func (d *Dataset) append(user, item int32, label float32) {
	d.users = append(d.users, user)
	d.items = append(d.items, item)
	d.labels = append(d.labels, label)
}
