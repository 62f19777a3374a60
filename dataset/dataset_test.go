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
	"strconv"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestEncode(t *testing.T) {
	trainSet := Encode([]Rating{
		{UserId: "1", ItemId: "1", Label: 5},
		{UserId: "1", ItemId: "2", Label: 3},
		{UserId: "2", ItemId: "1", Label: 4},
	})
	assert.Equal(t, 3, trainSet.Count())
	assert.Equal(t, 2, trainSet.CountUsers())
	assert.Equal(t, 2, trainSet.CountItems())
	user, item, label := trainSet.Get(2)
	assert.Equal(t, int32(1), user)
	assert.Equal(t, int32(0), item)
	assert.Equal(t, float32(4), label)
	assert.Equal(t, float32(4), trainSet.GlobalMean())
	assert.Equal(t, []int{2, 1}, trainSet.CountUserRatings())
	assert.Equal(t, []int{2, 1}, trainSet.CountItemRatings())
	assert.InDelta(t, float32(2)/3, trainSet.LabelVariance(), 1e-6)

	// decode(encode(id)) == id
	for _, id := range []string{"1", "2"} {
		s, ok := trainSet.GetUserDict().String(trainSet.GetUserDict().Id(id))
		assert.True(t, ok)
		assert.Equal(t, id, s)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	ratings := []Rating{
		{UserId: "9", ItemId: "3", Label: 1},
		{UserId: "4", ItemId: "7", Label: 2},
		{UserId: "9", ItemId: "7", Label: 3},
	}
	a, b := Encode(ratings), Encode(ratings)
	assert.Equal(t, a.GetUserDict().ToList(), b.GetUserDict().ToList())
	assert.Equal(t, []string{"9", "4"}, a.GetUserDict().ToList())
	assert.Equal(t, []string{"3", "7"}, a.GetItemDict().ToList())
}

func TestEncodeWith(t *testing.T) {
	trainSet := Encode([]Rating{
		{UserId: "1", ItemId: "1", Label: 5},
		{UserId: "2", ItemId: "2", Label: 3},
	})
	testSet := EncodeWith([]Rating{
		{UserId: "2", ItemId: "1", Label: 4},
		{UserId: "3", ItemId: "1", Label: 4},
		{UserId: "1", ItemId: "9", Label: 2},
	}, trainSet.GetUserDict(), trainSet.GetItemDict())
	assert.Equal(t, 3, testSet.Count())
	user, item, _ := testSet.Get(0)
	assert.Equal(t, int32(1), user)
	assert.Equal(t, int32(0), item)
	user, _, _ = testSet.Get(1)
	assert.Equal(t, int32(-1), user)
	_, item, _ = testSet.Get(2)
	assert.Equal(t, int32(-1), item)
	// dicts are not extended
	assert.Equal(t, 2, testSet.CountUsers())
	assert.Equal(t, 2, testSet.CountItems())
}

func TestEncode_Empty(t *testing.T) {
	d := Encode(nil)
	assert.Zero(t, d.Count())
	assert.True(t, math32.IsNaN(d.GlobalMean()))
	assert.True(t, math32.IsNaN(d.LabelVariance()))
}

func TestDataset_LabelVariance(t *testing.T) {
	constant := Encode([]Rating{
		{UserId: "1", ItemId: "1", Label: 4},
		{UserId: "2", ItemId: "1", Label: 4},
		{UserId: "2", ItemId: "2", Label: 4},
	})
	assert.Zero(t, constant.LabelVariance())
	mixed := Encode([]Rating{
		{UserId: "1", ItemId: "1", Label: 1},
		{UserId: "1", ItemId: "2", Label: 3},
		{UserId: "2", ItemId: "1", Label: 5},
		{UserId: "2", ItemId: "2", Label: 3},
	})
	assert.InDelta(t, float32(2), mixed.LabelVariance(), 1e-6)
}

func TestDataset_Split(t *testing.T) {
	var ratings []Rating
	for i := 0; i < 100; i++ {
		ratings = append(ratings, Rating{
			UserId: strconv.Itoa(i % 10),
			ItemId: strconv.Itoa(i),
			Label:  float32(i % 5),
		})
	}
	d := Encode(ratings)
	trainSet, valSet := d.Split(0.2, 0)
	assert.Equal(t, 80, trainSet.Count())
	assert.Equal(t, 20, valSet.Count())
	assert.Same(t, d.GetUserDict(), trainSet.GetUserDict())
	assert.Same(t, d.GetItemDict(), valSet.GetItemDict())
	// every item appears once, so halves are disjoint
	seen := make(map[int32]struct{})
	for _, s := range []*Dataset{trainSet, valSet} {
		for i := 0; i < s.Count(); i++ {
			_, item, _ := s.Get(i)
			_, dup := seen[item]
			assert.False(t, dup)
			seen[item] = struct{}{}
		}
	}
	assert.Len(t, seen, 100)
	// same seed, same split
	_, valSet2 := d.Split(0.2, 0)
	assert.Equal(t, valSet, valSet2)
}
