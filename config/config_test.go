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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/gorse-rating/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	data, err := os.ReadFile("config.toml.template")
	assert.NoError(t, err)
	text := string(data)
	text = strings.Replace(text, "type = \"svd\"", "type = \"baseline\"", -1)
	text = strings.Replace(text, "n_factors = 100", "n_factors = 8", -1)
	text = strings.Replace(text, "path = \"\"", "path = \"model.bin\"", -1)
	text = strings.Replace(text, "user_id = \"6\"", "user_id = \"1\"", -1)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	config, err := LoadConfig(path)
	assert.NoError(t, err)

	// [data]
	assert.Equal(t, "Data/recommendation-ratings-train.csv", config.Data.TrainPath)
	assert.Equal(t, "Data/recommendation-ratings-test.csv", config.Data.TestPath)
	// [model]
	assert.Equal(t, "baseline", config.Model.Type)
	assert.Equal(t, 8, config.Model.NFactors)
	assert.Equal(t, 20, config.Model.NEpochs)
	assert.Equal(t, float32(0.005), config.Model.Lr)
	assert.Equal(t, float32(0.02), config.Model.Reg)
	assert.Equal(t, float32(0), config.Model.InitMean)
	assert.Equal(t, float32(0.1), config.Model.InitStd)
	assert.Equal(t, int64(0), config.Model.RandomState)
	assert.True(t, config.Model.UseBias)
	assert.Equal(t, "model.bin", config.Model.Path)
	assert.Equal(t, 1, config.Model.Verbose)
	// [predict]
	assert.Equal(t, "1", config.Predict.UserId)
	assert.Equal(t, "10", config.Predict.ItemId)
	assert.Equal(t, float32(3.5), config.Predict.Threshold)
	// [tune]
	assert.Equal(t, 20, config.Tune.Trials)
	assert.Equal(t, float32(0.2), config.Tune.ValidationRatio)
}

func TestLoadConfig_Template(t *testing.T) {
	config, err := LoadConfig("config.toml.template")
	assert.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), config)
}

func TestSetDefault(t *testing.T) {
	config, err := LoadConfig("")
	assert.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), config)
}

func TestBindEnv(t *testing.T) {
	variables := map[string]string{
		"GORSE_RATING_TRAIN_PATH":   "<train_path>",
		"GORSE_RATING_TEST_PATH":    "<test_path>",
		"GORSE_RATING_MODEL_TYPE":   "baseline",
		"GORSE_RATING_N_FACTORS":    "12",
		"GORSE_RATING_N_EPOCHS":     "34",
		"GORSE_RATING_RANDOM_STATE": "56",
		"GORSE_RATING_MODEL_PATH":   "<model_path>",
		"GORSE_RATING_USER_ID":      "7",
		"GORSE_RATING_ITEM_ID":      "8",
		"GORSE_RATING_THRESHOLD":    "4",
		"GORSE_RATING_TUNE_TRIALS":  "9",
	}
	for key, value := range variables {
		t.Setenv(key, value)
	}

	config, err := LoadConfig("config.toml.template")
	assert.NoError(t, err)
	assert.Equal(t, "<train_path>", config.Data.TrainPath)
	assert.Equal(t, "<test_path>", config.Data.TestPath)
	assert.Equal(t, "baseline", config.Model.Type)
	assert.Equal(t, 12, config.Model.NFactors)
	assert.Equal(t, 34, config.Model.NEpochs)
	assert.Equal(t, int64(56), config.Model.RandomState)
	assert.Equal(t, "<model_path>", config.Model.Path)
	assert.Equal(t, "7", config.Predict.UserId)
	assert.Equal(t, "8", config.Predict.ItemId)
	assert.Equal(t, float32(4), config.Predict.Threshold)
	assert.Equal(t, 9, config.Tune.Trials)

	// check default values
	assert.Equal(t, float32(0.005), config.Model.Lr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	t.Setenv("GORSE_RATING_MODEL_TYPE", "knn")
	_, err = LoadConfig("")
	assert.Error(t, err)

	t.Setenv("GORSE_RATING_MODEL_TYPE", "svd")
	t.Setenv("GORSE_RATING_N_EPOCHS", "0")
	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestModelConfig_GetParams(t *testing.T) {
	config := GetDefaultConfig()
	params := config.Model.GetParams()
	assert.Equal(t, 100, params.GetInt(model.NFactors, 0))
	assert.Equal(t, 20, params.GetInt(model.NEpochs, 0))
	assert.Equal(t, float32(0.005), params.GetFloat32(model.Lr, 0))
	assert.Equal(t, float32(0.1), params.GetFloat32(model.InitStdDev, 0))
	assert.Equal(t, int64(0), params.GetInt64(model.RandomState, -1))
	assert.True(t, params.GetBool(model.UseBias, false))
	assert.Equal(t, 1, config.Model.GetFitConfig().Verbose)
}
