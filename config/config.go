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

	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/gorse-rating/base/log"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/gorse-io/gorse-rating/model/mf"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the configuration for the rating pipeline.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Model   ModelConfig   `mapstructure:"model"`
	Predict PredictConfig `mapstructure:"predict"`
	Tune    TuneConfig    `mapstructure:"tune"`
}

// DataConfig is the configuration for rating files.
type DataConfig struct {
	TrainPath string `mapstructure:"train_path" validate:"required"`
	TestPath  string `mapstructure:"test_path" validate:"required"`
}

// ModelConfig is the configuration for the rating model.
type ModelConfig struct {
	Type        string  `mapstructure:"type" validate:"oneof=svd baseline"`
	NFactors    int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gt=0"`
	Lr          float32 `mapstructure:"lr" validate:"gte=0"`
	Reg         float32 `mapstructure:"reg" validate:"gte=0"`
	InitMean    float32 `mapstructure:"init_mean"`
	InitStd     float32 `mapstructure:"init_std" validate:"gte=0"`
	RandomState int64   `mapstructure:"random_state"`
	UseBias     bool    `mapstructure:"use_bias"`
	Path        string  `mapstructure:"path"`
	Verbose     int     `mapstructure:"verbose" validate:"gte=0"`
}

// PredictConfig is the configuration for the recommendation decision.
type PredictConfig struct {
	UserId    string  `mapstructure:"user_id" validate:"required"`
	ItemId    string  `mapstructure:"item_id" validate:"required"`
	Threshold float32 `mapstructure:"threshold"`
}

// TuneConfig is the configuration for hyper-parameter search.
type TuneConfig struct {
	Trials          int     `mapstructure:"trials" validate:"gt=0"`
	ValidationRatio float32 `mapstructure:"validation_ratio" validate:"gt=0,lt=1"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			TrainPath: "Data/recommendation-ratings-train.csv",
			TestPath:  "Data/recommendation-ratings-test.csv",
		},
		Model: ModelConfig{
			Type:        "svd",
			NFactors:    100,
			NEpochs:     20,
			Lr:          0.005,
			Reg:         0.02,
			InitMean:    0,
			InitStd:     0.1,
			RandomState: 0,
			UseBias:     true,
			Verbose:     1,
		},
		Predict: PredictConfig{
			UserId:    "6",
			ItemId:    "10",
			Threshold: 3.5,
		},
		Tune: TuneConfig{
			Trials:          20,
			ValidationRatio: 0.2,
		},
	}
}

// GetParams converts the model configuration to hyper-parameters.
func (c *ModelConfig) GetParams() model.Params {
	return model.Params{
		model.NFactors:    c.NFactors,
		model.NEpochs:     c.NEpochs,
		model.Lr:          c.Lr,
		model.Reg:         c.Reg,
		model.InitMean:    c.InitMean,
		model.InitStdDev:  c.InitStd,
		model.RandomState: c.RandomState,
		model.UseBias:     c.UseBias,
	}
}

func (c *ModelConfig) GetFitConfig() *mf.FitConfig {
	return mf.NewFitConfig().SetVerbose(c.Verbose)
}

func (config *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(config)
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.train_path", defaultConfig.Data.TrainPath)
	v.SetDefault("data.test_path", defaultConfig.Data.TestPath)
	// [model]
	v.SetDefault("model.type", defaultConfig.Model.Type)
	v.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	v.SetDefault("model.n_epochs", defaultConfig.Model.NEpochs)
	v.SetDefault("model.lr", defaultConfig.Model.Lr)
	v.SetDefault("model.reg", defaultConfig.Model.Reg)
	v.SetDefault("model.init_mean", defaultConfig.Model.InitMean)
	v.SetDefault("model.init_std", defaultConfig.Model.InitStd)
	v.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	v.SetDefault("model.use_bias", defaultConfig.Model.UseBias)
	v.SetDefault("model.path", defaultConfig.Model.Path)
	v.SetDefault("model.verbose", defaultConfig.Model.Verbose)
	// [predict]
	v.SetDefault("predict.user_id", defaultConfig.Predict.UserId)
	v.SetDefault("predict.item_id", defaultConfig.Predict.ItemId)
	v.SetDefault("predict.threshold", defaultConfig.Predict.Threshold)
	// [tune]
	v.SetDefault("tune.trials", defaultConfig.Tune.Trials)
	v.SetDefault("tune.validation_ratio", defaultConfig.Tune.ValidationRatio)
}

type configBinding struct {
	key string
	env string
}

// LoadConfig loads configuration from a TOML file. Defaults are used if path is empty.
// Environment variables override the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	// set default config
	setDefault(v)

	// bind environment bindings
	bindings := []configBinding{
		{"data.train_path", "GORSE_RATING_TRAIN_PATH"},
		{"data.test_path", "GORSE_RATING_TEST_PATH"},
		{"model.type", "GORSE_RATING_MODEL_TYPE"},
		{"model.n_factors", "GORSE_RATING_N_FACTORS"},
		{"model.n_epochs", "GORSE_RATING_N_EPOCHS"},
		{"model.random_state", "GORSE_RATING_RANDOM_STATE"},
		{"model.path", "GORSE_RATING_MODEL_PATH"},
		{"predict.user_id", "GORSE_RATING_USER_ID"},
		{"predict.item_id", "GORSE_RATING_ITEM_ID"},
		{"predict.threshold", "GORSE_RATING_THRESHOLD"},
		{"tune.trials", "GORSE_RATING_TUNE_TRIALS"},
	}
	for _, binding := range bindings {
		err := v.BindEnv(binding.key, binding.env)
		if err != nil {
			log.Logger().Fatal("failed to bind a Viper key to a ENV variable", zap.Error(err))
		}
	}

	if path != "" {
		// check if file exist
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Trace(err)
		}
		// load config file
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// unmarshal config file
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Trace(err)
	}

	// validate config file
	if err := conf.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	return &conf, nil
}
