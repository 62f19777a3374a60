// Copyright 2026 gorse Project Authors
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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/gorse-io/gorse-rating/base/encoding"
	"github.com/gorse-io/gorse-rating/base/log"
	"github.com/gorse-io/gorse-rating/cmd/version"
	"github.com/gorse-io/gorse-rating/config"
	"github.com/gorse-io/gorse-rating/logics"
	"github.com/gorse-io/gorse-rating/model"
	"github.com/gorse-io/gorse-rating/model/mf"
	"github.com/gorse-io/gorse-rating/worker"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "gorse-rating",
	Short: "Train a rating model, evaluate it and decide a recommendation.",
	Run: func(cmd *cobra.Command, args []string) {
		// Show version
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}

		conf := setup(cmd)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		pipeline := &worker.Pipeline{Config: conf}
		report, err := pipeline.Run(ctx)
		if err != nil {
			log.Logger().Fatal("failed to run pipeline", zap.Error(err))
		}
		if err = printReport(os.Stdout, conf, report); err != nil {
			log.Logger().Fatal("failed to print report", zap.Error(err))
		}
	},
}

var predictCommand = &cobra.Command{
	Use:   "predict",
	Short: "Decide a recommendation by a saved model.",
	Run: func(cmd *cobra.Command, args []string) {
		conf := setup(cmd)
		modelPath, _ := cmd.Flags().GetString("model")
		if modelPath == "" {
			modelPath = conf.Model.Path
		}
		if modelPath == "" {
			log.Logger().Fatal("model path is required")
		}
		m, err := worker.LoadModel(modelPath)
		if err != nil {
			log.Logger().Fatal("failed to load model", zap.Error(err))
		}
		recommender := logics.NewRecommender(m, conf.Predict.Threshold)
		recommendation, err := recommender.Recommend(conf.Predict.UserId, conf.Predict.ItemId)
		if err != nil {
			log.Logger().Fatal("failed to predict", zap.Error(err))
		}
		fmt.Printf("Predicted rating: %s\n", encoding.FormatFloat32(recommendation.Score))
		fmt.Println(recommendation)
	},
}

var tuneCommand = &cobra.Command{
	Use:   "tune",
	Short: "Search hyper-parameters on a split of the train set.",
	Run: func(cmd *cobra.Command, args []string) {
		conf := setup(cmd)
		if cmd.Flags().Changed("trials") {
			conf.Tune.Trials, _ = cmd.Flags().GetInt("trials")
		}
		bar := progressbar.Default(int64(conf.Tune.Trials), "Searching")
		pipeline := &worker.Pipeline{Config: conf}
		result, err := pipeline.Tune(func(_ string, _ mf.Score) {
			_ = bar.Add(1)
		})
		if err != nil {
			log.Logger().Fatal("failed to tune model", zap.Error(err))
		}
		if err = printSearchResult(os.Stdout, result); err != nil {
			log.Logger().Fatal("failed to print result", zap.Error(err))
		}
	},
}

// setup creates the logger and loads the config overwritten by flags.
func setup(cmd *cobra.Command) *config.Config {
	flags := cmd.Flags()
	debug, _ := flags.GetBool("debug")
	log.SetLogger(flags, debug)

	configPath, _ := flags.GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	overwriteConfig(flags, conf)
	if err = conf.Validate(); err != nil {
		log.Logger().Fatal("invalid config", zap.Error(err))
	}
	return conf
}

func overwriteConfig(flags *pflag.FlagSet, conf *config.Config) {
	if flags.Changed("train") {
		conf.Data.TrainPath, _ = flags.GetString("train")
	}
	if flags.Changed("test") {
		conf.Data.TestPath, _ = flags.GetString("test")
	}
	if flags.Changed("user") {
		conf.Predict.UserId, _ = flags.GetString("user")
	}
	if flags.Changed("item") {
		conf.Predict.ItemId, _ = flags.GetString("item")
	}
	if flags.Changed("threshold") {
		conf.Predict.Threshold, _ = flags.GetFloat32("threshold")
	}
	if flags.Changed("model-type") {
		conf.Model.Type, _ = flags.GetString("model-type")
	}
	if flags.Changed("n-factors") {
		conf.Model.NFactors, _ = flags.GetInt("n-factors")
	}
	if flags.Changed("n-epochs") {
		conf.Model.NEpochs, _ = flags.GetInt("n-epochs")
	}
	if flags.Changed("save-model") {
		conf.Model.Path, _ = flags.GetString("save-model")
	}
}

func printReport(w io.Writer, conf *config.Config, report *worker.Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	rows := [][]string{
		{"Model", conf.Model.Type},
		{"Train ratings", fmt.Sprint(report.TrainCount)},
		{"Test ratings", fmt.Sprint(report.TestCount)},
		{"Scored ratings", fmt.Sprint(report.Score.Count)},
		{"Users", fmt.Sprint(report.Users)},
		{"Items", fmt.Sprint(report.Items)},
		{"RMSE", encoding.FormatFloat32(report.Score.RMSE)},
		{"R2", encoding.FormatFloat32(report.Score.R2)},
		{"Test label variance", encoding.FormatFloat32(report.TestVariance)},
		{"Predicted rating", encoding.FormatFloat32(report.Recommendation.Score)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return errors.Trace(err)
		}
	}
	if err := table.Render(); err != nil {
		return errors.Trace(err)
	}
	_, err := fmt.Fprintln(w, report.Recommendation)
	return errors.Trace(err)
}

func printSearchResult(w io.Writer, result mf.SearchResult) error {
	table := tablewriter.NewWriter(w)
	table.Header("Param", "Value")
	if err := table.Append([]string{"Model", result.Type}); err != nil {
		return errors.Trace(err)
	}
	names := make([]string, 0, len(result.Params))
	for name := range result.Params {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		if err := table.Append([]string{name, fmt.Sprint(result.Params[model.ParamName(name)])}); err != nil {
			return errors.Trace(err)
		}
	}
	if err := table.Append([]string{"RMSE", encoding.FormatFloat32(result.Score.RMSE)}); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(table.Render())
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().String("train", "", "train ratings file")
	rootCommand.PersistentFlags().String("test", "", "test ratings file")
	rootCommand.PersistentFlags().String("user", "", "user to predict for")
	rootCommand.PersistentFlags().String("item", "", "movie to predict for")
	rootCommand.PersistentFlags().Float32("threshold", logics.DefaultThreshold, "recommend threshold")
	rootCommand.PersistentFlags().String("model-type", "", "model type (svd or baseline)")
	rootCommand.PersistentFlags().Int("n-factors", 0, "number of latent factors")
	rootCommand.PersistentFlags().Int("n-epochs", 0, "number of training epochs")
	rootCommand.Flags().BoolP("version", "v", false, "gorse-rating version")
	rootCommand.Flags().String("save-model", "", "save fitted model to file")
	predictCommand.Flags().String("model", "", "saved model file")
	tuneCommand.Flags().Int("trials", 0, "number of search trials")
	rootCommand.AddCommand(predictCommand, tuneCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
