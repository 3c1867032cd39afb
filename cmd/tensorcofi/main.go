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
	"os"
	"os/signal"
	"unicode/utf8"

	"github.com/gorse-io/tensorcofi/base/log"
	"github.com/gorse-io/tensorcofi/cmd/version"
	"github.com/gorse-io/tensorcofi/config"
	"github.com/gorse-io/tensorcofi/dataset"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:          "tensorcofi",
	Short:        "Train and score TensorCoFi models.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		otel.SetErrorHandler(log.GetErrorHandler())
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print the version of tensorcofi",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.AddCommand(versionCommand)
}

// loadConfig loads the configuration given by --config and installs the
// tracer provider. The returned function flushes pending spans.
func loadConfig(cmd *cobra.Command) (*config.Config, func(), error) {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	tp, err := conf.Tracing.NewTracerProvider()
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	otel.SetTracerProvider(tp)
	return conf, func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Logger().Error("failed to shutdown tracer provider", zap.Error(err))
		}
	}, nil
}

// addCSVFlags registers flags of CSV loading.
func addCSVFlags(cmd *cobra.Command) {
	cmd.Flags().String("sep", ",", "separator of CSV files")
	cmd.Flags().Bool("header", true, "CSV files start with a header")
	cmd.Flags().StringSlice("columns", nil, "column names of CSV files without header")
}

func loadCSV(cmd *cobra.Command, path string) (*dataset.Table, error) {
	sep, _ := cmd.Flags().GetString("sep")
	header, _ := cmd.Flags().GetBool("header")
	columns, _ := cmd.Flags().GetStringSlice("columns")
	if utf8.RuneCountInString(sep) != 1 {
		return nil, errors.NotValidf("separator %q", sep)
	}
	r, _ := utf8.DecodeRuneInString(sep)
	table, err := dataset.LoadCSV(path, r, header, columns)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load data",
		zap.String("path", path),
		zap.Strings("columns", table.Columns()),
		zap.Int("n_rows", table.Count()))
	return table, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCommand.ExecuteContext(ctx); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
