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
	"fmt"
	"slices"
	"time"

	"github.com/gorse-io/tensorcofi/model"
	"github.com/gorse-io/tensorcofi/model/tf"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var paramsCommand = &cobra.Command{
	Use:   "params",
	Short: "Print hyper-parameters and their sweep ranges",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := tf.NewTensorCoFi(nil, nil, nil, nil)
		if err != nil {
			return errors.Trace(err)
		}
		details := m.ParamDetails()
		names := lo.Keys(details)
		slices.Sort(names)
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header([]string{"Param", "Min", "Max", "Step", "Default"})
		for _, name := range names {
			detail := details[name]
			if err = table.Append([]string{
				string(name),
				fmt.Sprint(detail.Min),
				fmt.Sprint(detail.Max),
				fmt.Sprint(detail.Step),
				fmt.Sprint(detail.Default),
			}); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(table.Render())
	},
}

var tuneCommand = &cobra.Command{
	Use:   "tune <train.csv> <test.csv>",
	Short: "Tune hyper-parameters by the mean score of held-out pairs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, shutdown, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		defer shutdown()
		trainSet, err := loadCSV(cmd, args[0])
		if err != nil {
			return errors.Trace(err)
		}
		testSet, err := loadCSV(cmd, args[1])
		if err != nil {
			return errors.Trace(err)
		}
		trials, _ := cmd.Flags().GetInt("trials")
		start := time.Now()
		search := tf.NewModelSearch(cmd.Context(), conf.NewModel, trainSet, tf.MeanScore(testSet))
		result, err := tf.Search(search, trials)
		if err != nil {
			return errors.Trace(err)
		}
		// render table
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header([]string{"Model", "Score", "Trials", "Time"})
		if err = table.Append([]string{
			result.Name,
			fmt.Sprint(result.Score),
			fmt.Sprint(result.Trials),
			time.Since(start).String(),
		}); err != nil {
			return errors.Trace(err)
		}
		if err = table.Render(); err != nil {
			return errors.Trace(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), model.Params(result.Params).ToString())
		return nil
	},
}

func init() {
	addCSVFlags(tuneCommand)
	tuneCommand.Flags().Int("trials", 10, "number of trials")
	rootCommand.AddCommand(paramsCommand)
	rootCommand.AddCommand(tuneCommand)
}
