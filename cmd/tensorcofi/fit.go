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
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorse-io/tensorcofi/base/log"
	"github.com/gorse-io/tensorcofi/base/progress"
	"github.com/gorse-io/tensorcofi/model/tf"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fitCommand = &cobra.Command{
	Use:   "fit <train.csv>",
	Short: "Fit a model on a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, shutdown, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		defer shutdown()
		table, err := loadCSV(cmd, args[0])
		if err != nil {
			return errors.Trace(err)
		}
		m, err := conf.NewModel()
		if err != nil {
			return errors.Trace(err)
		}

		// fit with a progress bar on stderr
		tracer := progress.NewTracer("tensorcofi")
		ctx, span := tracer.Start(cmd.Context(), "Fit", 1)
		bar := progressbar.NewOptions(conf.Model.Iterations,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription(m.GetName()))
		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Go(func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					for _, p := range tracer.List() {
						if p.Total > 0 {
							bar.ChangeMax(p.Total)
						}
						_ = bar.Set(p.Count)
					}
				}
			}
		})
		err = m.Fit(ctx, table)
		close(done)
		wg.Wait()
		if err != nil {
			span.Fail(err)
			return errors.Trace(err)
		}
		span.End()
		_ = bar.Finish()
		fmt.Fprintln(cmd.OutOrStdout(), m.GetName())

		// score pairs
		pairs, _ := cmd.Flags().GetStringArray("score")
		for _, pair := range pairs {
			user, item, ok := strings.Cut(pair, ",")
			if !ok {
				return errors.NotValidf("pair %q", pair)
			}
			score, err := m.GetScore(user, item)
			if errors.Is(err, errors.NotFound) {
				log.Logger().Warn("unknown user or item", zap.String("user", user), zap.String("item", item))
				continue
			} else if err != nil {
				return errors.Trace(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%v\n", user, item, score)
		}

		// dump model
		if cmd.Flags().Changed("dump") {
			path, _ := cmd.Flags().GetString("dump")
			f, err := os.Create(path)
			if err != nil {
				return errors.Trace(err)
			}
			defer f.Close()
			if err = tf.MarshalModel(f, m); err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("dump model", zap.String("path", path))
		}
		return nil
	},
}

var scoreCommand = &cobra.Command{
	Use:   "score <model> <user> <item>",
	Short: "Score a pair with a dumped model",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Trace(err)
		}
		defer f.Close()
		m, err := tf.UnmarshalModel(f)
		if err != nil {
			return errors.Trace(err)
		}
		score, err := m.GetScore(args[1], args[2])
		if err != nil {
			return errors.Trace(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), score)
		return nil
	},
}

func init() {
	addCSVFlags(fitCommand)
	fitCommand.Flags().String("dump", "", "path of the dumped model")
	fitCommand.Flags().StringArray("score", nil, "score a \"user,item\" pair after fitting")
	rootCommand.AddCommand(fitCommand)
	rootCommand.AddCommand(scoreCommand)
}
