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
	"path/filepath"

	"github.com/gorse-io/tensorcofi/base/log"
	"github.com/gorse-io/tensorcofi/common/floats"
	"github.com/gorse-io/tensorcofi/factorization"
	"github.com/gorse-io/tensorcofi/factorization/cofi"
	"github.com/juju/errors"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// trainCommand trains factors from a file of (user, item) index pairs. The
// paths of the user and item factor files are printed on one line of stdout.
// Errors are written to stderr.
var trainCommand = &cobra.Command{
	Use:           "tensorcofi-train <train-path> <dim> <iterations> <regularization> <confidence-scale> <user-count> <item-count>",
	Short:         "Train TensorCoFi factors of users and items.",
	Args:          cobra.ExactArgs(7),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// setup logger
		debug, _ := cmd.Flags().GetBool("debug")
		if logPath, _ := cmd.Flags().GetString("log-path"); logPath != "" {
			log.SetFileLogger(logPath, debug)
		} else {
			log.CloseLogger()
		}

		// parse arguments
		trainPath := args[0]
		dim, err := cast.ToIntE(args[1])
		if err != nil {
			return errors.Annotate(err, "invalid dim")
		}
		iterations, err := cast.ToIntE(args[2])
		if err != nil {
			return errors.Annotate(err, "invalid iterations")
		}
		regularization, err := cast.ToFloat64E(args[3])
		if err != nil {
			return errors.Annotate(err, "invalid regularization")
		}
		confidenceScale, err := cast.ToFloat64E(args[4])
		if err != nil {
			return errors.Annotate(err, "invalid confidence scale")
		}
		userCount, err := cast.ToIntE(args[5])
		if err != nil {
			return errors.Annotate(err, "invalid user count")
		}
		itemCount, err := cast.ToIntE(args[6])
		if err != nil {
			return errors.Annotate(err, "invalid item count")
		}
		jobs, _ := cmd.Flags().GetInt("jobs")
		seed, _ := cmd.Flags().GetInt64("seed")
		outputDir, _ := cmd.Flags().GetString("output-dir")
		if outputDir == "" {
			outputDir = filepath.Dir(trainPath)
		}

		// load pairs
		users, items, err := factorization.ReadTrainFile(trainPath)
		if err != nil {
			return errors.Trace(err)
		}
		cells := cofi.NewFloatMatrix(len(users), 2)
		for i := range users {
			cells.Put(i, 0, float32(users[i]))
			cells.Put(i, 1, float32(items[i]))
		}

		// train factors
		trainer := cofi.NewTensorCoFi(dim, iterations, regularization, confidenceScale, []int{userCount, itemCount},
			cofi.WithJobs(jobs), cofi.WithSeed(seed))
		if err = trainer.Train(cmd.Context(), cells); err != nil {
			return errors.Trace(err)
		}

		// save factors
		var paths []string
		for i, name := range []string{"user", "item"} {
			m := trainer.GetModel()[i]
			path, err := filepath.Abs(filepath.Join(outputDir, name+".csv"))
			if err != nil {
				return errors.Trace(err)
			}
			if err = factorization.WriteFactorFile(path, floats.Transpose(floats.FromColumnMajor(m.Rows, m.Columns, m.ToArray()))); err != nil {
				return errors.Trace(err)
			}
			paths = append(paths, path)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), paths[0], paths[1])
		return errors.Trace(err)
	},
}

func init() {
	trainCommand.Flags().Bool("debug", false, "use debug log mode")
	trainCommand.Flags().String("log-path", "", "path of log file")
	trainCommand.Flags().Int("jobs", 1, "number of workers")
	trainCommand.Flags().Int64("seed", 0, "seed of initial factors")
	trainCommand.Flags().String("output-dir", "", "directory of factor files (default: directory of the training file)")
}

func main() {
	if err := trainCommand.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
