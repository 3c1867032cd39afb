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

package factorization

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorse-io/tensorcofi/base/encoding"
	"github.com/gorse-io/tensorcofi/base/log"
	"github.com/gorse-io/tensorcofi/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	TrainFileName = "train.csv"
	// waitDelay bounds the wait for output pipes after the child is killed.
	waitDelay = 5 * time.Second
)

// SubprocessEngine exchanges files with an external training program. The
// program is invoked as
//
//	command... <train-path> <dim> <iterations> <regularization> <confidence-scale> <user-count> <item-count>
//
// followed by "<SeedFlag>=<random-state>" if SeedFlag is set, and must print
// the paths of the user and item factor files on one line of stdout. Anything written to stderr fails the run. Only the user and item
// columns are supported.
type SubprocessEngine struct {
	Command []string
	// WorkDir is the root of per-run working directories. Run directories are
	// kept after training.
	WorkDir string
	// Timeout is the maximum duration of a run. Zero means no limit.
	Timeout time.Duration
	// SeedFlag passes the random state to the program, e.g. "--seed". Programs
	// that take positional arguments only leave it empty.
	SeedFlag string
}

func NewSubprocessEngine(command []string, workDir string, timeout time.Duration) *SubprocessEngine {
	return &SubprocessEngine{
		Command: command,
		WorkDir: workDir,
		Timeout: timeout,
	}
}

func (e *SubprocessEngine) Name() string {
	return SubprocessName
}

func (e *SubprocessEngine) Train(ctx context.Context, data *dataset.Encoded, params Hyperparameters, cardinalities []int) (factors map[string]FactorMatrix, err error) {
	ctx, span := startSpan(ctx, SubprocessName, data, params)
	defer func(start time.Time) { finish(span, SubprocessName, start, err) }(time.Now())
	if len(e.Command) == 0 {
		return nil, errors.NotValidf("empty engine command")
	}
	if len(cardinalities) != len(data.Columns) {
		return nil, errors.NotValidf("%d cardinalities for %d columns", len(cardinalities), len(data.Columns))
	}
	for _, column := range data.Columns {
		if column != dataset.UserColumn && column != dataset.ItemColumn {
			return nil, errors.NotSupportedf("auxiliary column %s in subprocess engine", column)
		}
	}
	userPos := slices.Index(data.Columns, dataset.UserColumn)
	itemPos := slices.Index(data.Columns, dataset.ItemColumn)
	if userPos < 0 || itemPos < 0 {
		return nil, errors.NotValidf("columns %v without %s and %s", data.Columns, dataset.UserColumn, dataset.ItemColumn)
	}
	userCount, itemCount := cardinalities[userPos], cardinalities[itemPos]

	// prepare working directory
	dir := filepath.Join(e.WorkDir, fmt.Sprintf("%s_%s", time.Now().Format("20060102150405"), uuid.NewString()))
	if err = os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, errors.Trace(err)
	}
	trainPath := filepath.Join(dir, TrainFileName)
	if err = WriteTrainFile(trainPath, data.Column(userPos), data.Column(itemPos)); err != nil {
		return nil, errors.Trace(err)
	}

	// run engine
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	args := append(slices.Clone(e.Command[1:]),
		trainPath,
		strconv.Itoa(params.Dim),
		strconv.Itoa(params.Iterations),
		encoding.FormatFloat32(params.Regularization),
		encoding.FormatFloat32(params.ConfidenceScale),
		strconv.Itoa(userCount),
		strconv.Itoa(itemCount))
	if e.SeedFlag != "" {
		args = append(args, e.SeedFlag+"="+strconv.FormatInt(params.RandomState, 10))
	}
	cmd := exec.CommandContext(ctx, e.Command[0], args...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Logger().Info("start engine process",
		zap.String("command", cmd.String()),
		zap.String("work_dir", dir))
	runErr := cmd.Run()
	log.Logger().Debug("engine process finished",
		zap.String("stdout", stdout.String()),
		zap.String("stderr", stderr.String()),
		zap.Error(runErr))
	switch {
	case ctx.Err() != nil:
		return nil, &ProcessError{Command: e.Command[0], Stdout: stdout.String(), Stderr: stderr.String(), Err: ctx.Err()}
	case stderr.Len() > 0:
		log.Logger().Error("engine process wrote to stderr", zap.String("stdout", stdout.String()))
		return nil, &ProcessError{Command: e.Command[0], Stdout: stdout.String(), Stderr: stderr.String(), Err: runErr}
	case runErr != nil:
		return nil, &ProcessError{Command: e.Command[0], Stdout: stdout.String(), Err: runErr}
	}

	// load factors
	paths := strings.Fields(stdout.String())
	if len(paths) != 2 {
		return nil, NewMalformedOutputError("expected two factor file paths, got %q", stdout.String())
	}
	users, err := ReadFactorFile(paths[0], params.Dim, userCount)
	if err != nil {
		return nil, err
	}
	items, err := ReadFactorFile(paths[1], params.Dim, itemCount)
	if err != nil {
		return nil, err
	}
	return map[string]FactorMatrix{
		dataset.UserColumn: users,
		dataset.ItemColumn: items,
	}, nil
}
