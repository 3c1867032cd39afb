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
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorse-io/tensorcofi/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	helperEnv     = "TENSORCOFI_HELPER_PROCESS"
	helperModeEnv = "TENSORCOFI_HELPER_MODE"
)

// TestHelperProcess is not a real test. It acts as an external engine when the
// test binary is started by SubprocessEngine.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	args = args[1:]
	trainPath := args[0]
	dim, _ := strconv.Atoi(args[1])
	userCount, _ := strconv.Atoi(args[5])
	itemCount, _ := strconv.Atoi(args[6])
	dir := filepath.Dir(trainPath)
	userPath, itemPath := filepath.Join(dir, "user.csv"), filepath.Join(dir, "item.csv")
	users := lo.Times(userCount, func(i int) []float32 {
		return lo.RepeatBy(dim, func(_ int) float32 { return float32(i + 1) })
	})
	items := lo.Times(itemCount, func(i int) []float32 {
		return lo.RepeatBy(dim, func(_ int) float32 { return 0.5 })
	})
	switch os.Getenv(helperModeEnv) {
	case "stderr":
		fmt.Fprint(os.Stderr, "java.lang.OutOfMemoryError")
	case "sleep":
		time.Sleep(time.Minute)
	case "exit":
		os.Exit(3)
	case "one-path":
		fmt.Println(userPath)
		os.Exit(0)
	case "nan":
		items[0][0] = float32(math.NaN())
	case "short":
		users = users[1:]
	case "args":
		if err := os.WriteFile(filepath.Join(dir, "args.txt"), []byte(strings.Join(args[7:], " ")), 0644); err != nil {
			os.Exit(2)
		}
	}
	if err := WriteFactorFile(userPath, users); err != nil {
		os.Exit(2)
	}
	if err := WriteFactorFile(itemPath, items); err != nil {
		os.Exit(2)
	}
	fmt.Println(userPath, itemPath)
	os.Exit(0)
}

func newEncoded(t *testing.T, userColumns, itemColumns []string) *dataset.Encoded {
	table, err := dataset.NewTable("user", "item", "genre")
	require.NoError(t, err)
	require.NoError(t, table.AddRow(1, 1, "rock"))
	require.NoError(t, table.AddRow(1, 2, "jazz"))
	require.NoError(t, table.AddRow(3, 3, "rock"))
	require.NoError(t, table.AddRow(4, 4, "pop"))
	enc, err := dataset.Encode(table, userColumns, itemColumns)
	require.NoError(t, err)
	return enc
}

func newHelperEngine(t *testing.T, mode string) *SubprocessEngine {
	t.Setenv(helperEnv, "1")
	t.Setenv(helperModeEnv, mode)
	return NewSubprocessEngine([]string{os.Args[0], "-test.run=TestHelperProcess", "--"}, t.TempDir(), 0)
}

var params = Hyperparameters{Dim: 3, Iterations: 5, Regularization: 0.05, ConfidenceScale: 40}

func TestEmbeddedEngine(t *testing.T) {
	enc := newEncoded(t, []string{"user"}, []string{"item", "genre"})
	engine := NewEmbeddedEngine(2)
	assert.Equal(t, EmbeddedName, engine.Name())
	factors, err := engine.Train(context.Background(), enc, params, enc.Cardinalities())
	require.NoError(t, err)
	assert.Len(t, factors, 3)
	for i, column := range enc.Columns {
		assert.Len(t, factors[column], enc.Cardinalities()[i])
		assert.Equal(t, params.Dim, factors[column].Dim())
	}

	_, err = engine.Train(context.Background(), enc, params, []int{1})
	assert.True(t, errors.Is(err, errors.NotValid))

	// indices beyond 2^24 are not exact in float32
	cardinalities := enc.Cardinalities()
	cardinalities[0] = MaxEmbeddedCardinality + 1
	_, err = engine.Train(context.Background(), enc, params, cardinalities)
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "cardinality 16777217 of column user")
}

func TestSubprocessEngine(t *testing.T) {
	enc := newEncoded(t, []string{"user"}, []string{"item"})
	engine := newHelperEngine(t, "ok")
	assert.Equal(t, SubprocessName, engine.Name())
	factors, err := engine.Train(context.Background(), enc, params, enc.Cardinalities())
	require.NoError(t, err)
	assert.Equal(t, FactorMatrix{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}}, factors["user"])
	assert.Len(t, factors["item"], 4)
	assert.Equal(t, []float32{0.5, 0.5, 0.5}, factors["item"][3])

	// the training file holds user and item indices only
	entries, err := os.ReadDir(engine.WorkDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	users, items, err := ReadTrainFile(filepath.Join(engine.WorkDir, entries[0].Name(), TrainFileName))
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 1, 2, 3}, users)
	assert.Equal(t, []int32{1, 2, 3, 4}, items)

	// every run gets its own directory
	_, err = engine.Train(context.Background(), enc, params, enc.Cardinalities())
	require.NoError(t, err)
	entries, err = os.ReadDir(engine.WorkDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSubprocessEngineSeed(t *testing.T) {
	enc := newEncoded(t, []string{"user"}, []string{"item"})
	engine := newHelperEngine(t, "args")
	seeded := params
	seeded.RandomState = 7

	// positional arguments only by default
	_, err := engine.Train(context.Background(), enc, seeded, enc.Cardinalities())
	require.NoError(t, err)
	engine.SeedFlag = "--seed"
	_, err = engine.Train(context.Background(), enc, seeded, enc.Cardinalities())
	require.NoError(t, err)

	entries, err := os.ReadDir(engine.WorkDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	var extra []string
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(engine.WorkDir, entry.Name(), "args.txt"))
		require.NoError(t, err)
		extra = append(extra, string(data))
	}
	assert.ElementsMatch(t, []string{"", "--seed=7"}, extra)
}

func TestSubprocessEngineStderr(t *testing.T) {
	enc := newEncoded(t, []string{"user"}, []string{"item"})
	engine := newHelperEngine(t, "stderr")
	_, err := engine.Train(context.Background(), enc, params, enc.Cardinalities())
	var processErr *ProcessError
	require.True(t, errors.As(err, &processErr))
	assert.Equal(t, "java.lang.OutOfMemoryError", processErr.Stderr)
	assert.Contains(t, err.Error(), "java.lang.OutOfMemoryError")
}

func TestSubprocessEngineExitCode(t *testing.T) {
	enc := newEncoded(t, []string{"user"}, []string{"item"})
	engine := newHelperEngine(t, "exit")
	_, err := engine.Train(context.Background(), enc, params, enc.Cardinalities())
	var processErr *ProcessError
	require.True(t, errors.As(err, &processErr))
	assert.Empty(t, processErr.Stderr)
	assert.Error(t, processErr.Err)
}

func TestSubprocessEngineTimeout(t *testing.T) {
	enc := newEncoded(t, []string{"user"}, []string{"item"})
	engine := newHelperEngine(t, "sleep")
	engine.Timeout = 200 * time.Millisecond
	start := time.Now()
	_, err := engine.Train(context.Background(), enc, params, enc.Cardinalities())
	assert.Less(t, time.Since(start), 30*time.Second)
	var processErr *ProcessError
	require.True(t, errors.As(err, &processErr))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSubprocessEngineCancel(t *testing.T) {
	enc := newEncoded(t, []string{"user"}, []string{"item"})
	engine := newHelperEngine(t, "sleep")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := engine.Train(ctx, enc, params, enc.Cardinalities())
	var processErr *ProcessError
	assert.True(t, errors.As(err, &processErr))
}

func TestSubprocessEngineMalformed(t *testing.T) {
	enc := newEncoded(t, []string{"user"}, []string{"item"})
	for _, mode := range []string{"one-path", "nan", "short"} {
		t.Run(mode, func(t *testing.T) {
			engine := newHelperEngine(t, mode)
			_, err := engine.Train(context.Background(), enc, params, enc.Cardinalities())
			var malformed *MalformedOutputError
			assert.True(t, errors.As(err, &malformed), err)
		})
	}
}

func TestSubprocessEngineAuxiliaryColumns(t *testing.T) {
	enc := newEncoded(t, []string{"user"}, []string{"item", "genre"})
	engine := newHelperEngine(t, "ok")
	_, err := engine.Train(context.Background(), enc, params, enc.Cardinalities())
	assert.True(t, errors.Is(err, errors.NotSupported))
	// nothing is launched
	entries, err := os.ReadDir(engine.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	engine = NewSubprocessEngine(nil, t.TempDir(), 0)
	_, err = engine.Train(context.Background(), newEncoded(t, []string{"user"}, []string{"item"}), params, []int{3, 4})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestReadFactorFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "factors.csv")
	require.NoError(t, WriteFactorFile(path, FactorMatrix{{1, 2}, {3, 4.5}}))
	m, err := ReadFactorFile(path, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, FactorMatrix{{1, 2}, {3, 4.5}}, m)

	cases := map[string]string{
		"ragged":  "1,2\n3\n",
		"text":    "1,2\n3,x\n",
		"nan":     "1,2\n3,NaN\n",
		"inf":     "1,2\nInf,3\n",
		"rows":    "1,2\n",
		"columns": "1,2,3\n4,5,6\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name+".csv")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := ReadFactorFile(path, 2, 2)
			var malformed *MalformedOutputError
			assert.True(t, errors.As(err, &malformed), err)
		})
	}

	_, err = ReadFactorFile(filepath.Join(t.TempDir(), "missing.csv"), 2, 2)
	var malformed *MalformedOutputError
	assert.True(t, errors.As(err, &malformed))
}

func TestTrainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), TrainFileName)
	require.NoError(t, WriteTrainFile(path, []int32{1, 2}, []int32{3, 4}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1,3\n2,4\n", string(data))
	users, items, err := ReadTrainFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, users)
	assert.Equal(t, []int32{3, 4}, items)

	assert.Error(t, WriteTrainFile(path, []int32{1}, nil))
	require.NoError(t, os.WriteFile(path, []byte("1,a\n"), 0644))
	_, _, err = ReadTrainFile(path)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestProcessError(t *testing.T) {
	err := &ProcessError{Command: "engine", Stderr: "boom\n", Err: context.Canceled}
	assert.Equal(t, "engine process engine failed: context canceled: boom", err.Error())
	assert.True(t, errors.Is(err, context.Canceled))
}
