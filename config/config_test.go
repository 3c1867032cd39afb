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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorse-io/tensorcofi/factorization"
	"github.com/gorse-io/tensorcofi/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal(t *testing.T) {
	data, err := os.ReadFile("config.toml.template")
	require.NoError(t, err)
	text := string(data)
	text = strings.Replace(text, "dim = 20", "dim = 8", -1)
	text = strings.Replace(text, "user_columns = [\"user\"]", "user_columns = [\"user\", \"city\"]", -1)
	text = strings.Replace(text, "strategy = \"embedded\"", "strategy = \"subprocess\"", -1)
	text = strings.Replace(text, "timeout = \"0s\"", "timeout = \"1m\"", -1)
	text = strings.Replace(text, "seed_flag = \"--seed\"", "seed_flag = \"\"", -1)
	text = strings.Replace(text, "enable_tracing = false", "enable_tracing = true", -1)
	text = strings.Replace(text, "exporter = \"otlp\"", "exporter = \"zipkin\"", -1)
	text = strings.Replace(text, "collector_endpoint = \"\"", "collector_endpoint = \"http://localhost:9411/api/v2/spans\"", -1)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	config, err := LoadConfig(path)
	require.NoError(t, err)

	// [model]
	assert.Equal(t, 8, config.Model.Dim)
	assert.Equal(t, 5, config.Model.Iterations)
	assert.Equal(t, float32(0.05), config.Model.Regularization)
	assert.Equal(t, float32(40), config.Model.ConfidenceScale)
	assert.Equal(t, []string{"user", "city"}, config.Model.UserColumns)
	assert.Equal(t, []string{"item"}, config.Model.ItemColumns)
	assert.Equal(t, int64(0), config.Model.RandomState)
	// [engine]
	assert.Equal(t, StrategySubprocess, config.Engine.Strategy)
	assert.Equal(t, 1, config.Engine.Jobs)
	assert.Equal(t, []string{"tensorcofi-train"}, config.Engine.Command)
	assert.Equal(t, "log", config.Engine.WorkDir)
	assert.Equal(t, time.Minute, config.Engine.Timeout)
	assert.Empty(t, config.Engine.SeedFlag)
	// [tracing]
	assert.True(t, config.Tracing.EnableTracing)
	assert.Equal(t, ExporterZipkin, config.Tracing.Exporter)
	assert.Equal(t, "http://localhost:9411/api/v2/spans", config.Tracing.CollectorEndpoint)
	assert.Equal(t, SamplerAlways, config.Tracing.Sampler)
	assert.Equal(t, 1.0, config.Tracing.Ratio)
}

func TestSetDefault(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), config)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  iterations: 10\n"), 0644))
	config, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, config.Model.Iterations)
	assert.Equal(t, 20, config.Model.Dim)
	assert.Equal(t, StrategyEmbedded, config.Engine.Strategy)
}

func TestBindEnv(t *testing.T) {
	t.Setenv("TENSORCOFI_MODEL_DIM", "16")
	t.Setenv("TENSORCOFI_MODEL_REGULARIZATION", "0.5")
	t.Setenv("TENSORCOFI_ENGINE_STRATEGY", "subprocess")
	t.Setenv("TENSORCOFI_ENGINE_COMMAND", "java,-jar,tensorcofi.jar")
	t.Setenv("TENSORCOFI_ENGINE_TIMEOUT", "30s")
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 16, config.Model.Dim)
	assert.Equal(t, float32(0.5), config.Model.Regularization)
	assert.Equal(t, StrategySubprocess, config.Engine.Strategy)
	assert.Equal(t, []string{"java", "-jar", "tensorcofi.jar"}, config.Engine.Command)
	assert.Equal(t, 30*time.Second, config.Engine.Timeout)
}

func TestValidate(t *testing.T) {
	config := GetDefaultConfig()
	assert.NoError(t, config.Validate())

	config.Model.Dim = 0
	config.Engine.Strategy = "hadoop"
	config.Model.ItemColumns = nil
	config.Tracing.EnableTracing = true
	err := config.Validate()
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Contains(t, err.Error(), "model.dim")
	assert.Contains(t, err.Error(), "model.item_columns")
	assert.Contains(t, err.Error(), "engine.strategy")
	assert.Contains(t, err.Error(), "tracing.collector_endpoint")

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[engine]\njobs = -1\n"), 0644))
	_, err = LoadConfig(path)
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestNewModel(t *testing.T) {
	config := GetDefaultConfig()
	assert.Equal(t, model.Params{
		model.Dim:             20,
		model.Iterations:      5,
		model.Regularization:  float32(0.05),
		model.ConfidenceScale: float32(40),
		model.RandomState:     int64(0),
	}, config.Model.GetParams())
	m, err := config.NewModel()
	require.NoError(t, err)
	assert.Equal(t, "TensorCoFi (dim=20,iter=5,lambda=0.05,alpha=40)", m.GetName())

	config.Engine.Strategy = StrategySubprocess
	engine, err := config.Engine.NewEngine()
	require.NoError(t, err)
	require.IsType(t, &factorization.SubprocessEngine{}, engine)
	assert.Equal(t, "--seed", engine.(*factorization.SubprocessEngine).SeedFlag)
	m, err = config.NewModel()
	require.NoError(t, err)
	assert.Equal(t, "TensorCoFiByFile (dim=20,iter=5,lambda=0.05,alpha=40)", m.GetName())

	config.Model.UserColumns = []string{"user", "city"}
	_, err = config.NewModel()
	assert.True(t, errors.Is(err, errors.NotSupported))

	config.Engine.Strategy = "hadoop"
	_, err = config.Engine.NewEngine()
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestNewTracerProvider(t *testing.T) {
	config := GetDefaultConfig().Tracing
	tp, err := config.NewTracerProvider()
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))

	config.EnableTracing = true
	config.Exporter = ExporterZipkin
	config.CollectorEndpoint = "http://localhost:9411/api/v2/spans"
	config.Sampler = SamplerRatio
	config.Ratio = 0.5
	tp, err = config.NewTracerProvider()
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))

	config.Exporter = ExporterOTLPHTTP
	config.CollectorEndpoint = "localhost:4318"
	tp, err = config.NewTracerProvider()
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))

	config.Sampler = "sometimes"
	_, err = config.NewTracerProvider()
	assert.True(t, errors.Is(err, errors.NotSupported))
	config.Exporter = "jaeger"
	_, err = config.NewTracerProvider()
	assert.True(t, errors.Is(err, errors.NotSupported))
}
