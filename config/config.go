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
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/tensorcofi/factorization"
	"github.com/gorse-io/tensorcofi/model"
	"github.com/gorse-io/tensorcofi/model/tf"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	StrategyEmbedded   = factorization.EmbeddedName
	StrategySubprocess = factorization.SubprocessName
)

// Config is the configuration of model training.
type Config struct {
	Model   ModelConfig   `mapstructure:"model"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ModelConfig is the configuration of the TensorCoFi model.
type ModelConfig struct {
	Dim             int      `mapstructure:"dim" validate:"gt=0"`
	Iterations      int      `mapstructure:"iterations" validate:"gte=0"`
	Regularization  float32  `mapstructure:"regularization" validate:"gte=0"`
	ConfidenceScale float32  `mapstructure:"confidence_scale" validate:"gte=0"`
	UserColumns     []string `mapstructure:"user_columns" validate:"min=1,dive,required"`
	ItemColumns     []string `mapstructure:"item_columns" validate:"min=1,dive,required"`
	RandomState     int64    `mapstructure:"random_state"`
}

// EngineConfig is the configuration of the factorization engine.
type EngineConfig struct {
	Strategy string        `mapstructure:"strategy" validate:"oneof=embedded subprocess"`
	Jobs     int           `mapstructure:"jobs" validate:"gt=0"`
	Command  []string      `mapstructure:"command" validate:"min=1,dive,required"`
	WorkDir  string        `mapstructure:"work_dir" validate:"required"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
	SeedFlag string        `mapstructure:"seed_flag"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Dim:             20,
			Iterations:      5,
			Regularization:  0.05,
			ConfidenceScale: 40,
			UserColumns:     []string{"user"},
			ItemColumns:     []string{"item"},
		},
		Engine: EngineConfig{
			Strategy: StrategyEmbedded,
			Jobs:     1,
			Command:  []string{"tensorcofi-train"},
			WorkDir:  "log",
			SeedFlag: "--seed",
		},
		Tracing: TracingConfig{
			Exporter: ExporterOTLP,
			Sampler:  SamplerAlways,
			Ratio:    1,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [model]
	v.SetDefault("model.dim", defaultConfig.Model.Dim)
	v.SetDefault("model.iterations", defaultConfig.Model.Iterations)
	v.SetDefault("model.regularization", defaultConfig.Model.Regularization)
	v.SetDefault("model.confidence_scale", defaultConfig.Model.ConfidenceScale)
	v.SetDefault("model.user_columns", defaultConfig.Model.UserColumns)
	v.SetDefault("model.item_columns", defaultConfig.Model.ItemColumns)
	v.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	// [engine]
	v.SetDefault("engine.strategy", defaultConfig.Engine.Strategy)
	v.SetDefault("engine.jobs", defaultConfig.Engine.Jobs)
	v.SetDefault("engine.command", defaultConfig.Engine.Command)
	v.SetDefault("engine.work_dir", defaultConfig.Engine.WorkDir)
	v.SetDefault("engine.timeout", defaultConfig.Engine.Timeout)
	v.SetDefault("engine.seed_flag", defaultConfig.Engine.SeedFlag)
	// [tracing]
	v.SetDefault("tracing.enable_tracing", defaultConfig.Tracing.EnableTracing)
	v.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	v.SetDefault("tracing.collector_endpoint", defaultConfig.Tracing.CollectorEndpoint)
	v.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	v.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

// LoadConfig loads configuration from a file. The format is inferred from the
// extension. Environment variables prefixed with TENSORCOFI_ override file
// values, e.g. TENSORCOFI_MODEL_DIM. An empty path loads defaults and
// environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("TENSORCOFI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// GetParams returns hyper-parameters of the model.
func (c *ModelConfig) GetParams() model.Params {
	return model.Params{
		model.Dim:             c.Dim,
		model.Iterations:      c.Iterations,
		model.Regularization:  c.Regularization,
		model.ConfidenceScale: c.ConfidenceScale,
		model.RandomState:     c.RandomState,
	}
}

// NewEngine creates the configured factorization engine.
func (c *EngineConfig) NewEngine() (factorization.Engine, error) {
	switch c.Strategy {
	case StrategyEmbedded:
		return factorization.NewEmbeddedEngine(c.Jobs), nil
	case StrategySubprocess:
		engine := factorization.NewSubprocessEngine(c.Command, c.WorkDir, c.Timeout)
		engine.SeedFlag = c.SeedFlag
		return engine, nil
	default:
		return nil, errors.NotValidf("engine strategy %s", c.Strategy)
	}
}

// NewModel creates an unfitted model from the configuration.
func (config *Config) NewModel() (*tf.TensorCoFi, error) {
	engine, err := config.Engine.NewEngine()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return tf.NewTensorCoFi(config.Model.GetParams(), engine, config.Model.UserColumns, config.Model.ItemColumns)
}
