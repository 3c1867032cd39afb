// Copyright 2022 gorse Project Authors
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

package log

import (
	"os"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02 15:04:05.999999"

var logger *zap.Logger

func init() {
	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
}

// Logger get current logger
func Logger() *zap.Logger {
	return logger
}

// CloseLogger silences everything below fatal.
func CloseLogger() {
	logger = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(os.Stderr),
		zap.FatalLevel))
}

// FileOptions configures the rotating log file.
type FileOptions struct {
	Path       string
	MaxSize    int
	MaxAge     int
	MaxBackups int
}

func (o FileOptions) writer() zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   o.Path,
		MaxSize:    o.MaxSize,
		MaxBackups: o.MaxBackups,
		MaxAge:     o.MaxAge,
	})
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

// fileOptions reads FileOptions from flags registered by AddFlags.
func fileOptions(flagSet *pflag.FlagSet) (FileOptions, bool) {
	if !flagSet.Changed("log-path") {
		return FileOptions{}, false
	}
	var o FileOptions
	o.Path, _ = flagSet.GetString("log-path")
	o.MaxSize, _ = flagSet.GetInt("log-max-size")
	o.MaxAge, _ = flagSet.GetInt("log-max-age")
	o.MaxBackups, _ = flagSet.GetInt("log-max-backups")
	return o, o.Path != ""
}

func newEncoder(console bool) zapcore.Encoder {
	if console {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
		return zapcore.NewConsoleEncoder(cfg)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	return zapcore.NewJSONEncoder(cfg)
}

func level(debug bool) zapcore.Level {
	if debug {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}

// SetLogger replaces the current logger. Logs go to stderr and, if --log-path
// is set, to a rotating file. Stdout is left to command output.
func SetLogger(flagSet *pflag.FlagSet, debug bool) {
	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if o, ok := fileOptions(flagSet); ok {
		writers = append(writers, o.writer())
	}
	logger = zap.New(zapcore.NewCore(newEncoder(debug), zap.CombineWriteSyncers(writers...), level(debug)))
}

// SetFileLogger writes JSON logs to the given file only.
func SetFileLogger(path string, debug bool) {
	o := FileOptions{Path: path, MaxSize: 100}
	logger = zap.New(zapcore.NewCore(newEncoder(false), o.writer(), level(debug)))
}

func GetErrorHandler() otel.ErrorHandler {
	return &errorHandler{}
}

type errorHandler struct{}

func (h *errorHandler) Handle(err error) {
	Logger().Error("opentelemetry failure", zap.Error(err))
}
