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
	"strings"
	"time"

	"github.com/gorse-io/tensorcofi/dataset"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	EmbeddedName   = "embedded"
	SubprocessName = "subprocess"
)

var tracer = otel.Tracer("github.com/gorse-io/tensorcofi/factorization")

// FactorMatrix holds one latent vector per encoded index: row i belongs to
// index i+1.
type FactorMatrix [][]float32

// Dim returns the number of latent factors.
func (m FactorMatrix) Dim() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Hyperparameters of a factorization run.
type Hyperparameters struct {
	Dim             int
	Iterations      int
	Regularization  float32
	ConfidenceScale float32
	RandomState     int64
}

func (p Hyperparameters) String() string {
	return fmt.Sprintf("dim=%v,iter=%v,lambda=%v,alpha=%v",
		p.Dim, p.Iterations, p.Regularization, p.ConfidenceScale)
}

// Engine factorizes an encoded matrix into one factor matrix per declared
// column. cardinalities[i] is the number of distinct indices of data.Columns[i].
// The result is keyed by column name.
type Engine interface {
	Name() string
	Train(ctx context.Context, data *dataset.Encoded, params Hyperparameters, cardinalities []int) (map[string]FactorMatrix, error)
}

// ProcessError reports a failed external engine run.
type ProcessError struct {
	Command string
	Stderr  string
	Stdout  string
	Err     error
}

func (e *ProcessError) Error() string {
	var b strings.Builder
	b.WriteString("engine process ")
	b.WriteString(e.Command)
	b.WriteString(" failed")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}
	return b.String()
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// MalformedOutputError reports engine output that cannot be turned into factor
// matrices.
type MalformedOutputError struct {
	Detail string
}

func NewMalformedOutputError(format string, args ...any) *MalformedOutputError {
	return &MalformedOutputError{Detail: fmt.Sprintf(format, args...)}
}

func (e *MalformedOutputError) Error() string {
	return "malformed engine output: " + e.Detail
}

func startSpan(ctx context.Context, engine string, data *dataset.Encoded, params Hyperparameters) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Train", trace.WithAttributes(
		attribute.String("engine", engine),
		attribute.Int("rows", data.Count()),
		attribute.StringSlice("columns", data.Columns),
		attribute.Int("dim", params.Dim),
		attribute.Int("iterations", params.Iterations),
	))
}

// finish records the outcome of a run on the span and in metrics.
func finish(span trace.Span, engine string, start time.Time, err error) {
	TrainSeconds.WithLabelValues(engine).Observe(time.Since(start).Seconds())
	if err != nil {
		TrainFailuresTotal.WithLabelValues(engine).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		TrainTotal.WithLabelValues(engine).Inc()
	}
	span.End()
}
