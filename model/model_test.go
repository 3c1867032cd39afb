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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseModel(t *testing.T) {
	var m BaseModel
	m.SetParams(Params{Dim: 8, RandomState: 42})
	assert.Equal(t, Params{Dim: 8, RandomState: 42}, m.GetParams())
	assert.Equal(t, int64(42), m.GetRandomState())
	m.SetParams(Params{})
	assert.Zero(t, m.GetRandomState())
}
