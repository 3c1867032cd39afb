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

package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	table, err := NewTable("user", "item")
	require.NoError(t, err)
	assert.NoError(t, table.AddRow(1, "a"))
	assert.Error(t, table.AddRow(1))
	assert.Error(t, table.AddRow([]int{1}, "a"))
	assert.NoError(t, table.AddRow(nil, "b"))
	assert.Equal(t, 2, table.Count())
	assert.Equal(t, "a", table.Get(0, "item"))
	assert.Nil(t, table.Get(1, "user"))
	assert.True(t, table.HasColumn("user"))
	assert.False(t, table.HasColumn("rating"))
	assert.Equal(t, []string{"user", "item"}, table.Columns())

	_, err = NewTable("user", "user")
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("user,item,rating\n1,2,5\n3,4,1\n"), ',', true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "item", "rating"}, table.Columns())
	assert.Equal(t, 2, table.Count())
	assert.Equal(t, "4", table.Get(1, "item"))

	table, err = ReadCSV(strings.NewReader("1::2::5\n"), ':', false, []string{"user", "item", "rating"})
	assert.Error(t, err) // "::" is not a single separator
	assert.Nil(t, table)

	table, err = ReadCSV(strings.NewReader("1\t2\t5\n"), '\t', false, []string{"user", "item", "rating"})
	require.NoError(t, err)
	assert.Equal(t, "5", table.Get(0, "rating"))

	_, err = ReadCSV(strings.NewReader("1,2\n"), ',', false, nil)
	assert.Error(t, err)
	_, err = ReadCSV(strings.NewReader("user,item\n1,2,3\n"), ',', true, nil)
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.csv")
	require.NoError(t, os.WriteFile(path, []byte("user,item\nu1,i1\n"), 0644))
	table, err := LoadCSV(path, ',', true, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Count())
	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), ',', true, nil)
	assert.Error(t, err)
}
