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
	"encoding/csv"
	"io"
	"os"
	"reflect"

	"github.com/juju/errors"
	"github.com/samber/lo"
)

const (
	UserColumn = "user"
	ItemColumn = "item"
)

// Table is an ordered collection of interaction rows with named columns.
type Table struct {
	columns  []string
	position map[string]int
	rows     [][]any
}

// NewTable creates an empty table. Column names must be unique.
func NewTable(columns ...string) (*Table, error) {
	if dup := lo.FindDuplicates(columns); len(dup) > 0 {
		return nil, errors.NotValidf("duplicate columns %v", dup)
	}
	t := &Table{
		columns:  columns,
		position: make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		t.position[c] = i
	}
	return t, nil
}

// AddRow appends a row. Values must be comparable since they are used as
// dictionary keys.
func (t *Table) AddRow(values ...any) error {
	if len(values) != len(t.columns) {
		return errors.NotValidf("row with %d values for %d columns", len(values), len(t.columns))
	}
	for i, v := range values {
		if !Comparable(v) {
			return errors.NotValidf("value of column %s (%T)", t.columns[i], v)
		}
	}
	t.rows = append(t.rows, values)
	return nil
}

// Comparable reports whether a value can be used as a dictionary key.
func Comparable(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}

// Columns returns column names in order.
func (t *Table) Columns() []string {
	return t.columns
}

// HasColumn reports whether the table has a column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.position[name]
	return ok
}

// Count returns the number of rows.
func (t *Table) Count() int {
	return len(t.rows)
}

// Get returns the value at a row and a column.
func (t *Table) Get(row int, column string) any {
	return t.rows[row][t.position[column]]
}

// LoadCSV loads a table from a delimited text file. All values are strings.
// If header is true the first line names the columns, otherwise columns must
// be given.
func LoadCSV(path string, sep rune, header bool, columns []string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return ReadCSV(f, sep, header, columns)
}

// ReadCSV reads a table from a delimited text stream.
func ReadCSV(r io.Reader, sep rune, header bool, columns []string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.TrimLeadingSpace = true
	if header {
		names, err := reader.Read()
		if err != nil {
			return nil, errors.Annotate(err, "failed to read header")
		}
		if len(columns) == 0 {
			columns = names
		}
	}
	if len(columns) == 0 {
		return nil, errors.NotValidf("empty columns")
	}
	reader.FieldsPerRecord = len(columns)
	table, err := NewTable(columns...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if err = table.AddRow(lo.ToAnySlice(record)...); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return table, nil
}
