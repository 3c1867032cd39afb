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
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/gorse-io/tensorcofi/base/encoding"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// WriteTrainFile writes (user, item) index pairs as comma separated text
// without a header.
func WriteTrainFile(path string, users, items []int32) error {
	if len(users) != len(items) {
		return errors.NotValidf("%d users for %d items", len(users), len(items))
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	writer := csv.NewWriter(file)
	for i := range users {
		if err = writer.Write([]string{
			strconv.Itoa(int(users[i])),
			strconv.Itoa(int(items[i])),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	writer.Flush()
	return errors.Trace(writer.Error())
}

// ReadTrainFile reads a file written by WriteTrainFile.
func ReadTrainFile(path string) (users, items []int32, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	defer file.Close()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 2
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, errors.Annotatef(err, "failed to read %s", path)
		}
		user, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 32)
		if err != nil {
			return nil, nil, errors.NotValidf("user %q at line %d", record[0], line)
		}
		item, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 32)
		if err != nil {
			return nil, nil, errors.NotValidf("item %q at line %d", record[1], line)
		}
		users = append(users, int32(user))
		items = append(items, int32(item))
	}
	return users, items, nil
}

// WriteFactorFile writes one comma separated line per row.
func WriteFactorFile(path string, m FactorMatrix) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	writer := csv.NewWriter(file)
	for _, row := range m {
		if err = writer.Write(lo.Map(row, func(v float32, _ int) string {
			return encoding.FormatFloat32(v)
		})); err != nil {
			return errors.Trace(err)
		}
	}
	writer.Flush()
	return errors.Trace(writer.Error())
}

// ReadFactorFile reads a factor matrix of rows x dim values. Any deviation from
// that shape or a value that is not a finite number is reported as a
// MalformedOutputError.
func ReadFactorFile(path string, dim, rows int) (FactorMatrix, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, NewMalformedOutputError("cannot open factor file %s: %v", path, err)
	}
	defer file.Close()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = dim
	reader.TrimLeadingSpace = true
	m := make(FactorMatrix, 0, rows)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, NewMalformedOutputError("factor file %s: %v", path, err)
		}
		row := make([]float32, dim)
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
			if err != nil {
				return nil, NewMalformedOutputError("factor file %s: row %d: %q is not a number", path, len(m)+1, field)
			}
			row[j] = float32(v)
			if math32.IsNaN(row[j]) || math32.IsInf(row[j], 0) {
				return nil, NewMalformedOutputError("factor file %s: row %d: %q is not finite", path, len(m)+1, field)
			}
		}
		m = append(m, row)
	}
	if len(m) != rows {
		return nil, NewMalformedOutputError("factor file %s: got %d rows, want %d", path, len(m), rows)
	}
	return m, nil
}
