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
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report configuration keys instead of field names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		return name
	})
	return v
}

// Validate checks the configuration. The returned error satisfies
// errors.Is(err, errors.NotValid).
func (config *Config) Validate() error {
	err := validate.Struct(config)
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := lo.Map(validationErrors, func(e validator.FieldError, _ int) string {
			key := strings.TrimPrefix(e.Namespace(), "Config.")
			if e.Param() != "" {
				return key + " must satisfy " + e.Tag() + "=" + e.Param()
			}
			return key + " must satisfy " + e.Tag()
		})
		return errors.NotValidf("config (%s)", strings.Join(messages, "; "))
	} else if err != nil {
		return errors.Trace(err)
	}
	return nil
}
