/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package qbe

import (
	"reflect"
	"strings"

	"go.uber.org/multierr"

	"github.com/tomoncle/exemplar/meta"
)

// FieldValue pairs a property with the value it held at extraction time.
type FieldValue struct {
	Property *meta.PropertyDescriptor
	Value    any
}

// Extract returns the non-null properties of record in declaration order.
//
// A failing accessor does not stop the others. Its *meta.PropertyError is
// combined with go.uber.org/multierr into the returned error while the
// fields that could be read are still returned. Metadata errors return no
// fields.
func Extract(c *meta.Catalog, record any) ([]FieldValue, error) {
	entry, err := c.ResolveValue(record)
	if err != nil {
		return nil, err
	}
	return extractEntry(entry, record)
}

func extractEntry(entry *meta.Entry, record any) ([]FieldValue, error) {
	var (
		fields []FieldValue
		errs   error
	)
	for _, p := range entry.Properties() {
		value, err := p.Get(record)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if IsNull(value) {
			continue
		}
		fields = append(fields, FieldValue{Property: p, Value: value})
	}
	return fields, errs
}

// IsNull reports whether an extracted value counts as absent: nil, or a
// string that is empty after trimming whitespace.
func IsNull(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return len(strings.TrimSpace(s)) == 0
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.String {
		return len(strings.TrimSpace(rv.String())) == 0
	}
	return false
}
