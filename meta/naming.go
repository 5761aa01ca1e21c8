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

package meta

import (
	"reflect"
	"strings"
)

// FieldTag is what a Naming reads from one struct field.
type FieldTag struct {
	Name      string
	Identity  bool
	Transient bool
}

// Naming maps struct fields to store names and reads the identity and
// transient markers. Every naming also honours the `qbe` tag:
// `qbe:"-"` or `qbe:"transient"` excludes a field, `qbe:"id"` marks the
// identity and `qbe:"name=x"` renames it, whatever the store tags say.
type Naming interface {
	Parse(sf reflect.StructField) FieldTag
}

// NamingFunc adapts a function to Naming.
type NamingFunc func(sf reflect.StructField) FieldTag

func (f NamingFunc) Parse(sf reflect.StructField) FieldTag { return withQBE(sf, f(sf)) }

var (
	// DefaultNaming uses the Go field name.
	DefaultNaming Naming = NamingFunc(func(sf reflect.StructField) FieldTag {
		return FieldTag{Name: sf.Name}
	})

	// BunNaming follows bun: `bun:"name,pk"`, `bun:"-"`, and snake_case
	// names for untagged fields.
	BunNaming Naming = NamingFunc(parseBun)

	// BSONNaming follows the MongoDB driver: `bson:"name"`, `bson:"-"`,
	// lower-cased names for untagged fields and `_id` as the identity.
	BSONNaming Naming = NamingFunc(parseBSON)
)

func parseBun(sf reflect.StructField) FieldTag {
	tag, ok := sf.Tag.Lookup("bun")
	if tag == "-" {
		return FieldTag{Transient: true}
	}
	ft := FieldTag{Name: underscore(sf.Name)}
	if !ok {
		return ft
	}
	parts := strings.Split(tag, ",")
	if name := parts[0]; name != "" && !strings.Contains(name, ":") {
		ft.Name = name
	}
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "pk" {
			ft.Identity = true
		}
	}
	return ft
}

func parseBSON(sf reflect.StructField) FieldTag {
	tag := sf.Tag.Get("bson")
	if tag == "-" {
		return FieldTag{Transient: true}
	}
	ft := FieldTag{Name: strings.ToLower(sf.Name)}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		ft.Name = name
	}
	ft.Identity = ft.Name == "_id"
	return ft
}

func withQBE(sf reflect.StructField, ft FieldTag) FieldTag {
	tag, ok := sf.Tag.Lookup("qbe")
	if !ok {
		return ft
	}
	if tag == "-" {
		ft.Transient = true
		return ft
	}
	for _, opt := range strings.Split(tag, ",") {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "id":
			ft.Identity = true
		case opt == "transient":
			ft.Transient = true
		case strings.HasPrefix(opt, "name="):
			ft.Name = strings.TrimPrefix(opt, "name=")
		}
	}
	return ft
}

// underscore converts a Go identifier to snake_case the way bun names columns.
func underscore(s string) string {
	r := make([]byte, 0, len(s)+5)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUpper(c) {
			if i > 0 && i+1 < len(s) && (isLower(s[i-1]) || isLower(s[i+1])) {
				r = append(r, '_', toLower(c))
			} else {
				r = append(r, toLower(c))
			}
		} else {
			r = append(r, c)
		}
	}
	return string(r)
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

func toLower(c byte) byte { return c + 32 }
