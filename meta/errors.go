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
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

var (
	// ErrNotStruct is returned when a record type is not a struct or a pointer to one.
	ErrNotStruct = errors.New("meta: record type must be a struct")

	// ErrNoIdentity is returned by operations that need an identity property
	// on a type that has none.
	ErrNoIdentity = errors.New("meta: record type has no identity property")

	// ErrUnknownProperty is returned when a name matches no property of the type.
	ErrUnknownProperty = errors.New("meta: unknown property")

	// ErrInconsistentEntry is returned when a type declares more than one
	// identity or maps two fields to the same store name.
	ErrInconsistentEntry = errors.New("meta: inconsistent property catalog entry")

	// ErrAlreadyResolved is returned by Register when the type already has an entry.
	ErrAlreadyResolved = errors.New("meta: record type already resolved")

	errNoMutator = errors.New("property is read-only")
	errNilRecord = errors.New("nil record")
)

// PropertyError records a failed accessor or mutator call on a single
// property. Extraction and merge collect these instead of aborting.
type PropertyError struct {
	Type     reflect.Type
	Property string
	Op       string
	Err      error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("meta: %s %s.%s: %v", e.Op, e.Type, e.Property, e.Err)
}

func (e *PropertyError) Unwrap() error { return e.Err }
