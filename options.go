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

package exemplar

import (
	"github.com/pkg/errors"

	"github.com/tomoncle/exemplar/database"
)

var (
	// ErrMatchAll is returned by Update and DeleteMany when the example has no
	// non-null property and AllowMatchAll was not given.
	ErrMatchAll = errors.New("exemplar: example matches every record")

	// ErrMissingIdentityValue is returned when an operation keyed by identity
	// gets a nil id or a record whose identity is null.
	ErrMissingIdentityValue = errors.New("exemplar: identity value is null")
)

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger database.Logger
}

// WithLogger replaces the service logger, database.GetLogger by default.
func WithLogger(logger database.Logger) Option {
	return func(o *serviceOptions) { o.logger = logger }
}

// MutationOption adjusts a bulk Update or DeleteMany.
type MutationOption func(*mutationOptions)

type mutationOptions struct {
	allowMatchAll bool
}

// AllowMatchAll lets an example without non-null properties update or
// delete every record of the type.
func AllowMatchAll() MutationOption {
	return func(o *mutationOptions) { o.allowMatchAll = true }
}

func newMutationOptions(opts []MutationOption) mutationOptions {
	var o mutationOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
