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
	"github.com/pkg/errors"

	"github.com/tomoncle/exemplar/meta"
	"github.com/tomoncle/exemplar/types"
)

var (
	// ErrInvalidPage is returned for a negative limit or offset.
	ErrInvalidPage = errors.New("qbe: limit and offset must not be negative")

	// ErrInvalidSort is returned for an empty sort field or unknown direction.
	ErrInvalidSort = errors.New("qbe: invalid sort")

	errIdentityAssignment = errors.New("identity can not be assigned by an update")
)

type queryOptions struct {
	sort   *types.Sort
	limit  int
	offset int
}

// QueryOption adjusts the ordering and paging of a query built from an example.
type QueryOption func(*queryOptions)

// SortBy orders results by one field, given by store name or Go name.
func SortBy(field string, direction types.Direction) QueryOption {
	return func(o *queryOptions) {
		o.sort = &types.Sort{Field: field, Direction: direction}
	}
}

// Limit caps the number of results. Zero means unbounded.
func Limit(n int) QueryOption {
	return func(o *queryOptions) { o.limit = n }
}

// Offset skips the first n results. Zero means no skip.
func Offset(n int) QueryOption {
	return func(o *queryOptions) { o.offset = n }
}

// Paged applies the limit, offset and sort of a page request.
func Paged(page *types.PageRequest) QueryOption {
	return func(o *queryOptions) {
		if page == nil {
			return
		}
		o.limit = page.GetPageSize()
		o.offset = page.GetOffset()
		if s := page.GetSort(); s != nil {
			cp := *s
			o.sort = &cp
		}
	}
}

// BuildQuery converts the non-null properties of example into an equality
// conjunction. An example with no non-null property yields an empty
// predicate set, which matches every record of the type.
func BuildQuery(c *meta.Catalog, example any, opts ...QueryOption) (types.QuerySpec, error) {
	entry, err := c.ResolveValue(example)
	if err != nil {
		return types.QuerySpec{}, err
	}
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit < 0 || o.offset < 0 {
		return types.QuerySpec{}, errors.Wrapf(ErrInvalidPage, "limit %d offset %d", o.limit, o.offset)
	}
	spec := types.QuerySpec{Limit: o.limit, Offset: o.offset}
	if o.sort != nil {
		sort, err := resolveSort(entry, *o.sort)
		if err != nil {
			return types.QuerySpec{}, err
		}
		spec.Sort = &sort
	}

	fields, err := extractEntry(entry, example)
	if err != nil {
		return types.QuerySpec{}, err
	}
	spec.Predicates = make([]types.Predicate, 0, len(fields))
	for _, f := range fields {
		spec.Predicates = append(spec.Predicates, types.Predicate{Field: f.Property.Name(), Value: f.Value})
	}
	return spec, nil
}

func resolveSort(entry *meta.Entry, sort types.Sort) (types.Sort, error) {
	if sort.Field == "" || !sort.Direction.IsValid() {
		return types.Sort{}, errors.Wrapf(ErrInvalidSort, "%q %s", sort.Field, sort.Direction)
	}
	p, err := entry.Lookup(sort.Field)
	if err != nil {
		return types.Sort{}, err
	}
	return types.Sort{Field: p.Name(), Direction: sort.Direction}, nil
}
