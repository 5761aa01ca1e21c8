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
	"go.uber.org/multierr"

	"github.com/tomoncle/exemplar/meta"
	"github.com/tomoncle/exemplar/types"
)

// BuildUpdate converts the non-null properties of partial, minus the
// identity, into assignments. It returns types.NoOp when nothing is left.
// Null values are never assigned, so an update can not clear a field.
func BuildUpdate(c *meta.Catalog, partial any) (types.UpdateSpec, error) {
	entry, err := c.ResolveValue(partial)
	if err != nil {
		return types.NoOp, err
	}
	fields, err := extractEntry(entry, partial)
	if err != nil {
		return types.NoOp, err
	}
	var assignments []types.Assignment
	for _, f := range fields {
		if f.Property.IsIdentity() {
			continue
		}
		assignments = append(assignments, types.Assignment{Field: f.Property.Name(), Value: f.Value})
	}
	if len(assignments) == 0 {
		return types.NoOp, nil
	}
	return types.UpdateSpec{Assignments: assignments}, nil
}

// ApplyUpdate writes the assignments of spec onto target through the
// property mutators. Every assignment is attempted; failures come back
// combined, one *meta.PropertyError each. Assignments to the identity or
// to unknown fields are reported, not applied.
func ApplyUpdate(c *meta.Catalog, target any, spec types.UpdateSpec) error {
	if spec.IsNoOp() {
		return nil
	}
	entry, err := c.ResolveValue(target)
	if err != nil {
		return err
	}
	var errs error
	for _, a := range spec.Assignments {
		p, err := entry.Lookup(a.Field)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if p.IsIdentity() {
			errs = multierr.Append(errs, &meta.PropertyError{
				Type: entry.Type(), Property: p.Name(), Op: "set", Err: errIdentityAssignment,
			})
			continue
		}
		errs = multierr.Append(errs, p.Set(target, a.Value))
	}
	return errs
}
